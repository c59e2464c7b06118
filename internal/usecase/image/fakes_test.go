package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"image-server/internal/domain"
	repoImage "image-server/internal/repository/image"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

var errDisk = errors.New("disk failure")

func testLogger() *zlog.Zerolog {
	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	return &zlog.Logger
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngArtifact(t *testing.T, name string) *domain.Artifact {
	t.Helper()
	content := pngBytes(t, 32, 16)
	return &domain.Artifact{
		OriginalName: name,
		ContentType:  "image/png",
		Size:         int64(len(content)),
		Content:      content,
	}
}

// fakeStore keeps artifacts in memory and validates with the real policy.
type fakeStore struct {
	*repoImage.Policy

	mu         sync.Mutex
	files      map[string][]byte
	saves      int
	deletes    []string
	saveErr    error
	deleteErrs map[string]error
	existsErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Policy:     repoImage.NewPolicy(0, nil),
		files:      make(map[string][]byte),
		deleteErrs: make(map[string]error),
	}
}

func (s *fakeStore) Save(_ context.Context, a *domain.Artifact, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.files[path] = a.Content
	return nil
}

func (s *fakeStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, path)
	if err := s.deleteErrs[path]; err != nil {
		return err
	}
	delete(s.files, path)
	return nil
}

func (s *fakeStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.files[path]
	return ok, nil
}

func (s *fakeStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *fakeStore) put(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte("x")
}

// fakeThumbnails writes a placeholder next to the store's files. after, if
// set, runs once when the next call has written its thumbnail.
type fakeThumbnails struct {
	store *fakeStore
	err   error
	calls int
	after func()
}

func (f *fakeThumbnails) CreateThumbnail(_ context.Context, src, dst string, w, h int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if !f.store.has(src) {
		return "", fmt.Errorf("source %s missing", src)
	}
	f.store.put(dst)
	if hook := f.after; hook != nil {
		f.after = nil
		hook()
	}
	return dst, nil
}

type fakeQueue struct {
	tasks []*domain.ThumbnailTask
}

func (q *fakeQueue) Publish(_ context.Context, task *domain.ThumbnailTask) error {
	q.tasks = append(q.tasks, task)
	return nil
}

// fakeDB is the committed state shared by every unit of work it begins.
type fakeDB struct {
	mu        sync.Mutex
	records   map[string]domain.Image
	commitErr error

	adds    int
	updates int
	removes int
	commits int
}

func newFakeDB(images ...*domain.Image) *fakeDB {
	db := &fakeDB{records: make(map[string]domain.Image)}
	for _, img := range images {
		db.records[img.ID] = *img
	}
	return db
}

func (db *fakeDB) Begin() repoImage.UnitOfWork {
	return &fakeUnitOfWork{db: db}
}

func (db *fakeDB) get(id string) (domain.Image, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	img, ok := db.records[id]
	return img, ok
}

func (db *fakeDB) len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}

type stagedChange struct {
	kind string
	img  *domain.Image
}

type fakeUnitOfWork struct {
	db     *fakeDB
	staged []stagedChange
}

func (u *fakeUnitOfWork) Add(img *domain.Image) {
	u.db.adds++
	u.staged = append(u.staged, stagedChange{"add", img})
}

func (u *fakeUnitOfWork) Update(img *domain.Image) {
	u.db.updates++
	u.staged = append(u.staged, stagedChange{"update", img})
}

func (u *fakeUnitOfWork) Remove(img *domain.Image) {
	u.db.removes++
	u.staged = append(u.staged, stagedChange{"remove", img})
}

func (u *fakeUnitOfWork) GetByID(_ context.Context, id string) (*domain.Image, error) {
	img, ok := u.db.get(id)
	if !ok {
		return nil, repoImage.ErrImageNotFound
	}
	return &img, nil
}

func (u *fakeUnitOfWork) GetAll(_ context.Context) ([]*domain.Image, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()

	out := make([]*domain.Image, 0, len(u.db.records))
	for _, img := range u.db.records {
		img := img
		out = append(out, &img)
	}
	return out, nil
}

func (u *fakeUnitOfWork) List(ctx context.Context, limit, offset int) ([]*domain.Image, error) {
	all, _ := u.GetAll(ctx)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (u *fakeUnitOfWork) Count(_ context.Context) (int, error) {
	return u.db.len(), nil
}

func (u *fakeUnitOfWork) Commit(_ context.Context) (int64, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()

	u.db.commits++
	if u.db.commitErr != nil {
		return 0, u.db.commitErr
	}

	for _, c := range u.staged {
		if c.kind != "update" {
			continue
		}
		stored, ok := u.db.records[c.img.ID]
		if !ok {
			return 0, fmt.Errorf("%w: %w", repoImage.ErrCommitFailed, repoImage.ErrImageNotFound)
		}
		if stored.Version != c.img.Version {
			return 0, fmt.Errorf("%w: %w", repoImage.ErrCommitFailed, repoImage.ErrConflict)
		}
	}

	for _, c := range u.staged {
		switch c.kind {
		case "add":
			u.db.records[c.img.ID] = *c.img
		case "update":
			c.img.Version++
			u.db.records[c.img.ID] = *c.img
		case "remove":
			delete(u.db.records, c.img.ID)
		}
	}

	n := int64(len(u.staged))
	u.staged = nil
	return n, nil
}

type fixture struct {
	store      *fakeStore
	thumbnails *fakeThumbnails
	db         *fakeDB
	queue      *fakeQueue
	usecase    *ImageUsecase
}

func newFixture(t *testing.T, images ...*domain.Image) *fixture {
	t.Helper()

	store := newFakeStore()
	thumbnails := &fakeThumbnails{store: store}
	db := newFakeDB(images...)
	queue := &fakeQueue{}

	return &fixture{
		store:      store,
		thumbnails: thumbnails,
		db:         db,
		queue:      queue,
		usecase:    NewImageUsecase(store, thumbnails, db, queue, ThumbnailSize{}, testLogger()),
	}
}

// seed stores a committed record with both files present.
func seedImage(f *fixture, id string, withThumbnail bool) *domain.Image {
	img := &domain.Image{
		ID:          id,
		Name:        "seed-" + id[:4],
		ContentType: "image/png",
		FileSize:    3,
		FilePath:    "images/" + id + ".png",
	}
	f.store.put(img.FilePath)
	if withThumbnail {
		img.ThumbnailPath = "thumbnails/thumb_" + id + ".png"
		f.store.put(img.ThumbnailPath)
	}
	f.db.records[id] = *img
	return img
}
