package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"image-server/internal/config"
	"image-server/internal/domain"
	"image-server/internal/repository/image"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wb-go/wbf/zlog"
)

// setupRepository starts Postgres in a container and returns a migrated repository.
func setupRepository(t *testing.T) *ImagesRepository {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("images_test"),
		tcpostgres.WithUsername("images"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DB: config.DBConfig{
			Host:            host,
			Port:            port.Int(),
			User:            "images",
			Password:        "test-password",
			Name:            "images_test",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		},
		Retry: config.RetryConfig{Attempts: 3, Delay: 100 * time.Millisecond, Backoff: 2},
	}

	database, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	repo := NewImagesRepository(database, cfg.DefaultRetryStrategy())
	t.Cleanup(func() { repo.Close() })

	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	if err := repo.Migrate(&zlog.Logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	return repo
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := setupRepository(t)

	if err := repo.Migrate(&zlog.Logger); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestUnitOfWorkRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	factory := repo.NewUnitOfWorkFactory()
	ctx := context.Background()

	img := &domain.Image{
		ID:            "0b7c1d2e-3f40-4a5b-8c6d-7e8f90a1b2c3",
		Name:          "cat",
		ContentType:   "image/jpeg",
		FileSize:      2048,
		UploadedAt:    time.Now().UTC().Truncate(time.Microsecond),
		FilePath:      "images/0b7c1d2e-3f40-4a5b-8c6d-7e8f90a1b2c3.jpg",
		ThumbnailPath: "thumbnails/thumb_0b7c1d2e-3f40-4a5b-8c6d-7e8f90a1b2c3.jpg",
	}

	uow := factory.Begin()
	uow.Add(img)
	if _, err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := factory.Begin().GetByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != img.Name || got.ThumbnailPath != img.ThumbnailPath || !got.UploadedAt.Equal(img.UploadedAt) {
		t.Errorf("got = %+v, want %+v", got, img)
	}

	dup := factory.Begin()
	dup.Add(img)
	if _, err := dup.Commit(ctx); !errors.Is(err, image.ErrDuplicateKey) {
		t.Errorf("duplicate insert: err = %v, want ErrDuplicateKey", err)
	}

	del := factory.Begin()
	del.Remove(got)
	if _, err := del.Commit(ctx); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	count, err := factory.Begin().Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
