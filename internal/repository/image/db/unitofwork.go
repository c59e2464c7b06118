package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"image-server/internal/domain"
	"image-server/internal/repository/image"
)

// Conn is the subset of a database handle the unit of work needs. Postgres
// and SQLite backends adapt their handles to it.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// Rebind rewrites ? placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	selectColumns = `id, name, content_type, file_size, uploaded_at, updated_at, file_path, thumbnail_path, version`

	queryGetByID = `SELECT ` + selectColumns + ` FROM images WHERE id = ?`
	queryGetAll  = `SELECT ` + selectColumns + ` FROM images ORDER BY uploaded_at DESC, id`
	queryList    = `SELECT ` + selectColumns + ` FROM images ORDER BY uploaded_at DESC, id LIMIT ? OFFSET ?`
	queryCount   = `SELECT COUNT(*) FROM images`
	queryExists  = `SELECT COUNT(*) FROM images WHERE id = ?`

	queryInsert = `
		INSERT INTO images (
			id, name, content_type, file_size,
			uploaded_at, updated_at, file_path, thumbnail_path, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	queryUpdate = `
		UPDATE images
		SET name = ?, content_type = ?, file_size = ?, updated_at = ?,
		    file_path = ?, thumbnail_path = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	queryDelete = `DELETE FROM images WHERE id = ?`
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

type stagedOp struct {
	kind opKind
	img  *domain.Image
}

type UnitOfWorkFactory struct {
	conn    Conn
	dialect Dialect
}

func NewUnitOfWorkFactory(conn Conn, dialect Dialect) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		conn:    conn,
		dialect: dialect,
	}
}

func (f *UnitOfWorkFactory) Begin() image.UnitOfWork {
	return &UnitOfWork{
		conn:    f.conn,
		dialect: f.dialect,
	}
}

// UnitOfWork is single use: once Commit has been called it rejects further
// commits. It is not safe for concurrent use.
type UnitOfWork struct {
	conn      Conn
	dialect   Dialect
	ops       []stagedOp
	committed bool
}

// Add stages img for insertion. The pointer is kept, so fields set on img
// before Commit are persisted.
func (u *UnitOfWork) Add(img *domain.Image) {
	u.ops = append(u.ops, stagedOp{kind: opInsert, img: img})
}

func (u *UnitOfWork) Update(img *domain.Image) {
	for _, op := range u.ops {
		if op.img == img && op.kind != opDelete {
			return
		}
	}
	u.ops = append(u.ops, stagedOp{kind: opUpdate, img: img})
}

func (u *UnitOfWork) Remove(img *domain.Image) {
	u.ops = append(u.ops, stagedOp{kind: opDelete, img: img})
}

func (u *UnitOfWork) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	row, err := u.conn.QueryRowContext(ctx, u.dialect.Rebind(queryGetByID), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, image.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}

	return img, nil
}

func (u *UnitOfWork) GetAll(ctx context.Context) ([]*domain.Image, error) {
	rows, err := u.conn.QueryContext(ctx, u.dialect.Rebind(queryGetAll))
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	return collect(rows)
}

func (u *UnitOfWork) List(ctx context.Context, limit, offset int) ([]*domain.Image, error) {
	rows, err := u.conn.QueryContext(ctx, u.dialect.Rebind(queryList), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	return collect(rows)
}

func (u *UnitOfWork) Count(ctx context.Context) (int, error) {
	row, err := u.conn.QueryRowContext(ctx, u.dialect.Rebind(queryCount))
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}
	return count, nil
}

// Commit applies every staged operation inside one transaction and returns
// the number of affected rows. An update or delete that matches no row rolls
// the whole transaction back, as does an update whose record was changed
// after it was read (ErrConflict).
func (u *UnitOfWork) Commit(ctx context.Context) (int64, error) {
	if u.committed {
		return 0, image.ErrUnitOfWorkUsed
	}
	u.committed = true

	if len(u.ops) == 0 {
		return 0, nil
	}

	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %w", image.ErrCommitFailed, err)
	}

	var affected int64
	for _, op := range u.ops {
		n, err := u.apply(ctx, tx, op)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%w: %s %s: %w", image.ErrCommitFailed, op.kind, op.img.ID, err)
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %w", image.ErrCommitFailed, err)
	}

	for _, op := range u.ops {
		if op.kind == opUpdate {
			op.img.Version++
		}
	}
	u.ops = nil
	return affected, nil
}

func (u *UnitOfWork) apply(ctx context.Context, tx *sql.Tx, op stagedOp) (int64, error) {
	img := op.img

	var (
		result sql.Result
		err    error
	)
	switch op.kind {
	case opInsert:
		result, err = tx.ExecContext(ctx, u.dialect.Rebind(queryInsert),
			img.ID,
			img.Name,
			img.ContentType,
			img.FileSize,
			img.UploadedAt,
			nullTime(img.UpdatedAt),
			img.FilePath,
			nullString(img.ThumbnailPath),
			img.Version,
		)
	case opUpdate:
		result, err = tx.ExecContext(ctx, u.dialect.Rebind(queryUpdate),
			img.Name,
			img.ContentType,
			img.FileSize,
			nullTime(img.UpdatedAt),
			img.FilePath,
			nullString(img.ThumbnailPath),
			img.ID,
			img.Version,
		)
	case opDelete:
		result, err = tx.ExecContext(ctx, u.dialect.Rebind(queryDelete), img.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %w", image.ErrDuplicateKey, err)
		}
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 && op.kind == opUpdate {
		return 0, u.missOrConflict(ctx, tx, img.ID)
	}
	if n == 0 && op.kind == opDelete {
		return 0, image.ErrImageNotFound
	}

	return n, nil
}

// missOrConflict tells apart an update that lost its row from one that lost
// a race with another writer.
func (u *UnitOfWork) missOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var count int
	if err := tx.QueryRowContext(ctx, u.dialect.Rebind(queryExists), id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check image: %w", err)
	}
	if count == 0 {
		return image.ErrImageNotFound
	}
	return image.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*domain.Image, error) {
	var (
		img       domain.Image
		updatedAt sql.NullTime
		thumbnail sql.NullString
	)

	err := s.Scan(
		&img.ID,
		&img.Name,
		&img.ContentType,
		&img.FileSize,
		&img.UploadedAt,
		&updatedAt,
		&img.FilePath,
		&thumbnail,
		&img.Version,
	)
	if err != nil {
		return nil, err
	}

	img.UploadedAt = img.UploadedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		img.UpdatedAt = &t
	}
	img.ThumbnailPath = thumbnail.String

	return &img, nil
}

func collect(rows *sql.Rows) ([]*domain.Image, error) {
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
