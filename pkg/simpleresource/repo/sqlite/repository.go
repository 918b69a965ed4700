package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-resource/pkg/simpleresource"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `CREATE TABLE IF NOT EXISTS resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	storage_reference TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Repository implements simpleresource.Repository using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the SQLite database at dsn, for example "file:resources.db" or
// ":memory:". The pool holds a single connection, so writes are serialized
// and an in-memory database is shared by every call.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	return New(db), nil
}

// New creates a repository on an existing database handle
func New(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Migrate creates the resources table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Error handling helper
func (r *Repository) handleSQLiteError(operation string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return &simpleresource.StoreError{Op: operation, Err: fmt.Errorf("duplicate storage reference: %w", err)}
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return &simpleresource.StoreError{Op: operation, Err: fmt.Errorf("required field is missing: %w", err)}
		}
	}
	return &simpleresource.StoreError{Op: operation, Err: err}
}

func (r *Repository) Insert(ctx context.Context, title, storageReference string) (*simpleresource.Resource, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, r.handleSQLiteError("begin", err)
	}
	// No-op after a successful commit
	defer func() { _ = tx.Rollback() }()

	now := r.now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO resources (title, storage_reference, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title, storageReference, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, r.handleSQLiteError("insert", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, r.handleSQLiteError("insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, r.handleSQLiteError("commit", err)
	}

	return &simpleresource.Resource{
		ID:               id,
		Title:            title,
		StorageReference: storageReference,
		CreatedAt:        time.Unix(0, now.UnixNano()).UTC(),
		UpdatedAt:        time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*simpleresource.Resource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, storage_reference, created_at, updated_at FROM resources WHERE id = ?`, id)

	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simpleresource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resource %d: %w", id, err)
	}
	return resource, nil
}

func (r *Repository) List(ctx context.Context) ([]*simpleresource.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, storage_reference, created_at, updated_at FROM resources ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	resources := make([]*simpleresource.Resource, 0)
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	return resources, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(s scanner) (*simpleresource.Resource, error) {
	var resource simpleresource.Resource
	var createdAt, updatedAt int64
	if err := s.Scan(&resource.ID, &resource.Title, &resource.StorageReference, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	resource.CreatedAt = time.Unix(0, createdAt).UTC()
	resource.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &resource, nil
}
