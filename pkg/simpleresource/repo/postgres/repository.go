package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-resource/pkg/simpleresource"
)

const schema = `CREATE TABLE IF NOT EXISTS resources (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	storage_reference TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository implements simpleresource.Repository using PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect creates a pool for databaseURL. When schema is set it becomes
// the search_path of every pooled session.
func Connect(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// Migrate creates the resources table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Close closes the connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate storage reference: %w", err)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing: %w", pgErr.ColumnName, err)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Insert(ctx context.Context, title, storageReference string) (*simpleresource.Resource, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, &simpleresource.StoreError{Op: "begin", Err: r.handlePostgresError("begin", err)}
	}
	// No-op after a successful commit
	defer func() { _ = tx.Rollback(context.Background()) }()

	query := `
		INSERT INTO resources (title, storage_reference)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	resource := simpleresource.Resource{
		Title:            title,
		StorageReference: storageReference,
	}
	err = tx.QueryRow(ctx, query, title, storageReference).Scan(
		&resource.ID, &resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		return nil, &simpleresource.StoreError{Op: "insert", Err: r.handlePostgresError("insert resource", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &simpleresource.StoreError{Op: "commit", Err: r.handlePostgresError("commit", err)}
	}

	resource.CreatedAt = resource.CreatedAt.UTC()
	resource.UpdatedAt = resource.UpdatedAt.UTC()
	return &resource, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*simpleresource.Resource, error) {
	query := `
		SELECT id, title, storage_reference, created_at, updated_at
		FROM resources WHERE id = $1`

	var resource simpleresource.Resource
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&resource.ID, &resource.Title, &resource.StorageReference,
		&resource.CreatedAt, &resource.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleresource.ErrNotFound
		}
		return nil, r.handlePostgresError("get resource", err)
	}

	resource.CreatedAt = resource.CreatedAt.UTC()
	resource.UpdatedAt = resource.UpdatedAt.UTC()
	return &resource, nil
}

func (r *Repository) List(ctx context.Context) ([]*simpleresource.Resource, error) {
	query := `
		SELECT id, title, storage_reference, created_at, updated_at
		FROM resources ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list resources", err)
	}
	defer rows.Close()

	resources := make([]*simpleresource.Resource, 0)
	for rows.Next() {
		var resource simpleresource.Resource
		if err := rows.Scan(
			&resource.ID, &resource.Title, &resource.StorageReference,
			&resource.CreatedAt, &resource.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan resource", err)
		}
		resource.CreatedAt = resource.CreatedAt.UTC()
		resource.UpdatedAt = resource.UpdatedAt.UTC()
		resources = append(resources, &resource)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list resources", err)
	}

	return resources, nil
}
