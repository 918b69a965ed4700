package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-resource/pkg/simpleresource"
	"github.com/tendant/simple-resource/pkg/simpleresource/objectkey"
	"github.com/tendant/simple-resource/pkg/simpleresource/repo/memory"
	repopg "github.com/tendant/simple-resource/pkg/simpleresource/repo/postgres"
	"github.com/tendant/simple-resource/pkg/simpleresource/repo/sqlite"
	fsstorage "github.com/tendant/simple-resource/pkg/simpleresource/storage/fs"
	memorystorage "github.com/tendant/simple-resource/pkg/simpleresource/storage/memory"
	s3storage "github.com/tendant/simple-resource/pkg/simpleresource/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "sqlite",
		DatabaseURL:        "file:resources.db",
		AutoMigrate:        true,
		StorageType:        "fs",
		UploadDir:          "public/upload",
		UploadURLPrefix:    simpleresource.DefaultReferencePrefix,
		MaxUploadBytes:     32 << 20,
		RequestTimeout:     60 * time.Second,
		EnableEventLogging: true,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// ServerConfig represents server configuration for the simple-resource service
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-description:"HTTP listen port"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-description:"development, production or testing"`

	// Database configuration
	DatabaseType string `yaml:"database_type" env:"DATABASE_TYPE" env-description:"sqlite, postgres or memory"`
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL" env-description:"SQLite DSN or Postgres connection string"`
	DBSchema     string `yaml:"db_schema" env:"DB_SCHEMA" env-description:"Postgres search_path"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-description:"create the resources table on startup"`

	// Storage configuration
	StorageType     string   `yaml:"storage_type" env:"STORAGE_TYPE" env-description:"fs, s3 or memory"`
	UploadDir       string   `yaml:"upload_dir" env:"UPLOAD_DIR" env-description:"filesystem root for blobs"`
	UploadURLPrefix string   `yaml:"upload_url_prefix" env:"UPLOAD_URL_PREFIX" env-description:"prefix of storage references and blob URLs"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-description:"upload body limit, 0 disables it"`
	S3              S3Config `yaml:"s3"`

	// Server options
	RequestTimeout     time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-description:"per-request timeout"`
	EnableEventLogging bool          `yaml:"enable_event_logging" env:"ENABLE_EVENT_LOGGING" env-description:"log resource created events"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-description:"comma separated origins allowed cross-origin access, empty disables CORS"`
}

// S3Config represents configuration for the S3 blob store
type S3Config struct {
	Region          string `yaml:"region" env:"S3_REGION" env-description:"S3 region"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-description:"S3 bucket"`
	KeyPrefix       string `yaml:"key_prefix" env:"S3_KEY_PREFIX" env-description:"prefix for object keys"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-description:"S3 access key"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-description:"S3 secret key"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-description:"custom endpoint for S3-compatible services"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-description:"use path-style addressing"`
	EnableSSE       bool   `yaml:"enable_sse" env:"S3_ENABLE_SSE" env-description:"enable server-side encryption"`
	SSEAlgorithm    string `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM" env-description:"AES256 or aws:kms"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID" env-description:"KMS key for aws:kms"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET" env-description:"create the bucket if missing"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "sqlite", "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'sqlite', 'postgres' or 'memory'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.UploadDir == "" {
			return errors.New("upload_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_type must be 'fs', 's3' or 'memory'")
	}

	prefix := strings.TrimSuffix(c.UploadURLPrefix, "/")
	if !strings.HasPrefix(prefix, "/") || len(prefix) < 2 {
		return fmt.Errorf("upload_url_prefix must be an absolute path below the root, got %q", c.UploadURLPrefix)
	}

	if c.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout cannot be negative")
	}

	return nil
}

// repository is a Repository that owns its schema and connections
type repository interface {
	simpleresource.Repository
	Migrate(ctx context.Context) error
	Close() error
}

// BuildService creates a Service instance from the server configuration.
// The returned closer releases the repository connections.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (simpleresource.Service, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	if c.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
	}

	store, err := c.buildBlobStore()
	if err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}

	options := []simpleresource.Option{
		simpleresource.WithRepository(repo),
		simpleresource.WithBlobStore(c.StorageType, store),
		simpleresource.WithKeyGenerator(objectkey.NewRecommendedGenerator()),
		simpleresource.WithReferencePrefix(c.UploadURLPrefix),
		simpleresource.WithMaxPayloadBytes(c.MaxUploadBytes),
		simpleresource.WithLogger(logger),
	}

	if c.EnableEventLogging {
		options = append(options, simpleresource.WithEventSink(simpleresource.NewLoggingEventSink(logger)))
	}

	svc, err := simpleresource.New(options...)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	return svc, repo, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(c.DatabaseURL)
	case "postgres":
		pool, err := repopg.Connect(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildBlobStore creates a BlobStore based on the storage configuration
func (c *ServerConfig) buildBlobStore() (simpleresource.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.UploadDir})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			KeyPrefix:              c.S3.KeyPrefix,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}
