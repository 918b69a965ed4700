package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	REQUEST_TIMEOUT - Per-request timeout (default: "60s")
//	CORS_ALLOWED_ORIGINS - Comma separated allowed origins (default: "http://localhost:3000")
//
// Database:
//
//	DATABASE_TYPE - "sqlite" (default), "postgres" or "memory"
//	DATABASE_URL - SQLite DSN or Postgres connection string
//	DB_SCHEMA - Postgres search_path
//
// Storage:
//
//	STORAGE_TYPE - "fs" (default), "s3" or "memory"
//	UPLOAD_DIR - Filesystem root for blobs (default: "public/upload")
//	UPLOAD_URL_PREFIX - Prefix of storage references (default: "/upload")
//	MAX_UPLOAD_BYTES - Upload body limit, 0 disables it
//	S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY_ID, ... - S3 options
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithConfigFile loads a YAML configuration file. Environment variables
// still take precedence over values in the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// Usage returns a description of every supported environment variable
func Usage() (string, error) {
	var c ServerConfig
	return cleanenv.GetDescription(&c, nil)
}
