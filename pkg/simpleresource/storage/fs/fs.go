package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-resource/pkg/simpleresource"
)

const (
	defaultDirMode  os.FileMode = 0755
	defaultFileMode os.FileMode = 0644
	tempSuffix                  = ".tmp"
)

// Backend is a filesystem implementation of the simpleresource.BlobStore interface.
// All blobs live under a single base directory.
type Backend struct {
	baseDir  string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config options for the filesystem backend
type Config struct {
	BaseDir  string      // Base directory for storing files
	DirMode  os.FileMode // Mode for created directories (default 0755)
	FileMode os.FileMode // Mode for written files (default 0644)
}

// New creates a new filesystem storage backend. The base directory is
// created lazily on the first write.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	b := &Backend{
		baseDir:  filepath.Clean(config.BaseDir),
		dirMode:  config.DirMode,
		fileMode: config.FileMode,
	}
	if b.dirMode == 0 {
		b.dirMode = defaultDirMode
	}
	if b.fileMode == 0 {
		b.fileMode = defaultFileMode
	}
	return b, nil
}

// BaseDir returns the directory blobs are written under
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// Write stores data under key. The bytes go to a temporary file in the
// target directory which is synced and then linked into place, so readers
// see either the complete blob or nothing. An existing blob is never
// replaced.
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, b.dirMode); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+tempSuffix)
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, b.fileMode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Link fails with EEXIST instead of replacing an existing blob
	if err := os.Link(tmpPath, filePath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", simpleresource.ErrBlobExists, key)
		}
		return fmt.Errorf("failed to commit file: %w", err)
	}

	return nil
}

// Open opens the blob stored under key for reading
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", simpleresource.ErrNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists reports whether a blob is stored under key
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get file info: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Delete deletes the blob stored under key
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", simpleresource.ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// pathFor maps key to a path under baseDir, rejecting keys that are
// absolute, contain traversal segments or NUL bytes.
func (b *Backend) pathFor(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", simpleresource.ErrInvalidKey)
	}
	if strings.ContainsRune(key, 0) || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", simpleresource.ErrInvalidKey, key)
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: absolute key %q", simpleresource.ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", simpleresource.ErrInvalidKey, key)
		}
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(key)), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
