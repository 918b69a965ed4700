// Package presets builds ready-to-use services for local development and
// tests.
package presets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-resource/pkg/simpleresource"
	"github.com/tendant/simple-resource/pkg/simpleresource/objectkey"
	memoryrepo "github.com/tendant/simple-resource/pkg/simpleresource/repo/memory"
	"github.com/tendant/simple-resource/pkg/simpleresource/repo/sqlite"
	fsstorage "github.com/tendant/simple-resource/pkg/simpleresource/storage/fs"
	memorystorage "github.com/tendant/simple-resource/pkg/simpleresource/storage/memory"
)

type devConfig struct {
	dataDir string
}

// DevelopmentOption configures NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the directory holding the database and uploaded blobs
func WithDevDataDir(dir string) DevelopmentOption {
	return func(c *devConfig) {
		c.dataDir = dir
	}
}

// NewDevelopment creates a service backed by a SQLite database and
// filesystem storage under ./dev-data. The returned cleanup closes the
// database and removes the data directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simpleresource.Service, func(), error) {
	cfg := &devConfig{dataDir: "./dev-data"}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo, err := sqlite.Open("file:" + filepath.Join(cfg.dataDir, "resources.db"))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = repo.Close()
		_ = os.RemoveAll(cfg.dataDir)
	}

	if err := repo.Migrate(context.Background()); err != nil {
		cleanup()
		return nil, nil, err
	}

	store, err := fsstorage.New(fsstorage.Config{BaseDir: filepath.Join(cfg.dataDir, "upload")})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := simpleresource.New(
		simpleresource.WithRepository(repo),
		simpleresource.WithBlobStore("fs", store),
		simpleresource.WithKeyGenerator(objectkey.NewRecommendedGenerator()),
		simpleresource.WithEventSink(simpleresource.NewLoggingEventSink(nil)),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	return svc, cleanup, nil
}

// Fixture is the seed data NewTesting can preload
type Fixture struct {
	Title    string
	FileName string
	Data     []byte
}

type testConfig struct {
	options  []simpleresource.Option
	fixtures []Fixture
}

// TestingOption configures NewTesting
type TestingOption func(*testConfig)

// WithServiceOptions appends service options, overriding the in-memory defaults
func WithServiceOptions(options ...simpleresource.Option) TestingOption {
	return func(c *testConfig) {
		c.options = append(c.options, options...)
	}
}

// WithFixtures creates the given resources before the service is returned
func WithFixtures(fixtures ...Fixture) TestingOption {
	return func(c *testConfig) {
		c.fixtures = append(c.fixtures, fixtures...)
	}
}

// NewTesting creates a service on an in-memory repository and blob store,
// isolated per test.
func NewTesting(t testing.TB, opts ...TestingOption) simpleresource.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	options := append([]simpleresource.Option{
		simpleresource.WithRepository(memoryrepo.New()),
		simpleresource.WithBlobStore("memory", memorystorage.New()),
		simpleresource.WithKeyGenerator(objectkey.NewTimestampGenerator()),
	}, cfg.options...)

	svc, err := simpleresource.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	for _, f := range cfg.fixtures {
		if _, err := svc.CreateResource(context.Background(), simpleresource.CreateResourceRequest{
			Title:    f.Title,
			FileName: f.FileName,
			Payload:  bytes.NewReader(f.Data),
		}); err != nil {
			t.Fatalf("failed to create fixture %q: %v", f.Title, err)
		}
	}

	return svc
}
