package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-resource/pkg/simpleresource/config"
	"gopkg.in/yaml.v3"
)

func TestBuildHandler(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(
		config.WithDatabase("sqlite", "file:"+filepath.Join(dir, "resources.db")),
		config.WithFilesystemStorage(filepath.Join(dir, "upload")),
	)
	require.NoError(t, err)

	logger := newLogger("testing", &bytes.Buffer{})
	handler, closer, err := buildHandler(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer closer.Close()

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "cat"))
	part, err := mw.CreateFormFile("file", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("seventeen bytes!!"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err = http.Post(server.URL+"/resources", mw.FormDataContentType(), body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	preflight, err := http.NewRequest(http.MethodOptions, server.URL+"/resources", nil)
	require.NoError(t, err)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(preflight)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger("production", &buf).Info("hello", "key", "value")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "production logs are JSON")

	buf.Reset()
	newLogger("development", &buf).Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}

func TestWriteConfig_MasksSecrets(t *testing.T) {
	cfg, err := config.Load(
		config.WithDatabase("postgres", "postgres://user:secret@db/resources"),
		config.WithS3Storage(config.S3Config{Bucket: "images", SecretAccessKey: "topsecret"}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg))
	assert.NotContains(t, buf.String(), "secret@db")
	assert.NotContains(t, buf.String(), "topsecret")

	var decoded config.ServerConfig
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "images", decoded.S3.Bucket)
	assert.Equal(t, "postgres", decoded.DatabaseType)
}

func TestRun_HelpEnv(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-help-env"}, &buf))
	assert.Contains(t, buf.String(), "STORAGE_TYPE")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "mysql")

	err := run(context.Background(), nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "0")
	t.Setenv("DATABASE_TYPE", "memory")
	t.Setenv("STORAGE_TYPE", "fs")
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "upload"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, run(ctx, nil, &bytes.Buffer{}))
}
