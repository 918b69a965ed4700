package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/simple-resource/pkg/simpleresource/api"
	"github.com/tendant/simple-resource/pkg/simpleresource/config"
	"gopkg.in/yaml.v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	printConfig := flags.Bool("print-config", false, "print the effective configuration and exit")
	helpEnv := flags.Bool("help-env", false, "describe the supported environment variables and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *helpEnv {
		usage, err := config.Usage()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, usage)
		return err
	}

	cfg, err := config.Load(config.WithConfigFile(*configPath), config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	if *printConfig {
		return writeConfig(stdout, cfg)
	}

	logger := newLogger(cfg.Environment, os.Stderr)
	slog.SetDefault(logger)

	handler, closer, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close repository", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		IdleTimeout:       120 * time.Second,
	}
	if cfg.RequestTimeout > 0 {
		// Leaves room for the timeout middleware to write its response
		httpServer.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Simple Resource Server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.StorageType)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// buildHandler wires the service described by cfg into an HTTP router
func buildHandler(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (http.Handler, io.Closer, error) {
	svc, closer, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build service: %w", err)
	}

	handler := api.NewResourceHandler(svc,
		api.WithHandlerLogger(logger),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithUploadPrefix(cfg.UploadURLPrefix),
	)

	router := api.NewRouter(handler,
		api.WithRouterLogger(logger),
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithCORS(cfg.CORSAllowedOrigins),
	)
	return router, closer, nil
}

// newLogger returns a JSON logger in production and a text logger elsewhere
func newLogger(environment string, w io.Writer) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// writeConfig prints cfg as YAML with credentials masked
func writeConfig(w io.Writer, cfg *config.ServerConfig) error {
	redacted := *cfg
	redacted.DatabaseURL = mask(redacted.DatabaseURL, redacted.DatabaseType == "postgres")
	redacted.S3.SecretAccessKey = mask(redacted.S3.SecretAccessKey, true)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(redacted); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func mask(value string, secret bool) string {
	if !secret || value == "" {
		return value
	}
	return "********"
}
