package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultRequestTimeout bounds the handling time of a single request
const DefaultRequestTimeout = 60 * time.Second

// RouterOption configures NewRouter
type RouterOption func(*routerConfig)

type routerConfig struct {
	logger         *slog.Logger
	timeout        time.Duration
	allowedOrigins []string
}

// WithRouterLogger sets the logger used by the request logger middleware
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		c.logger = logger
	}
}

// WithRequestTimeout sets the per-request timeout. Zero disables it.
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(c *routerConfig) {
		c.timeout = d
	}
}

// WithCORS allows cross-origin requests from the given origins. An empty
// list leaves CORS handling off.
func WithCORS(allowedOrigins []string) RouterOption {
	return func(c *routerConfig) {
		c.allowedOrigins = allowedOrigins
	}
}

// NewRouter mounts the health, resource and blob routes with the
// standard middleware stack.
func NewRouter(h *ResourceHandler, options ...RouterOption) chi.Router {
	cfg := &routerConfig{timeout: DefaultRequestTimeout}
	for _, option := range options {
		option(cfg)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.logger))
	r.Use(middleware.Recoverer)
	if len(cfg.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:         3600,
		}))
	}
	if cfg.timeout > 0 {
		r.Use(middleware.Timeout(cfg.timeout))
	}

	r.Get("/health", h.Health)
	r.Mount("/resources", h.Routes())
	r.Mount(h.UploadPrefix(), h.UploadRoutes())

	return r
}
