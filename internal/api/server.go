package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

// Defaults
const (
	DefaultPort           = 5000
	DefaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// SearchService is the query side the HTTP surface depends on
type SearchService interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*types.SearchResponse, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Config configures the HTTP server
type Config struct {
	Port           int
	Mode           string // gin mode: debug, release or test
	CORSOrigins    []string
	RequestTimeout time.Duration
	ServiceName    string
}

// Server exposes search over HTTP
type Server struct {
	cfg    Config
	search SearchService
	checks map[string]HealthCheck
	logger *slog.Logger
	router *gin.Engine
}

// NewServer builds the router. checks are run by GET /health.
func NewServer(search SearchService, checks map[string]HealthCheck, cfg Config, logger *slog.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "neurosearch"
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:    cfg,
		search: search,
		checks: checks,
		logger: logger.With("component", "api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.cfg.ServiceName))
	router.Use(requestLogger(s.logger))
	router.Use(corsMiddleware(s.cfg.CORSOrigins))
	router.Use(timeoutMiddleware(s.cfg.RequestTimeout))

	router.GET("/health", s.handleHealth)
	router.POST("/search", s.handleSearch)
	return router
}

// Handler returns the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP())
	}
}
