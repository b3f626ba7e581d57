// Package server assembles the layout service: snapshot store, canvas
// sessions, metrics collection and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/onnwee/nodelayout/internal/api"
	"github.com/onnwee/nodelayout/internal/canvas"
	"github.com/onnwee/nodelayout/internal/config"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/middleware"
	"github.com/onnwee/nodelayout/internal/scheduler"
	"github.com/onnwee/nodelayout/internal/store"
)

// ShutdownTimeout bounds the final saves and connection draining.
const ShutdownTimeout = 15 * time.Second

type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     store.Store
	canvases  *canvas.Manager
	collector *metrics.Collector
	limiter   *middleware.RateLimiter
	jobs      *scheduler.Service
	http      *http.Server
}

// InitStore opens the snapshot store selected by cfg.
func InitStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.Open(ctx, store.Options{
		Backend:         cfg.StoreBackend,
		DatabaseURL:     cfg.DatabaseURL,
		RedisURL:        cfg.RedisURL,
		RedisKeyPrefix:  cfg.RedisKeyPrefix,
		ConnectAttempts: 5,
		ConnectDelay:    time.Second,
		BreakerTimeout:  cfg.StoreBreakerTimeout,
		CacheMB:         cfg.SnapshotCacheMB,
		CacheEntries:    cfg.SnapshotCacheEntries,
		CacheTTL:        cfg.SnapshotCacheTTL,
	}, logger.WithComponent("store"))
}

// NewServer wires the service around st. The server owns st from here on.
func NewServer(cfg *config.Config, st store.Store) (*Server, error) {
	lc, err := cfg.LayoutConfig()
	if err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	manager := canvas.NewManager(st, canvas.Options{
		Layout:           lc,
		FrameInterval:    cfg.FrameInterval(),
		AutosaveInterval: cfg.AutosaveInterval,
		IdleTimeout:      cfg.SessionIdleTimeout,
		StoreTimeout:     cfg.StoreTimeout,
		MaxCanvases:      cfg.MaxCanvases,
		AssumeMeasured:   cfg.AssumeMeasured,
	}, logger.WithComponent("canvas"))

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger.WithComponent("server"),
		store:     st,
		canvases:  manager,
		collector: metrics.NewCollector(manager, interval),
		jobs:      scheduler.NewService(time.Minute),
	}
	if sched := cfg.IntegritySchedule; sched != "" && sched != "off" {
		if err := s.jobs.Add(auditJob(st, lc, sched)); err != nil {
			return nil, fmt.Errorf("INTEGRITY_SCHEDULE: %w", err)
		}
	}
	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	s.http = &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Canvases:    manager,
			Stats:       manager,
			CORS:        cors,
			RateLimiter: s.limiter,
			Profiling:   cfg.EnableProfiling,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Canvases returns the session manager.
func (s *Server) Canvases() *canvas.Manager { return s.canvases }

// Start serves on the configured address until ctx ends, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	bg, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.canvases.Run(bg)
	go s.collector.Start(bg)
	go s.jobs.Start(bg)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String(), "store", s.cfg.StoreBackend)
		errc <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer done()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Shutdown drains HTTP connections, saves every open canvas and closes the
// store.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.canvases.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing canvases: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}
