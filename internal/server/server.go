/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scheduler/internal/api"
	"github.com/friendsincode/grimnir_scheduler/internal/config"
	"github.com/friendsincode/grimnir_scheduler/internal/db"
	"github.com/friendsincode/grimnir_scheduler/internal/eventbus"
	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/playlist"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
	"github.com/friendsincode/grimnir_scheduler/internal/scheduler"
	"github.com/friendsincode/grimnir_scheduler/internal/telemetry"
)

const serviceName = "grimnir-scheduler"

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	redis     *redis.Client
	nats      *nats.Conn
	forwarder *eventbus.Forwarder
	registry  *prometheus.Registry
	bus       *events.Bus
	scheduler *scheduler.Service
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware(serviceName))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived and manages its own deadlines.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Zero so the websocket stream is not cut off; other routes are
		// bounded by the timeout middleware.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}

	if s.cfg.RedisRequired() {
		s.redis = redis.NewClient(&redis.Options{
			Addr:         s.cfg.RedisAddr,
			Password:     s.cfg.RedisPassword,
			DB:           s.cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})
		s.DeferClose(s.redis.Close)
	}

	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if s.cfg.LockBackend == config.LockRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis lock backend unavailable at %s: %w", s.cfg.RedisAddr, err)
		}
		locker = scheduler.NewRedisLocker(s.redis, scheduler.RedisLockerConfig{
			TTL:  s.cfg.LockTTL,
			Wait: s.cfg.LockWait,
		}, s.logger)
		s.logger.Info().Str("redis_addr", s.cfg.RedisAddr).Msg("distributed schedule lock enabled")
	}

	var playlists playlist.Provider = playlist.NewGormProvider(database)
	if s.cfg.PlaylistCacheEnabled {
		playlists = playlist.NewCachedProvider(context.Background(), playlists, s.redis, s.cfg.PlaylistCacheTTL, s.logger)
	}

	store := schedule.NewGormStore(database, s.logger)
	s.scheduler = scheduler.New(store, scheduler.UUIDGenerator{}, locker, s.bus, s.logger)
	s.scheduler.SetPlaylists(playlists)

	if s.cfg.AutoInstall {
		if err := s.scheduler.Install(context.Background()); err != nil && !errors.Is(err, schedule.ErrAlreadyInstalled) {
			return fmt.Errorf("auto install schedule: %w", err)
		}
	}

	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.SubjectPrefix = s.cfg.NATSSubjectPrefix
		conn, err := eventbus.Connect(natsCfg, s.logger)
		if err != nil {
			return err
		}
		s.nats = conn
		s.DeferClose(func() error {
			return conn.Drain()
		})
		s.forwarder = eventbus.NewForwarder(s.bus, conn, natsCfg.SubjectPrefix, s.logger)
	}

	s.registry = prometheus.NewRegistry()
	if err := telemetry.Register(s.registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.api = api.New(s.scheduler, playlists, s.bus, s.logger)
	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Scheduler returns the scheduling engine.
func (s *Server) Scheduler() *scheduler.Service {
	return s.scheduler
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.forwarder != nil {
		s.forwarder.Start(ctx)
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		db.RunConnectionMetrics(ctx, s.db, 30*time.Second)
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	if s.forwarder != nil {
		s.forwarder.Stop()
	}
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", telemetry.Handler(s.registry))
	}
	s.api.Routes(s.router)
}
