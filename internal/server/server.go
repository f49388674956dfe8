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
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/config"
	"github.com/friendsincode/starboard/internal/dispatch"
	"github.com/friendsincode/starboard/internal/eventbus"
	"github.com/friendsincode/starboard/internal/events"
	"github.com/friendsincode/starboard/internal/logbuffer"
	"github.com/friendsincode/starboard/internal/overlay"
	"github.com/friendsincode/starboard/internal/telemetry"
	"github.com/friendsincode/starboard/internal/viewmodel"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	clock      clock.WithTickerAndDelayedExecution
	loop       *dispatch.Loop
	overlay    *overlay.Overlay
	scoreboard *viewmodel.Scoreboard
	bus        eventbus.Bus
	logBuffer  *logbuffer.Buffer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
// logBuf may be nil, in which case /api/v1/logs reports the buffer as disabled.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	return newServer(cfg, clock.RealClock{}, logBuf, logger)
}

func newServer(cfg *config.Config, clk clock.WithTickerAndDelayedExecution, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("starboard-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for the long-lived render feed
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		clock:     clk,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket feed; the middleware timeout covers the rest
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
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	s.scoreboard = viewmodel.New()
	if s.cfg.SeedFile != "" {
		seed, err := viewmodel.LoadSeed(s.cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("load scoreboard seed: %w", err)
		}
		if err := s.scoreboard.ApplySeed(seed); err != nil {
			return fmt.Errorf("apply scoreboard seed: %w", err)
		}
		s.logger.Info().Str("path", s.cfg.SeedFile).Msg("scoreboard seeded")
	}

	bus, err := s.openEventBus()
	if err != nil {
		return err
	}
	s.bus = bus
	s.DeferClose(bus.Close)

	s.loop = dispatch.New(s.logger)
	s.DeferClose(func() error {
		s.loop.Close()
		return nil
	})

	s.overlay = overlay.New(overlay.Options{
		Preview:        s.cfg.Preview,
		BootstrapDelay: s.cfg.BootstrapDelay,
		MinHold:        s.cfg.MinHold,
		FadeDuration:   s.cfg.FadeDuration,
		SwapDelay:      s.cfg.SwapDelay,
		ColorDuration:  s.cfg.ColorDuration,
	}, s.clock, s.loop, s.logger)
	if err := s.overlay.SetDataSource(s.scoreboard); err != nil {
		return fmt.Errorf("bind scoreboard: %w", err)
	}
	// Registered last so it runs first: unmount before the loop and bus go away.
	s.DeferClose(s.overlay.Close)

	return nil
}

func (s *Server) openEventBus() (eventbus.Bus, error) {
	nodeID := eventbus.NodeID(s.cfg.InstanceID)

	switch s.cfg.EventBus {
	case config.EventBusRedis:
		rc := eventbus.DefaultRedisConfig()
		rc.Addr = s.cfg.RedisAddr
		rc.Password = s.cfg.RedisPassword
		rc.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(rc, nodeID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		return bus, nil

	case config.EventBusNATS:
		nc := eventbus.DefaultNATSConfig()
		nc.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(nc, nodeID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("nats event bus: %w", err)
		}
		return bus, nil

	default:
		return eventbus.NewMemoryBus(), nil
	}
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Overlay returns the managed overlay.
func (s *Server) Overlay() *overlay.Overlay {
	return s.overlay
}

// Scoreboard returns the bound data source.
func (s *Server) Scoreboard() *viewmodel.Scoreboard {
	return s.scoreboard
}

// LogBuffer returns the in-memory log capture, or nil when disabled.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order. Every closer runs; the
// errors are joined.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("ui loop exited")
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		viewmodel.Follow(ctx, s.bus, s.scoreboard, s.logger)
	}()

	if err := s.mountOverlay(); err != nil {
		s.logger.Warn().Err(err).Msg("overlay mounted with errors")
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	// Stop timers while the loop can still run the teardown.
	if err := s.unmountOverlay(); err != nil {
		s.logger.Warn().Err(err).Msg("overlay unmounted with errors")
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) mountOverlay() error {
	err := s.overlay.Mount()
	s.bus.Publish(events.EventOverlayMounted, events.Payload{"preview": s.cfg.Preview})
	return err
}

func (s *Server) unmountOverlay() error {
	err := s.overlay.Unmount()
	s.bus.Publish(events.EventOverlayUnmounted, events.Payload{})
	return err
}
