// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api serves the Sonarr webhook receiver and a small management API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/api/handlers"
	"github.com/autobrr/magnetarr/internal/api/middleware"
	"github.com/autobrr/magnetarr/internal/config"
	"github.com/autobrr/magnetarr/internal/metrics"
	"github.com/autobrr/magnetarr/pkg/httphelpers"
)

// Webhook runs are slow (forum search, pacing between adds), so only a few run
// at once and the rest queue.
const (
	maxConcurrentRuns = 2
	runBacklog        = 32
)

// Dependencies are the collaborators the server routes to.
type Dependencies struct {
	Config         *config.AppConfig
	Runner         handlers.Runner
	Metrics        *metrics.MetricsManager
	Health         map[string]handlers.Checker
	VersionChecker handlers.ReleaseChecker
}

type Server struct {
	mu     sync.Mutex
	server *http.Server
	deps   *Dependencies
	logger zerolog.Logger
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		deps:   deps,
		logger: log.Logger.With().Str("module", "http").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	cfg := s.deps.Config.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recoverer)

	// Preflight requests are answered here, before authentication runs.
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	compressor, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, fmt.Errorf("failed to create compression adapter: %w", err)
	}
	r.Use(compressor)

	base := httphelpers.NormalizeBasePath(cfg.BaseURL)
	if base == "" {
		s.routes(r)
	} else {
		r.Route(base, s.routes)
	}

	log.Debug().Str("webhook", httphelpers.JoinBasePath(base, "/api/webhook/sonarr")).Msg("routes registered")
	return r, nil
}

func (s *Server) routes(r chi.Router) {
	cfg := s.deps.Config.Config

	health := handlers.NewHealthHandler(s.deps.Health)
	r.Get("/healthz", health.HandleHealth)
	r.Route("/health", health.Routes)

	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	webhook := handlers.NewWebhookHandler(s.deps.Runner, cfg.WebhookTimeout)
	logs := handlers.NewLogsHandler(s.deps.Config)
	version := handlers.NewVersionHandler(s.deps.VersionChecker)
	configHandler := handlers.NewConfigHandler(cfg)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.IsAuthenticated(cfg.APIKey))

		r.Route("/webhook", func(r chi.Router) {
			r.Use(middleware.ThrottleBacklog(maxConcurrentRuns, runBacklog, cfg.WebhookTimeout+time.Minute))
			webhook.Routes(r)
		})

		logs.Routes(r)
		r.Get("/config", configHandler.GetConfig)
		r.Get("/version", version.GetVersion)
		r.Get("/version/latest", version.GetLatestVersion)
	})
}

func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	cfg := s.deps.Config.Config
	if cfg.APIKey == "" {
		log.Warn().Msg("apiKey is empty, the webhook endpoint accepts unauthenticated requests")
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("address", addr).Msg("Starting webhook server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
