// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/pkg/redact"
)

// Server serves /metrics on its own listener.
type Server struct {
	server         *http.Server
	basicAuthUsers map[string]string
	manager        *MetricsManager
}

// ParseBasicAuthUsers reads "user:pass,user2:pass2".
func ParseBasicAuthUsers(config string) map[string]string {
	users := make(map[string]string)
	if config == "" {
		return users
	}
	for cred := range strings.SplitSeq(config, ",") {
		parts := strings.SplitN(strings.TrimSpace(cred), ":", 2)
		if len(parts) == 2 && parts[0] != "" {
			users[parts[0]] = parts[1]
		} else {
			log.Warn().Msgf("Invalid basic auth credentials: %s", redact.BasicAuthUser(cred))
		}
	}
	return users
}

func NewMetricsServer(manager *MetricsManager, host string, port int, basicAuthUsersConfig string) *Server {
	s := &Server{
		basicAuthUsers: ParseBasicAuthUsers(basicAuthUsersConfig),
		manager:        manager,
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	if len(s.basicAuthUsers) > 0 {
		router.Use(BasicAuth("metrics", s.basicAuthUsers))
	}

	handler := manager.Handler()
	router.Method(http.MethodGet, "/metrics", handler)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) ListenAndServe() error {
	log.Info().
		Str("address", s.server.Addr).
		Msg("Starting Prometheus metrics server")

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// BasicAuth protects the scrape endpoint when metricsBasicAuthUsers is set.
func BasicAuth(realm string, users map[string]string) func(http.Handler) http.Handler {
	return middleware.BasicAuth(realm, users)
}
