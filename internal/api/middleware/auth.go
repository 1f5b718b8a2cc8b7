// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// IsAuthenticated checks the X-API-Key header against apiKey. Webhook paths also
// accept ?apikey= since Sonarr cannot set custom headers on webhook connections.
// An empty apiKey disables the check.
func IsAuthenticated(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" && isWebhookPath(r.URL.Path) {
				provided = r.URL.Query().Get("apikey")
			}

			if provided == "" {
				http.Error(w, "Unauthorized", http.StatusForbidden)
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Invalid API key")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isWebhookPath uses Contains to support custom base URLs (e.g. /magnetarr/api/webhook/sonarr).
func isWebhookPath(path string) bool {
	return strings.Contains(path, "/api/webhook/")
}
