// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/autobrr/magnetarr/pkg/redact"
)

// Logger writes one access line per request. Webhook deliveries are logged at
// info, everything else (health probes, metrics scrapes) at trace. The query
// string is redacted since webhook callers may pass ?apikey=.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				level := zerolog.TraceLevel
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					level = zerolog.WarnLevel
				case strings.Contains(r.URL.Path, "/api/webhook/"):
					level = zerolog.InfoLevel
				}

				logger.WithLevel(level).
					Str("requestId", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("url", redact.URLString(r.URL.RequestURI())).
					Str("remoteIp", r.RemoteAddr).
					Str("userAgent", r.UserAgent()).
					Int("status", ww.Status()).
					Int("bytesOut", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
