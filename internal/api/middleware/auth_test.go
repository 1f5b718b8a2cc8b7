// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthenticated_APIKeyQueryParam_CustomBaseURL(t *testing.T) {
	const apiKeyValue = "0123456789abcdef"

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := IsAuthenticated(apiKeyValue)(okHandler)

	tests := []struct {
		name           string
		path           string
		apiKeyQuery    string
		apiKeyHeader   string
		expectedStatus int
	}{
		{
			name:           "webhook with apikey query param (no base URL)",
			path:           "/api/webhook/sonarr",
			apiKeyQuery:    apiKeyValue,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "webhook with apikey query param (custom base URL /magnetarr/)",
			path:           "/magnetarr/api/webhook/sonarr",
			apiKeyQuery:    apiKeyValue,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "webhook with X-API-Key header",
			path:           "/api/webhook/sonarr",
			apiKeyHeader:   apiKeyValue,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "webhook without auth",
			path:           "/api/webhook/sonarr",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "webhook with invalid apikey",
			path:           "/api/webhook/sonarr",
			apiKeyQuery:    "invalid-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non-webhook endpoint should not accept apikey query param",
			path:           "/api/log-settings",
			apiKeyQuery:    apiKeyValue,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "non-webhook endpoint with header",
			path:           "/api/log-settings",
			apiKeyHeader:   apiKeyValue,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.path
			if tt.apiKeyQuery != "" {
				url += "?apikey=" + tt.apiKeyQuery
			}

			req := httptest.NewRequest(http.MethodPost, url, nil)
			if tt.apiKeyHeader != "" {
				req.Header.Set("X-API-Key", tt.apiKeyHeader)
			}

			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			assert.Equal(t, tt.expectedStatus, resp.Code, "unexpected status for %s", tt.name)
		})
	}
}

func TestIsAuthenticated_NoKeyConfigured(t *testing.T) {
	handler := IsAuthenticated("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/webhook/sonarr", nil))
	assert.Equal(t, http.StatusAccepted, resp.Code)
}
