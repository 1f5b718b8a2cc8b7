// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package version

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T, tag string, prerelease bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/autobrr/magnetarr/releases/latest", r.URL.Path)
		assert.Equal(t, "magnetarr-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"tag_name":%q,"html_url":"https://example.com/%s","prerelease":%t}`, tag, tag, prerelease)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckNewVersion(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		latest     string
		prerelease bool
		want       bool
	}{
		{name: "newer", current: "v1.0.0", latest: "v1.1.0", want: true},
		{name: "same", current: "v1.1.0", latest: "v1.1.0"},
		{name: "older", current: "v1.2.0", latest: "v1.1.0"},
		{name: "prerelease tag ignored", current: "v1.0.0", latest: "v1.1.0-beta.1"},
		{name: "prerelease flag ignored", current: "v1.0.0", latest: "v1.1.0", prerelease: true},
		{name: "prerelease build sees prerelease", current: "v1.0.0-beta.1", latest: "v1.0.0-beta.2", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := releaseServer(t, tt.latest, tt.prerelease)
			c := NewChecker("autobrr", "magnetarr", "magnetarr-test", WithBaseURL(srv.URL+"/"))

			newer, release, err := c.CheckNewVersion(context.Background(), tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, newer)
			if tt.want {
				require.NotNil(t, release)
				assert.Equal(t, tt.latest, release.TagName)
			}
		})
	}
}

func TestCheckNewVersionSkipsDevelop(t *testing.T) {
	c := NewChecker("autobrr", "magnetarr", "", WithBaseURL("http://127.0.0.1:1"))
	for _, v := range []string{"", "dev", "0.0.0-dev", "pr-12", "main"} {
		newer, release, err := c.CheckNewVersion(context.Background(), v)
		require.NoError(t, err)
		assert.False(t, newer)
		assert.Nil(t, release)
	}
}

func TestCheckNewVersionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewChecker("autobrr", "magnetarr", "", WithBaseURL(srv.URL))
	_, _, err := c.CheckNewVersion(context.Background(), "v1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
