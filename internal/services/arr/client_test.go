// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Ping(t *testing.T) {
	tests := []struct {
		name           string
		responseCode   int
		responseBody   string
		wantErr        bool
		wantErrContain string
	}{
		{
			name:         "successful ping",
			responseCode: http.StatusOK,
			responseBody: `{"appName":"Sonarr","version":"4.0.0.123"}`,
			wantErr:      false,
		},
		{
			name:           "unauthorized",
			responseCode:   http.StatusUnauthorized,
			responseBody:   `{"error":"Unauthorized"}`,
			wantErr:        true,
			wantErrContain: "authentication failed",
		},
		{
			name:           "server error",
			responseCode:   http.StatusInternalServerError,
			responseBody:   `Internal Server Error`,
			wantErr:        true,
			wantErrContain: "unexpected status 500",
		},
		{
			name:           "empty appName",
			responseCode:   http.StatusOK,
			responseBody:   `{"appName":"","version":"4.0.0"}`,
			wantErr:        true,
			wantErrContain: "missing appName",
		},
		{
			name:           "invalid JSON",
			responseCode:   http.StatusOK,
			responseBody:   `not json`,
			wantErr:        true,
			wantErrContain: "failed to decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v3/system/status", r.URL.Path)
				assert.Equal(t, "test-api-key", r.Header.Get("X-Api-Key"))
				w.WriteHeader(tt.responseCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-api-key", nil)
			err := client.Ping(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrContain)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClient_ParseTitle(t *testing.T) {
	tests := []struct {
		name         string
		responseBody string
		want         *ParsedRelease
	}{
		{
			name: "single episode",
			responseBody: `{
				"title": "Breaking Bad S05E04",
				"parsedEpisodeInfo": {"seriesTitle": "breaking bad", "seasonNumber": 5, "episodeNumbers": [4]},
				"series": {"id": 12, "title": "Breaking Bad", "tvdbId": 81189}
			}`,
			want: &ParsedRelease{SeriesID: 12, SeriesTitle: "Breaking Bad", Season: 5, Episodes: []int{4}},
		},
		{
			name: "full season",
			responseBody: `{
				"title": "Breaking Bad Stagione 5",
				"parsedEpisodeInfo": {"seriesTitle": "Breaking Bad", "seasonNumber": 5, "episodeNumbers": [], "fullSeason": true},
				"series": {"id": 12, "title": "Breaking Bad"},
				"episodes": [{"seasonNumber": 5, "episodeNumber": 1}]
			}`,
			want: &ParsedRelease{SeriesID: 12, SeriesTitle: "Breaking Bad", Season: 5, Episodes: []int{}, FullSeason: true},
		},
		{
			name: "episodes from matched list",
			responseBody: `{
				"title": "Show 1x02",
				"parsedEpisodeInfo": {"seriesTitle": "Show", "seasonNumber": 1},
				"episodes": [{"seasonNumber": 1, "episodeNumber": 2}, {"seasonNumber": 2, "episodeNumber": 1}]
			}`,
			want: &ParsedRelease{SeriesTitle: "Show", Season: 1, Episodes: []int{2}},
		},
		{
			name:         "not recognised",
			responseBody: `{"title": "random"}`,
			want:         nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v3/parse", r.URL.Path)
				assert.NotEmpty(t, r.URL.Query().Get("title"))
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			got, err := NewClient(server.URL+"/", "key", nil).ParseTitle(context.Background(), "x")
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.SeriesID, got.SeriesID)
			assert.Equal(t, tt.want.SeriesTitle, got.SeriesTitle)
			assert.Equal(t, tt.want.Season, got.Season)
			assert.ElementsMatch(t, tt.want.Episodes, got.Episodes)
			assert.Equal(t, tt.want.FullSeason, got.FullSeason)
		})
	}
}

const episodesJSON = `[
	{"id": 1, "seriesId": 7, "seasonNumber": 1, "episodeNumber": 1, "hasFile": true, "monitored": true},
	{"id": 2, "seriesId": 7, "seasonNumber": 1, "episodeNumber": 2, "hasFile": false, "monitored": true},
	{"id": 3, "seriesId": 7, "seasonNumber": 1, "episodeNumber": 3, "hasFile": false, "monitored": false},
	{"id": 4, "seriesId": 7, "seasonNumber": 1, "episodeNumber": 4, "hasFile": false, "monitored": true},
	{"id": 5, "seriesId": 7, "seasonNumber": 2, "episodeNumber": 1, "hasFile": false, "monitored": true},
	{"id": 6, "seriesId": 7, "seasonNumber": 0, "episodeNumber": 1, "hasFile": false, "monitored": true}
]`

func newEpisodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/episode":
			assert.Equal(t, "7", r.URL.Query().Get("seriesId"))
			_, _ = w.Write([]byte(episodesJSON))
		case "/api/v3/series":
			_, _ = w.Write([]byte(`[{"id": 7, "title": "Test Series"}, {"id": 8, "title": "Another Series"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_MissingAndExisting(t *testing.T) {
	client := NewClient(newEpisodeServer(t).URL, "key", nil)
	ctx := context.Background()

	missing, err := client.MissingEpisodes(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, missing)

	existing, err := client.ExistingEpisodes(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, existing)

	none, err := client.MissingEpisodes(ctx, 7, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_SeriesByTitle(t *testing.T) {
	client := NewClient(newEpisodeServer(t).URL, "key", nil)
	ctx := context.Background()

	series, err := client.SeriesByTitle(ctx, "test series")
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Equal(t, 7, series.ID)

	series, err = client.SeriesByTitle(ctx, "Unknown")
	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestClient_BaseURLTrimmed(t *testing.T) {
	client := NewClient("http://localhost:8989/", "key", nil)
	assert.Equal(t, "http://localhost:8989", client.BaseURL())
}
