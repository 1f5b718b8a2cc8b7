// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/magnetarr/internal/buildinfo"
	"github.com/autobrr/magnetarr/pkg/httphelpers"
)

const defaultTimeout = 15 * time.Second

// Client is an HTTP client for the Sonarr v3 API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Sonarr API client. A nil httpClient gets a plain
// client with the default timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Ping tests connectivity via GET /api/v3/system/status
func (c *Client) Ping(ctx context.Context) error {
	var status SystemStatusResponse
	if err := c.getJSON(ctx, "/api/v3/system/status", nil, &status); err != nil {
		return err
	}

	if status.AppName == "" {
		return fmt.Errorf("invalid response: missing appName")
	}

	return nil
}

// ParseTitle asks Sonarr which series, season and episodes a release title covers.
// It returns nil without error when Sonarr does not recognise the title.
func (c *Client) ParseTitle(ctx context.Context, title string) (*ParsedRelease, error) {
	var parseResp SonarrParseResponse
	if err := c.getJSON(ctx, "/api/v3/parse", url.Values{"title": {title}}, &parseResp); err != nil {
		return nil, err
	}
	return parseResp.Parsed(), nil
}

// SeriesByTitle finds a series by case-insensitive title. It returns nil when absent.
func (c *Client) SeriesByTitle(ctx context.Context, title string) (*SonarrSeries, error) {
	var series []SonarrSeries
	if err := c.getJSON(ctx, "/api/v3/series", nil, &series); err != nil {
		return nil, err
	}
	for i := range series {
		if strings.EqualFold(series[i].Title, title) {
			return &series[i], nil
		}
	}
	return nil, nil
}

// Episodes lists every episode of a series
func (c *Client) Episodes(ctx context.Context, seriesID int) ([]Episode, error) {
	var episodes []Episode
	params := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := c.getJSON(ctx, "/api/v3/episode", params, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// MissingEpisodes returns the monitored episodes of season that have no file yet, sorted.
func (c *Client) MissingEpisodes(ctx context.Context, seriesID, season int) ([]int, error) {
	return c.seasonEpisodes(ctx, seriesID, season, func(ep Episode) bool {
		return ep.Monitored && !ep.HasFile
	})
}

// ExistingEpisodes returns the episodes of season that already have a file, sorted.
func (c *Client) ExistingEpisodes(ctx context.Context, seriesID, season int) ([]int, error) {
	return c.seasonEpisodes(ctx, seriesID, season, func(ep Episode) bool {
		return ep.HasFile
	})
}

func (c *Client) seasonEpisodes(ctx context.Context, seriesID, season int, keep func(Episode) bool) ([]int, error) {
	episodes, err := c.Episodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, ep := range episodes {
		if ep.SeasonNumber == season && ep.EpisodeNumber > 0 && keep(ep) {
			out = append(out, ep.EpisodeNumber)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // closed by DrainAndClose
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("authentication failed: invalid API key")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// setHeaders sets the required headers for Sonarr API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	req.Header.Set("Accept", "application/json")
}

// BaseURL returns the base URL this client is configured for
func (c *Client) BaseURL() string {
	return c.baseURL
}
