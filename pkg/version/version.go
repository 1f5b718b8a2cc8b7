// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package version checks whether a newer release has been published.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/autobrr/magnetarr/pkg/httphelpers"
)

const defaultAPI = "https://api.github.com"

// Release is the subset of a GitHub release the checker reads.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        *string   `json:"name,omitempty"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Checker asks the releases API for the latest tag of a repository.
type Checker struct {
	Owner     string
	Repo      string
	UserAgent string

	baseURL    string
	httpClient *http.Client
}

type Option func(*Checker)

// WithBaseURL points the checker at another API host.
func WithBaseURL(u string) Option {
	return func(c *Checker) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) { c.httpClient = hc }
}

// NewChecker returns a configured Checker for the provided repository.
func NewChecker(owner, repo, userAgent string, opts ...Option) *Checker {
	c := &Checker{
		Owner:      owner,
		Repo:       repo,
		UserAgent:  userAgent,
		baseURL:    defaultAPI,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Checker) latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.Owner, c.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // closed by DrainAndClose
	if err != nil {
		return nil, err
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error getting releases for %s: %s", c.Repo, resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	return &release, nil
}

// CheckNewVersion reports whether a release newer than version exists.
// Development builds never report an update.
func (c *Checker) CheckNewVersion(ctx context.Context, version string) (bool, *Release, error) {
	if isDevelop(version) {
		return false, nil, nil
	}

	release, err := c.latest(ctx)
	if err != nil {
		return false, nil, err
	}

	newer, err := isNewer(version, release)
	if err != nil || !newer {
		return false, nil, err
	}
	return true, release, nil
}

// isNewer ignores prereleases unless the running build is one.
func isNewer(version string, release *Release) (bool, error) {
	current, err := goversion.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("error parsing current version: %w", err)
	}

	latest, err := goversion.NewVersion(release.TagName)
	if err != nil {
		return false, fmt.Errorf("error parsing release version: %w", err)
	}

	if current.Prerelease() == "" && (latest.Prerelease() != "" || release.Prerelease) {
		return false, nil
	}
	return latest.GreaterThan(current), nil
}

func isDevelop(version string) bool {
	if strings.HasPrefix(version, "pr-") || strings.HasSuffix(version, "-dev") || strings.HasSuffix(version, "-develop") {
		return true
	}
	return slices.Contains([]string{"dev", "develop", "main", "latest", ""}, version)
}
