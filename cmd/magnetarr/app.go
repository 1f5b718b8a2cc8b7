// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/api/handlers"
	"github.com/autobrr/magnetarr/internal/buildinfo"
	"github.com/autobrr/magnetarr/internal/config"
	"github.com/autobrr/magnetarr/internal/domain"
	"github.com/autobrr/magnetarr/internal/extract"
	"github.com/autobrr/magnetarr/internal/forum"
	_ "github.com/autobrr/magnetarr/internal/forum/phpbb"
	"github.com/autobrr/magnetarr/internal/metrics"
	"github.com/autobrr/magnetarr/internal/pipeline"
	"github.com/autobrr/magnetarr/internal/services/arr"
	"github.com/autobrr/magnetarr/internal/session"
	"github.com/autobrr/magnetarr/internal/threadcache"
	"github.com/autobrr/magnetarr/internal/torrent"
	_ "github.com/autobrr/magnetarr/internal/torrent/qbittorrent"
	"github.com/autobrr/magnetarr/internal/transport"
	"github.com/autobrr/magnetarr/pkg/redact"
	"github.com/autobrr/magnetarr/pkg/releases"
)

const (
	sessionFileName     = "session.json"
	threadCacheFileName = "thread_cache.yml"
)

// app holds the collaborators of one process.
type app struct {
	cfg      *config.AppConfig
	metrics  *metrics.MetricsManager
	forum    forum.Forum
	torrents torrent.Client
	sonarr   *arr.Service
	cache    *threadcache.Cache
	runner   *pipeline.Runner
}

func loadConfig(configDir string, dryRun bool) (*config.AppConfig, error) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dryRun {
		cfg.Config.DryRun = true
	}
	return cfg, nil
}

// newApp wires the pipeline. ev carries the Sonarr connection details a hook
// invocation received, which fill in what the config leaves empty.
func newApp(cfg *config.AppConfig, ev arr.HookEvent) (*app, error) {
	c := cfg.Config
	a := &app{cfg: cfg, metrics: metrics.NewMetricsManager()}

	store, err := session.New(cfg.DataPath(sessionFileName))
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load saved forum session, logging in again")
	}

	a.forum, err = forum.New(forum.Config{
		Type:          c.ForumType,
		BaseURL:       c.ForumBaseURL,
		Username:      c.ForumUsername,
		Password:      c.ForumPassword,
		Subforums:     c.ForumSubforums,
		LoginAttempts: c.ForumLoginAttempts,
		HTTP: transport.Options{
			RequestsPerSecond: c.ForumRequestsPerSecond,
			Burst:             1,
			UserAgent:         buildinfo.UserAgent,
		},
	}, store)
	if err != nil {
		return nil, fmt.Errorf("forum: %w", err)
	}

	a.torrents, err = torrent.New(torrent.Config{
		Type:          c.TorrentClient,
		URL:           c.TorrentURL,
		Username:      c.TorrentUsername,
		Password:      c.TorrentPassword,
		BasicUser:     c.TorrentBasicUser,
		BasicPass:     c.TorrentBasicPass,
		TLSSkipVerify: c.TorrentTLSSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("torrent client: %w", err)
	}
	if c.DryRun {
		log.Warn().Msg("dry run: nothing will be added to or removed from the torrent client")
		a.torrents = torrent.DryRun(a.torrents)
	}

	a.sonarr = arr.NewService(sonarrClient(c, ev))

	a.cache = threadcache.Open(cfg.DataPath(threadCacheFileName),
		threadcache.WithTTL(c.ThreadCacheTTL),
		threadcache.WithMaxSize(c.ThreadCacheMaxSize),
		threadcache.WithObserver(a.metrics.ObserveCacheLookup),
	)

	policy, err := extract.ParseUnresolvedPolicy(c.UnresolvedPolicy)
	if err != nil {
		return nil, err
	}

	a.runner = pipeline.New(a.forum, a.torrents, pipeline.Options{
		Category:    c.TorrentCategory,
		AddDelay:    c.AddDelay,
		SettleDelay: c.SettleDelay,
		Unresolved:  policy,
		SeasonWord:  c.SeasonWord,
		DryRun:      c.DryRun,
	},
		pipeline.WithThreadCache(a.cache),
		pipeline.WithNeeds(a.sonarr),
		pipeline.WithObserver(a.metrics),
		pipeline.WithReleaseParser(releases.NewDefaultParser()),
	)

	log.Debug().
		Str("forum", a.forum.Name()).
		Str("torrentClient", a.torrents.Name()).
		Bool("sonarr", a.sonarr.Client() != nil).
		Str("unresolved", policy.String()).
		Msg("pipeline ready")
	return a, nil
}

// sonarrClient prefers the configured instance and falls back to the one the
// hook was started by. Without an API key there is no client.
func sonarrClient(c *domain.Config, ev arr.HookEvent) *arr.Client {
	baseURL, apiKey := c.SonarrURL, c.SonarrAPIKey
	if baseURL == "" {
		baseURL = ev.ApplicationURL
	}
	if apiKey == "" {
		apiKey = ev.APIKey
	}
	if baseURL == "" || apiKey == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		log.Warn().Str("url", redact.URLString(baseURL)).Msg("ignoring invalid Sonarr URL")
		return nil
	}

	httpClient := transport.NewClient(transport.Options{UserAgent: buildinfo.UserAgent})
	return arr.NewClient(baseURL, apiKey, httpClient)
}

// healthChecks backs the readiness endpoint.
func (a *app) healthChecks() map[string]handlers.Checker {
	checks := map[string]handlers.Checker{
		"torrentClient": a.torrents.Login,
	}
	if client := a.sonarr.Client(); client != nil {
		checks["sonarr"] = client.Ping
	}
	return checks
}
