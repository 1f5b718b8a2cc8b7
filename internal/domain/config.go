// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"time"

	"github.com/autobrr/magnetarr/pkg/redact"
)

// Config is the application configuration as read from config.toml and the environment.
type Config struct {
	Host        string   `toml:"host" mapstructure:"host"`
	Port        int      `toml:"port" mapstructure:"port"`
	BaseURL     string   `toml:"baseUrl" mapstructure:"baseUrl"`
	APIKey      string   `toml:"apiKey" mapstructure:"apiKey"`
	CORSOrigins []string `toml:"corsOrigins" mapstructure:"corsOrigins"`
	DataDir     string   `toml:"dataDir" mapstructure:"dataDir"`
	DryRun      bool     `toml:"dryRun" mapstructure:"dryRun"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	ForumType              string  `toml:"forumType" mapstructure:"forumType"`
	ForumBaseURL           string  `toml:"forumBaseUrl" mapstructure:"forumBaseUrl"`
	ForumUsername          string  `toml:"forumUsername" mapstructure:"forumUsername"`
	ForumPassword          string  `toml:"forumPassword" mapstructure:"forumPassword"`
	ForumSubforums         []int   `toml:"forumSubforums" mapstructure:"forumSubforums"`
	ForumRequestsPerSecond float64 `toml:"forumRequestsPerSecond" mapstructure:"forumRequestsPerSecond"`
	ForumLoginAttempts     int     `toml:"forumLoginAttempts" mapstructure:"forumLoginAttempts"`

	TorrentClient        string `toml:"torrentClient" mapstructure:"torrentClient"`
	TorrentURL           string `toml:"torrentUrl" mapstructure:"torrentUrl"`
	TorrentUsername      string `toml:"torrentUsername" mapstructure:"torrentUsername"`
	TorrentPassword      string `toml:"torrentPassword" mapstructure:"torrentPassword"`
	TorrentBasicUser     string `toml:"torrentBasicUser" mapstructure:"torrentBasicUser"`
	TorrentBasicPass     string `toml:"torrentBasicPass" mapstructure:"torrentBasicPass"`
	TorrentTLSSkipVerify bool   `toml:"torrentTlsSkipVerify" mapstructure:"torrentTlsSkipVerify"`
	TorrentCategory      string `toml:"torrentCategory" mapstructure:"torrentCategory"`

	SonarrURL    string `toml:"sonarrUrl" mapstructure:"sonarrUrl"`
	SonarrAPIKey string `toml:"sonarrApiKey" mapstructure:"sonarrApiKey"`

	UnresolvedPolicy string        `toml:"unresolvedPolicy" mapstructure:"unresolvedPolicy"`
	SeasonWord       string        `toml:"seasonWord" mapstructure:"seasonWord"`
	AddDelay         time.Duration `toml:"addDelay" mapstructure:"addDelay"`
	SettleDelay      time.Duration `toml:"settleDelay" mapstructure:"settleDelay"`
	WebhookTimeout   time.Duration `toml:"webhookTimeout" mapstructure:"webhookTimeout"`

	ThreadCacheTTL     time.Duration `toml:"threadCacheTtl" mapstructure:"threadCacheTtl"`
	ThreadCacheMaxSize int           `toml:"threadCacheMaxSize" mapstructure:"threadCacheMaxSize"`
}

// Redacted returns a copy safe to print or serve. API keys keep a short tail
// and URLs lose any embedded credentials.
func (c Config) Redacted() Config {
	c.APIKey = MaskKey(c.APIKey)
	c.SonarrAPIKey = MaskKey(c.SonarrAPIKey)
	c.ForumPassword = RedactString(c.ForumPassword)
	c.TorrentPassword = RedactString(c.TorrentPassword)
	c.TorrentBasicPass = RedactString(c.TorrentBasicPass)
	c.MetricsBasicAuthUsers = RedactUserList(c.MetricsBasicAuthUsers)
	c.ForumBaseURL = redact.URLString(c.ForumBaseURL)
	c.TorrentURL = redact.URLString(c.TorrentURL)
	c.SonarrURL = redact.URLString(c.SonarrURL)
	c.ForumSubforums = append([]int(nil), c.ForumSubforums...)
	c.CORSOrigins = append([]string(nil), c.CORSOrigins...)
	return c
}
