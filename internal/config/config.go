// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/magnetarr/internal/domain"
	"github.com/autobrr/magnetarr/pkg/fsutil"
)

const (
	appName        = "magnetarr"
	configFileName = "config.toml"
	envPrefix      = "MAGNETARR__"
)

// envBindings maps config keys to the environment variables that override them.
// The prefixed name wins over the legacy MIRCREW_*, QBITTORRENT_* and sonarr_* names.
var envBindings = map[string][]string{
	"host":                   {envPrefix + "HOST"},
	"port":                   {envPrefix + "PORT"},
	"baseUrl":                {envPrefix + "BASE_URL"},
	"apiKey":                 {envPrefix + "API_KEY"},
	"corsOrigins":            {envPrefix + "CORS_ORIGINS"},
	"dataDir":                {envPrefix + "DATA_DIR"},
	"dryRun":                 {envPrefix + "DRY_RUN", "TEST_MODE"},
	"logLevel":               {envPrefix + "LOG_LEVEL"},
	"logPath":                {envPrefix + "LOG_PATH"},
	"logMaxSize":             {envPrefix + "LOG_MAX_SIZE"},
	"logMaxBackups":          {envPrefix + "LOG_MAX_BACKUPS"},
	"metricsEnabled":         {envPrefix + "METRICS_ENABLED"},
	"metricsHost":            {envPrefix + "METRICS_HOST"},
	"metricsPort":            {envPrefix + "METRICS_PORT"},
	"metricsBasicAuthUsers":  {envPrefix + "METRICS_BASIC_AUTH_USERS"},
	"forumType":              {envPrefix + "FORUM_TYPE", "FORUM_TYPE"},
	"forumBaseUrl":           {envPrefix + "FORUM_BASE_URL", "MIRCREW_BASE_URL"},
	"forumUsername":          {envPrefix + "FORUM_USERNAME", "MIRCREW_USERNAME"},
	"forumPassword":          {envPrefix + "FORUM_PASSWORD", "MIRCREW_PASSWORD"},
	"forumSubforums":         {envPrefix + "FORUM_SUBFORUMS"},
	"forumRequestsPerSecond": {envPrefix + "FORUM_REQUESTS_PER_SECOND"},
	"forumLoginAttempts":     {envPrefix + "FORUM_LOGIN_ATTEMPTS"},
	"torrentClient":          {envPrefix + "TORRENT_CLIENT", "TORRENT_CLIENT"},
	"torrentUrl":             {envPrefix + "TORRENT_URL", "QBITTORRENT_URL"},
	"torrentUsername":        {envPrefix + "TORRENT_USERNAME", "QBITTORRENT_USERNAME"},
	"torrentPassword":        {envPrefix + "TORRENT_PASSWORD", "QBITTORRENT_PASSWORD"},
	"torrentBasicUser":       {envPrefix + "TORRENT_BASIC_USER"},
	"torrentBasicPass":       {envPrefix + "TORRENT_BASIC_PASS"},
	"torrentTlsSkipVerify":   {envPrefix + "TORRENT_TLS_SKIP_VERIFY"},
	"torrentCategory":        {envPrefix + "TORRENT_CATEGORY"},
	"sonarrUrl":              {envPrefix + "SONARR_URL", "sonarr_applicationurl", "SONARR_APPLICATIONURL"},
	"sonarrApiKey":           {envPrefix + "SONARR_API_KEY", "sonarr_apikey", "SONARR_APIKEY"},
	"unresolvedPolicy":       {envPrefix + "UNRESOLVED_POLICY"},
	"seasonWord":             {envPrefix + "SEASON_WORD"},
	"addDelay":               {envPrefix + "ADD_DELAY"},
	"settleDelay":            {envPrefix + "SETTLE_DELAY"},
	"webhookTimeout":         {envPrefix + "WEBHOOK_TIMEOUT"},
	"threadCacheTtl":         {envPrefix + "THREAD_CACHE_TTL"},
	"threadCacheMaxSize":     {envPrefix + "THREAD_CACHE_MAX_SIZE"},
}

// AppConfig owns the loaded configuration and the logger set up from it.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configMu   sync.Mutex
	configDir  string
	logManager *LogManager
}

// New loads config.toml from configDirOrPath, creating a default one when missing,
// applies environment overrides and configures logging.
func New(configDirOrPath, version string) (*AppConfig, error) {
	c := &AppConfig{
		Config:     &domain.Config{},
		viper:      viper.New(),
		logManager: NewLogManager(version),
	}
	c.logManager.Initialize()
	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}
	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if c.Config.DataDir == "" {
		c.Config.DataDir = c.configDir
	}

	if err := c.ApplyLogConfig(); err != nil {
		log.Warn().Err(err).Msg("could not enable file logging, logging to stderr only")
	}
	return c, nil
}

func (c *AppConfig) defaults() {
	v := c.viper
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 7478)
	v.SetDefault("baseUrl", "/")
	v.SetDefault("apiKey", "")
	v.SetDefault("corsOrigins", []string{})
	v.SetDefault("dataDir", "")
	v.SetDefault("dryRun", false)
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logPath", "")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("metricsEnabled", false)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 9074)
	v.SetDefault("metricsBasicAuthUsers", "")
	v.SetDefault("forumType", "mircrew")
	v.SetDefault("forumBaseUrl", "")
	v.SetDefault("forumUsername", "")
	v.SetDefault("forumPassword", "")
	v.SetDefault("forumSubforums", []int{})
	v.SetDefault("forumRequestsPerSecond", 2.0)
	v.SetDefault("forumLoginAttempts", 0)
	v.SetDefault("torrentClient", "qbittorrent")
	v.SetDefault("torrentUrl", "http://localhost:8080")
	v.SetDefault("torrentUsername", "admin")
	v.SetDefault("torrentPassword", "")
	v.SetDefault("torrentBasicUser", "")
	v.SetDefault("torrentBasicPass", "")
	v.SetDefault("torrentTlsSkipVerify", false)
	v.SetDefault("torrentCategory", "sonarr")
	v.SetDefault("sonarrUrl", "")
	v.SetDefault("sonarrApiKey", "")
	v.SetDefault("unresolvedPolicy", "reject")
	v.SetDefault("seasonWord", "Stagione")
	v.SetDefault("addDelay", time.Second)
	v.SetDefault("settleDelay", 3*time.Second)
	v.SetDefault("webhookTimeout", 5*time.Minute)
	v.SetDefault("threadCacheTtl", 180*24*time.Hour)
	v.SetDefault("threadCacheMaxSize", 100)

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to bind environment variable")
		}
	}
}

func (c *AppConfig) load(configDirOrPath string) error {
	if configDirOrPath == "" {
		configDirOrPath = GetDefaultConfigDir()
	}

	configPath := configDirOrPath
	if !strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		configPath = filepath.Join(configDirOrPath, configFileName)
	}
	c.configDir = filepath.Dir(configPath)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(configPath); err != nil {
			// A read-only config dir still works with environment variables only.
			log.Warn().Err(err).Str("path", configPath).Msg("could not create default config")
			return nil
		}
		log.Info().Str("path", configPath).Msg("created default config")
	}

	c.viper.SetConfigFile(configPath)
	c.viper.SetConfigType("toml")
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return nil
}

// WatchLogSettings picks up log changes made to config.toml while serving.
// Other keys need a restart.
func (c *AppConfig) WatchLogSettings() {
	if c.viper.ConfigFileUsed() == "" {
		return
	}
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.reloadLogSettings()
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reloadLogSettings() {
	c.configMu.Lock()
	defer c.configMu.Unlock()

	next := logValues{
		level:      c.viper.GetString("logLevel"),
		path:       c.viper.GetString("logPath"),
		maxSize:    c.viper.GetInt("logMaxSize"),
		maxBackups: c.viper.GetInt("logMaxBackups"),
	}
	if next == c.logValues() {
		return
	}

	previous := c.logValues()
	c.setLogValues(next)
	if err := c.ApplyLogConfig(); err != nil {
		log.Error().Err(err).Msg("ignoring invalid log settings from config file")
		c.setLogValues(previous)
		c.ApplyLogConfig() //nolint:errcheck // the previous settings were valid when loaded
		return
	}
	log.Info().Str("level", canonicalizeLogLevel(next.level)).Msg("log settings reloaded")
}

// ConfigDir is the directory holding config.toml.
func (c *AppConfig) ConfigDir() string {
	return c.configDir
}

// DataPath resolves a file name inside the data directory.
func (c *AppConfig) DataPath(name string) string {
	return filepath.Join(c.Config.DataDir, name)
}

// ResolveLogPath makes relative log paths relative to the config directory.
func (c *AppConfig) ResolveLogPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.configDir, path)
}

// ApplyLogConfig pushes the log settings to the global logger.
func (c *AppConfig) ApplyLogConfig() error {
	return c.logManager.Apply(c.Config.LogLevel, c.ResolveLogPath(c.Config.LogPath), c.Config.LogMaxSize, c.Config.LogMaxBackups)
}

// GetDefaultConfigDir returns the directory config.toml lives in when no
// --config-dir is given.
func GetDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		// Docker images mount the config volume at /config.
		if filepath.Clean(xdg) == "/config" {
			return "/config"
		}
		return filepath.Join(xdg, appName)
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appName)
}

var defaultConfigTemplate = template.Must(template.New("config").Parse(`# config.toml - Auto-generated by magnetarr

# Webhook server
host = "{{ .Host }}"
port = {{ .Port }}
#baseUrl = "/"

# Key required by the webhook endpoint (X-API-Key header or ?apikey=)
apiKey = "{{ .APIKey }}"

# Where the forum session and the thread cache are stored (defaults to the config dir)
#dataDir = ""

# Log what would be sent to the torrent client without changing it
dryRun = false

# Log settings
logLevel = "INFO"
#logPath = "log/magnetarr.log"
logMaxSize = 50
logMaxBackups = 3

# Prometheus metrics
metricsEnabled = false
metricsHost = "127.0.0.1"
metricsPort = 9074
#metricsBasicAuthUsers = "user:password"

# Forum: mircrew or phpbb
forumType = "mircrew"
#forumBaseUrl = "https://mircrew-releases.org/"
forumUsername = ""
forumPassword = ""
#forumSubforums = [28, 51, 52, 30]
forumRequestsPerSecond = 2.0

# Torrent client
torrentClient = "qbittorrent"
torrentUrl = "http://localhost:8080"
torrentUsername = "admin"
torrentPassword = ""
torrentCategory = "sonarr"

# Sonarr, optional: used to find missing episodes when a season pack is grabbed
#sonarrUrl = "http://localhost:8989"
#sonarrApiKey = ""

# Magnets with no episode context: reject, or season (accepted for season grabs)
unresolvedPolicy = "reject"
seasonWord = "Stagione"
addDelay = "1s"
settleDelay = "3s"
webhookTimeout = "5m"

threadCacheTtl = "4320h"
threadCacheMaxSize = 100
`))

// WriteDefaultConfig writes a commented config.toml with a fresh API key.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	key, err := generateAPIKey()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = defaultConfigTemplate.Execute(&buf, domain.Config{
		Host:   defaultHost(),
		Port:   7478,
		APIKey: key,
	})
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o600)
}

// defaultHost listens on all interfaces inside containers.
func defaultHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "0.0.0.0"
	}
	if os.Getenv("XDG_CONFIG_HOME") == "/config" {
		return "0.0.0.0"
	}
	return "localhost"
}
