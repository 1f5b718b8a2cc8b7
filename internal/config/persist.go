// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/autobrr/magnetarr/pkg/fsutil"
)

const (
	lockedByEnv      = "environment"
	lockedByEnvEmpty = "environment (empty)"
)

// persistMu serialises writes to config.toml.
var persistMu sync.Mutex

// logField ties a log setting to its API name, config key and locking env var.
type logField struct {
	name string
	key  string
	env  string
}

var logFields = []logField{
	{name: "level", key: "logLevel", env: envPrefix + "LOG_LEVEL"},
	{name: "path", key: "logPath", env: envPrefix + "LOG_PATH"},
	{name: "maxSize", key: "logMaxSize", env: envPrefix + "LOG_MAX_SIZE"},
	{name: "maxBackups", key: "logMaxBackups", env: envPrefix + "LOG_MAX_BACKUPS"},
}

// logValues is a snapshot of the log section of the config.
type logValues struct {
	level      string
	path       string
	maxSize    int
	maxBackups int
}

func (c *AppConfig) logValues() logValues {
	return logValues{
		level:      c.Config.LogLevel,
		path:       c.Config.LogPath,
		maxSize:    c.Config.LogMaxSize,
		maxBackups: c.Config.LogMaxBackups,
	}
}

func (c *AppConfig) setLogValues(v logValues) {
	c.Config.LogLevel = v.level
	c.Config.LogPath = v.path
	c.Config.LogMaxSize = v.maxSize
	c.Config.LogMaxBackups = v.maxBackups
	c.viper.Set("logLevel", v.level)
	c.viper.Set("logPath", v.path)
	c.viper.Set("logMaxSize", v.maxSize)
	c.viper.Set("logMaxBackups", v.maxBackups)
}

// tomlAssignment is one "key = value" line. An empty literal comments the key out.
type tomlAssignment struct {
	key     string
	literal string
}

func (a tomlAssignment) line() string {
	if a.literal == "" {
		return fmt.Sprintf("#%s = %q", a.key, "")
	}
	return a.key + " = " + a.literal
}

// setTOMLKeys rewrites the top level assignments of keys, case-insensitively,
// and appends the ones the document lacks under header. Comment lines are kept.
func setTOMLKeys(content, header string, assignments []tomlAssignment) string {
	byKey := make(map[string]tomlAssignment, len(assignments))
	for _, a := range assignments {
		byKey[strings.ToLower(a.key)] = a
	}

	lines := strings.Split(content, "\n")
	seen := make(map[string]bool, len(assignments))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		if a, found := byKey[strings.ToLower(strings.TrimSpace(key))]; found {
			lines[i] = a.line()
			seen[strings.ToLower(a.key)] = true
		}
	}

	var missing []string
	for _, a := range assignments {
		if !seen[strings.ToLower(a.key)] && a.literal != "" {
			missing = append(missing, a.line())
		}
	}
	if len(missing) > 0 {
		lines = append(lines, "", "# "+header)
		lines = append(lines, missing...)
	}
	return strings.Join(lines, "\n")
}

// updateLogSettingsInTOML sets the log keys in a config document.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	pathLiteral := ""
	if path != "" {
		pathLiteral = strconv.Quote(path)
	}
	return setTOMLKeys(content, "Log settings", []tomlAssignment{
		{key: "logLevel", literal: strconv.Quote(level)},
		{key: "logPath", literal: pathLiteral},
		{key: "logMaxSize", literal: strconv.Itoa(maxSize)},
		{key: "logMaxBackups", literal: strconv.Itoa(maxBackups)},
	})
}

// PersistLogSettings writes the log keys back to config.toml, leaving the
// rest of the file untouched.
func (c *AppConfig) PersistLogSettings(level, path string, maxSize, maxBackups int) error {
	persistMu.Lock()
	defer persistMu.Unlock()

	configPath := c.viper.ConfigFileUsed()
	if configPath == "" {
		return errors.New("no config file path available")
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, path, maxSize, maxBackups)
	if err := fsutil.WriteFileAtomic(configPath, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetLockedLogSettings lists the log settings pinned by environment variables.
func (c *AppConfig) GetLockedLogSettings() map[string]string {
	locked := make(map[string]string)
	for _, f := range logFields {
		value, ok := os.LookupEnv(f.env)
		switch {
		case !ok:
		case strings.TrimSpace(value) == "":
			locked[f.name] = lockedByEnvEmpty
		default:
			locked[f.name] = lockedByEnv
		}
	}
	return locked
}

// GetLogSettings returns the current log settings. Path is resolved against
// the config directory.
func (c *AppConfig) GetLogSettings() LogSettingsResponse {
	c.configMu.Lock()
	defer c.configMu.Unlock()
	return c.logSettingsLocked()
}

func (c *AppConfig) logSettingsLocked() LogSettingsResponse {
	return LogSettingsResponse{
		Level:      canonicalizeLogLevel(c.Config.LogLevel),
		Path:       c.ResolveLogPath(c.Config.LogPath),
		MaxSize:    c.Config.LogMaxSize,
		MaxBackups: c.Config.LogMaxBackups,
		ConfigPath: c.viper.ConfigFileUsed(),
		Locked:     c.GetLockedLogSettings(),
	}
}

// canonicalizeLogLevel upper-cases level, falling back to INFO.
func canonicalizeLogLevel(level string) string {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	switch normalized {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
		return normalized
	default:
		return "INFO"
	}
}

func (u LogSettingsUpdate) touches(name string) bool {
	switch name {
	case "level":
		return u.Level != nil
	case "path":
		return u.Path != nil
	case "maxSize":
		return u.MaxSize != nil
	case "maxBackups":
		return u.MaxBackups != nil
	}
	return false
}

func (u LogSettingsUpdate) apply(v logValues) logValues {
	if u.Level != nil {
		v.level = canonicalizeLogLevel(*u.Level)
	}
	if u.Path != nil {
		v.path = *u.Path
	}
	if u.MaxSize != nil {
		v.maxSize = *u.MaxSize
	}
	if u.MaxBackups != nil {
		v.maxBackups = *u.MaxBackups
	}
	return v
}

// UpdateLogSettings applies update to the running logger and persists it.
// Settings pinned by the environment cannot be changed. On failure the
// previous settings are restored.
func (c *AppConfig) UpdateLogSettings(update LogSettingsUpdate) (LogSettingsResponse, error) {
	c.configMu.Lock()
	defer c.configMu.Unlock()

	locked := c.GetLockedLogSettings()
	for _, f := range logFields {
		if by := locked[f.name]; by != "" && update.touches(f.name) {
			return LogSettingsResponse{}, fmt.Errorf("cannot modify %s: locked by %s", f.name, by)
		}
	}

	previous := c.logValues()
	next := update.apply(previous)
	c.setLogValues(next)

	err := c.ApplyLogConfig()
	if err != nil {
		err = fmt.Errorf("failed to apply log configuration: %w", err)
	} else if perr := c.PersistLogSettings(next.level, next.path, next.maxSize, next.maxBackups); perr != nil {
		err = fmt.Errorf("failed to persist settings: %w", perr)
	}
	if err != nil {
		c.setLogValues(previous)
		c.ApplyLogConfig() //nolint:errcheck // the previous settings were valid when loaded
		return LogSettingsResponse{}, err
	}

	return c.logSettingsLocked(), nil
}
