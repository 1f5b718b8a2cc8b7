// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogManager handles log configuration with safe runtime reconfiguration.
type LogManager struct {
	out         *switchableWriter
	version     string
	mu          sync.Mutex
	initialized atomic.Bool
}

// NewLogManager creates a new LogManager with the given version string.
func NewLogManager(version string) *LogManager {
	return &LogManager{
		out:     newSwitchableWriter(baseLogWriter(version)),
		version: version,
	}
}

// Initialize sets up the global logger to use the switchable writer.
func (lm *LogManager) Initialize() {
	if lm.initialized.Swap(true) {
		return
	}
	// The logger itself stays at trace so the global level can change at runtime
	// without mutating log.Logger.
	log.Logger = log.Logger.Output(lm.out).Level(zerolog.TraceLevel)
}

// Apply updates the log configuration with the given settings.
// Returns an error if file logging is requested but cannot be enabled.
func (lm *LogManager) Apply(level, logPath string, maxSize, maxBackups int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	setLogLevel(level)

	newWriter, newCloser, err := lm.buildWriter(baseLogWriter(lm.version), logPath, maxSize, maxBackups)
	if err != nil {
		return err
	}

	if oldCloser := lm.out.swap(newWriter, newCloser); oldCloser != nil {
		if closeErr := oldCloser.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("Failed to close old log rotator")
		}
	}
	return nil
}

func (lm *LogManager) buildWriter(baseWriter io.Writer, logPath string, maxSize, maxBackups int) (io.Writer, io.Closer, error) {
	if logPath == "" {
		return baseWriter, nil, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
	return io.MultiWriter(baseWriter, rotator), rotator, nil
}

// setLogLevel sets the global zerolog level, defaulting to info.
func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(canonicalizeLogLevel(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// baseLogWriter writes human readable lines to stderr. Sonarr captures the
// stderr of custom scripts, so colours are only used on a terminal.
func baseLogWriter(version string) io.Writer {
	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	}
	if strings.HasSuffix(version, "-dev") {
		w.TimeFormat = time.TimeOnly
	}
	return w
}

// switchableWriter forwards writes to a target that can be swapped atomically.
type switchableWriter struct {
	target atomic.Pointer[writerWithCloser]
}

type writerWithCloser struct {
	w      io.Writer
	closer io.Closer
}

func newSwitchableWriter(initial io.Writer) *switchableWriter {
	sw := &switchableWriter{}
	sw.target.Store(&writerWithCloser{w: initial})
	return sw
}

func (sw *switchableWriter) Write(p []byte) (int, error) {
	target := sw.target.Load()
	if target == nil || target.w == nil {
		return len(p), nil
	}
	return target.w.Write(p) //nolint:wrapcheck // io.Writer interface compliance
}

// swap installs w and returns the closer of the previous target.
func (sw *switchableWriter) swap(w io.Writer, closer io.Closer) io.Closer {
	old := sw.target.Swap(&writerWithCloser{w: w, closer: closer})
	if old == nil {
		return nil
	}
	return old.closer
}

func generateAPIKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LogSettingsResponse represents the log settings for API responses.
type LogSettingsResponse struct {
	Level      string            `json:"level"`
	Path       string            `json:"path"`
	MaxSize    int               `json:"maxSize"`
	MaxBackups int               `json:"maxBackups"`
	ConfigPath string            `json:"configPath,omitempty"`
	Locked     map[string]string `json:"locked,omitempty"`
}

// LogSettingsUpdate represents a request to update log settings.
type LogSettingsUpdate struct {
	Level      *string `json:"level,omitempty"`
	Path       *string `json:"path,omitempty"`
	MaxSize    *int    `json:"maxSize,omitempty"`
	MaxBackups *int    `json:"maxBackups,omitempty"`
}
