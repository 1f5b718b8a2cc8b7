// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package forum defines what the pipeline needs from a release forum and keeps
// the registry of forum implementations.
package forum

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/autobrr/magnetarr/internal/session"
	"github.com/autobrr/magnetarr/internal/transport"
)

var (
	ErrUnknownType    = errors.New("unknown forum type")
	ErrLoginFailed    = errors.New("forum login failed")
	ErrNoCredentials  = errors.New("forum credentials not configured")
	ErrThreadNotFound = errors.New("thread not found")
)

// Thread is a search hit.
type Thread struct {
	ID    string
	URL   string
	Title string
}

// Page is a fetched thread.
type Page struct {
	ThreadID string
	URL      string
	Title    string
	HTML     string
	// PostRef identifies the first post of the thread, empty when unknown.
	PostRef string
}

// Forum is a release forum with a login session.
type Forum interface {
	Name() string
	// EnsureSession verifies the stored session and logs in again when it expired.
	EnsureSession(ctx context.Context) error
	Search(ctx context.Context, query string) ([]Thread, error)
	FetchThread(ctx context.Context, threadID string) (*Page, error)
	// FetchPost returns the HTML of a single post.
	FetchPost(ctx context.Context, ref string) (string, error)
}

// Config is shared by every forum type.
type Config struct {
	Type      string
	BaseURL   string
	Username  string
	Password  string
	Subforums []int
	// LoginAttempts bounds the login retry loop, 0 uses the implementation default.
	LoginAttempts int
	HTTP          transport.Options
}

// Factory builds a forum around a session store.
type Factory func(cfg Config, store *session.Store) (Forum, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a forum type available to New. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("forum: Register called twice for " + name)
	}
	registry[name] = f
}

// New builds the forum registered under cfg.Type.
func New(cfg Config, store *session.Store) (Forum, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownType, cfg.Type, Types())
	}
	return f(cfg, store)
}

// Types lists the registered forum types.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
