// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrent defines the torrent client operations the pipeline uses and
// keeps the registry of client implementations.
package torrent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/magnetarr/pkg/magnet"
)

var ErrUnknownType = errors.New("unknown torrent client type")

// Torrent is a torrent known to the client.
type Torrent struct {
	Hash     string
	Name     string
	Category string
}

// Client is a torrent client reached over its web API.
type Client interface {
	Name() string
	Login(ctx context.Context) error
	AddMagnet(ctx context.Context, uri, category string) error
	Torrents(ctx context.Context) ([]Torrent, error)
	// Remove deletes torrents without touching downloaded data.
	Remove(ctx context.Context, hashes ...string) error
}

// Config is shared by every client type.
type Config struct {
	Type          string
	URL           string
	Username      string
	Password      string
	BasicUser     string
	BasicPass     string
	TLSSkipVerify bool
	Timeout       time.Duration
}

type Factory func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a client type available to New. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	if _, dup := registry[name]; dup {
		panic("torrent: Register called twice for " + name)
	}
	registry[name] = f
}

// New builds the client registered under cfg.Type.
func New(cfg Config) (Client, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(cfg.Type)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownType, cfg.Type, Types())
	}
	return f(cfg)
}

// Types lists the registered client types.
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

// HashOf returns the lowercase info hash a client reports for a magnet.
func HashOf(uri string) (string, bool) {
	c, err := magnet.Parse(uri)
	if err != nil || c.Scheme != magnet.SchemeBTIH {
		return "", false
	}
	return c.Hash, true
}

// Hashes indexes torrents by lowercase hash.
func Hashes(torrents []Torrent) map[string]Torrent {
	out := make(map[string]Torrent, len(torrents))
	for _, t := range torrents {
		out[strings.ToLower(t.Hash)] = t
	}
	return out
}
