// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/pkg/redact"
)

// DryRun wraps a client so that reads go through and writes are only logged.
// A nil client gives an offline stand-in with no torrents.
func DryRun(c Client) Client {
	return &dryRun{inner: c}
}

type dryRun struct {
	inner Client
}

func (d *dryRun) Name() string {
	if d.inner == nil {
		return "dry-run"
	}
	return d.inner.Name() + " (dry-run)"
}

func (d *dryRun) Login(ctx context.Context) error {
	if d.inner == nil {
		return nil
	}
	return d.inner.Login(ctx)
}

func (d *dryRun) AddMagnet(_ context.Context, uri, category string) error {
	log.Info().Str("magnet", redact.Magnet(uri)).Str("category", category).Msg("[dry-run] would add magnet")
	return nil
}

func (d *dryRun) Torrents(ctx context.Context) ([]Torrent, error) {
	if d.inner == nil {
		return nil, nil
	}
	return d.inner.Torrents(ctx)
}

func (d *dryRun) Remove(_ context.Context, hashes ...string) error {
	log.Info().Strs("hashes", hashes).Msg("[dry-run] would remove torrents")
	return nil
}

// Memory is an in-process client, used by tests and offline runs.
type Memory struct {
	mu       sync.Mutex
	torrents []Torrent
	added    []string
	// AddErr, when set, is returned by AddMagnet.
	AddErr error
}

func NewMemory(existing ...Torrent) *Memory {
	return &Memory{torrents: append([]Torrent(nil), existing...)}
}

func (m *Memory) Name() string                { return "memory" }
func (m *Memory) Login(context.Context) error { return nil }

func (m *Memory) AddMagnet(_ context.Context, uri, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	hash, _ := HashOf(uri)
	m.added = append(m.added, uri)
	m.torrents = append(m.torrents, Torrent{Hash: hash, Category: category})
	return nil
}

func (m *Memory) Torrents(context.Context) ([]Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Torrent(nil), m.torrents...), nil
}

func (m *Memory) Remove(_ context.Context, hashes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		drop[strings.ToLower(h)] = struct{}{}
	}
	kept := m.torrents[:0]
	for _, t := range m.torrents {
		if _, ok := drop[strings.ToLower(t.Hash)]; !ok {
			kept = append(kept, t)
		}
	}
	m.torrents = kept
	return nil
}

// Added returns the magnets passed to AddMagnet, in order.
func (m *Memory) Added() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.added...)
}
