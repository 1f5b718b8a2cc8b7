// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent adapts the qBittorrent WebUI API to torrent.Client.
package qbittorrent

import (
	"context"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/torrent"
	"github.com/autobrr/magnetarr/pkg/redact"
)

const (
	Type = "qbittorrent"

	defaultTimeout = 30 * time.Second
)

func init() {
	torrent.Register(Type, func(cfg torrent.Config) (torrent.Client, error) {
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Client talks to one qBittorrent instance.
type Client struct {
	host string
	qb   *qbt.Client
}

func New(cfg torrent.Config) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if host == "" {
		return nil, errors.New("qbittorrent: url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	qb := qbt.NewClient(qbt.Config{
		Host:          host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		BasicUser:     cfg.BasicUser,
		BasicPass:     cfg.BasicPass,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Timeout:       int(timeout.Seconds()),
	})

	return &Client{host: host, qb: qb}, nil
}

func (c *Client) Name() string { return Type }

func (c *Client) Login(ctx context.Context) error {
	if err := c.qb.LoginCtx(ctx); err != nil {
		return errors.Wrapf(redact.URLError(err), "qbittorrent login at %s", redact.URLString(c.host))
	}

	version, err := c.qb.GetAppVersionCtx(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("could not read qbittorrent version")
	} else {
		log.Debug().Str("version", version).Str("host", redact.URLString(c.host)).Msg("connected to qbittorrent")
	}
	return nil
}

func (c *Client) AddMagnet(ctx context.Context, uri, category string) error {
	opts := map[string]string{}
	if category != "" {
		opts["category"] = category
	}
	if err := c.qb.AddTorrentFromUrlCtx(ctx, uri, opts); err != nil {
		return errors.Wrapf(redact.URLError(err), "add magnet %s", redact.Magnet(uri))
	}
	return nil
}

func (c *Client) Torrents(ctx context.Context) ([]torrent.Torrent, error) {
	list, err := c.qb.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, errors.Wrap(redact.URLError(err), "list torrents")
	}
	out := make([]torrent.Torrent, 0, len(list))
	for _, t := range list {
		out = append(out, torrent.Torrent{
			Hash:     strings.ToLower(t.Hash),
			Name:     t.Name,
			Category: t.Category,
		})
	}
	return out, nil
}

// Remove deletes the torrents and keeps their files.
func (c *Client) Remove(ctx context.Context, hashes ...string) error {
	if len(hashes) == 0 {
		return nil
	}
	if err := c.qb.DeleteTorrentsCtx(ctx, hashes, false); err != nil {
		return errors.Wrap(redact.URLError(err), "remove torrents")
	}
	return nil
}
