// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/services/arr"
	"github.com/autobrr/magnetarr/internal/torrent"
	"github.com/autobrr/magnetarr/pkg/magnet"
	"github.com/autobrr/magnetarr/pkg/redact"
)

// submit hands the selected magnets to the torrent client. The torrent Sonarr
// grabbed is removed when none of the needed episodes are in it.
func (r *Runner) submit(ctx context.Context, ev arr.HookEvent, report *Report) error {
	// Sonarr adds its own grab right before calling the hook.
	if !r.opts.DryRun {
		if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
			return err
		}
	}

	current, err := r.torrents.Torrents(ctx)
	if err != nil {
		return fmt.Errorf("list torrents: %w", err)
	}
	existing := torrent.Hashes(current)

	selected := make(map[string]struct{}, len(report.Selected))
	for _, c := range report.Selected {
		selected[c.Hash] = struct{}{}
	}

	report.Original = originalHash(ev, report.Extraction.Found())
	if report.Original != "" {
		if _, wanted := selected[report.Original]; wanted || report.Needed.All() {
			report.OriginalKept = true
			log.Info().Str("hash", report.Original).Msg("keeping original torrent")
		} else if _, ok := existing[report.Original]; ok {
			if err := r.torrents.Remove(ctx, report.Original); err != nil {
				log.Warn().Err(err).Str("hash", report.Original).Msg("unable to remove original torrent")
			} else {
				report.OriginalRemoved = true
				delete(existing, report.Original)
				log.Info().Str("hash", report.Original).Msg("removed original torrent, it holds no needed episode")
			}
		} else {
			log.Debug().Str("hash", report.Original).Msg("original torrent not found in client")
		}
	}

	for i, c := range report.Selected {
		if _, ok := existing[c.Hash]; ok && c.Hash != "" {
			report.Existing = append(report.Existing, c.URI)
			log.Debug().Str("magnet", redact.Magnet(c.URI)).Msg("already in torrent client")
			continue
		}

		if err := r.torrents.AddMagnet(ctx, c.URI, r.opts.Category); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			report.Failed = append(report.Failed, c.URI)
			log.Warn().Err(err).Str("name", c.Name).Msg("unable to add magnet")
			continue
		}
		report.Added = append(report.Added, c.URI)
		log.Info().Str("name", displayName(c)).Str("category", r.opts.Category).Msg("added magnet")

		if i < len(report.Selected)-1 && !r.opts.DryRun {
			if err := r.sleep(ctx, r.opts.AddDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// originalHash is the torrent Sonarr grabbed: the download id when it is an
// info hash, otherwise the first magnet of the thread.
func originalHash(ev arr.HookEvent, found []magnet.Candidate) string {
	id := strings.ToLower(strings.TrimSpace(ev.DownloadID))
	if len(id) == 40 {
		if _, err := hex.DecodeString(id); err == nil {
			return id
		}
	}
	if len(found) > 0 && found[0].Scheme == magnet.SchemeBTIH {
		return found[0].Hash
	}
	return ""
}

func displayName(c magnet.Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Hash
}
