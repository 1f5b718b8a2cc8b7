// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/forum"
	"github.com/autobrr/magnetarr/internal/pkg/timeouts"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

// locate returns the thread page for the release: an explicit id, then the
// thread cache, then the search strategies in order.
func (r *Runner) locate(ctx context.Context, req Request, target titleparse.Target) (*forum.Page, error) {
	if req.ThreadID != "" {
		return r.fetch(ctx, req.ThreadID)
	}

	if id, ok := r.cached(target); ok {
		page, err := r.fetch(ctx, id)
		switch {
		case err == nil:
			log.Info().Str("thread", id).Str("title", page.Title).Msg("using cached thread")
			return page, nil
		case errors.Is(err, forum.ErrThreadNotFound):
			log.Info().Str("thread", id).Msg("cached thread is gone, searching again")
			r.cache.Forget(target.Series, target.Season)
		default:
			return nil, err
		}
	}

	queries := r.queries.Queries(target)
	thread, ok, err := r.search(ctx, queries, target.Series)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Error().Str("release", target.Release).Msg("no forum thread found for this release")
		return nil, ErrThreadNotFound
	}

	page, err := r.fetch(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	r.remember(target, thread.ID)
	return page, nil
}

// search tries each query until one returns threads and picks the best ranked hit.
func (r *Runner) search(ctx context.Context, queries []titleparse.Query, series string) (forum.Thread, bool, error) {
	ctx, cancel := timeouts.WithSearchTimeout(ctx, searchTimeout(len(queries)))
	defer cancel()

	for _, q := range queries {
		log.Info().Str("strategy", string(q.Kind)).Str("query", q.Text).Msg("searching forum")

		threads, err := r.forum.Search(ctx, phrase(q.Text))
		if err != nil {
			if ctx.Err() != nil {
				return forum.Thread{}, false, fmt.Errorf("search %q: %w", q.Text, err)
			}
			log.Warn().Err(err).Str("query", q.Text).Msg("search failed, trying next strategy")
			continue
		}
		if best, ok := forum.Best(threads, series); ok {
			log.Info().
				Str("strategy", string(q.Kind)).
				Str("thread", best.ID).
				Str("title", best.Title).
				Int("hits", len(threads)).
				Msg("found thread")
			return best, true, nil
		}
	}
	return forum.Thread{}, false, nil
}

func (r *Runner) fetch(ctx context.Context, id string) (*forum.Page, error) {
	ctx, cancel := timeouts.WithSearchTimeout(ctx, timeouts.DefaultFetchTimeout)
	defer cancel()

	page, err := r.forum.FetchThread(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", id, err)
	}
	if page.ThreadID == "" {
		page.ThreadID = id
	}
	return page, nil
}

func (r *Runner) cached(target titleparse.Target) (string, bool) {
	if r.cache == nil || target.Series == "" || target.Season <= 0 {
		return "", false
	}
	return r.cache.Lookup(target.Series, target.Season)
}

func (r *Runner) remember(target titleparse.Target, id string) {
	if r.cache == nil || target.Series == "" || target.Season <= 0 {
		return
	}
	if err := r.cache.Store(target.Series, target.Season, id); err != nil {
		log.Warn().Err(err).Str("thread", id).Msg("could not persist thread cache")
	}
}

// phrase quotes a query so the forum matches the words as one phrase.
func phrase(q string) string {
	q = strings.Join(strings.Fields(strings.ReplaceAll(q, `"`, " ")), " ")
	if q == "" {
		return ""
	}
	return `"` + q + `"`
}
