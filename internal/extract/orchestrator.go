// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package extract finds the magnets in a forum thread and works out which
// episodes each one carries.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/autobrr/magnetarr/pkg/magnet"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

// ErrStrategyUnavailable marks a strategy that could not run, e.g. a failed post fetch.
var ErrStrategyUnavailable = errors.New("strategy unavailable")

// PostFetcher loads the narrower post page referenced by a thread.
type PostFetcher interface {
	FetchPost(ctx context.Context, ref string) (string, error)
}

// Observer receives every attempt, used for metrics.
type Observer interface {
	ObserveAttempt(a Attempt)
}

// Attempt records one strategy run.
type Attempt struct {
	Strategy   State
	Success    bool
	Found      int
	Associated int
	Reason     string
}

// Input is everything the orchestrator works on for one thread.
type Input struct {
	ReleaseTitle string
	// ThreadTitle overrides the title read from the page for legacy association.
	ThreadTitle string
	HTML        string
	// PostRef points at the first post, empty when the forum does not provide one.
	PostRef string
	// Season is the caller-known season, 0 to derive it from ReleaseTitle.
	Season int
}

// Result of an extraction.
type Result struct {
	Associations []Association
	Attempts     []Attempt
	Strategy     State
	Exhausted    bool
	// SeasonQuery is set when the release is a season pack and no magnet was
	// tied to a specific episode. The caller can search again with it.
	SeasonQuery string
}

// Found returns the candidates of the winning strategy.
func (r Result) Found() []magnet.Candidate {
	out := make([]magnet.Candidate, 0, len(r.Associations))
	for _, a := range r.Associations {
		out = append(out, a.Magnet)
	}
	return out
}

// Orchestrator runs the primary, enhanced and legacy strategies in order.
type Orchestrator struct {
	posts      PostFetcher
	observer   Observer
	seasonWord string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithPostFetcher(p PostFetcher) Option { return func(o *Orchestrator) { o.posts = p } }
func WithObserver(obs Observer) Option     { return func(o *Orchestrator) { o.observer = obs } }
func WithSeasonWord(w string) Option       { return func(o *Orchestrator) { o.seasonWord = w } }

func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{seasonWord: titleparse.DefaultSeasonWord}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract runs the state machine over in. Finding nothing is reported through
// Result.Exhausted and is never an error.
func (o *Orchestrator) Extract(ctx context.Context, in Input) Result {
	season := in.Season
	if season == 0 {
		season, _ = titleparse.SeasonNumber(in.ReleaseTitle)
	}
	actx := AssocContext{Season: season}

	doc, err := htmlquery.Parse(strings.NewReader(in.HTML))
	if err != nil {
		log.Debug().Err(err).Msg("thread html did not parse, continuing with empty document")
		doc = &html.Node{Type: html.DocumentNode}
	}

	var res Result
	state := StatePrimary
	for !state.Terminal() {
		var assocs []Association
		attempt := Attempt{Strategy: state}

		switch state {
		case StatePrimary:
			assocs = structural(doc, actx)
		case StateEnhanced:
			assocs, err = o.enhanced(ctx, in.PostRef, actx)
			if err != nil {
				attempt.Reason = err.Error()
				log.Debug().Err(err).Str("postRef", in.PostRef).Msg("enhanced extraction unavailable, falling back")
			}
		case StateLegacy:
			assocs = legacy(doc, in, actx)
		}

		attempt.Found = len(assocs)
		attempt.Associated = countResolved(assocs)
		attempt.Success = attempt.Associated > 0
		if !attempt.Success && attempt.Reason == "" {
			attempt.Reason = noResultReason(attempt.Found)
		}
		res.Attempts = append(res.Attempts, attempt)
		if o.observer != nil {
			o.observer.ObserveAttempt(attempt)
		}

		log.Debug().
			Str("strategy", state.String()).
			Int("found", attempt.Found).
			Int("associated", attempt.Associated).
			Bool("success", attempt.Success).
			Msg("extraction attempt")

		if attempt.Success {
			res.Associations = mergeByKey(assocs)
			res.Strategy = state
		}
		state = transition(state, attempt.Success, in.PostRef != "")
	}

	res.Exhausted = state == StateExhausted
	if res.Exhausted {
		res.Strategy = StateExhausted
	}

	if titleparse.IsSeasonPack(in.ReleaseTitle) && !anySpecific(res.Associations) {
		res.SeasonQuery = titleparse.SeasonQuery(in.ReleaseTitle, o.seasonWord)
	}
	return res
}

func (o *Orchestrator) enhanced(ctx context.Context, ref string, actx AssocContext) ([]Association, error) {
	if o.posts == nil {
		return nil, fmt.Errorf("%w: no post fetcher", ErrStrategyUnavailable)
	}
	body, err := o.posts.FetchPost(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStrategyUnavailable, err)
	}
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStrategyUnavailable, err)
	}
	return structural(doc, actx), nil
}

// structural associates every located magnet from its document neighbourhood.
func structural(doc *html.Node, actx AssocContext) []Association {
	located := Locate(doc)
	out := make([]Association, 0, len(located))
	for _, l := range located {
		ids, level := Associate(l, actx)
		out = append(out, Association{Magnet: l.Candidate, Episodes: ids, Level: level})
	}
	return out
}

// legacy scans the raw page, including attributes and scripts the DOM walk skips,
// and falls back to the thread title for magnets without nearby context.
func legacy(doc *html.Node, in Input, actx AssocContext) []Association {
	byKey := make(map[string]Association)
	for _, a := range structural(doc, actx) {
		if prev, ok := byKey[a.Magnet.Key()]; !ok || (!prev.Resolved() && a.Resolved()) {
			byKey[a.Magnet.Key()] = a
		}
	}

	title := in.ThreadTitle
	if title == "" {
		title = documentTitle(doc)
	}
	titleIDs := titleparse.NormalizeWithSeason(title, actx.Season)

	scanned := magnet.Scan(in.HTML)
	out := make([]Association, 0, len(scanned))
	for _, c := range scanned {
		a, ok := byKey[c.Key()]
		if !ok {
			a = Association{Magnet: c}
		}
		if !a.Resolved() && len(titleIDs) > 0 {
			a.Episodes = titleIDs
			a.Level = LevelThread
		}
		out = append(out, a)
	}
	return out
}

// mergeByKey drops repeated magnets. The first occurrence keeps its place and
// takes the episodes of a later occurrence when it had none.
func mergeByKey(in []Association) []Association {
	index := make(map[string]int, len(in))
	out := make([]Association, 0, len(in))
	for _, a := range in {
		key := a.Magnet.Key()
		if i, ok := index[key]; ok {
			if !out[i].Resolved() && a.Resolved() {
				out[i].Episodes = a.Episodes
				out[i].Level = a.Level
			}
			continue
		}
		index[key] = len(out)
		out = append(out, a)
	}
	return out
}

func countResolved(assocs []Association) int {
	n := 0
	for _, a := range assocs {
		if a.Resolved() {
			n++
		}
	}
	return n
}

func anySpecific(assocs []Association) bool {
	for _, a := range assocs {
		if a.Specific() {
			return true
		}
	}
	return false
}

func noResultReason(found int) string {
	if found == 0 {
		return "no magnets found"
	}
	return "no episode context for any magnet"
}
