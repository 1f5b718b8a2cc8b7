// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline runs one hook: find the forum thread for a release, pick the
// magnets for the needed episodes and hand them to the torrent client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/internal/extract"
	"github.com/autobrr/magnetarr/internal/forum"
	"github.com/autobrr/magnetarr/internal/pkg/timeouts"
	"github.com/autobrr/magnetarr/internal/services/arr"
	"github.com/autobrr/magnetarr/internal/threadcache"
	"github.com/autobrr/magnetarr/internal/torrent"
	"github.com/autobrr/magnetarr/pkg/magnet"
	"github.com/autobrr/magnetarr/pkg/releases"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

var (
	ErrMissingRelease = errors.New("release title is required")
	ErrThreadNotFound = errors.New("no forum thread found for release")
	ErrNothingFound   = errors.New("no magnet matched the needed episodes")
)

const (
	DefaultCategory    = "sonarr"
	DefaultAddDelay    = 1 * time.Second
	DefaultSettleDelay = 3 * time.Second
)

// Run outcomes reported to the observer.
const (
	OutcomeSubmitted  = "submitted"
	OutcomeNothingNew = "nothing-new"
	OutcomeNoThread   = "no-thread"
	OutcomeNoMatch    = "no-match"
	OutcomeSkipped    = "skipped"
	OutcomeError      = "error"
)

// Observer receives pipeline events, implemented by the metrics package.
type Observer interface {
	extract.Observer
	ObserveRun(outcome string)
	ObserveSubmitted(n int)
}

// Options tune a Runner.
type Options struct {
	Category    string
	AddDelay    time.Duration
	SettleDelay time.Duration
	Unresolved  extract.UnresolvedPolicy
	SeasonWord  string
	// DryRun is reported back. The torrent client is expected to be wrapped with torrent.DryRun.
	DryRun bool
}

// Request is one hook invocation.
type Request struct {
	Event arr.HookEvent
	// ThreadID skips the thread search when set.
	ThreadID string
}

// Report summarises a run.
type Report struct {
	Release    string
	Thread     forum.Thread
	Needed     arr.Resolution
	Extraction extract.Result
	Selected   []magnet.Candidate
	Added      []string
	Existing   []string
	Failed     []string
	// Original is the hash of the torrent Sonarr grabbed, when known.
	Original        string
	OriginalKept    bool
	OriginalRemoved bool
	DryRun          bool
}

// Runner wires the collaborators of a run.
type Runner struct {
	forum        forum.Forum
	torrents     torrent.Client
	needs        *arr.Service
	cache        *threadcache.Cache
	queries      *titleparse.QueryBuilder
	orchestrator *extract.Orchestrator
	observer     Observer
	opts         Options
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures optional collaborators.
type Option func(*Runner)

// WithThreadCache remembers the thread found for a series and season.
func WithThreadCache(c *threadcache.Cache) Option { return func(r *Runner) { r.cache = c } }

// WithNeeds sets the needed-episode resolver, which may talk to Sonarr.
func WithNeeds(s *arr.Service) Option { return func(r *Runner) { r.needs = s } }

func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

// WithReleaseParser enables metadata based search queries.
func WithReleaseParser(p *releases.Parser) Option {
	return func(r *Runner) { r.queries = titleparse.NewQueryBuilder(p, r.opts.SeasonWord) }
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = fn }
}

func New(f forum.Forum, tc torrent.Client, opts Options, extra ...Option) *Runner {
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.SeasonWord == "" {
		opts.SeasonWord = titleparse.DefaultSeasonWord
	}
	r := &Runner{
		forum:    f,
		torrents: tc,
		opts:     opts,
		queries:  titleparse.NewQueryBuilder(nil, opts.SeasonWord),
		sleep:    sleepCtx,
	}
	for _, o := range extra {
		o(r)
	}
	if r.needs == nil {
		r.needs = arr.NewService(nil)
	}

	orchOpts := []extract.Option{extract.WithPostFetcher(f), extract.WithSeasonWord(opts.SeasonWord)}
	if r.observer != nil {
		orchOpts = append(orchOpts, extract.WithObserver(r.observer))
	}
	r.orchestrator = extract.NewOrchestrator(orchOpts...)
	return r
}

// Run processes one request. A report is returned alongside ErrThreadNotFound
// and ErrNothingFound so callers can log what was tried.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	report, err := r.run(ctx, req)
	r.observeRun(report, err)
	return report, err
}

func (r *Runner) run(ctx context.Context, req Request) (*Report, error) {
	ev := req.Event
	release := strings.TrimSpace(ev.ReleaseTitle)
	report := &Report{Release: release, DryRun: r.opts.DryRun}
	if release == "" {
		return report, ErrMissingRelease
	}

	log.Info().
		Str("release", release).
		Str("series", ev.SeriesTitle).
		Str("season", ev.Season).
		Str("episodes", ev.Episodes).
		Str("path", ev.RelativePath).
		Msg("processing release")

	if err := r.forum.EnsureSession(ctx); err != nil {
		return report, fmt.Errorf("forum %s: %w", r.forum.Name(), err)
	}
	if err := r.torrents.Login(ctx); err != nil {
		return report, fmt.Errorf("torrent client %s: %w", r.torrents.Name(), err)
	}

	report.Needed = r.needs.Resolve(ctx, ev)
	if report.Needed.All() {
		log.Warn().Msg("unable to determine season or episodes, every magnet in the thread will be processed")
	} else {
		log.Info().Str("needed", report.Needed.Needed.String()).Str("source", string(report.Needed.Source)).Msg("needed episodes")
	}

	target := r.target(ev, release, report.Needed)

	page, err := r.locate(ctx, req, target)
	if err != nil {
		return report, err
	}
	report.Thread = forum.Thread{ID: page.ThreadID, URL: page.URL, Title: page.Title}

	report.Extraction = r.orchestrator.Extract(ctx, extract.Input{
		ReleaseTitle: release,
		ThreadTitle:  page.Title,
		HTML:         page.HTML,
		PostRef:      page.PostRef,
		Season:       target.Season,
	})
	report.Selected = r.selectMagnets(report.Needed, report.Extraction)

	if len(report.Selected) == 0 && report.Extraction.SeasonQuery != "" {
		r.seasonFallback(ctx, report, target)
	}

	if len(report.Selected) == 0 {
		log.Warn().
			Str("thread", report.Thread.Title).
			Bool("exhausted", report.Extraction.Exhausted).
			Msg("no magnets matched the needed episodes")
		return report, ErrNothingFound
	}

	if err := r.submit(ctx, ev, report); err != nil {
		return report, err
	}

	log.Info().
		Int("selected", len(report.Selected)).
		Int("added", len(report.Added)).
		Int("existing", len(report.Existing)).
		Int("failed", len(report.Failed)).
		Bool("dryRun", report.DryRun).
		Msg("release processed")
	return report, nil
}

func (r *Runner) target(ev arr.HookEvent, release string, needed arr.Resolution) titleparse.Target {
	t := titleparse.Target{Release: release, Series: strings.TrimSpace(ev.SeriesTitle)}
	if t.Series == "" {
		t.Series = titleparse.SeriesName(release)
	}
	if !needed.All() {
		t.Season = needed.Needed.Season()
		t.Episodes = needed.Needed.Episodes()
	}
	if t.Season == 0 {
		t.Season, _ = titleparse.SeasonNumber(release)
	}
	return t
}

// selectMagnets applies the episode filter. With nothing known every magnet is kept.
func (r *Runner) selectMagnets(needed arr.Resolution, res extract.Result) []magnet.Candidate {
	if needed.All() {
		return magnet.Dedupe(res.Found())
	}
	return extract.Filter(res.Associations, needed.Needed, extract.FilterOptions{
		Unresolved: r.opts.Unresolved,
	})
}

// seasonFallback searches once more with the season query and re-extracts.
func (r *Runner) seasonFallback(ctx context.Context, report *Report, target titleparse.Target) {
	query := report.Extraction.SeasonQuery
	log.Info().Str("query", query).Msg("no episode specific magnets, retrying with season query")

	thread, ok, err := r.search(ctx, []titleparse.Query{{Kind: titleparse.QuerySeasonAlt, Text: query}}, target.Series)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("season query search failed")
		return
	}
	if !ok || thread.ID == report.Thread.ID {
		return
	}

	page, err := r.forum.FetchThread(ctx, thread.ID)
	if err != nil {
		log.Warn().Err(err).Str("thread", thread.ID).Msg("could not fetch season thread")
		return
	}

	res := r.orchestrator.Extract(ctx, extract.Input{
		ReleaseTitle: report.Release,
		ThreadTitle:  page.Title,
		HTML:         page.HTML,
		PostRef:      page.PostRef,
		Season:       target.Season,
	})
	selected := r.selectMagnets(report.Needed, res)
	if len(selected) == 0 {
		return
	}
	report.Thread = forum.Thread{ID: page.ThreadID, URL: page.URL, Title: page.Title}
	report.Extraction = res
	report.Selected = selected
	r.remember(target, page.ThreadID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome classifies the result of Run.
func Outcome(report *Report, err error) string {
	switch {
	case errors.Is(err, ErrThreadNotFound):
		return OutcomeNoThread
	case errors.Is(err, ErrNothingFound):
		return OutcomeNoMatch
	case err != nil:
		return OutcomeError
	case report == nil || len(report.Added) == 0:
		return OutcomeNothingNew
	}
	return OutcomeSubmitted
}

func (r *Runner) observeRun(report *Report, err error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveRun(Outcome(report, err))
	if report != nil && len(report.Added) > 0 {
		r.observer.ObserveSubmitted(len(report.Added))
	}
}

// searchTimeout bounds the whole search phase of a run.
func searchTimeout(queries int) time.Duration {
	return timeouts.AdaptiveSearchTimeout(queries)
}
