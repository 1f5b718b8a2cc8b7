// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/releases"
)

// QueryKind names the strategy that produced a search query.
type QueryKind string

const (
	QueryExact     QueryKind = "exact"
	QueryClean     QueryKind = "clean"
	QueryEpisode   QueryKind = "episode"
	QueryPhrase    QueryKind = "episode-phrase"
	QuerySeason    QueryKind = "season"
	QueryMetadata  QueryKind = "metadata"
	QuerySeasonAlt QueryKind = "season-query"
)

// Query is one thread search attempt.
type Query struct {
	Kind QueryKind
	Text string
}

// Target describes what the caller is looking for.
type Target struct {
	Release  string
	Series   string
	Season   int
	Episodes []int
}

// QueryBuilder produces the ordered search strategies for a release.
type QueryBuilder struct {
	parser     *releases.Parser
	seasonWord string
}

// NewQueryBuilder returns a builder. A nil parser disables metadata queries.
func NewQueryBuilder(parser *releases.Parser, seasonWord string) *QueryBuilder {
	if seasonWord == "" {
		seasonWord = DefaultSeasonWord
	}
	return &QueryBuilder{parser: parser, seasonWord: seasonWord}
}

var (
	cleanNoise = regexp.MustCompile(`(?i)\b(?:480|576|720|1080|2160)[pi]\b|\b(?:x|h)\.?26[45]\b|\bhevc\b|\bweb-?dl\b|\bwebrip\b|\bbluray\b|\bhdtv\b|\bita\b|\beng\b|\bsub\b|\be?ac3\b|\baac\b|\bddp?\d?\b|\bin corso\b|\bcompleta?\b`)
	bracketed  = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)
	groupTail  = regexp.MustCompile(`(?i)\s+-\s+[^-]*\bcrew\b.*$`)
)

// CleanTitle removes resolution, codec, language and group tokens from a release title.
func CleanTitle(release string) string {
	s := spaceSeparators.Replace(release)
	s = groupTail.ReplaceAllString(s, "")
	s = bracketed.ReplaceAllString(s, " ")
	s = cleanNoise.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "()", " ")
	return strings.Trim(strings.Join(strings.Fields(s), " "), trimSet)
}

// Queries returns the search strategies for t, most specific first, without repeats.
func (b *QueryBuilder) Queries(t Target) []Query {
	series := strings.TrimSpace(t.Series)
	if series == "" {
		series = SeriesName(t.Release)
	}
	if series == "" && b.parser != nil {
		series = b.parser.Parse(t.Release).Title
	}
	season := t.Season
	if season == 0 {
		season, _ = SeasonNumber(t.Release)
	}

	var out []Query
	seen := make(map[string]struct{})
	add := func(kind QueryKind, text string) {
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Query{Kind: kind, Text: text})
	}

	add(QueryExact, t.Release)
	add(QueryClean, CleanTitle(t.Release))

	if series != "" && season > 0 {
		for _, ep := range t.Episodes {
			id, err := episode.New(season, ep)
			if err != nil || ep == 0 {
				continue
			}
			add(QueryEpisode, fmt.Sprintf("%s %s", series, EpisodeCode(id)))
			add(QueryPhrase, fmt.Sprintf("%s %s %d Episodio %d", series, b.seasonWord, season, ep))
		}
		add(QuerySeason, fmt.Sprintf("%s %s %d", series, b.seasonWord, season))
		add(QuerySeason, fmt.Sprintf("%s Season %d", series, season))
	}

	if series != "" {
		for _, q := range b.metadataQueries(t.Release, series) {
			add(QueryMetadata, q)
		}
	}

	if series != "" && season > 0 {
		add(QuerySeasonAlt, seasonQuery(series, season, b.seasonWord))
	}
	return out
}

// SeasonQuery is the season level fallback query for release.
func (b *QueryBuilder) SeasonQuery(release string) string {
	return SeasonQuery(release, b.seasonWord)
}

func (b *QueryBuilder) metadataQueries(release, series string) []string {
	if b.parser == nil {
		return nil
	}
	r := b.parser.Parse(release)

	var out []string
	if r.Resolution != "" {
		out = append(out, series+" "+r.Resolution)
	}
	if len(r.Codec) > 0 {
		out = append(out, series+" "+r.Codec[0])
	}
	if r.Year > 0 {
		out = append(out, fmt.Sprintf("%s %d", series, r.Year))
	}
	return out
}
