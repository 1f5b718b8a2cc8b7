// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titleparse turns human written release and post titles into
// canonical episode identifiers, and builds the search queries used to find
// the forum thread for a release.
package titleparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/stringutils"
)

// Patterns run on folded text (lowercase, no diacritics, dots as spaces).
var (
	// batch counters: "of 10", "di 10", "[03/10]", "(3/10)", "03/10"
	noiseCounter = regexp.MustCompile(`\b(?:of|di|de|von|sur)\s+\d{1,4}\b|[\[(]?\b\d{1,4}\s*/\s*\d{1,4}\b[\])]?`)

	compactForm = regexp.MustCompile(`\bs(\d{1,3})\s?e(\d{1,4})((?:-?e\d{1,4}|-s\d{1,3}\s?e\d{1,4}|-\d{1,4})*)\b`)
	compactTail = regexp.MustCompile(`(-?)(?:s(\d{1,3})\s?)?e?(\d{1,4})`)
	crossForm   = regexp.MustCompile(`\b(\d{1,2})xe?(\d{1,3})(?:-(\d{1,3}))?\b`)

	seasonWords  = `stagione|stagioni|season|seasons|saison|temporada|staffel`
	seasonPhrase = regexp.MustCompile(`\b(?:` + seasonWords + `)\s*(\d{1,3})(?:\s*-\s*(\d{1,3}))?\b`)
	seasonOrd    = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th|a|o|°)\s*(?:` + seasonWords + `)\b`)
	seasonWord   = regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|prima|seconda|terza|quarta|quinta|sesta|settima|ottava|nona|decima)\s+(?:` + seasonWords + `)\b`)
	seasonBare   = regexp.MustCompile(`\bs(\d{1,3})\b`)

	episodeWords  = `episodio|episodi|episodes|episode|eps|ep|puntata|puntate|folge|capitolo|capitulo`
	episodePhrase = regexp.MustCompile(`\b(?:` + episodeWords + `)\s*(\d{1,4})(?:\s*-\s*(\d{1,4}))?\b`)
	episodeBare   = regexp.MustCompile(`\be(\d{2,3})\b`)
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"prima": 1, "seconda": 2, "terza": 3, "quarta": 4, "quinta": 5,
	"sesta": 6, "settima": 7, "ottava": 8, "nona": 9, "decima": 10,
}

// Normalize returns the identifiers found in text, in order and without repeats.
// Episode-only phrases are dropped because no season is known.
func Normalize(text string) []episode.ID {
	return NormalizeWithSeason(text, 0)
}

// NormalizeWithSeason is Normalize with a caller-known season used for
// episode-only phrases such as "Ep 7". A knownSeason of 0 means unknown.
func NormalizeWithSeason(text string, knownSeason int) []episode.ID {
	folded := prepare(text)
	if folded == "" {
		return nil
	}

	if ids := compactIDs(folded); len(ids) > 0 {
		return episode.Unique(ids)
	}

	seasons := seasonMarks(folded)
	episodes := episodeMarks(folded)

	var ids []episode.ID
	switch {
	case len(seasons) > 0 && len(episodes) > 0:
		for _, e := range episodes {
			s := nearestSeason(seasons, e.pos)
			for _, n := range e.values {
				ids = appendID(ids, s, n)
			}
		}
	case len(seasons) > 0:
		for _, s := range seasons {
			for _, n := range s.values {
				ids = appendID(ids, n, 0)
			}
		}
	case len(episodes) > 0 && knownSeason > 0:
		for _, e := range episodes {
			for _, n := range e.values {
				ids = appendID(ids, knownSeason, n)
			}
		}
	}
	return episode.Unique(ids)
}

// prepare folds text and strips batch counters so they never read as episodes.
func prepare(text string) string {
	folded := stringutils.DefaultFolder.Normalize(text)
	folded = noiseCounter.ReplaceAllString(folded, " ")
	return strings.Join(strings.Fields(folded), " ")
}

type mark struct {
	pos    int
	values []int
}

func compactIDs(s string) []episode.ID {
	type hit struct {
		pos int
		ids []episode.ID
	}
	var hits []hit

	for _, m := range compactForm.FindAllStringSubmatchIndex(s, -1) {
		season := atoi(s[m[2]:m[3]])
		first := atoi(s[m[4]:m[5]])
		var ids []episode.ID
		ids = appendID(ids, season, first)
		prev := first
		for _, t := range compactTail.FindAllStringSubmatch(s[m[6]:m[7]], -1) {
			n := atoi(t[3])
			// S01E10-S02E02 names two episodes, not a span.
			if t[2] != "" && atoi(t[2]) != season {
				season = atoi(t[2])
				ids = appendID(ids, season, n)
				prev = n
				continue
			}
			if t[1] == "-" {
				for _, e := range episode.Span(prev, n) {
					ids = appendID(ids, season, e)
				}
			} else {
				ids = appendID(ids, season, n)
			}
			prev = n
		}
		hits = append(hits, hit{pos: m[0], ids: ids})
	}

	for _, m := range crossForm.FindAllStringSubmatchIndex(s, -1) {
		season := atoi(s[m[2]:m[3]])
		first := atoi(s[m[4]:m[5]])
		last := first
		if m[6] >= 0 {
			last = atoi(s[m[6]:m[7]])
		}
		var ids []episode.ID
		for _, e := range episode.Span(first, last) {
			ids = appendID(ids, season, e)
		}
		hits = append(hits, hit{pos: m[0], ids: ids})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var out []episode.ID
	for _, h := range hits {
		out = append(out, h.ids...)
	}
	return out
}

func seasonMarks(s string) []mark {
	var marks []mark
	for _, m := range seasonPhrase.FindAllStringSubmatchIndex(s, -1) {
		first := atoi(s[m[2]:m[3]])
		last := first
		if m[4] >= 0 {
			last = atoi(s[m[4]:m[5]])
		}
		marks = append(marks, mark{pos: m[0], values: episode.Span(first, last)})
	}
	for _, m := range seasonOrd.FindAllStringSubmatchIndex(s, -1) {
		marks = append(marks, mark{pos: m[0], values: []int{atoi(s[m[2]:m[3]])}})
	}
	for _, m := range seasonWord.FindAllStringSubmatchIndex(s, -1) {
		marks = append(marks, mark{pos: m[0], values: []int{ordinalWords[s[m[2]:m[3]]]}})
	}
	for _, m := range seasonBare.FindAllStringSubmatchIndex(s, -1) {
		marks = append(marks, mark{pos: m[0], values: []int{atoi(s[m[2]:m[3]])}})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].pos < marks[j].pos })
	return marks
}

func episodeMarks(s string) []mark {
	var marks []mark
	for _, m := range episodePhrase.FindAllStringSubmatchIndex(s, -1) {
		first := atoi(s[m[2]:m[3]])
		last := first
		if m[4] >= 0 {
			last = atoi(s[m[4]:m[5]])
		}
		marks = append(marks, mark{pos: m[0], values: episode.Span(first, last)})
	}
	for _, m := range episodeBare.FindAllStringSubmatchIndex(s, -1) {
		marks = append(marks, mark{pos: m[0], values: []int{atoi(s[m[2]:m[3]])}})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].pos < marks[j].pos })
	return marks
}

// nearestSeason picks the closest season mark before pos, or the first one after it.
func nearestSeason(seasons []mark, pos int) int {
	chosen := seasons[0]
	for _, s := range seasons {
		if s.pos > pos {
			break
		}
		chosen = s
	}
	return chosen.values[0]
}

func appendID(ids []episode.ID, season, ep int) []episode.ID {
	id, err := episode.New(season, ep)
	if err != nil {
		return ids
	}
	return append(ids, id)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
