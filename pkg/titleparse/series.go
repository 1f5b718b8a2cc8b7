// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/autobrr/magnetarr/pkg/episode"
)

// DefaultSeasonWord is the season phrase used when building season queries.
const DefaultSeasonWord = "Stagione"

// Markers that end the series part of a release title. Run case-insensitively on
// text where dots and underscores were replaced by spaces.
var seriesCut = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bs\d{1,3}\s?e\d{1,4}`),
	regexp.MustCompile(`(?i)\b\d{1,2}x\d{1,3}\b`),
	regexp.MustCompile(`(?i)\b(?:` + seasonWords + `)\s*\d`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th|a|o|ª|º|°)\s*(?:` + seasonWords + `)\b`),
	regexp.MustCompile(`(?i)\b(?:first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|prima|seconda|terza|quarta|quinta|sesta|settima|ottava|nona|decima)\s+(?:` + seasonWords + `)\b`),
	regexp.MustCompile(`(?i)\bs\d{1,3}\b`),
	regexp.MustCompile(`(?i)\b(?:` + episodeWords + `|[eé]pisode)\s*\d`),
	regexp.MustCompile(`[\[(]`),
	regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\b(?:480|576|720|1080|2160)[pi]\b`),
}

var (
	spaceSeparators = strings.NewReplacer(".", " ", "_", " ")
	trimSet         = " -–—:|.,"
)

// SeriesName returns the series part of a release title:
// "Only Murders in the Building - Stagione 5 (2025) [IN CORSO]" → "Only Murders in the Building".
// Titles without any season, episode or metadata marker are returned trimmed.
func SeriesName(release string) string {
	text := strings.Join(strings.Fields(spaceSeparators.Replace(release)), " ")
	cut := len(text)
	for _, re := range seriesCut {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] < cut && loc[0] > 0 {
			cut = loc[0]
		}
	}
	return strings.Trim(text[:cut], trimSet)
}

// SeasonNumber returns the season referenced by release, if any.
func SeasonNumber(release string) (int, bool) {
	ids := Normalize(release)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0].Season(), true
}

// IsSeasonPack reports whether release names a season but no specific episode.
func IsSeasonPack(release string) bool {
	ids := Normalize(release)
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !id.IsSeasonPack() {
			return false
		}
	}
	return true
}

// SeasonQuery strips episode tokens from release and keeps the series name plus
// the season phrase, e.g. "Breaking Bad - Stagione 5". Empty when either part is missing.
func SeasonQuery(release, word string) string {
	series := SeriesName(release)
	season, ok := SeasonNumber(release)
	if series == "" || !ok {
		return ""
	}
	return seasonQuery(series, season, word)
}

func seasonQuery(series string, season int, word string) string {
	if word == "" {
		word = DefaultSeasonWord
	}
	return fmt.Sprintf("%s - %s %d", series, word, season)
}

// CacheKey is the thread cache key for a series and season, e.g. "Breaking Bad S05".
func CacheKey(series string, season int) string {
	return fmt.Sprintf("%s S%02d", strings.TrimSpace(series), season)
}

// EpisodeCode renders the compact code used in search queries.
func EpisodeCode(id episode.ID) string {
	if id.IsSeasonPack() {
		return fmt.Sprintf("S%02d", id.Season())
	}
	return id.String()
}
