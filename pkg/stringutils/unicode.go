// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var specialLetters = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
)

// NormalizeUnicode removes diacritics and decomposes ligatures.
// Examples:
//   - "Stagione 2ª" → "Stagione 2a"
//   - "Épisode" → "Episode"
//   - "Straße" → "Strasse"
//   - "ﬁ" → "fi"
func NormalizeUnicode(s string) string {
	// NFKD leaves these as distinct letters
	s = specialLetters.Replace(s)

	// transform.Chain is not safe for concurrent use, build one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

var separators = strings.NewReplacer(
	".", " ",
	"_", " ",
	"–", "-", // en dash
	"—", "-", // em dash
	"’", "'",
)

// Fold prepares free text for pattern matching: diacritics removed, lowercase,
// dots and underscores turned into spaces, whitespace collapsed.
//   - "Only.Murders.S05E04.1080p" → "only murders s05e04 1080p"
//   - "Épisode 3 – Stagione 2ª" → "episode 3 - stagione 2a"
func Fold(s string) string {
	s = NormalizeUnicode(s)
	s = separators.Replace(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeForMatching folds a title for loose comparison between search hits
// and release names. Apostrophes and colons are dropped, hyphens become spaces.
//   - "Bob's Burgers" → "bobs burgers"
//   - "CSI: Miami" → "csi miami"
func NormalizeForMatching(s string) string {
	s = Fold(s)
	s = strings.NewReplacer("'", "", "`", "", ":", "", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
