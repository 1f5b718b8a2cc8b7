// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package magnet

import (
	"regexp"
	"strings"
)

// token is deliberately loose, validation happens in Parse.
var token = regexp.MustCompile(`(?i)magnet:\?[^\s"'<>\x60]+`)

const trailingPunct = ".,;:!?)]}"

// Scan returns every valid magnet in text, in document order. Invalid tokens are
// skipped and duplicates are kept.
func Scan(text string) []Candidate {
	var out []Candidate
	for _, loc := range token.FindAllStringIndex(text, -1) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], trailingPunct)
		c, err := Parse(raw)
		if err != nil {
			continue
		}
		c.Position = loc[0]
		out = append(out, c)
	}
	return out
}

// Strip removes magnet tokens from text, leaving the surrounding words.
func Strip(text string) string {
	if !strings.Contains(strings.ToLower(text), "magnet:?") {
		return text
	}
	return token.ReplaceAllString(text, " ")
}

// Contains reports whether text carries a magnet token.
func Contains(text string) bool {
	return token.MatchString(text)
}
