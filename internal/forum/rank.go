// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package forum

import (
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/autobrr/magnetarr/pkg/stringutils"
)

// Rank orders threads for a series. Threads whose title contains the series name
// as a fuzzy subsequence come first, the forum's own order is kept otherwise.
func Rank(threads []Thread, series string) []Thread {
	out := slices.Clone(threads)
	needle := stringutils.NormalizeForMatching(series)
	if needle == "" {
		return out
	}

	slices.SortStableFunc(out, func(a, b Thread) int {
		am, bm := matches(needle, a.Title), matches(needle, b.Title)
		switch {
		case am && !bm:
			return -1
		case bm && !am:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Best returns the first ranked thread.
func Best(threads []Thread, series string) (Thread, bool) {
	ranked := Rank(threads, series)
	if len(ranked) == 0 {
		return Thread{}, false
	}
	return ranked[0], true
}

func matches(needle, title string) bool {
	return fuzzy.MatchNormalizedFold(needle, stringutils.NormalizeForMatching(title))
}
