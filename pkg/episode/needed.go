// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package episode

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// maxRangeSpan caps ranges like E01-E40 so a typo cannot expand into thousands of episodes.
const maxRangeSpan = 200

// Needed is the set of episodes wanted for a single season.
// An empty episode list means every episode of the season is wanted.
type Needed struct {
	season   int
	episodes []int
}

// NewNeeded builds a set for season. Episodes are sorted and de-duplicated,
// non-positive numbers are dropped.
func NewNeeded(season int, episodes ...int) (Needed, error) {
	if season < 0 {
		return Needed{}, fmt.Errorf("%w: season=%d", ErrNegative, season)
	}
	eps := make([]int, 0, len(episodes))
	for _, e := range episodes {
		if e > 0 {
			eps = append(eps, e)
		}
	}
	slices.Sort(eps)
	return Needed{season: season, episodes: slices.Compact(eps)}, nil
}

// WholeSeason returns a set accepting every episode of season.
func WholeSeason(season int) Needed {
	return Needed{season: max(season, 0)}
}

func (n Needed) Season() int { return n.season }

// Episodes returns a copy of the wanted episode numbers.
func (n Needed) Episodes() []int {
	return slices.Clone(n.episodes)
}

// WholeSeason reports whether no specific episodes were requested.
func (n Needed) WholeSeason() bool {
	return len(n.episodes) == 0
}

// Contains reports whether ep is wanted.
func (n Needed) Contains(ep int) bool {
	if n.WholeSeason() {
		return true
	}
	_, found := slices.BinarySearch(n.episodes, ep)
	return found
}

// Accepts reports whether id belongs to the set: same season and wanted episode.
// A season pack of the same season always satisfies the set.
func (n Needed) Accepts(id ID) bool {
	if id.season != n.season {
		return false
	}
	if id.IsSeasonPack() {
		return true
	}
	return n.Contains(id.episode)
}

// IDs lists the wanted identifiers, or the season pack for a whole season.
func (n Needed) IDs() []ID {
	if n.WholeSeason() {
		return []ID{{season: n.season}}
	}
	out := make([]ID, 0, len(n.episodes))
	for _, e := range n.episodes {
		out = append(out, ID{season: n.season, episode: e})
	}
	return out
}

func (n Needed) String() string {
	if n.WholeSeason() {
		return fmt.Sprintf("S%02d (all)", n.season)
	}
	codes := make([]string, 0, len(n.episodes))
	for _, id := range n.IDs() {
		codes = append(codes, id.String())
	}
	return strings.Join(codes, ",")
}

// ParseNeeded builds a set from the plain values hook callers hand over,
// e.g. season "5" and episodes "1,2,3". An empty episode list means the whole season.
func ParseNeeded(season, episodes string) (Needed, error) {
	s, err := strconv.Atoi(strings.TrimSpace(season))
	if err != nil {
		return Needed{}, fmt.Errorf("invalid season %q: %w", season, err)
	}
	var eps []int
	for part := range strings.FieldsFuncSeq(episodes, func(r rune) bool { return r == ',' || r == ' ' }) {
		e, err := strconv.Atoi(part)
		if err != nil {
			return Needed{}, fmt.Errorf("invalid episode %q: %w", part, err)
		}
		eps = append(eps, e)
	}
	return NewNeeded(s, eps...)
}

var (
	pathCompact = regexp.MustCompile(`(?i)s(\d{1,3})e(\d{1,4})(?:-?e(\d{1,4})|-(\d{1,4})|-s(\d{1,3})e(\d{1,4}))?`)
	pathCross   = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})(?:-(\d{1,3}))?\b`)
)

// ParseNeededFromPath reads the episode range out of a file name or path,
// for example "Show/Season 1/Show.S01E01-E03.mkv" or "Show 1x01-03.mkv".
func ParseNeededFromPath(path string) (Needed, bool) {
	for _, re := range []*regexp.Regexp{pathCompact, pathCross} {
		m := re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		season, _ := strconv.Atoi(m[1])
		first, _ := strconv.Atoi(m[2])
		last := first
		for _, g := range m[3:min(len(m), 5)] {
			if g != "" {
				last, _ = strconv.Atoi(g)
			}
		}
		// S01E10-S01E12; a range into the next season keeps the first episode only.
		if len(m) > 6 && m[5] != "" {
			if endSeason, _ := strconv.Atoi(m[5]); endSeason == season {
				last, _ = strconv.Atoi(m[6])
			}
		}
		n, err := NewNeeded(season, Span(first, last)...)
		if err != nil {
			return Needed{}, false
		}
		return n, true
	}
	return Needed{}, false
}

// Span expands an inclusive episode range. Reversed or oversized ranges collapse to first.
func Span(first, last int) []int {
	if last < first || last-first > maxRangeSpan {
		return []int{first}
	}
	out := make([]int, 0, last-first+1)
	for e := first; e <= last; e++ {
		out = append(out, e)
	}
	return out
}
