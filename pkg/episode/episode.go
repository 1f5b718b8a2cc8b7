// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package episode holds the canonical season/episode identifier and the set of
// episodes a caller wants for one season.
package episode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrNegative is returned when a season or episode number is below zero.
var ErrNegative = errors.New("season and episode must not be negative")

// ID identifies one episode (or a whole season when the episode is 0).
// The zero value is season 0 episode 0 and is never produced by parsing.
type ID struct {
	season  int
	episode int
}

// New validates and builds an ID.
func New(season, episode int) (ID, error) {
	if season < 0 || episode < 0 {
		return ID{}, fmt.Errorf("%w: season=%d episode=%d", ErrNegative, season, episode)
	}
	return ID{season: season, episode: episode}, nil
}

// MustNew is New for values already known to be valid.
func MustNew(season, episode int) ID {
	id, err := New(season, episode)
	if err != nil {
		panic(err)
	}
	return id
}

// SeasonPack returns the identifier that stands for a whole season.
func SeasonPack(season int) (ID, error) {
	return New(season, 0)
}

func (id ID) Season() int  { return id.season }
func (id ID) Episode() int { return id.episode }

// IsSeasonPack reports whether the identifier covers a whole season.
func (id ID) IsSeasonPack() bool {
	return id.episode == 0
}

// String renders the canonical code, e.g. S05E04 or S05E00.
func (id ID) String() string {
	return fmt.Sprintf("S%02dE%02d", id.season, id.episode)
}

var codePattern = regexp.MustCompile(`^(?i)s(\d{1,3})e(\d{1,4})$`)

// Parse reads a canonical code. Padding is optional, so S5E4 and S05E04 are equal.
func Parse(code string) (ID, bool) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return ID{}, false
	}
	season, _ := strconv.Atoi(m[1])
	ep, _ := strconv.Atoi(m[2])
	return ID{season: season, episode: ep}, true
}

// Unique drops repeated identifiers, keeping the first occurrence.
func Unique(ids []ID) []ID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
