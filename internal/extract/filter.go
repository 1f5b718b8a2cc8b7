// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package extract

import (
	"fmt"
	"strings"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/magnet"
)

// UnresolvedPolicy decides what happens to magnets without any episode context.
type UnresolvedPolicy int

const (
	// UnresolvedReject drops magnets without context.
	UnresolvedReject UnresolvedPolicy = iota
	// UnresolvedSeason keeps them when the whole season is needed.
	UnresolvedSeason
)

// ParseUnresolvedPolicy reads "reject" or "season".
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return UnresolvedReject, nil
	case "season":
		return UnresolvedSeason, nil
	default:
		return UnresolvedReject, fmt.Errorf("unknown unresolved policy %q", s)
	}
}

func (p UnresolvedPolicy) String() string {
	if p == UnresolvedSeason {
		return "season"
	}
	return "reject"
}

// FilterOptions tune Filter.
type FilterOptions struct {
	Unresolved UnresolvedPolicy
}

// Filter returns the magnets covering at least one needed episode, in input
// order, each at most once. Magnets without context are only kept under
// UnresolvedSeason when needed names no specific episode.
func Filter(assocs []Association, needed episode.Needed, opts FilterOptions) []magnet.Candidate {
	seen := make(map[string]struct{}, len(assocs))
	var out []magnet.Candidate
	for _, a := range assocs {
		if !selected(a, needed, opts) {
			continue
		}
		key := a.Magnet.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a.Magnet)
	}
	return out
}

func selected(a Association, needed episode.Needed, opts FilterOptions) bool {
	if !a.Resolved() {
		return opts.Unresolved == UnresolvedSeason && needed.WholeSeason()
	}
	for _, id := range a.Episodes {
		if needed.Accepts(id) {
			return true
		}
	}
	return false
}
