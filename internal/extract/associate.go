// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/magnet"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

const (
	// MaxAncestorDepth bounds the upward walk from a magnet's node.
	MaxAncestorDepth = 5

	maxSiblingDistance = 8
)

// Level tells which part of the document produced an association.
type Level string

const (
	LevelNone     Level = ""
	LevelElement  Level = "element"
	LevelName     Level = "display-name"
	LevelSibling  Level = "sibling"
	LevelAncestor Level = "ancestor"
	LevelThread   Level = "thread-title"
)

// Association pairs a magnet with the episodes it covers.
// An empty Episodes slice means no context could be recovered.
type Association struct {
	Magnet   magnet.Candidate
	Episodes []episode.ID
	Level    Level
}

// Resolved reports whether any identifier was found.
func (a Association) Resolved() bool {
	return len(a.Episodes) > 0
}

// Specific reports whether the magnet names at least one concrete episode.
func (a Association) Specific() bool {
	for _, id := range a.Episodes {
		if !id.IsSeasonPack() {
			return true
		}
	}
	return false
}

// AssocContext carries caller knowledge into association.
type AssocContext struct {
	// Season resolves episode-only phrases like "Ep 7". Zero means unknown.
	Season int
}

type fragment struct {
	text  string
	level Level
}

// Associate recovers the episodes l represents from its surroundings.
// Fragments are tried nearest first and the first one yielding identifiers wins.
func Associate(l Located, ctx AssocContext) ([]episode.ID, Level) {
	for _, f := range fragments(l) {
		if strings.TrimSpace(f.text) == "" {
			continue
		}
		if ids := titleparse.NormalizeWithSeason(f.text, ctx.Season); len(ids) > 0 {
			return ids, f.level
		}
	}
	return nil, LevelNone
}

func fragments(l Located) []fragment {
	var out []fragment

	if l.Node.Type == html.TextNode {
		out = append(out,
			fragment{magnet.Strip(l.before), LevelElement},
			fragment{magnet.Strip(l.after), LevelElement},
		)
	} else {
		out = append(out, fragment{nodeText(l.Node), LevelElement})
	}

	out = append(out, fragment{l.Candidate.Name, LevelName})

	level := levelNode(l.Node)
	for _, sib := range siblings(level) {
		out = append(out, fragment{nodeText(sib), LevelSibling})
	}

	// Each ancestor offers its own loose text, then the labels next to it.
	// Those siblings live one level further up, so the last ancestor skips them.
	depth := 0
	for p := level.Parent; p != nil && depth < MaxAncestorDepth; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		depth++
		out = append(out, fragment{directText(p), LevelAncestor})
		if depth == MaxAncestorDepth || p.DataAtom == atom.Body || p.DataAtom == atom.Html {
			break
		}
		for _, sib := range siblings(p) {
			out = append(out, fragment{nodeText(sib), LevelAncestor})
		}
	}
	return out
}

// siblings lists n's siblings by distance, previous before next. Siblings
// without text, like <br>, are passed over. A direction stops at the first
// sibling holding another magnet since the labels beyond belong to that magnet.
func siblings(n *html.Node) []*html.Node {
	var out []*html.Node
	prev, next := n.PrevSibling, n.NextSibling
	prevOpen, nextOpen := true, true

	for d := 0; d < maxSiblingDistance && (prevOpen || nextOpen); d++ {
		if prevOpen {
			prev = skipBlank(prev, true)
			if prev == nil || carriesMagnet(prev) {
				prevOpen = false
			} else {
				out = append(out, prev)
				prev = prev.PrevSibling
			}
		}
		if nextOpen {
			next = skipBlank(next, false)
			if next == nil || carriesMagnet(next) {
				nextOpen = false
			} else {
				out = append(out, next)
				next = next.NextSibling
			}
		}
	}
	return out
}

func skipBlank(n *html.Node, backward bool) *html.Node {
	for n != nil && !carriesMagnet(n) && strings.TrimSpace(nodeText(n)) == "" {
		if backward {
			n = n.PrevSibling
		} else {
			n = n.NextSibling
		}
	}
	return n
}
