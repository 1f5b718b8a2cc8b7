// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package extract

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/autobrr/magnetarr/pkg/magnet"
)

// Located is a magnet together with the document node it was found in.
// Node is the anchor element for links, or the text node for bare URIs.
type Located struct {
	Candidate magnet.Candidate
	Node      *html.Node

	// text around a bare URI inside its own text node, bounded by other magnets
	before string
	after  string
}

// Locate walks doc in document order and returns every magnet found in
// anchor hrefs and in visible text.
func Locate(doc *html.Node) []Located {
	var out []Located
	pos := 0

	var walk func(n *html.Node, inMagnetLink bool)
	walk = func(n *html.Node, inMagnetLink bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.A:
				href := htmlquery.SelectAttr(n, "href")
				if c, err := magnet.Parse(href); err == nil {
					c.Position = pos
					pos++
					out = append(out, Located{Candidate: c, Node: n})
					inMagnetLink = true
				}
			}
		case html.TextNode:
			if inMagnetLink || !magnet.Contains(n.Data) {
				return
			}
			found := magnet.Scan(n.Data)
			for i, c := range found {
				start := 0
				if i > 0 {
					start = found[i-1].Position + len(found[i-1].URI)
				}
				end := len(n.Data)
				if i+1 < len(found) {
					end = found[i+1].Position
				}
				before := n.Data[min(start, c.Position):c.Position]
				after := ""
				if tail := c.Position + len(c.URI); tail < end {
					after = n.Data[tail:end]
				}
				c.Position = pos
				pos++
				out = append(out, Located{Candidate: c, Node: n, before: before, after: after})
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inMagnetLink)
		}
	}
	walk(doc, false)
	return out
}

// carriesMagnet reports whether the subtree rooted at n holds any magnet.
func carriesMagnet(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return magnet.Contains(n.Data)
	case html.ElementNode:
		if n.DataAtom == atom.A && magnet.Contains(htmlquery.SelectAttr(n, "href")) {
			return true
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if carriesMagnet(child) {
			return true
		}
	}
	return false
}

// nodeText is the visible text of n with magnet URIs removed.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return magnet.Strip(n.Data)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
		return ""
	}
	return magnet.Strip(htmlquery.InnerText(n))
}

// directText joins the text nodes that are immediate children of n.
func directText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
			b.WriteByte(' ')
		}
	}
	return magnet.Strip(b.String())
}

var inlineWrappers = map[atom.Atom]bool{
	atom.Span: true, atom.B: true, atom.Strong: true, atom.I: true, atom.Em: true,
	atom.U: true, atom.Font: true, atom.Small: true, atom.Big: true, atom.Code: true,
}

// levelNode lifts n through inline wrappers it is the only meaningful child of,
// so <strong><a href=magnet>..</a></strong> is compared with the strong's siblings.
func levelNode(n *html.Node) *html.Node {
	for {
		p := n.Parent
		if p == nil || p.Type != html.ElementNode || !inlineWrappers[p.DataAtom] || !onlyChild(p, n) {
			return n
		}
		n = p
	}
}

func onlyChild(parent, n *html.Node) bool {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if child == n {
			continue
		}
		if child.Type == html.TextNode && strings.TrimSpace(child.Data) == "" {
			continue
		}
		return false
	}
	return true
}

// documentTitle returns the forum thread title, falling back to <title>.
func documentTitle(doc *html.Node) string {
	for _, expr := range []string{
		`//h2[contains(concat(' ', normalize-space(@class), ' '), ' topic-title ')]`,
		`//h2[contains(@class, 'topictitle')]`,
		`//title`,
	} {
		n, err := htmlquery.Query(doc, expr)
		if err != nil || n == nil {
			continue
		}
		if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
			return text
		}
	}
	return ""
}
