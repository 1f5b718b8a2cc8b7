// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package magnet finds and validates magnet URIs in HTML or plain text.
package magnet

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var (
	ErrMalformed         = errors.New("malformed magnet uri")
	ErrUnsupportedScheme = errors.New("unsupported magnet hash scheme")
)

// Scheme is the hash namespace of a magnet's exact topic.
type Scheme string

const (
	SchemeBTIH Scheme = "btih"
	SchemeED2K Scheme = "ed2k"
	SchemeSHA1 Scheme = "sha1"
	SchemeMD5  Scheme = "md5"
)

var supported = []Scheme{SchemeBTIH, SchemeED2K, SchemeSHA1, SchemeMD5}

// Supported reports whether s is an accepted hash namespace.
func Supported(s Scheme) bool {
	return slices.Contains(supported, s)
}

const (
	minHashLen = 32
	maxHashLen = 64
)

var (
	hexHash    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	base32Hash = regexp.MustCompile(`^[A-Za-z2-7]{32}$`)
)

// Candidate is a validated magnet URI found in a document.
type Candidate struct {
	URI      string
	Hash     string // lowercase hex
	Scheme   Scheme
	Position int // byte offset in the scanned text, -1 when unknown
	Name     string
	Trackers []string
}

// Key identifies the payload regardless of trackers or display name.
func (c Candidate) Key() string {
	return string(c.Scheme) + ":" + c.Hash
}

// Parse validates a single magnet URI.
func Parse(uri string) (Candidate, error) {
	uri = strings.TrimSpace(html.UnescapeString(uri))
	if !strings.HasPrefix(strings.ToLower(uri), "magnet:?") {
		return Candidate{}, fmt.Errorf("%w: missing magnet prefix", ErrMalformed)
	}

	// a bad escape in dn or tr still leaves a usable exact topic
	query, err := url.ParseQuery(uri[len("magnet:?"):])
	if err != nil && len(query["xt"]) == 0 {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var lastErr error = fmt.Errorf("%w: no exact topic", ErrMalformed)
	for _, xt := range query["xt"] {
		scheme, hash, err := parseTopic(xt)
		if err != nil {
			lastErr = err
			continue
		}
		c := Candidate{
			URI:      uri,
			Hash:     hash,
			Scheme:   scheme,
			Position: -1,
			Name:     stripExtension(query.Get("dn")),
			Trackers: query["tr"],
		}
		if scheme == SchemeBTIH {
			enrichBTIH(&c)
		}
		return c, nil
	}
	return Candidate{}, lastErr
}

// parseTopic validates "urn:<scheme>:<hash>".
func parseTopic(xt string) (Scheme, string, error) {
	parts := strings.SplitN(xt, ":", 3)
	if len(parts) != 3 || !strings.EqualFold(parts[0], "urn") {
		return "", "", fmt.Errorf("%w: bad exact topic %q", ErrMalformed, xt)
	}
	scheme := Scheme(strings.ToLower(parts[1]))
	if !Supported(scheme) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, parts[1])
	}

	hash := parts[2]
	switch {
	case len(hash) >= minHashLen && len(hash) <= maxHashLen && hexHash.MatchString(hash):
		return scheme, strings.ToLower(hash), nil
	case scheme == SchemeBTIH && base32Hash.MatchString(hash):
		raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return scheme, hex.EncodeToString(raw), nil
	default:
		return "", "", fmt.Errorf("%w: invalid hash %q", ErrMalformed, hash)
	}
}

// enrichBTIH lets the torrent library read the display name and trackers, it
// handles the multi-value forms (tr.1, tr.2) the plain query parser leaves alone.
func enrichBTIH(c *Candidate) {
	m, err := metainfo.ParseMagnetUri(c.URI)
	if err != nil {
		return
	}
	if m.DisplayName != "" {
		c.Name = stripExtension(m.DisplayName)
	}
	if len(m.Trackers) > 0 {
		c.Trackers = m.Trackers
	}
}

var videoExt = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".ts": true, ".wmv": true, ".torrent": true,
}

func stripExtension(name string) string {
	name = strings.TrimSpace(name)
	if ext := strings.ToLower(path.Ext(name)); videoExt[ext] {
		return strings.TrimSuffix(name, name[len(name)-len(ext):])
	}
	return name
}

// Dedupe keeps the first candidate for each key, preserving order.
func Dedupe(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	return out
}
