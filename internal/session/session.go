// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package session keeps forum login cookies between runs.
package session

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/autobrr/magnetarr/pkg/fsutil"
)

// Store is a cookie jar that can be written to and restored from a JSON file.
// The zero value is not usable, use New.
type Store struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	path string
	// sites tracks every URL cookies were set for, the jar itself cannot be enumerated.
	sites map[string]*url.URL
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

type persistedSession struct {
	Sites map[string][]persistedCookie `json:"sites"`
	Saved time.Time                    `json:"saved"`
}

// New creates an empty store persisted at path. An empty path keeps cookies in memory only.
func New(path string) (*Store, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}
	return &Store{jar: jar, path: path, sites: make(map[string]*url.URL)}, nil
}

// Cookies implements http.CookieJar.
func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
	site := siteOf(u)
	s.sites[site.String()] = site
}

// Cookie returns the named cookie sent to u, or nil.
func (s *Store) Cookie(u *url.URL, name string) *http.Cookie {
	for _, c := range s.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Load restores cookies from disk. A missing file is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read session file")
	}

	var persisted persistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("ignoring unreadable session file")
		return nil
	}

	now := time.Now()
	for raw, cookies := range persisted.Sites {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		restored := make([]*http.Cookie, 0, len(cookies))
		for _, pc := range cookies {
			if !pc.Expires.IsZero() && pc.Expires.Before(now) {
				continue
			}
			restored = append(restored, &http.Cookie{
				Name:     pc.Name,
				Value:    pc.Value,
				Path:     pc.Path,
				Domain:   pc.Domain,
				Expires:  pc.Expires,
				Secure:   pc.Secure,
				HttpOnly: pc.HttpOnly,
			})
		}
		if len(restored) > 0 {
			s.SetCookies(u, restored)
		}
	}

	log.Debug().Str("path", s.path).Int("sites", len(persisted.Sites)).Msg("session restored")
	return nil
}

// Save writes the current cookies to disk with owner-only permissions.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	persisted := persistedSession{Sites: make(map[string][]persistedCookie, len(s.sites)), Saved: time.Now()}
	for key, u := range s.sites {
		cookies := s.jar.Cookies(u)
		if len(cookies) == 0 {
			continue
		}
		out := make([]persistedCookie, 0, len(cookies))
		for _, c := range cookies {
			// the jar only hands back name and value
			out = append(out, persistedCookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		persisted.Sites[key] = out
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write session file")
	}
	return nil
}

// Clear drops every cookie and removes the session file.
func (s *Store) Clear() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return errors.Wrap(err, "failed to create cookie jar")
	}

	s.mu.Lock()
	s.jar = jar
	s.sites = make(map[string]*url.URL)
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}

func siteOf(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}
