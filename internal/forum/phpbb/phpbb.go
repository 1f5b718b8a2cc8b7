// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package phpbb talks to phpBB release boards. The mircrew type is phpBB with
// the MIRCrew base URL and subforums preset.
package phpbb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/autobrr/magnetarr/internal/forum"
	"github.com/autobrr/magnetarr/internal/session"
	"github.com/autobrr/magnetarr/internal/transport"
	"github.com/autobrr/magnetarr/pkg/httphelpers"
	"github.com/autobrr/magnetarr/pkg/redact"
)

const (
	TypePHPBB   = "phpbb"
	TypeMIRCrew = "mircrew"

	MIRCrewBaseURL = "https://mircrew-releases.org/"

	defaultLoginAttempts = 15
	defaultLoginDelay    = 5 * time.Second
	defaultLoginMaxDelay = 300 * time.Second

	maxPageSize = 8 << 20
)

// MIRCrewSubforums are the TV release boards searched on MIRCrew.
var MIRCrewSubforums = []int{28, 51, 52, 30}

type preset struct {
	baseURL     string
	subforums   []int
	threadForum int
}

var presets = map[string]preset{
	TypePHPBB:   {},
	TypeMIRCrew: {baseURL: MIRCrewBaseURL, subforums: MIRCrewSubforums, threadForum: 51},
}

func init() {
	for name := range presets {
		forum.Register(name, func(cfg forum.Config, store *session.Store) (forum.Forum, error) {
			f, err := New(cfg, store)
			if err != nil {
				return nil, err
			}
			return f, nil
		})
	}
}

// Forum is a phpBB board reached over a cookie session.
type Forum struct {
	name        string
	base        *url.URL
	username    string
	password    string
	subforums   []int
	threadForum int

	client *http.Client
	store  *session.Store

	// login serializes EnsureSession.
	login sync.Mutex

	loginAttempts int
	loginDelay    time.Duration
	loginMaxDelay time.Duration
}

// New builds a Forum. cfg.Type selects the preset; explicit config values win over it.
func New(cfg forum.Config, store *session.Store) (*Forum, error) {
	p, ok := presets[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", forum.ErrUnknownType, cfg.Type)
	}

	rawBase := cfg.BaseURL
	if rawBase == "" {
		rawBase = p.baseURL
	}
	if rawBase == "" {
		return nil, errors.New("phpbb: base url is required")
	}
	if !strings.HasSuffix(rawBase, "/") {
		rawBase += "/"
	}
	base, err := url.Parse(rawBase)
	if err != nil || base.Host == "" {
		return nil, errors.Errorf("phpbb: invalid base url %q", rawBase)
	}

	subforums := cfg.Subforums
	if len(subforums) == 0 {
		subforums = p.subforums
	}

	if store == nil {
		if store, err = session.New(""); err != nil {
			return nil, err
		}
	}

	httpOpts := cfg.HTTP
	httpOpts.Jar = store

	attempts := cfg.LoginAttempts
	if attempts <= 0 {
		attempts = defaultLoginAttempts
	}

	return &Forum{
		name:          cfg.Type,
		base:          base,
		username:      cfg.Username,
		password:      cfg.Password,
		subforums:     subforums,
		threadForum:   p.threadForum,
		client:        transport.NewClient(httpOpts),
		store:         store,
		loginAttempts: attempts,
		loginDelay:    defaultLoginDelay,
		loginMaxDelay: defaultLoginMaxDelay,
	}, nil
}

func (f *Forum) Name() string { return f.name }

func (f *Forum) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return f.base.String() + strings.TrimPrefix(ref, "./")
	}
	return f.base.ResolveReference(u).String()
}

type page struct {
	url  string
	body string
	doc  *html.Node
}

func (f *Forum) get(ctx context.Context, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	return f.do(req)
}

func (f *Forum) postForm(ctx context.Context, rawURL string, form url.Values) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", rawURL)
	return f.do(req)
}

func (f *Forum) do(req *http.Request) (*page, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(redact.URLError(err), "%s request failed", req.Method)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(forum.ErrThreadNotFound, "%s", redact.URLString(req.URL.String()))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, redact.URLString(req.URL.String()))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, errors.Wrap(err, "could not read response body")
	}

	doc, err := htmlquery.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse page")
	}

	return &page{url: resp.Request.URL.String(), body: string(data), doc: doc}, nil
}
