// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package transport builds the HTTP clients used to talk to forums: retries with
// backoff, a politeness rate limit, response decompression and a fixed user agent.
package transport

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/autobrr/magnetarr/internal/buildinfo"
)

const defaultTimeout = 30 * time.Second

// Options configure NewClient.
type Options struct {
	Timeout time.Duration
	Retry   RetryPolicy
	// RequestsPerSecond limits outgoing requests, 0 disables the limit.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	Jar               http.CookieJar
	Base              http.RoundTripper
}

// NewClient returns an *http.Client with the transport chain
// user agent → decompression → retry → rate limit → base.
func NewClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := opts.Base
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.RequestsPerSecond > 0 {
		base = NewRateLimitTransport(base, opts.RequestsPerSecond, opts.Burst)
	}

	var rt http.RoundTripper = NewRetryTransport(base, opts.Retry)
	rt = &decompressTransport{base: rt}

	ua := opts.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent
	}
	rt = &userAgentTransport{base: rt, userAgent: ua}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		Jar:       opts.Jar,
	}
}

// RateLimitTransport waits on a token bucket before every request.
type RateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func NewRateLimitTransport(base http.RoundTripper, perSecond float64, burst int) *RateLimitTransport {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitTransport{base: base, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

//nolint:wrapcheck // transports hand back the underlying error unchanged
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// decompressTransport asks for brotli as well as gzip. Setting Accept-Encoding
// turns off the standard library's transparent gzip, so both are decoded here.
type decompressTransport struct {
	base http.RoundTripper
}

//nolint:wrapcheck // transports hand back the underlying error unchanged
func (t *decompressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Method != http.MethodHead {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	var decoded io.Reader
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		decoded = brotli.NewReader(resp.Body)
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			// empty bodies (e.g. 304) carry the header but no gzip stream
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(nil))
			return resp, nil
		}
		decoded = zr
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	return b.raw.Close()
}
