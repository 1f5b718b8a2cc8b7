// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

// scriptedRoundTripper replays one step per call.
type scriptedRoundTripper struct {
	steps    []step
	attempts int
}

type step struct {
	status int
	err    error
}

func (s *scriptedRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	st := s.steps[min(s.attempts, len(s.steps)-1)]
	s.attempts++
	if st.err != nil {
		return nil, st.err
	}
	return &http.Response{
		StatusCode: st.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("body")),
	}, nil
}

func newGet(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://forum.example/viewtopic.php?t=1", http.NoBody)
	require.NoError(t, err)
	return req
}

func TestRetryTransport_RetriesNetworkErrors(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{
		{err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
		{err: syscall.ECONNRESET},
		{status: http.StatusOK},
	}}

	resp, err := NewRetryTransport(rt, fastPolicy).RoundTrip(newGet(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, rt.attempts)
}

func TestRetryTransport_RetriesServerErrors(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{
		{status: http.StatusServiceUnavailable},
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK},
	}}

	resp, err := NewRetryTransport(rt, fastPolicy).RoundTrip(newGet(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, rt.attempts)
}

func TestRetryTransport_ReturnsLastStatusAfterMaxRetries(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{{status: http.StatusBadGateway}}}

	resp, err := NewRetryTransport(rt, fastPolicy).RoundTrip(newGet(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 4, rt.attempts)
}

func TestRetryTransport_NonRetryableError(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{{err: errors.New("tls: bad certificate")}}}

	_, err := NewRetryTransport(rt, fastPolicy).RoundTrip(newGet(t))
	require.Error(t, err)
	assert.Equal(t, 1, rt.attempts)
}

func TestRetryTransport_DoesNotRetryPost(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{{err: syscall.ECONNRESET}}}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://forum.example/ucp.php?mode=login", strings.NewReader("a=b"))
	require.NoError(t, err)

	_, err = NewRetryTransport(rt, fastPolicy).RoundTrip(req)
	require.Error(t, err)
	assert.Equal(t, 1, rt.attempts)
}

func TestRetryTransport_ContextCancellation(t *testing.T) {
	rt := &scriptedRoundTripper{steps: []step{{err: syscall.ECONNRESET}}}
	policy := RetryPolicy{MaxRetries: 3, InitialWait: time.Hour, MaxWait: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://forum.example/", http.NoBody)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = NewRetryTransport(rt, policy).RoundTrip(req)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rt.attempts)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url wrapped reset", &url.Error{Op: "Get", URL: "http://x", Err: syscall.ECONNRESET}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", errors.New("unexpected EOF"), false},
		{"no such host", errors.New("dial tcp: lookup forum: no such host"), true},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	for attempt := range 6 {
		got := calculateBackoff(attempt, 100*time.Millisecond, time.Second)
		assert.LessOrEqual(t, got, time.Second)
		assert.GreaterOrEqual(t, got, 50*time.Millisecond)
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	d, ok := retryAfter(resp)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = retryAfter(&http.Response{Header: http.Header{}})
	assert.False(t, ok)
}
