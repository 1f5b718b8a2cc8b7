// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transport

import (
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/magnetarr/pkg/httphelpers"
	"github.com/autobrr/magnetarr/pkg/redact"
)

const (
	defaultMaxRetries   = 3
	defaultInitialWait  = 500 * time.Millisecond
	defaultMaxRetryWait = 10 * time.Second
)

// RetryPolicy controls RetryTransport.
type RetryPolicy struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	} else if p.MaxRetries == 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.InitialWait <= 0 {
		p.InitialWait = defaultInitialWait
	}
	if p.MaxWait <= 0 {
		p.MaxWait = defaultMaxRetryWait
	}
	return p
}

// RetryTransport retries idempotent requests on transient network errors and
// on 429/5xx answers, with exponential backoff and jitter.
type RetryTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
}

// NewRetryTransport wraps base. A zero policy uses the defaults.
func NewRetryTransport(base http.RoundTripper, policy RetryPolicy) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{base: base, policy: policy.withDefaults()}
}

// RoundTrip implements http.RoundTripper.
//
//nolint:wrapcheck // transports hand back the underlying error unchanged
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotentMethod(req.Method) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	for attempt := 0; attempt <= t.policy.MaxRetries; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))

		if err == nil && !isRetryableStatus(resp.StatusCode) {
			if attempt > 0 {
				log.Debug().
					Str("url", redact.URLString(req.URL.String())).
					Int("attempt", attempt+1).
					Msg("request succeeded after retry")
			}
			return resp, nil
		}

		if err != nil && !isRetryableError(err) {
			log.Debug().
				Str("error", redact.String(err.Error())).
				Str("url", redact.URLString(req.URL.String())).
				Msg("request failed with non-retryable error")
			return nil, err
		}

		if attempt == t.policy.MaxRetries {
			if err != nil {
				log.Warn().
					Str("error", redact.String(err.Error())).
					Str("url", redact.URLString(req.URL.String())).
					Int("attempts", attempt+1).
					Msg("request failed after max retries")
				return nil, err
			}
			return resp, nil
		}

		backoff := calculateBackoff(attempt, t.policy.InitialWait, t.policy.MaxWait)
		if err == nil {
			if wait, ok := retryAfter(resp); ok {
				backoff = min(wait, t.policy.MaxWait)
			}
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: redact.URLString(req.URL.String())}
			httphelpers.DrainAndClose(resp)
		} else {
			lastErr = err
			t.closeIdleConnections()
		}

		log.Debug().
			Err(redact.URLError(lastErr)).
			Str("url", redact.URLString(req.URL.String())).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("request failed with retryable error, retrying")

		if err := waitForRetry(req, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// StatusError is a non-success HTTP status seen while retrying.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.StatusCode) + " from " + e.URL
}

//nolint:wrapcheck // callers expect unwrapped context errors from transports
func waitForRetry(req *http.Request, backoff time.Duration) error {
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

func (t *RetryTransport) closeIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if tr, ok := t.base.(closeIdler); ok {
		tr.CloseIdleConnections()
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout ||
		code == http.StatusInternalServerError
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0), true
	}
	return 0, false
}

// isRetryableError determines if an error is a transient network error that should be retried
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableError(urlErr.Err)
	}

	if isRetryableNetError(err) || isRetryableSyscallError(err) || errors.Is(err, io.EOF) {
		return true
	}

	return isRetryableErrorMessage(err)
}

// isRetryableNetError treats dial failures and non-timeout read failures as transient.
// A slow forum page is left to the client timeout.
func isRetryableNetError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
		if opErr.Op == "read" {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return false
			}
			return true
		}
	}
	return false
}

func isRetryableSyscallError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func isRetryableErrorMessage(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		(strings.Contains(errStr, "eof") && !strings.Contains(errStr, "unexpected eof"))
}

// isIdempotentMethod reports whether a request may be replayed. Login forms are
// POSTs and are retried one level up, where the form can be fetched again.
func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// calculateBackoff doubles initial per attempt up to maxBackoff, then applies
// a jitter factor between 0.5 and 1.5.
func calculateBackoff(attempt int, initial, maxBackoff time.Duration) time.Duration {
	backoff := initial
	for range attempt {
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
			break
		}
	}
	jittered := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
	return min(jittered, maxBackoff)
}
