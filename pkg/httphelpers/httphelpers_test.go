// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBasePath(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"/":             "",
		"  ":            "",
		"magnetarr":     "/magnetarr",
		"/magnetarr/":   "/magnetarr",
		"/a/b/":         "/a/b",
		" /magnetarr  ": "/magnetarr",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBasePath(in), "input %q", in)
	}
}

func TestJoinBasePath(t *testing.T) {
	assert.Equal(t, "/", JoinBasePath("", ""))
	assert.Equal(t, "/api/webhook", JoinBasePath("", "api/webhook"))
	assert.Equal(t, "/m/api/webhook", JoinBasePath("/m", "/api/webhook"))
	assert.Equal(t, "/m", JoinBasePath("/m", ""))
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("leftover")}
	DrainAndClose(&http.Response{Body: body})
	assert.True(t, body.closed)

	DrainAndClose(nil)
	DrainAndClose(&http.Response{})
}
