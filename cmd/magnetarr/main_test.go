// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/magnetarr/internal/domain"
	"github.com/autobrr/magnetarr/internal/pipeline"
	"github.com/autobrr/magnetarr/internal/services/arr"
)

func envLookup(env map[string]string) arr.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestRunHookWithoutForumWork(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		opts    hookOptions
		wantErr bool
		wantOut string
	}{
		{
			name:    "test event",
			env:     map[string]string{"sonarr_eventtype": "Test"},
			wantOut: "Test event received",
		},
		{
			name:    "upper case variables",
			env:     map[string]string{"SONARR_EVENTTYPE": "Test"},
			wantOut: "Test event received",
		},
		{
			name:    "no event",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "rename event is ignored",
			env:  map[string]string{"sonarr_eventtype": "Rename", "sonarr_release_title": "Show S01E01"},
		},
		{
			name: "release flag keeps the event type",
			env:  map[string]string{"sonarr_eventtype": "HealthIssue"},
			opts: hookOptions{release: "Show S01E01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runHook(context.Background(), &out, tt.opts, envLookup(tt.env))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestSonarrClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.Config
		ev   arr.HookEvent
		want bool
	}{
		{"nothing configured", domain.Config{}, arr.HookEvent{}, false},
		{"config only", domain.Config{SonarrURL: "http://sonarr:8989", SonarrAPIKey: "k"}, arr.HookEvent{}, true},
		{"hook only", domain.Config{}, arr.HookEvent{ApplicationURL: "http://sonarr:8989", APIKey: "k"}, true},
		{"config url with hook key", domain.Config{SonarrURL: "http://sonarr:8989"}, arr.HookEvent{APIKey: "k"}, true},
		{"missing key", domain.Config{SonarrURL: "http://sonarr:8989"}, arr.HookEvent{}, false},
		{"invalid url", domain.Config{SonarrURL: "sonarr", SonarrAPIKey: "k"}, arr.HookEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			got := sonarrClient(&cfg, tt.ev)
			assert.Equal(t, tt.want, got != nil)
		})
	}
}

func TestPrintReport(t *testing.T) {
	report := &pipeline.Report{
		Release: "Show S02 1080p",
		DryRun:  true,
		Added:   []string{"magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&tr=http://tracker/announce?passkey=secret"},
	}

	var out bytes.Buffer
	printReport(&out, report)

	assert.Contains(t, out.String(), "release:  Show S02 1080p")
	assert.Contains(t, out.String(), "[dry run] added")
	assert.Contains(t, out.String(), "0123456789abcdef0123456789abcdef01234567")
	assert.NotContains(t, out.String(), "secret")

	out.Reset()
	printReport(&out, nil)
	assert.Empty(t, out.String())
}
