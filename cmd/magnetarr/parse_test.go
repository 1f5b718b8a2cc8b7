// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "episode batch",
			args:     []string{"Show S05E01E02 1080p WEB-DL"},
			contains: []string{"episodes:  S05E01 S05E02", "season:    5", "query:     exact"},
		},
		{
			name:     "season pack",
			args:     []string{"Show Stagione 3 Completa"},
			contains: []string{"episodes:  S03E00", "fallback:"},
		},
		{
			name:     "no identifiers",
			args:     []string{"Just Some Movie"},
			contains: []string{"episodes:  -"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, RunParseCommand(), tt.args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestParseCommandRequiresTitle(t *testing.T) {
	_, err := runCommand(t, RunParseCommand())
	require.Error(t, err)
}
