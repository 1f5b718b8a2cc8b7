// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package forum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/magnetarr/internal/session"
)

type stubForum struct{ name string }

func (s stubForum) Name() string                      { return s.name }
func (stubForum) EnsureSession(context.Context) error { return nil }
func (stubForum) Search(context.Context, string) ([]Thread, error) {
	return nil, nil
}
func (stubForum) FetchThread(context.Context, string) (*Page, error) { return nil, ErrThreadNotFound }
func (stubForum) FetchPost(context.Context, string) (string, error)  { return "", nil }

func TestRegistry(t *testing.T) {
	Register("stub-test", func(cfg Config, _ *session.Store) (Forum, error) {
		return stubForum{name: cfg.Type}, nil
	})

	f, err := New(Config{Type: "stub-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-test", f.Name())
	assert.Contains(t, Types(), "stub-test")

	_, err = New(Config{Type: "nope"}, nil)
	require.ErrorIs(t, err, ErrUnknownType)

	assert.Panics(t, func() {
		Register("stub-test", func(Config, *session.Store) (Forum, error) { return nil, nil })
	})
}

func TestRank(t *testing.T) {
	threads := []Thread{
		{ID: "1", Title: "Only Fools and Horses - Stagione 2"},
		{ID: "2", Title: "Only Murders in the Building - Stagione 5 (2025) [In Corso]"},
		{ID: "3", Title: "Only Murders in the Building - Stagione 4"},
	}

	ranked := Rank(threads, "Only Murders in the Building")
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})

	// input untouched
	assert.Equal(t, "1", threads[0].ID)

	best, ok := Best(threads, "only murders in the building")
	require.True(t, ok)
	assert.Equal(t, "2", best.ID)

	_, ok = Best(nil, "x")
	assert.False(t, ok)

	assert.Equal(t, threads, Rank(threads, ""))
}
