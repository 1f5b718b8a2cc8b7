// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNegative(t *testing.T) {
	_, err := New(-1, 2)
	require.ErrorIs(t, err, ErrNegative)

	_, err = New(1, -2)
	require.ErrorIs(t, err, ErrNegative)

	id, err := New(5, 0)
	require.NoError(t, err)
	assert.True(t, id.IsSeasonPack())
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "S05E04", MustNew(5, 4).String())
	assert.Equal(t, "S05E00", MustNew(5, 0).String())
	assert.Equal(t, "S12E103", MustNew(12, 103).String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ID
		ok   bool
	}{
		{"S05E04", MustNew(5, 4), true},
		{"s5e4", MustNew(5, 4), true},
		{"S05E00", MustNew(5, 0), true},
		{"S05", ID{}, false},
		{"5x04", ID{}, false},
		{"", ID{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaddingDoesNotChangeIdentity(t *testing.T) {
	a, _ := Parse("S5E4")
	b, _ := Parse("S05E04")
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
}

func TestUnique(t *testing.T) {
	in := []ID{MustNew(1, 2), MustNew(1, 1), MustNew(1, 2), MustNew(2, 1), MustNew(1, 1)}
	assert.Equal(t, []ID{MustNew(1, 2), MustNew(1, 1), MustNew(2, 1)}, Unique(in))
	assert.Empty(t, Unique(nil))
}

func TestNeeded(t *testing.T) {
	n, err := NewNeeded(5, 4, 2, 4, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, n.Season())
	assert.Equal(t, []int{2, 4}, n.Episodes())
	assert.False(t, n.WholeSeason())
	assert.True(t, n.Contains(4))
	assert.False(t, n.Contains(3))
	assert.Equal(t, "S05E02,S05E04", n.String())

	assert.True(t, n.Accepts(MustNew(5, 2)))
	assert.True(t, n.Accepts(MustNew(5, 0)), "season pack covers the needed episodes")
	assert.False(t, n.Accepts(MustNew(4, 2)))
	assert.False(t, n.Accepts(MustNew(5, 3)))

	eps := n.Episodes()
	eps[0] = 99
	assert.Equal(t, []int{2, 4}, n.Episodes(), "episodes are copied out")
}

func TestWholeSeasonNeeded(t *testing.T) {
	n := WholeSeason(3)
	assert.True(t, n.WholeSeason())
	assert.True(t, n.Accepts(MustNew(3, 7)))
	assert.False(t, n.Accepts(MustNew(2, 7)))
	assert.Equal(t, []ID{MustNew(3, 0)}, n.IDs())
}

func TestParseNeeded(t *testing.T) {
	n, err := ParseNeeded("5", "1,2, 3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, n.Episodes())

	n, err = ParseNeeded("2", "")
	require.NoError(t, err)
	assert.True(t, n.WholeSeason())

	_, err = ParseNeeded("x", "1")
	require.Error(t, err)

	_, err = ParseNeeded("1", "a")
	require.Error(t, err)
}

func TestParseNeededFromPath(t *testing.T) {
	tests := []struct {
		path    string
		season  int
		eps     []int
		wantHit bool
	}{
		{"Show/Season 1/Show.S01E01.mkv", 1, []int{1}, true},
		{"Show.S01E01-E03.1080p.mkv", 1, []int{1, 2, 3}, true},
		{"Show.S02E05-07.mkv", 2, []int{5, 6, 7}, true},
		{"Show.S02E05E06.mkv", 2, []int{5, 6}, true},
		{"Show.S01E10-S01E12.mkv", 1, []int{10, 11, 12}, true},
		{"Show.S01E10-S02E01.mkv", 1, []int{10}, true},
		{"Show 1x01-03.mkv", 1, []int{1, 2, 3}, true},
		{"Show 3x10.mkv", 3, []int{10}, true},
		{"Movie.1920x1080.mkv", 0, nil, false},
		{"", 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, ok := ParseNeededFromPath(tt.path)
			require.Equal(t, tt.wantHit, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.season, n.Season())
			assert.Equal(t, tt.eps, n.Episodes())
		})
	}
}

func TestSpan(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, Span(3, 5))
	assert.Equal(t, []int{5}, Span(5, 3))
	assert.Equal(t, []int{1}, Span(1, 1000))
}
