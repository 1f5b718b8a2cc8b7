// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name       string
		from       State
		succeeded  bool
		hasPostRef bool
		want       State
	}{
		{"primary success", StatePrimary, true, false, StateDone},
		{"primary fail with ref", StatePrimary, false, true, StateEnhanced},
		{"primary fail without ref skips enhanced", StatePrimary, false, false, StateLegacy},
		{"enhanced success", StateEnhanced, true, true, StateDone},
		{"enhanced fail", StateEnhanced, false, true, StateLegacy},
		{"legacy success", StateLegacy, true, false, StateDone},
		{"legacy fail", StateLegacy, false, true, StateExhausted},
		{"exhausted stays", StateExhausted, true, true, StateExhausted},
		{"done stays", StateDone, false, false, StateDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transition(tt.from, tt.succeeded, tt.hasPostRef))
		})
	}
}

type stubPosts struct {
	body  string
	err   error
	calls int
}

func (s *stubPosts) FetchPost(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.body, s.err
}

type recordingObserver struct {
	attempts []Attempt
}

func (r *recordingObserver) ObserveAttempt(a Attempt) {
	r.attempts = append(r.attempts, a)
}

func strategies(attempts []Attempt) []State {
	out := make([]State, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, a.Strategy)
	}
	return out
}

func TestExtractPrimary(t *testing.T) {
	page := `<div class="content">
<p>S05E01 <a href="` + magnetURI(1) + `">link</a></p>
<p>S05E02 <a href="` + magnetURI(2) + `">link</a></p>
</div>`

	obs := &recordingObserver{}
	o := NewOrchestrator(WithObserver(obs))
	res := o.Extract(context.Background(), Input{ReleaseTitle: "Show S05E01", HTML: page})

	assert.False(t, res.Exhausted)
	assert.Equal(t, StatePrimary, res.Strategy)
	assert.Equal(t, []State{StatePrimary}, strategies(res.Attempts))
	assert.Len(t, obs.attempts, 1)
	require.Len(t, res.Associations, 2)
	assert.Equal(t, []string{"S05E01"}, idCodes(res.Associations[0].Episodes))
	assert.Equal(t, []string{"S05E02"}, idCodes(res.Associations[1].Episodes))
	assert.Empty(t, res.SeasonQuery)
}

func TestExtractDedupesTrackerOrder(t *testing.T) {
	page := `<p>S01E01 <a href="` + magnetURI(1, "tr=udp://a", "tr=udp://b") + `">x</a></p>
<p>S01E01 <a href="` + magnetURI(1, "tr=udp://b", "tr=udp://a") + `">y</a></p>`

	res := NewOrchestrator().Extract(context.Background(), Input{HTML: page})
	require.Len(t, res.Associations, 1)
	assert.Len(t, res.Found(), 1)
}

func TestExtractSkipsEnhancedWithoutPostRef(t *testing.T) {
	page := `<html><head><title>Breaking Bad - Stagione 5 [IN CORSO]</title></head>
<body><a href="` + magnetURI(1) + `">download</a></body></html>`

	posts := &stubPosts{body: "<p>S05E01</p>"}
	res := NewOrchestrator(WithPostFetcher(posts)).Extract(context.Background(), Input{
		ReleaseTitle: "Breaking Bad - Stagione 5",
		HTML:         page,
	})

	assert.Equal(t, []State{StatePrimary, StateLegacy}, strategies(res.Attempts))
	assert.Zero(t, posts.calls, "enhanced must not run without a post reference")
	assert.Equal(t, StateLegacy, res.Strategy)
	require.Len(t, res.Associations, 1)
	assert.Equal(t, LevelThread, res.Associations[0].Level)
	assert.Equal(t, []string{"S05E00"}, idCodes(res.Associations[0].Episodes))
	assert.Equal(t, "Breaking Bad - Stagione 5", res.SeasonQuery)
}

func TestExtractEnhanced(t *testing.T) {
	page := `<div><a href="` + magnetURI(1) + `">download</a></div>`
	post := `<div class="content">Episodio 4 <a href="` + magnetURI(2) + `">link</a></div>`

	posts := &stubPosts{body: post}
	res := NewOrchestrator(WithPostFetcher(posts)).Extract(context.Background(), Input{
		ReleaseTitle: "Show - Stagione 5",
		HTML:         page,
		PostRef:      "p123",
	})

	assert.Equal(t, []State{StatePrimary, StateEnhanced}, strategies(res.Attempts))
	assert.Equal(t, 1, posts.calls)
	require.Len(t, res.Associations, 1)
	assert.Equal(t, hashFor(2), res.Associations[0].Magnet.Hash)
	assert.Equal(t, []string{"S05E04"}, idCodes(res.Associations[0].Episodes))
	assert.Empty(t, res.SeasonQuery, "a specific episode was associated")
}

func TestExtractEnhancedFailureFallsBackToLegacy(t *testing.T) {
	page := `<html><head><title>Show S02E03</title></head><body><a href="` + magnetURI(1) + `">download</a></body></html>`

	posts := &stubPosts{err: errors.New("timeout")}
	res := NewOrchestrator(WithPostFetcher(posts)).Extract(context.Background(), Input{HTML: page, PostRef: "p9"})

	require.Len(t, res.Attempts, 3)
	assert.Equal(t, []State{StatePrimary, StateEnhanced, StateLegacy}, strategies(res.Attempts))
	assert.False(t, res.Attempts[1].Success)
	assert.Contains(t, res.Attempts[1].Reason, ErrStrategyUnavailable.Error())
	assert.True(t, res.Attempts[2].Success)
	assert.Equal(t, []string{"S02E03"}, idCodes(res.Associations[0].Episodes))
}

func TestExtractLegacyFindsAttributeMagnets(t *testing.T) {
	page := `<html><body><h2 class="topic-title">Dark 1x03</h2><input type="text" value="` + magnetURI(7) + `"></body></html>`

	res := NewOrchestrator().Extract(context.Background(), Input{HTML: page})

	assert.Equal(t, []State{StatePrimary, StateLegacy}, strategies(res.Attempts))
	assert.Equal(t, "no magnets found", res.Attempts[0].Reason)
	require.Len(t, res.Associations, 1)
	assert.Equal(t, hashFor(7), res.Associations[0].Magnet.Hash)
	assert.Equal(t, []string{"S01E03"}, idCodes(res.Associations[0].Episodes))
}

func TestExtractExhausted(t *testing.T) {
	res := NewOrchestrator().Extract(context.Background(), Input{
		ReleaseTitle: "Breaking Bad - Stagione 5 [IN CORSO]",
		HTML:         `<html><head><title>nothing</title></head><body><p>no links</p></body></html>`,
	})

	assert.True(t, res.Exhausted)
	assert.Equal(t, StateExhausted, res.Strategy)
	assert.Empty(t, res.Associations)
	assert.Equal(t, []State{StatePrimary, StateLegacy}, strategies(res.Attempts))
	assert.Equal(t, "Breaking Bad - Stagione 5", res.SeasonQuery)
}

func TestExtractMalformedMagnetDoesNotAbort(t *testing.T) {
	page := `<p>S01E01 <a href="magnet:?xt=urn:btih:ZZZZ">bad</a></p>
<p>S01E02 magnet:?xt=urn:btih:ZZZZ</p>
<p>S01E03 <a href="` + magnetURI(3) + `">good</a></p>`

	res := NewOrchestrator().Extract(context.Background(), Input{HTML: page})
	require.Len(t, res.Associations, 1)
	assert.Equal(t, hashFor(3), res.Associations[0].Magnet.Hash)
	assert.Equal(t, []string{"S01E03"}, idCodes(res.Associations[0].Episodes))
}

func TestExtractEmptyInput(t *testing.T) {
	res := NewOrchestrator().Extract(context.Background(), Input{})
	assert.True(t, res.Exhausted)
	assert.Empty(t, res.SeasonQuery)
}
