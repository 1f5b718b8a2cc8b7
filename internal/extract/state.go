// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package extract

// State is a step of the extraction state machine.
type State int

const (
	StatePrimary State = iota
	StateEnhanced
	StateLegacy
	StateExhausted
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePrimary:
		return "primary"
	case StateEnhanced:
		return "enhanced"
	case StateLegacy:
		return "legacy"
	case StateExhausted:
		return "exhausted"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further strategy runs from s.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateDone
}

// transition returns the state after a strategy ran in s.
// succeeded means the strategy produced at least one resolved association.
func transition(s State, succeeded, hasPostRef bool) State {
	if s.Terminal() {
		return s
	}
	if succeeded {
		return StateDone
	}
	switch s {
	case StatePrimary:
		if hasPostRef {
			return StateEnhanced
		}
		return StateLegacy
	case StateEnhanced:
		return StateLegacy
	default:
		return StateExhausted
	}
}
