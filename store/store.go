// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store implements the deterministic action-reducer-effect kernel.
//
// A Store drives a state value through atomic action dispatches. Each
// dispatch first checks the action's enabling condition, then runs the pure
// reducer, then the effect function. Effects may dispatch follow-up actions
// (depth-first) and enqueue service work, but never mutate state directly.
// Services are the only I/O boundary; their completions come back through
// the event queue as further actions.
package store

// Clock produces monotonic timestamps. Replays substitute a clock that
// replays recorded stamps.
type Clock interface {
	Now() Timestamp
}

// Recorder observes every dispatched action in order. The zero recorder
// discards; the recorder package persists to an append-only log.
type Recorder interface {
	RecordAction(a WithMeta)
}

// Dispatcher is the narrow store surface handed to effect functions.
type Dispatcher interface {
	Dispatch(a Action) bool
}

// EnablingCondition decides whether an action is allowed in the current
// state. Disabled actions are dropped silently.
type EnablingCondition[S any] func(state S, a Action, now Timestamp) bool

// Reducer computes the state transition for an enabled action. Reducers are
// total: they must not panic on any enabled action.
type Reducer[S any] func(state S, a WithMeta)

// EffectFn runs after the reducer. It may dispatch follow-ups and invoke
// services through closures it captured at construction.
type EffectFn[S any] func(d Dispatcher, state S, a WithMeta)

// Store is the single-threaded dispatch loop core.
type Store[S any] struct {
	state    S
	clock    Clock
	enabled  EnablingCondition[S]
	reducer  Reducer[S]
	effects  EffectFn[S]
	recorder Recorder

	depth int
	// stamp of the outermost dispatch, shared by nested follow-ups
	frameTime Timestamp
}

// New builds a store over [state]. Any of enabled, effects and recorder may
// be nil; a nil enabling condition admits every action.
func New[S any](
	state S,
	clock Clock,
	enabled EnablingCondition[S],
	reducer Reducer[S],
	effects EffectFn[S],
	recorder Recorder,
) *Store[S] {
	return &Store[S]{
		state:    state,
		clock:    clock,
		enabled:  enabled,
		reducer:  reducer,
		effects:  effects,
		recorder: recorder,
	}
}

// State returns the current state. Callers outside reducers must treat it as
// read-only.
func (s *Store[S]) State() S {
	return s.state
}

// Dispatch runs one atomic action. It returns false when the enabling
// condition rejects the action, true otherwise. Nested dispatches from the
// effect phase reuse the outer dispatch's timestamp so that one external
// event maps to one instant.
func (s *Store[S]) Dispatch(a Action) bool {
	var now Timestamp
	if s.depth == 0 {
		now = s.clock.Now()
		s.frameTime = now
	} else {
		now = s.frameTime
	}

	if s.enabled != nil && !s.enabled(s.state, a, now) {
		return false
	}

	meta := ActionMeta{Time: now, Depth: s.depth}
	wm := WithMeta{Action: a, Meta: meta}

	if s.recorder != nil {
		s.recorder.RecordAction(wm)
	}

	s.reducer(s.state, wm)

	if s.effects != nil {
		s.depth++
		s.effects(s, s.state, wm)
		s.depth--
	}
	return true
}
