// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counterState struct {
	value   int
	history []Kind
}

type incAction struct{ by int }

func (incAction) ActionKind() Kind { return "Inc" }

type capAction struct{ limit int }

func (capAction) ActionKind() Kind { return "Cap" }

func newCounterStore(clock Clock, rec Recorder) *Store[*counterState] {
	enabled := func(s *counterState, a Action, _ Timestamp) bool {
		if c, ok := a.(capAction); ok {
			return s.value > c.limit
		}
		return true
	}
	reducer := func(s *counterState, a WithMeta) {
		s.history = append(s.history, a.Action.ActionKind())
		switch act := a.Action.(type) {
		case incAction:
			s.value += act.by
		case capAction:
			s.value = act.limit
		}
	}
	effects := func(d Dispatcher, s *counterState, a WithMeta) {
		if _, ok := a.Action.(incAction); ok {
			// clamp as a follow-up, exercising nested dispatch
			d.Dispatch(capAction{limit: 10})
		}
	}
	return New(&counterState{}, clock, enabled, reducer, effects, rec)
}

func TestDispatchEnablingCondition(t *testing.T) {
	require := require.New(t)

	st := newCounterStore(NewManualClock(0), nil)

	require.True(st.Dispatch(incAction{by: 3}))
	require.Equal(3, st.State().value)

	// cap is disabled while value <= limit
	require.False(st.Dispatch(capAction{limit: 5}))
	require.Equal(3, st.State().value)

	require.True(st.Dispatch(incAction{by: 20}))
	// effect clamped via nested dispatch
	require.Equal(10, st.State().value)
}

func TestDispatchDepthFirstFollowUps(t *testing.T) {
	require := require.New(t)

	st := newCounterStore(NewManualClock(0), nil)
	require.True(st.Dispatch(incAction{by: 42}))
	require.Equal([]Kind{"Inc", "Cap"}, st.State().history)
}

type recordingSink struct {
	actions []WithMeta
}

func (r *recordingSink) RecordAction(a WithMeta) {
	r.actions = append(r.actions, a)
}

func TestNestedDispatchSharesTimestamp(t *testing.T) {
	require := require.New(t)

	clock := NewManualClock(1000)
	sink := &recordingSink{}
	st := newCounterStore(clock, sink)

	require.True(st.Dispatch(incAction{by: 50}))
	require.Len(sink.actions, 2)
	require.Equal(sink.actions[0].Meta.Time, sink.actions[1].Meta.Time)
	require.Equal(0, sink.actions[0].Meta.Depth)
	require.Equal(1, sink.actions[1].Meta.Depth)
}

func TestReplayReproducesActionSequence(t *testing.T) {
	require := require.New(t)

	clock := NewManualClock(0)
	sink := &recordingSink{}
	st := newCounterStore(clock, sink)

	inputs := []Action{incAction{by: 2}, incAction{by: 30}, capAction{limit: 1}}
	for i, a := range inputs {
		clock.Set(Timestamp(i) * 1_000_000)
		st.Dispatch(a)
	}
	recorded := sink.actions

	// fresh store, same inputs and stamps
	replayClock := NewManualClock(0)
	replaySink := &recordingSink{}
	replayed := newCounterStore(replayClock, replaySink)
	for i, a := range inputs {
		replayClock.Set(Timestamp(i) * 1_000_000)
		replayed.Dispatch(a)
	}

	require.Equal(len(recorded), len(replaySink.actions))
	for i := range recorded {
		require.Equal(recorded[i].Action.ActionKind(), replaySink.actions[i].Action.ActionKind())
		require.Equal(recorded[i].Meta.Time, replaySink.actions[i].Meta.Time)
	}
	require.Equal(st.State().value, replayed.State().value)
}

func TestManualClock(t *testing.T) {
	require := require.New(t)

	clock := NewManualClock(0)
	clock.Advance(3 * time.Second)
	require.Equal(Timestamp(3_000_000_000), clock.Now())
	require.Equal(uint64(3000), clock.Now().MillisSince(0))
}

func TestEventQueue(t *testing.T) {
	require := require.New(t)

	q := NewEventQueue(4)
	_, ok := q.TryPop()
	require.False(ok)
}
