// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vrf keeps the per-slot won-slot registry. Evaluation itself is an
// external service; only the outputs and the slots they win live here.
package vrf

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/store"
)

// WonSlot is a slot our producer key is eligible to produce in.
type WonSlot struct {
	GlobalSlot uint32
	Output     ids.ID
}

// State is the evaluator sub-state: the epoch range evaluated so far and
// the slots won inside it.
type State struct {
	Epoch         uint32
	EvaluatedUpTo uint32
	Won           map[uint32]WonSlot
}

// NewState returns an empty registry.
func NewState() *State {
	return &State{Won: make(map[uint32]WonSlot)}
}

// NextWonSlot returns the earliest won slot at or after [slot].
func (s *State) NextWonSlot(slot uint32) (WonSlot, bool) {
	var best WonSlot
	found := false
	for _, w := range s.Won {
		if w.GlobalSlot < slot {
			continue
		}
		if !found || w.GlobalSlot < best.GlobalSlot {
			best = w
			found = true
		}
	}
	return best, found
}

// Action is the evaluator action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// EpochInit resets the registry for a new epoch.
type EpochInit struct {
	Epoch     uint32
	FirstSlot uint32
}

func (EpochInit) ActionKind() store.Kind { return "VrfEvaluatorEpochInit" }

func (a EpochInit) IsEnabled(s *State, _ store.Timestamp) bool {
	return a.Epoch >= s.Epoch
}

// SlotEvaluated records one slot's outcome in evaluation order.
type SlotEvaluated struct {
	GlobalSlot uint32
	Won        bool
	Output     ids.ID
}

func (SlotEvaluated) ActionKind() store.Kind { return "VrfEvaluatorSlotEvaluated" }

func (a SlotEvaluated) IsEnabled(s *State, _ store.Timestamp) bool {
	return a.GlobalSlot >= s.EvaluatedUpTo
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case EpochInit:
		s.Epoch = act.Epoch
		s.EvaluatedUpTo = act.FirstSlot
		s.Won = make(map[uint32]WonSlot)

	case SlotEvaluated:
		s.EvaluatedUpTo = act.GlobalSlot + 1
		if act.Won {
			s.Won[act.GlobalSlot] = WonSlot{GlobalSlot: act.GlobalSlot, Output: act.Output}
		}
	}
}
