// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package candidates

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/consensus"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Action is the registry action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// BlockReceived registers a block from the network. Receiving the same
// block twice is a no-op by enabling condition.
type BlockReceived struct {
	Block *types.Block
}

func (BlockReceived) ActionKind() store.Kind { return "CandidateBlockReceived" }

func (a BlockReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	if a.Block == nil {
		return false
	}
	if s.IsInvalid(a.Block.Hash) {
		return false
	}
	_, known := s.Blocks[a.Block.Hash]
	return !known
}

// BlockPrevalidated passed the cheap structural checks.
type BlockPrevalidated struct {
	Hash ids.ID
}

func (BlockPrevalidated) ActionKind() store.Kind { return "CandidateBlockPrevalidated" }

func (a BlockPrevalidated) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Blocks[a.Hash]
	return ok && c.Status == Received
}

// SnarkVerifyPendingAction records the proof being sent to the verifier.
type SnarkVerifyPendingAction struct {
	Hash     ids.ID
	VerifyID uint64
}

func (SnarkVerifyPendingAction) ActionKind() store.Kind { return "CandidateSnarkVerifyPending" }

func (a SnarkVerifyPendingAction) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Blocks[a.Hash]
	return ok && c.Status == Prevalidated
}

// SnarkVerifySuccessAction completes verification.
type SnarkVerifySuccessAction struct {
	Hash     ids.ID
	VerifyID uint64
}

func (SnarkVerifySuccessAction) ActionKind() store.Kind { return "CandidateSnarkVerifySuccess" }

func (a SnarkVerifySuccessAction) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Blocks[a.Hash]
	return ok && c.Status == SnarkVerifyPending && c.VerifyID == a.VerifyID
}

// SnarkVerifyErrorAction fails verification terminally.
type SnarkVerifyErrorAction struct {
	Hash     ids.ID
	VerifyID uint64
}

func (SnarkVerifyErrorAction) ActionKind() store.Kind { return "CandidateSnarkVerifyError" }

func (a SnarkVerifyErrorAction) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Blocks[a.Hash]
	return ok && c.Status == SnarkVerifyPending && c.VerifyID == a.VerifyID
}

// ForkResolve stores the fork decision against the current best tip. Tip is
// nil before the frontier has one; then the candidate trivially takes.
type ForkResolve struct {
	Hash    ids.ID
	Tip     *types.Block
	TipHash ids.ID
}

func (ForkResolve) ActionKind() store.Kind { return "CandidateForkResolve" }

func (a ForkResolve) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Blocks[a.Hash]
	return ok && c.Status == SnarkVerifySuccess
}

// PruneAction drops candidates worse than the incorporated best.
type PruneAction struct {
	Best *types.Block
}

func (PruneAction) ActionKind() store.Kind { return "CandidatePrune" }

func (a PruneAction) IsEnabled(s *State, _ store.Timestamp) bool {
	return a.Best != nil && len(s.Blocks) > 0
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case BlockReceived:
		s.Add(act.Block, meta.Time)

	case BlockPrevalidated:
		s.Blocks[act.Hash].Status = Prevalidated

	case SnarkVerifyPendingAction:
		c := s.Blocks[act.Hash]
		c.Status = SnarkVerifyPending
		c.VerifyID = act.VerifyID
		c.Time = meta.Time

	case SnarkVerifySuccessAction:
		c := s.Blocks[act.Hash]
		c.Status = SnarkVerifySuccess
		c.Time = meta.Time

	case SnarkVerifyErrorAction:
		s.MarkInvalid(act.Hash)

	case ForkResolve:
		c := s.Blocks[act.Hash]
		if act.Tip == nil {
			c.Decision = consensus.TakeNoBestTip
			c.DecisionWhy = consensus.ReasonNoBestTip
			return
		}
		cand := &c.Block.Consensus
		tip := &act.Tip.Consensus
		if consensus.IsShortRangeFork(tip, cand) {
			c.Decision, c.DecisionWhy = consensus.ShortRangeForkTake(tip, cand, act.TipHash, act.Hash)
		} else {
			c.Decision, c.DecisionWhy = consensus.LongRangeForkTake(tip, cand, act.TipHash, act.Hash)
		}
		c.ComparedWith = act.TipHash

	case PruneAction:
		s.Prune(act.Best)
	}
}
