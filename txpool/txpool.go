// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txpool holds pending user commands: candidates offered by peers
// gated through verification, plus rebroadcast accounting mirroring the
// snark channel's send-index scheme.
package txpool

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// TxStatus is the pooled command lifecycle.
type TxStatus uint8

const (
	TxVerifyPending TxStatus = iota
	TxVerified
)

// TxState is one pooled command.
type TxState struct {
	Command  types.UserCommand
	Status   TxStatus
	VerifyID uint64
	// Order is the send-index position for per-peer rebroadcast.
	Order uint64
}

// CandidateStatus is the per-peer fetch pipeline, mirroring snark
// candidates.
type CandidateStatus uint8

const (
	InfoReceived CandidateStatus = iota
	FetchPending
	Received
)

// Candidate is a command a peer advertises.
type Candidate struct {
	Peer    ids.NodeID
	ID      ids.ID
	Status  CandidateStatus
	Command *types.UserCommand
}

// State is the pool sub-state.
type State struct {
	Commands map[ids.ID]*TxState
	order    []ids.ID
	next     uint64

	// Candidates keyed by command id then peer.
	Candidates map[ids.ID]map[ids.NodeID]*Candidate
}

// NewState returns an empty pool.
func NewState() *State {
	return &State{
		Commands:   make(map[ids.ID]*TxState),
		Candidates: make(map[ids.ID]map[ids.NodeID]*Candidate),
	}
}

// Verified lists verified commands in insertion order from [index], up to
// [limit], for propagation responses.
func (s *State) Verified(index uint64, limit uint8) (cmds []types.UserCommand, last uint64) {
	last = index
	for _, id := range s.order {
		tx, ok := s.Commands[id]
		if !ok || tx.Order < index || tx.Status != TxVerified {
			continue
		}
		if uint8(len(cmds)) >= limit {
			break
		}
		cmds = append(cmds, tx.Command)
		last = tx.Order
	}
	return cmds, last
}

// Len counts pooled commands.
func (s *State) Len() int {
	return len(s.Commands)
}

// Action is the pool action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// CandidateInfoReceived notes a peer's advertised command.
type CandidateInfoReceived struct {
	Peer ids.NodeID
	ID   ids.ID
}

func (CandidateInfoReceived) ActionKind() store.Kind { return "TxPoolCandidateInfoReceived" }

func (a CandidateInfoReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	if _, pooled := s.Commands[a.ID]; pooled {
		return false
	}
	if peers, ok := s.Candidates[a.ID]; ok {
		_, dup := peers[a.Peer]
		return !dup
	}
	return true
}

// CandidateFetchInit requests the full command from the peer.
type CandidateFetchInit struct {
	Peer ids.NodeID
	ID   ids.ID
}

func (CandidateFetchInit) ActionKind() store.Kind { return "TxPoolCandidateFetchInit" }

func (a CandidateFetchInit) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.candidate(a.ID, a.Peer)
	return ok && c.Status == InfoReceived
}

// CandidateReceived stores the fetched command, pending verification.
type CandidateReceived struct {
	Peer    ids.NodeID
	Command types.UserCommand
}

func (CandidateReceived) ActionKind() store.Kind { return "TxPoolCandidateReceived" }

func (a CandidateReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.candidate(a.Command.ID, a.Peer)
	return ok && c.Status == FetchPending
}

// TxVerifyPendingAction gates entry into the pool on the verifier.
type TxVerifyPendingAction struct {
	ID       ids.ID
	Peer     ids.NodeID
	VerifyID uint64
}

func (TxVerifyPendingAction) ActionKind() store.Kind { return "TxPoolVerifyPending" }

func (a TxVerifyPendingAction) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.candidate(a.ID, a.Peer)
	return ok && c.Status == Received
}

// TxVerifySuccess admits the command into the pool.
type TxVerifySuccess struct {
	ID       ids.ID
	Peer     ids.NodeID
	VerifyID uint64
}

func (TxVerifySuccess) ActionKind() store.Kind { return "TxPoolVerifySuccess" }

func (a TxVerifySuccess) IsEnabled(s *State, _ store.Timestamp) bool {
	tx, ok := s.Commands[a.ID]
	return ok && tx.Status == TxVerifyPending && tx.VerifyID == a.VerifyID
}

// TxVerifyError drops the command and its candidates.
type TxVerifyError struct {
	ID       ids.ID
	VerifyID uint64
}

func (TxVerifyError) ActionKind() store.Kind { return "TxPoolVerifyError" }

func (a TxVerifyError) IsEnabled(s *State, _ store.Timestamp) bool {
	tx, ok := s.Commands[a.ID]
	return ok && tx.Status == TxVerifyPending && tx.VerifyID == a.VerifyID
}

// BestTipApplied drops commands included in the newly applied block.
type BestTipApplied struct {
	Applied []ids.ID
}

func (BestTipApplied) ActionKind() store.Kind { return "TxPoolBestTipApplied" }

func (BestTipApplied) IsEnabled(s *State, _ store.Timestamp) bool {
	return len(s.Commands) > 0
}

func (s *State) candidate(id ids.ID, peer ids.NodeID) (*Candidate, bool) {
	peers, ok := s.Candidates[id]
	if !ok {
		return nil, false
	}
	c, ok := peers[peer]
	return c, ok
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case CandidateInfoReceived:
		peers, ok := s.Candidates[act.ID]
		if !ok {
			peers = make(map[ids.NodeID]*Candidate)
			s.Candidates[act.ID] = peers
		}
		peers[act.Peer] = &Candidate{Peer: act.Peer, ID: act.ID, Status: InfoReceived}

	case CandidateFetchInit:
		c, _ := s.candidate(act.ID, act.Peer)
		c.Status = FetchPending

	case CandidateReceived:
		c, _ := s.candidate(act.Command.ID, act.Peer)
		cmd := act.Command
		c.Command = &cmd
		c.Status = Received

	case TxVerifyPendingAction:
		c, _ := s.candidate(act.ID, act.Peer)
		s.Commands[act.ID] = &TxState{
			Command:  *c.Command,
			Status:   TxVerifyPending,
			VerifyID: act.VerifyID,
			Order:    s.next,
		}
		s.order = append(s.order, act.ID)
		s.next++

	case TxVerifySuccess:
		s.Commands[act.ID].Status = TxVerified
		delete(s.Candidates, act.ID)

	case TxVerifyError:
		delete(s.Commands, act.ID)
		delete(s.Candidates, act.ID)

	case BestTipApplied:
		for _, id := range act.Applied {
			delete(s.Commands, id)
			delete(s.Candidates, id)
		}
	}
}
