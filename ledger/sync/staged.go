// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgersync

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// StagedPhase is the staged-ledger sync lifecycle.
type StagedPhase uint8

const (
	StagedPartsFetchPending StagedPhase = iota
	StagedReconstructPending
	StagedSuccess
)

// StagedAttemptPhase is one peer's parts-fetch state. Invalid is terminal
// for that peer; another peer may still try.
type StagedAttemptPhase uint8

const (
	StagedAttemptPending StagedAttemptPhase = iota
	StagedAttemptError
	StagedAttemptInvalid
	StagedAttemptSuccess
)

// StagedPeerAttempt is one peer's fetch attempt.
type StagedPeerAttempt struct {
	Phase StagedAttemptPhase
	RpcID channels.RpcID
}

// StagedState downloads {scan_state, pending_coinbase, protocol states} for
// the frontier root and reconstructs the staged ledger atop the snarked
// one. At most one attempt succeeds.
type StagedState struct {
	// Target is the staged-ledger hash being reconstructed.
	Target ids.ID
	// SnarkedRoot is the completed snarked ledger the parts apply onto.
	SnarkedRoot ids.ID

	Phase    StagedPhase
	Attempts map[ids.NodeID]*StagedPeerAttempt
	Parts    *types.StagedLedgerParts

	hasher ledger.Hasher
}

// NewStagedState starts a parts fetch for [target].
func NewStagedState(target, snarkedRoot ids.ID, hasher ledger.Hasher) *StagedState {
	return &StagedState{
		Target:      target,
		SnarkedRoot: snarkedRoot,
		Phase:       StagedPartsFetchPending,
		Attempts:    make(map[ids.NodeID]*StagedPeerAttempt),
		hasher:      hasher,
	}
}

// FetchInFlight reports whether some peer is currently fetching.
func (s *StagedState) FetchInFlight() bool {
	for _, a := range s.Attempts {
		if a.Phase == StagedAttemptPending {
			return true
		}
	}
	return false
}

// StagedAction is the staged-sync action set.
type StagedAction interface {
	store.Action
	IsEnabled(s *StagedState, now store.Timestamp) bool
}

// PartsFetchInit sends the one large parts rpc to a peer.
type PartsFetchInit struct {
	Peer  ids.NodeID
	RpcID channels.RpcID
}

func (PartsFetchInit) ActionKind() store.Kind { return "LedgerStagedPartsFetchInit" }

func (a PartsFetchInit) IsEnabled(s *StagedState, _ store.Timestamp) bool {
	if s.Phase != StagedPartsFetchPending || s.FetchInFlight() {
		return false
	}
	// peers whose response was invalid do not get another try
	att, tried := s.Attempts[a.Peer]
	return !tried || att.Phase == StagedAttemptError
}

// PartsReceived validates the response: the staged-ledger hash recomputed
// from (scan-state aux, pending-coinbase root, snarked root) must match the
// target.
type PartsReceived struct {
	Peer  ids.NodeID
	Parts *types.StagedLedgerParts
}

func (PartsReceived) ActionKind() store.Kind { return "LedgerStagedPartsReceived" }

func (a PartsReceived) IsEnabled(s *StagedState, _ store.Timestamp) bool {
	if s.Phase != StagedPartsFetchPending || a.Parts == nil {
		return false
	}
	att, ok := s.Attempts[a.Peer]
	return ok && att.Phase == StagedAttemptPending
}

// PartsFetchError fails a peer's attempt on a transport error.
type PartsFetchError struct {
	Peer  ids.NodeID
	Error string
}

func (PartsFetchError) ActionKind() store.Kind { return "LedgerStagedPartsFetchError" }

func (a PartsFetchError) IsEnabled(s *StagedState, _ store.Timestamp) bool {
	att, ok := s.Attempts[a.Peer]
	return ok && att.Phase == StagedAttemptPending
}

// ReconstructSuccess completes the whole staged sync.
type ReconstructSuccess struct{}

func (ReconstructSuccess) ActionKind() store.Kind { return "LedgerStagedReconstructSuccess" }

func (ReconstructSuccess) IsEnabled(s *StagedState, _ store.Timestamp) bool {
	return s.Phase == StagedReconstructPending
}

// ReconstructError returns to fetching; the parts that failed to apply are
// discarded.
type ReconstructError struct {
	Error string
}

func (ReconstructError) ActionKind() store.Kind { return "LedgerStagedReconstructError" }

func (ReconstructError) IsEnabled(s *StagedState, _ store.Timestamp) bool {
	return s.Phase == StagedReconstructPending
}

// StagedReducer applies one enabled action.
func StagedReducer(s *StagedState, a StagedAction, meta store.ActionMeta) {
	switch act := a.(type) {
	case PartsFetchInit:
		s.Attempts[act.Peer] = &StagedPeerAttempt{Phase: StagedAttemptPending, RpcID: act.RpcID}

	case PartsReceived:
		att := s.Attempts[act.Peer]
		recomputed := s.hasher.StagedLedgerHash(
			act.Parts.ScanState.AuxHash,
			act.Parts.PendingCoinbase.Root,
			s.SnarkedRoot,
		)
		if recomputed != s.Target {
			att.Phase = StagedAttemptInvalid
			return
		}
		att.Phase = StagedAttemptSuccess
		s.Parts = act.Parts
		s.Phase = StagedReconstructPending

	case PartsFetchError:
		s.Attempts[act.Peer].Phase = StagedAttemptError

	case ReconstructSuccess:
		s.Phase = StagedSuccess

	case ReconstructError:
		s.Parts = nil
		s.Phase = StagedPartsFetchPending
	}
}
