// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package frontier

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// SyncPhase is the sync machine state.
type SyncPhase uint8

const (
	SyncIdle SyncPhase = iota
	SyncInit
	SyncBootstrapPending
	SyncLedgerSnarkedPending
	SyncLedgerStagedPending
	SyncBlocksFetchPending
	SyncSynced
)

func (p SyncPhase) String() string {
	switch p {
	case SyncInit:
		return "init"
	case SyncBootstrapPending:
		return "bootstrap_pending"
	case SyncLedgerSnarkedPending:
		return "ledger_snarked_pending"
	case SyncLedgerStagedPending:
		return "ledger_staged_pending"
	case SyncBlocksFetchPending:
		return "blocks_fetch_pending"
	case SyncSynced:
		return "synced"
	default:
		return "idle"
	}
}

// TipRequest tracks one peer's best-tip answer during bootstrap.
type TipRequest struct {
	RpcID channels.RpcID
	Done  bool
	Tip   *types.Block
	Root  *types.Block
}

// Target is the chosen sync destination.
type Target struct {
	BestTip *types.Block
	Root    *types.Block
}

// FetchAttempt is one peer's attempt at fetching a block.
type FetchAttempt uint8

const (
	AttemptPending FetchAttempt = iota
	AttemptError
	AttemptSuccess
)

// BlockFetch tracks one missing block of (root, best_tip].
type BlockFetch struct {
	Hash     ids.ID
	Block    *types.Block
	Applied  bool
	Attempts map[ids.NodeID]FetchAttempt
}

// SyncState drives bootstrap, ledger sync and block catch-up.
type SyncState struct {
	Phase      SyncPhase
	PhaseStart store.Timestamp

	// BootstrapTimeoutMS bounds the best-tip quorum wait.
	BootstrapTimeoutMS uint64

	Requests map[ids.NodeID]*TipRequest
	Target   *Target

	// Blocks to fetch and apply, in chain order.
	FetchOrder []ids.ID
	Blocks     map[ids.ID]*BlockFetch
}

// majorityTip returns the strict-majority tip among done requests.
func (s *SyncState) majorityTip() (*TipRequest, bool) {
	if len(s.Requests) == 0 {
		return nil, false
	}
	counts := make(map[ids.ID]int)
	byHash := make(map[ids.ID]*TipRequest)
	for _, req := range s.Requests {
		if !req.Done || req.Tip == nil {
			continue
		}
		counts[req.Tip.Hash]++
		byHash[req.Tip.Hash] = req
	}
	for hash, n := range counts {
		if 2*n > len(s.Requests) {
			return byHash[hash], true
		}
	}
	return nil, false
}

// nextBlockToFetch returns the first unfetched hash with no pending
// attempt.
func (s *SyncState) nextBlockToFetch() (ids.ID, bool) {
	for _, hash := range s.FetchOrder {
		bf := s.Blocks[hash]
		if bf.Block != nil {
			continue
		}
		pending := false
		for _, a := range bf.Attempts {
			if a == AttemptPending {
				pending = true
				break
			}
		}
		if !pending {
			return hash, true
		}
	}
	return ids.Empty, false
}

// nextBlockToApply returns the first fetched, unapplied block in chain
// order; blocks apply strictly in order.
func (s *SyncState) nextBlockToApply() (*BlockFetch, bool) {
	for _, hash := range s.FetchOrder {
		bf := s.Blocks[hash]
		if !bf.Applied {
			if bf.Block == nil {
				return nil, false
			}
			return bf, true
		}
	}
	return nil, false
}
