// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package frontier

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Action is the frontier action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// InitSync arms the sync machine.
type InitSync struct{}

func (InitSync) ActionKind() store.Kind { return "TransitionFrontierSyncInit" }

func (InitSync) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Sync.Phase == SyncIdle
}

// BootstrapStart asks [Peers] for their best tip and waits for a
// strict-majority answer.
type BootstrapStart struct {
	Peers []ids.NodeID
}

func (BootstrapStart) ActionKind() store.Kind { return "TransitionFrontierBootstrapStart" }

func (a BootstrapStart) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Sync.Phase == SyncInit
}

// BestTipReceived records one peer's answer.
type BestTipReceived struct {
	Peer ids.NodeID
	Tip  *types.Block
	Root *types.Block
}

func (BestTipReceived) ActionKind() store.Kind { return "TransitionFrontierBestTipReceived" }

func (a BestTipReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBootstrapPending {
		return false
	}
	req, ok := s.Sync.Requests[a.Peer]
	return ok && !req.Done
}

// BootstrapQuorumReached fires once a strict majority of asked peers agree
// on a tip; the reducer derives the sync target from it.
type BootstrapQuorumReached struct{}

func (BootstrapQuorumReached) ActionKind() store.Kind { return "TransitionFrontierBootstrapQuorum" }

func (BootstrapQuorumReached) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBootstrapPending {
		return false
	}
	_, ok := s.Sync.majorityTip()
	return ok
}

// BootstrapTimeout abandons the round and re-enters Init for another try.
type BootstrapTimeout struct{}

func (BootstrapTimeout) ActionKind() store.Kind { return "TransitionFrontierBootstrapTimeout" }

func (BootstrapTimeout) IsEnabled(s *State, now store.Timestamp) bool {
	return s.Sync.Phase == SyncBootstrapPending &&
		now.MillisSince(s.Sync.PhaseStart) >= s.Sync.BootstrapTimeoutMS
}

// LedgerSnarkedSynced reports the snarked ledger for the target root is
// materialized and validated.
type LedgerSnarkedSynced struct{}

func (LedgerSnarkedSynced) ActionKind() store.Kind { return "TransitionFrontierLedgerSnarkedSynced" }

func (LedgerSnarkedSynced) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Sync.Phase == SyncLedgerSnarkedPending
}

// LedgerStagedSynced reports the staged ledger was reconstructed; block
// catch-up for (root, best_tip] begins.
type LedgerStagedSynced struct{}

func (LedgerStagedSynced) ActionKind() store.Kind { return "TransitionFrontierLedgerStagedSynced" }

func (LedgerStagedSynced) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Sync.Phase == SyncLedgerStagedPending
}

// FetchPlanReceived installs the ordered hashes of (root, best_tip], as
// answered by a peer holding the ancestor chain.
type FetchPlanReceived struct {
	Hashes []ids.ID
}

func (FetchPlanReceived) ActionKind() store.Kind { return "TransitionFrontierFetchPlanReceived" }

func (a FetchPlanReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBlocksFetchPending || len(a.Hashes) == 0 {
		return false
	}
	// the plan must end at the target tip and not be installed twice
	return a.Hashes[len(a.Hashes)-1] == s.Sync.Target.BestTip.Hash &&
		len(s.Sync.FetchOrder) <= 1
}

// BlockFetchInit sends one block fetch to a peer.
type BlockFetchInit struct {
	Hash ids.ID
	Peer ids.NodeID
}

func (BlockFetchInit) ActionKind() store.Kind { return "TransitionFrontierBlockFetchInit" }

func (a BlockFetchInit) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBlocksFetchPending {
		return false
	}
	bf, ok := s.Sync.Blocks[a.Hash]
	if !ok || bf.Block != nil {
		return false
	}
	// one in-flight fetch per block; after an error any peer may retry
	for _, att := range bf.Attempts {
		if att == AttemptPending {
			return false
		}
	}
	return true
}

// BlockFetched stores a fetched block body.
type BlockFetched struct {
	Peer  ids.NodeID
	Block *types.Block
}

func (BlockFetched) ActionKind() store.Kind { return "TransitionFrontierBlockFetched" }

func (a BlockFetched) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBlocksFetchPending || a.Block == nil {
		return false
	}
	bf, ok := s.Sync.Blocks[a.Block.Hash]
	return ok && bf.Block == nil && bf.Attempts[a.Peer] == AttemptPending
}

// BlockFetchError fails one peer's attempt; another peer may retry.
type BlockFetchError struct {
	Peer ids.NodeID
	Hash ids.ID
}

func (BlockFetchError) ActionKind() store.Kind { return "TransitionFrontierBlockFetchError" }

func (a BlockFetchError) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBlocksFetchPending {
		return false
	}
	bf, ok := s.Sync.Blocks[a.Hash]
	return ok && bf.Attempts[a.Peer] == AttemptPending
}

// BlockApplySuccess appends the next in-order block to the frontier; when
// the target tip lands, sync completes.
type BlockApplySuccess struct {
	Hash ids.ID
}

func (BlockApplySuccess) ActionKind() store.Kind { return "TransitionFrontierBlockApplySuccess" }

func (a BlockApplySuccess) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncBlocksFetchPending {
		return false
	}
	next, ok := s.Sync.nextBlockToApply()
	if !ok || next.Hash != a.Hash {
		return false
	}
	// blocks chain onto the applied prefix only
	tip := s.BestTip()
	return tip != nil && next.Block.PredHash == tip.Hash
}

// BestTipUpdate switches the synced frontier to a better verified
// candidate.
type BestTipUpdate struct {
	Block *types.Block
}

func (BestTipUpdate) ActionKind() store.Kind { return "TransitionFrontierBestTipUpdate" }

func (a BestTipUpdate) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Sync.Phase != SyncSynced || a.Block == nil {
		return false
	}
	tip := s.BestTip()
	if tip == nil || a.Block.Hash == tip.Hash {
		return false
	}
	// the new tip must extend the chain or replace its head
	if len(s.Chain) >= 2 && a.Block.PredHash == s.Chain[len(s.Chain)-2].Hash {
		return true
	}
	return a.Block.PredHash == tip.Hash
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	sync := &s.Sync
	switch act := a.(type) {
	case InitSync:
		sync.Phase = SyncInit
		sync.PhaseStart = meta.Time
		if sync.BootstrapTimeoutMS == 0 {
			sync.BootstrapTimeoutMS = 30_000
		}

	case BootstrapStart:
		sync.Phase = SyncBootstrapPending
		sync.PhaseStart = meta.Time
		sync.Requests = make(map[ids.NodeID]*TipRequest, len(act.Peers))
		for _, peer := range act.Peers {
			sync.Requests[peer] = &TipRequest{}
		}

	case BestTipReceived:
		req := sync.Requests[act.Peer]
		req.Done = true
		req.Tip = act.Tip
		req.Root = act.Root

	case BootstrapQuorumReached:
		winner, _ := sync.majorityTip()
		sync.Target = &Target{BestTip: winner.Tip, Root: winner.Root}
		sync.Phase = SyncLedgerSnarkedPending
		sync.PhaseStart = meta.Time

	case BootstrapTimeout:
		sync.Phase = SyncInit
		sync.PhaseStart = meta.Time
		sync.Requests = nil

	case LedgerSnarkedSynced:
		sync.Phase = SyncLedgerStagedPending
		sync.PhaseStart = meta.Time

	case LedgerStagedSynced:
		// the chain restarts from the target root; blocks in
		// (root, best_tip] arrive by fetch
		s.Chain = []*types.Block{sync.Target.Root}
		sync.FetchOrder = nil
		sync.Blocks = make(map[ids.ID]*BlockFetch)
		if sync.Target.BestTip.Hash == sync.Target.Root.Hash {
			sync.Phase = SyncSynced
			sync.PhaseStart = meta.Time
			sync.Requests = nil
			return
		}
		sync.Phase = SyncBlocksFetchPending
		sync.PhaseStart = meta.Time
		sync.FetchOrder = append(sync.FetchOrder, sync.Target.BestTip.Hash)
		sync.Blocks[sync.Target.BestTip.Hash] = &BlockFetch{
			Hash:     sync.Target.BestTip.Hash,
			Block:    sync.Target.BestTip,
			Attempts: make(map[ids.NodeID]FetchAttempt),
		}

	case FetchPlanReceived:
		// replace the single-tip plan with the full (root, best_tip]
		// hash chain, keeping the tip body already in hand
		tipHash := sync.Target.BestTip.Hash
		tipFetch := sync.Blocks[tipHash]
		sync.FetchOrder = append([]ids.ID{}, act.Hashes...)
		sync.Blocks = make(map[ids.ID]*BlockFetch, len(act.Hashes))
		for _, hash := range act.Hashes {
			sync.Blocks[hash] = &BlockFetch{
				Hash:     hash,
				Attempts: make(map[ids.NodeID]FetchAttempt),
			}
		}
		if bf, ok := sync.Blocks[tipHash]; ok && tipFetch != nil {
			bf.Block = tipFetch.Block
		}

	case BlockFetchInit:
		bf := sync.Blocks[act.Hash]
		bf.Attempts[act.Peer] = AttemptPending

	case BlockFetched:
		bf := sync.Blocks[act.Block.Hash]
		bf.Block = act.Block
		bf.Attempts[act.Peer] = AttemptSuccess

	case BlockFetchError:
		sync.Blocks[act.Hash].Attempts[act.Peer] = AttemptError

	case BlockApplySuccess:
		bf := sync.Blocks[act.Hash]
		bf.Applied = true
		s.push(bf.Block)
		if act.Hash == sync.Target.BestTip.Hash {
			sync.Phase = SyncSynced
			sync.PhaseStart = meta.Time
			sync.Requests = nil
			sync.FetchOrder = nil
			sync.Blocks = nil
		}

	case BestTipUpdate:
		tip := s.BestTip()
		if act.Block.PredHash == tip.Hash {
			s.push(act.Block)
			return
		}
		// same-height switch: replace the head, the old tip is pruned
		s.Chain[len(s.Chain)-1] = act.Block
	}
}
