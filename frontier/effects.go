// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package frontier

import (
	"bytes"
	"sort"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// BlockApplier is the slice of the ledger service the frontier drives:
// applying a staged-ledger diff. Completion returns as an event which the
// node converts to BlockApplySuccess.
type BlockApplier interface {
	ApplyBlock(b *types.Block)
}

// Effects wires the sync machine to peers and the ledger service.
type Effects struct {
	Log    log.Logger
	Ledger BlockApplier
}

// Apply runs the effect phase for [a].
func (e *Effects) Apply(d store.Dispatcher, s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case BootstrapStart:
		// deterministic request order
		peers := make([]ids.NodeID, 0, len(s.Sync.Requests))
		for peer := range s.Sync.Requests {
			peers = append(peers, peer)
		}
		sort.Slice(peers, func(i, j int) bool {
			return bytes.Compare(peers[i][:], peers[j][:]) < 0
		})
		for _, peer := range peers {
			d.Dispatch(p2p.RpcRequestSend{Peer: peer, Request: p2p.BestTipGet{}})
		}

	case BestTipReceived:
		d.Dispatch(BootstrapQuorumReached{})

	case BootstrapQuorumReached:
		e.Log.Info("sync target chosen",
			"best_tip", s.Sync.Target.BestTip.Hash,
			"height", s.Sync.Target.BestTip.Height)

	case BootstrapTimeout:
		e.Log.Info("best-tip quorum timed out, retrying")

	case BlockFetchInit:
		d.Dispatch(p2p.RpcRequestSend{Peer: act.Peer, Request: p2p.BlockGet{Hash: act.Hash}})

	case LedgerStagedSynced, FetchPlanReceived, BlockFetched, BlockApplySuccess:
		next, ok := s.Sync.nextBlockToApply()
		if !ok {
			return
		}
		if tip := s.BestTip(); tip != nil && next.Block.PredHash == tip.Hash {
			e.Ledger.ApplyBlock(next.Block)
		}
	}
}
