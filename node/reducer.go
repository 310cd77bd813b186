// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"github.com/openmina/openmina-go/frontier"
	"github.com/openmina/openmina-go/frontier/candidates"
	ledgersync "github.com/openmina/openmina-go/ledger/sync"
	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/snarkpool"
	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/txpool"
	"github.com/openmina/openmina-go/vrf"
	"github.com/openmina/openmina-go/watched"
)

// IsEnabled delegates to the owning subsystem's enabling condition.
func IsEnabled(s *State, a store.Action, now store.Timestamp) bool {
	switch act := a.(type) {
	case p2p.Action:
		return act.IsEnabled(s.P2P, now)
	case frontier.Action:
		return act.IsEnabled(s.Frontier, now)
	case candidates.Action:
		return act.IsEnabled(s.Candidates, now)
	case snarkpool.Action:
		return act.IsEnabled(s.SnarkPool, now)
	case worker.Action:
		return act.IsEnabled(s.Worker, now)
	case txpool.Action:
		return act.IsEnabled(s.TxPool, now)
	case watched.Action:
		return act.IsEnabled(s.Watched, now)
	case vrf.Action:
		return act.IsEnabled(s.Vrf, now)
	case ledgersync.SnarkedAction:
		return s.SnarkedSync != nil && act.IsEnabled(s.SnarkedSync, now)
	case ledgersync.StagedAction:
		return s.StagedSync != nil && act.IsEnabled(s.StagedSync, now)
	case Action:
		return act.IsEnabled(s, now)
	default:
		return false
	}
}

// Reduce applies the action in its subsystem, then performs the
// cross-subsystem state management that no subsystem owns alone.
func Reduce(s *State, a store.WithMeta) {
	switch act := a.Action.(type) {
	case p2p.Action:
		p2p.Reducer(s.P2P, act, a.Meta)

	case frontier.Action:
		frontier.Reducer(s.Frontier, act, a.Meta)
		switch act.(type) {
		case frontier.BootstrapQuorumReached:
			// the sync target is fixed: materialize its root snarked
			// ledger next
			root := s.Frontier.Sync.Target.Root
			s.SnarkedSync = ledgersync.NewSnarkedState(
				root.Blockchain.SnarkedLedgerHash,
				s.LocalSnarkedRoot,
				int(s.Config.Constraints.LedgerDepth),
				int(s.Config.Constraints.LedgerDepth)-int(s.Config.Constraints.TransactionCapacityLog2),
				s.hasher,
			)
			s.StagedSync = nil

		case frontier.LedgerSnarkedSynced:
			root := s.Frontier.Sync.Target.Root
			s.LocalSnarkedRoot = root.Blockchain.SnarkedLedgerHash
			s.SnarkedSync = nil
			if root.Blockchain.StagedLedgerHash != root.Blockchain.SnarkedLedgerHash {
				s.StagedSync = ledgersync.NewStagedState(
					root.Blockchain.StagedLedgerHash,
					root.Blockchain.SnarkedLedgerHash,
					s.hasher,
				)
			}

		case frontier.LedgerStagedSynced:
			s.StagedSync = nil
		}

	case candidates.Action:
		candidates.Reducer(s.Candidates, act, a.Meta)

	case snarkpool.Action:
		snarkpool.Reducer(s.SnarkPool, act, a.Meta)

	case worker.Action:
		worker.Reducer(s.Worker, act, a.Meta)

	case txpool.Action:
		txpool.Reducer(s.TxPool, act, a.Meta)

	case watched.Action:
		watched.Reducer(s.Watched, act, a.Meta)

	case vrf.Action:
		vrf.Reducer(s.Vrf, act, a.Meta)

	case ledgersync.SnarkedAction:
		ledgersync.SnarkedReducer(s.SnarkedSync, act, a.Meta)

	case ledgersync.StagedAction:
		ledgersync.StagedReducer(s.StagedSync, act, a.Meta)

	case Action:
		// node-level actions reduce nothing; their work is effects
	}
}
