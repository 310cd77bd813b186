// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node assembles the subsystem state machines into one store and
// runs the event loop that feeds it. All cross-subsystem coordination
// happens here: subsystems never reach into each other.
package node

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/config"
	"github.com/openmina/openmina-go/frontier"
	"github.com/openmina/openmina-go/frontier/candidates"
	"github.com/openmina/openmina-go/ledger"
	ledgersync "github.com/openmina/openmina-go/ledger/sync"
	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/snarkpool"
	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/txpool"
	"github.com/openmina/openmina-go/vrf"
	"github.com/openmina/openmina-go/watched"
)

// State is the root of the state tree.
type State struct {
	Config config.Config

	P2P        *p2p.State
	Frontier   *frontier.State
	Candidates *candidates.State
	SnarkPool  *snarkpool.State
	Worker     *worker.State
	TxPool     *txpool.State
	Watched    *watched.State
	Vrf        *vrf.State

	// Ledger syncs exist only while the frontier sync needs them.
	SnarkedSync *ledgersync.SnarkedState
	StagedSync  *ledgersync.StagedState

	// LocalSnarkedRoot is the root of the snarked ledger we hold; a sync
	// toward this exact hash needs no network requests.
	LocalSnarkedRoot ids.ID

	hasher ledger.Hasher
}

// Topics every node subscribes to.
var gossipTopics = []string{"coda/consensus-messages/0.0.1"}

// NewState builds the assembled state tree.
func NewState(cfg config.Config, hasher ledger.Hasher) (*State, error) {
	p2pState, err := p2p.NewState(p2p.Limits{
		MaxPeers:           cfg.P2P.MaxPeers,
		ReconnectMinWaitMS: uint64(cfg.P2P.ReconnectMinWait.Milliseconds()),
		RPCTimeoutMS:       uint64(cfg.P2P.RPCTimeout.Milliseconds()),
	}, gossipTopics)
	if err != nil {
		return nil, err
	}
	cands, err := candidates.NewState()
	if err != nil {
		return nil, err
	}

	var genesisLedger ids.ID
	if cfg.GenesisLedgerHash != "" {
		genesisLedger, err = ids.FromString(cfg.GenesisLedgerHash)
		if err != nil {
			return nil, err
		}
	}

	return &State{
		Config:           cfg,
		P2P:              p2pState,
		Frontier:         frontier.NewState(config.K),
		Candidates:       cands,
		SnarkPool:        snarkpool.NewState(),
		Worker:           worker.NewState(),
		TxPool:           txpool.NewState(),
		Watched:          watched.NewState(),
		Vrf:              vrf.NewState(),
		LocalSnarkedRoot: genesisLedger,
		hasher:           hasher,
	}, nil
}

// Action is a node-level action.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// Init bootstraps the node: arm the sync machine and start bootstrap with
// the peers already ready. It dials no peer; seed addresses are not read.
type Init struct{}

func (Init) ActionKind() store.Kind { return "NodeInit" }

func (Init) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Frontier.Sync.Phase == frontier.SyncIdle
}

// Tick is the periodic sweep: it re-dispatches every timeout-style action
// and lets enabling conditions decide.
type Tick struct{}

func (Tick) ActionKind() store.Kind { return "NodeTick" }

func (Tick) IsEnabled(*State, store.Timestamp) bool { return true }
