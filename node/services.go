// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Verifier is the batched proof checker. Results return as events carrying
// the correlation id.
type Verifier interface {
	VerifyBlock(id uint64, hash ids.ID, proof []byte)
	VerifyWork(id uint64, peer ids.NodeID, snarks []types.Snark)
	VerifyCommands(id uint64, cmds []types.UserCommand)
	// ValidateGossip decodes and checks one gossip message; the verdict
	// (plus the decoded block for consensus messages) returns as a
	// GossipValidityEvent.
	ValidateGossip(id pubsub.MessageID, topic string, data []byte)
}

// Ledger is the Merkle store boundary: the single writer of account state.
type Ledger interface {
	ApplyBlock(b *types.Block)
	StagedLedgerReconstruct(parts *types.StagedLedgerParts)
}

// Services bundles every I/O boundary injected into the node.
type Services struct {
	P2P      p2p.Service
	Worker   worker.Service
	Verifier Verifier
	Ledger   Ledger
}

// Completion events produced by the node's own services. P2P events live in
// the p2p package.

// BlockVerifyResultEvent answers Verifier.VerifyBlock.
type BlockVerifyResultEvent struct {
	ID   uint64
	Hash ids.ID
	OK   bool
}

func (BlockVerifyResultEvent) EventKind() store.Kind { return "BlockVerifyResult" }

// WorkVerifyResultEvent answers Verifier.VerifyWork for a peer candidate.
type WorkVerifyResultEvent struct {
	ID    uint64
	Peer  ids.NodeID
	JobID types.JobID
	OK    bool
}

func (WorkVerifyResultEvent) EventKind() store.Kind { return "WorkVerifyResult" }

// GossipValidityEvent answers Verifier.ValidateGossip. Block is the decoded
// consensus-message payload, nil for other topics or undecodable data.
type GossipValidityEvent struct {
	ID    pubsub.MessageID
	Block *types.Block
	OK    bool
}

func (GossipValidityEvent) EventKind() store.Kind { return "GossipValidityResult" }

// TxVerifyResultEvent answers Verifier.VerifyCommands per command.
type TxVerifyResultEvent struct {
	ID   uint64
	TxID ids.ID
	OK   bool
}

func (TxVerifyResultEvent) EventKind() store.Kind { return "TxVerifyResult" }

// BlockApplyResultEvent answers Ledger.ApplyBlock.
type BlockApplyResultEvent struct {
	Hash  ids.ID
	Error string
}

func (BlockApplyResultEvent) EventKind() store.Kind { return "BlockApplyResult" }

// ReconstructResultEvent answers Ledger.StagedLedgerReconstruct.
type ReconstructResultEvent struct {
	Error string
}

func (ReconstructResultEvent) EventKind() store.Kind { return "StagedLedgerReconstructResult" }

// WorkerEvent relays one external prover lifecycle event.
type WorkerEvent struct {
	Started   bool
	Result    *types.Snark
	Error     string
	Permanent bool
	Cancelled bool
	Killed    bool
}

func (WorkerEvent) EventKind() store.Kind { return "ExternalSnarkWorkerEvent" }
