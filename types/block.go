// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the chain entities shared across subsystems: blocks,
// consensus state, snark jobs and accounts.
package types

import (
	"github.com/luxfi/ids"
)

// EpochData is the per-epoch consensus data used by fork resolution.
type EpochData struct {
	Seed                 ids.ID
	LockCheckpoint       ids.ID
	LockCheckpointHeight uint32
	Length               uint32
}

// ConsensusState is the slice of a block's protocol state that fork ordering
// reads. VRFOutput compares big-endian as an unsigned integer.
type ConsensusState struct {
	BlockchainLength   uint32
	GlobalSlot         uint32
	Epoch              uint32
	VRFOutput          ids.ID
	MinWindowDensity   uint32
	SubWindowDensities []uint32
	StakingEpochData   EpochData
	NextEpochData      EpochData
}

// BlockchainState carries the ledger commitments of a block.
type BlockchainState struct {
	SnarkedLedgerHash   ids.ID
	StagedLedgerHash    ids.ID
	PendingCoinbaseHash ids.ID
}

// UserCommand is an opaque signed command carried in a staged-ledger diff.
// The core never inspects its payload; verification is a service concern.
type UserCommand struct {
	ID      ids.ID
	Payload []byte
}

// StagedLedgerDiff is the delta a block applies to the staged ledger.
type StagedLedgerDiff struct {
	Commands       []UserCommand
	CompletedWorks []Snark
	Coinbase       bool
}

// Block is an immutable received block, identified by its state hash.
type Block struct {
	Hash       ids.ID
	PredHash   ids.ID
	Height     uint32
	GlobalSlot uint32

	Consensus  ConsensusState
	Blockchain BlockchainState
	Diff       StagedLedgerDiff

	// Proof is opaque to the core; the Verifier service checks it.
	Proof []byte
}

// GenesisBlock builds the genesis block from configured constants. Its
// snarked and staged ledger hashes coincide: genesis has no pending scan
// state.
func GenesisBlock(stateHash, ledgerHash ids.ID) *Block {
	return &Block{
		Hash:   stateHash,
		Height: 1,
		Consensus: ConsensusState{
			BlockchainLength: 1,
		},
		Blockchain: BlockchainState{
			SnarkedLedgerHash: ledgerHash,
			StagedLedgerHash:  ledgerHash,
		},
	}
}
