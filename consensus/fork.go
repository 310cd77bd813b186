// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the pure fork-resolution rules. Both entry
// points compare a candidate against the current best tip and return a
// decision plus the reason, with no side effects; reducers store the result
// alongside the candidate.
package consensus

import (
	"bytes"

	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/types"
)

// Decision says whether the candidate replaces the best tip.
type Decision uint8

const (
	Keep Decision = iota
	Take
	// TakeNoBestTip is the trivial take when no local tip exists yet.
	TakeNoBestTip
)

// Reason records why a decision was made, for observability.
type Reason uint8

const (
	ReasonNoBestTip Reason = iota
	ReasonChainLength
	ReasonVRF
	ReasonStateHash
	ReasonSubWindowDensity
	ReasonLockCheckpointHeight
)

func (d Decision) UseAsBestTip() bool {
	return d == Take || d == TakeNoBestTip
}

// IsShortRangeFork reports whether two consensus states fork within the same
// epoch, or across adjacent epochs sharing the next-epoch seed. Everything
// else is a long-range fork judged by window density.
func IsShortRangeFork(a, b *types.ConsensusState) bool {
	if a.Epoch == b.Epoch {
		return a.StakingEpochData.LockCheckpoint == b.StakingEpochData.LockCheckpoint
	}
	// adjacent epochs: the younger chain's staking data must descend from
	// the older chain's next-epoch data
	switch {
	case a.Epoch+1 == b.Epoch:
		return a.NextEpochData.Seed == b.StakingEpochData.Seed
	case b.Epoch+1 == a.Epoch:
		return b.NextEpochData.Seed == a.StakingEpochData.Seed
	default:
		return false
	}
}

// ShortRangeForkTake compares (blockchain_length, vrf_output, state_hash)
// lexicographically; the larger tuple wins.
func ShortRangeForkTake(tip, candidate *types.ConsensusState, tipHash, candidateHash ids.ID) (Decision, Reason) {
	if candidate.BlockchainLength != tip.BlockchainLength {
		if candidate.BlockchainLength > tip.BlockchainLength {
			return Take, ReasonChainLength
		}
		return Keep, ReasonChainLength
	}
	if cmp := compareID(candidate.VRFOutput, tip.VRFOutput); cmp != 0 {
		if cmp > 0 {
			return Take, ReasonVRF
		}
		return Keep, ReasonVRF
	}
	if compareID(candidateHash, tipHash) > 0 {
		return Take, ReasonStateHash
	}
	return Keep, ReasonStateHash
}

// LongRangeForkTake compares min-window densities; ties break by
// lock-checkpoint heights, then by the short-range tuple.
func LongRangeForkTake(tip, candidate *types.ConsensusState, tipHash, candidateHash ids.ID) (Decision, Reason) {
	if candidate.MinWindowDensity != tip.MinWindowDensity {
		if candidate.MinWindowDensity > tip.MinWindowDensity {
			return Take, ReasonSubWindowDensity
		}
		return Keep, ReasonSubWindowDensity
	}
	candHeight := candidate.StakingEpochData.LockCheckpointHeight
	tipHeight := tip.StakingEpochData.LockCheckpointHeight
	if candHeight != tipHeight {
		if candHeight > tipHeight {
			return Take, ReasonLockCheckpointHeight
		}
		return Keep, ReasonLockCheckpointHeight
	}
	return ShortRangeForkTake(tip, candidate, tipHash, candidateHash)
}

func compareID(a, b ids.ID) int {
	return bytes.Compare(a[:], b[:])
}
