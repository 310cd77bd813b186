// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/types"
)

func cs(length uint32, vrfByte byte) *types.ConsensusState {
	var vrf ids.ID
	vrf[0] = vrfByte
	return &types.ConsensusState{
		BlockchainLength: length,
		VRFOutput:        vrf,
	}
}

func TestShortRangeLongerChainWins(t *testing.T) {
	require := require.New(t)

	tip := cs(10, 0x10)
	candidate := cs(11, 0x00)
	d, why := ShortRangeForkTake(tip, candidate, ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Take, d)
	require.Equal(ReasonChainLength, why)
	require.True(d.UseAsBestTip())
}

func TestShortRangeVRFBreaksTie(t *testing.T) {
	require := require.New(t)

	// same height 10, candidate has larger vrf
	tip := cs(10, 0x10)
	candidate := cs(10, 0x20)
	d, why := ShortRangeForkTake(tip, candidate, ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Take, d)
	require.Equal(ReasonVRF, why)

	// smaller vrf keeps the local tip
	d, why = ShortRangeForkTake(tip, cs(10, 0x01), ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Keep, d)
	require.Equal(ReasonVRF, why)
}

func TestShortRangeStateHashBreaksFinalTie(t *testing.T) {
	require := require.New(t)

	tip := cs(10, 0x10)
	candidate := cs(10, 0x10)
	var tipHash, candHash ids.ID
	tipHash[0] = 1
	candHash[0] = 2
	d, why := ShortRangeForkTake(tip, candidate, tipHash, candHash)
	require.Equal(Take, d)
	require.Equal(ReasonStateHash, why)

	d, _ = ShortRangeForkTake(tip, candidate, candHash, tipHash)
	require.Equal(Keep, d)
}

func TestIsShortRangeFork(t *testing.T) {
	require := require.New(t)

	seed := ids.GenerateTestID()
	lock := ids.GenerateTestID()

	same := &types.ConsensusState{Epoch: 4}
	same.StakingEpochData.LockCheckpoint = lock
	other := &types.ConsensusState{Epoch: 4}
	other.StakingEpochData.LockCheckpoint = lock
	require.True(IsShortRangeFork(same, other))

	// adjacent epoch sharing the seed
	older := &types.ConsensusState{Epoch: 4}
	older.NextEpochData.Seed = seed
	newer := &types.ConsensusState{Epoch: 5}
	newer.StakingEpochData.Seed = seed
	require.True(IsShortRangeFork(older, newer))
	require.True(IsShortRangeFork(newer, older))

	// distant epochs are long range
	distant := &types.ConsensusState{Epoch: 9}
	require.False(IsShortRangeFork(older, distant))
}

func TestLongRangeDensityDecides(t *testing.T) {
	require := require.New(t)

	tip := cs(100, 0)
	tip.MinWindowDensity = 30
	candidate := cs(90, 0)
	candidate.MinWindowDensity = 44

	d, why := LongRangeForkTake(tip, candidate, ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Take, d)
	require.Equal(ReasonSubWindowDensity, why)

	candidate.MinWindowDensity = 20
	d, _ = LongRangeForkTake(tip, candidate, ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Keep, d)
}

func TestLongRangeLockCheckpointTieBreak(t *testing.T) {
	require := require.New(t)

	tip := cs(100, 0)
	tip.MinWindowDensity = 30
	tip.StakingEpochData.LockCheckpointHeight = 70
	candidate := cs(100, 0)
	candidate.MinWindowDensity = 30
	candidate.StakingEpochData.LockCheckpointHeight = 80

	d, why := LongRangeForkTake(tip, candidate, ids.GenerateTestID(), ids.GenerateTestID())
	require.Equal(Take, d)
	require.Equal(ReasonLockCheckpointHeight, why)
}
