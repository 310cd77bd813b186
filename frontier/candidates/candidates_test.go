// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package candidates

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/consensus"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

func block(height uint32, vrfByte byte) *types.Block {
	var vrf ids.ID
	vrf[0] = vrfByte
	return &types.Block{
		Hash:   ids.GenerateTestID(),
		Height: height,
		Consensus: types.ConsensusState{
			BlockchainLength: height,
			VRFOutput:        vrf,
		},
	}
}

func newTestStore(t *testing.T) *store.Store[*State] {
	t.Helper()
	s, err := NewState()
	require.NoError(t, err)
	enabled := func(st *State, a store.Action, now store.Timestamp) bool {
		return a.(Action).IsEnabled(st, now)
	}
	reducer := func(st *State, a store.WithMeta) {
		Reducer(st, a.Action.(Action), a.Meta)
	}
	return store.New(s, store.NewManualClock(0), enabled, reducer, nil, nil)
}

func TestBlockReceivedIsIdempotent(t *testing.T) {
	require := require.New(t)

	st := newTestStore(t)
	b := block(5, 1)
	require.True(st.Dispatch(BlockReceived{Block: b}))
	require.False(st.Dispatch(BlockReceived{Block: b}))
	require.Len(st.State().Blocks, 1)
}

func TestCandidatePipeline(t *testing.T) {
	require := require.New(t)

	st := newTestStore(t)
	b := block(5, 1)
	require.True(st.Dispatch(BlockReceived{Block: b}))

	// verification cannot start before prevalidation
	require.False(st.Dispatch(SnarkVerifyPendingAction{Hash: b.Hash, VerifyID: 1}))

	require.True(st.Dispatch(BlockPrevalidated{Hash: b.Hash}))
	require.True(st.Dispatch(SnarkVerifyPendingAction{Hash: b.Hash, VerifyID: 1}))

	// completion with a mismatched verify id is dropped
	require.False(st.Dispatch(SnarkVerifySuccessAction{Hash: b.Hash, VerifyID: 2}))
	require.True(st.Dispatch(SnarkVerifySuccessAction{Hash: b.Hash, VerifyID: 1}))

	c, ok := st.State().Get(b.Hash)
	require.True(ok)
	require.Equal(SnarkVerifySuccess, c.Status)
}

func TestInvalidHashSuppressesReplay(t *testing.T) {
	require := require.New(t)

	st := newTestStore(t)
	b := block(5, 1)
	require.True(st.Dispatch(BlockReceived{Block: b}))
	require.True(st.Dispatch(BlockPrevalidated{Hash: b.Hash}))
	require.True(st.Dispatch(SnarkVerifyPendingAction{Hash: b.Hash, VerifyID: 1}))
	require.True(st.Dispatch(SnarkVerifyErrorAction{Hash: b.Hash, VerifyID: 1}))

	require.True(st.State().IsInvalid(b.Hash))
	// re-receiving the bad block is a no-op
	require.False(st.Dispatch(BlockReceived{Block: b}))
}

func TestForkResolveShortRangeVRF(t *testing.T) {
	require := require.New(t)

	st := newTestStore(t)
	tip := block(10, 0x10)
	cand := block(10, 0x20)
	require.True(st.Dispatch(BlockReceived{Block: cand}))
	require.True(st.Dispatch(BlockPrevalidated{Hash: cand.Hash}))
	require.True(st.Dispatch(SnarkVerifyPendingAction{Hash: cand.Hash, VerifyID: 1}))
	require.True(st.Dispatch(SnarkVerifySuccessAction{Hash: cand.Hash, VerifyID: 1}))

	require.True(st.Dispatch(ForkResolve{Hash: cand.Hash, Tip: tip, TipHash: tip.Hash}))
	c, _ := st.State().Get(cand.Hash)
	require.Equal(consensus.Take, c.Decision)
	require.Equal(consensus.ReasonVRF, c.DecisionWhy)
	require.Equal(tip.Hash, c.ComparedWith)
}

func TestBestVerifiedAndPrune(t *testing.T) {
	require := require.New(t)

	st := newTestStore(t)
	worse := block(9, 1)
	better := block(11, 1)
	for _, b := range []*types.Block{worse, better} {
		require.True(st.Dispatch(BlockReceived{Block: b}))
		require.True(st.Dispatch(BlockPrevalidated{Hash: b.Hash}))
		require.True(st.Dispatch(SnarkVerifyPendingAction{Hash: b.Hash, VerifyID: 1}))
		require.True(st.Dispatch(SnarkVerifySuccessAction{Hash: b.Hash, VerifyID: 1}))
	}

	best, ok := st.State().BestVerified()
	require.True(ok)
	require.Equal(better.Hash, best.Block.Hash)

	require.True(st.Dispatch(PruneAction{Best: better}))
	require.Empty(st.State().Blocks)
}
