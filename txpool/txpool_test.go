// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

func newTxStore(t *testing.T) *store.Store[*State] {
	t.Helper()
	enabled := func(s *State, a store.Action, now store.Timestamp) bool {
		return a.(Action).IsEnabled(s, now)
	}
	reducer := func(s *State, a store.WithMeta) {
		Reducer(s, a.Action.(Action), a.Meta)
	}
	return store.New(NewState(), store.NewManualClock(0), enabled, reducer, nil, nil)
}

func TestVerificationGatesPoolEntry(t *testing.T) {
	require := require.New(t)

	st := newTxStore(t)
	peer := ids.GenerateTestNodeID()
	cmd := types.UserCommand{ID: ids.GenerateTestID(), Payload: []byte{1}}

	require.True(st.Dispatch(CandidateInfoReceived{Peer: peer, ID: cmd.ID}))
	// duplicate offers from the same peer are dropped
	require.False(st.Dispatch(CandidateInfoReceived{Peer: peer, ID: cmd.ID}))

	require.True(st.Dispatch(CandidateFetchInit{Peer: peer, ID: cmd.ID}))
	require.True(st.Dispatch(CandidateReceived{Peer: peer, Command: cmd}))
	require.True(st.Dispatch(TxVerifyPendingAction{ID: cmd.ID, Peer: peer, VerifyID: 3}))

	// not rebroadcastable before verification
	cmds, _ := st.State().Verified(0, 10)
	require.Empty(cmds)

	require.True(st.Dispatch(TxVerifySuccess{ID: cmd.ID, Peer: peer, VerifyID: 3}))
	cmds, last := st.State().Verified(0, 10)
	require.Len(cmds, 1)
	require.Equal(uint64(0), last)

	// pooled commands are no longer candidates
	require.False(st.Dispatch(CandidateInfoReceived{Peer: peer, ID: cmd.ID}))
}

func TestVerifyErrorDropsCommand(t *testing.T) {
	require := require.New(t)

	st := newTxStore(t)
	peer := ids.GenerateTestNodeID()
	cmd := types.UserCommand{ID: ids.GenerateTestID()}

	require.True(st.Dispatch(CandidateInfoReceived{Peer: peer, ID: cmd.ID}))
	require.True(st.Dispatch(CandidateFetchInit{Peer: peer, ID: cmd.ID}))
	require.True(st.Dispatch(CandidateReceived{Peer: peer, Command: cmd}))
	require.True(st.Dispatch(TxVerifyPendingAction{ID: cmd.ID, Peer: peer, VerifyID: 1}))
	require.True(st.Dispatch(TxVerifyError{ID: cmd.ID, VerifyID: 1}))

	require.Zero(st.State().Len())
}

func TestBestTipAppliedEvictsCommands(t *testing.T) {
	require := require.New(t)

	st := newTxStore(t)
	peer := ids.GenerateTestNodeID()
	kept := types.UserCommand{ID: ids.GenerateTestID()}
	spent := types.UserCommand{ID: ids.GenerateTestID()}

	for i, cmd := range []types.UserCommand{kept, spent} {
		require.True(st.Dispatch(CandidateInfoReceived{Peer: peer, ID: cmd.ID}))
		require.True(st.Dispatch(CandidateFetchInit{Peer: peer, ID: cmd.ID}))
		require.True(st.Dispatch(CandidateReceived{Peer: peer, Command: cmd}))
		require.True(st.Dispatch(TxVerifyPendingAction{ID: cmd.ID, Peer: peer, VerifyID: uint64(i)}))
		require.True(st.Dispatch(TxVerifySuccess{ID: cmd.ID, Peer: peer, VerifyID: uint64(i)}))
	}

	require.True(st.Dispatch(BestTipApplied{Applied: []ids.ID{spent.ID}}))
	require.Equal(1, st.State().Len())
	_, ok := st.State().Commands[kept.ID]
	require.True(ok)
}
