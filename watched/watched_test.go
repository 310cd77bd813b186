// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package watched

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

func newWatchedStore(t *testing.T) *store.Store[*State] {
	t.Helper()
	enabled := func(s *State, a store.Action, now store.Timestamp) bool {
		return a.(Action).IsEnabled(s, now)
	}
	reducer := func(s *State, a store.WithMeta) {
		Reducer(s, a.Action.(Action), a.Meta)
	}
	return store.New(NewState(), store.NewManualClock(0), enabled, reducer, nil, nil)
}

func TestWatchedAccountLifecycle(t *testing.T) {
	require := require.New(t)

	st := newWatchedStore(t)
	const pk = "B62qwatched"

	require.True(st.Dispatch(Add{PublicKey: pk}))
	require.False(st.Dispatch(Add{PublicKey: pk}))
	require.False(st.Dispatch(Add{}))

	// transactions are not tracked before the initial state arrives
	require.False(st.Dispatch(TransactionsIncludedInBlock{
		PublicKey: pk,
		Commands:  []types.UserCommand{{ID: ids.GenerateTestID()}},
	}))

	require.True(st.Dispatch(LedgerInitialStateGetInit{PublicKey: pk}))
	require.True(st.Dispatch(LedgerInitialStateGetError{PublicKey: pk, Error: "timeout"}))
	// errors allow a retry
	require.True(st.Dispatch(LedgerInitialStateGetInit{PublicKey: pk}))
	require.True(st.Dispatch(LedgerInitialStateGetSuccess{
		PublicKey: pk,
		Account:   &types.Account{PublicKey: pk, Balance: 1000},
	}))

	require.True(st.Dispatch(TransactionsIncludedInBlock{
		PublicKey: pk,
		BlockHash: ids.GenerateTestID(),
		Height:    9,
		Commands:  []types.UserCommand{{ID: ids.GenerateTestID()}},
	}))

	acc := st.State().Accounts[pk]
	require.Equal(InitialSuccess, acc.InitialStatus)
	require.Len(acc.Transactions, 1)
	require.Equal(uint32(9), acc.Transactions[0].Height)
}
