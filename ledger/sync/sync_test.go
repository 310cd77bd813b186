// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgersync

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// testHasher is a deterministic stand-in for the external Poseidon
// primitive.
type testHasher struct{}

func (testHasher) MerkleNode(depth int, left, right ids.ID) ids.ID {
	var buf [8 + 64]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(depth))
	copy(buf[8:], left[:])
	copy(buf[40:], right[:])
	return ids.ID(blake3.Sum256(buf[:]))
}

func (testHasher) SubtreeRoot(addr ledger.Address, treeDepth int, accounts []types.Account) ids.ID {
	data := []byte(addr.String())
	for _, acc := range accounts {
		data = append(data, acc.Hash[:]...)
	}
	return ids.ID(blake3.Sum256(data))
}

func (testHasher) NumAccountsRoot(count uint64, contentsHash ids.ID) ids.ID {
	// the stand-in treats the contents hash as the implied root
	return contentsHash
}

func (testHasher) StagedLedgerHash(scanAux, pendingCoinbase, snarkedRoot ids.ID) ids.ID {
	data := append([]byte{}, scanAux[:]...)
	data = append(data, pendingCoinbase[:]...)
	data = append(data, snarkedRoot[:]...)
	return ids.ID(blake3.Sum256(data))
}

type snarkedFixture struct {
	st       *store.Store[*SnarkedState]
	clock    *store.ManualClock
	target   ids.ID
	left     ids.ID
	right    ids.ID
	accounts []types.Account
	addrL    ledger.Address
	addrR    ledger.Address
}

// newSnarkedFixture builds a depth-2 tree with content depth 1: two
// account subtrees of two leaves each.
func newSnarkedFixture(t *testing.T) *snarkedFixture {
	t.Helper()
	h := testHasher{}

	accounts := make([]types.Account, 4)
	for i := range accounts {
		accounts[i] = types.Account{Hash: ids.GenerateTestID()}
	}
	addrL := ledger.Root().ChildLeft()
	addrR := ledger.Root().ChildRight()
	left := h.SubtreeRoot(addrL, 2, accounts[:2])
	right := h.SubtreeRoot(addrR, 2, accounts[2:])
	target := h.MerkleNode(0, left, right)

	clock := store.NewManualClock(0)
	state := NewSnarkedState(target, ids.Empty, 2, 1, h)
	enabled := func(s *SnarkedState, a store.Action, now store.Timestamp) bool {
		return a.(SnarkedAction).IsEnabled(s, now)
	}
	reducer := func(s *SnarkedState, a store.WithMeta) {
		SnarkedReducer(s, a.Action.(SnarkedAction), a.Meta)
	}
	return &snarkedFixture{
		st:       store.New(state, clock, enabled, reducer, nil, nil),
		clock:    clock,
		target:   target,
		left:     left,
		right:    right,
		accounts: accounts,
		addrL:    addrL,
		addrR:    addrR,
	}
}

func (f *snarkedFixture) bootstrap(t *testing.T, peer ids.NodeID) {
	t.Helper()
	require.True(t, f.st.Dispatch(NumAccountsQueryInit{Peer: peer, RpcID: 1}))
	require.True(t, f.st.Dispatch(NumAccountsReceived{Peer: peer, Count: 4, ContentsHash: f.target}))
	require.Equal(t, SnarkedTreeSyncPending, f.st.State().Phase)
}

func TestAlreadyCompleteTreeNeedsNoRequests(t *testing.T) {
	require := require.New(t)

	target := ids.GenerateTestID()
	s := NewSnarkedState(target, target, 35, 30, testHasher{})
	require.Equal(SnarkedSuccess, s.Phase)

	peer := ids.GenerateTestNodeID()
	_, ok := s.NextHashQuery(peer, 0)
	require.False(ok)
	_, ok = s.NextAccountQuery(peer, 0)
	require.False(ok)
}

func TestSnarkedSyncHappyPath(t *testing.T) {
	require := require.New(t)

	f := newSnarkedFixture(t)
	peer := ids.GenerateTestNodeID()
	f.bootstrap(t, peer)

	addr, ok := f.st.State().NextHashQuery(peer, f.clock.Now())
	require.True(ok)
	require.Equal(ledger.Root(), addr)

	require.True(f.st.Dispatch(HashesQueryInit{Peer: peer, Addr: addr, RpcID: 2}))
	// one in-flight rpc per peer
	require.True(f.st.State().PeerBusy(peer))
	_, ok = f.st.State().NextHashQuery(peer, f.clock.Now())
	require.False(ok)

	require.True(f.st.Dispatch(ChildHashesReceived{Peer: peer, Addr: addr, Left: f.left, Right: f.right}))
	require.Nil(f.st.State().LastForged)

	// both children sit at content depth: accounts are next
	aAddr, ok := f.st.State().NextAccountQuery(peer, f.clock.Now())
	require.True(ok)
	require.Equal(f.addrL, aAddr)
	require.True(f.st.Dispatch(AccountsQueryInit{Peer: peer, Addr: f.addrL, RpcID: 3}))
	require.True(f.st.Dispatch(AccountsReceived{Peer: peer, Addr: f.addrL, Accounts: f.accounts[:2]}))

	require.True(f.st.Dispatch(AccountsQueryInit{Peer: peer, Addr: f.addrR, RpcID: 4}))
	require.True(f.st.Dispatch(AccountsReceived{Peer: peer, Addr: f.addrR, Accounts: f.accounts[2:]}))

	require.Equal(SnarkedSuccess, f.st.State().Phase)
}

func TestForgedHashMarksErrorAndFlagsPeer(t *testing.T) {
	require := require.New(t)

	f := newSnarkedFixture(t)
	bad := ids.GenerateTestNodeID()
	good := ids.GenerateTestNodeID()
	f.bootstrap(t, good)

	addr := ledger.Root()
	require.True(f.st.Dispatch(HashesQueryInit{Peer: bad, Addr: addr, RpcID: 2}))
	forged := ids.GenerateTestID()
	require.True(f.st.Dispatch(ChildHashesReceived{Peer: bad, Addr: addr, Left: forged, Right: f.right}))

	s := f.st.State()
	require.NotNil(s.LastForged)
	require.Equal(bad, *s.LastForged)
	require.Equal(AttemptError, s.HashQueries[addr].Attempts[bad].Phase)

	// the next peer can try immediately
	next, ok := s.NextHashQuery(good, f.clock.Now())
	require.True(ok)
	require.Equal(addr, next)

	// the failed peer only after its cooldown
	_, ok = s.NextHashQuery(bad, f.clock.Now())
	require.False(ok)
	f.clock.Advance(10 * time.Second)
	_, ok = s.NextHashQuery(bad, f.clock.Now())
	require.True(ok)
}

func TestAttemptAccounting(t *testing.T) {
	require := require.New(t)

	f := newSnarkedFixture(t)
	peers := []ids.NodeID{ids.GenerateTestNodeID(), ids.GenerateTestNodeID()}
	f.bootstrap(t, peers[0])

	addr := ledger.Root()
	require.True(f.st.Dispatch(HashesQueryInit{Peer: peers[0], Addr: addr, RpcID: 2}))
	require.True(f.st.Dispatch(QueryError{Peer: peers[0], Addr: addr, Error: "reset"}))
	require.True(f.st.Dispatch(HashesQueryInit{Peer: peers[1], Addr: addr, RpcID: 3}))

	// each peer appears exactly once in the attempts map
	q := f.st.State().HashQueries[addr]
	require.Len(q.Attempts, 2)
	require.Equal(AttemptError, q.Attempts[peers[0]].Phase)
	require.Equal(AttemptPending, q.Attempts[peers[1]].Phase)
}

func TestStagedPartsValidation(t *testing.T) {
	require := require.New(t)

	h := testHasher{}
	snarkedRoot := ids.GenerateTestID()
	parts := &types.StagedLedgerParts{
		ScanState:       types.ScanState{AuxHash: ids.GenerateTestID()},
		PendingCoinbase: types.PendingCoinbase{Root: ids.GenerateTestID()},
	}
	target := h.StagedLedgerHash(parts.ScanState.AuxHash, parts.PendingCoinbase.Root, snarkedRoot)

	state := NewStagedState(target, snarkedRoot, h)
	enabled := func(s *StagedState, a store.Action, now store.Timestamp) bool {
		return a.(StagedAction).IsEnabled(s, now)
	}
	reducer := func(s *StagedState, a store.WithMeta) {
		StagedReducer(s, a.Action.(StagedAction), a.Meta)
	}
	st := store.New(state, store.NewManualClock(0), enabled, reducer, nil, nil)

	liar := ids.GenerateTestNodeID()
	honest := ids.GenerateTestNodeID()

	require.True(st.Dispatch(PartsFetchInit{Peer: liar, RpcID: 1}))
	// only one fetch at a time
	require.False(st.Dispatch(PartsFetchInit{Peer: honest, RpcID: 2}))

	badParts := &types.StagedLedgerParts{
		ScanState:       types.ScanState{AuxHash: ids.GenerateTestID()},
		PendingCoinbase: parts.PendingCoinbase,
	}
	require.True(st.Dispatch(PartsReceived{Peer: liar, Parts: badParts}))
	require.Equal(StagedAttemptInvalid, st.State().Attempts[liar].Phase)
	require.Equal(StagedPartsFetchPending, st.State().Phase)

	// the invalid peer is out; another peer tries and succeeds
	require.False(st.Dispatch(PartsFetchInit{Peer: liar, RpcID: 3}))
	require.True(st.Dispatch(PartsFetchInit{Peer: honest, RpcID: 4}))
	require.True(st.Dispatch(PartsReceived{Peer: honest, Parts: parts}))
	require.Equal(StagedReconstructPending, st.State().Phase)

	require.True(st.Dispatch(ReconstructSuccess{}))
	require.Equal(StagedSuccess, st.State().Phase)
}

func TestStagedReconstructErrorRefetches(t *testing.T) {
	require := require.New(t)

	h := testHasher{}
	snarkedRoot := ids.GenerateTestID()
	parts := &types.StagedLedgerParts{
		ScanState:       types.ScanState{AuxHash: ids.GenerateTestID()},
		PendingCoinbase: types.PendingCoinbase{Root: ids.GenerateTestID()},
	}
	target := h.StagedLedgerHash(parts.ScanState.AuxHash, parts.PendingCoinbase.Root, snarkedRoot)

	state := NewStagedState(target, snarkedRoot, h)
	enabled := func(s *StagedState, a store.Action, now store.Timestamp) bool {
		return a.(StagedAction).IsEnabled(s, now)
	}
	reducer := func(s *StagedState, a store.WithMeta) {
		StagedReducer(s, a.Action.(StagedAction), a.Meta)
	}
	st := store.New(state, store.NewManualClock(0), enabled, reducer, nil, nil)

	peer := ids.GenerateTestNodeID()
	require.True(st.Dispatch(PartsFetchInit{Peer: peer, RpcID: 1}))
	require.True(st.Dispatch(PartsReceived{Peer: peer, Parts: parts}))
	require.True(st.Dispatch(ReconstructError{Error: "scan state malformed"}))

	require.Equal(StagedPartsFetchPending, st.State().Phase)
	require.Nil(st.State().Parts)
}
