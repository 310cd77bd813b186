// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package frontier

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// applyNow synchronously reports every apply back as BlockApplySuccess.
type applyNow struct {
	d store.Dispatcher
}

func (a *applyNow) ApplyBlock(b *types.Block) {
	a.d.Dispatch(BlockApplySuccess{Hash: b.Hash})
}

// testHarness wires reducer+effects; p2p actions fired by effects are
// collected instead of dispatched.
type testHarness struct {
	st      *store.Store[*State]
	rpcs    []p2p.RpcRequestSend
	applier *applyNow
}

type dispatchRecorder struct {
	inner store.Dispatcher
	h     *testHarness
}

func (r *dispatchRecorder) Dispatch(a store.Action) bool {
	if rpc, ok := a.(p2p.RpcRequestSend); ok {
		r.h.rpcs = append(r.h.rpcs, rpc)
		return true
	}
	return r.inner.Dispatch(a)
}

func newHarness(t *testing.T, clock store.Clock) *testHarness {
	t.Helper()
	h := &testHarness{applier: &applyNow{}}
	effects := &Effects{Log: log.NewNoOpLogger(), Ledger: h.applier}

	enabled := func(s *State, a store.Action, now store.Timestamp) bool {
		return a.(Action).IsEnabled(s, now)
	}
	reducer := func(s *State, a store.WithMeta) {
		Reducer(s, a.Action.(Action), a.Meta)
	}
	eff := func(d store.Dispatcher, s *State, a store.WithMeta) {
		effects.Apply(&dispatchRecorder{inner: d, h: h}, s, a.Action.(Action), a.Meta)
	}
	h.st = store.New(NewState(290), clock, enabled, reducer, eff, nil)
	h.applier.d = h.st
	return h
}

func chainOf(n int) []*types.Block {
	blocks := make([]*types.Block, n)
	var pred ids.ID
	for i := range blocks {
		b := &types.Block{
			Hash:     ids.GenerateTestID(),
			PredHash: pred,
			Height:   uint32(i + 1),
		}
		b.Consensus.BlockchainLength = b.Height
		blocks[i] = b
		pred = b.Hash
	}
	return blocks
}

func TestBootstrapStaysPendingWithoutPeers(t *testing.T) {
	require := require.New(t)

	clock := store.NewManualClock(0)
	h := newHarness(t, clock)

	require.True(h.st.Dispatch(InitSync{}))
	require.True(h.st.Dispatch(BootstrapStart{}))
	require.Equal(SyncBootstrapPending, h.st.State().Sync.Phase)

	// no peers, no quorum; timeout sends it back to init
	require.False(h.st.Dispatch(BootstrapQuorumReached{}))
	require.False(h.st.Dispatch(BootstrapTimeout{}))
	clock.Advance(31 * time.Second)
	require.True(h.st.Dispatch(BootstrapTimeout{}))
	require.Equal(SyncInit, h.st.State().Sync.Phase)
}

func TestSinglePeerSyncToGenesisHeightOne(t *testing.T) {
	require := require.New(t)

	clock := store.NewManualClock(0)
	h := newHarness(t, clock)
	peer := ids.GenerateTestNodeID()
	genesis := types.GenesisBlock(ids.GenerateTestID(), ids.GenerateTestID())

	require.True(h.st.Dispatch(InitSync{}))
	require.True(h.st.Dispatch(BootstrapStart{Peers: []ids.NodeID{peer}}))
	require.Len(h.rpcs, 1)

	// peer's tip equals its root: nothing beyond ledgers to sync
	require.True(h.st.Dispatch(BestTipReceived{Peer: peer, Tip: genesis, Root: genesis}))
	require.Equal(SyncLedgerSnarkedPending, h.st.State().Sync.Phase)

	require.True(h.st.Dispatch(LedgerSnarkedSynced{}))
	require.True(h.st.Dispatch(LedgerStagedSynced{}))
	require.Equal(SyncSynced, h.st.State().Sync.Phase)
	require.Equal(genesis.Hash, h.st.State().BestTip().Hash)
	require.Len(h.st.State().Chain, 1)
}

func TestQuorumRequiresStrictMajority(t *testing.T) {
	require := require.New(t)

	clock := store.NewManualClock(0)
	h := newHarness(t, clock)
	peers := []ids.NodeID{
		ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID(),
	}
	chain := chainOf(3)
	tip := chain[2]
	other := chainOf(3)[2]

	require.True(h.st.Dispatch(InitSync{}))
	require.True(h.st.Dispatch(BootstrapStart{Peers: peers}))

	// 1 of 3: no quorum
	require.True(h.st.Dispatch(BestTipReceived{Peer: peers[0], Tip: tip, Root: chain[0]}))
	require.Equal(SyncBootstrapPending, h.st.State().Sync.Phase)
	// conflicting answer keeps it open
	require.True(h.st.Dispatch(BestTipReceived{Peer: peers[1], Tip: other, Root: chain[0]}))
	require.Equal(SyncBootstrapPending, h.st.State().Sync.Phase)
	// 2 of 3 agree: strict majority
	require.True(h.st.Dispatch(BestTipReceived{Peer: peers[2], Tip: tip, Root: chain[0]}))
	require.Equal(SyncLedgerSnarkedPending, h.st.State().Sync.Phase)
	require.Equal(tip.Hash, h.st.State().Sync.Target.BestTip.Hash)
}

func TestBlockCatchupAppliesInOrder(t *testing.T) {
	require := require.New(t)

	clock := store.NewManualClock(0)
	h := newHarness(t, clock)
	peer := ids.GenerateTestNodeID()
	chain := chainOf(4)
	root, tip := chain[0], chain[3]

	require.True(h.st.Dispatch(InitSync{}))
	require.True(h.st.Dispatch(BootstrapStart{Peers: []ids.NodeID{peer}}))
	require.True(h.st.Dispatch(BestTipReceived{Peer: peer, Tip: tip, Root: root}))
	require.True(h.st.Dispatch(LedgerSnarkedSynced{}))
	require.True(h.st.Dispatch(LedgerStagedSynced{}))
	require.Equal(SyncBlocksFetchPending, h.st.State().Sync.Phase)

	plan := []ids.ID{chain[1].Hash, chain[2].Hash, chain[3].Hash}
	require.True(h.st.Dispatch(FetchPlanReceived{Hashes: plan}))

	// the tip body came with bootstrap; only the two middle bodies are
	// missing. applies cascade in chain order as bodies land.
	require.True(h.st.Dispatch(BlockFetchInit{Hash: chain[1].Hash, Peer: peer}))
	require.True(h.st.Dispatch(BlockFetched{Peer: peer, Block: chain[1]}))
	require.True(h.st.Dispatch(BlockFetchInit{Hash: chain[2].Hash, Peer: peer}))
	require.True(h.st.Dispatch(BlockFetched{Peer: peer, Block: chain[2]}))

	s := h.st.State()
	require.Equal(SyncSynced, s.Sync.Phase)
	require.Equal(tip.Hash, s.BestTip().Hash)
	require.True(s.consistent())
	require.Equal([]*types.Block{root, chain[1], chain[2], chain[3]}, s.Chain)
}

func TestShortForkSwitchReplacesTip(t *testing.T) {
	require := require.New(t)

	clock := store.NewManualClock(0)
	h := newHarness(t, clock)
	peer := ids.GenerateTestNodeID()
	chain := chainOf(2)
	root, tip := chain[0], chain[1]

	require.True(h.st.Dispatch(InitSync{}))
	require.True(h.st.Dispatch(BootstrapStart{Peers: []ids.NodeID{peer}}))
	require.True(h.st.Dispatch(BestTipReceived{Peer: peer, Tip: tip, Root: root}))
	require.True(h.st.Dispatch(LedgerSnarkedSynced{}))
	require.True(h.st.Dispatch(LedgerStagedSynced{}))
	// the tip body came with bootstrap and sits on the root, so it is
	// applied as soon as the staged ledger lands; a late plan is refused
	require.False(h.st.Dispatch(FetchPlanReceived{Hashes: []ids.ID{tip.Hash}}))
	require.Equal(SyncSynced, h.st.State().Sync.Phase)

	// a same-height rival on the same root replaces the head
	rival := &types.Block{
		Hash:     ids.GenerateTestID(),
		PredHash: root.Hash,
		Height:   tip.Height,
	}
	require.True(h.st.Dispatch(BestTipUpdate{Block: rival}))
	s := h.st.State()
	require.Equal(rival.Hash, s.BestTip().Hash)
	require.False(s.Contains(tip.Hash))
	require.True(s.consistent())
}

func TestFrontierTrimsToKPlusOne(t *testing.T) {
	require := require.New(t)

	s := NewState(2)
	chain := chainOf(5)
	for _, b := range chain {
		s.push(b)
	}
	require.Len(s.Chain, 3)
	require.Equal(chain[4].Hash, s.BestTip().Hash)
	require.Equal(chain[2].Hash, s.Root().Hash)
	require.True(s.consistent())
}
