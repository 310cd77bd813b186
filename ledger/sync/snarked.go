// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledgersync implements the two ledger sync engines: the snarked
// ledger BFS over subtree hashes and accounts, and the staged-ledger parts
// fetch plus reconstruction.
package ledgersync

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
)

// AttemptPhase is one peer's state for one queried address.
type AttemptPhase uint8

const (
	AttemptInit AttemptPhase = iota
	AttemptPending
	AttemptError
	AttemptSuccess
)

// PeerAttempt tracks a single peer's latest attempt; a peer appears at most
// once per address.
type PeerAttempt struct {
	Phase   AttemptPhase
	RpcID   channels.RpcID
	ErrorAt store.Timestamp
}

// PendingQuery is an address whose children (or account range) are wanted.
type PendingQuery struct {
	Addr     ledger.Address
	Attempts map[ids.NodeID]*PeerAttempt
}

func newPendingQuery(addr ledger.Address) *PendingQuery {
	return &PendingQuery{Addr: addr, Attempts: make(map[ids.NodeID]*PeerAttempt)}
}

// pendingOn reports whether any peer has an in-flight attempt.
func (q *PendingQuery) pendingOn() bool {
	for _, a := range q.Attempts {
		if a.Phase == AttemptPending {
			return true
		}
	}
	return false
}

// RetryableBy reports whether [peer] may (re)try this address: it never
// tried, or its last attempt errored and the cooldown elapsed.
func (q *PendingQuery) RetryableBy(peer ids.NodeID, now store.Timestamp, cooldownMS uint64) bool {
	a, ok := q.Attempts[peer]
	if !ok {
		return true
	}
	return a.Phase == AttemptError && now.MillisSince(a.ErrorAt) >= cooldownMS
}

// SnarkedPhase is the snarked sync lifecycle for one target hash.
type SnarkedPhase uint8

const (
	SnarkedIdle SnarkedPhase = iota
	SnarkedNumAccountsPending
	SnarkedTreeSyncPending
	SnarkedSuccess
)

// SnarkedState materializes a Merkle tree whose root matches Target by
// fetching subtree hashes and then accounts. The partial tree is kept in
// memory behind this struct; a disk-spilling store can replace the maps
// without touching the machine.
type SnarkedState struct {
	Target ids.ID
	Phase  SnarkedPhase

	// TreeDepth and ContentDepth configure the BFS: hash queries descend
	// to ContentDepth, below which whole account ranges are fetched.
	TreeDepth    int
	ContentDepth int
	// RetryCooldownMS gates re-asking a peer that errored.
	RetryCooldownMS uint64

	TotalAccounts uint64

	// Known holds every validated node hash by address.
	Known map[ledger.Address]ids.ID

	// NumAccounts tracks the initial count probe per peer.
	NumAccounts *PendingQuery

	// HashQueries and AccountQueries are the fetch frontier.
	HashQueries    map[ledger.Address]*PendingQuery
	AccountQueries map[ledger.Address]*PendingQuery

	// queue orders are kept explicitly for determinism
	HashQueue    []ledger.Address
	AccountQueue []ledger.Address

	// LastForged is set when a peer returns hashes that do not match the
	// validated parent; the effect phase bans it.
	LastForged *ids.NodeID

	hasher ledger.Hasher
}

// NewSnarkedState starts a sync toward [target]. When the local root
// already matches, the sync completes immediately and no network request is
// ever issued.
func NewSnarkedState(target, localRoot ids.ID, treeDepth, contentDepth int, hasher ledger.Hasher) *SnarkedState {
	phase := SnarkedNumAccountsPending
	if localRoot == target {
		phase = SnarkedSuccess
	}
	return &SnarkedState{
		Target:          target,
		Phase:           phase,
		TreeDepth:       treeDepth,
		ContentDepth:    contentDepth,
		RetryCooldownMS: 10_000,
		Known:           map[ledger.Address]ids.ID{ledger.Root(): target},
		NumAccounts:     newPendingQuery(ledger.Root()),
		HashQueries:     make(map[ledger.Address]*PendingQuery),
		AccountQueries:  make(map[ledger.Address]*PendingQuery),
		hasher:          hasher,
	}
}

// NextHashQuery pops the next address wanting child hashes that [peer] may
// serve. One in-flight request per peer.
func (s *SnarkedState) NextHashQuery(peer ids.NodeID, now store.Timestamp) (ledger.Address, bool) {
	if s.PeerBusy(peer) {
		return ledger.Address{}, false
	}
	for _, addr := range s.HashQueue {
		q, ok := s.HashQueries[addr]
		if !ok || q.pendingOn() {
			continue
		}
		if q.RetryableBy(peer, now, s.RetryCooldownMS) {
			return addr, true
		}
	}
	return ledger.Address{}, false
}

// NextAccountQuery pops the next content-depth address wanting accounts.
func (s *SnarkedState) NextAccountQuery(peer ids.NodeID, now store.Timestamp) (ledger.Address, bool) {
	if s.PeerBusy(peer) {
		return ledger.Address{}, false
	}
	for _, addr := range s.AccountQueue {
		q, ok := s.AccountQueries[addr]
		if !ok || q.pendingOn() {
			continue
		}
		if q.RetryableBy(peer, now, s.RetryCooldownMS) {
			return addr, true
		}
	}
	return ledger.Address{}, false
}

// PeerBusy reports whether [peer] has any in-flight snarked-ledger rpc.
func (s *SnarkedState) PeerBusy(peer ids.NodeID) bool {
	if a, ok := s.NumAccounts.Attempts[peer]; ok && a.Phase == AttemptPending {
		return true
	}
	for _, q := range s.HashQueries {
		if a, ok := q.Attempts[peer]; ok && a.Phase == AttemptPending {
			return true
		}
	}
	for _, q := range s.AccountQueries {
		if a, ok := q.Attempts[peer]; ok && a.Phase == AttemptPending {
			return true
		}
	}
	return false
}

// FindPendingByRpc locates the query whose in-flight attempt by [peer]
// carries [rpcID], for response correlation.
func (s *SnarkedState) FindPendingByRpc(peer ids.NodeID, rpcID channels.RpcID) (addr ledger.Address, isAccounts, ok bool) {
	for a, q := range s.HashQueries {
		if att, has := q.Attempts[peer]; has && att.Phase == AttemptPending && att.RpcID == rpcID {
			return a, false, true
		}
	}
	for a, q := range s.AccountQueries {
		if att, has := q.Attempts[peer]; has && att.Phase == AttemptPending && att.RpcID == rpcID {
			return a, true, true
		}
	}
	return ledger.Address{}, false, false
}

// NumAccountsPendingBy reports whether the count probe to [peer] carries
// [rpcID].
func (s *SnarkedState) NumAccountsPendingBy(peer ids.NodeID, rpcID channels.RpcID) bool {
	att, ok := s.NumAccounts.Attempts[peer]
	return ok && att.Phase == AttemptPending && att.RpcID == rpcID
}

// Done reports whether the whole tree below the root is validated.
func (s *SnarkedState) Done() bool {
	return s.Phase == SnarkedTreeSyncPending &&
		len(s.HashQueries) == 0 && len(s.AccountQueries) == 0
}

// enqueueChild routes a freshly validated node either deeper into the hash
// BFS or, at content depth, into the account queue.
func (s *SnarkedState) enqueueChild(addr ledger.Address) {
	if addr.Length() >= s.ContentDepth {
		s.AccountQueries[addr] = newPendingQuery(addr)
		s.AccountQueue = append(s.AccountQueue, addr)
		return
	}
	s.HashQueries[addr] = newPendingQuery(addr)
	s.HashQueue = append(s.HashQueue, addr)
}

// dropHashQuery removes a satisfied address from its queue.
func (s *SnarkedState) dropHashQuery(addr ledger.Address) {
	delete(s.HashQueries, addr)
	for i, a := range s.HashQueue {
		if a == addr {
			s.HashQueue = append(s.HashQueue[:i], s.HashQueue[i+1:]...)
			break
		}
	}
}

func (s *SnarkedState) dropAccountQuery(addr ledger.Address) {
	delete(s.AccountQueries, addr)
	for i, a := range s.AccountQueue {
		if a == addr {
			s.AccountQueue = append(s.AccountQueue[:i], s.AccountQueue[i+1:]...)
			break
		}
	}
}
