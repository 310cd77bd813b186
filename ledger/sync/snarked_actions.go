// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgersync

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// SnarkedAction is the snarked-sync action set.
type SnarkedAction interface {
	store.Action
	IsEnabled(s *SnarkedState, now store.Timestamp) bool
}

// NumAccountsQueryInit sends the count probe to a peer.
type NumAccountsQueryInit struct {
	Peer  ids.NodeID
	RpcID channels.RpcID
}

func (NumAccountsQueryInit) ActionKind() store.Kind { return "LedgerSnarkedNumAccountsQueryInit" }

func (a NumAccountsQueryInit) IsEnabled(s *SnarkedState, now store.Timestamp) bool {
	return s.Phase == SnarkedNumAccountsPending &&
		!s.PeerBusy(a.Peer) &&
		s.NumAccounts.RetryableBy(a.Peer, now, s.RetryCooldownMS)
}

// NumAccountsReceived validates the claimed count against the root by the
// empty-hash padding rule.
type NumAccountsReceived struct {
	Peer         ids.NodeID
	Count        uint64
	ContentsHash ids.ID
}

func (NumAccountsReceived) ActionKind() store.Kind { return "LedgerSnarkedNumAccountsReceived" }

func (a NumAccountsReceived) IsEnabled(s *SnarkedState, _ store.Timestamp) bool {
	if s.Phase != SnarkedNumAccountsPending {
		return false
	}
	att, ok := s.NumAccounts.Attempts[a.Peer]
	return ok && att.Phase == AttemptPending
}

// HashesQueryInit asks [Peer] for the child hashes under [Addr].
type HashesQueryInit struct {
	Peer  ids.NodeID
	Addr  ledger.Address
	RpcID channels.RpcID
}

func (HashesQueryInit) ActionKind() store.Kind { return "LedgerSnarkedHashesQueryInit" }

func (a HashesQueryInit) IsEnabled(s *SnarkedState, now store.Timestamp) bool {
	if s.Phase != SnarkedTreeSyncPending || s.PeerBusy(a.Peer) {
		return false
	}
	q, ok := s.HashQueries[a.Addr]
	return ok && !q.pendingOn() && q.RetryableBy(a.Peer, now, s.RetryCooldownMS)
}

// ChildHashesReceived validates (left, right) against the known parent
// hash; a mismatch marks the attempt failed and flags the peer for a ban.
type ChildHashesReceived struct {
	Peer  ids.NodeID
	Addr  ledger.Address
	Left  ids.ID
	Right ids.ID
}

func (ChildHashesReceived) ActionKind() store.Kind { return "LedgerSnarkedChildHashesReceived" }

func (a ChildHashesReceived) IsEnabled(s *SnarkedState, _ store.Timestamp) bool {
	q, ok := s.HashQueries[a.Addr]
	if !ok {
		return false
	}
	att, ok := q.Attempts[a.Peer]
	return ok && att.Phase == AttemptPending
}

// AccountsQueryInit asks [Peer] for the accounts below a content-depth
// address.
type AccountsQueryInit struct {
	Peer  ids.NodeID
	Addr  ledger.Address
	RpcID channels.RpcID
}

func (AccountsQueryInit) ActionKind() store.Kind { return "LedgerSnarkedAccountsQueryInit" }

func (a AccountsQueryInit) IsEnabled(s *SnarkedState, now store.Timestamp) bool {
	if s.Phase != SnarkedTreeSyncPending || s.PeerBusy(a.Peer) {
		return false
	}
	q, ok := s.AccountQueries[a.Addr]
	return ok && !q.pendingOn() && q.RetryableBy(a.Peer, now, s.RetryCooldownMS)
}

// AccountsReceived validates the returned range against the known subtree
// hash.
type AccountsReceived struct {
	Peer     ids.NodeID
	Addr     ledger.Address
	Accounts []types.Account
}

func (AccountsReceived) ActionKind() store.Kind { return "LedgerSnarkedAccountsReceived" }

func (a AccountsReceived) IsEnabled(s *SnarkedState, _ store.Timestamp) bool {
	q, ok := s.AccountQueries[a.Addr]
	if !ok {
		return false
	}
	att, ok := q.Attempts[a.Peer]
	return ok && att.Phase == AttemptPending
}

// QueryError fails an in-flight attempt on a transport error.
type QueryError struct {
	Peer ids.NodeID
	Addr ledger.Address
	// IsAccounts distinguishes which queue the address sits in.
	IsAccounts bool
	Error      string
}

func (QueryError) ActionKind() store.Kind { return "LedgerSnarkedQueryError" }

func (a QueryError) IsEnabled(s *SnarkedState, _ store.Timestamp) bool {
	var q *PendingQuery
	var ok bool
	if a.IsAccounts {
		q, ok = s.AccountQueries[a.Addr]
	} else {
		q, ok = s.HashQueries[a.Addr]
	}
	if !ok {
		return false
	}
	att, ok := q.Attempts[a.Peer]
	return ok && att.Phase == AttemptPending
}

// SnarkedReducer applies one enabled action.
func SnarkedReducer(s *SnarkedState, a SnarkedAction, meta store.ActionMeta) {
	s.LastForged = nil
	switch act := a.(type) {
	case NumAccountsQueryInit:
		s.NumAccounts.Attempts[act.Peer] = &PeerAttempt{Phase: AttemptPending, RpcID: act.RpcID}

	case NumAccountsReceived:
		att := s.NumAccounts.Attempts[act.Peer]
		if s.hasher.NumAccountsRoot(act.Count, act.ContentsHash) != s.Target {
			att.Phase = AttemptError
			att.ErrorAt = meta.Time
			peer := act.Peer
			s.LastForged = &peer
			return
		}
		att.Phase = AttemptSuccess
		s.TotalAccounts = act.Count
		s.Phase = SnarkedTreeSyncPending
		// an empty tree (or single claimed subtree) still descends from
		// the root
		if s.TreeDepth == 0 {
			return
		}
		s.enqueueRoot()

	case HashesQueryInit:
		s.HashQueries[act.Addr].Attempts[act.Peer] = &PeerAttempt{Phase: AttemptPending, RpcID: act.RpcID}

	case ChildHashesReceived:
		q := s.HashQueries[act.Addr]
		att := q.Attempts[act.Peer]
		parent := s.Known[act.Addr]
		if s.hasher.MerkleNode(act.Addr.Length(), act.Left, act.Right) != parent {
			att.Phase = AttemptError
			att.ErrorAt = meta.Time
			peer := act.Peer
			s.LastForged = &peer
			return
		}
		att.Phase = AttemptSuccess
		left, right := act.Addr.ChildLeft(), act.Addr.ChildRight()
		s.Known[left] = act.Left
		s.Known[right] = act.Right
		s.dropHashQuery(act.Addr)
		s.enqueueChild(left)
		s.enqueueChild(right)
		if s.Done() {
			s.Phase = SnarkedSuccess
		}

	case AccountsQueryInit:
		s.AccountQueries[act.Addr].Attempts[act.Peer] = &PeerAttempt{Phase: AttemptPending, RpcID: act.RpcID}

	case AccountsReceived:
		q := s.AccountQueries[act.Addr]
		att := q.Attempts[act.Peer]
		want := s.Known[act.Addr]
		if s.hasher.SubtreeRoot(act.Addr, s.TreeDepth, act.Accounts) != want {
			att.Phase = AttemptError
			att.ErrorAt = meta.Time
			peer := act.Peer
			s.LastForged = &peer
			return
		}
		att.Phase = AttemptSuccess
		s.dropAccountQuery(act.Addr)
		if s.Done() {
			s.Phase = SnarkedSuccess
		}

	case QueryError:
		var q *PendingQuery
		if act.IsAccounts {
			q = s.AccountQueries[act.Addr]
		} else {
			q = s.HashQueries[act.Addr]
		}
		att := q.Attempts[act.Peer]
		att.Phase = AttemptError
		att.ErrorAt = meta.Time
	}
}

// enqueueRoot seeds the BFS with the root's children query (or the account
// range when the whole tree sits below content depth).
func (s *SnarkedState) enqueueRoot() {
	root := ledger.Root()
	if s.ContentDepth == 0 {
		s.AccountQueries[root] = newPendingQuery(root)
		s.AccountQueue = append(s.AccountQueue, root)
		return
	}
	s.HashQueries[root] = newPendingQuery(root)
	s.HashQueue = append(s.HashQueue, root)
}
