// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import "errors"

// RpcID correlates a request with its response. Ids are peer-local and
// monotonic; responses carrying a stale id are ignored by enabling
// conditions upstream.
type RpcID uint64

// MaxConcurrentRemoteRpcs caps how many remote requests may be in flight at
// once; excess requests are refused.
const MaxConcurrentRemoteRpcs = 5

var (
	ErrRpcBusy          = errors.New("rpc request already outstanding")
	ErrRpcIdle          = errors.New("no rpc request outstanding")
	ErrRpcIDMismatch    = errors.New("rpc response id does not match")
	ErrRemoteRpcRefused = errors.New("too many concurrent remote rpcs")
	ErrUnknownRemoteRpc = errors.New("unknown remote rpc id")
)

// RpcLocal tracks our single outstanding request to the peer. RequestedAt
// is stamped by the reducer for the per-rpc timeout.
type RpcLocal struct {
	Phase       PropagationPhase
	RequestID   RpcID
	RequestedAt uint64
}

// Rpc is the request-response channel FSM. One outgoing request at a time;
// up to MaxConcurrentRemoteRpcs incoming ones.
type Rpc struct {
	lifecycle
	Local     RpcLocal
	Remote    []RpcID
	nextID    RpcID
	responded uint64
}

// NextRequestID returns the id the next outgoing request will get; it does
// not advance the counter.
func (r *Rpc) NextRequestID() RpcID {
	return r.nextID
}

// RequestSend registers an outgoing request under the next id.
func (r *Rpc) RequestSend() (RpcID, error) {
	if !r.Status.IsReady() {
		return 0, ErrNotReady
	}
	if r.Local.Phase == PhaseRequested {
		return 0, ErrRpcBusy
	}
	id := r.nextID
	r.nextID++
	r.Local = RpcLocal{Phase: PhaseRequested, RequestID: id}
	return id, nil
}

// ResponseReceived completes the outgoing request with [id]. Stale ids fail.
func (r *Rpc) ResponseReceived(id RpcID) error {
	if r.Local.Phase != PhaseRequested {
		return ErrRpcIdle
	}
	if r.Local.RequestID != id {
		return ErrRpcIDMismatch
	}
	r.Local = RpcLocal{Phase: PhaseResponded, RequestID: id}
	return nil
}

// PendingRequestID returns the id of the outstanding outgoing request.
func (r *Rpc) PendingRequestID() (RpcID, bool) {
	if r.Local.Phase != PhaseRequested {
		return 0, false
	}
	return r.Local.RequestID, true
}

// RequestReceived admits a remote request, refusing past the concurrency
// cap.
func (r *Rpc) RequestReceived(id RpcID) error {
	if !r.Status.IsReady() {
		return ErrNotReady
	}
	if len(r.Remote) >= MaxConcurrentRemoteRpcs {
		return ErrRemoteRpcRefused
	}
	r.Remote = append(r.Remote, id)
	return nil
}

// ResponseSend retires a remote request by id.
func (r *Rpc) ResponseSend(id RpcID) error {
	for i, pending := range r.Remote {
		if pending == id {
			r.Remote = append(r.Remote[:i], r.Remote[i+1:]...)
			r.responded++
			return nil
		}
	}
	return ErrUnknownRemoteRpc
}
