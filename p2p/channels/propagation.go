// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import "errors"

// Propagation side states. The local side requests items from the peer; the
// remote side serves the peer's requests from our pool.
type PropagationPhase uint8

const (
	PhaseWaitingForRequest PropagationPhase = iota
	PhaseRequested
	PhaseResponded
)

var (
	ErrRequestOutstanding = errors.New("request already outstanding")
	ErrNoRequest          = errors.New("no outstanding request")
	ErrOverLimit          = errors.New("response exceeds requested limit")
)

// PropagationSide is one direction of a propagation channel.
type PropagationSide struct {
	Phase PropagationPhase
	// Limit is how many items the requester is willing to receive.
	Limit uint8
	// Received counts items delivered against Limit.
	Received uint8
}

// Propagation is the FSM shared by the snark, transaction and
// snark-job-commitment channels. SendIndex is the scan cursor into the local
// pool for this peer: rebroadcast resumes where the last response stopped.
type Propagation struct {
	lifecycle
	Local     PropagationSide
	Remote    PropagationSide
	SendIndex uint64
}

// RequestSend asks the peer for up to [limit] items.
func (p *Propagation) RequestSend(limit uint8) error {
	if !p.Status.IsReady() {
		return ErrNotReady
	}
	if p.Local.Phase == PhaseRequested {
		return ErrRequestOutstanding
	}
	p.Local = PropagationSide{Phase: PhaseRequested, Limit: limit}
	return nil
}

// Received accounts one item delivered by the peer. When the limit is
// reached the local side moves to responded and a new request may be sent.
func (p *Propagation) Received() error {
	if p.Local.Phase != PhaseRequested {
		return ErrNoRequest
	}
	p.Local.Received++
	if p.Local.Received >= p.Local.Limit {
		p.Local = PropagationSide{Phase: PhaseResponded, Received: p.Local.Received}
	}
	return nil
}

// RequestReceived records the peer asking us for up to [limit] items.
func (p *Propagation) RequestReceived(limit uint8) error {
	if !p.Status.IsReady() {
		return ErrNotReady
	}
	if p.Remote.Phase == PhaseRequested {
		return ErrRequestOutstanding
	}
	p.Remote = PropagationSide{Phase: PhaseRequested, Limit: limit}
	return nil
}

// ResponseSend accounts a batch of [count] items sent to the peer, ending at
// pool index [lastIndex]. The cursor advances past the batch so the next
// request resumes behind it.
func (p *Propagation) ResponseSend(count uint8, lastIndex uint64) error {
	if p.Remote.Phase != PhaseRequested {
		return ErrNoRequest
	}
	if count > p.Remote.Limit {
		return ErrOverLimit
	}
	p.Remote = PropagationSide{Phase: PhaseResponded, Received: count}
	if count > 0 {
		p.SendIndex = lastIndex + 1
	}
	return nil
}

// NextSendRange answers a remote request: scan the pool from SendIndex,
// emitting at most Remote.Limit items. poolLen bounds the scan; the caller
// filters which indices actually match.
func (p *Propagation) NextSendRange(poolLen uint64) (start uint64, limit uint8) {
	start = p.SendIndex
	if start > poolLen {
		start = poolLen
	}
	return start, p.Remote.Limit
}
