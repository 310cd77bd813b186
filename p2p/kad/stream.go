// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kad implements the Kademlia discovery stream state machine. Each
// stream alternates between reading typed requests/replies and writing the
// matching bytes; closing is negotiated, so a stream is pruned only after
// both halves are closed.
package kad

import (
	"errors"

	"github.com/luxfi/ids"
)

// StreamKind says which side opened the stream.
type StreamKind uint8

const (
	Incoming StreamKind = iota
	Outgoing
)

// Phase is the stream FSM state.
type Phase uint8

const (
	PhaseDefault Phase = iota
	PhaseWaitingIncoming
	PhaseIncomingRequest
	PhaseIncomingReply
	PhaseWaitingOutgoing
	PhaseOutgoingBytes
	PhaseClosing
	PhaseClosed
)

var (
	ErrUnexpectedData  = errors.New("kad stream not expecting data")
	ErrUnexpectedClose = errors.New("kad stream not expecting close")
	ErrStreamClosed    = errors.New("kad stream closed")
)

// Request is a typed FIND_NODE query for peers close to a key.
type Request struct {
	Key ids.NodeID
}

// PeerInfo is one entry of a FIND_NODE reply.
type PeerInfo struct {
	ID    ids.NodeID
	Addrs []string
}

// Reply carries the closer-peers answer.
type Reply struct {
	CloserPeers []PeerInfo
}

// Stream is one Kademlia protocol stream.
type Stream struct {
	Kind  StreamKind
	Phase Phase

	// pending data to hand to the transport when in OutgoingBytes
	OutBytes []byte
	// request/reply decoded while in the Incoming* phases
	Request *Request
	Reply   *Reply

	// expectClose marks the half-closed state: we have nothing more to
	// send and await the peer's close.
	expectClose bool
}

// NewStream opens a stream FSM.
func NewStream(kind StreamKind) *Stream {
	s := &Stream{Kind: kind}
	switch kind {
	case Incoming:
		s.Phase = PhaseWaitingIncoming
	case Outgoing:
		s.Phase = PhaseWaitingOutgoing
	}
	return s
}

// IncomingRequest feeds a decoded request read from the wire.
func (s *Stream) IncomingRequest(req Request) error {
	if s.Phase != PhaseWaitingIncoming || s.Kind != Incoming {
		return ErrUnexpectedData
	}
	s.Request = &req
	s.Phase = PhaseIncomingRequest
	return nil
}

// IncomingReply feeds a decoded reply read from the wire.
func (s *Stream) IncomingReply(rep Reply) error {
	if s.Phase != PhaseWaitingIncoming || s.Kind != Outgoing {
		return ErrUnexpectedData
	}
	s.Reply = &rep
	s.Phase = PhaseIncomingReply
	return nil
}

// WaitOutgoing moves from a decoded message to producing the next write.
func (s *Stream) WaitOutgoing() error {
	switch s.Phase {
	case PhaseIncomingRequest, PhaseIncomingReply:
		s.Request = nil
		s.Reply = nil
		s.Phase = PhaseWaitingOutgoing
		return nil
	default:
		return ErrUnexpectedData
	}
}

// OutgoingBytes queues encoded bytes for the transport. Empty bytes mean we
// have nothing more to send and begin the negotiated close.
func (s *Stream) OutgoingBytes(b []byte) error {
	if s.Phase != PhaseWaitingOutgoing {
		return ErrUnexpectedData
	}
	if len(b) == 0 {
		s.expectClose = true
		s.Phase = PhaseClosing
		return nil
	}
	s.OutBytes = b
	s.Phase = PhaseOutgoingBytes
	return nil
}

// FlushDone reports the transport finished writing OutBytes; the stream
// loops back to reading.
func (s *Stream) FlushDone() error {
	if s.Phase != PhaseOutgoingBytes {
		return ErrUnexpectedData
	}
	s.OutBytes = nil
	switch s.Kind {
	case Incoming:
		s.Phase = PhaseWaitingIncoming
	case Outgoing:
		// an outgoing stream that sent its request waits for the
		// reply; it closes only after sending empty bytes
		s.Phase = PhaseWaitingIncoming
	}
	return nil
}

// RemoteClose handles the peer closing its half. Legal only once we are in
// the negotiated-close window; only then is the stream pruned.
func (s *Stream) RemoteClose() error {
	switch s.Phase {
	case PhaseClosing:
		s.Phase = PhaseClosed
		return nil
	case PhaseWaitingIncoming:
		if !s.expectClose {
			return ErrUnexpectedClose
		}
		s.Phase = PhaseClosed
		return nil
	default:
		return ErrUnexpectedClose
	}
}

// Closed reports whether the stream may be pruned.
func (s *Stream) Closed() bool {
	return s.Phase == PhaseClosed
}
