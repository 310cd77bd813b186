// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package p2p implements the peer dispatcher: a unified peer abstraction
// over a WebRTC mesh and a libp2p mesh, exposing rpc, pubsub, kademlia and
// propagation channels to the upper layers. All transitions run inside the
// store; the Service interface is the only I/O boundary.
package p2p

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/p2p/kad"
	"github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/store"
)

// Transport selects which mesh a peer is reached through.
type Transport uint8

const (
	TransportWebRTC Transport = iota
	TransportLibp2p
)

func (t Transport) String() string {
	if t == TransportWebRTC {
		return "webrtc"
	}
	return "libp2p"
}

// Direction says who initiated the connection.
type Direction uint8

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// PeerStatus is the peer lifecycle state.
type PeerStatus uint8

const (
	PeerDisconnected PeerStatus = iota
	PeerConnecting
	PeerReady
)

func (s PeerStatus) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// Channels groups the per-peer channel FSMs. They are independent machines
// but all share the peer's Ready status as precondition.
type Channels struct {
	Rpc                channels.Rpc
	Pubsub             channels.Basic
	Snark              channels.Propagation
	Transaction        channels.Propagation
	SnarkJobCommitment channels.Propagation
	SignalingExchange  channels.SignalingExchange
}

// Propagation returns the propagation FSM behind [id], nil for non
// propagation channels.
func (c *Channels) Propagation(id channels.ID) *channels.Propagation {
	switch id {
	case channels.ChannelSnark:
		return &c.Snark
	case channels.ChannelTransaction:
		return &c.Transaction
	case channels.ChannelSnarkJobCommitment:
		return &c.SnarkJobCommitment
	default:
		return nil
	}
}

// Peer is one entry of the peer table.
type Peer struct {
	ID        ids.NodeID
	Transport Transport
	DialAddrs []string

	Status    PeerStatus
	Direction Direction
	Channels  Channels

	ConnectedAt store.Timestamp
	LastError   string
	// ReconnectAt gates redial; it grows with consecutive failures.
	ReconnectAt       store.Timestamp
	ReconnectAttempts uint32
}

// Limits are the dispatcher's backpressure knobs.
type Limits struct {
	MaxPeers int
	// ReconnectMinWaitMS is the first redial backoff step.
	ReconnectMinWaitMS uint64
	// RPCTimeoutMS bounds each outgoing rpc.
	RPCTimeoutMS uint64
}

// DefaultLimits mirror the indicative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPeers:           100,
		ReconnectMinWaitMS: 10_000,
		RPCTimeoutMS:       30_000,
	}
}

// State is the dispatcher sub-state.
type State struct {
	Limits Limits

	Peers  map[ids.NodeID]*Peer
	Banned set.Set[ids.NodeID]

	Kad    *kad.State
	Pubsub *pubsub.State
}

// NewState builds an empty dispatcher subscribed to [topics].
func NewState(limits Limits, topics []string) (*State, error) {
	ps, err := pubsub.NewState(topics)
	if err != nil {
		return nil, err
	}
	return &State{
		Limits: limits,
		Peers:  make(map[ids.NodeID]*Peer),
		Banned: set.NewSet[ids.NodeID](8),
		Kad:    kad.NewState(),
		Pubsub: ps,
	}, nil
}

// Peer looks up a peer by id.
func (s *State) Peer(id ids.NodeID) (*Peer, bool) {
	p, ok := s.Peers[id]
	return p, ok
}

// ReadyPeer returns the peer only when its status is Ready.
func (s *State) ReadyPeer(id ids.NodeID) (*Peer, bool) {
	p, ok := s.Peers[id]
	if !ok || p.Status != PeerReady {
		return nil, false
	}
	return p, true
}

// ReadyPeers lists ready peer ids in map order; callers needing determinism
// sort the result.
func (s *State) ReadyPeers() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(s.Peers))
	for id, p := range s.Peers {
		if p.Status == PeerReady {
			out = append(out, id)
		}
	}
	return out
}

// ReadyCount counts ready peers.
func (s *State) ReadyCount() int {
	n := 0
	for _, p := range s.Peers {
		if p.Status == PeerReady {
			n++
		}
	}
	return n
}

// reconnectBackoffMS doubles the base wait per consecutive failure, capped
// at ten minutes.
func reconnectBackoffMS(base uint64, attempts uint32) uint64 {
	const capMS = 10 * 60 * 1000
	wait := base
	for i := uint32(1); i < attempts; i++ {
		wait *= 2
		if wait >= capMS {
			return capMS
		}
	}
	if wait > capMS {
		return capMS
	}
	return wait
}
