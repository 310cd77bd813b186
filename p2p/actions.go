// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/p2p/kad"
	"github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/store"
)

// Action is the dispatcher's action set. IsEnabled runs against the p2p
// sub-state only; cross-subsystem conditions belong to the node layer.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// ConnectionOutgoingInit starts dialing a peer.
type ConnectionOutgoingInit struct {
	Peer      ids.NodeID
	Transport Transport
	Addrs     []string
}

func (ConnectionOutgoingInit) ActionKind() store.Kind { return "P2pConnectionOutgoingInit" }

func (a ConnectionOutgoingInit) IsEnabled(s *State, now store.Timestamp) bool {
	if s.Banned.Contains(a.Peer) {
		return false
	}
	p, ok := s.Peers[a.Peer]
	if !ok {
		return len(s.Peers) < s.Limits.MaxPeers
	}
	// redial only after the backoff window
	return p.Status == PeerDisconnected && now >= p.ReconnectAt
}

// ConnectionIncomingInit registers an inbound connection attempt (a WebRTC
// offer, or a libp2p accepted socket).
type ConnectionIncomingInit struct {
	Peer      ids.NodeID
	Transport Transport
	Offer     []byte
}

func (ConnectionIncomingInit) ActionKind() store.Kind { return "P2pConnectionIncomingInit" }

func (a ConnectionIncomingInit) IsEnabled(s *State, _ store.Timestamp) bool {
	if s.Banned.Contains(a.Peer) {
		return false
	}
	p, ok := s.Peers[a.Peer]
	if !ok {
		return len(s.Peers) < s.Limits.MaxPeers
	}
	return p.Status == PeerDisconnected
}

// ConnectionFinalized moves a connecting peer to Ready: the transport
// reported an established, authenticated, multiplexed channel.
type ConnectionFinalized struct {
	Peer ids.NodeID
}

func (ConnectionFinalized) ActionKind() store.Kind { return "P2pConnectionFinalized" }

func (a ConnectionFinalized) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.Peers[a.Peer]
	return ok && p.Status == PeerConnecting
}

// ConnectionError records a failed dial or handshake.
type ConnectionError struct {
	Peer  ids.NodeID
	Error string
}

func (ConnectionError) ActionKind() store.Kind { return "P2pConnectionError" }

func (a ConnectionError) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.Peers[a.Peer]
	return ok && p.Status == PeerConnecting
}

// Disconnect tears down a connection on our initiative.
type Disconnect struct {
	Peer   ids.NodeID
	Reason string
}

func (Disconnect) ActionKind() store.Kind { return "P2pDisconnect" }

func (a Disconnect) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.Peers[a.Peer]
	return ok && p.Status != PeerDisconnected
}

// Disconnected records transport teardown, ours or the peer's.
type Disconnected struct {
	Peer  ids.NodeID
	Error string
}

func (Disconnected) ActionKind() store.Kind { return "P2pDisconnected" }

func (a Disconnected) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.Peers[a.Peer]
	return ok && p.Status != PeerDisconnected
}

// PeerBan blacklists a peer for a protocol violation and disconnects it.
type PeerBan struct {
	Peer   ids.NodeID
	Reason string
}

func (PeerBan) ActionKind() store.Kind { return "P2pPeerBan" }

func (a PeerBan) IsEnabled(s *State, _ store.Timestamp) bool {
	return !s.Banned.Contains(a.Peer)
}

// ChannelOpen sends the open message for one channel.
type ChannelOpen struct {
	Peer    ids.NodeID
	Channel channels.ID
}

func (ChannelOpen) ActionKind() store.Kind { return "P2pChannelOpen" }

func (a ChannelOpen) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	return channelStatus(p, a.Channel) == channels.StatusEnabled
}

// ChannelPending records the transport accepting the open.
type ChannelPending struct {
	Peer    ids.NodeID
	Channel channels.ID
}

func (ChannelPending) ActionKind() store.Kind { return "P2pChannelPending" }

func (a ChannelPending) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	return channelStatus(p, a.Channel) == channels.StatusInit
}

// ChannelReady completes a channel handshake.
type ChannelReady struct {
	Peer    ids.NodeID
	Channel channels.ID
}

func (ChannelReady) ActionKind() store.Kind { return "P2pChannelReady" }

func (a ChannelReady) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	return channelStatus(p, a.Channel) == channels.StatusPending
}

// RpcRequestSend issues an outgoing rpc on a ready rpc channel.
type RpcRequestSend struct {
	Peer    ids.NodeID
	Request RpcRequest
}

func (RpcRequestSend) ActionKind() store.Kind { return "P2pRpcRequestSend" }

func (a RpcRequestSend) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok || !p.Channels.Rpc.Status.IsReady() {
		return false
	}
	_, busy := p.Channels.Rpc.PendingRequestID()
	return !busy
}

// RpcResponseReceived correlates an inbound response by id; stale ids fail
// the enabling condition and are dropped.
type RpcResponseReceived struct {
	Peer     ids.NodeID
	ID       channels.RpcID
	Response RpcResponse
}

func (RpcResponseReceived) ActionKind() store.Kind { return "P2pRpcResponseReceived" }

func (a RpcResponseReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	id, busy := p.Channels.Rpc.PendingRequestID()
	return busy && id == a.ID
}

// RpcTimeout cancels the outstanding request after the per-rpc cap.
type RpcTimeout struct {
	Peer ids.NodeID
	ID   channels.RpcID
}

func (RpcTimeout) ActionKind() store.Kind { return "P2pRpcTimeout" }

func (a RpcTimeout) IsEnabled(s *State, now store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	id, busy := p.Channels.Rpc.PendingRequestID()
	if !busy || id != a.ID {
		return false
	}
	return now.MillisSince(store.Timestamp(p.Channels.Rpc.Local.RequestedAt)) >= s.Limits.RPCTimeoutMS
}

// RpcRequestReceived admits a remote request under the concurrency cap.
type RpcRequestReceived struct {
	Peer    ids.NodeID
	ID      channels.RpcID
	Request RpcRequest
}

func (RpcRequestReceived) ActionKind() store.Kind { return "P2pRpcRequestReceived" }

func (a RpcRequestReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok || !p.Channels.Rpc.Status.IsReady() {
		return false
	}
	return len(p.Channels.Rpc.Remote) < channels.MaxConcurrentRemoteRpcs
}

// RpcResponseSend answers a remote request.
type RpcResponseSend struct {
	Peer     ids.NodeID
	ID       channels.RpcID
	Response RpcResponse
}

func (RpcResponseSend) ActionKind() store.Kind { return "P2pRpcResponseSend" }

func (a RpcResponseSend) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	for _, id := range p.Channels.Rpc.Remote {
		if id == a.ID {
			return true
		}
	}
	return false
}

// PropagationRequestSend asks a peer for up to Limit pool items.
type PropagationRequestSend struct {
	Peer    ids.NodeID
	Channel channels.ID
	Limit   uint8
}

func (PropagationRequestSend) ActionKind() store.Kind { return "P2pPropagationRequestSend" }

func (a PropagationRequestSend) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	prop := p.Channels.Propagation(a.Channel)
	return prop != nil && prop.Status.IsReady() && prop.Local.Phase != channels.PhaseRequested
}

// PropagationRequestReceived records the peer's announced receive limit.
type PropagationRequestReceived struct {
	Peer    ids.NodeID
	Channel channels.ID
	Limit   uint8
}

func (PropagationRequestReceived) ActionKind() store.Kind { return "P2pPropagationRequestReceived" }

func (a PropagationRequestReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	prop := p.Channels.Propagation(a.Channel)
	return prop != nil && prop.Status.IsReady() && prop.Remote.Phase != channels.PhaseRequested
}

// PropagationReceived accounts one inbound item against our request.
type PropagationReceived struct {
	Peer    ids.NodeID
	Channel channels.ID
	Payload any
}

func (PropagationReceived) ActionKind() store.Kind { return "P2pPropagationReceived" }

func (a PropagationReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	prop := p.Channels.Propagation(a.Channel)
	return prop != nil && prop.Local.Phase == channels.PhaseRequested
}

// PropagationResponseSend accounts a batch sent to the peer and advances the
// per-peer send index.
type PropagationResponseSend struct {
	Peer      ids.NodeID
	Channel   channels.ID
	Count     uint8
	LastIndex uint64
}

func (PropagationResponseSend) ActionKind() store.Kind { return "P2pPropagationResponseSend" }

func (a PropagationResponseSend) IsEnabled(s *State, _ store.Timestamp) bool {
	p, ok := s.ReadyPeer(a.Peer)
	if !ok {
		return false
	}
	prop := p.Channels.Propagation(a.Channel)
	return prop != nil && prop.Remote.Phase == channels.PhaseRequested && a.Count <= prop.Remote.Limit
}

// PubsubGraft adds a peer to a topic mesh.
type PubsubGraft struct {
	Topic string
	Peer  ids.NodeID
}

func (PubsubGraft) ActionKind() store.Kind { return "P2pPubsubGraft" }

func (a PubsubGraft) IsEnabled(s *State, _ store.Timestamp) bool {
	_, subscribed := s.Pubsub.Mesh[a.Topic]
	_, ready := s.ReadyPeer(a.Peer)
	return subscribed && ready
}

// PubsubPrune removes a peer from a topic mesh.
type PubsubPrune struct {
	Topic string
	Peer  ids.NodeID
}

func (PubsubPrune) ActionKind() store.Kind { return "P2pPubsubPrune" }

func (a PubsubPrune) IsEnabled(s *State, _ store.Timestamp) bool {
	mesh, subscribed := s.Pubsub.Mesh[a.Topic]
	return subscribed && mesh.Contains(a.Peer)
}

// PubsubMessageReceived admits a gossip message into the dedup cache.
type PubsubMessageReceived struct {
	Message pubsub.Message
}

func (PubsubMessageReceived) ActionKind() store.Kind { return "P2pPubsubMessageReceived" }

func (a PubsubMessageReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	_, subscribed := s.Pubsub.Mesh[a.Message.Topic]
	return subscribed
}

// PubsubValidated applies the external validator verdict; acceptance
// triggers rebroadcast, rejection penalizes the source.
type PubsubValidated struct {
	ID       pubsub.MessageID
	Accepted bool
}

func (PubsubValidated) ActionKind() store.Kind { return "P2pPubsubValidated" }

func (a PubsubValidated) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Pubsub.IsPending(a.ID)
}

// KadStreamNew opens a discovery stream FSM for a peer.
type KadStreamNew struct {
	Peer ids.NodeID
	Kind kad.StreamKind
}

func (KadStreamNew) ActionKind() store.Kind { return "P2pKadStreamNew" }

func (a KadStreamNew) IsEnabled(s *State, _ store.Timestamp) bool {
	_, exists := s.Kad.Streams[a.Peer]
	_, ready := s.ReadyPeer(a.Peer)
	return ready && !exists
}

// KadRequestReceived feeds a decoded FIND_NODE request.
type KadRequestReceived struct {
	Peer    ids.NodeID
	Request kad.Request
}

func (KadRequestReceived) ActionKind() store.Kind { return "P2pKadRequestReceived" }

func (a KadRequestReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	st, ok := s.Kad.Streams[a.Peer]
	return ok && st.Phase == kad.PhaseWaitingIncoming && st.Kind == kad.Incoming
}

// KadReplyReceived feeds a decoded FIND_NODE reply.
type KadReplyReceived struct {
	Peer  ids.NodeID
	Reply kad.Reply
}

func (KadReplyReceived) ActionKind() store.Kind { return "P2pKadReplyReceived" }

func (a KadReplyReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	st, ok := s.Kad.Streams[a.Peer]
	return ok && st.Phase == kad.PhaseWaitingIncoming && st.Kind == kad.Outgoing
}

// KadOutgoingBytes queues encoded bytes (empty = close our half).
type KadOutgoingBytes struct {
	Peer  ids.NodeID
	Bytes []byte
}

func (KadOutgoingBytes) ActionKind() store.Kind { return "P2pKadOutgoingBytes" }

func (a KadOutgoingBytes) IsEnabled(s *State, _ store.Timestamp) bool {
	st, ok := s.Kad.Streams[a.Peer]
	return ok && (st.Phase == kad.PhaseWaitingOutgoing ||
		st.Phase == kad.PhaseIncomingRequest || st.Phase == kad.PhaseIncomingReply)
}

// KadFlushDone reports the transport wrote the queued bytes.
type KadFlushDone struct {
	Peer ids.NodeID
}

func (KadFlushDone) ActionKind() store.Kind { return "P2pKadFlushDone" }

func (a KadFlushDone) IsEnabled(s *State, _ store.Timestamp) bool {
	st, ok := s.Kad.Streams[a.Peer]
	return ok && st.Phase == kad.PhaseOutgoingBytes
}

// KadRemoteClose handles the peer closing its half.
type KadRemoteClose struct {
	Peer ids.NodeID
}

func (KadRemoteClose) ActionKind() store.Kind { return "P2pKadRemoteClose" }

func (a KadRemoteClose) IsEnabled(s *State, _ store.Timestamp) bool {
	_, ok := s.Kad.Streams[a.Peer]
	return ok
}

func channelStatus(p *Peer, id channels.ID) channels.Status {
	switch id {
	case channels.ChannelRpc:
		return p.Channels.Rpc.Status
	case channels.ChannelPubsub:
		return p.Channels.Pubsub.Status
	case channels.ChannelSnark:
		return p.Channels.Snark.Status
	case channels.ChannelTransaction:
		return p.Channels.Transaction.Status
	case channels.ChannelSignalingExchange:
		return p.Channels.SignalingExchange.Status
	case channels.ChannelSnarkJobCommitment:
		return p.Channels.SnarkJobCommitment.Status
	default:
		return channels.StatusDisabled
	}
}
