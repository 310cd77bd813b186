// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/p2p/kad"
	"github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Msg is a decoded channel payload moving in either direction.
type Msg interface {
	ChannelID() channels.ID
}

// RpcRequestMsg carries an rpc query with its correlation id.
type RpcRequestMsg struct {
	ID      channels.RpcID
	Request RpcRequest
}

func (RpcRequestMsg) ChannelID() channels.ID { return channels.ChannelRpc }

// RpcResponseMsg answers an RpcRequestMsg.
type RpcResponseMsg struct {
	ID       channels.RpcID
	Response RpcResponse
}

func (RpcResponseMsg) ChannelID() channels.ID { return channels.ChannelRpc }

// PropagationRequestMsg announces how many items the sender will accept.
type PropagationRequestMsg struct {
	Channel channels.ID
	Limit   uint8
}

func (m PropagationRequestMsg) ChannelID() channels.ID { return m.Channel }

// PropagationItemMsg carries one pool item; the payload is routed to the
// owning pool by the node layer.
type PropagationItemMsg struct {
	Channel channels.ID
	Payload any
}

func (m PropagationItemMsg) ChannelID() channels.ID { return m.Channel }

// GossipBlockMsg carries a block announced on a gossip topic. Best-tip
// propagation rides the pubsub channel.
type GossipBlockMsg struct {
	Block *types.Block
}

func (GossipBlockMsg) ChannelID() channels.ID { return channels.ChannelPubsub }

// SignalingMsg relays a WebRTC offer or answer through this peer.
type SignalingMsg struct {
	Target ids.NodeID
	Offer  []byte
	Answer []byte
}

func (SignalingMsg) ChannelID() channels.ID { return channels.ChannelSignalingExchange }

// Service is the dispatcher's outbound I/O boundary. Calls return
// immediately; results come back as events on the queue.
type Service interface {
	// Dial opens an outbound connection over the peer's transport.
	Dial(peer ids.NodeID, transport Transport, addrs []string)
	// RespondOffer answers an incoming WebRTC offer.
	RespondOffer(peer ids.NodeID, answer []byte)
	// OpenChannel negotiates one logical channel on a ready connection.
	OpenChannel(peer ids.NodeID, ch channels.ID)
	// Send writes a message on an open channel.
	Send(peer ids.NodeID, msg Msg)
	// Publish gossips data on a topic.
	Publish(topic string, data []byte)
	// PublishBlock encodes and gossips a block announcement on a topic.
	PublishBlock(topic string, block *types.Block)
	// KadWrite flushes kademlia bytes; KadClose closes our half.
	KadWrite(peer ids.NodeID, b []byte)
	KadClose(peer ids.NodeID)
	// Disconnect tears the connection down.
	Disconnect(peer ids.NodeID)
}

// Events emitted by Service implementations.

// ConnectionEstablishedEvent reports an authenticated multiplexed channel.
type ConnectionEstablishedEvent struct {
	Peer      ids.NodeID
	Transport Transport
	Direction Direction
}

func (ConnectionEstablishedEvent) EventKind() store.Kind { return "P2pConnectionEstablished" }

// ConnectionClosedEvent reports transport teardown, with the error if any.
type ConnectionClosedEvent struct {
	Peer  ids.NodeID
	Error string
}

func (ConnectionClosedEvent) EventKind() store.Kind { return "P2pConnectionClosed" }

// IncomingOfferEvent surfaces a WebRTC offer awaiting an answer.
type IncomingOfferEvent struct {
	Peer  ids.NodeID
	Offer []byte
}

func (IncomingOfferEvent) EventKind() store.Kind { return "P2pIncomingOffer" }

// ChannelOpenedEvent completes OpenChannel.
type ChannelOpenedEvent struct {
	Peer    ids.NodeID
	Channel channels.ID
}

func (ChannelOpenedEvent) EventKind() store.Kind { return "P2pChannelOpened" }

// ChannelMessageEvent delivers a decoded inbound message.
type ChannelMessageEvent struct {
	Peer ids.NodeID
	Msg  Msg
}

func (ChannelMessageEvent) EventKind() store.Kind { return "P2pChannelMessage" }

// ChannelSendResultEvent reports the fate of a Send.
type ChannelSendResultEvent struct {
	Peer    ids.NodeID
	Channel channels.ID
	Error   string
}

func (ChannelSendResultEvent) EventKind() store.Kind { return "P2pChannelSendResult" }

// PubsubMessageEvent delivers one gossip message.
type PubsubMessageEvent struct {
	Message pubsub.Message
}

func (PubsubMessageEvent) EventKind() store.Kind { return "P2pPubsubMessage" }

// KadStreamEvent reports a new kademlia stream or inbound data on one.
type KadStreamEvent struct {
	Peer    ids.NodeID
	Kind    kad.StreamKind
	Request *kad.Request
	Reply   *kad.Reply
	Closed  bool
}

func (KadStreamEvent) EventKind() store.Kind { return "P2pKadStream" }
