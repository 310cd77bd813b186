// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/p2p/kad"
	"github.com/openmina/openmina-go/store"
)

// channelFSM is the lifecycle surface shared by every channel type.
type channelFSM interface {
	Enable()
	Init() error
	Pending() error
	Ready() error
}

func channelOf(p *Peer, id channels.ID) channelFSM {
	switch id {
	case channels.ChannelRpc:
		return &p.Channels.Rpc
	case channels.ChannelPubsub:
		return &p.Channels.Pubsub
	case channels.ChannelSnark:
		return &p.Channels.Snark
	case channels.ChannelTransaction:
		return &p.Channels.Transaction
	case channels.ChannelSignalingExchange:
		return &p.Channels.SignalingExchange
	case channels.ChannelSnarkJobCommitment:
		return &p.Channels.SnarkJobCommitment
	default:
		return nil
	}
}

// Reducer applies one enabled action to the dispatcher sub-state.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case ConnectionOutgoingInit:
		p, ok := s.Peers[act.Peer]
		if !ok {
			p = &Peer{ID: act.Peer}
			s.Peers[act.Peer] = p
		}
		p.Transport = act.Transport
		if len(act.Addrs) > 0 {
			p.DialAddrs = act.Addrs
		}
		p.Status = PeerConnecting
		p.Direction = DirectionOutgoing

	case ConnectionIncomingInit:
		p, ok := s.Peers[act.Peer]
		if !ok {
			p = &Peer{ID: act.Peer}
			s.Peers[act.Peer] = p
		}
		p.Transport = act.Transport
		p.Status = PeerConnecting
		p.Direction = DirectionIncoming

	case ConnectionFinalized:
		p := s.Peers[act.Peer]
		p.Status = PeerReady
		p.ConnectedAt = meta.Time
		p.LastError = ""
		p.ReconnectAttempts = 0
		p.Channels = Channels{}
		for _, id := range channels.All() {
			channelOf(p, id).Enable()
		}

	case ConnectionError:
		p := s.Peers[act.Peer]
		disconnectPeer(s, p, act.Error, meta.Time)

	case Disconnect:
		// state change arrives via Disconnected once the transport
		// confirms; nothing to do here

	case Disconnected:
		p := s.Peers[act.Peer]
		disconnectPeer(s, p, act.Error, meta.Time)

	case PeerBan:
		s.Banned.Add(act.Peer)
		if p, ok := s.Peers[act.Peer]; ok && p.Status != PeerDisconnected {
			disconnectPeer(s, p, act.Reason, meta.Time)
		}

	case ChannelOpen:
		p := s.Peers[act.Peer]
		_ = channelOf(p, act.Channel).Init()

	case ChannelPending:
		p := s.Peers[act.Peer]
		_ = channelOf(p, act.Channel).Pending()

	case ChannelReady:
		p := s.Peers[act.Peer]
		_ = channelOf(p, act.Channel).Ready()

	case RpcRequestSend:
		p := s.Peers[act.Peer]
		if _, err := p.Channels.Rpc.RequestSend(); err == nil {
			p.Channels.Rpc.Local.RequestedAt = uint64(meta.Time)
		}

	case RpcResponseReceived:
		p := s.Peers[act.Peer]
		_ = p.Channels.Rpc.ResponseReceived(act.ID)

	case RpcTimeout:
		p := s.Peers[act.Peer]
		// the pending request is abandoned; responses with this id will
		// now fail their enabling condition
		_ = p.Channels.Rpc.ResponseReceived(act.ID)
		p.LastError = "rpc timeout"

	case RpcRequestReceived:
		p := s.Peers[act.Peer]
		_ = p.Channels.Rpc.RequestReceived(act.ID)

	case RpcResponseSend:
		p := s.Peers[act.Peer]
		_ = p.Channels.Rpc.ResponseSend(act.ID)

	case PropagationRequestSend:
		p := s.Peers[act.Peer]
		_ = p.Channels.Propagation(act.Channel).RequestSend(act.Limit)

	case PropagationRequestReceived:
		p := s.Peers[act.Peer]
		_ = p.Channels.Propagation(act.Channel).RequestReceived(act.Limit)

	case PropagationReceived:
		p := s.Peers[act.Peer]
		_ = p.Channels.Propagation(act.Channel).Received()

	case PropagationResponseSend:
		p := s.Peers[act.Peer]
		_ = p.Channels.Propagation(act.Channel).ResponseSend(act.Count, act.LastIndex)

	case PubsubGraft:
		_ = s.Pubsub.Graft(act.Topic, act.Peer)

	case PubsubPrune:
		_ = s.Pubsub.Prune(act.Topic, act.Peer)

	case PubsubMessageReceived:
		_ = s.Pubsub.MessageReceived(act.Message)

	case PubsubValidated:
		_, _, _ = s.Pubsub.Validated(act.ID, act.Accepted)

	case KadStreamNew:
		s.Kad.Streams[act.Peer] = kad.NewStream(act.Kind)

	case KadRequestReceived:
		_ = s.Kad.Streams[act.Peer].IncomingRequest(act.Request)

	case KadReplyReceived:
		st := s.Kad.Streams[act.Peer]
		_ = st.IncomingReply(act.Reply)
		s.Kad.ReplyReceived(act.Reply)

	case KadOutgoingBytes:
		st := s.Kad.Streams[act.Peer]
		if st.Phase == kad.PhaseIncomingRequest || st.Phase == kad.PhaseIncomingReply {
			_ = st.WaitOutgoing()
		}
		_ = st.OutgoingBytes(act.Bytes)

	case KadFlushDone:
		_ = s.Kad.Streams[act.Peer].FlushDone()

	case KadRemoteClose:
		_ = s.Kad.Streams[act.Peer].RemoteClose()
		s.Kad.PruneClosed()
	}
}

func disconnectPeer(s *State, p *Peer, errMsg string, now store.Timestamp) {
	p.Status = PeerDisconnected
	p.LastError = errMsg
	p.ReconnectAttempts++
	p.Channels = Channels{}
	delete(s.Kad.Streams, p.ID)
	for _, mesh := range s.Pubsub.Mesh {
		mesh.Remove(p.ID)
	}
	wait := reconnectBackoffMS(s.Limits.ReconnectMinWaitMS, p.ReconnectAttempts)
	p.ReconnectAt = now.AddMillis(wait)
}
