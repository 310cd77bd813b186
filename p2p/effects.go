// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"github.com/luxfi/log"

	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
)

// Effects fires service calls and follow-up actions for one reduced action.
type Effects struct {
	Service Service
	Log     log.Logger
}

// Apply runs the effect phase for [a].
func (e *Effects) Apply(d store.Dispatcher, s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case ConnectionOutgoingInit:
		e.Log.Debug("dialing peer", "peer", act.Peer, "transport", act.Transport.String())
		e.Service.Dial(act.Peer, act.Transport, act.Addrs)

	case ConnectionFinalized:
		// negotiate every channel as soon as the connection is up
		for _, id := range channels.All() {
			d.Dispatch(ChannelOpen{Peer: act.Peer, Channel: id})
		}

	case ConnectionError:
		e.Log.Info("peer connection failed", "peer", act.Peer, "error", act.Error)

	case Disconnect:
		e.Service.Disconnect(act.Peer)

	case PeerBan:
		e.Log.Warn("banning peer", "peer", act.Peer, "reason", act.Reason)
		e.Service.Disconnect(act.Peer)

	case ChannelOpen:
		e.Service.OpenChannel(act.Peer, act.Channel)

	case RpcRequestSend:
		p := s.Peers[act.Peer]
		if id, ok := p.Channels.Rpc.PendingRequestID(); ok {
			e.Service.Send(act.Peer, RpcRequestMsg{ID: id, Request: act.Request})
		}

	case RpcResponseSend:
		e.Service.Send(act.Peer, RpcResponseMsg{ID: act.ID, Response: act.Response})

	case PropagationRequestSend:
		e.Service.Send(act.Peer, PropagationRequestMsg{Channel: act.Channel, Limit: act.Limit})

	case PubsubValidated:
		judged := s.Pubsub.LastJudgement
		if judged == nil {
			return
		}
		if !act.Accepted {
			e.Log.Info("gossip message rejected", "source", judged.Msg.From)
			d.Dispatch(PeerBan{Peer: judged.Msg.From, Reason: "invalid gossip message"})
			return
		}
		if len(judged.Rebroadcast) > 0 {
			e.Service.Publish(judged.Msg.Topic, judged.Msg.Data)
		}

	case KadOutgoingBytes:
		if len(act.Bytes) == 0 {
			e.Service.KadClose(act.Peer)
			return
		}
		e.Service.KadWrite(act.Peer, act.Bytes)
		d.Dispatch(KadFlushDone{Peer: act.Peer})
	}
}
