// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package libp2psvc is the libp2p half of the dual-stack P2P service: a
// libp2p host with noise+yamux defaults, one multiplexed stream per peer
// for the logical channels, gossipsub for topics, and a kademlia stream for
// discovery. It translates transport activity into store events; it holds
// no protocol state of its own.
package libp2psvc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/channels"
	mpubsub "github.com/openmina/openmina-go/p2p/pubsub"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

const (
	rpcProtocol protocol.ID = "/coda/rpc/1.0.0"
	kadProtocol protocol.ID = "/coda/kad/1.0.0"

	maxFrameSize = 32 << 20
)

// Codec bridges typed channel messages to wire bytes. The encoding itself
// is an external collaborator.
type Codec interface {
	Encode(msg p2p.Msg) ([]byte, error)
	Decode(ch channels.ID, b []byte) (p2p.Msg, error)
}

// NodeIDOf derives the sortable dispatcher peer id from a libp2p identity.
func NodeIDOf(pid peer.ID) ids.NodeID {
	sum := sha256.Sum256([]byte(pid))
	var out ids.NodeID
	copy(out[:], sum[:])
	return out
}

// Service implements p2p.Service over a libp2p host.
type Service struct {
	log   log.Logger
	host  host.Host
	ps    *pubsub.PubSub
	queue *store.EventQueue
	codec Codec

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	byNode  map[ids.NodeID]peer.ID
	streams map[ids.NodeID]network.Stream
	kads    map[ids.NodeID]network.Stream
	topics  map[string]*pubsub.Topic
}

// New brings the host up on [listenAddrs] and starts serving inbound
// streams and gossip.
func New(ctx context.Context, listenAddrs []string, topics []string, queue *store.EventQueue, codec Codec, logger log.Logger) (*Service, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddrs...))
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}
	gs, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		log:     logger,
		host:    h,
		ps:      gs,
		queue:   queue,
		codec:   codec,
		ctx:     ctx,
		cancel:  cancel,
		byNode:  make(map[ids.NodeID]peer.ID),
		streams: make(map[ids.NodeID]network.Stream),
		kads:    make(map[ids.NodeID]network.Stream),
		topics:  make(map[string]*pubsub.Topic),
	}

	h.SetStreamHandler(rpcProtocol, s.handleInboundStream)
	h.SetStreamHandler(kadProtocol, s.handleInboundKad)

	for _, name := range topics {
		topic, err := gs.Join(name)
		if err != nil {
			cancel()
			_ = h.Close()
			return nil, fmt.Errorf("join topic %s: %w", name, err)
		}
		s.topics[name] = topic
		sub, err := topic.Subscribe()
		if err != nil {
			cancel()
			_ = h.Close()
			return nil, fmt.Errorf("subscribe %s: %w", name, err)
		}
		go s.gossipLoop(name, sub)
	}
	return s, nil
}

// Close tears the host down.
func (s *Service) Close() error {
	s.cancel()
	return s.host.Close()
}

// Dial connects to a peer and opens the channel stream, retrying with
// exponential backoff for up to 30 s or until the context dies.
func (s *Service) Dial(node ids.NodeID, _ p2p.Transport, addrs []string) {
	go func() {
		var info *peer.AddrInfo
		for _, addr := range addrs {
			maddr, err := ma.NewMultiaddr(addr)
			if err != nil {
				continue
			}
			if ai, err := peer.AddrInfoFromP2pAddr(maddr); err == nil {
				info = ai
				break
			}
		}
		if info == nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: "no dialable address"})
			return
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Second
		bo.MaxElapsedTime = 30 * time.Second
		err := backoff.Retry(func() error {
			return s.host.Connect(s.ctx, *info)
		}, backoff.WithContext(bo, s.ctx))
		if err != nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}

		stream, err := s.host.NewStream(s.ctx, info.ID, rpcProtocol)
		if err != nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		s.register(node, info.ID, stream)
		s.queue.Push(p2p.ConnectionEstablishedEvent{
			Peer:      node,
			Transport: p2p.TransportLibp2p,
			Direction: p2p.DirectionOutgoing,
		})
		go s.readLoop(node, stream)
	}()
}

// RespondOffer is a WebRTC concern; the libp2p backend has no signaling.
func (s *Service) RespondOffer(ids.NodeID, []byte) {}

// OpenChannel acknowledges immediately: all channels ride the one muxed
// stream.
func (s *Service) OpenChannel(node ids.NodeID, ch channels.ID) {
	s.queue.Push(p2p.ChannelOpenedEvent{Peer: node, Channel: ch})
}

// Send frames and writes one message.
func (s *Service) Send(node ids.NodeID, msg p2p.Msg) {
	s.mu.Lock()
	stream := s.streams[node]
	s.mu.Unlock()
	if stream == nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: "not connected"})
		return
	}
	payload, err := s.codec.Encode(msg)
	if err != nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: err.Error()})
		return
	}
	if err := writeFrame(stream, msg.ChannelID(), payload); err != nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: err.Error()})
		return
	}
	s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID()})
}

// Publish gossips on a joined topic.
func (s *Service) Publish(topic string, data []byte) {
	s.mu.Lock()
	t := s.topics[topic]
	s.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.Publish(s.ctx, data); err != nil {
		s.log.Warn("gossip publish failed", "topic", topic, "error", err)
	}
}

// PublishBlock encodes a block announcement through the codec and gossips
// it.
func (s *Service) PublishBlock(topic string, block *types.Block) {
	data, err := s.codec.Encode(p2p.GossipBlockMsg{Block: block})
	if err != nil {
		s.log.Warn("block gossip encode failed", "error", err)
		return
	}
	s.Publish(topic, data)
}

// KadWrite flushes discovery bytes, opening the stream lazily.
func (s *Service) KadWrite(node ids.NodeID, b []byte) {
	stream := s.kadStream(node)
	if stream == nil {
		return
	}
	if _, err := stream.Write(b); err != nil {
		s.log.Debug("kad write failed", "peer", node, "error", err)
	}
}

// KadClose closes our half of the discovery stream.
func (s *Service) KadClose(node ids.NodeID) {
	s.mu.Lock()
	stream := s.kads[node]
	delete(s.kads, node)
	s.mu.Unlock()
	if stream != nil {
		_ = stream.CloseWrite()
	}
}

// Disconnect drops the peer connection entirely.
func (s *Service) Disconnect(node ids.NodeID) {
	s.mu.Lock()
	pid, ok := s.byNode[node]
	stream := s.streams[node]
	delete(s.byNode, node)
	delete(s.streams, node)
	delete(s.kads, node)
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Reset()
	}
	if ok {
		_ = s.host.Network().ClosePeer(pid)
	}
}

func (s *Service) register(node ids.NodeID, pid peer.ID, stream network.Stream) {
	s.mu.Lock()
	s.byNode[node] = pid
	s.streams[node] = stream
	s.mu.Unlock()
}

func (s *Service) handleInboundStream(stream network.Stream) {
	pid := stream.Conn().RemotePeer()
	node := NodeIDOf(pid)
	s.register(node, pid, stream)
	s.queue.Push(p2p.ConnectionEstablishedEvent{
		Peer:      node,
		Transport: p2p.TransportLibp2p,
		Direction: p2p.DirectionIncoming,
	})
	s.readLoop(node, stream)
}

func (s *Service) handleInboundKad(stream network.Stream) {
	node := NodeIDOf(stream.Conn().RemotePeer())
	s.mu.Lock()
	s.kads[node] = stream
	s.mu.Unlock()
	// the kad codec is external; inbound bytes are read and dropped, and
	// only the end of the stream surfaces, as a closed event
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			s.queue.Push(p2p.KadStreamEvent{Peer: node, Closed: true})
			return
		}
		_ = n
	}
}

func (s *Service) kadStream(node ids.NodeID) network.Stream {
	s.mu.Lock()
	stream := s.kads[node]
	pid, known := s.byNode[node]
	s.mu.Unlock()
	if stream != nil {
		return stream
	}
	if !known {
		return nil
	}
	stream, err := s.host.NewStream(s.ctx, pid, kadProtocol)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	s.kads[node] = stream
	s.mu.Unlock()
	return stream
}

func (s *Service) readLoop(node ids.NodeID, stream network.Stream) {
	for {
		ch, payload, err := readFrame(stream)
		if err != nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		msg, err := s.codec.Decode(ch, payload)
		if err != nil {
			s.log.Debug("dropping undecodable frame", "peer", node, "channel", ch.String(), "error", err)
			continue
		}
		s.queue.Push(p2p.ChannelMessageEvent{Peer: node, Msg: msg})
	}
}

func (s *Service) gossipLoop(topic string, sub *pubsub.Subscription) {
	self := s.host.ID()
	for {
		msg, err := sub.Next(s.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}
		var seqno uint64
		if raw := msg.Message.GetSeqno(); len(raw) >= 8 {
			seqno = binary.BigEndian.Uint64(raw[len(raw)-8:])
		}
		s.queue.Push(p2p.PubsubMessageEvent{Message: mpubsub.Message{
			ID: mpubsub.MessageID{
				Source: NodeIDOf(msg.GetFrom()),
				Seqno:  seqno,
			},
			Topic: topic,
			Data:  msg.Data,
			From:  NodeIDOf(msg.ReceivedFrom),
		}})
	}
}

// writeFrame emits (length u32 BE, channel u8, payload).
func writeFrame(w io.Writer, ch channels.ID, payload []byte) error {
	var head [5]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(payload)+1))
	head[4] = byte(ch)
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (channels.ID, []byte, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(head[:4])
	if size == 0 || size > maxFrameSize {
		return 0, nil, fmt.Errorf("bad frame size %d", size)
	}
	payload := make([]byte, size-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return channels.ID(head[4]), payload, nil
}
