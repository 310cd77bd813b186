// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package webrtcsvc is the WebRTC half of the dual-stack P2P service:
// offer/answer exchanged through an HTTP signaling endpoint, then one data
// channel per logical channel on the established peer connection.
package webrtcsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/pion/webrtc/v4"

	"github.com/openmina/openmina-go/p2p"
	"github.com/openmina/openmina-go/p2p/channels"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Codec bridges typed channel messages to wire bytes, as in the libp2p
// backend.
type Codec interface {
	Encode(msg p2p.Msg) ([]byte, error)
	Decode(ch channels.ID, b []byte) (p2p.Msg, error)
}

// Service implements p2p.Service over pion data channels.
type Service struct {
	log          log.Logger
	queue        *store.EventQueue
	codec        Codec
	signalingURL string
	httpClient   *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[ids.NodeID]*peerConn
}

type peerConn struct {
	pc       *webrtc.PeerConnection
	channels map[channels.ID]*webrtc.DataChannel
}

// New builds the backend; connections are made lazily by Dial.
func New(ctx context.Context, signalingURL string, queue *store.EventQueue, codec Codec, logger log.Logger) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		log:          logger,
		queue:        queue,
		codec:        codec,
		signalingURL: signalingURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		ctx:          ctx,
		cancel:       cancel,
		conns:        make(map[ids.NodeID]*peerConn),
	}
}

// Close drops every peer connection.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.pc.Close()
	}
}

// Dial creates an offer, exchanges it through the peer's signaling URL and
// finalizes the connection.
func (s *Service) Dial(node ids.NodeID, _ p2p.Transport, addrs []string) {
	go func() {
		if len(addrs) == 0 {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: "no signaling address"})
			return
		}
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}

		offer, err := pc.CreateOffer(nil)
		if err == nil {
			err = pc.SetLocalDescription(offer)
		}
		if err != nil {
			_ = pc.Close()
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}

		answerSDP, err := s.exchangeOffer(addrs[0], offer.SDP)
		if err != nil {
			_ = pc.Close()
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
		if err := pc.SetRemoteDescription(answer); err != nil {
			_ = pc.Close()
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}

		s.track(node, pc, p2p.DirectionOutgoing)
	}()
}

// RespondOffer answers an inbound offer relayed by the node.
func (s *Service) RespondOffer(node ids.NodeID, offerSDP []byte) {
	go func() {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerSDP)}
		if err := pc.SetRemoteDescription(offer); err != nil {
			_ = pc.Close()
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		answer, err := pc.CreateAnswer(nil)
		if err == nil {
			err = pc.SetLocalDescription(answer)
		}
		if err != nil {
			_ = pc.Close()
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: err.Error()})
			return
		}
		s.track(node, pc, p2p.DirectionIncoming)
	}()
}

// OpenChannel creates the labeled data channel.
func (s *Service) OpenChannel(node ids.NodeID, ch channels.ID) {
	s.mu.Lock()
	conn := s.conns[node]
	s.mu.Unlock()
	if conn == nil {
		return
	}
	dc, err := conn.pc.CreateDataChannel(ch.String(), nil)
	if err != nil {
		s.log.Debug("data channel open failed", "peer", node, "channel", ch.String(), "error", err)
		return
	}
	s.attach(node, conn, ch, dc)
	dc.OnOpen(func() {
		s.queue.Push(p2p.ChannelOpenedEvent{Peer: node, Channel: ch})
	})
}

// Send writes one message on the channel's data channel.
func (s *Service) Send(node ids.NodeID, msg p2p.Msg) {
	s.mu.Lock()
	conn := s.conns[node]
	s.mu.Unlock()
	if conn == nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: "not connected"})
		return
	}
	dc := conn.channels[msg.ChannelID()]
	if dc == nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: "channel not open"})
		return
	}
	payload, err := s.codec.Encode(msg)
	if err != nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: err.Error()})
		return
	}
	if err := dc.Send(payload); err != nil {
		s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID(), Error: err.Error()})
		return
	}
	s.queue.Push(p2p.ChannelSendResultEvent{Peer: node, Channel: msg.ChannelID()})
}

// Publish and PublishBlock do nothing here: gossip goes out through the
// libp2p mesh only, and none is relayed to WebRTC peers.
func (s *Service) Publish(string, []byte)            {}
func (s *Service) PublishBlock(string, *types.Block) {}

// KadWrite and KadClose: discovery rides the libp2p mesh.
func (s *Service) KadWrite(ids.NodeID, []byte) {}
func (s *Service) KadClose(ids.NodeID)         {}

// Disconnect closes the peer connection.
func (s *Service) Disconnect(node ids.NodeID) {
	s.mu.Lock()
	conn := s.conns[node]
	delete(s.conns, node)
	s.mu.Unlock()
	if conn != nil {
		_ = conn.pc.Close()
	}
}

func (s *Service) track(node ids.NodeID, pc *webrtc.PeerConnection, dir p2p.Direction) {
	conn := &peerConn{pc: pc, channels: make(map[channels.ID]*webrtc.DataChannel)}
	s.mu.Lock()
	s.conns[node] = conn
	s.mu.Unlock()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.queue.Push(p2p.ConnectionEstablishedEvent{
				Peer:      node,
				Transport: p2p.TransportWebRTC,
				Direction: dir,
			})
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.queue.Push(p2p.ConnectionClosedEvent{Peer: node, Error: state.String()})
		}
	})
	// channels the remote opens toward us
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		ch, ok := channelByLabel(dc.Label())
		if !ok {
			return
		}
		s.attach(node, conn, ch, dc)
		s.queue.Push(p2p.ChannelOpenedEvent{Peer: node, Channel: ch})
	})
}

func (s *Service) attach(node ids.NodeID, conn *peerConn, ch channels.ID, dc *webrtc.DataChannel) {
	s.mu.Lock()
	conn.channels[ch] = dc
	s.mu.Unlock()
	dc.OnMessage(func(raw webrtc.DataChannelMessage) {
		msg, err := s.codec.Decode(ch, raw.Data)
		if err != nil {
			s.log.Debug("dropping undecodable message", "peer", node, "channel", ch.String(), "error", err)
			return
		}
		s.queue.Push(p2p.ChannelMessageEvent{Peer: node, Msg: msg})
	})
}

func (s *Service) exchangeOffer(url, offerSDP string) (string, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, url, bytes.NewBufferString(offerSDP))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/sdp")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signaling answered %s", resp.Status)
	}
	answer, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(answer), nil
}

func channelByLabel(label string) (channels.ID, bool) {
	for _, ch := range channels.All() {
		if ch.String() == label {
			return ch, true
		}
	}
	return 0, false
}
