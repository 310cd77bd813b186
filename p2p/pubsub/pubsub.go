// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pubsub tracks gossip mesh membership and message dedup. Inbound
// messages pass a (source, seqno) cache; only after external validation are
// they rebroadcast, and rejected messages penalize their source.
package pubsub

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

const dedupCacheSize = 16384

var (
	ErrUnknownTopic = errors.New("not subscribed to topic")
	ErrDuplicate    = errors.New("duplicate message")
	ErrNotSeen      = errors.New("message was never received")
)

// MessageID keys the dedup cache.
type MessageID struct {
	Source ids.NodeID
	Seqno  uint64
}

// Verdict is the external validation outcome.
type Verdict uint8

const (
	PendingValidation Verdict = iota
	Accepted
	Rejected
)

// Message is an inbound gossip message awaiting validation.
type Message struct {
	ID      MessageID
	Topic   string
	Data    []byte
	From    ids.NodeID // mesh neighbor that delivered it
	Verdict Verdict
}

// Judgement is the outcome of the most recent validation, kept for the
// effect phase to act on.
type Judgement struct {
	Msg         *Message
	Rebroadcast []ids.NodeID
}

// State is the gossip sub-state: one mesh per subscribed topic plus the
// shared dedup cache.
type State struct {
	Mesh    map[string]set.Set[ids.NodeID]
	seen    *lru.Cache[MessageID, struct{}]
	pending map[MessageID]*Message

	// LastJudgement is overwritten by each Validated call.
	LastJudgement *Judgement
}

// NewState subscribes to [topics].
func NewState(topics []string) (*State, error) {
	seen, err := lru.New[MessageID, struct{}](dedupCacheSize)
	if err != nil {
		return nil, err
	}
	mesh := make(map[string]set.Set[ids.NodeID], len(topics))
	for _, t := range topics {
		mesh[t] = set.NewSet[ids.NodeID](8)
	}
	return &State{
		Mesh:    mesh,
		seen:    seen,
		pending: make(map[MessageID]*Message),
	}, nil
}

// Graft adds a peer to the topic mesh.
func (s *State) Graft(topic string, peer ids.NodeID) error {
	mesh, ok := s.Mesh[topic]
	if !ok {
		return ErrUnknownTopic
	}
	mesh.Add(peer)
	return nil
}

// Prune removes a peer from the topic mesh.
func (s *State) Prune(topic string, peer ids.NodeID) error {
	mesh, ok := s.Mesh[topic]
	if !ok {
		return ErrUnknownTopic
	}
	mesh.Remove(peer)
	return nil
}

// MessageReceived admits a message once; duplicates are dropped without
// penalty.
func (s *State) MessageReceived(msg Message) error {
	if _, ok := s.Mesh[msg.Topic]; !ok {
		return ErrUnknownTopic
	}
	if _, dup := s.seen.Get(msg.ID); dup {
		return ErrDuplicate
	}
	s.seen.Add(msg.ID, struct{}{})
	msg.Verdict = PendingValidation
	s.pending[msg.ID] = &msg
	return nil
}

// Validated applies the external validator's verdict and returns the judged
// message. On acceptance it also returns the mesh peers to rebroadcast to,
// excluding the delivering peer; on rejection the caller penalizes
// msg.From.
func (s *State) Validated(id MessageID, accepted bool) (msg *Message, rebroadcast []ids.NodeID, err error) {
	msg, ok := s.pending[id]
	if !ok {
		return nil, nil, ErrNotSeen
	}
	delete(s.pending, id)
	if !accepted {
		msg.Verdict = Rejected
		s.LastJudgement = &Judgement{Msg: msg}
		return msg, nil, nil
	}
	msg.Verdict = Accepted
	for peer := range s.Mesh[msg.Topic] {
		if peer != msg.From {
			rebroadcast = append(rebroadcast, peer)
		}
	}
	s.LastJudgement = &Judgement{Msg: msg, Rebroadcast: rebroadcast}
	return msg, rebroadcast, nil
}

// PendingCount is exposed for backpressure checks.
func (s *State) PendingCount() int {
	return len(s.pending)
}

// IsPending reports whether a message awaits validation.
func (s *State) IsPending(id MessageID) bool {
	_, ok := s.pending[id]
	return ok
}
