// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package kad

import (
	"bytes"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// State is the discovery bookkeeping: a BFS over FIND_NODE replies.
type State struct {
	// Streams keyed by peer; at most one discovery stream per peer.
	Streams map[ids.NodeID]*Stream

	// Queue of peers to query next, in discovery order.
	Queue []PeerInfo
	// Queried guards against re-asking a peer in the same round.
	Queried set.Set[ids.NodeID]
	// Discovered accumulates every peer learned this round.
	Discovered map[ids.NodeID]PeerInfo
}

// NewState returns an empty discovery state.
func NewState() *State {
	return &State{
		Streams:    make(map[ids.NodeID]*Stream),
		Queried:    set.NewSet[ids.NodeID](16),
		Discovered: make(map[ids.NodeID]PeerInfo),
	}
}

// BootstrapRound seeds the BFS from the given peers.
func (s *State) BootstrapRound(seeds []PeerInfo) {
	s.Queue = append(s.Queue[:0], seeds...)
	s.Queried.Clear()
	clear(s.Discovered)
}

// NextToQuery pops the next unqueried peer.
func (s *State) NextToQuery() (PeerInfo, bool) {
	for len(s.Queue) > 0 {
		next := s.Queue[0]
		s.Queue = s.Queue[1:]
		if s.Queried.Contains(next.ID) {
			continue
		}
		s.Queried.Add(next.ID)
		return next, true
	}
	return PeerInfo{}, false
}

// ReplyReceived folds a FIND_NODE reply into the BFS frontier.
func (s *State) ReplyReceived(rep Reply) {
	for _, info := range rep.CloserPeers {
		if _, known := s.Discovered[info.ID]; known {
			continue
		}
		s.Discovered[info.ID] = info
		if !s.Queried.Contains(info.ID) {
			s.Queue = append(s.Queue, info)
		}
	}
}

// PruneClosed drops streams that completed their negotiated close.
func (s *State) PruneClosed() {
	for id, stream := range s.Streams {
		if stream.Closed() {
			delete(s.Streams, id)
		}
	}
}

// Closest orders discovered peers by XOR distance to [key], returning up to
// [n] entries.
func (s *State) Closest(key ids.NodeID, n int) []PeerInfo {
	out := make([]PeerInfo, 0, len(s.Discovered))
	for _, info := range s.Discovered {
		out = append(out, info)
	}
	// selection sort is enough at discovery sizes
	for i := 0; i < len(out) && i < n; i++ {
		best := i
		for j := i + 1; j < len(out); j++ {
			if xorLess(key, out[j].ID, out[best].ID) {
				best = j
			}
		}
		out[i], out[best] = out[best], out[i]
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func xorLess(key, a, b ids.NodeID) bool {
	var da, db [len(key)]byte
	for i := range key {
		da[i] = key[i] ^ a[i]
		db[i] = key[i] ^ b[i]
	}
	return bytes.Compare(da[:], db[:]) < 0
}
