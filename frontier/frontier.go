// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package frontier maintains the k+1-block suffix of the canonical chain
// and the sync state machine that bootstraps and tracks it.
package frontier

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/types"
)

// State is the transition-frontier sub-state: a rooted path of at most k+1
// consecutive blocks plus the sync machine.
type State struct {
	K     int
	Chain []*types.Block
	Sync  SyncState
}

// NewState starts an empty frontier; the sync machine is Idle.
func NewState(k int) *State {
	return &State{K: k}
}

// BestTip is the head of the frontier, nil while unsynced.
func (s *State) BestTip() *types.Block {
	if len(s.Chain) == 0 {
		return nil
	}
	return s.Chain[len(s.Chain)-1]
}

// Root is the oldest retained block.
func (s *State) Root() *types.Block {
	if len(s.Chain) == 0 {
		return nil
	}
	return s.Chain[0]
}

// Contains reports whether a hash is in the frontier.
func (s *State) Contains(hash ids.ID) bool {
	for _, b := range s.Chain {
		if b.Hash == hash {
			return true
		}
	}
	return false
}

// push appends a block and trims the chain to k+1 entries.
func (s *State) push(b *types.Block) {
	s.Chain = append(s.Chain, b)
	if len(s.Chain) > s.K+1 {
		s.Chain = s.Chain[len(s.Chain)-(s.K+1):]
	}
}

// consistent verifies the pred-hash linkage invariant.
func (s *State) consistent() bool {
	for i := 1; i < len(s.Chain); i++ {
		if s.Chain[i].PredHash != s.Chain[i-1].Hash {
			return false
		}
	}
	return true
}
