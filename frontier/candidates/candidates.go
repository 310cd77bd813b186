// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package candidates tracks received blocks whose place in the frontier is
// undecided, through prevalidation and proof verification, ordered by the
// consensus fork rules.
package candidates

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/consensus"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// invalidCacheSize bounds the remembered invalid hashes; old entries fall
// out and would be re-verified on replay, which is safe.
const invalidCacheSize = 4096

// Status is the candidate lifecycle. Invalid is terminal.
type Status uint8

const (
	Received Status = iota
	Prevalidated
	SnarkVerifyPending
	SnarkVerifySuccess
	Invalid
)

// Candidate is one undecided block.
type Candidate struct {
	Block  *types.Block
	Status Status
	Time   store.Timestamp

	// VerifyID correlates the verifier service round-trip.
	VerifyID uint64

	// Decision is the fork-rule outcome against the tip it was compared
	// with, recorded by ForkResolve.
	Decision     consensus.Decision
	DecisionWhy  consensus.Reason
	ComparedWith ids.ID
}

// State is the registry sub-state.
type State struct {
	Blocks  map[ids.ID]*Candidate
	invalid *lru.Cache[ids.ID, struct{}]
}

// NewState builds an empty registry.
func NewState() (*State, error) {
	invalid, err := lru.New[ids.ID, struct{}](invalidCacheSize)
	if err != nil {
		return nil, err
	}
	return &State{
		Blocks:  make(map[ids.ID]*Candidate),
		invalid: invalid,
	}, nil
}

// Get looks a candidate up by state hash.
func (s *State) Get(hash ids.ID) (*Candidate, bool) {
	c, ok := s.Blocks[hash]
	return c, ok
}

// IsInvalid reports whether the hash failed verification before.
func (s *State) IsInvalid(hash ids.ID) bool {
	_, ok := s.invalid.Get(hash)
	return ok
}

// Add inserts a freshly received block. Duplicate or known-invalid hashes
// are rejected by the enabling condition upstream.
func (s *State) Add(block *types.Block, now store.Timestamp) {
	s.Blocks[block.Hash] = &Candidate{
		Block:  block,
		Status: Received,
		Time:   now,
	}
}

// MarkInvalid terminates a candidate and remembers its hash to suppress
// replay.
func (s *State) MarkInvalid(hash ids.ID) {
	if c, ok := s.Blocks[hash]; ok {
		c.Status = Invalid
	}
	s.invalid.Add(hash, struct{}{})
	delete(s.Blocks, hash)
}

// BestVerified returns the consensus-maximum fully verified candidate.
func (s *State) BestVerified() (*Candidate, bool) {
	var best *Candidate
	for _, c := range s.Blocks {
		if c.Status != SnarkVerifySuccess {
			continue
		}
		if best == nil || takes(&best.Block.Consensus, &c.Block.Consensus, best.Block.Hash, c.Block.Hash) {
			best = c
		}
	}
	return best, best != nil
}

// Prune drops every candidate strictly worse than [best] once it has been
// incorporated into the frontier.
func (s *State) Prune(best *types.Block) {
	for hash, c := range s.Blocks {
		if hash == best.Hash {
			delete(s.Blocks, hash)
			continue
		}
		if !takes(&best.Consensus, &c.Block.Consensus, best.Hash, c.Block.Hash) {
			delete(s.Blocks, hash)
		}
	}
}

// takes reports whether candidate beats tip under the fork rules.
func takes(tip, candidate *types.ConsensusState, tipHash, candidateHash ids.ID) bool {
	var d consensus.Decision
	if consensus.IsShortRangeFork(tip, candidate) {
		d, _ = consensus.ShortRangeForkTake(tip, candidate, tipHash, candidateHash)
	} else {
		d, _ = consensus.LongRangeForkTake(tip, candidate, tipHash, candidateHash)
	}
	return d.UseAsBestTip()
}
