// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package snarkpool tracks available snark jobs, the commitment auction
// over them, and completed proofs, plus partially-known snarks offered by
// peers.
package snarkpool

import (
	"bytes"
	"encoding/binary"

	"github.com/luxfi/ids"
	"lukechampine.com/blake3"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Job is one leaf or merge of the scan state whose proof is missing.
type Job struct {
	ID types.JobID
	// EstimatedDurationMS predicts proving time; it bounds both the
	// commitment lifetime and the local worker.
	EstimatedDurationMS uint64
}

// Commitment is an auction bid to produce a job's proof for a fee.
type Commitment struct {
	JobID     types.JobID
	Fee       uint64
	Snarker   string
	Timestamp store.Timestamp
}

// Hash breaks fee ties deterministically.
func (c *Commitment) Hash() ids.ID {
	var fee [8]byte
	binary.LittleEndian.PutUint64(fee[:], c.Fee)
	data := append([]byte(c.JobID.String()), fee[:]...)
	data = append(data, c.Snarker...)
	return ids.ID(blake3.Sum256(data))
}

// Outbids reports whether c wins over [cur]: lower fee wins, ties break by
// commitment hash.
func (c *Commitment) Outbids(cur *Commitment) bool {
	if cur == nil {
		return true
	}
	if c.Fee != cur.Fee {
		return c.Fee < cur.Fee
	}
	ch, curh := c.Hash(), cur.Hash()
	return bytes.Compare(ch[:], curh[:]) < 0
}

// JobState is one pool entry.
type JobState struct {
	Job        Job
	Commitment *Commitment
	Snark      *types.Snark
	// Order is the scan-state position used by the sequential strategy
	// and the propagation send index.
	Order uint64
}

// Strategy picks which auctionable job the local snarker commits to next.
type Strategy uint8

const (
	StrategySequential Strategy = iota
	StrategyRandom
)

// State is the pool sub-state.
type State struct {
	Jobs map[string]*JobState

	// order preserves scan-state insertion order for iteration and
	// send-index accounting.
	order     []string
	nextOrder uint64

	Candidates *CandidateTable

	// LastReplaced is the commitment displaced by the most recent
	// CommitmentAdd or SnarkAdd, for the effect phase to cancel local
	// work against.
	LastReplaced *Commitment
}

// NewState returns an empty pool.
func NewState() *State {
	return &State{
		Jobs:       make(map[string]*JobState),
		Candidates: NewCandidateTable(),
	}
}

// Get looks a job up by id.
func (s *State) Get(id types.JobID) (*JobState, bool) {
	j, ok := s.Jobs[id.String()]
	return j, ok
}

// Range calls fn over jobs in insertion order until it returns false.
func (s *State) Range(fn func(*JobState) bool) {
	for _, key := range s.order {
		if j, ok := s.Jobs[key]; ok {
			if !fn(j) {
				return
			}
		}
	}
}

// Len is the live job count.
func (s *State) Len() int {
	return len(s.Jobs)
}

// add inserts a job discovered in the scan state.
func (s *State) add(job Job) {
	key := job.ID.String()
	if _, ok := s.Jobs[key]; ok {
		return
	}
	s.Jobs[key] = &JobState{Job: job, Order: s.nextOrder}
	s.order = append(s.order, key)
	s.nextOrder++
}

// retain drops jobs no longer present in the scan state.
func (s *State) retain(live map[string]struct{}) {
	for key := range s.Jobs {
		if _, ok := live[key]; !ok {
			delete(s.Jobs, key)
		}
	}
	kept := s.order[:0]
	for _, key := range s.order {
		if _, ok := s.Jobs[key]; ok {
			kept = append(kept, key)
		}
	}
	s.order = kept
}

// NextToCommit picks the next auctionable job: no snark yet and no live
// commitment. The random strategy offsets deterministically by [seed].
func (s *State) NextToCommit(strategy Strategy, seed uint64) (*JobState, bool) {
	open := make([]*JobState, 0, len(s.order))
	for _, key := range s.order {
		j := s.Jobs[key]
		if j.Snark == nil && j.Commitment == nil {
			open = append(open, j)
		}
	}
	if len(open) == 0 {
		return nil, false
	}
	if strategy == StrategyRandom {
		return open[seed%uint64(len(open))], true
	}
	return open[0], true
}

// ItemsFrom scans pool entries with a snark starting at [index], returning
// up to [limit] of them for propagation, plus the index of the last one.
func (s *State) ItemsFrom(index uint64, limit uint8) (snarks []*types.Snark, last uint64) {
	last = index
	for _, key := range s.order {
		j := s.Jobs[key]
		if j.Order < index || j.Snark == nil {
			continue
		}
		if uint8(len(snarks)) >= limit {
			break
		}
		snarks = append(snarks, j.Snark)
		last = j.Order
	}
	return snarks, last
}
