// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package snarkpool

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/types"
)

// CandidateStatus is the per-peer snark candidate pipeline.
type CandidateStatus uint8

const (
	InfoReceived CandidateStatus = iota
	WorkFetchPending
	WorkReceived
	WorkVerifyPending
	WorkVerifySuccess
)

// Candidate is a snark a peer claims to have, tracked until verified.
type Candidate struct {
	Peer   ids.NodeID
	JobID  types.JobID
	Fee    uint64
	Prover string

	Status   CandidateStatus
	Snark    *types.Snark
	VerifyID uint64
}

// CandidateTable holds partially-known snarks per (peer, job).
type CandidateTable struct {
	// byJob maps job-id string to per-peer candidates.
	byJob map[string]map[ids.NodeID]*Candidate
}

// NewCandidateTable returns an empty table.
func NewCandidateTable() *CandidateTable {
	return &CandidateTable{byJob: make(map[string]map[ids.NodeID]*Candidate)}
}

// Get returns the candidate [peer] offered for [jobID].
func (t *CandidateTable) Get(jobID types.JobID, peer ids.NodeID) (*Candidate, bool) {
	peers, ok := t.byJob[jobID.String()]
	if !ok {
		return nil, false
	}
	c, ok := peers[peer]
	return c, ok
}

// Put registers or refreshes a peer's offer. One candidate per (job, peer).
func (t *CandidateTable) Put(c *Candidate) {
	key := c.JobID.String()
	peers, ok := t.byJob[key]
	if !ok {
		peers = make(map[ids.NodeID]*Candidate)
		t.byJob[key] = peers
	}
	peers[c.Peer] = c
}

// DropJob removes every candidate for a job (it got a pool snark).
func (t *CandidateTable) DropJob(jobID types.JobID) {
	delete(t.byJob, jobID.String())
}

// DropPeer removes every candidate offered by a disconnected or banned
// peer.
func (t *CandidateTable) DropPeer(peer ids.NodeID) {
	for key, peers := range t.byJob {
		delete(peers, peer)
		if len(peers) == 0 {
			delete(t.byJob, key)
		}
	}
}

// Len counts live candidates.
func (t *CandidateTable) Len() int {
	n := 0
	for _, peers := range t.byJob {
		n += len(peers)
	}
	return n
}
