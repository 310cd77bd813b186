// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package snarkpool

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Action is the pool action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// JobsUpdate replaces the job set from the freshly applied block's scan
// state; jobs that disappeared are destroyed with their commitments.
type JobsUpdate struct {
	Jobs []Job
}

func (JobsUpdate) ActionKind() store.Kind { return "SnarkPoolJobsUpdate" }

func (JobsUpdate) IsEnabled(*State, store.Timestamp) bool { return true }

// CommitmentAdd enters a bid into the auction. Enabled only if it outbids
// the current commitment and no snark exists yet.
type CommitmentAdd struct {
	Commitment Commitment
	// Local marks our own snarker's bid, driving worker dispatch.
	Local bool
}

func (CommitmentAdd) ActionKind() store.Kind { return "SnarkPoolCommitmentAdd" }

func (a CommitmentAdd) IsEnabled(s *State, _ store.Timestamp) bool {
	j, ok := s.Get(a.Commitment.JobID)
	if !ok || j.Snark != nil {
		return false
	}
	c := a.Commitment
	return c.Outbids(j.Commitment)
}

// CommitmentTimeout re-auctions a job whose commitment exceeded its
// estimated duration.
type CommitmentTimeout struct {
	JobID types.JobID
}

func (CommitmentTimeout) ActionKind() store.Kind { return "SnarkPoolCommitmentTimeout" }

func (a CommitmentTimeout) IsEnabled(s *State, now store.Timestamp) bool {
	j, ok := s.Get(a.JobID)
	if !ok || j.Commitment == nil {
		return false
	}
	return now.MillisSince(j.Commitment.Timestamp) >= j.Job.EstimatedDurationMS
}

// SnarkAdd ingests a completed proof. It must beat any existing snark for
// the job (lower fee wins); it replaces any outstanding commitment.
type SnarkAdd struct {
	Snark types.Snark
	// Local marks our own worker's result.
	Local bool
}

func (SnarkAdd) ActionKind() store.Kind { return "SnarkPoolSnarkAdd" }

func (a SnarkAdd) IsEnabled(s *State, _ store.Timestamp) bool {
	j, ok := s.Get(a.Snark.JobID)
	if !ok {
		return false
	}
	return j.Snark == nil || a.Snark.Fee < j.Snark.Fee
}

// CandidateInfoReceived registers a peer's claim to hold a snark.
type CandidateInfoReceived struct {
	Peer   ids.NodeID
	JobID  types.JobID
	Fee    uint64
	Prover string
}

func (CandidateInfoReceived) ActionKind() store.Kind { return "SnarkPoolCandidateInfoReceived" }

func (a CandidateInfoReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	j, ok := s.Get(a.JobID)
	if !ok {
		return false
	}
	// not interesting if we already hold a cheaper or equal snark
	if j.Snark != nil && j.Snark.Fee <= a.Fee {
		return false
	}
	// dedup: a refreshed offer must improve on the previous one
	if c, ok := s.Candidates.Get(a.JobID, a.Peer); ok {
		return a.Fee < c.Fee
	}
	return true
}

// CandidateWorkFetchInit asks the peer for the full proof.
type CandidateWorkFetchInit struct {
	Peer  ids.NodeID
	JobID types.JobID
}

func (CandidateWorkFetchInit) ActionKind() store.Kind { return "SnarkPoolCandidateWorkFetchInit" }

func (a CandidateWorkFetchInit) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Candidates.Get(a.JobID, a.Peer)
	return ok && c.Status == InfoReceived
}

// CandidateWorkReceived stores the fetched proof ahead of verification.
type CandidateWorkReceived struct {
	Peer  ids.NodeID
	Snark types.Snark
}

func (CandidateWorkReceived) ActionKind() store.Kind { return "SnarkPoolCandidateWorkReceived" }

func (a CandidateWorkReceived) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Candidates.Get(a.Snark.JobID, a.Peer)
	return ok && c.Status == WorkFetchPending
}

// CandidateVerifyPending records the batched verifier call.
type CandidateVerifyPending struct {
	Peer     ids.NodeID
	JobID    types.JobID
	VerifyID uint64
}

func (CandidateVerifyPending) ActionKind() store.Kind { return "SnarkPoolCandidateVerifyPending" }

func (a CandidateVerifyPending) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Candidates.Get(a.JobID, a.Peer)
	return ok && c.Status == WorkReceived
}

// CandidateVerifySuccess promotes the candidate into the pool.
type CandidateVerifySuccess struct {
	Peer     ids.NodeID
	JobID    types.JobID
	VerifyID uint64
}

func (CandidateVerifySuccess) ActionKind() store.Kind { return "SnarkPoolCandidateVerifySuccess" }

func (a CandidateVerifySuccess) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Candidates.Get(a.JobID, a.Peer)
	return ok && c.Status == WorkVerifyPending && c.VerifyID == a.VerifyID
}

// CandidateVerifyError drops the candidate; the peer misbehaved.
type CandidateVerifyError struct {
	Peer     ids.NodeID
	JobID    types.JobID
	VerifyID uint64
}

func (CandidateVerifyError) ActionKind() store.Kind { return "SnarkPoolCandidateVerifyError" }

func (a CandidateVerifyError) IsEnabled(s *State, _ store.Timestamp) bool {
	c, ok := s.Candidates.Get(a.JobID, a.Peer)
	return ok && c.Status == WorkVerifyPending && c.VerifyID == a.VerifyID
}

// PeerPruned clears candidates from a gone peer.
type PeerPruned struct {
	Peer ids.NodeID
}

func (PeerPruned) ActionKind() store.Kind { return "SnarkPoolPeerPruned" }

func (PeerPruned) IsEnabled(*State, store.Timestamp) bool { return true }

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case JobsUpdate:
		live := make(map[string]struct{}, len(act.Jobs))
		for _, job := range act.Jobs {
			live[job.ID.String()] = struct{}{}
			s.add(job)
		}
		s.retain(live)

	case CommitmentAdd:
		j, _ := s.Get(act.Commitment.JobID)
		s.LastReplaced = j.Commitment
		c := act.Commitment
		j.Commitment = &c

	case CommitmentTimeout:
		j, _ := s.Get(act.JobID)
		j.Commitment = nil

	case SnarkAdd:
		j, _ := s.Get(act.Snark.JobID)
		s.LastReplaced = j.Commitment
		snark := act.Snark
		j.Snark = &snark
		j.Commitment = nil
		s.Candidates.DropJob(act.Snark.JobID)

	case CandidateInfoReceived:
		s.Candidates.Put(&Candidate{
			Peer:   act.Peer,
			JobID:  act.JobID,
			Fee:    act.Fee,
			Prover: act.Prover,
			Status: InfoReceived,
		})

	case CandidateWorkFetchInit:
		c, _ := s.Candidates.Get(act.JobID, act.Peer)
		c.Status = WorkFetchPending

	case CandidateWorkReceived:
		c, _ := s.Candidates.Get(act.Snark.JobID, act.Peer)
		snark := act.Snark
		c.Snark = &snark
		c.Status = WorkReceived

	case CandidateVerifyPending:
		c, _ := s.Candidates.Get(act.JobID, act.Peer)
		c.Status = WorkVerifyPending
		c.VerifyID = act.VerifyID

	case CandidateVerifySuccess:
		c, _ := s.Candidates.Get(act.JobID, act.Peer)
		c.Status = WorkVerifySuccess

	case CandidateVerifyError:
		peers := s.Candidates.byJob[act.JobID.String()]
		delete(peers, act.Peer)
		if len(peers) == 0 {
			delete(s.Candidates.byJob, act.JobID.String())
		}

	case PeerPruned:
		s.Candidates.DropPeer(act.Peer)
	}
}
