// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package snarkpool

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

func jobID(n byte) types.JobID {
	var a, b, c, d ids.ID
	a[0], b[0], c[0], d[0] = n, n, n, n+1
	return types.JobID{
		Source: types.LedgerHashes{FirstPassLedger: a, SecondPassLedger: b},
		Target: types.LedgerHashes{FirstPassLedger: c, SecondPassLedger: d},
	}
}

type harness struct {
	st     *store.Store[*State]
	clock  *store.ManualClock
	w      *worker.State
	worker []store.Kind
}

func newHarness(t *testing.T, localSnarker string) *harness {
	t.Helper()
	h := &harness{clock: store.NewManualClock(0), w: worker.NewState()}
	effects := &Effects{Log: log.NewNoOpLogger(), LocalSnarker: localSnarker}

	enabled := func(s *State, a store.Action, now store.Timestamp) bool {
		if pa, ok := a.(Action); ok {
			return pa.IsEnabled(s, now)
		}
		return true
	}
	reducer := func(s *State, a store.WithMeta) {
		if pa, ok := a.Action.(Action); ok {
			Reducer(s, pa, a.Meta)
		}
	}
	eff := func(d store.Dispatcher, s *State, a store.WithMeta) {
		if wa, ok := a.Action.(worker.Action); ok {
			// worker follow-ups are recorded, not reduced here
			h.worker = append(h.worker, wa.ActionKind())
			return
		}
		effects.Apply(d, s, h.w, a.Action.(Action), a.Meta)
	}
	h.st = store.New(NewState(), h.clock, enabled, reducer, eff, nil)
	return h
}

func TestJobsUpdateCreatesAndDestroys(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "")
	j1, j2, j3 := jobID(1), jobID(2), jobID(3)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: j1}, {ID: j2}}}))
	require.Equal(2, h.st.State().Len())

	// j1 drops out of the scan state, j3 appears
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: j2}, {ID: j3}}}))
	require.Equal(2, h.st.State().Len())
	_, ok := h.st.State().Get(j1)
	require.False(ok)
	_, ok = h.st.State().Get(j3)
	require.True(ok)
}

func TestCommitmentAuctionLowerFeeWins(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "")
	id := jobID(1)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id}}}))

	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 100, Snarker: "alice"},
	}))
	// higher fee does not outbid
	require.False(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 150, Snarker: "bob"},
	}))
	// lower fee does
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 50, Snarker: "bob"},
	}))
	j, _ := h.st.State().Get(id)
	require.Equal(uint64(50), j.Commitment.Fee)
}

func TestCommitmentOutbidCancelsLocalWork(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "me")
	id := jobID(1)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id, EstimatedDurationMS: 30_000}}}))

	// our own bid dispatches the worker
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 100, Snarker: "me"},
		Local:      true,
	}))
	require.Equal([]store.Kind{"ExternalSnarkWorkerSubmitWork"}, h.worker)

	// worker is now proving this job
	h.w.Phase = worker.PhaseWorking
	h.w.JobID = id

	// a cheaper network bid for the same job cancels it
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 50, Snarker: "rival"},
	}))
	require.Equal([]store.Kind{
		"ExternalSnarkWorkerSubmitWork",
		"ExternalSnarkWorkerCancelWork",
	}, h.worker)
}

func TestCommitmentTimeoutReauctions(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "")
	id := jobID(1)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id, EstimatedDurationMS: 30_000}}}))
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 10, Snarker: "alice", Timestamp: 0},
	}))

	require.False(h.st.Dispatch(CommitmentTimeout{JobID: id}))
	h.clock.Advance(31 * time.Second)
	require.True(h.st.Dispatch(CommitmentTimeout{JobID: id}))

	j, _ := h.st.State().Get(id)
	require.Nil(j.Commitment)
	// job is auctionable again
	next, ok := h.st.State().NextToCommit(StrategySequential, 0)
	require.True(ok)
	require.Equal(id, next.Job.ID)
}

func TestSnarkAddReplacesCommitmentAndCancelsWorker(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "me")
	id := jobID(1)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id}}}))
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 100, Snarker: "me"},
		Local:      true,
	}))
	h.w.Phase = worker.PhaseWorking
	h.w.JobID = id

	require.True(h.st.Dispatch(SnarkAdd{Snark: types.Snark{JobID: id, Fee: 20, Prover: "rival"}}))
	j, _ := h.st.State().Get(id)
	require.Nil(j.Commitment)
	require.Equal(uint64(20), j.Snark.Fee)
	require.Contains(h.worker, store.Kind("ExternalSnarkWorkerCancelWork"))

	// a worse snark does not replace
	require.False(h.st.Dispatch(SnarkAdd{Snark: types.Snark{JobID: id, Fee: 30, Prover: "late"}}))
}

func TestCandidatePipelinePromotion(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "")
	id := jobID(1)
	peer := ids.GenerateTestNodeID()
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id}}}))

	require.True(h.st.Dispatch(CandidateInfoReceived{Peer: peer, JobID: id, Fee: 9, Prover: "p"}))
	// the effect fetched the work
	c, ok := h.st.State().Candidates.Get(id, peer)
	require.True(ok)
	require.Equal(WorkFetchPending, c.Status)

	require.True(h.st.Dispatch(CandidateWorkReceived{Peer: peer, Snark: types.Snark{JobID: id, Fee: 9}}))
	require.True(h.st.Dispatch(CandidateVerifyPending{Peer: peer, JobID: id, VerifyID: 7}))
	// mismatched verify id ignored
	require.False(h.st.Dispatch(CandidateVerifySuccess{Peer: peer, JobID: id, VerifyID: 8}))
	require.True(h.st.Dispatch(CandidateVerifySuccess{Peer: peer, JobID: id, VerifyID: 7}))

	// verified candidate enters the pool
	require.True(h.st.Dispatch(SnarkAdd{Snark: *c.Snark}))
	require.Equal(0, h.st.State().Candidates.Len())
}

func TestNoUndercutInvariant(t *testing.T) {
	require := require.New(t)

	// a committed job accepts a snark cheaper than its commitment, and the
	// snark clears the commitment; SnarkAdd compares fees only against an
	// existing snark, not against the commitment
	h := newHarness(t, "")
	id := jobID(1)
	require.True(h.st.Dispatch(JobsUpdate{Jobs: []Job{{ID: id}}}))
	require.True(h.st.Dispatch(CommitmentAdd{
		Commitment: Commitment{JobID: id, Fee: 50, Snarker: "alice", Timestamp: 5},
	}))

	// snark cheaper than the commitment is fine
	require.True(h.st.Dispatch(SnarkAdd{Snark: types.Snark{JobID: id, Fee: 10, Prover: "bob"}}))
	j, _ := h.st.State().Get(id)
	require.Nil(j.Commitment)
	require.NotNil(j.Snark)
}

func TestItemsFromRespectsIndexAndLimit(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, "")
	jobs := []Job{{ID: jobID(1)}, {ID: jobID(2)}, {ID: jobID(3)}}
	require.True(h.st.Dispatch(JobsUpdate{Jobs: jobs}))
	for i, j := range jobs {
		require.True(h.st.Dispatch(SnarkAdd{
			Snark: types.Snark{JobID: j.ID, Fee: uint64(10 + i)},
		}))
	}

	snarks, last := h.st.State().ItemsFrom(0, 2)
	require.Len(snarks, 2)
	require.Equal(uint64(1), last)

	snarks, last = h.st.State().ItemsFrom(last+1, 8)
	require.Len(snarks, 1)
	require.Equal(uint64(2), last)
}
