// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package worker

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

type fakeProver struct {
	starts  int
	submits int
	cancels int
	kills   int
}

func (f *fakeProver) Start(string, string, uint64) { f.starts++ }
func (f *fakeProver) Submit(types.JobID, []byte)   { f.submits++ }
func (f *fakeProver) Cancel()                      { f.cancels++ }
func (f *fakeProver) Kill()                        { f.kills++ }

func testJob() types.JobID {
	var h ids.ID
	h[0] = 0xaa
	return types.JobID{
		Source: types.LedgerHashes{FirstPassLedger: h, SecondPassLedger: h},
		Target: types.LedgerHashes{FirstPassLedger: h, SecondPassLedger: h},
	}
}

func newWorkerStore(t *testing.T) (*store.Store[*State], *store.ManualClock, *fakeProver) {
	t.Helper()
	clock := store.NewManualClock(0)
	prover := &fakeProver{}
	effects := &Effects{Service: prover, Log: log.NewNoOpLogger()}

	enabled := func(s *State, a store.Action, now store.Timestamp) bool {
		return a.(Action).IsEnabled(s, now)
	}
	reducer := func(s *State, a store.WithMeta) {
		Reducer(s, a.Action.(Action), a.Meta)
	}
	eff := func(d store.Dispatcher, s *State, a store.WithMeta) {
		effects.Apply(d, s, a.Action.(Action), a.Meta)
	}
	return store.New(NewState(), clock, enabled, reducer, eff, nil), clock, prover
}

func TestWorkerLifecycle(t *testing.T) {
	require := require.New(t)

	st, _, prover := newWorkerStore(t)
	require.True(st.Dispatch(Start{Path: "/bin/prover", PublicKey: "B62q", Fee: 10}))
	require.Equal(1, prover.starts)
	// double start disabled
	require.False(st.Dispatch(Start{}))

	require.True(st.Dispatch(Started{}))
	require.Equal(PhaseIdle, st.State().Phase)

	job := testJob()
	require.True(st.Dispatch(SubmitWork{JobID: job, EstimatedMS: 30_000}))
	require.Equal(1, prover.submits)
	require.True(st.State().Busy())

	snark := types.Snark{JobID: job, Fee: 10}
	require.True(st.Dispatch(WorkResult{Snark: snark}))
	require.Equal(PhaseWorkReady, st.State().Phase)
	require.Equal(snark, *st.State().Result)

	require.True(st.Dispatch(ResultConsumed{}))
	require.Equal(PhaseIdle, st.State().Phase)
}

func TestStartTimeoutKills(t *testing.T) {
	require := require.New(t)

	st, clock, prover := newWorkerStore(t)
	require.True(st.Dispatch(Start{}))
	require.False(st.Dispatch(StartTimeout{}))

	clock.Advance(120 * time.Second)
	require.True(st.Dispatch(StartTimeout{}))
	require.Equal(PhaseKilling, st.State().Phase)
	require.Equal(1, prover.kills)

	require.True(st.Dispatch(Killed{}))
	require.Equal(PhaseNone, st.State().Phase)
}

func TestWorkTimeoutKillsThenRestarts(t *testing.T) {
	require := require.New(t)

	st, clock, prover := newWorkerStore(t)
	require.True(st.Dispatch(Start{}))
	require.True(st.Dispatch(Started{}))
	require.True(st.Dispatch(SubmitWork{JobID: testJob(), EstimatedMS: 30_000}))

	// still within estimate at 30s; over at 31s
	clock.Advance(30 * time.Second)
	require.False(st.Dispatch(WorkTimeout{}))
	clock.Advance(time.Second)
	require.True(st.Dispatch(WorkTimeout{}))
	require.Equal(1, prover.kills)

	require.True(st.Dispatch(Killed{}))
	// the node restarts the worker after a kill
	require.True(st.Dispatch(Start{}))
	require.Equal(2, prover.starts)
}

func TestTransientErrorReturnsToIdlePermanentKills(t *testing.T) {
	require := require.New(t)

	st, _, prover := newWorkerStore(t)
	require.True(st.Dispatch(Start{}))
	require.True(st.Dispatch(Started{}))
	require.True(st.Dispatch(SubmitWork{JobID: testJob(), EstimatedMS: 1000}))

	require.True(st.Dispatch(WorkError{Error: "oom", Permanent: false}))
	require.Equal(PhaseWorkError, st.State().Phase)
	require.Zero(prover.kills)
	require.True(st.Dispatch(ResultConsumed{}))
	require.Equal(PhaseIdle, st.State().Phase)

	require.True(st.Dispatch(SubmitWork{JobID: testJob(), EstimatedMS: 1000}))
	require.True(st.Dispatch(WorkError{Error: "bad circuit", Permanent: true}))
	require.Equal(PhaseKilling, st.State().Phase)
	require.Equal(1, prover.kills)
}

func TestCancelFlow(t *testing.T) {
	require := require.New(t)

	st, _, prover := newWorkerStore(t)
	require.True(st.Dispatch(Start{}))
	require.True(st.Dispatch(Started{}))
	require.True(st.Dispatch(SubmitWork{JobID: testJob(), EstimatedMS: 1000}))

	require.True(st.Dispatch(CancelWork{}))
	require.Equal(1, prover.cancels)
	require.Equal(PhaseCancelling, st.State().Phase)

	// a late result for the cancelled job is ignored
	require.False(st.Dispatch(WorkResult{Snark: types.Snark{JobID: testJob()}}))

	require.True(st.Dispatch(WorkCancelled{}))
	require.Equal(PhaseIdle, st.State().Phase)
}
