// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package snarkpool

import (
	"github.com/luxfi/log"

	"github.com/openmina/openmina-go/snarkpool/worker"
	"github.com/openmina/openmina-go/store"
)

// Effects couples the auction to the local external worker.
type Effects struct {
	Log log.Logger
	// LocalSnarker is our snarker public key, empty when not snarking.
	LocalSnarker string
}

// Apply runs the effect phase for [a]. The worker sub-state is read-only
// here; transitions go through its own actions.
func (e *Effects) Apply(d store.Dispatcher, s *State, w *worker.State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case CommitmentAdd:
		if act.Local {
			j, ok := s.Get(act.Commitment.JobID)
			if !ok {
				return
			}
			d.Dispatch(worker.SubmitWork{
				JobID:       act.Commitment.JobID,
				EstimatedMS: j.Job.EstimatedDurationMS,
			})
			return
		}
		// a network bid displaced ours mid-dispatch: stop proving
		if rep := s.LastReplaced; rep != nil && rep.Snarker == e.LocalSnarker &&
			e.LocalSnarker != "" && w.Busy() && w.JobID == act.Commitment.JobID {
			e.Log.Info("commitment outbid, cancelling local work",
				"job", act.Commitment.JobID.String(),
				"fee", act.Commitment.Fee)
			d.Dispatch(worker.CancelWork{})
		}

	case SnarkAdd:
		if !act.Local && w.Busy() && w.JobID == act.Snark.JobID {
			e.Log.Info("network snark landed first, cancelling local work",
				"job", act.Snark.JobID.String())
			d.Dispatch(worker.CancelWork{})
		}

	case CandidateInfoReceived:
		d.Dispatch(CandidateWorkFetchInit{Peer: act.Peer, JobID: act.JobID})
	}
}
