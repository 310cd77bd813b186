// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package worker

import (
	"github.com/luxfi/log"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Action is the worker action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// Start spawns the prover binary.
type Start struct {
	Path      string
	PublicKey string
	Fee       uint64
}

func (Start) ActionKind() store.Kind { return "ExternalSnarkWorkerStart" }

func (Start) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseNone
}

// Started reports the prover process is up.
type Started struct{}

func (Started) ActionKind() store.Kind { return "ExternalSnarkWorkerStarted" }

func (Started) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseStarting
}

// StartTimeout kills a prover that failed to come up in time.
type StartTimeout struct{}

func (StartTimeout) ActionKind() store.Kind { return "ExternalSnarkWorkerStartTimeout" }

func (StartTimeout) IsEnabled(s *State, now store.Timestamp) bool {
	return s.Phase == PhaseStarting &&
		now.MillisSince(s.PhaseStart) >= s.StartTimeoutMS
}

// SubmitWork hands a committed job to the idle prover.
type SubmitWork struct {
	JobID       types.JobID
	EstimatedMS uint64
	Spec        []byte
}

func (SubmitWork) ActionKind() store.Kind { return "ExternalSnarkWorkerSubmitWork" }

func (SubmitWork) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseIdle
}

// WorkResult delivers the finished proof.
type WorkResult struct {
	Snark types.Snark
}

func (WorkResult) ActionKind() store.Kind { return "ExternalSnarkWorkerWorkResult" }

func (a WorkResult) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseWorking && a.Snark.JobID == s.JobID
}

// WorkError reports a failed proof attempt. Permanent errors kill the
// worker; transient ones return it to idle.
type WorkError struct {
	Error     string
	Permanent bool
}

func (WorkError) ActionKind() store.Kind { return "ExternalSnarkWorkerWorkError" }

func (WorkError) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseWorking
}

// WorkTimeout fires when a job overruns its estimated duration.
type WorkTimeout struct{}

func (WorkTimeout) ActionKind() store.Kind { return "ExternalSnarkWorkerWorkTimeout" }

func (WorkTimeout) IsEnabled(s *State, now store.Timestamp) bool {
	return s.Phase == PhaseWorking &&
		now.MillisSince(s.PhaseStart) > s.JobEstimatedMS
}

// CancelWork aborts the in-flight job, typically because the commitment was
// outbid or the snark arrived from the network.
type CancelWork struct{}

func (CancelWork) ActionKind() store.Kind { return "ExternalSnarkWorkerCancelWork" }

func (CancelWork) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseWorking
}

// WorkCancelled confirms the abort.
type WorkCancelled struct{}

func (WorkCancelled) ActionKind() store.Kind { return "ExternalSnarkWorkerWorkCancelled" }

func (WorkCancelled) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseCancelling
}

// ResultConsumed returns the worker to idle after the pool took the proof.
type ResultConsumed struct{}

func (ResultConsumed) ActionKind() store.Kind { return "ExternalSnarkWorkerResultConsumed" }

func (ResultConsumed) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseWorkReady || s.Phase == PhaseWorkError
}

// Kill terminates the prover process.
type Kill struct{}

func (Kill) ActionKind() store.Kind { return "ExternalSnarkWorkerKill" }

func (Kill) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase != PhaseNone && s.Phase != PhaseKilling
}

// Killed confirms process exit.
type Killed struct{}

func (Killed) ActionKind() store.Kind { return "ExternalSnarkWorkerKilled" }

func (Killed) IsEnabled(s *State, _ store.Timestamp) bool {
	return s.Phase == PhaseKilling
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case Start:
		s.Phase = PhaseStarting
		s.PhaseStart = meta.Time
		s.LastError = ""

	case Started:
		s.Phase = PhaseIdle
		s.PhaseStart = meta.Time

	case StartTimeout:
		s.Phase = PhaseKilling
		s.PhaseStart = meta.Time
		s.LastError = "start timeout"

	case SubmitWork:
		s.Phase = PhaseWorking
		s.PhaseStart = meta.Time
		s.JobID = act.JobID
		s.JobEstimatedMS = act.EstimatedMS
		s.Result = nil

	case WorkResult:
		s.Phase = PhaseWorkReady
		s.PhaseStart = meta.Time
		snark := act.Snark
		s.Result = &snark

	case WorkError:
		s.LastError = act.Error
		s.PhaseStart = meta.Time
		if act.Permanent {
			s.Phase = PhaseKilling
		} else {
			s.Phase = PhaseWorkError
		}

	case WorkTimeout:
		s.Phase = PhaseKilling
		s.PhaseStart = meta.Time
		s.LastError = "work timeout"

	case CancelWork:
		s.Phase = PhaseCancelling
		s.PhaseStart = meta.Time

	case WorkCancelled:
		s.Phase = PhaseIdle
		s.PhaseStart = meta.Time
		s.JobID = types.JobID{}
		s.JobEstimatedMS = 0

	case ResultConsumed:
		s.Phase = PhaseIdle
		s.PhaseStart = meta.Time
		s.Result = nil

	case Kill:
		s.Phase = PhaseKilling
		s.PhaseStart = meta.Time

	case Killed:
		s.Phase = PhaseNone
		s.PhaseStart = meta.Time
		s.JobID = types.JobID{}
		s.Result = nil
	}
}

// Effects calls the prover service for one reduced action.
type Effects struct {
	Service Service
	Log     log.Logger
}

// Apply runs the effect phase for [a].
func (e *Effects) Apply(d store.Dispatcher, s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case Start:
		e.Service.Start(act.Path, act.PublicKey, act.Fee)

	case StartTimeout:
		e.Log.Warn("snark worker failed to start in time")
		e.Service.Kill()

	case SubmitWork:
		e.Service.Submit(act.JobID, act.Spec)

	case WorkError:
		if act.Permanent {
			e.Log.Error("snark worker permanent error", "error", act.Error)
			e.Service.Kill()
		}

	case WorkTimeout:
		e.Log.Warn("snark job overran its estimate", "job", s.JobID.String())
		e.Service.Kill()

	case CancelWork:
		e.Service.Cancel()

	case Kill:
		e.Service.Kill()
	}
}
