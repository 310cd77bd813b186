// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package worker drives the sandboxed external snark prover through its
// spawn/submit/cancel/kill lifecycle. Every transition is service-event
// driven; timeouts are enabling conditions over the stored phase start.
package worker

import (
	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// Phase is the worker lifecycle state.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseStarting
	PhaseIdle
	PhaseWorking
	PhaseWorkReady
	PhaseWorkError
	PhaseCancelling
	PhaseKilling
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseIdle:
		return "idle"
	case PhaseWorking:
		return "working"
	case PhaseWorkReady:
		return "work_ready"
	case PhaseWorkError:
		return "work_error"
	case PhaseCancelling:
		return "cancelling"
	case PhaseKilling:
		return "killing"
	default:
		return "none"
	}
}

// DefaultStartTimeoutMS caps the prover spawn.
const DefaultStartTimeoutMS = 120_000

// Service is the external prover process boundary.
type Service interface {
	Start(path, publicKey string, fee uint64)
	Submit(jobID types.JobID, spec []byte)
	Cancel()
	Kill()
}

// State is the worker sub-state.
type State struct {
	Phase      Phase
	PhaseStart store.Timestamp

	StartTimeoutMS uint64

	// Job in progress while Working/Cancelling.
	JobID          types.JobID
	JobEstimatedMS uint64

	LastError string
	// Result holds the proof between WorkResult and its consumption by
	// the pool.
	Result *types.Snark
}

// NewState returns an unstarted worker.
func NewState() *State {
	return &State{StartTimeoutMS: DefaultStartTimeoutMS}
}

// Busy reports whether a job occupies the worker.
func (s *State) Busy() bool {
	return s.Phase == PhaseWorking || s.Phase == PhaseCancelling
}
