// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stats derives observability from the sync machines: phase
// durations exposed both as prometheus metrics and through the HTTP
// surface.
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openmina/openmina-go/store"
)

// SyncPhaseKey names one measured sync phase.
type SyncPhaseKey string

const (
	PhaseSnarkedHashes   SyncPhaseKey = "snarked_hashes_fetch"
	PhaseSnarkedAccounts SyncPhaseKey = "snarked_accounts_fetch"
	PhaseStagedParts     SyncPhaseKey = "staged_parts_fetch"
	PhaseReconstruct     SyncPhaseKey = "staged_reconstruct"
)

// SyncStats accumulates phase durations. It is written from the effect
// phase and read by the HTTP surface, so it carries its own lock.
type SyncStats struct {
	mu       sync.RWMutex
	started  map[SyncPhaseKey]store.Timestamp
	duration map[SyncPhaseKey]uint64 // milliseconds

	phaseDuration *prometheus.GaugeVec
	actionsTotal  prometheus.Counter
}

// New registers the metrics on [registerer] and returns the collector.
func New(registerer prometheus.Registerer) (*SyncStats, error) {
	s := &SyncStats{
		started:  make(map[SyncPhaseKey]store.Timestamp),
		duration: make(map[SyncPhaseKey]uint64),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "openmina",
			Subsystem: "sync",
			Name:      "phase_duration_ms",
			Help:      "Duration of each ledger sync phase in milliseconds",
		}, []string{"phase"}),
		actionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openmina",
			Subsystem: "store",
			Name:      "actions_total",
			Help:      "Actions dispatched since start",
		}),
	}
	if registerer != nil {
		if err := registerer.Register(s.phaseDuration); err != nil {
			return nil, err
		}
		if err := registerer.Register(s.actionsTotal); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PhaseStarted marks the beginning of a sync phase.
func (s *SyncStats) PhaseStarted(key SyncPhaseKey, now store.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[key] = now
}

// PhaseDone closes the phase and publishes its duration.
func (s *SyncStats) PhaseDone(key SyncPhaseKey, now store.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.started[key]
	if !ok {
		return
	}
	ms := now.MillisSince(start)
	s.duration[key] = ms
	s.phaseDuration.WithLabelValues(string(key)).Set(float64(ms))
	delete(s.started, key)
}

// ActionDispatched bumps the dispatch counter.
func (s *SyncStats) ActionDispatched() {
	s.actionsTotal.Inc()
}

// Snapshot copies the completed durations for the HTTP surface.
func (s *SyncStats) Snapshot() map[SyncPhaseKey]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[SyncPhaseKey]uint64, len(s.duration))
	for k, v := range s.duration {
		out[k] = v
	}
	return out
}
