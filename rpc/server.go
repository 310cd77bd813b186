// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc is the read-only HTTP surface: health and readiness probes
// plus sync statistics. It reads state snapshots published by the node
// loop; it never touches the store directly.
package rpc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openmina/openmina-go/stats"
)

// Status is the node snapshot the probes read.
type Status struct {
	Healthy    bool   `json:"healthy"`
	Synced     bool   `json:"synced"`
	SyncPhase  string `json:"sync_phase"`
	ReadyPeers int    `json:"ready_peers"`
}

// StatusSource publishes the latest snapshot.
type StatusSource interface {
	Status() Status
}

// readyConsecutive is how many consecutive passing checks /readyz needs
// before reporting ready.
const readyConsecutive = 3

// Server serves the probe endpoints.
type Server struct {
	src      StatusSource
	stats    *stats.SyncStats
	gatherer prometheus.Gatherer

	// MinPeers is the ready-peer floor for readiness.
	MinPeers int

	mu          sync.Mutex
	consecutive int
}

// NewServer builds the surface over a snapshot source.
func NewServer(src StatusSource, syncStats *stats.SyncStats, gatherer prometheus.Gatherer, minPeers int) *Server {
	return &Server{
		src:      src,
		stats:    syncStats,
		gatherer: gatherer,
		MinPeers: minPeers,
	}
}

// Routes assembles the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/stats/sync", s.handleSyncStats)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := s.src.Status()
	if !st.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	st := s.src.Status()
	pass := st.Synced && st.ReadyPeers >= s.MinPeers

	s.mu.Lock()
	if pass {
		s.consecutive++
	} else {
		s.consecutive = 0
	}
	ready := s.consecutive >= readyConsecutive
	s.mu.Unlock()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSyncStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := map[stats.SyncPhaseKey]uint64{}
	if s.stats != nil {
		snapshot = s.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
