// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPhaseDurations(t *testing.T) {
	require := require.New(t)

	s, err := New(prometheus.NewRegistry())
	require.NoError(err)

	s.PhaseStarted(PhaseSnarkedHashes, 1_000_000_000)
	s.PhaseDone(PhaseSnarkedHashes, 4_000_000_000)

	snap := s.Snapshot()
	require.Equal(uint64(3000), snap[PhaseSnarkedHashes])

	// closing a phase that never started is a no-op
	s.PhaseDone(PhaseReconstruct, 9_000_000_000)
	_, ok := s.Snapshot()[PhaseReconstruct]
	require.False(ok)
}

func TestDoubleRegistrationFails(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(err)
	_, err = New(reg)
	require.Error(err)
}
