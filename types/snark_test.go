// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestJobIDRoundTrip(t *testing.T) {
	require := require.New(t)

	job := JobID{
		Source: LedgerHashes{
			FirstPassLedger:  ids.GenerateTestID(),
			SecondPassLedger: ids.GenerateTestID(),
		},
		Target: LedgerHashes{
			FirstPassLedger:  ids.GenerateTestID(),
			SecondPassLedger: ids.GenerateTestID(),
		},
	}

	parsed, err := ParseJobID(job.String())
	require.NoError(err)
	require.Equal(job, parsed)
}

func TestParseJobIDRejectsMalformed(t *testing.T) {
	require := require.New(t)

	for _, s := range []string{
		"",
		"nonsense",
		"a:b",
		"a:b->c",
		"a->c:d",
		"::->::",
	} {
		_, err := ParseJobID(s)
		require.ErrorIs(err, ErrInvalidJobID, "input %q", s)
	}
}

func TestGenesisBlockLedgersCoincide(t *testing.T) {
	require := require.New(t)

	stateHash := ids.GenerateTestID()
	ledgerHash := ids.GenerateTestID()
	g := GenesisBlock(stateHash, ledgerHash)

	require.Equal(uint32(1), g.Height)
	require.Equal(g.Blockchain.SnarkedLedgerHash, g.Blockchain.StagedLedgerHash)
	require.Equal(ids.Empty, g.PredHash)
}
