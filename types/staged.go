// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/ids"

// ScanState is the opaque tree of pending transaction-snark statements. The
// core forwards it to the ledger service; only the aux hash participates in
// validation.
type ScanState struct {
	AuxHash ids.ID
	Raw     []byte
}

// PendingCoinbase tracks coinbase rewards in flight through the scan state.
type PendingCoinbase struct {
	Root ids.ID
	Raw  []byte
}

// StagedLedgerParts is the one large object fetched to reconstruct the
// staged ledger atop a completed snarked ledger.
type StagedLedgerParts struct {
	ScanState            ScanState
	PendingCoinbase      PendingCoinbase
	NeededProtocolStates [][]byte
}
