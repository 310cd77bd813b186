// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/types"
)

// Hasher is the external Poseidon primitive behind a pure interface. All
// methods are deterministic; tests inject a cheap stand-in.
type Hasher interface {
	// MerkleNode hashes (left, right) at the given node depth.
	MerkleNode(depth int, left, right ids.ID) ids.ID
	// SubtreeRoot folds a run of accounts into the root of the subtree
	// below [addr] in a tree of [treeDepth] levels; absent leaves use the
	// empty hash of their depth.
	SubtreeRoot(addr Address, treeDepth int, accounts []types.Account) ids.ID
	// NumAccountsRoot recomputes the root implied by an account count and
	// the hash of the occupied prefix, padding with empty hashes on the
	// right.
	NumAccountsRoot(count uint64, contentsHash ids.ID) ids.ID
	// StagedLedgerHash combines scan-state aux hash, pending-coinbase
	// root and snarked-ledger root.
	StagedLedgerHash(scanAux, pendingCoinbase, snarkedRoot ids.ID) ids.ID
}
