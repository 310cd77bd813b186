// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/binary"

	"github.com/luxfi/ids"
	"lukechampine.com/blake3"

	"github.com/openmina/openmina-go/types"
)

// DevHasher is a blake3-backed Hasher for development and testing. It is
// NOT the Mina Poseidon permutation; production nodes must inject the
// external Poseidon implementation to interoperate on hashes.
type DevHasher struct{}

func (DevHasher) MerkleNode(depth int, left, right ids.ID) ids.ID {
	var buf [8 + 64]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(depth))
	copy(buf[8:], left[:])
	copy(buf[40:], right[:])
	return ids.ID(blake3.Sum256(buf[:]))
}

func (DevHasher) SubtreeRoot(addr Address, treeDepth int, accounts []types.Account) ids.ID {
	data := make([]byte, 0, len(addr.String())+len(accounts)*32)
	data = append(data, addr.String()...)
	for _, acc := range accounts {
		data = append(data, acc.Hash[:]...)
	}
	return ids.ID(blake3.Sum256(data))
}

func (DevHasher) NumAccountsRoot(count uint64, contentsHash ids.ID) ids.ID {
	var buf [8 + 32]byte
	binary.LittleEndian.PutUint64(buf[:8], count)
	copy(buf[8:], contentsHash[:])
	return ids.ID(blake3.Sum256(buf[:]))
}

func (DevHasher) StagedLedgerHash(scanAux, pendingCoinbase, snarkedRoot ids.ID) ids.ID {
	var buf [96]byte
	copy(buf[:32], scanAux[:])
	copy(buf[32:64], pendingCoinbase[:])
	copy(buf[64:], snarkedRoot[:])
	return ids.ID(blake3.Sum256(buf[:]))
}
