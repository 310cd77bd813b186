// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/ledger"
	"github.com/openmina/openmina-go/types"
)

// RpcRequest is a typed query carried on the rpc channel. Wire encoding is
// the service's concern; the core sees decoded values.
type RpcRequest interface {
	RpcKind() string
}

// RpcResponse answers one RpcRequest.
type RpcResponse interface {
	RpcKind() string
}

// BestTipGet asks the peer for its current best tip with a chain proof.
type BestTipGet struct{}

func (BestTipGet) RpcKind() string { return "best_tip/get" }

// BestTipResponse carries the peer's tip and the root of its frontier.
type BestTipResponse struct {
	Block *types.Block
	Root  *types.Block
}

func (BestTipResponse) RpcKind() string { return "best_tip/get" }

// LedgerNumAccountsGet probes how many accounts the ledger with the given
// root holds.
type LedgerNumAccountsGet struct {
	LedgerHash ids.ID
}

func (LedgerNumAccountsGet) RpcKind() string { return "ledger/num_accounts" }

// LedgerNumAccountsResponse claims a count; the claim is validated against
// the root by a path of empty hashes on the right.
type LedgerNumAccountsResponse struct {
	Count        uint64
	ContentsHash ids.ID
}

func (LedgerNumAccountsResponse) RpcKind() string { return "ledger/num_accounts" }

// LedgerChildHashesGet fetches the two child hashes under an address.
type LedgerChildHashesGet struct {
	LedgerHash ids.ID
	Addr       ledger.Address
}

func (LedgerChildHashesGet) RpcKind() string { return "ledger/child_hashes" }

// LedgerChildHashesResponse carries (left, right) to validate against the
// known parent.
type LedgerChildHashesResponse struct {
	Left  ids.ID
	Right ids.ID
}

func (LedgerChildHashesResponse) RpcKind() string { return "ledger/child_hashes" }

// LedgerAccountsGet fetches the account range below a content-depth address.
type LedgerAccountsGet struct {
	LedgerHash ids.ID
	Addr       ledger.Address
}

func (LedgerAccountsGet) RpcKind() string { return "ledger/accounts" }

// LedgerAccountsResponse carries the accounts in address order.
type LedgerAccountsResponse struct {
	Accounts []types.Account
}

func (LedgerAccountsResponse) RpcKind() string { return "ledger/accounts" }

// StagedLedgerPartsGet fetches scan state, pending coinbase and needed
// protocol states for a staged ledger hash.
type StagedLedgerPartsGet struct {
	StagedLedgerHash ids.ID
}

func (StagedLedgerPartsGet) RpcKind() string { return "staged_ledger/parts" }

// StagedLedgerPartsResponse is the one large reconstruction object.
type StagedLedgerPartsResponse struct {
	Parts *types.StagedLedgerParts
}

func (StagedLedgerPartsResponse) RpcKind() string { return "staged_ledger/parts" }

// AncestorChainGet asks for the ordered state hashes in (root, tip].
type AncestorChainGet struct {
	RootHash ids.ID
	TipHash  ids.ID
}

func (AncestorChainGet) RpcKind() string { return "ancestor_chain/get" }

// AncestorChainResponse carries the hash chain, oldest first, ending at the
// tip.
type AncestorChainResponse struct {
	Hashes []ids.ID
}

func (AncestorChainResponse) RpcKind() string { return "ancestor_chain/get" }

// BlockGet fetches a block body by state hash.
type BlockGet struct {
	Hash ids.ID
}

func (BlockGet) RpcKind() string { return "block/get" }

// BlockGetResponse carries the block, nil when unknown to the peer.
type BlockGetResponse struct {
	Block *types.Block
}

func (BlockGetResponse) RpcKind() string { return "block/get" }
