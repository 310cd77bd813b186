// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// ConstraintConstants are the protocol circuit constants. They are
// configuration: the store receives them at init and nothing reads them as
// process globals.
type ConstraintConstants struct {
	SubWindowsPerWindow      uint64 `yaml:"sub_windows_per_window"`
	LedgerDepth              uint64 `yaml:"ledger_depth"`
	WorkDelay                uint64 `yaml:"work_delay"`
	BlockWindowDurationMS    uint64 `yaml:"block_window_duration_ms"`
	TransactionCapacityLog2  uint64 `yaml:"transaction_capacity_log_2"`
	PendingCoinbaseDepth     int    `yaml:"pending_coinbase_depth"`
	CoinbaseAmount           uint64 `yaml:"coinbase_amount"`
	AccountCreationFee       uint64 `yaml:"account_creation_fee"`
	SuperchargedCoinbaseFactor uint64 `yaml:"supercharged_coinbase_factor"`
}

// DefaultConstraintConstants returns the berkeleynet constants.
func DefaultConstraintConstants() ConstraintConstants {
	return ConstraintConstants{
		SubWindowsPerWindow:        11,
		LedgerDepth:                35,
		WorkDelay:                  2,
		BlockWindowDurationMS:      180000,
		TransactionCapacityLog2:    7,
		PendingCoinbaseDepth:       5,
		CoinbaseAmount:             720000000000,
		AccountCreationFee:         1000000000,
		SuperchargedCoinbaseFactor: 1,
	}
}

// K is the finality depth: the frontier keeps at most K+1 blocks.
const K = 290

// SlotsPerEpoch is the number of global slots in one epoch.
const SlotsPerEpoch = 7140
