// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/ids"
)

// ErrInvalidJobID is returned when a job-id string does not parse.
var ErrInvalidJobID = errors.New("invalid snark job id")

// LedgerHashes is one pass pair of a ledger-hash transition.
type LedgerHashes struct {
	FirstPassLedger  ids.ID
	SecondPassLedger ids.ID
}

// JobID identifies a snark job by the ledger-hash transition it proves.
// The string form is
// src.first_pass:src.second_pass->tgt.first_pass:tgt.second_pass.
type JobID struct {
	Source LedgerHashes
	Target LedgerHashes
}

func (j JobID) String() string {
	return fmt.Sprintf("%s:%s->%s:%s",
		j.Source.FirstPassLedger, j.Source.SecondPassLedger,
		j.Target.FirstPassLedger, j.Target.SecondPassLedger)
}

// ParseJobID decodes the string form produced by String.
func ParseJobID(s string) (JobID, error) {
	src, tgt, ok := strings.Cut(s, "->")
	if !ok {
		return JobID{}, ErrInvalidJobID
	}
	source, err := parsePasses(src)
	if err != nil {
		return JobID{}, err
	}
	target, err := parsePasses(tgt)
	if err != nil {
		return JobID{}, err
	}
	return JobID{Source: source, Target: target}, nil
}

func parsePasses(s string) (LedgerHashes, error) {
	first, second, ok := strings.Cut(s, ":")
	if !ok {
		return LedgerHashes{}, ErrInvalidJobID
	}
	firstID, err := ids.FromString(first)
	if err != nil {
		return LedgerHashes{}, fmt.Errorf("%w: %s", ErrInvalidJobID, err)
	}
	secondID, err := ids.FromString(second)
	if err != nil {
		return LedgerHashes{}, fmt.Errorf("%w: %s", ErrInvalidJobID, err)
	}
	return LedgerHashes{FirstPassLedger: firstID, SecondPassLedger: secondID}, nil
}

// Snark is a completed proof for a job, with the fee the prover charges.
type Snark struct {
	JobID  JobID
	Fee    uint64
	Prover string
	Proof  []byte
}

// Account is a ledger leaf. The core treats its contents as opaque data
// validated elsewhere; only the hash participates in tree checks.
type Account struct {
	PublicKey string
	Balance   uint64
	Nonce     uint32
	Delegate  string
	Hash      ids.ID
}
