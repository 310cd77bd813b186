// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package watched tracks read-only observers over accounts: the initial
// ledger state fetched once, then every block transaction touching the
// account.
package watched

import (
	"github.com/luxfi/ids"

	"github.com/openmina/openmina-go/store"
	"github.com/openmina/openmina-go/types"
)

// LedgerInitialStatus is the one-time initial-state fetch lifecycle.
type LedgerInitialStatus uint8

const (
	InitialIdle LedgerInitialStatus = iota
	InitialPending
	InitialError
	InitialSuccess
)

// BlockTransaction is one observed transaction touching the account.
type BlockTransaction struct {
	BlockHash ids.ID
	Height    uint32
	Command   types.UserCommand
}

// Account is one watched account.
type Account struct {
	PublicKey string

	InitialStatus LedgerInitialStatus
	Initial       *types.Account

	Transactions []BlockTransaction
}

// State is the watched-accounts sub-state.
type State struct {
	Accounts map[string]*Account
}

// NewState returns an empty watch list.
func NewState() *State {
	return &State{Accounts: make(map[string]*Account)}
}

// Action is the watched-accounts action set.
type Action interface {
	store.Action
	IsEnabled(s *State, now store.Timestamp) bool
}

// Add starts watching a public key.
type Add struct {
	PublicKey string
}

func (Add) ActionKind() store.Kind { return "WatchedAccountsAdd" }

func (a Add) IsEnabled(s *State, _ store.Timestamp) bool {
	_, ok := s.Accounts[a.PublicKey]
	return !ok && a.PublicKey != ""
}

// LedgerInitialStateGetInit fetches the account's state at the current best
// tip.
type LedgerInitialStateGetInit struct {
	PublicKey string
}

func (LedgerInitialStateGetInit) ActionKind() store.Kind {
	return "WatchedAccountsLedgerInitialStateGetInit"
}

func (a LedgerInitialStateGetInit) IsEnabled(s *State, _ store.Timestamp) bool {
	acc, ok := s.Accounts[a.PublicKey]
	return ok && (acc.InitialStatus == InitialIdle || acc.InitialStatus == InitialError)
}

// LedgerInitialStateGetSuccess stores the fetched state.
type LedgerInitialStateGetSuccess struct {
	PublicKey string
	Account   *types.Account
}

func (LedgerInitialStateGetSuccess) ActionKind() store.Kind {
	return "WatchedAccountsLedgerInitialStateGetSuccess"
}

func (a LedgerInitialStateGetSuccess) IsEnabled(s *State, _ store.Timestamp) bool {
	acc, ok := s.Accounts[a.PublicKey]
	return ok && acc.InitialStatus == InitialPending
}

// LedgerInitialStateGetError allows a retry.
type LedgerInitialStateGetError struct {
	PublicKey string
	Error     string
}

func (LedgerInitialStateGetError) ActionKind() store.Kind {
	return "WatchedAccountsLedgerInitialStateGetError"
}

func (a LedgerInitialStateGetError) IsEnabled(s *State, _ store.Timestamp) bool {
	acc, ok := s.Accounts[a.PublicKey]
	return ok && acc.InitialStatus == InitialPending
}

// TransactionsIncludedInBlock records matching commands from an applied
// block.
type TransactionsIncludedInBlock struct {
	PublicKey string
	BlockHash ids.ID
	Height    uint32
	Commands  []types.UserCommand
}

func (TransactionsIncludedInBlock) ActionKind() store.Kind {
	return "WatchedAccountsBlockTransactionsIncluded"
}

func (a TransactionsIncludedInBlock) IsEnabled(s *State, _ store.Timestamp) bool {
	acc, ok := s.Accounts[a.PublicKey]
	return ok && acc.InitialStatus == InitialSuccess && len(a.Commands) > 0
}

// Reducer applies one enabled action.
func Reducer(s *State, a Action, meta store.ActionMeta) {
	switch act := a.(type) {
	case Add:
		s.Accounts[act.PublicKey] = &Account{PublicKey: act.PublicKey}

	case LedgerInitialStateGetInit:
		s.Accounts[act.PublicKey].InitialStatus = InitialPending

	case LedgerInitialStateGetSuccess:
		acc := s.Accounts[act.PublicKey]
		acc.InitialStatus = InitialSuccess
		acc.Initial = act.Account

	case LedgerInitialStateGetError:
		s.Accounts[act.PublicKey].InitialStatus = InitialError

	case TransactionsIncludedInBlock:
		acc := s.Accounts[act.PublicKey]
		for _, cmd := range act.Commands {
			acc.Transactions = append(acc.Transactions, BlockTransaction{
				BlockHash: act.BlockHash,
				Height:    act.Height,
				Command:   cmd,
			})
		}
	}
}
