// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinselect implements the wallet's privacy aware coin selection.
//
// Given the spendable coins of a wallet, an optional set of coins the caller
// already committed to spend and a target amount, the Selector picks the
// smallest number of additional coins that cover the target. Among the
// coverings of that size it prefers the one that links the fewest and the
// least exposed clusters, reuses scripts that are spent anyway and leaves the
// least change behind.
//
// The Selector owns no wallet state and performs no I/O. It is safe for
// concurrent use as long as the coins and the cluster view handed to New are
// not mutated afterwards.
package coinselect

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/momantech/WalletWasabi/wallet/cluster"
)

var (
	// ErrInsufficientFunds is returned when the forced coins and the
	// candidates together cannot cover the target. The concrete error is
	// an *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTarget is returned when the target amount is not
	// positive.
	ErrInvalidTarget = errors.New("target amount must be positive")

	// ErrInvalidAmount is returned when a candidate coin has a
	// non-positive amount, or when the candidates add up to more than the
	// total supply.
	ErrInvalidAmount = errors.New("invalid coin amount")

	// ErrDuplicatedCoin is returned when an outpoint shows up more than
	// once, either in the candidate set or in the forced coins.
	ErrDuplicatedCoin = errors.New("duplicated coin")

	// ErrUnknownCoin is returned when a forced outpoint is not part of the
	// selector's candidate set.
	ErrUnknownCoin = errors.New("unknown coin")
)

// InsufficientFundsError carries the amounts of a failed selection so that
// the caller can offer alternatives, e.g. subtracting the fee from the
// payment.
type InsufficientFundsError struct {
	// Target is the requested amount.
	Target btcutil.Amount

	// Available is the total of all forced and candidate coins.
	Available btcutil.Amount
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%v: need %v, have %v", ErrInsufficientFunds,
		e.Target, e.Available)
}

// Unwrap makes the error match ErrInsufficientFunds with errors.Is.
func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Missing returns the amount that is lacking to reach the target.
func (e *InsufficientFundsError) Missing() btcutil.Amount {
	return e.Target - e.Available
}

// Coin represents a spendable UTXO which is available for coin selection.
type Coin struct {
	wire.OutPoint

	// Amount is the value of the output.
	Amount btcutil.Amount

	// PkScript is the output script. It doubles as the key identity of
	// the coin: coins sharing a script are received on the same address.
	PkScript []byte

	// AnonSet is the anonymity set the coin reached through coinjoins. A
	// coin that never took part in a coinjoin has an anonymity set of 1.
	AnonSet uint32
}

// KeyID returns the script identity of the coin.
func (c *Coin) KeyID() cluster.KeyID {
	return cluster.KeyIDFromScript(c.PkScript)
}

// ClusterView is the read side of the wallet's clustering analysis. It is
// satisfied by *cluster.Snapshot.
type ClusterView interface {
	// ClusterOf returns the cluster the given key belongs to, or false if
	// the key is unknown.
	ClusterOf(key cluster.KeyID) (cluster.Cluster, bool)
}

// A compile time check to ensure that a snapshot can be used as a view.
var _ ClusterView = (*cluster.Snapshot)(nil)

// TotalAmount returns the sum of the amounts of the given coins.
func TotalAmount(coins []Coin) btcutil.Amount {
	var total btcutil.Amount
	for i := range coins {
		total += coins[i].Amount
	}

	return total
}
