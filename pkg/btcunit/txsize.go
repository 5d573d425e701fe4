// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides the transaction size unit used to report the cost
// of spending a coin selection.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// VByte defines a unit to express the transaction size. One virtual byte is
// 1/4th of a weight unit.
type VByte struct {
	// The internal size is recorded in weight units.
	wu uint64
}

// NewVByte creates a new VByte from a uint64 value.
func NewVByte(val uint64) VByte {
	return VByte{wu: val * blockchain.WitnessScaleFactor}
}

// Add returns the sum of both sizes.
func (v VByte) Add(other VByte) VByte {
	return VByte{wu: v.wu + other.wu}
}

// Val returns the size in virtual bytes.
func (v VByte) Val() uint64 {
	return v.wu / blockchain.WitnessScaleFactor
}

// String returns the string representation of the virtual byte.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", v.Val())
}

// MinInputSize returns the minimum virtual size that spending outputs with
// the given scripts adds to a transaction. Scripts of unknown type are
// assumed to be P2PKH.
func MinInputSize(pkScripts ...[]byte) VByte {
	var total VByte
	for _, pkScript := range pkScripts {
		vsize := txsizes.GetMinInputVirtualSize(pkScript)
		total = total.Add(NewVByte(uint64(vsize)))
	}

	return total
}
