// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides the size and fee rate units used when reporting on
// transactions.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// baseUnit stores a transaction size in weight units (wu), the unit every
// other size is derived from.
type baseUnit struct {
	wu uint64
}

// ToWU converts the unit to a WeightUnit.
func (b baseUnit) ToWU() WeightUnit {
	return WeightUnit{b}
}

// ToVB converts the unit to a VByte.
func (b baseUnit) ToVB() VByte {
	return VByte{b}
}

// WeightUnit expresses a transaction size as `base size * 3 + total size`,
// where the base size excludes witness data and the total size is the BIP144
// serialization.
type WeightUnit struct {
	baseUnit
}

// NewWeightUnit creates a new WeightUnit.
func NewWeightUnit(val uint64) WeightUnit {
	return WeightUnit{baseUnit{wu: val}}
}

// Uint64 returns the size in weight units.
func (w WeightUnit) Uint64() uint64 {
	return w.wu
}

// String returns the string representation of the weight unit.
func (w WeightUnit) String() string {
	return fmt.Sprintf("%d wu", w.wu)
}

// VByte expresses a transaction size in virtual bytes, a quarter of a weight
// unit rounded up.
type VByte struct {
	baseUnit
}

// NewVByte creates a new VByte.
func NewVByte(val uint64) VByte {
	return VByte{baseUnit{wu: val * blockchain.WitnessScaleFactor}}
}

// Uint64 returns the size in virtual bytes, rounded up.
func (v VByte) Uint64() uint64 {
	return (v.wu + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
}

// String returns the string representation of the virtual byte.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", v.Uint64())
}

// TxWeight returns the weight of tx.
func TxWeight(tx *wire.MsgTx) WeightUnit {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))

	return NewWeightUnit(uint64(weight))
}
