// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestSizeConversion checks that the conversion between weight units and
// virtual bytes is correct.
func TestSizeConversion(t *testing.T) {
	t.Parallel()

	wu := NewWeightUnit(1000)
	require.Equal(t, NewVByte(250), wu.ToVB())
	require.Equal(t, wu, NewVByte(250).ToWU())

	// Partial virtual bytes are rounded up.
	require.EqualValues(t, 251, NewWeightUnit(1001).ToVB().Uint64())
	require.EqualValues(t, 1001, NewWeightUnit(1001).Uint64())
}

// TestSizeStringer tests the stringer methods of the size types.
func TestSizeStringer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1000 wu", NewWeightUnit(1000).String())
	require.Equal(t, "250 vb", NewVByte(250).String())
	require.Equal(t, "251 vb", NewWeightUnit(1001).ToVB().String())
}

// TestTxWeight checks the weight of a legacy and a witness transaction.
func TestTxWeight(t *testing.T) {
	t.Parallel()

	// Arrange: A one-in one-out transaction without witness data.
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil,
	))
	tx.AddTxOut(wire.NewTxOut(1000, make([]byte, 22)))

	// Act & Assert: Without witness every byte weighs four units.
	legacy := TxWeight(tx)
	require.EqualValues(t, tx.SerializeSize()*4, legacy.Uint64())

	// Act: Add a witness.
	tx.TxIn[0].Witness = wire.TxWitness{make([]byte, 72)}
	witness := TxWeight(tx)

	// Assert: Witness bytes weigh one unit each, plus the marker and
	// flag.
	require.EqualValues(
		t, tx.SerializeSizeStripped()*3+tx.SerializeSize(),
		witness.Uint64(),
	)
	require.Less(t, witness.ToVB().Uint64(),
		uint64(tx.SerializeSize()))
}
