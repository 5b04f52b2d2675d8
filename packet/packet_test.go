// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// testKey returns a deterministic key pair derived from seed.
func testKey(seed byte) (*btcec.PrivateKey, *btcec.PublicKey) {
	return btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
}

// testPubKeyHex returns the map key of the compressed public key for seed.
func testPubKeyHex(seed byte) string {
	_, pub := testKey(seed)
	return PubKeyHex(pub.SerializeCompressed())
}

// testSig returns a DER signature with the ALL sighash byte, made by the key
// for seed over a digest derived from msg.
func testSig(seed byte, msg string) []byte {
	priv, _ := testKey(seed)
	digest := chainhash.HashB([]byte(msg))
	sig := ecdsa.Sign(priv, digest).Serialize()

	return append(sig, byte(txscript.SigHashAll))
}

// testP2WPKHScript returns the P2WPKH output script for the key of seed.
func testP2WPKHScript(t *testing.T, seed byte) []byte {
	t.Helper()

	_, pub := testKey(seed)
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(pub.SerializeCompressed())).
		Script()
	require.NoError(t, err)

	return script
}

// testUnsignedTx returns an unsigned transaction with the given number of
// inputs and outputs.
func testUnsignedTx(t *testing.T, numIn, numOut int) *wire.MsgTx {
	t.Helper()

	tx := wire.NewMsgTx(2)
	for i := range numIn {
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(
			&chainhash.Hash{byte(i + 1)}, uint32(i),
		), nil, nil))
	}
	for i := range numOut {
		tx.AddTxOut(wire.NewTxOut(
			int64(10_000*(i+1)), testP2WPKHScript(t, byte(i+10)),
		))
	}

	return tx
}

// testPacket returns an empty packet for testUnsignedTx.
func testPacket(t *testing.T, numIn, numOut int) *Packet {
	t.Helper()

	p, err := New(testUnsignedTx(t, numIn, numOut))
	require.NoError(t, err)

	return p
}

// TestNew checks that a new packet has one empty record per input and output
// and that signed transactions are refused.
func TestNew(t *testing.T) {
	t.Parallel()

	// Arrange: An unsigned transaction with two inputs and one output.
	tx := testUnsignedTx(t, 2, 1)

	// Act: Create the packet.
	p, err := New(tx)

	// Assert: Records are aligned with the transaction and unset.
	require.NoError(t, err)
	require.Len(t, p.Inputs, 2)
	require.Len(t, p.Outputs, 1)
	for i := range p.Inputs {
		require.IsType(t, Unsigned{}, p.Inputs[i].State())
		require.Nil(t, p.Inputs[i].WitnessUtxo)
		require.True(t, p.Inputs[i].SighashType.IsNone())
	}

	// Arrange: A transaction that already carries a signature script.
	signed := testUnsignedTx(t, 1, 1)
	signed.TxIn[0].SignatureScript = []byte{txscript.OP_TRUE}

	// Act: Create a packet from it.
	_, err = New(signed)

	// Assert: It is a format error.
	require.True(t, IsError(err, ErrFormat))

	// Act + Assert: A nil transaction is a format error too.
	_, err = New(nil)
	require.True(t, IsError(err, ErrFormat))
}

// TestInputState checks the lifecycle view of an input.
func TestInputState(t *testing.T) {
	t.Parallel()

	sig := testSig(1, "state")
	final := FinalScripts{Witness: wire.TxWitness{sig, {0x02}}}

	testCases := []struct {
		name     string
		input    Input
		expected InputState
	}{
		{
			name:     "empty input is unsigned",
			input:    Input{},
			expected: Unsigned{},
		},
		{
			name: "signatures make it partially signed",
			input: Input{
				PartialSigs:   SigMap{testPubKeyHex(1): sig},
				WitnessScript: []byte{txscript.OP_TRUE},
			},
			expected: PartiallySigned{
				Sigs:          SigMap{testPubKeyHex(1): sig},
				WitnessScript: []byte{txscript.OP_TRUE},
			},
		},
		{
			name: "final scripts win over signatures",
			input: Input{
				PartialSigs: SigMap{testPubKeyHex(1): sig},
				Final:       fn.Some(final),
			},
			expected: Finalized{final},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act + Assert: The derived state matches.
			require.Equal(t, tc.expected, tc.input.State())
		})
	}
}

// TestCloneIsDeep checks that mutating a clone leaves the original alone.
func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	// Arrange: A packet with map, script and utxo fields set.
	p := testPacket(t, 1, 1)
	p.Inputs[0].PartialSigs = SigMap{testPubKeyHex(1): testSig(1, "a")}
	p.Inputs[0].WitnessUtxo = wire.NewTxOut(1000, testP2WPKHScript(t, 1))
	p.Inputs[0].Bip32Derivation = DerivationMap{
		testPubKeyHex(1): {Fingerprint: 1, Path: []uint32{1, 2}},
	}
	p.Outputs[0].RedeemScript = []byte{txscript.OP_TRUE}

	// Act: Mutate every field of the clone.
	c := p.Clone()
	c.Inputs[0].PartialSigs[testPubKeyHex(2)] = testSig(2, "b")
	c.Inputs[0].WitnessUtxo.PkScript[0] = 0xff
	c.Inputs[0].Bip32Derivation[testPubKeyHex(1)].Path[0] = 9
	c.Outputs[0].RedeemScript[0] = txscript.OP_FALSE
	c.UnsignedTx.TxOut[0].Value = 1

	// Assert: The original is unchanged.
	require.Len(t, p.Inputs[0].PartialSigs, 1)
	require.Equal(t, byte(txscript.OP_0), p.Inputs[0].WitnessUtxo.PkScript[0])
	require.Equal(
		t, uint32(1),
		p.Inputs[0].Bip32Derivation[testPubKeyHex(1)].Path[0],
	)
	require.Equal(t, []byte{txscript.OP_TRUE}, p.Outputs[0].RedeemScript)
	require.Equal(t, int64(10_000), p.UnsignedTx.TxOut[0].Value)
}

// TestCheckIndex checks the index guards.
func TestCheckIndex(t *testing.T) {
	t.Parallel()

	p := testPacket(t, 2, 1)

	require.NoError(t, p.CheckInputIndex(1))
	require.True(t, IsError(p.CheckInputIndex(2), ErrIndex))
	require.True(t, IsError(p.CheckInputIndex(-1), ErrIndex))
	require.NoError(t, p.CheckOutputIndex(0))
	require.True(t, IsError(p.CheckOutputIndex(1), ErrIndex))
}

// TestPubKeyHex checks the map key encoding.
func TestPubKeyHex(t *testing.T) {
	t.Parallel()

	_, pub := testKey(1)
	raw := pub.SerializeCompressed()

	require.Equal(t, hex.EncodeToString(raw), PubKeyHex(raw))
}
