// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// testMergeParts returns three conflict free packets for the same unsigned
// transaction, each contributing different fields.
func testMergeParts(t *testing.T) (*Packet, *Packet, *Packet) {
	t.Helper()

	a := testPacket(t, 2, 1)
	a.Inputs[0].PartialSigs = SigMap{testPubKeyHex(1): testSig(1, "a")}
	a.Inputs[0].WitnessUtxo = wire.NewTxOut(1000, testP2WPKHScript(t, 1))
	a.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 0x01}, Value: []byte{1}}}

	b := testPacket(t, 2, 1)
	b.Inputs[0].PartialSigs = SigMap{testPubKeyHex(2): testSig(2, "b")}
	b.Inputs[0].SighashType = fn.Some(txscript.SigHashAll)
	b.Inputs[1].Bip32Derivation = DerivationMap{
		testPubKeyHex(3): {Fingerprint: 3, Path: []uint32{0, 3}},
	}
	b.Outputs[0].WitnessScript = []byte{txscript.OP_TRUE}

	c := testPacket(t, 2, 1)
	c.Inputs[0].WitnessUtxo = wire.NewTxOut(1000, testP2WPKHScript(t, 1))
	c.Inputs[1].Final = fn.Some(FinalScripts{
		ScriptSig: []byte{txscript.OP_TRUE},
	})
	c.Outputs[0].Bip32Derivation = DerivationMap{
		testPubKeyHex(4): {Fingerprint: 4, Path: []uint32{4}},
	}
	c.Unknowns = []*psbt.Unknown{{Key: []byte{0xfc, 0x00}, Value: []byte{2}}}

	return a, b, c
}

// TestMergeScenarioB checks that signatures under different keys for the same
// input are both kept.
func TestMergeScenarioB(t *testing.T) {
	t.Parallel()

	// Arrange: Two packets signing input 0 with keys X and Y.
	a := testPacket(t, 1, 1)
	a.Inputs[0].PartialSigs = SigMap{testPubKeyHex(1): testSig(1, "x")}

	b := testPacket(t, 1, 1)
	b.Inputs[0].PartialSigs = SigMap{testPubKeyHex(2): testSig(2, "y")}

	// Act: Merge them.
	merged, err := Merge(a, b)

	// Assert: Both signatures are present.
	require.NoError(t, err)
	require.Equal(t, SigMap{
		testPubKeyHex(1): testSig(1, "x"),
		testPubKeyHex(2): testSig(2, "y"),
	}, merged.Inputs[0].PartialSigs)
}

// TestMergeOrderIndependent checks that merge is commutative and associative
// over conflict free packets.
func TestMergeOrderIndependent(t *testing.T) {
	t.Parallel()

	// Arrange: Three packets with disjoint contributions.
	a, b, c := testMergeParts(t)

	// Act: Merge them in several orders and groupings.
	abc, err := Merge(a, b, c)
	require.NoError(t, err)

	cab, err := Merge(c, a, b)
	require.NoError(t, err)

	bca, err := Merge(b, c, a)
	require.NoError(t, err)

	ab, err := Merge(a, b)
	require.NoError(t, err)
	abThenC, err := Merge(ab, c)
	require.NoError(t, err)

	bc, err := Merge(b, c)
	require.NoError(t, err)
	aThenBC, err := Merge(a, bc)
	require.NoError(t, err)

	// Assert: Every result is identical, down to the encoding.
	for _, other := range []*Packet{cab, bca, abThenC, aThenBC} {
		require.Equal(t, abc, other)
	}

	rawABC, err := abc.Encode()
	require.NoError(t, err)
	rawCAB, err := cab.Encode()
	require.NoError(t, err)
	require.Equal(t, rawABC, rawCAB)

	// Assert: The union holds every contribution.
	require.Len(t, abc.Inputs[0].PartialSigs, 2)
	require.True(t, abc.Inputs[0].SighashType.IsSome())
	require.NotNil(t, abc.Inputs[0].WitnessUtxo)
	require.Len(t, abc.Inputs[1].Bip32Derivation, 1)
	require.IsType(t, Finalized{}, abc.Inputs[1].State())
	require.Equal(t, []byte{txscript.OP_TRUE}, abc.Outputs[0].WitnessScript)
	require.Len(t, abc.Outputs[0].Bip32Derivation, 1)
	require.Len(t, abc.Unknowns, 2)
	require.Equal(t, []byte{0xfc, 0x00}, abc.Unknowns[0].Key)
}

// TestMergeSingle checks that merging one packet yields an equal copy.
func TestMergeSingle(t *testing.T) {
	t.Parallel()

	a, _, _ := testMergeParts(t)

	merged, err := Merge(a)
	require.NoError(t, err)
	require.Equal(t, a, merged)
	require.NotSame(t, a, merged)
}

// TestMergeErrors checks the failure modes of merge.
func TestMergeErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		packets func(t *testing.T) []*Packet
		code    ErrorCode
	}{
		{
			name: "no packets",
			packets: func(t *testing.T) []*Packet {
				return nil
			},
			code: ErrFormat,
		},
		{
			name: "different unsigned transactions",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				b := testPacket(t, 1, 2)

				return []*Packet{a, a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting partial signature",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].PartialSigs = SigMap{
					testPubKeyHex(1): testSig(1, "a"),
				}
				b := testPacket(t, 1, 1)
				b.Inputs[0].PartialSigs = SigMap{
					testPubKeyHex(1): testSig(1, "b"),
				}

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting sighash type",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].SighashType = fn.Some(
					txscript.SigHashAll,
				)
				b := testPacket(t, 1, 1)
				b.Inputs[0].SighashType = fn.Some(
					txscript.SigHashNone,
				)

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting output witness script",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Outputs[0].WitnessScript = []byte{0x51}
				b := testPacket(t, 1, 1)
				b.Outputs[0].WitnessScript = []byte{0x52}

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting final scripts",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].Final = fn.Some(FinalScripts{
					Witness: wire.TxWitness{{0x01}},
				})
				b := testPacket(t, 1, 1)
				b.Inputs[0].Final = fn.Some(FinalScripts{
					Witness: wire.TxWitness{{0x02}},
				})

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting final scriptSig",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].Final = fn.Some(FinalScripts{
					ScriptSig: []byte{0x51},
				})
				b := testPacket(t, 1, 1)
				b.Inputs[0].Final = fn.Some(FinalScripts{
					ScriptSig: []byte{0x52},
					Witness:   wire.TxWitness{{0x01}},
				})

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting taproot key signature",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].Taproot.KeySpendSig = []byte{0x01}
				b := testPacket(t, 1, 1)
				b.Inputs[0].Taproot.KeySpendSig = []byte{0x02}

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting taproot leaf script",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Inputs[0].Taproot.LeafScript = []*psbt.TaprootTapLeafScript{{
					ControlBlock: []byte{0xc0},
					Script:       []byte{0x51},
				}}
				b := testPacket(t, 1, 1)
				b.Inputs[0].Taproot.LeafScript = []*psbt.TaprootTapLeafScript{{
					ControlBlock: []byte{0xc0},
					Script:       []byte{0x52},
				}}

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
		{
			name: "conflicting global unknown",
			packets: func(t *testing.T) []*Packet {
				a := testPacket(t, 1, 1)
				a.Unknowns = []*psbt.Unknown{
					{Key: []byte{0xfc}, Value: []byte{1}},
				}
				b := testPacket(t, 1, 1)
				b.Unknowns = []*psbt.Unknown{
					{Key: []byte{0xfc}, Value: []byte{2}},
				}

				return []*Packet{a, b}
			},
			code: ErrConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act: Merge the packets.
			merged, err := Merge(tc.packets(t)...)

			// Assert: The expected error code, no result.
			require.Nil(t, merged)
			require.True(t, IsError(err, tc.code), "got %v", err)
		})
	}
}

// TestMergeTxMismatchNamesIndex checks that the offending argument is named.
func TestMergeTxMismatchNamesIndex(t *testing.T) {
	t.Parallel()

	a := testPacket(t, 1, 1)
	b := testPacket(t, 2, 1)

	_, err := Merge(a, a, b)
	require.ErrorContains(t, err, "packet 2")
}

// TestMergeLeavesArgumentsUntouched checks that merging neither mutates nor
// aliases its arguments.
func TestMergeLeavesArgumentsUntouched(t *testing.T) {
	t.Parallel()

	// Arrange: Two packets and a snapshot of the first.
	a, b, _ := testMergeParts(t)
	snapshot := a.Clone()

	// Act: Merge, then mutate the result.
	merged, err := Merge(a, b)
	require.NoError(t, err)
	merged.Inputs[0].WitnessUtxo.Value = 1
	merged.Inputs[0].PartialSigs[testPubKeyHex(1)][0] = 0xff

	// Assert: The argument is unchanged.
	require.Equal(t, snapshot, a)
}

// TestMergeFinalHalves checks that a final scriptSig and a final witness
// contributed by different packets are combined.
func TestMergeFinalHalves(t *testing.T) {
	t.Parallel()

	// Arrange: One packet with only the scriptSig, one with only the
	// witness, and one with both where the scriptSig agrees.
	sigOnly := testPacket(t, 1, 1)
	sigOnly.Inputs[0].Final = fn.Some(FinalScripts{
		ScriptSig: []byte{0x16, 0x00, 0x14},
	})

	witnessOnly := testPacket(t, 1, 1)
	witnessOnly.Inputs[0].Final = fn.Some(FinalScripts{
		Witness: wire.TxWitness{{0xaa}, {0xbb}},
	})

	both := testPacket(t, 1, 1)
	both.Inputs[0].Final = fn.Some(FinalScripts{
		ScriptSig: []byte{0x16, 0x00, 0x14},
		Witness:   wire.TxWitness{{0xaa}, {0xbb}},
	})

	want := FinalScripts{
		ScriptSig: []byte{0x16, 0x00, 0x14},
		Witness:   wire.TxWitness{{0xaa}, {0xbb}},
	}

	testCases := []struct {
		name    string
		packets []*Packet
	}{
		{"scriptSig then witness", []*Packet{sigOnly, witnessOnly}},
		{"witness then scriptSig", []*Packet{witnessOnly, sigOnly}},
		{"scriptSig then both", []*Packet{sigOnly, both}},
		{"both then witness", []*Packet{both, witnessOnly}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act: Merge the packets.
			merged, err := Merge(tc.packets...)

			// Assert: The input carries both halves.
			require.NoError(t, err)
			require.True(t, merged.Inputs[0].Final.IsSome())
			require.True(t, want.Equal(
				merged.Inputs[0].Final.UnwrapOr(FinalScripts{}),
			))
			require.IsType(t, Finalized{}, merged.Inputs[0].State())
		})
	}
}

// TestMergeTaprootFields checks that BIP371 fields from different packets are
// combined field by field.
func TestMergeTaprootFields(t *testing.T) {
	t.Parallel()

	// Arrange: An updater packet with the internal key and one derivation,
	// and a signer packet with the key spend signature and another
	// derivation.
	var (
		internalKey = bytes.Repeat([]byte{0x02}, 32)
		keySig      = bytes.Repeat([]byte{0x03}, 64)
		derivA      = &psbt.TaprootBip32Derivation{
			XOnlyPubKey:          bytes.Repeat([]byte{0x0a}, 32),
			MasterKeyFingerprint: 1,
			Bip32Path:            []uint32{86, 0},
		}
		derivB = &psbt.TaprootBip32Derivation{
			XOnlyPubKey:          bytes.Repeat([]byte{0x0b}, 32),
			MasterKeyFingerprint: 2,
			Bip32Path:            []uint32{86, 1},
		}
	)

	updater := testPacket(t, 1, 1)
	updater.Inputs[0].Taproot.InternalKey = internalKey
	updater.Inputs[0].Taproot.Bip32Derivation = []*psbt.TaprootBip32Derivation{
		derivB,
	}
	updater.Outputs[0].Taproot.InternalKey = internalKey

	signer := testPacket(t, 1, 1)
	signer.Inputs[0].Taproot.KeySpendSig = keySig
	signer.Inputs[0].Taproot.Bip32Derivation = []*psbt.TaprootBip32Derivation{
		derivA, derivB,
	}
	signer.Outputs[0].Taproot.TapTree = []byte{0x00, 0xc0, 0x01, 0x51}

	// Act: Merge them in both orders.
	ab, err := Merge(updater, signer)
	require.NoError(t, err)

	ba, err := Merge(signer, updater)
	require.NoError(t, err)

	// Assert: Every field survives and the order does not matter.
	require.Equal(t, ab, ba)

	in := ab.Inputs[0].Taproot
	require.Equal(t, internalKey, in.InternalKey)
	require.Equal(t, keySig, in.KeySpendSig)
	require.Equal(t, []*psbt.TaprootBip32Derivation{derivA, derivB},
		in.Bip32Derivation)

	out := ab.Outputs[0].Taproot
	require.Equal(t, internalKey, out.InternalKey)
	require.Equal(t, []byte{0x00, 0xc0, 0x01, 0x51}, out.TapTree)
}
