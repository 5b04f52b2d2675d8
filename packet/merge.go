// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Merge combines packets that share the same unsigned transaction into a
// single packet. This is the Combiner role of BIP 174.
//
// The merge works as follows:
//  1. Compatibility: every unsigned transaction must serialize identically to
//     the first one, otherwise an ErrConflict naming the offending argument
//     index is returned.
//  2. Union: starting from an empty packet, every argument is folded in. Map
//     fields (partial signatures, derivations, unknowns) are unioned key by
//     key and optional scalar fields are taken from whichever side sets them.
//  3. Conflict detection: a key or scalar present on both sides with
//     different values is an ErrConflict.
//
// Because every fold is a union that refuses to pick a winner, the result
// does not depend on the order of the arguments.
func Merge(packets ...*Packet) (*Packet, error) {
	if len(packets) == 0 {
		return nil, newError(ErrFormat, "no packets to merge", nil)
	}

	base, err := packets[0].UnsignedTxBytes()
	if err != nil {
		return nil, newError(ErrFormat, "unable to serialize unsigned "+
			"transaction of packet 0", err)
	}

	for i, p := range packets[1:] {
		txBytes, err := p.UnsignedTxBytes()
		if err != nil {
			return nil, newError(ErrFormat, fmt.Sprintf("unable to "+
				"serialize unsigned transaction of packet %d",
				i+1), err)
		}

		if !bytes.Equal(base, txBytes) {
			return nil, newError(ErrConflict, fmt.Sprintf("packet "+
				"%d has a different unsigned transaction than "+
				"packet 0", i+1), nil)
		}
	}

	first := packets[0]
	merged := &Packet{
		UnsignedTx: first.UnsignedTx.Copy(),
		Inputs:     make([]Input, len(first.Inputs)),
		Outputs:    make([]Output, len(first.Outputs)),
	}

	for pIdx, p := range packets {
		unknowns, err := mergeUnknowns(merged.Unknowns, p.Unknowns)
		if err != nil {
			return nil, fmt.Errorf("packet %d global: %w", pIdx, err)
		}
		merged.Unknowns = unknowns

		for i := range p.Inputs {
			err := mergeInput(&merged.Inputs[i], &p.Inputs[i])
			if err != nil {
				return nil, fmt.Errorf("packet %d input %d: %w",
					pIdx, i, err)
			}
		}

		for i := range p.Outputs {
			err := mergeOutput(&merged.Outputs[i], &p.Outputs[i])
			if err != nil {
				return nil, fmt.Errorf("packet %d output %d: %w",
					pIdx, i, err)
			}
		}
	}

	log.Debugf("Merged %d packets for tx %v", len(packets),
		merged.UnsignedTx.TxHash())
	log.Tracef("Merged packet: %v", newLogClosure(func() string {
		return spew.Sdump(merged)
	}))

	return merged, nil
}

// mergeInput folds a copy of src into dst. dst is only assigned once every
// field merged cleanly.
func mergeInput(dst, src *Input) error {
	var (
		out = dst.Clone()
		in  = src.Clone()
		err error
	)
	src = &in

	out.NonWitnessUtxo, err = mergeValue(
		out.NonWitnessUtxo, src.NonWitnessUtxo, "non_witness_utxo",
		func(tx *wire.MsgTx) bool { return tx != nil }, txsEqual,
	)
	if err != nil {
		return err
	}

	out.WitnessUtxo, err = mergeValue(
		out.WitnessUtxo, src.WitnessUtxo, "witness_utxo",
		func(o *wire.TxOut) bool { return o != nil }, psbt.TxOutsEqual,
	)
	if err != nil {
		return err
	}

	out.PartialSigs, err = mergeMap(
		out.PartialSigs, src.PartialSigs, "partial_sigs",
		bytes.Equal,
	)
	if err != nil {
		return err
	}

	out.SighashType, err = mergeOption(
		out.SighashType, src.SighashType, "sighash_type",
		func(a, b txscript.SigHashType) bool { return a == b },
	)
	if err != nil {
		return err
	}

	out.RedeemScript, err = mergeScript(
		out.RedeemScript, src.RedeemScript, "redeem_script",
	)
	if err != nil {
		return err
	}

	out.WitnessScript, err = mergeScript(
		out.WitnessScript, src.WitnessScript, "witness_script",
	)
	if err != nil {
		return err
	}

	out.Bip32Derivation, err = mergeMap(
		out.Bip32Derivation, src.Bip32Derivation,
		"bip32_derivation", Derivation.Equal,
	)
	if err != nil {
		return err
	}

	out.Final, err = mergeFinal(out.Final, src.Final)
	if err != nil {
		return err
	}

	out.Taproot, err = mergeTaprootInput(out.Taproot, src.Taproot)
	if err != nil {
		return err
	}

	out.Unknowns, err = mergeUnknowns(out.Unknowns, src.Unknowns)
	if err != nil {
		return err
	}

	*dst = out

	return nil
}

// mergeOutput folds a copy of src into dst.
func mergeOutput(dst, src *Output) error {
	var (
		out = dst.Clone()
		in  = src.Clone()
		err error
	)
	src = &in

	out.RedeemScript, err = mergeScript(
		out.RedeemScript, src.RedeemScript, "redeem_script",
	)
	if err != nil {
		return err
	}

	out.WitnessScript, err = mergeScript(
		out.WitnessScript, src.WitnessScript, "witness_script",
	)
	if err != nil {
		return err
	}

	out.Bip32Derivation, err = mergeMap(
		out.Bip32Derivation, src.Bip32Derivation,
		"bip32_derivation", Derivation.Equal,
	)
	if err != nil {
		return err
	}

	out.Taproot, err = mergeTaprootOutput(out.Taproot, src.Taproot)
	if err != nil {
		return err
	}

	out.Unknowns, err = mergeUnknowns(out.Unknowns, src.Unknowns)
	if err != nil {
		return err
	}

	*dst = out

	return nil
}

// mergeFinal merges the final scriptSig and the final witness independently,
// so one side may complete the half the other side lacks.
func mergeFinal(a, b fn.Option[FinalScripts]) (fn.Option[FinalScripts],
	error) {

	if b.IsNone() {
		return a, nil
	}
	if a.IsNone() {
		return b, nil
	}

	var (
		x, y = a.UnwrapOr(FinalScripts{}), b.UnwrapOr(FinalScripts{})
		out  FinalScripts
		err  error
	)

	out.ScriptSig, err = mergeScript(
		x.ScriptSig, y.ScriptSig, "final_script_sig",
	)
	if err != nil {
		return fn.None[FinalScripts](), err
	}

	out.Witness, err = mergeValue(
		x.Witness, y.Witness, "final_script_witness",
		func(w wire.TxWitness) bool { return w != nil }, witnessEqual,
	)
	if err != nil {
		return fn.None[FinalScripts](), err
	}

	return fn.Some(out), nil
}

// mergeTaprootInput merges the BIP371 input fields one by one. Signatures,
// leaf scripts and derivations are unioned by their key.
func mergeTaprootInput(dst, src TaprootInput) (TaprootInput, error) {
	var (
		out = dst
		err error
	)

	out.KeySpendSig, err = mergeScript(
		dst.KeySpendSig, src.KeySpendSig, "tap_key_sig",
	)
	if err != nil {
		return TaprootInput{}, err
	}

	out.InternalKey, err = mergeScript(
		dst.InternalKey, src.InternalKey, "tap_internal_key",
	)
	if err != nil {
		return TaprootInput{}, err
	}

	out.MerkleRoot, err = mergeScript(
		dst.MerkleRoot, src.MerkleRoot, "tap_merkle_root",
	)
	if err != nil {
		return TaprootInput{}, err
	}

	out.ScriptSpendSig, err = mergeKeyed(
		dst.ScriptSpendSig, src.ScriptSpendSig, "tap_script_sig",
		func(s *psbt.TaprootScriptSpendSig) string {
			return hex.EncodeToString(s.XOnlyPubKey) +
				hex.EncodeToString(s.LeafHash)
		},
	)
	if err != nil {
		return TaprootInput{}, err
	}

	out.LeafScript, err = mergeKeyed(
		dst.LeafScript, src.LeafScript, "tap_leaf_script",
		func(l *psbt.TaprootTapLeafScript) string {
			return hex.EncodeToString(l.ControlBlock)
		},
	)
	if err != nil {
		return TaprootInput{}, err
	}

	out.Bip32Derivation, err = mergeKeyed(
		dst.Bip32Derivation, src.Bip32Derivation, "tap_bip32_derivation",
		tapDerivationKey,
	)
	if err != nil {
		return TaprootInput{}, err
	}

	return out, nil
}

// mergeTaprootOutput merges the BIP371 output fields one by one.
func mergeTaprootOutput(dst, src TaprootOutput) (TaprootOutput, error) {
	var (
		out = dst
		err error
	)

	out.InternalKey, err = mergeScript(
		dst.InternalKey, src.InternalKey, "tap_internal_key",
	)
	if err != nil {
		return TaprootOutput{}, err
	}

	out.TapTree, err = mergeScript(dst.TapTree, src.TapTree, "tap_tree")
	if err != nil {
		return TaprootOutput{}, err
	}

	out.Bip32Derivation, err = mergeKeyed(
		dst.Bip32Derivation, src.Bip32Derivation, "tap_bip32_derivation",
		tapDerivationKey,
	)
	if err != nil {
		return TaprootOutput{}, err
	}

	return out, nil
}

func tapDerivationKey(d *psbt.TaprootBip32Derivation) string {
	return hex.EncodeToString(d.XOnlyPubKey)
}

// mergeKeyed unions two lists of records identified by key. When both sides
// hold entries the result is ordered by key so that it does not depend on the
// merge order.
func mergeKeyed[T any](dst, src []T, field string,
	key func(T) string) ([]T, error) {

	if len(src) == 0 {
		return dst, nil
	}
	if len(dst) == 0 {
		return src, nil
	}

	toMap := func(list []T) map[string]T {
		m := make(map[string]T, len(list))
		for _, v := range list {
			m[key(v)] = v
		}

		return m
	}

	merged, err := mergeMap(
		toMap(dst), toMap(src), field,
		func(a, b T) bool { return reflect.DeepEqual(a, b) },
	)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(merged))
	for _, k := range SortedKeys(merged) {
		out = append(out, merged[k])
	}

	return out, nil
}

// mergeMap unions two maps. A key missing on one side is taken from the
// other, a key present on both sides must map to equal values.
func mergeMap[V any](dst, src map[string]V, field string,
	eq func(a, b V) bool) (map[string]V, error) {

	if len(src) == 0 {
		return dst, nil
	}

	out := make(map[string]V, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}

	for _, k := range SortedKeys(src) {
		cur, ok := out[k]
		switch {
		case !ok:
			out[k] = src[k]

		case !eq(cur, src[k]):
			return nil, newError(ErrConflict, fmt.Sprintf(
				"conflicting %s values for key %s", field, k,
			), nil)
		}
	}

	return out, nil
}

// mergeOption merges two optional values: None yields to Some, two Somes must
// be equal.
func mergeOption[T any](a, b fn.Option[T], field string,
	eq func(a, b T) bool) (fn.Option[T], error) {

	if b.IsNone() {
		return a, nil
	}
	if a.IsNone() {
		return b, nil
	}

	var zero T
	if !eq(a.UnwrapOr(zero), b.UnwrapOr(zero)) {
		return fn.None[T](), newError(ErrConflict, fmt.Sprintf(
			"conflicting %s values", field,
		), nil)
	}

	return a, nil
}

// mergeValue is mergeOption for types whose zero value means unset.
func mergeValue[T any](a, b T, field string, isSet func(T) bool,
	eq func(a, b T) bool) (T, error) {

	toOption := func(v T) fn.Option[T] {
		if isSet(v) {
			return fn.Some(v)
		}

		return fn.None[T]()
	}

	merged, err := mergeOption(toOption(a), toOption(b), field, eq)
	if err != nil {
		var zero T
		return zero, err
	}

	return merged.UnwrapOr(a), nil
}

func mergeScript(a, b []byte, field string) ([]byte, error) {
	return mergeValue(
		a, b, field, func(s []byte) bool { return s != nil },
		bytes.Equal,
	)
}

// mergeUnknowns unions unknown key-value pairs by key. The result is ordered
// by key so that it does not depend on the merge order.
func mergeUnknowns(dst, src []*psbt.Unknown) ([]*psbt.Unknown, error) {
	if len(dst) == 0 && len(src) == 0 {
		return dst, nil
	}

	toMap := func(u []*psbt.Unknown) map[string][]byte {
		m := make(map[string][]byte, len(u))
		for _, kv := range u {
			m[hex.EncodeToString(kv.Key)] = kv.Value
		}

		return m
	}

	merged, err := mergeMap(toMap(dst), toMap(src), "unknown", bytes.Equal)
	if err != nil {
		return nil, err
	}

	out := make([]*psbt.Unknown, 0, len(merged))
	for _, k := range SortedKeys(merged) {
		key, _ := hex.DecodeString(k)
		out = append(out, &psbt.Unknown{
			Key:   key,
			Value: cloneBytes(merged[k]),
		})
	}

	return out, nil
}

// txsEqual compares two transactions by their full serialization, witness
// included.
func txsEqual(a, b *wire.MsgTx) bool {
	var ba, bb bytes.Buffer
	if a.Serialize(&ba) != nil || b.Serialize(&bb) != nil {
		return false
	}

	return bytes.Equal(ba.Bytes(), bb.Bytes())
}
