// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Field names one editable PSBT field. The names double as the command line
// flag names of `hal psbt edit`.
type Field string

const (
	FieldNonWitnessUtxo     Field = "non-witness-utxo"
	FieldWitnessUtxo        Field = "witness-utxo"
	FieldPartialSigs        Field = "partial-sigs"
	FieldPartialSigsAdd     Field = "partial-sigs-add"
	FieldSighashType        Field = "sighash-type"
	FieldRedeemScript       Field = "redeem-script"
	FieldWitnessScript      Field = "witness-script"
	FieldHDKeyPaths         Field = "hd-keypaths"
	FieldHDKeyPathsAdd      Field = "hd-keypaths-add"
	FieldFinalScriptSig     Field = "final-script-sig"
	FieldFinalScriptWitness Field = "final-script-witness"
)

// TargetKind tells whether an edit targets an input or an output.
type TargetKind uint8

const (
	TargetInput TargetKind = iota
	TargetOutput
)

// String returns the kind in lowercase.
func (k TargetKind) String() string {
	if k == TargetOutput {
		return "output"
	}

	return "input"
}

// Target identifies exactly one input or one output of a packet.
type Target struct {
	Kind  TargetKind
	Index int
}

// InputTarget targets the input at idx.
func InputTarget(idx int) Target {
	return Target{Kind: TargetInput, Index: idx}
}

// OutputTarget targets the output at idx.
func OutputTarget(idx int) Target {
	return Target{Kind: TargetOutput, Index: idx}
}

// NewTarget builds a target from optional input and output indexes. Exactly
// one of them must be set.
func NewTarget(input, output fn.Option[int]) (Target, error) {
	switch {
	case input.IsSome() && output.IsSome():
		return Target{}, newError(ErrFormat, "can only edit an input "+
			"or an output at a time", nil)

	case input.IsSome():
		return InputTarget(input.UnwrapOr(0)), nil

	case output.IsSome():
		return OutputTarget(output.UnwrapOr(0)), nil

	default:
		return Target{}, newError(ErrFormat, "no input or output "+
			"index provided", nil)
	}
}

// inputEditors maps every field that can be set on an input to the function
// applying it.
var inputEditors = map[Field]func(*Input, string) error{
	FieldNonWitnessUtxo:     setNonWitnessUtxo,
	FieldWitnessUtxo:        setWitnessUtxo,
	FieldPartialSigs:        setPartialSigs,
	FieldPartialSigsAdd:     addPartialSigs,
	FieldSighashType:        setSighashType,
	FieldRedeemScript:       setInputRedeemScript,
	FieldWitnessScript:      setInputWitnessScript,
	FieldHDKeyPaths:         setInputKeyPaths,
	FieldHDKeyPathsAdd:      addInputKeyPaths,
	FieldFinalScriptSig:     setFinalScriptSig,
	FieldFinalScriptWitness: setFinalScriptWitness,
}

// outputEditors maps every field that can be set on an output to the function
// applying it.
var outputEditors = map[Field]func(*Output, string) error{
	FieldRedeemScript:  setOutputRedeemScript,
	FieldWitnessScript: setOutputWitnessScript,
	FieldHDKeyPaths:    setOutputKeyPaths,
	FieldHDKeyPathsAdd: addOutputKeyPaths,
}

// InputFields returns the fields that can be edited on an input, in the order
// the command line applies them.
func InputFields() []Field {
	return []Field{
		FieldNonWitnessUtxo, FieldWitnessUtxo, FieldPartialSigs,
		FieldPartialSigsAdd, FieldSighashType, FieldRedeemScript,
		FieldWitnessScript, FieldHDKeyPaths, FieldHDKeyPathsAdd,
		FieldFinalScriptSig, FieldFinalScriptWitness,
	}
}

// OutputFields returns the fields that can be edited on an output.
func OutputFields() []Field {
	return []Field{
		FieldRedeemScript, FieldWitnessScript, FieldHDKeyPaths,
		FieldHDKeyPathsAdd,
	}
}

// Edit sets a single field on a single input or output and returns the
// modified copy of the packet. The value is given in the textual form used on
// the command line.
//
// The target index is checked before anything else. On any error the
// returned packet is nil and p is left untouched.
func Edit(p *Packet, target Target, field Field, value string) (*Packet,
	error) {

	switch target.Kind {
	case TargetInput:
		if err := p.CheckInputIndex(target.Index); err != nil {
			return nil, err
		}

		apply, ok := inputEditors[field]
		if !ok {
			return nil, newError(ErrFormat, fmt.Sprintf("unknown "+
				"input field %q", field), nil)
		}

		c := p.Clone()
		if err := apply(&c.Inputs[target.Index], value); err != nil {
			return nil, fmt.Errorf("input %d %s: %w", target.Index,
				field, err)
		}

		log.Debugf("Set %s on input %d", field, target.Index)

		return c, nil

	case TargetOutput:
		if err := p.CheckOutputIndex(target.Index); err != nil {
			return nil, err
		}

		apply, ok := outputEditors[field]
		if !ok {
			return nil, newError(ErrFormat, fmt.Sprintf("field %q "+
				"cannot be set on an output", field), nil)
		}

		c := p.Clone()
		if err := apply(&c.Outputs[target.Index], value); err != nil {
			return nil, fmt.Errorf("output %d %s: %w", target.Index,
				field, err)
		}

		log.Debugf("Set %s on output %d", field, target.Index)

		return c, nil

	default:
		return nil, newError(ErrFormat, fmt.Sprintf("unknown target "+
			"kind %d", target.Kind), nil)
	}
}

func setNonWitnessUtxo(in *Input, value string) error {
	tx, err := ParseTx(value)
	if err != nil {
		return err
	}
	in.NonWitnessUtxo = tx

	return nil
}

func setWitnessUtxo(in *Input, value string) error {
	txOut, err := ParseTxOut(value)
	if err != nil {
		return err
	}
	in.WitnessUtxo = txOut

	return nil
}

// parseSigList parses a comma separated list of `<pubkey>:<signature>` pairs.
// A key listed twice must carry the same signature both times.
func parseSigList(value string) (SigMap, error) {
	sigs := make(SigMap)
	for _, pair := range strings.Split(value, ",") {
		key, sig, err := ParsePartialSig(pair)
		if err != nil {
			return nil, err
		}

		if err := insertSig(sigs, key, sig); err != nil {
			return nil, err
		}
	}

	return sigs, nil
}

// insertSig adds a signature to the map. Re-inserting the same signature is a
// no-op, inserting a different one for an existing key is a conflict.
func insertSig(sigs SigMap, key string, sig []byte) error {
	if cur, ok := sigs[key]; ok {
		if bytes.Equal(cur, sig) {
			return nil
		}

		return newError(ErrConflict, fmt.Sprintf("public key %s is "+
			"already in partial sigs with a different signature",
			key), nil)
	}
	sigs[key] = sig

	return nil
}

func setPartialSigs(in *Input, value string) error {
	sigs, err := parseSigList(value)
	if err != nil {
		return err
	}
	in.PartialSigs = sigs

	return nil
}

func addPartialSigs(in *Input, value string) error {
	sigs, err := parseSigList(value)
	if err != nil {
		return err
	}

	if in.PartialSigs == nil {
		in.PartialSigs = make(SigMap, len(sigs))
	}
	for _, key := range SortedKeys(sigs) {
		if err := insertSig(in.PartialSigs, key, sigs[key]); err != nil {
			return err
		}
	}

	return nil
}

func setSighashType(in *Input, value string) error {
	t, err := ParseSighashType(value)
	if err != nil {
		return err
	}
	in.SighashType = fn.Some(t)

	return nil
}

func setInputRedeemScript(in *Input, value string) error {
	script, err := ParseScript(value)
	if err != nil {
		return err
	}
	in.RedeemScript = script

	return nil
}

func setInputWitnessScript(in *Input, value string) error {
	script, err := ParseScript(value)
	if err != nil {
		return err
	}
	in.WitnessScript = script

	return nil
}

// parseKeyPathList parses a comma separated list of keypath triplets.
func parseKeyPathList(value string) (DerivationMap, error) {
	paths := make(DerivationMap)
	for _, triplet := range strings.Split(value, ",") {
		key, d, err := ParseKeyPath(triplet)
		if err != nil {
			return nil, err
		}

		if err := insertKeyPath(paths, key, d); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func insertKeyPath(paths DerivationMap, key string, d Derivation) error {
	if cur, ok := paths[key]; ok {
		if cur.Equal(d) {
			return nil
		}

		return newError(ErrConflict, fmt.Sprintf("public key %s is "+
			"already in HD keypaths with a different path", key),
			nil)
	}
	paths[key] = d

	return nil
}

func addKeyPaths(dst DerivationMap, value string) (DerivationMap, error) {
	paths, err := parseKeyPathList(value)
	if err != nil {
		return nil, err
	}

	if dst == nil {
		dst = make(DerivationMap, len(paths))
	}
	for _, key := range SortedKeys(paths) {
		if err := insertKeyPath(dst, key, paths[key]); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

func setInputKeyPaths(in *Input, value string) error {
	paths, err := parseKeyPathList(value)
	if err != nil {
		return err
	}
	in.Bip32Derivation = paths

	return nil
}

func addInputKeyPaths(in *Input, value string) error {
	paths, err := addKeyPaths(in.Bip32Derivation, value)
	if err != nil {
		return err
	}
	in.Bip32Derivation = paths

	return nil
}

func setFinalScriptSig(in *Input, value string) error {
	script, err := ParseScript(value)
	if err != nil {
		return err
	}

	final := in.Final.UnwrapOr(FinalScripts{})
	final.ScriptSig = script
	in.Final = fn.Some(final)

	return nil
}

func setFinalScriptWitness(in *Input, value string) error {
	witness, err := ParseWitnessList(value)
	if err != nil {
		return err
	}

	final := in.Final.UnwrapOr(FinalScripts{})
	final.Witness = witness
	in.Final = fn.Some(final)

	return nil
}

func setOutputRedeemScript(out *Output, value string) error {
	script, err := ParseScript(value)
	if err != nil {
		return err
	}
	out.RedeemScript = script

	return nil
}

func setOutputWitnessScript(out *Output, value string) error {
	script, err := ParseScript(value)
	if err != nil {
		return err
	}
	out.WitnessScript = script

	return nil
}

func setOutputKeyPaths(out *Output, value string) error {
	paths, err := parseKeyPathList(value)
	if err != nil {
		return err
	}
	out.Bip32Derivation = paths

	return nil
}

func addOutputKeyPaths(out *Output, value string) error {
	paths, err := addKeyPaths(out.Bip32Derivation, value)
	if err != nil {
		return err
	}
	out.Bip32Derivation = paths

	return nil
}
