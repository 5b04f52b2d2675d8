// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Decode parses a binary BIP174 PSBT. The wire format itself is handled by
// the btcd psbt package, which also keeps unknown keys around.
func Decode(raw []byte) (*Packet, error) {
	p, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, newError(ErrFormat, "invalid PSBT", err)
	}

	return FromPsbt(p)
}

// Encode serializes the packet into the binary BIP174 format.
func (p *Packet) Encode() ([]byte, error) {
	bp, err := p.ToPsbt()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := bp.Serialize(&b); err != nil {
		return nil, newError(ErrFormat, "unable to serialize PSBT", err)
	}

	return b.Bytes(), nil
}

// EncodeBase64 serializes the packet and encodes it as base64, the usual
// interchange encoding of a PSBT.
func (p *Packet) EncodeBase64() (string, error) {
	raw, err := p.Encode()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeHex serializes the packet and encodes it as hex.
func (p *Packet) EncodeHex() (string, error) {
	raw, err := p.Encode()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// FromPsbt converts a btcd psbt.Packet into a Packet.
func FromPsbt(bp *psbt.Packet) (*Packet, error) {
	if bp == nil || bp.UnsignedTx == nil {
		return nil, newError(ErrFormat, "missing unsigned transaction",
			nil)
	}

	if len(bp.Inputs) != len(bp.UnsignedTx.TxIn) ||
		len(bp.Outputs) != len(bp.UnsignedTx.TxOut) {

		return nil, newError(ErrFormat, fmt.Sprintf("PSBT has %d/%d "+
			"input/output maps for a transaction with %d/%d "+
			"inputs/outputs", len(bp.Inputs), len(bp.Outputs),
			len(bp.UnsignedTx.TxIn), len(bp.UnsignedTx.TxOut)), nil)
	}

	p := &Packet{
		UnsignedTx: bp.UnsignedTx.Copy(),
		Inputs:     make([]Input, len(bp.Inputs)),
		Outputs:    make([]Output, len(bp.Outputs)),
		Unknowns:   cloneUnknowns(bp.Unknowns),
	}

	for i := range bp.Inputs {
		in, err := inputFromPsbt(&bp.Inputs[i])
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		p.Inputs[i] = in
	}

	for i := range bp.Outputs {
		p.Outputs[i] = outputFromPsbt(&bp.Outputs[i])
	}

	return p, nil
}

// ToPsbt converts the packet into a btcd psbt.Packet. Map fields are emitted
// sorted by public key.
func (p *Packet) ToPsbt() (*psbt.Packet, error) {
	bp := &psbt.Packet{
		UnsignedTx: p.UnsignedTx.Copy(),
		Inputs:     make([]psbt.PInput, len(p.Inputs)),
		Outputs:    make([]psbt.POutput, len(p.Outputs)),
		Unknowns:   cloneUnknowns(p.Unknowns),
	}

	for i := range p.Inputs {
		in, err := p.Inputs[i].toPsbt()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		bp.Inputs[i] = in
	}

	for i := range p.Outputs {
		out, err := p.Outputs[i].toPsbt()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		bp.Outputs[i] = out
	}

	return bp, nil
}

func inputFromPsbt(pi *psbt.PInput) (Input, error) {
	in := Input{
		RedeemScript:  cloneBytes(pi.RedeemScript),
		WitnessScript: cloneBytes(pi.WitnessScript),
		Taproot: TaprootInput{
			KeySpendSig:     cloneBytes(pi.TaprootKeySpendSig),
			ScriptSpendSig:  pi.TaprootScriptSpendSig,
			LeafScript:      pi.TaprootLeafScript,
			Bip32Derivation: pi.TaprootBip32Derivation,
			InternalKey:     cloneBytes(pi.TaprootInternalKey),
			MerkleRoot:      cloneBytes(pi.TaprootMerkleRoot),
		},
		Unknowns: cloneUnknowns(pi.Unknowns),
	}

	if pi.NonWitnessUtxo != nil {
		in.NonWitnessUtxo = pi.NonWitnessUtxo.Copy()
	}
	if pi.WitnessUtxo != nil {
		in.WitnessUtxo = wire.NewTxOut(
			pi.WitnessUtxo.Value, cloneBytes(pi.WitnessUtxo.PkScript),
		)
	}

	if len(pi.PartialSigs) > 0 {
		in.PartialSigs = make(SigMap, len(pi.PartialSigs))
		for _, sig := range pi.PartialSigs {
			in.PartialSigs[PubKeyHex(sig.PubKey)] = cloneBytes(
				sig.Signature,
			)
		}
	}

	if pi.SighashType != 0 {
		in.SighashType = fn.Some(pi.SighashType)
	}

	in.Bip32Derivation = derivationsFromPsbt(pi.Bip32Derivation)

	if pi.FinalScriptSig != nil || pi.FinalScriptWitness != nil {
		final := FinalScripts{ScriptSig: cloneBytes(pi.FinalScriptSig)}
		if pi.FinalScriptWitness != nil {
			witness, err := ParseWitness(pi.FinalScriptWitness)
			if err != nil {
				return Input{}, err
			}
			final.Witness = witness
		}
		in.Final = fn.Some(final)
	}

	return in, nil
}

func (i *Input) toPsbt() (psbt.PInput, error) {
	pi := psbt.PInput{
		RedeemScript:           cloneBytes(i.RedeemScript),
		WitnessScript:          cloneBytes(i.WitnessScript),
		TaprootKeySpendSig:     cloneBytes(i.Taproot.KeySpendSig),
		TaprootScriptSpendSig:  i.Taproot.ScriptSpendSig,
		TaprootLeafScript:      i.Taproot.LeafScript,
		TaprootBip32Derivation: i.Taproot.Bip32Derivation,
		TaprootInternalKey:     cloneBytes(i.Taproot.InternalKey),
		TaprootMerkleRoot:      cloneBytes(i.Taproot.MerkleRoot),
		Unknowns:               cloneUnknowns(i.Unknowns),
	}

	if i.NonWitnessUtxo != nil {
		pi.NonWitnessUtxo = i.NonWitnessUtxo.Copy()
	}
	if i.WitnessUtxo != nil {
		pi.WitnessUtxo = wire.NewTxOut(
			i.WitnessUtxo.Value, cloneBytes(i.WitnessUtxo.PkScript),
		)
	}

	for _, key := range SortedKeys(i.PartialSigs) {
		pubKey, err := hex.DecodeString(key)
		if err != nil {
			return psbt.PInput{}, newError(ErrFormat,
				"invalid partial sig public key", err)
		}
		pi.PartialSigs = append(pi.PartialSigs, &psbt.PartialSig{
			PubKey:    pubKey,
			Signature: cloneBytes(i.PartialSigs[key]),
		})
	}

	pi.SighashType = i.SighashType.UnwrapOr(0)

	derivations, err := derivationsToPsbt(i.Bip32Derivation)
	if err != nil {
		return psbt.PInput{}, err
	}
	pi.Bip32Derivation = derivations

	if i.Final.IsSome() {
		final := i.Final.UnwrapOr(FinalScripts{})
		pi.FinalScriptSig = cloneBytes(final.ScriptSig)
		if final.Witness != nil {
			witness, err := SerializeWitness(final.Witness)
			if err != nil {
				return psbt.PInput{}, err
			}
			pi.FinalScriptWitness = witness
		}
	}

	return pi, nil
}

func outputFromPsbt(po *psbt.POutput) Output {
	return Output{
		RedeemScript:    cloneBytes(po.RedeemScript),
		WitnessScript:   cloneBytes(po.WitnessScript),
		Bip32Derivation: derivationsFromPsbt(po.Bip32Derivation),
		Taproot: TaprootOutput{
			InternalKey:     cloneBytes(po.TaprootInternalKey),
			TapTree:         cloneBytes(po.TaprootTapTree),
			Bip32Derivation: po.TaprootBip32Derivation,
		},
		Unknowns: cloneUnknowns(po.Unknowns),
	}
}

func (o *Output) toPsbt() (psbt.POutput, error) {
	derivations, err := derivationsToPsbt(o.Bip32Derivation)
	if err != nil {
		return psbt.POutput{}, err
	}

	return psbt.POutput{
		RedeemScript:           cloneBytes(o.RedeemScript),
		WitnessScript:          cloneBytes(o.WitnessScript),
		Bip32Derivation:        derivations,
		TaprootInternalKey:     cloneBytes(o.Taproot.InternalKey),
		TaprootTapTree:         cloneBytes(o.Taproot.TapTree),
		TaprootBip32Derivation: o.Taproot.Bip32Derivation,
		Unknowns:               cloneUnknowns(o.Unknowns),
	}, nil
}

func derivationsFromPsbt(ds []*psbt.Bip32Derivation) DerivationMap {
	if len(ds) == 0 {
		return nil
	}

	m := make(DerivationMap, len(ds))
	for _, d := range ds {
		m[PubKeyHex(d.PubKey)] = Derivation{
			Fingerprint: d.MasterKeyFingerprint,
			Path:        append([]uint32(nil), d.Bip32Path...),
		}
	}

	return m
}

func derivationsToPsbt(m DerivationMap) ([]*psbt.Bip32Derivation, error) {
	var ds []*psbt.Bip32Derivation
	for _, key := range SortedKeys(m) {
		pubKey, err := hex.DecodeString(key)
		if err != nil {
			return nil, newError(ErrFormat, "invalid derivation "+
				"public key", err)
		}

		d := m[key]
		ds = append(ds, &psbt.Bip32Derivation{
			PubKey:               pubKey,
			MasterKeyFingerprint: d.Fingerprint,
			Bip32Path:            append([]uint32(nil), d.Path...),
		})
	}

	return ds, nil
}

// ParseWitness decodes a witness stack in the PSBT final witness encoding: a
// compact size item count followed by every item as a var-bytes string.
func ParseWitness(raw []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(raw)

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, newError(ErrFormat, "invalid witness item count",
			err)
	}

	// Each item takes at least one byte, so a count larger than the
	// remaining data is malformed.
	if count > uint64(r.Len()) {
		return nil, newError(ErrFormat, fmt.Sprintf("witness claims "+
			"%d items in %d bytes", count, r.Len()), nil)
	}

	witness := make(wire.TxWitness, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(
			r, 0, txscript.MaxScriptSize, "witness",
		)
		if err != nil {
			return nil, newError(ErrFormat, "invalid witness item",
				err)
		}
		witness[i] = item
	}

	if r.Len() != 0 {
		return nil, newError(ErrFormat, "trailing bytes after witness",
			nil)
	}

	return witness, nil
}

// SerializeWitness encodes a witness stack in the PSBT final witness
// encoding.
func SerializeWitness(witness wire.TxWitness) ([]byte, error) {
	var b bytes.Buffer
	if err := psbt.WriteTxWitness(&b, witness); err != nil {
		return nil, newError(ErrFormat, "unable to serialize witness",
			err)
	}

	return b.Bytes(), nil
}
