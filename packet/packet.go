// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package packet implements the PSBT field store together with the two
// operations that only shuffle fields around: the field editor and the merge
// engine.
//
// A Packet is built once from an unsigned transaction and then mutated by
// returning modified copies. Every operation in this package leaves its
// arguments untouched when it fails.
package packet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// SigMap maps a hex encoded public key to a DER signature with the sighash
// type byte appended.
type SigMap map[string][]byte

// Derivation is the BIP32 origin of a key: the fingerprint of the master key
// and the path from the master key to the key itself.
type Derivation struct {
	// Fingerprint is the master key fingerprint in the little-endian
	// integer form used by the btcd psbt package.
	Fingerprint uint32

	// Path is the derivation path, hardened indexes include
	// hdkeychain.HardenedKeyStart.
	Path []uint32
}

// Equal returns whether two derivations describe the same origin.
func (d Derivation) Equal(o Derivation) bool {
	return d.Fingerprint == o.Fingerprint && slices.Equal(d.Path, o.Path)
}

// DerivationMap maps a hex encoded public key to its BIP32 origin.
type DerivationMap map[string]Derivation

// FinalScripts is the completed spending proof of an input.
type FinalScripts struct {
	// ScriptSig is the final signature script. It is nil when the input
	// carries no final scriptSig field.
	ScriptSig []byte

	// Witness is the final witness stack. It is nil when the input
	// carries no final witness field.
	Witness wire.TxWitness
}

// Equal returns whether both proofs are byte-for-byte identical.
func (f FinalScripts) Equal(o FinalScripts) bool {
	if !bytesEqualNil(f.ScriptSig, o.ScriptSig) {
		return false
	}

	if (f.Witness == nil) != (o.Witness == nil) {
		return false
	}

	return witnessEqual(f.Witness, o.Witness)
}

// witnessEqual compares two witness stacks element by element.
func witnessEqual(a, b wire.TxWitness) bool {
	return slices.EqualFunc(a, b, func(x, y []byte) bool {
		return bytes.Equal(x, y)
	})
}

// TaprootInput holds the BIP371 input fields. They are not interpreted by
// this engine but must survive decoding, merging and encoding.
type TaprootInput struct {
	KeySpendSig     []byte
	ScriptSpendSig  []*psbt.TaprootScriptSpendSig
	LeafScript      []*psbt.TaprootTapLeafScript
	Bip32Derivation []*psbt.TaprootBip32Derivation
	InternalKey     []byte
	MerkleRoot      []byte
}

// IsEmpty returns true if no taproot field is set.
func (t TaprootInput) IsEmpty() bool {
	return len(t.KeySpendSig) == 0 && len(t.ScriptSpendSig) == 0 &&
		len(t.LeafScript) == 0 && len(t.Bip32Derivation) == 0 &&
		len(t.InternalKey) == 0 && len(t.MerkleRoot) == 0
}

// TaprootOutput holds the BIP371 output fields, carried opaquely.
type TaprootOutput struct {
	InternalKey     []byte
	TapTree         []byte
	Bip32Derivation []*psbt.TaprootBip32Derivation
}

// IsEmpty returns true if no taproot field is set.
func (t TaprootOutput) IsEmpty() bool {
	return len(t.InternalKey) == 0 && len(t.TapTree) == 0 &&
		len(t.Bip32Derivation) == 0
}

// Input is the per-input record of a PSBT.
type Input struct {
	// NonWitnessUtxo is the full previous transaction.
	NonWitnessUtxo *wire.MsgTx

	// WitnessUtxo is the single previous output being spent.
	WitnessUtxo *wire.TxOut

	// PartialSigs holds the signatures collected so far.
	PartialSigs SigMap

	// SighashType is the signature scope signers should use.
	SighashType fn.Option[txscript.SigHashType]

	RedeemScript  []byte
	WitnessScript []byte

	// Bip32Derivation records the origin of the keys involved.
	Bip32Derivation DerivationMap

	// Final is the completed spending proof. Once set the signing
	// material above is inert.
	Final fn.Option[FinalScripts]

	Taproot  TaprootInput
	Unknowns []*psbt.Unknown
}

// Output is the per-output record of a PSBT. Outputs are never signed.
type Output struct {
	RedeemScript    []byte
	WitnessScript   []byte
	Bip32Derivation DerivationMap

	Taproot  TaprootOutput
	Unknowns []*psbt.Unknown
}

// Packet is the PSBT container: the unsigned transaction and one record per
// input and per output, positionally aligned with the transaction.
type Packet struct {
	// UnsignedTx is the transaction skeleton. It must not be modified
	// once the packet is created.
	UnsignedTx *wire.MsgTx

	Inputs  []Input
	Outputs []Output

	// Unknowns are the global key-value pairs this engine does not
	// interpret.
	Unknowns []*psbt.Unknown
}

// New creates an empty packet for the given unsigned transaction. This is the
// create operation: every per-input and per-output field starts out unset.
func New(tx *wire.MsgTx) (*Packet, error) {
	if tx == nil {
		return nil, newError(ErrFormat, "nil transaction", nil)
	}

	for i, txIn := range tx.TxIn {
		if len(txIn.SignatureScript) != 0 || len(txIn.Witness) != 0 {
			return nil, newError(ErrFormat, fmt.Sprintf("input %d "+
				"of the unsigned transaction has a signature "+
				"script or witness", i), nil)
		}
	}

	p := &Packet{
		UnsignedTx: tx.Copy(),
		Inputs:     make([]Input, len(tx.TxIn)),
		Outputs:    make([]Output, len(tx.TxOut)),
	}

	log.Debugf("Created packet for tx %v with %d inputs and %d outputs",
		tx.TxHash(), len(tx.TxIn), len(tx.TxOut))

	return p, nil
}

// UnsignedTxBytes returns the serialization of the unsigned transaction.
func (p *Packet) UnsignedTxBytes() ([]byte, error) {
	var b bytes.Buffer
	if err := p.UnsignedTx.Serialize(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// CheckInputIndex returns an ErrIndex error if idx is not a valid input index.
func (p *Packet) CheckInputIndex(idx int) error {
	if idx < 0 || idx >= len(p.Inputs) {
		return newError(ErrIndex, fmt.Sprintf("input index %d out of "+
			"range, packet has %d inputs", idx, len(p.Inputs)), nil)
	}

	return nil
}

// CheckOutputIndex returns an ErrIndex error if idx is not a valid output
// index.
func (p *Packet) CheckOutputIndex(idx int) error {
	if idx < 0 || idx >= len(p.Outputs) {
		return newError(ErrIndex, fmt.Sprintf("output index %d out of "+
			"range, packet has %d outputs", idx, len(p.Outputs)),
			nil)
	}

	return nil
}

// Clone returns a deep copy of the packet.
func (p *Packet) Clone() *Packet {
	c := &Packet{
		UnsignedTx: p.UnsignedTx.Copy(),
		Inputs:     make([]Input, len(p.Inputs)),
		Outputs:    make([]Output, len(p.Outputs)),
		Unknowns:   cloneUnknowns(p.Unknowns),
	}
	for i := range p.Inputs {
		c.Inputs[i] = p.Inputs[i].Clone()
	}
	for i := range p.Outputs {
		c.Outputs[i] = p.Outputs[i].Clone()
	}

	return c
}

// Clone returns a deep copy of the input.
func (i *Input) Clone() Input {
	c := Input{
		PartialSigs:     cloneSigs(i.PartialSigs),
		SighashType:     i.SighashType,
		RedeemScript:    cloneBytes(i.RedeemScript),
		WitnessScript:   cloneBytes(i.WitnessScript),
		Bip32Derivation: cloneDerivations(i.Bip32Derivation),
		Taproot:         i.Taproot,
		Unknowns:        cloneUnknowns(i.Unknowns),
	}
	if i.NonWitnessUtxo != nil {
		c.NonWitnessUtxo = i.NonWitnessUtxo.Copy()
	}
	if i.WitnessUtxo != nil {
		c.WitnessUtxo = wire.NewTxOut(
			i.WitnessUtxo.Value, cloneBytes(i.WitnessUtxo.PkScript),
		)
	}
	i.Final.WhenSome(func(f FinalScripts) {
		c.Final = fn.Some(cloneFinal(f))
	})

	return c
}

// Clone returns a deep copy of the output.
func (o *Output) Clone() Output {
	return Output{
		RedeemScript:    cloneBytes(o.RedeemScript),
		WitnessScript:   cloneBytes(o.WitnessScript),
		Bip32Derivation: cloneDerivations(o.Bip32Derivation),
		Taproot:         o.Taproot,
		Unknowns:        cloneUnknowns(o.Unknowns),
	}
}

// InputState is the lifecycle state of an input. It is a closed set: the only
// implementations are Unsigned, PartiallySigned and Finalized.
type InputState interface {
	isInputState()
}

// Unsigned is the state of an input with neither signatures nor a final
// spending proof.
type Unsigned struct{}

// PartiallySigned is the state of an input that carries signing material but
// no final spending proof yet.
type PartiallySigned struct {
	Sigs          SigMap
	RedeemScript  []byte
	WitnessScript []byte
}

// Finalized is the state of an input with a completed spending proof.
type Finalized struct {
	FinalScripts
}

func (Unsigned) isInputState()        {}
func (PartiallySigned) isInputState() {}
func (Finalized) isInputState()       {}

// State returns the lifecycle state of the input. A final spending proof
// always wins: signatures and scripts next to it are ignored.
func (i *Input) State() InputState {
	if i.Final.IsSome() {
		return Finalized{i.Final.UnwrapOr(FinalScripts{})}
	}

	if len(i.PartialSigs) > 0 {
		return PartiallySigned{
			Sigs:          i.PartialSigs,
			RedeemScript:  i.RedeemScript,
			WitnessScript: i.WitnessScript,
		}
	}

	return Unsigned{}
}

// SortedKeys returns the keys of a map in ascending order so that callers
// iterate over PSBT maps deterministically.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// PubKeyHex returns the map key used for a serialized public key.
func PubKeyHex(pubKey []byte) string {
	return hex.EncodeToString(pubKey)
}

func bytesEqualNil(a, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}

	return bytes.Equal(a, b)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return bytes.Clone(b)
}

func cloneSigs(m SigMap) SigMap {
	if m == nil {
		return nil
	}

	c := make(SigMap, len(m))
	for k, v := range m {
		c[k] = cloneBytes(v)
	}

	return c
}

func cloneDerivations(m DerivationMap) DerivationMap {
	if m == nil {
		return nil
	}

	c := make(DerivationMap, len(m))
	for k, v := range m {
		c[k] = Derivation{
			Fingerprint: v.Fingerprint,
			Path:        slices.Clone(v.Path),
		}
	}

	return c
}

func cloneFinal(f FinalScripts) FinalScripts {
	c := FinalScripts{ScriptSig: cloneBytes(f.ScriptSig)}
	if f.Witness != nil {
		c.Witness = make(wire.TxWitness, len(f.Witness))
		for i, item := range f.Witness {
			c.Witness[i] = cloneBytes(item)
		}
	}

	return c
}

func cloneUnknowns(u []*psbt.Unknown) []*psbt.Unknown {
	if u == nil {
		return nil
	}

	c := make([]*psbt.Unknown, len(u))
	for i, kv := range u {
		c[i] = &psbt.Unknown{
			Key:   cloneBytes(kv.Key),
			Value: cloneBytes(kv.Value),
		}
	}

	return c
}
