// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txinfo

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btchal/finalizer"
	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/pkg/btcunit"
	"github.com/btcsuite/btchal/signer"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Decoder builds reports for one network.
type Decoder struct {
	signer *signer.Context

	// relayFee is the fee rate, in sat/kvb, below which an output is
	// reported as dust.
	relayFee btcutil.Amount
}

// NewDecoder creates a Decoder rendering addresses for the network of ctx
// and checking partial signatures with it.
func NewDecoder(ctx *signer.Context) *Decoder {
	return &Decoder{
		signer:   ctx,
		relayFee: txrules.DefaultRelayFeePerKb,
	}
}

// Packet returns the report of p.
func (d *Decoder) Packet(p *packet.Packet) PsbtInfo {
	info := PsbtInfo{
		UnsignedTx: d.Tx(p.UnsignedTx),
		Inputs:     make([]InputInfo, len(p.Inputs)),
		Outputs:    make([]OutputInfo, len(p.Outputs)),
		Fee:        d.fee(p),
	}

	for idx := range p.Inputs {
		info.Inputs[idx] = d.input(p, idx)
	}
	for idx := range p.Outputs {
		info.Outputs[idx] = d.output(&p.Outputs[idx])
	}

	return info
}

// Tx returns the report of tx.
func (d *Decoder) Tx(tx *wire.MsgTx) TxInfo {
	weight := btcunit.TxWeight(tx)

	info := TxInfo{
		Txid:     tx.TxHash().String(),
		Hash:     tx.WitnessHash().String(),
		Size:     tx.SerializeSize(),
		Weight:   weight.Uint64(),
		Vsize:    weight.ToVB().Uint64(),
		Version:  tx.Version,
		Locktime: tx.LockTime,
		Inputs:   make([]TxInInfo, len(tx.TxIn)),
		Outputs:  make([]TxOutInfo, len(tx.TxOut)),
	}

	for i, txIn := range tx.TxIn {
		info.Inputs[i] = TxInInfo{
			Prevout:   txIn.PreviousOutPoint.String(),
			Txid:      txIn.PreviousOutPoint.Hash.String(),
			Vout:      txIn.PreviousOutPoint.Index,
			ScriptSig: inputScriptInfo(txIn.SignatureScript),
			Sequence:  txIn.Sequence,
			Witness:   hexList(txIn.Witness),
		}
	}
	for i, txOut := range tx.TxOut {
		info.Outputs[i] = d.txOut(txOut)
	}

	return info
}

// Script returns the report of an output script.
func (d *Decoder) Script(script []byte) ScriptInfo {
	asm, _ := txscript.DisasmString(script)

	info := ScriptInfo{
		Hex:  hex.EncodeToString(script),
		Asm:  asm,
		Type: scriptType(script),
	}

	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy, txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy,
		txscript.WitnessV1TaprootTy:

		_, addrs, _, err := txscript.ExtractPkScriptAddrs(
			script, d.signer.ChainParams(),
		)
		if err == nil && len(addrs) == 1 {
			info.Address = addrs[0].EncodeAddress()
		}
	}

	return info
}

func (d *Decoder) txOut(txOut *wire.TxOut) TxOutInfo {
	return TxOutInfo{
		Value:        txOut.Value,
		ScriptPubKey: d.Script(txOut.PkScript),
		Dust:         txrules.IsDustOutput(txOut, d.relayFee),
	}
}

func (d *Decoder) input(p *packet.Packet, idx int) InputInfo {
	in := &p.Inputs[idx]

	var info InputInfo
	if in.NonWitnessUtxo != nil {
		tx := d.Tx(in.NonWitnessUtxo)
		info.NonWitnessUtxo = &tx
	}
	if in.WitnessUtxo != nil {
		txOut := d.txOut(in.WitnessUtxo)
		info.WitnessUtxo = &txOut
	}

	if len(in.PartialSigs) > 0 {
		info.PartialSigs = make(map[string]string, len(in.PartialSigs))
	}
	for _, pubKey := range packet.SortedKeys(in.PartialSigs) {
		info.PartialSigs[pubKey] = hex.EncodeToString(
			in.PartialSigs[pubKey],
		)

		// Signatures over an unknown spent output cannot be checked
		// and are not reported.
		err := d.signer.VerifyPartialSig(p, idx, pubKey)
		if packet.IsError(err, packet.ErrCrypto) {
			info.InvalidSigs = append(info.InvalidSigs, pubKey)
		}
	}

	in.SighashType.WhenSome(func(t txscript.SigHashType) {
		info.SighashType = packet.SighashTypeString(t)
	})

	info.RedeemScript = d.optionalScript(in.RedeemScript)
	info.WitnessScript = d.optionalScript(in.WitnessScript)
	info.Bip32Derivation = hdPaths(in.Bip32Derivation)
	info.HDKeyPaths = hdPaths(in.Bip32Derivation)

	in.Final.WhenSome(func(f packet.FinalScripts) {
		if f.ScriptSig != nil {
			scriptSig := inputScriptInfo(f.ScriptSig)
			info.FinalScriptSig = &scriptSig
		}
		info.FinalScriptWitness = hexList(f.Witness)
	})

	return info
}

func (d *Decoder) output(out *packet.Output) OutputInfo {
	return OutputInfo{
		RedeemScript:  d.optionalScript(out.RedeemScript),
		WitnessScript: d.optionalScript(out.WitnessScript),
		HDKeyPaths:    hdPaths(out.Bip32Derivation),
	}
}

func (d *Decoder) optionalScript(script []byte) *ScriptInfo {
	if script == nil {
		return nil
	}

	info := d.Script(script)

	return &info
}

// fee returns the fee report of p, or nil if any spent output is unknown.
func (d *Decoder) fee(p *packet.Packet) *FeeInfo {
	spent := make([]*wire.TxOut, len(p.Inputs))
	for idx := range p.Inputs {
		txOut, err := signer.SpentOutput(p, idx)
		if err != nil {
			return nil
		}
		spent[idx] = txOut
	}

	var fee btcutil.Amount
	for _, txOut := range spent {
		fee += btcutil.Amount(txOut.Value)
	}
	for _, txOut := range p.UnsignedTx.TxOut {
		fee -= btcutil.Amount(txOut.Value)
	}

	info := &FeeInfo{
		Fee:            fee,
		EstimatedVsize: estimateVsize(p, spent),
	}

	if tx, err := finalizer.New(finalizer.Config{}).Finalize(p); err == nil {
		info.Vsize = btcunit.TxWeight(tx).ToVB().Uint64()
	}

	vsize := info.Vsize
	if vsize == 0 {
		vsize = info.EstimatedVsize
	}
	if vsize != 0 {
		rate := btcunit.CalcSatPerVByte(fee, btcunit.NewVByte(vsize))
		info.FeeRate = &rate
	}

	return info
}

// estimateVsize returns the expected virtual size of p once signed, or zero
// if an input spends a script type the estimator does not cover.
func estimateVsize(p *packet.Packet, spent []*wire.TxOut) uint64 {
	var numP2PKH, numP2TR, numP2WPKH, numNested int
	for idx, txOut := range spent {
		switch script := txOut.PkScript; {
		case txscript.IsPayToPubKeyHash(script):
			numP2PKH++

		case txscript.IsPayToTaproot(script):
			numP2TR++

		case txscript.IsPayToWitnessPubKeyHash(script):
			numP2WPKH++

		case txscript.IsPayToScriptHash(script) &&
			txscript.IsPayToWitnessPubKeyHash(
				p.Inputs[idx].RedeemScript,
			):

			numNested++

		default:
			return 0
		}
	}

	vsize := txsizes.EstimateVirtualSize(
		numP2PKH, numP2TR, numP2WPKH, numNested, p.UnsignedTx.TxOut, 0,
	)

	return uint64(vsize)
}

// scriptType names the template of an output script.
func scriptType(script []byte) string {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyTy:
		return "p2pk"
	case txscript.PubKeyHashTy:
		return "p2pkh"
	case txscript.NullDataTy:
		return "opreturn"
	case txscript.ScriptHashTy:
		return "p2sh"
	case txscript.WitnessV0PubKeyHashTy:
		return "p2wpkh"
	case txscript.WitnessV0ScriptHashTy:
		return "p2wsh"
	case txscript.WitnessV1TaprootTy:
		return "p2tr"
	case txscript.MultiSigTy:
		return "multisig"
	default:
		return "unknown"
	}
}

func inputScriptInfo(script []byte) InputScriptInfo {
	asm, _ := txscript.DisasmString(script)

	return InputScriptInfo{
		Hex: hex.EncodeToString(script),
		Asm: asm,
	}
}

func hdPaths(m packet.DerivationMap) map[string]HDPathInfo {
	if len(m) == 0 {
		return nil
	}

	paths := make(map[string]HDPathInfo, len(m))
	for pubKey, d := range m {
		paths[pubKey] = HDPathInfo{
			MasterFingerprint: packet.FormatFingerprint(d.Fingerprint),
			Path:              packet.FormatDerivationPath(d.Path),
		}
	}

	return paths
}

func hexList(items [][]byte) []string {
	if len(items) == 0 {
		return nil
	}

	list := make([]string, len(items))
	for i, item := range items {
		list[i] = hex.EncodeToString(item)
	}

	return list
}
