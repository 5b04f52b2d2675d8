// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txinfo builds the structured report printed by `hal psbt decode`.
//
// Every report type carries both json and yaml tags with the same names so
// that both renderings share one shape.
package txinfo

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btchal/pkg/btcunit"
)

// ScriptInfo describes an output script or a redeem/witness script.
type ScriptInfo struct {
	Hex     string `json:"hex" yaml:"hex"`
	Asm     string `json:"asm" yaml:"asm"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// InputScriptInfo describes a signature script.
type InputScriptInfo struct {
	Hex string `json:"hex" yaml:"hex"`
	Asm string `json:"asm" yaml:"asm"`
}

// TxInInfo describes a transaction input.
type TxInInfo struct {
	Prevout   string          `json:"prevout" yaml:"prevout"`
	Txid      string          `json:"txid" yaml:"txid"`
	Vout      uint32          `json:"vout" yaml:"vout"`
	ScriptSig InputScriptInfo `json:"script_sig" yaml:"script_sig"`
	Sequence  uint32          `json:"sequence" yaml:"sequence"`
	Witness   []string        `json:"witness,omitempty" yaml:"witness,omitempty"`
}

// TxOutInfo describes a transaction output.
type TxOutInfo struct {
	Value        int64      `json:"value" yaml:"value"`
	ScriptPubKey ScriptInfo `json:"script_pub_key" yaml:"script_pub_key"`

	// Dust is set when the output is uneconomical to spend at the
	// default relay fee.
	Dust bool `json:"dust,omitempty" yaml:"dust,omitempty"`
}

// TxInfo describes a transaction.
type TxInfo struct {
	Txid     string      `json:"txid" yaml:"txid"`
	Hash     string      `json:"hash" yaml:"hash"`
	Size     int         `json:"size" yaml:"size"`
	Weight   uint64      `json:"weight" yaml:"weight"`
	Vsize    uint64      `json:"vsize" yaml:"vsize"`
	Version  int32       `json:"version" yaml:"version"`
	Locktime uint32      `json:"locktime" yaml:"locktime"`
	Inputs   []TxInInfo  `json:"inputs" yaml:"inputs"`
	Outputs  []TxOutInfo `json:"outputs" yaml:"outputs"`
}

// HDPathInfo is the BIP32 origin of a key.
type HDPathInfo struct {
	MasterFingerprint string `json:"master_fingerprint" yaml:"master_fingerprint"`
	Path              string `json:"path" yaml:"path"`
}

// InputInfo describes the fields of a PSBT input.
type InputInfo struct {
	NonWitnessUtxo *TxInfo    `json:"non_witness_utxo,omitempty" yaml:"non_witness_utxo,omitempty"`
	WitnessUtxo    *TxOutInfo `json:"witness_utxo,omitempty" yaml:"witness_utxo,omitempty"`

	PartialSigs map[string]string `json:"partial_sigs,omitempty" yaml:"partial_sigs,omitempty"`

	// InvalidSigs lists the public keys whose partial signature does not
	// verify against the spent output.
	InvalidSigs []string `json:"invalid_partial_sigs,omitempty" yaml:"invalid_partial_sigs,omitempty"`

	SighashType   string      `json:"sighash_type,omitempty" yaml:"sighash_type,omitempty"`
	RedeemScript  *ScriptInfo `json:"redeem_script,omitempty" yaml:"redeem_script,omitempty"`
	WitnessScript *ScriptInfo `json:"witness_script,omitempty" yaml:"witness_script,omitempty"`

	Bip32Derivation map[string]HDPathInfo `json:"bip32_derivation,omitempty" yaml:"bip32_derivation,omitempty"`

	// HDKeyPaths repeats Bip32Derivation under its older name.
	HDKeyPaths map[string]HDPathInfo `json:"hd_keypaths,omitempty" yaml:"hd_keypaths,omitempty"`

	FinalScriptSig     *InputScriptInfo `json:"final_script_sig,omitempty" yaml:"final_script_sig,omitempty"`
	FinalScriptWitness []string         `json:"final_script_witness,omitempty" yaml:"final_script_witness,omitempty"`
}

// OutputInfo describes the fields of a PSBT output.
type OutputInfo struct {
	RedeemScript  *ScriptInfo           `json:"redeem_script,omitempty" yaml:"redeem_script,omitempty"`
	WitnessScript *ScriptInfo           `json:"witness_script,omitempty" yaml:"witness_script,omitempty"`
	HDKeyPaths    map[string]HDPathInfo `json:"hd_keypaths,omitempty" yaml:"hd_keypaths,omitempty"`
}

// FeeInfo describes the fee paid by a packet whose spent outputs are all
// known.
type FeeInfo struct {
	Fee btcutil.Amount `json:"fee" yaml:"fee"`

	// Vsize is the exact size of the signed transaction. It is only set
	// when every input can be finalized.
	Vsize uint64 `json:"vsize,omitempty" yaml:"vsize,omitempty"`

	// EstimatedVsize is the expected size of the signed transaction. It
	// is only set when every input is of a single-key type.
	EstimatedVsize uint64 `json:"estimated_vsize,omitempty" yaml:"estimated_vsize,omitempty"`

	// FeeRate is computed from Vsize, or EstimatedVsize when the former
	// is unknown.
	FeeRate *btcunit.SatPerVByte `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`
}

// PsbtInfo is the decoded view of a packet.
type PsbtInfo struct {
	UnsignedTx TxInfo       `json:"unsigned_tx" yaml:"unsigned_tx"`
	Inputs     []InputInfo  `json:"inputs" yaml:"inputs"`
	Outputs    []OutputInfo `json:"outputs" yaml:"outputs"`
	Fee        *FeeInfo     `json:"fee,omitempty" yaml:"fee,omitempty"`
}
