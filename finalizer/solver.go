// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package finalizer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/signer"
)

// ScriptSolver builds the final scriptSig and witness of one input from its
// signatures and scripts.
type ScriptSolver interface {
	// Satisfy returns the spending proof of input idx, or an error if
	// the input does not carry enough material.
	Satisfy(p *packet.Packet, idx int) (packet.FinalScripts, error)
}

// PsbtSolver is the default ScriptSolver. It delegates to the BIP174
// finalizer of the btcd psbt package, which knows P2PKH, P2WPKH, P2SH-P2WPKH,
// taproot key spends and multisig behind P2SH, P2WSH and P2SH-P2WSH.
type PsbtSolver struct{}

// A compile time check to ensure PsbtSolver implements ScriptSolver.
var _ ScriptSolver = (*PsbtSolver)(nil)

// Satisfy finalizes input idx on a throwaway copy of the packet and returns
// the resulting scripts.
func (PsbtSolver) Satisfy(p *packet.Packet, idx int) (packet.FinalScripts,
	error) {

	if err := p.CheckInputIndex(idx); err != nil {
		return packet.FinalScripts{}, err
	}

	in := &p.Inputs[idx]
	if len(in.PartialSigs) == 0 && len(in.Taproot.KeySpendSig) == 0 &&
		len(in.Taproot.ScriptSpendSig) == 0 {

		return packet.FinalScripts{}, packet.NewError(
			packet.ErrIncomplete, "input has no signatures", nil,
		)
	}

	spent, err := signer.SpentOutput(p, idx)
	if err != nil {
		return packet.FinalScripts{}, err
	}

	bp, err := p.ToPsbt()
	if err != nil {
		return packet.FinalScripts{}, err
	}

	// The btcd finalizer picks the witness path whenever a witness UTXO
	// is present and the legacy path otherwise, so present it with
	// exactly the UTXO form matching the spent script.
	bpIn := &bp.Inputs[idx]
	if isWitnessSpend(spent.PkScript, in.RedeemScript) {
		bpIn.WitnessUtxo = spent
	} else {
		if bpIn.NonWitnessUtxo == nil {
			return packet.FinalScripts{}, packet.NewError(
				packet.ErrIncomplete, "non-segwit input "+
					"requires non_witness_utxo", nil,
			)
		}
		bpIn.WitnessUtxo = nil
	}

	if _, err := psbt.MaybeFinalize(bp, idx); err != nil {
		return packet.FinalScripts{}, packet.NewError(
			packet.ErrIncomplete, "unable to satisfy script", err,
		)
	}

	final := packet.FinalScripts{ScriptSig: bp.Inputs[idx].FinalScriptSig}
	if raw := bp.Inputs[idx].FinalScriptWitness; raw != nil {
		witness, err := packet.ParseWitness(raw)
		if err != nil {
			return packet.FinalScripts{}, fmt.Errorf("solver "+
				"produced invalid witness: %w", err)
		}
		final.Witness = witness
	}

	return final, nil
}

// isWitnessSpend reports whether spending pkScript, with redeem as the P2SH
// redeem script, involves a witness.
func isWitnessSpend(pkScript, redeem []byte) bool {
	if txscript.IsWitnessProgram(pkScript) {
		return true
	}

	return txscript.IsPayToScriptHash(pkScript) &&
		txscript.IsWitnessProgram(redeem)
}
