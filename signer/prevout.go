// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btchal/packet"
)

// SpentOutput returns the output spent by input idx, taken from the input's
// witness UTXO or from its full previous transaction.
//
// The previous transaction must hash to the outpoint of the input and, when
// both are present, agree with the witness UTXO. Otherwise an ErrConflict is
// returned. An input with neither yields ErrIncomplete.
func SpentOutput(p *packet.Packet, idx int) (*wire.TxOut, error) {
	if err := p.CheckInputIndex(idx); err != nil {
		return nil, err
	}

	in := &p.Inputs[idx]
	op := p.UnsignedTx.TxIn[idx].PreviousOutPoint

	var fromTx *wire.TxOut
	if in.NonWitnessUtxo != nil {
		if hash := in.NonWitnessUtxo.TxHash(); hash != op.Hash {
			return nil, packet.NewError(packet.ErrConflict,
				fmt.Sprintf("non_witness_utxo of input %d "+
					"has txid %v but the input spends %v",
					idx, hash, op), nil)
		}

		if int(op.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, packet.NewError(packet.ErrFormat,
				fmt.Sprintf("non_witness_utxo of input %d "+
					"has no output %d", idx, op.Index), nil)
		}
		fromTx = in.NonWitnessUtxo.TxOut[op.Index]
	}

	switch {
	case in.WitnessUtxo != nil && fromTx != nil:
		if !psbt.TxOutsEqual(in.WitnessUtxo, fromTx) {
			return nil, packet.NewError(packet.ErrConflict,
				fmt.Sprintf("witness_utxo and non_witness_utxo "+
					"of input %d disagree", idx), nil)
		}

		return in.WitnessUtxo, nil

	case in.WitnessUtxo != nil:
		return in.WitnessUtxo, nil

	case fromTx != nil:
		return fromTx, nil

	default:
		return nil, packet.NewError(packet.ErrIncomplete, fmt.Sprintf(
			"input %d has no UTXO information", idx,
		), nil)
	}
}

// PrevOutFetcher returns a txscript.PrevOutputFetcher built from the UTXO
// information in a packet. Inputs without UTXO information are mapped to an
// empty output so that mid-state computation never sees a missing entry.
func PrevOutFetcher(p *packet.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range p.UnsignedTx.TxIn {
		txOut, err := SpentOutput(p, idx)
		if err != nil {
			log.Tracef("No prevout for input %d: %v", idx, err)
			txOut = wire.NewTxOut(0, nil)
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, txOut)
	}

	return fetcher
}
