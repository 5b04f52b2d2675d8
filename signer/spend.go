// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btchal/packet"
)

// RawSigParams is everything needed to compute the signature digest of one
// input.
type RawSigParams struct {
	// Tx is the unsigned transaction.
	Tx *wire.MsgTx

	// InputIndex is the input being signed.
	InputIndex int

	// Output is the output spent by the input.
	Output *wire.TxOut

	// SigHashes holds the BIP143 mid-state hashes of Tx.
	SigHashes *txscript.TxSigHashes

	// HashType is the signature scope.
	HashType txscript.SigHashType

	// Details selects the digest algorithm.
	Details SpendDetails
}

// SpendDetails is the script family of the spent output. It is a closed set:
// LegacySpendDetails, SegwitV0SpendDetails and TaprootSpendDetails.
type SpendDetails interface {
	// Digest returns the signature digest for the input described by
	// params.
	Digest(params *RawSigParams) ([]byte, error)

	isSpendDetails()
}

// LegacySpendDetails selects the original pre-segwit digest algorithm, used
// for bare scripts, P2PKH and P2SH.
type LegacySpendDetails struct {
	// SubScript is the script committed to by the signature: the output
	// script itself, or the redeem script of a P2SH output.
	SubScript []byte
}

// Digest computes the legacy signature digest.
func (d LegacySpendDetails) Digest(params *RawSigParams) ([]byte, error) {
	hash, err := txscript.CalcSignatureHash(
		d.SubScript, params.HashType, params.Tx, params.InputIndex,
	)
	if err != nil {
		return nil, packet.NewError(packet.ErrFormat, "unable to "+
			"compute legacy signature hash", err)
	}

	return hash, nil
}

// SegwitV0SpendDetails selects the BIP143 digest algorithm, used for P2WPKH
// and P2WSH, native or nested in P2SH.
type SegwitV0SpendDetails struct {
	// WitnessScript is the witness script of a P2WSH output, or the
	// witness program of a P2WPKH output, which the digest expands into
	// the matching P2PKH script code.
	WitnessScript []byte
}

// Digest computes the BIP143 signature digest.
func (d SegwitV0SpendDetails) Digest(params *RawSigParams) ([]byte, error) {
	hash, err := txscript.CalcWitnessSigHash(
		d.WitnessScript, params.SigHashes, params.HashType, params.Tx,
		params.InputIndex, params.Output.Value,
	)
	if err != nil {
		return nil, packet.NewError(packet.ErrFormat, "unable to "+
			"compute segwit v0 signature hash", err)
	}

	return hash, nil
}

// TaprootSpendDetails marks a BIP341 output. Signing those is not
// implemented.
type TaprootSpendDetails struct{}

// Digest always fails with ErrUnsupported.
func (TaprootSpendDetails) Digest(*RawSigParams) ([]byte, error) {
	return nil, packet.NewError(packet.ErrUnsupported, "taproot "+
		"signing is not implemented", nil)
}

func (LegacySpendDetails) isSpendDetails()   {}
func (SegwitV0SpendDetails) isSpendDetails() {}
func (TaprootSpendDetails) isSpendDetails()  {}

// classifySpend picks the digest algorithm for an input from the script it
// spends and the scripts recorded in the input. Redeem and witness scripts
// must hash to what the output commits to.
func classifySpend(pkScript []byte, in *packet.Input) (SpendDetails, error) {
	switch {
	case txscript.IsPayToTaproot(pkScript):
		return TaprootSpendDetails{}, nil

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return SegwitV0SpendDetails{WitnessScript: pkScript}, nil

	case txscript.IsPayToWitnessScriptHash(pkScript):
		ws, err := checkWitnessScript(pkScript, in)
		if err != nil {
			return nil, err
		}

		return SegwitV0SpendDetails{WitnessScript: ws}, nil

	case txscript.IsWitnessProgram(pkScript):
		version, _, _ := txscript.ExtractWitnessProgramInfo(pkScript)
		return nil, packet.NewError(packet.ErrUnsupported, fmt.Sprintf(
			"witness version %d outputs cannot be signed", version,
		), nil)

	case txscript.IsPayToScriptHash(pkScript):
		return classifyNested(pkScript, in)

	default:
		return LegacySpendDetails{SubScript: pkScript}, nil
	}
}

// classifyNested handles P2SH outputs, which may wrap a witness program.
func classifyNested(pkScript []byte, in *packet.Input) (SpendDetails,
	error) {

	if in.RedeemScript == nil {
		return nil, packet.NewError(packet.ErrIncomplete, "P2SH "+
			"output requires a redeem script", nil)
	}

	// A P2SH script is OP_HASH160 <20 bytes> OP_EQUAL.
	if !bytes.Equal(btcutil.Hash160(in.RedeemScript), pkScript[2:22]) {
		return nil, packet.NewError(packet.ErrConflict, "redeem "+
			"script does not match the P2SH output", nil)
	}

	redeem := in.RedeemScript
	switch {
	case txscript.IsPayToWitnessPubKeyHash(redeem):
		return SegwitV0SpendDetails{WitnessScript: redeem}, nil

	case txscript.IsPayToWitnessScriptHash(redeem):
		ws, err := checkWitnessScript(redeem, in)
		if err != nil {
			return nil, err
		}

		return SegwitV0SpendDetails{WitnessScript: ws}, nil

	case txscript.IsWitnessProgram(redeem):
		return nil, packet.NewError(packet.ErrUnsupported, "nested "+
			"witness program version is not supported", nil)

	default:
		return LegacySpendDetails{SubScript: redeem}, nil
	}
}

// checkWitnessScript returns the input's witness script after checking it
// against a P2WSH program.
func checkWitnessScript(program []byte, in *packet.Input) ([]byte, error) {
	if in.WitnessScript == nil {
		return nil, packet.NewError(packet.ErrIncomplete, "P2WSH "+
			"output requires a witness script", nil)
	}

	// A P2WSH program is OP_0 <32 bytes>.
	hash := sha256.Sum256(in.WitnessScript)
	if !bytes.Equal(hash[:], program[2:34]) {
		return nil, packet.NewError(packet.ErrConflict, "witness "+
			"script does not match the P2WSH program", nil)
	}

	return in.WitnessScript, nil
}
