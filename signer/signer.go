// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btchal/packet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// RawSign signs input idx of p with key and returns a copy of the packet with
// the signature added to the input's partial signatures. An existing
// signature by the same key is replaced. No other field changes.
//
// The digest algorithm follows the script spent by the input. The input's
// sighash type is used when set, SIGHASH_ALL otherwise.
func (c *Context) RawSign(p *packet.Packet, idx int,
	key *btcec.PrivateKey) (*packet.Packet, error) {

	params, err := c.rawSigParams(p, idx, fn.None[txscript.SigHashType]())
	if err != nil {
		return nil, err
	}

	pubKey := key.PubKey().SerializeCompressed()
	checkKeyMatches(idx, params.Output.PkScript, pubKey)

	rawSig, err := computeRawSig(params, key)
	if err != nil {
		return nil, err
	}

	signed := p.Clone()
	in := &signed.Inputs[idx]
	if in.PartialSigs == nil {
		in.PartialSigs = make(packet.SigMap, 1)
	}
	in.PartialSigs[packet.PubKeyHex(pubKey)] = rawSig

	if in.Final.IsSome() {
		log.Warnf("Input %d is already finalized, the new signature "+
			"will not be used", idx)
	}

	log.Infof("Signed input %d with key %x", idx, pubKey)

	return signed, nil
}

// RawSignExtended signs input idx with every key derived from xprv that the
// input lists in its BIP32 derivations. Derivations are matched by the
// fingerprint of xprv, which is treated as the master key.
func (c *Context) RawSignExtended(p *packet.Packet, idx int,
	xprv *hdkeychain.ExtendedKey) (*packet.Packet, error) {

	if err := p.CheckInputIndex(idx); err != nil {
		return nil, err
	}

	fp, err := fingerprint(xprv)
	if err != nil {
		return nil, packet.NewError(packet.ErrCrypto, "unable to "+
			"compute key fingerprint", err)
	}

	derivations := p.Inputs[idx].Bip32Derivation
	signed := p
	for _, pubKeyHex := range packet.SortedKeys(derivations) {
		d := derivations[pubKeyHex]
		if d.Fingerprint != fp {
			continue
		}

		child, err := deriveKey(xprv, d.Path)
		if err != nil {
			return nil, err
		}

		childPub, err := child.ECPubKey()
		if err != nil {
			return nil, packet.NewError(packet.ErrCrypto,
				"unable to derive public key", err)
		}

		got := packet.PubKeyHex(childPub.SerializeCompressed())
		if got != pubKeyHex {
			return nil, packet.NewError(packet.ErrConflict,
				fmt.Sprintf("key derived at %s is %s, input "+
					"lists %s", packet.FormatDerivationPath(
					d.Path), got, pubKeyHex), nil)
		}

		privKey, err := child.ECPrivKey()
		if err != nil {
			return nil, packet.NewError(packet.ErrCrypto,
				"unable to derive private key", err)
		}

		signed, err = c.RawSign(signed, idx, privKey)
		privKey.Zero()
		if err != nil {
			return nil, err
		}
	}

	if signed == p {
		return nil, packet.NewError(packet.ErrIncomplete, fmt.Sprintf(
			"input %d has no key derivation for fingerprint %s",
			idx, packet.FormatFingerprint(fp),
		), nil)
	}

	return signed, nil
}

// VerifyPartialSig checks the signature stored under pubKeyHex on input idx
// against a freshly computed digest. The digest uses the sighash type
// appended to the signature.
func (c *Context) VerifyPartialSig(p *packet.Packet, idx int,
	pubKeyHex string) error {

	if err := p.CheckInputIndex(idx); err != nil {
		return err
	}

	rawSig, ok := p.Inputs[idx].PartialSigs[pubKeyHex]
	if !ok {
		return packet.NewError(packet.ErrIncomplete, fmt.Sprintf("input "+
			"%d has no signature for %s", idx, pubKeyHex), nil)
	}

	if len(rawSig) < 2 {
		return packet.NewError(packet.ErrCrypto, "signature too short",
			nil)
	}

	hashType := txscript.SigHashType(rawSig[len(rawSig)-1])
	params, err := c.rawSigParams(p, idx, fn.Some(hashType))
	if err != nil {
		return err
	}

	digest, err := params.Details.Digest(params)
	if err != nil {
		return err
	}

	sig, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
	if err != nil {
		return packet.NewError(packet.ErrCrypto, "invalid DER "+
			"signature", err)
	}

	pubKey, err := parsePubKeyHex(pubKeyHex)
	if err != nil {
		return err
	}

	if !sig.Verify(digest, pubKey) {
		return packet.NewError(packet.ErrCrypto, fmt.Sprintf("signature "+
			"by %s on input %d does not verify", pubKeyHex, idx), nil)
	}

	return nil
}

// rawSigParams collects the signing parameters of input idx. A set hashType
// overrides the input's sighash type.
func (c *Context) rawSigParams(p *packet.Packet, idx int,
	hashType fn.Option[txscript.SigHashType]) (*RawSigParams, error) {

	if err := p.CheckInputIndex(idx); err != nil {
		return nil, err
	}

	in := &p.Inputs[idx]
	output, err := SpentOutput(p, idx)
	if err != nil {
		return nil, err
	}

	details, err := classifySpend(output.PkScript, in)
	if err != nil {
		return nil, fmt.Errorf("input %d: %w", idx, err)
	}

	if hashType.IsNone() {
		hashType = in.SighashType
	}
	if hashType.IsNone() {
		log.Warnf("No sighash type set on input %d, using "+
			"SIGHASH_ALL", idx)
	}

	return &RawSigParams{
		Tx:         p.UnsignedTx,
		InputIndex: idx,
		Output:     output,
		SigHashes: txscript.NewTxSigHashes(
			p.UnsignedTx, PrevOutFetcher(p),
		),
		HashType: hashType.UnwrapOr(txscript.SigHashAll),
		Details:  details,
	}, nil
}

// computeRawSig signs the digest selected by params with RFC6979 ECDSA and
// returns the DER signature with the sighash type appended.
func computeRawSig(params *RawSigParams, key *btcec.PrivateKey) ([]byte,
	error) {

	digest, err := params.Details.Digest(params)
	if err != nil {
		return nil, err
	}

	sig := ecdsa.Sign(key, digest)

	return append(sig.Serialize(), byte(params.HashType)), nil
}

// checkKeyMatches warns when a single key output is signed with a key that
// does not hash to it. The signature is still produced.
func checkKeyMatches(idx int, pkScript, pubKey []byte) {
	var program []byte
	switch {
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		program = pkScript[2:22]

	case txscript.IsPayToPubKeyHash(pkScript):
		program = pkScript[3:23]

	default:
		return
	}

	if !bytes.Equal(btcutil.Hash160(pubKey), program) {
		log.Warnf("Key %x does not match the script spent by input %d",
			pubKey, idx)
	}
}

func parsePubKeyHex(s string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, packet.NewError(packet.ErrFormat, "invalid public "+
			"key hex", err)
	}

	pubKey, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, packet.NewError(packet.ErrCrypto, "invalid public "+
			"key", err)
	}

	return pubKey, nil
}
