// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btchal/packet"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ParsePrivateKey parses a private key given either in WIF or as 32 bytes of
// hex. A WIF key must belong to the network of the context.
func (c *Context) ParsePrivateKey(s string) (*btcec.PrivateKey, error) {
	s = strings.TrimSpace(s)

	if raw, err := hex.DecodeString(s); err == nil {
		return privKeyFromBytes(raw)
	}

	wif, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, packet.NewError(packet.ErrCrypto, "private key is "+
			"neither WIF nor hex", err)
	}

	if !wif.IsForNet(c.params) {
		return nil, packet.NewError(packet.ErrCrypto, fmt.Sprintf("WIF "+
			"key is not for network %s", c.params.Name), nil)
	}

	if !wif.CompressPubKey {
		log.Warnf("WIF key is flagged uncompressed, signing with the " +
			"compressed public key")
	}

	return wif.PrivKey, nil
}

// privKeyFromBytes checks that raw is a valid secp256k1 scalar: exactly 32
// bytes, non-zero and below the group order.
func privKeyFromBytes(raw []byte) (*btcec.PrivateKey, error) {
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, packet.NewError(packet.ErrCrypto, fmt.Sprintf(
			"private key must be %d bytes, got %d",
			btcec.PrivKeyBytesLen, len(raw),
		), nil)
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow {
		return nil, packet.NewError(packet.ErrCrypto, "private key "+
			"is not below the curve order", nil)
	}
	if scalar.IsZero() {
		return nil, packet.NewError(packet.ErrCrypto, "private key "+
			"is zero", nil)
	}

	return secp256k1.NewPrivateKey(&scalar), nil
}

// ParseExtendedKey parses an extended private key for the network of the
// context.
func (c *Context) ParseExtendedKey(s string) (*hdkeychain.ExtendedKey,
	error) {

	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, packet.NewError(packet.ErrCrypto, "invalid "+
			"extended key", err)
	}

	if !key.IsPrivate() {
		return nil, packet.NewError(packet.ErrCrypto, "extended key "+
			"is public, a private key is required", nil)
	}

	if !key.IsForNet(c.params) {
		return nil, packet.NewError(packet.ErrCrypto, fmt.Sprintf(
			"extended key is not for network %s", c.params.Name,
		), nil)
	}

	return key, nil
}

// fingerprint returns the fingerprint of an extended key in the form stored
// in PSBT derivations.
func fingerprint(key *hdkeychain.ExtendedKey) (uint32, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return 0, err
	}

	return packet.ParseFingerprint(hex.EncodeToString(
		btcutil.Hash160(pub.SerializeCompressed())[:4],
	))
}

// deriveKey walks path down from key.
func deriveKey(key *hdkeychain.ExtendedKey, path []uint32) (
	*hdkeychain.ExtendedKey, error) {

	for _, step := range path {
		child, err := key.Derive(step)
		if err != nil {
			return nil, packet.NewError(packet.ErrCrypto,
				"unable to derive child key", err)
		}
		key = child
	}

	log.Tracef("Derived key at %s", packet.FormatDerivationPath(path))

	return key, nil
}
