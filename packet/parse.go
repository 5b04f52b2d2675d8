// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// sighashTypes lists the recognized sighash strings in display order.
var sighashTypes = []struct {
	name string
	typ  txscript.SigHashType
}{
	{"ALL", txscript.SigHashAll},
	{"NONE", txscript.SigHashNone},
	{"SINGLE", txscript.SigHashSingle},
	{"ALL|ANYONECANPAY", txscript.SigHashAll | txscript.SigHashAnyOneCanPay},
	{"NONE|ANYONECANPAY", txscript.SigHashNone | txscript.SigHashAnyOneCanPay},
	{"SINGLE|ANYONECANPAY", txscript.SigHashSingle | txscript.SigHashAnyOneCanPay},
}

// SighashTypeNames returns the recognized sighash type strings.
func SighashTypeNames() []string {
	names := make([]string, len(sighashTypes))
	for i, s := range sighashTypes {
		names[i] = s.name
	}

	return names
}

// ParseSighashType parses one of the recognized sighash type strings.
func ParseSighashType(s string) (txscript.SigHashType, error) {
	for _, st := range sighashTypes {
		if st.name == s {
			return st.typ, nil
		}
	}

	return 0, newError(ErrFormat, fmt.Sprintf("invalid sighash type %q, "+
		"possible values: %s", s,
		strings.Join(SighashTypeNames(), ", ")), nil)
}

// SighashTypeString returns the display string of a sighash type. Types
// outside the recognized set are printed as hex.
func SighashTypeString(t txscript.SigHashType) string {
	for _, st := range sighashTypes {
		if st.typ == t {
			return st.name
		}
	}

	return fmt.Sprintf("0x%02x", uint32(t))
}

// ParsePubKey decodes a hex encoded public key and checks that it is a point
// on the curve. It returns the canonical map key for the key.
func ParsePubKey(s string) (string, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", newError(ErrFormat, fmt.Sprintf("invalid public "+
			"key hex %q", s), err)
	}

	if _, err := btcec.ParsePubKey(raw); err != nil {
		return "", newError(ErrCrypto, fmt.Sprintf("invalid public "+
			"key %s", s), err)
	}

	return PubKeyHex(raw), nil
}

// ParseSignature decodes a hex encoded DER signature with its trailing
// sighash type byte.
func ParseSignature(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrFormat, fmt.Sprintf("invalid "+
			"signature hex %q", s), err)
	}

	if len(raw) < 2 {
		return nil, newError(ErrCrypto, "signature too short", nil)
	}

	if _, err := ecdsa.ParseDERSignature(raw[:len(raw)-1]); err != nil {
		return nil, newError(ErrCrypto, fmt.Sprintf("invalid DER "+
			"signature %s", s), err)
	}

	return raw, nil
}

// ParsePartialSig parses a `<pubkey>:<signature>` pair.
func ParsePartialSig(pair string) (string, []byte, error) {
	pubStr, sigStr, ok := strings.Cut(pair, ":")
	if !ok {
		return "", nil, newError(ErrFormat, fmt.Sprintf("invalid "+
			"partial sig pair %q: missing signature", pair), nil)
	}

	key, err := ParsePubKey(pubStr)
	if err != nil {
		return "", nil, err
	}

	sig, err := ParseSignature(sigStr)
	if err != nil {
		return "", nil, err
	}

	return key, sig, nil
}

// ParseFingerprint decodes a 4 byte hex master key fingerprint.
func ParseFingerprint(s string) (uint32, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, newError(ErrFormat, fmt.Sprintf("invalid "+
			"fingerprint hex %q", s), err)
	}

	if len(raw) != 4 {
		return 0, newError(ErrFormat, fmt.Sprintf("invalid "+
			"fingerprint size: %d instead of 4", len(raw)), nil)
	}

	return binary.LittleEndian.Uint32(raw), nil
}

// FormatFingerprint encodes a fingerprint as the 4 byte hex string it was
// parsed from.
func FormatFingerprint(fp uint32) string {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], fp)

	return hex.EncodeToString(raw[:])
}

// ParseDerivationPath parses a BIP32 path such as m/84'/0'/0'/0/1. Hardened
// steps may be marked with ', h or H. The leading m/ is optional.
func ParseDerivationPath(s string) ([]uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "m"), "/")
	if s == "" {
		return []uint32{}, nil
	}

	parts := strings.Split(s, "/")
	path := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if n := len(part); n > 0 && strings.ContainsRune(
			"'hH", rune(part[n-1]),
		) {

			hardened = true
			part = part[:n-1]
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil || idx >= hdkeychain.HardenedKeyStart {
			return nil, newError(ErrFormat, fmt.Sprintf("invalid "+
				"derivation path %q", s), err)
		}

		step := uint32(idx)
		if hardened {
			step += hdkeychain.HardenedKeyStart
		}
		path = append(path, step)
	}

	return path, nil
}

// FormatDerivationPath renders a path in the m/84'/0'/0'/0/1 notation.
func FormatDerivationPath(path []uint32) string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, step := range path {
		sb.WriteString("/")
		if step >= hdkeychain.HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(
				uint64(step-hdkeychain.HardenedKeyStart), 10,
			))
			sb.WriteString("'")

			continue
		}
		sb.WriteString(strconv.FormatUint(uint64(step), 10))
	}

	return sb.String()
}

// ParseKeyPath parses a `<pubkey>:<fingerprint>:<path>` triplet.
func ParseKeyPath(triplet string) (string, Derivation, error) {
	parts := strings.SplitN(triplet, ":", 3)
	if len(parts) != 3 {
		return "", Derivation{}, newError(ErrFormat, fmt.Sprintf(
			"invalid HD keypath triplet %q, expected "+
				"<pubkey>:<fingerprint>:<path>", triplet), nil)
	}

	key, err := ParsePubKey(parts[0])
	if err != nil {
		return "", Derivation{}, err
	}

	fp, err := ParseFingerprint(parts[1])
	if err != nil {
		return "", Derivation{}, err
	}

	path, err := ParseDerivationPath(parts[2])
	if err != nil {
		return "", Derivation{}, err
	}

	return key, Derivation{Fingerprint: fp, Path: path}, nil
}

// ParseScript decodes a hex encoded script.
func ParseScript(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrFormat, fmt.Sprintf("invalid script "+
			"hex %q", s), err)
	}

	return raw, nil
}

// ParseTx decodes a hex encoded transaction. Trailing bytes are rejected.
func ParseTx(s string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrFormat, "invalid transaction hex", err)
	}

	r := bytes.NewReader(raw)
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(r); err != nil {
		return nil, newError(ErrFormat, "invalid transaction", err)
	}

	if r.Len() != 0 {
		return nil, newError(ErrFormat, fmt.Sprintf("%d trailing "+
			"bytes after transaction", r.Len()), nil)
	}

	return tx, nil
}

// ParseTxOut decodes a hex encoded transaction output: an 8 byte value
// followed by the length prefixed output script.
func ParseTxOut(s string) (*wire.TxOut, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrFormat, "invalid output hex", err)
	}

	r := bytes.NewReader(raw)
	var txOut wire.TxOut
	if err := wire.ReadTxOut(r, 0, 0, &txOut); err != nil {
		return nil, newError(ErrFormat, "invalid output", err)
	}

	if r.Len() != 0 {
		return nil, newError(ErrFormat, fmt.Sprintf("%d trailing "+
			"bytes after output", r.Len()), nil)
	}

	return &txOut, nil
}

// ParseWitnessList decodes a comma separated list of hex witness items.
func ParseWitnessList(s string) (wire.TxWitness, error) {
	items := strings.Split(s, ",")
	witness := make(wire.TxWitness, len(items))
	for i, item := range items {
		raw, err := hex.DecodeString(item)
		if err != nil {
			return nil, newError(ErrFormat, fmt.Sprintf("invalid "+
				"witness item %d hex", i), err)
		}
		witness[i] = raw
	}

	return witness, nil
}
