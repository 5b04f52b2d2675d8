// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btchal/packet"
	"github.com/stretchr/testify/require"
)

// TestParsePrivateKey checks the accepted private key encodings.
func TestParsePrivateKey(t *testing.T) {
	t.Parallel()

	priv, _ := testKey(1)

	mainWIF, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	require.NoError(t, err)

	testWIF, err := btcutil.NewWIF(priv, &chaincfg.TestNet3Params, true)
	require.NoError(t, err)

	// The secp256k1 group order.
	order := "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"

	testCases := []struct {
		name  string
		input string
		code  packet.ErrorCode
		valid bool
	}{
		{
			name:  "hex",
			input: hex.EncodeToString(priv.Serialize()),
			valid: true,
		},
		{
			name:  "WIF",
			input: mainWIF.String(),
			valid: true,
		},
		{
			name:  "WIF with surrounding whitespace",
			input: " " + mainWIF.String() + "\n",
			valid: true,
		},
		{
			name:  "WIF for another network",
			input: testWIF.String(),
			code:  packet.ErrCrypto,
		},
		{
			name:  "zero",
			input: hex.EncodeToString(make([]byte, 32)),
			code:  packet.ErrCrypto,
		},
		{
			name:  "curve order",
			input: order,
			code:  packet.ErrCrypto,
		},
		{
			name:  "short hex",
			input: "0102",
			code:  packet.ErrCrypto,
		},
		{
			name:  "garbage",
			input: "not a key",
			code:  packet.ErrCrypto,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			key, err := testContext().ParsePrivateKey(tc.input)
			if !tc.valid {
				require.True(
					t, packet.IsError(err, tc.code),
					"got %v", err,
				)
				return
			}

			require.NoError(t, err)
			require.Equal(t, priv.Serialize(), key.Serialize())
		})
	}
}

// TestParseExtendedKey checks that only private keys of the context network
// are accepted.
func TestParseExtendedKey(t *testing.T) {
	t.Parallel()

	seed := bytes.Repeat([]byte{0x01}, hdkeychain.RecommendedSeedLen)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	pub, err := master.Neuter()
	require.NoError(t, err)

	testnet, err := hdkeychain.NewMaster(seed, &chaincfg.TestNet3Params)
	require.NoError(t, err)

	ctx := testContext()

	key, err := ctx.ParseExtendedKey(master.String())
	require.NoError(t, err)
	require.Equal(t, master.String(), key.String())

	_, err = ctx.ParseExtendedKey(pub.String())
	require.True(t, packet.IsError(err, packet.ErrCrypto))

	_, err = ctx.ParseExtendedKey(testnet.String())
	require.True(t, packet.IsError(err, packet.ErrCrypto))

	_, err = ctx.ParseExtendedKey("xprv-nope")
	require.True(t, packet.IsError(err, packet.ErrCrypto))
}

// TestNewContextDefaults checks the defaults of a zero config.
func TestNewContextDefaults(t *testing.T) {
	t.Parallel()

	ctx := NewContext(Config{})
	require.Equal(t, chaincfg.MainNetParams.Name, ctx.ChainParams().Name)
	require.NotNil(t, ctx.SigCache())
}
