// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btchal/packet"
	"github.com/stretchr/testify/require"
)

// TestResolveInput checks the hex, base64, file resolution order.
func TestResolveInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := append([]byte{}, psbtMagic...)
	raw = append(raw, 0x01, 0x02)

	writeTemp := func(name string, contents []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, contents, 0o600))

		return path
	}

	binPath := writeTemp("bin.psbt", raw)
	hexPath := writeTemp("hex.txt",
		[]byte(hex.EncodeToString(raw)+"\n"))
	b64Path := writeTemp("b64.txt",
		[]byte(base64.StdEncoding.EncodeToString(raw)+"\n"))

	testCases := []struct {
		name     string
		arg      string
		encoding encoding
		path     string
	}{
		{
			name:     "hex",
			arg:      hex.EncodeToString(raw),
			encoding: encodingHex,
		},
		{
			name:     "base64",
			arg:      base64.StdEncoding.EncodeToString(raw),
			encoding: encodingBase64,
		},
		{
			// Valid as both, hex wins.
			name:     "ambiguous",
			arg:      "deadbeef",
			encoding: encodingHex,
		},
		{
			name:     "binary file",
			arg:      binPath,
			encoding: encodingBinary,
			path:     binPath,
		},
		{
			name:     "hex file",
			arg:      hexPath,
			encoding: encodingHex,
			path:     hexPath,
		},
		{
			name:     "base64 file",
			arg:      b64Path,
			encoding: encodingBase64,
			path:     b64Path,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, src, err := resolveInput(tc.arg)

			require.NoError(t, err)
			require.Equal(t, tc.encoding, src.encoding)
			require.Equal(t, tc.path, src.path)

			if tc.name != "ambiguous" {
				require.Equal(t, raw, got)
			}
		})
	}
}

// TestResolveInputMissing checks that an argument matching nothing is a
// format error.
func TestResolveInputMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.psbt")

	_, _, err := resolveInput(missing)
	require.True(t, packet.IsError(err, packet.ErrFormat))

	_, _, err = loadPacket(hex.EncodeToString([]byte("nope")))
	require.True(t, packet.IsError(err, packet.ErrFormat))
}

// TestEncodingRoundTrip checks that each encoding renders text the resolver
// reads back.
func TestEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	raw := append([]byte{}, psbtMagic...)
	for _, enc := range []encoding{
		encodingBinary, encodingHex, encodingBase64,
	} {
		got, gotEnc := decodeFileContents(enc.encode(raw))

		require.Equal(t, raw, got, enc.String())
		require.Equal(t, enc, gotEnc, enc.String())
	}
}
