// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// TestSighashTypes checks that every recognized string round trips and that
// anything else is refused.
func TestSighashTypes(t *testing.T) {
	t.Parallel()

	for _, name := range SighashTypeNames() {
		typ, err := ParseSighashType(name)
		require.NoError(t, err)
		require.Equal(t, name, SighashTypeString(typ))
	}

	for _, bogus := range []string{"", "all", "ALL|NONE", "DEFAULT"} {
		_, err := ParseSighashType(bogus)
		require.True(t, IsError(err, ErrFormat), bogus)
	}

	require.Equal(t, "0x00", SighashTypeString(txscript.SigHashDefault))
}

// TestParseDerivationPath checks the accepted path notations.
func TestParseDerivationPath(t *testing.T) {
	t.Parallel()

	const h = hdkeychain.HardenedKeyStart

	testCases := []struct {
		name     string
		path     string
		expected []uint32
		valid    bool
	}{
		{
			name:     "master",
			path:     "m",
			expected: []uint32{},
			valid:    true,
		},
		{
			name:     "apostrophe hardened",
			path:     "m/84'/0'/0'/0/1",
			expected: []uint32{84 + h, h, h, 0, 1},
			valid:    true,
		},
		{
			name:     "letter hardened without prefix",
			path:     "44h/1H/2",
			expected: []uint32{44 + h, 1 + h, 2},
			valid:    true,
		},
		{
			name:  "index too large",
			path:  "m/2147483648",
			valid: false,
		},
		{
			name:  "empty step",
			path:  "m/1//2",
			valid: false,
		},
		{
			name:  "negative step",
			path:  "m/-1",
			valid: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path, err := ParseDerivationPath(tc.path)
			if !tc.valid {
				require.True(t, IsError(err, ErrFormat))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, path)
		})
	}
}

// TestFormatDerivationPath checks the rendering of paths and fingerprints.
func TestFormatDerivationPath(t *testing.T) {
	t.Parallel()

	path, err := ParseDerivationPath("m/84h/0h/0h/1/7")
	require.NoError(t, err)
	require.Equal(t, "m/84'/0'/0'/1/7", FormatDerivationPath(path))

	fp, err := ParseFingerprint("d34db33f")
	require.NoError(t, err)
	require.Equal(t, "d34db33f", FormatFingerprint(fp))
}
