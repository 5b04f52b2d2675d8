// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txinfo

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestWrite renders a report in both formats and checks the shape of the
// output.
func TestWrite(t *testing.T) {
	t.Parallel()

	info := NewDecoder(testContext()).Packet(testPacket(t))

	testCases := []struct {
		format    Format
		unmarshal func([]byte, any) error
	}{
		{format: FormatJSON, unmarshal: json.Unmarshal},
		{format: FormatYAML, unmarshal: yaml.Unmarshal},
	}

	for _, tc := range testCases {
		t.Run(tc.format.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, info, tc.format))
			require.True(t, strings.HasSuffix(buf.String(), "\n"))

			var out map[string]any
			require.NoError(t, tc.unmarshal(buf.Bytes(), &out))

			require.Contains(t, out, "unsigned_tx")
			require.Contains(t, out, "inputs")
			require.Contains(t, out, "outputs")

			fee, ok := out["fee"].(map[string]any)
			require.True(t, ok)
			require.Contains(t, fee["fee_rate"], "sat/vb")
			require.NotContains(t, fee, "vsize")
		})
	}
}

// TestWriteUnknownFormat checks that an unknown format is refused.
func TestWriteUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.Error(t, Write(&buf, struct{}{}, Format(9)))
	require.Zero(t, buf.Len())
	require.Equal(t, "Format(9)", Format(9).String())
}
