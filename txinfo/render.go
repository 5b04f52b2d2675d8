// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txinfo

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format selects how a report is rendered.
type Format uint8

const (
	// FormatJSON renders indented JSON.
	FormatJSON Format = iota

	// FormatYAML renders YAML.
	FormatYAML
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Write renders v to w followed by a newline.
func Write(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("unable to encode json: %w", err)
		}

		_, err = w.Write(append(out, '\n'))

		return err

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("unable to encode yaml: %w", err)
		}

		return enc.Close()

	default:
		return fmt.Errorf("unknown format %v", format)
	}
}
