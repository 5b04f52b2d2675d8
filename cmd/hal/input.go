// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btchal/packet"
)

// psbtMagic starts every serialized packet.
var psbtMagic = []byte("psbt\xff")

// encoding is the textual form a packet was supplied in.
type encoding uint8

const (
	encodingBinary encoding = iota
	encodingHex
	encodingBase64
)

// String returns the name of the encoding.
func (e encoding) String() string {
	switch e {
	case encodingBinary:
		return "binary"
	case encodingHex:
		return "hex"
	case encodingBase64:
		return "base64"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// encode renders raw in the encoding.
func (e encoding) encode(raw []byte) []byte {
	switch e {
	case encodingHex:
		return []byte(hex.EncodeToString(raw) + "\n")
	case encodingBase64:
		return []byte(base64.StdEncoding.EncodeToString(raw) + "\n")
	default:
		return raw
	}
}

// psbtSource records where a packet argument was read from so that an edited
// packet can be written back the same way.
type psbtSource struct {
	encoding encoding

	// path is set when the packet was read from a file.
	path string
}

// resolveInput interprets arg as hex, then base64, then a file path, and
// returns the raw packet bytes. A file may hold the binary packet or its hex
// or base64 text.
func resolveInput(arg string) ([]byte, psbtSource, error) {
	if raw, err := hex.DecodeString(arg); err == nil {
		return raw, psbtSource{encoding: encodingHex}, nil
	}

	if raw, err := base64.StdEncoding.DecodeString(arg); err == nil {
		return raw, psbtSource{encoding: encodingBase64}, nil
	}

	contents, err := os.ReadFile(arg)
	if err != nil {
		return nil, psbtSource{}, packet.NewError(packet.ErrFormat,
			"can't load PSBT: invalid hex, base64 or unknown file",
			err)
	}

	raw, enc := decodeFileContents(contents)
	log.Debugf("Read %s PSBT from %s", enc, arg)

	return raw, psbtSource{encoding: enc, path: arg}, nil
}

// decodeFileContents detects the encoding of a packet file.
func decodeFileContents(contents []byte) ([]byte, encoding) {
	if bytes.HasPrefix(contents, psbtMagic) {
		return contents, encodingBinary
	}

	text := strings.TrimSpace(string(contents))
	if raw, err := hex.DecodeString(text); err == nil {
		return raw, encodingHex
	}
	if raw, err := base64.StdEncoding.DecodeString(text); err == nil {
		return raw, encodingBase64
	}

	// Let the decoder report what is wrong with it.
	return contents, encodingBinary
}

// loadPacket resolves and decodes a packet argument.
func loadPacket(arg string) (*packet.Packet, psbtSource, error) {
	raw, src, err := resolveInput(arg)
	if err != nil {
		return nil, psbtSource{}, err
	}

	p, err := packet.Decode(raw)
	if err != nil {
		return nil, psbtSource{}, err
	}

	return p, src, nil
}
