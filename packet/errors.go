// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrFormat indicates malformed bytes or an unrecognized enum string.
	ErrFormat ErrorCode = iota

	// ErrIndex indicates an input or output index that is out of range.
	ErrIndex

	// ErrConflict indicates two values disagree, either while merging or
	// while inserting a map entry that already exists.
	ErrConflict

	// ErrIncomplete indicates an operation was attempted without the data
	// it requires, such as signing without UTXO information or finalizing
	// unsigned inputs.
	ErrIncomplete

	// ErrUnsupported indicates a known but unimplemented feature, such as
	// taproot signing.
	ErrUnsupported

	// ErrCrypto indicates invalid key or signature material.
	ErrCrypto
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrFormat:      "ErrFormat",
	ErrIndex:       "ErrIndex",
	ErrConflict:    "ErrConflict",
	ErrIncomplete:  "ErrIncomplete",
	ErrUnsupported: "ErrUnsupported",
	ErrCrypto:      "ErrCrypto",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}

	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Category returns the short category name printed by the command line tool.
func (e ErrorCode) Category() string {
	switch e {
	case ErrFormat:
		return "format error"
	case ErrIndex:
		return "index error"
	case ErrConflict:
		return "conflict error"
	case ErrIncomplete:
		return "incomplete error"
	case ErrUnsupported:
		return "unsupported error"
	case ErrCrypto:
		return "crypto error"
	default:
		return "error"
	}
}

// Error identifies a PSBT engine error. It has an error code, a descriptive
// message and an optional underlying error.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error

	// Inputs lists every input index the error refers to. It is only
	// populated by operations that aggregate per-input failures.
	Inputs []int
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// NewError creates an Error for use by the other engine packages.
func NewError(c ErrorCode, desc string, err error) Error {
	return newError(c, desc, err)
}

// IsError returns whether err is, or wraps, an Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}

// CodeOf returns the code of the first Error found in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e Error
	if !errors.As(err, &e) {
		return 0, false
	}

	return e.Code, true
}
