// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptKey reads a private key from stdin. The key is not echoed when stdin
// is a terminal, otherwise the first line is used.
func (a *app) promptKey() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stderr, "Private key: ")
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)

		if err != nil {
			return "", fmt.Errorf("unable to read private key: %w", err)
		}

		return strings.TrimSpace(string(key)), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("unable to read private key: %w", err)
	}

	return strings.TrimSpace(line), nil
}
