// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command hal is a companion tool for partially signed bitcoin transactions.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/signer"
	"github.com/btcsuite/btchal/txinfo"
	"github.com/jessevdk/go-flags"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one invocation of the tool and returns its exit code. Errors
// are printed to stderr prefixed by their category.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	err := a.execute(args)
	if err == nil {
		return 0
	}

	var flagErr *flags.Error
	if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
		fmt.Fprintln(stdout, flagErr.Message)
		return 0
	}

	fmt.Fprintf(stderr, "%s: %v\n", errorCategory(err), err)

	return 1
}

// errorCategory returns the category printed in front of err.
func errorCategory(err error) string {
	if code, ok := packet.CodeOf(err); ok {
		return code.Category()
	}

	var flagErr *flags.Error
	if errors.As(err, &flagErr) {
		return "usage error"
	}

	return "error"
}

// app holds the state of one invocation.
type app struct {
	cfg config

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// The fields below are set once the options are parsed.
	signer  *signer.Context
	decoder *txinfo.Decoder
	format  txinfo.Format
}

// execute parses args and runs the selected command.
func (a *app) execute(args []string) error {
	// Pre-parse the command line options to see if an alternative config
	// file was specified. Any errors aside from the help message error
	// are ignored here since they will be caught by the final parse.
	preCfg := defaultConfig()
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	a.cfg = defaultConfig()
	parser := flags.NewParser(&a.cfg, flags.HelpFlag|flags.PassDoubleDash)
	if err := loadConfigFile(parser, preCfg.ConfigFile); err != nil {
		return err
	}

	if err := a.addCommands(parser); err != nil {
		return err
	}

	// Options are only known once the command line is parsed, so set up
	// the environment right before the selected command runs.
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		defer closeLogRotator()

		if err := a.setup(); err != nil {
			return err
		}

		if cmd == nil {
			return nil
		}

		return cmd.Execute(args)
	}

	_, err := parser.ParseArgs(args)

	return err
}

// setup applies the parsed options.
func (a *app) setup() error {
	if err := parseAndSetDebugLevels(a.cfg.debugLevel()); err != nil {
		return err
	}

	if a.cfg.LogDir != "" {
		logFile := filepath.Join(a.cfg.LogDir, defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			return err
		}
	}

	params, err := a.cfg.chainParams()
	if err != nil {
		return err
	}

	a.signer = signer.NewContext(signer.Config{ChainParams: params})
	a.decoder = txinfo.NewDecoder(a.signer)

	a.format = txinfo.FormatJSON
	if a.cfg.YAML {
		a.format = txinfo.FormatYAML
	}

	log.Debugf("Using network %s", params.Name)

	return nil
}
