// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "hal.conf"
	defaultLogFilename    = "hal.log"
	defaultLogLevel       = "warn"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("hal", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
)

// config defines the options shared by every command. They are read from the
// configuration file first and then from the command line.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file" no-ini:"true"`

	TestNet3 bool `long:"testnet" description:"Use the test network"`
	RegTest  bool `long:"regtest" description:"Use the regression test network"`
	SigNet   bool `long:"signet" description:"Use the signet test network"`

	YAML bool `long:"yaml" description:"Print structured output as YAML instead of JSON"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir     string `long:"logdir" description:"Also write logs to a rotated file in this directory"`
	Verbose    bool   `short:"v" long:"verbose" description:"Log everything, same as --debuglevel=trace"`
}

// defaultConfig returns the configuration used when no option is given.
func defaultConfig() config {
	return config{
		ConfigFile: defaultConfigFile,
		DebugLevel: defaultLogLevel,
	}
}

// loadConfigFile fills cfg from the INI file at path through parser. A
// missing file is not an error.
func loadConfigFile(parser *flags.Parser, path string) error {
	err := flags.NewIniParser(parser).ParseFile(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("error parsing config file %s: %w", path, err)
}

// chainParams returns the network selected by cfg. Mainnet is used when no
// network option is set.
func (c *config) chainParams() (*chaincfg.Params, error) {
	params := &chaincfg.MainNetParams

	numNets := 0
	if c.TestNet3 {
		numNets++
		params = &chaincfg.TestNet3Params
	}
	if c.RegTest {
		numNets++
		params = &chaincfg.RegressionNetParams
	}
	if c.SigNet {
		numNets++
		params = &chaincfg.SigNetParams
	}

	if numNets > 1 {
		return nil, errors.New("the testnet, regtest, and signet " +
			"params can't be used together -- choose one of the " +
			"three")
	}

	return params, nil
}

// debugLevel returns the effective log level string.
func (c *config) debugLevel() string {
	if c.Verbose {
		return "trace"
	}

	return c.DebugLevel
}
