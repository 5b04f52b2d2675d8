// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/btcsuite/btchal/finalizer"
	"github.com/btcsuite/btchal/packet"
	"github.com/btcsuite/btchal/signer"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to standard error and, once
// a log directory is configured, to the log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	_, _ = os.Stderr.Write(p)
	if r := logRotator.Load(); r != nil {
		_, _ = r.Write(p)
	}

	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It is set by
	// initLogRotator and must be closed on shutdown.
	logRotator atomic.Pointer[rotator.Rotator]

	log     = backendLog.Logger("HAL")
	psbtLog = backendLog.Logger("PSBT")
	signLog = backendLog.Logger("SIGN")
	fnlzLog = backendLog.Logger("FNLZ")
)

// Initialize package-global logger variables.
func init() {
	packet.UseLogger(psbtLog)
	signer.UseLogger(signLog)
	finalizer.UseLogger(fnlzLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"HAL":  log,
	"PSBT": psbtLog,
	"SIGN": signLog,
	"FNLZ": fnlzLog,
}

// initLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	if old := logRotator.Swap(r); old != nil {
		_ = old.Close()
	}

	return nil
}

// closeLogRotator flushes and closes the log rotator, if any.
func closeLogRotator() {
	if r := logRotator.Swap(nil); r != nil {
		_ = r.Close()
	}
}

// setLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)

	return subsystems
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)

	return ok
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}

		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				supportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}
