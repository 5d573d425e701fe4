// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/momantech/WalletWasabi/wallet/cluster"
	"github.com/momantech/WalletWasabi/wallet/coinjoin"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
	"github.com/momantech/WalletWasabi/wallet/pocket"
)

// logWriter implements an io.Writer that outputs to both standard error and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if logRotatorPipe != nil {
		logRotatorPipe.Write(p)
	}

	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file. This must be performed early during application startup by
// calling initLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers. The backend must not be used before the log rotator has
	// been initialized, or data races and/or nil pointer dereferences will
	// occur.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	// logRotatorPipe is the write-end pipe for writing to the log
	// rotator.
	logRotatorPipe *io.PipeWriter

	log     = backendLog.Logger("MAIN")
	cselLog = backendLog.Logger("CSEL")
	clstLog = backendLog.Logger("CLST")
	pcktLog = backendLog.Logger("PCKT")
	cjstLog = backendLog.Logger("CJST")
)

// Initialize package-global logger variables.
func init() {
	coinselect.UseLogger(cselLog)
	cluster.UseLogger(clstLog)
	pocket.UseLogger(pcktLog)
	coinjoin.UseLogger(cjstLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"MAIN": log,
	"CSEL": cselLog,
	"CLST": clstLog,
	"PCKT": pcktLog,
	"CJST": cjstLog,
}

// initLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logRotator = r
	logRotatorPipe = pw

	return nil
}

// closeLogRotator flushes and closes the log file, if any.
func closeLogRotator() {
	if logRotatorPipe != nil {
		logRotatorPipe.Close()
	}

	if logRotator != nil {
		logRotator.Close()
	}
}

// setLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are dynamically created as
// needed.
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

// validLogLevels checks a debug level specification without applying it.
func validLogLevels(debugLevel string) error {
	return applyLogLevels(debugLevel, false)
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	return applyLogLevels(debugLevel, true)
}

func applyLogLevels(debugLevel string, apply bool) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		if _, ok := btclog.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}

		if apply {
			setLogLevels(debugLevel)
		}

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		subsysID, logLevel, ok := strings.Cut(logLevelPair, "=")
		if !ok {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				supportedSubsystems())
		}

		if _, ok := btclog.LevelFromString(logLevel); !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		if apply {
			setLogLevel(subsysID, logLevel)
		}
	}

	return nil
}
