// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/jessevdk/go-flags"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
)

const (
	defaultLogFilename = "coinselect.log"
	defaultDebugLevel  = "info"
	defaultNetwork     = "mainnet"

	// maxDecimals is the number of decimal places of a bitcoin amount.
	maxDecimals = 8
)

var (
	defaultAppDir = btcutil.AppDataDir("coinselect", false)
	defaultLogDir = filepath.Join(defaultAppDir, "logs")

	// errBadAmount is returned when a BTC amount can not be parsed.
	errBadAmount = errors.New("invalid BTC amount")
)

type config struct {
	Snapshot  string   `short:"s" long:"snapshot" description:"Path to the JSON wallet snapshot" required:"true"`
	Target    string   `short:"t" long:"target" description:"Amount to fund in BTC"`
	Force     []string `short:"f" long:"force" description:"Outpoint (txid:index) that must be spent; may be repeated"`
	Network   string   `long:"network" description:"Network of the snapshot addresses {mainnet, testnet3, regtest, signet, simnet}"`
	MaxInputs int      `long:"maxinputs" description:"Largest input count searched exhaustively"`
	Budget    int      `long:"budget" description:"Number of subsets visited before falling back to a heuristic"`

	Pockets         bool   `long:"pockets" description:"List the pockets of the snapshot instead of selecting coins"`
	AnonScoreTarget uint32 `long:"anonscoretarget" description:"Anonymity set from which coins go to the private pocket"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical} or <subsystem>=<level>,... pairs"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	params *chaincfg.Params
	target btcutil.Amount
	forced []wire.OutPoint
}

func defaultConfig() config {
	return config{
		Network:         defaultNetwork,
		MaxInputs:       coinselect.DefaultMaxInputs,
		Budget:          coinselect.DefaultSearchBudget,
		AnonScoreTarget: 5,
		DebugLevel:      defaultDebugLevel,
		LogDir:          defaultLogDir,
	}
}

// loadConfig parses the command line arguments on top of the defaults and
// validates the result.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	params, err := networkParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.params = params

	if cfg.MaxInputs < 1 {
		return nil, fmt.Errorf("maxinputs must be positive, got %d",
			cfg.MaxInputs)
	}

	if cfg.Budget < 1 {
		return nil, fmt.Errorf("budget must be positive, got %d",
			cfg.Budget)
	}

	if !cfg.Pockets {
		if cfg.Target == "" {
			return nil, errors.New("a target is required unless " +
				"listing pockets")
		}

		cfg.target, err = parseBTC(cfg.Target)
		if err != nil {
			return nil, err
		}
	}

	for _, s := range cfg.Force {
		op, err := wire.NewOutPointFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid forced outpoint %q: %w", s,
				err)
		}

		cfg.forced = append(cfg.forced, *op)
	}

	if err := validLogLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return &cfg, nil
}

// networkParams maps a network name to its chain parameters.
func networkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// parseBTC parses a decimal BTC amount with at most eight decimals into
// satoshis. The digits are converted as fixed point, signs and exponents are
// rejected.
func parseBTC(s string) (btcutil.Amount, error) {
	s = strings.TrimSpace(s)

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", errBadAmount, s)
	}

	if len(frac) > maxDecimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimals",
			errBadAmount, s, maxDecimals)
	}

	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", maxDecimals-len(frac))

	coins, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadAmount, s)
	}

	sats, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadAmount, s)
	}

	// Checking the whole coins first keeps the multiplication in range.
	maxCoins := uint64(btcutil.MaxSatoshi / btcutil.SatoshiPerBitcoin)
	if coins > maxCoins {
		return 0, fmt.Errorf("%w: %q exceeds the supply", errBadAmount,
			s)
	}

	amt := btcutil.Amount(coins)*btcutil.SatoshiPerBitcoin +
		btcutil.Amount(sats)
	if amt < 0 || amt > btcutil.MaxSatoshi {
		return 0, fmt.Errorf("%w: %q exceeds the supply", errBadAmount,
			s)
	}

	return amt, nil
}

// cleanAndExpandPath expands a leading ~ to the home directory of the current
// user and cleans the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(path)
}
