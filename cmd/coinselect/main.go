// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command coinselect loads a wallet snapshot and runs a privacy aware coin
// selection on it, or lists the snapshot's pockets.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
	"github.com/momantech/WalletWasabi/wallet/pocket"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeLogRotator()
		os.Exit(1)
	}

	closeLogRotator()
}

// run sets up logging and carries out the configured command.
func run(cfg *config, out io.Writer) error {
	if cfg.LogDir != "" {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			return err
		}
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	snapshot, err := loadSnapshot(cfg.Snapshot, cfg.params)
	if err != nil {
		return err
	}

	if cfg.Pockets {
		pockets := pocket.Group(
			snapshot.coins, snapshot.clusters, cfg.AnonScoreTarget,
		)
		writePockets(out, pockets)

		return nil
	}

	selector, err := coinselect.New(
		snapshot.coins, snapshot.clusters,
		coinselect.WithMaxInputs(cfg.MaxInputs),
		coinselect.WithSearchBudget(cfg.Budget),
	)
	if err != nil {
		return err
	}

	log.Infof("Selecting %v from %d coins holding %v", cfg.target,
		selector.Len(), selector.Available())

	selection, err := selector.Select(cfg.forced, cfg.target)

	var insufficient *coinselect.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		fmt.Fprintf(out, "insufficient funds: target %v, available %v, "+
			"missing %v\n", insufficient.Target,
			insufficient.Available, insufficient.Missing())

		return err

	case err != nil:
		return err
	}

	writeSelection(out, selection)

	return nil
}

func writeSelection(out io.Writer, s *coinselect.Selection) {
	for i, coin := range s.Coins {
		marker := " "
		if i < s.Forced {
			marker = "*"
		}

		fmt.Fprintf(out, "%s %v %v\n", marker, coin.OutPoint, coin.Amount)
	}

	fmt.Fprintf(out, "inputs: %d (forced %d)\n", len(s.Coins), s.Forced)
	fmt.Fprintf(out, "total: %v\n", s.Total)
	fmt.Fprintf(out, "change: %v\n", s.Change)
	fmt.Fprintf(out, "input size: %v\n", s.InputSize)

	if s.Heuristic {
		fmt.Fprintln(out, "note: search budget exhausted, result may "+
			"not be optimal")
	}
}

func writePockets(out io.Writer, pockets []pocket.Pocket) {
	for _, p := range pockets {
		label := p.Label()
		if label == "" {
			label = "(unlabeled)"
		}

		fmt.Fprintf(out, "%v\t%d coins\tcluster size %d\t%s\n", p.Total,
			len(p.Coins), p.ClusterSize, label)
	}
}
