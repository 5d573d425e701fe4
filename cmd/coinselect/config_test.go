package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
	"github.com/stretchr/testify/require"
)

var testTxid = strings.Repeat("ab", 32)

// TestLoadConfig checks parsing and defaults of the command line.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig([]string{
		"--snapshot", "wallet.json",
		"--target", "0.015",
		"--force", testTxid + ":1",
		"-f", testTxid + ":2",
		"--network", "regtest",
		"--logdir", "",
	})
	require.NoError(t, err)

	require.Equal(t, "wallet.json", cfg.Snapshot)
	require.Equal(t, btcutil.Amount(1_500_000), cfg.target)
	require.Equal(t, &chaincfg.RegressionNetParams, cfg.params)
	require.Equal(t, coinselect.DefaultMaxInputs, cfg.MaxInputs)
	require.Equal(t, coinselect.DefaultSearchBudget, cfg.Budget)
	require.Empty(t, cfg.LogDir)

	require.Len(t, cfg.forced, 2)
	require.Equal(t, testTxid, cfg.forced[0].Hash.String())
	require.Equal(t, uint32(1), cfg.forced[0].Index)
	require.Equal(t, uint32(2), cfg.forced[1].Index)
}

// TestLoadConfigErrors checks the validation of the command line.
func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{"missing snapshot", []string{"--target", "1"}},
		{"missing target", []string{"-s", "w.json"}},
		{"bad target", []string{"-s", "w.json", "-t", "one"}},
		{"bad network", []string{"-s", "w.json", "-t", "1", "--network",
			"moon"}},
		{"bad outpoint", []string{"-s", "w.json", "-t", "1", "-f",
			"nope"}},
		{"bad max inputs", []string{"-s", "w.json", "-t", "1",
			"--maxinputs", "0"}},
		{"bad budget", []string{"-s", "w.json", "-t", "1", "--budget",
			"-1"}},
		{"bad level", []string{"-s", "w.json", "-t", "1", "-d",
			"loud"}},
		{"bad subsystem", []string{"-s", "w.json", "-t", "1", "-d",
			"NOPE=debug"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadConfig(tc.args)
			require.Error(t, err)
		})
	}
}

// TestLoadConfigPockets checks that listing pockets needs no target.
func TestLoadConfigPockets(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig([]string{"-s", "w.json", "--pockets",
		"--anonscoretarget", "10", "-d", "CSEL=trace,MAIN=warn"})
	require.NoError(t, err)
	require.True(t, cfg.Pockets)
	require.Equal(t, uint32(10), cfg.AnonScoreTarget)
	require.Zero(t, cfg.target)
}

// TestLoadConfigHelp checks that the help flag is reported as such.
func TestLoadConfigHelp(t *testing.T) {
	t.Parallel()

	_, err := loadConfig([]string{"--help"})

	var flagsErr *flags.Error
	require.True(t, errors.As(err, &flagsErr))
	require.Equal(t, flags.ErrHelp, flagsErr.Type)
}

// TestParseBTC checks the conversion of BTC strings to satoshis.
func TestParseBTC(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want btcutil.Amount
		err  bool
	}{
		{in: "1", want: btcutil.SatoshiPerBitcoin},
		{in: "0.00000001", want: 1},
		{in: "20999999.97690000", want: 2099999997690000},
		{in: " 0.1 ", want: 10_000_000},
		{in: ".5", want: 50_000_000},
		{in: "21000000", want: btcutil.MaxSatoshi},
		{in: "0.123456789", err: true},
		{in: "92233720368.54775807", err: true},
		{in: "21000000.00000001", err: true},
		{in: "-1", err: true},
		{in: "+1", err: true},
		{in: "1e5", err: true},
		{in: ".", err: true},
		{in: "", err: true},
		{in: "21000001", err: true},
		{in: "abc", err: true},
		{in: "NaN", err: true},
	}

	for _, tc := range testCases {
		got, err := parseBTC(tc.in)
		if tc.err {
			require.ErrorIs(t, err, errBadAmount, tc.in)
			continue
		}

		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}
