// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	jsoniter "github.com/json-iterator/go"
	"github.com/momantech/WalletWasabi/wallet/cluster"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// errNoScript is returned when a snapshot entry names neither an
	// address nor a script.
	errNoScript = errors.New("either address or script_hex is required")
)

// scriptRef identifies an output script by address or by its raw hex.
type scriptRef struct {
	Address   string `json:"address,omitempty"`
	ScriptHex string `json:"script_hex,omitempty"`
}

// pkScript resolves the reference to an output script.
func (r scriptRef) pkScript(params *chaincfg.Params) ([]byte, error) {
	switch {
	case r.Address != "" && r.ScriptHex != "":
		return nil, errors.New("address and script_hex are exclusive")

	case r.Address != "":
		addr, err := btcutil.DecodeAddress(r.Address, params)
		if err != nil {
			return nil, fmt.Errorf("decode address %q: %w",
				r.Address, err)
		}

		if !addr.IsForNet(params) {
			return nil, fmt.Errorf("address %q is not for %s",
				r.Address, params.Name)
		}

		return txscript.PayToAddrScript(addr)

	case r.ScriptHex != "":
		script, err := hex.DecodeString(r.ScriptHex)
		if err != nil {
			return nil, fmt.Errorf("decode script %q: %w",
				r.ScriptHex, err)
		}

		return script, nil

	default:
		return nil, errNoScript
	}
}

type snapshotCoin struct {
	OutPoint  string `json:"outpoint"`
	AmountSat int64  `json:"amount_sat"`
	Address   string `json:"address,omitempty"`
	ScriptHex string `json:"script_hex,omitempty"`
	AnonSet   uint32 `json:"anonset,omitempty"`
}

func (c snapshotCoin) script() scriptRef {
	return scriptRef{Address: c.Address, ScriptHex: c.ScriptHex}
}

type snapshotCluster struct {
	Labels  []string    `json:"labels"`
	Members []scriptRef `json:"members"`
}

type snapshotFile struct {
	Coins    []snapshotCoin    `json:"coins"`
	Clusters []snapshotCluster `json:"clusters"`
}

// walletSnapshot is a decoded snapshot ready for selection.
type walletSnapshot struct {
	coins    []coinselect.Coin
	clusters *cluster.Snapshot
}

// loadSnapshot reads and decodes the snapshot file at path.
func loadSnapshot(path string,
	params *chaincfg.Params) (*walletSnapshot, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeSnapshot(f, params)
}

// decodeSnapshot decodes a JSON snapshot, resolving addresses for the given
// network.
func decodeSnapshot(r io.Reader,
	params *chaincfg.Params) (*walletSnapshot, error) {

	var file snapshotFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	idx := cluster.NewIndex()
	for i, c := range file.Clusters {
		keys := make([]cluster.KeyID, 0, len(c.Members))
		for j, member := range c.Members {
			script, err := member.pkScript(params)
			if err != nil {
				return nil, fmt.Errorf("cluster %d member %d: %w",
					i, j, err)
			}

			key := cluster.KeyIDFromScript(script)
			idx.AddKey(key, c.Labels...)
			keys = append(keys, key)
		}

		if len(keys) < 2 {
			continue
		}

		if err := idx.Link(keys...); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
	}

	coins := make([]coinselect.Coin, 0, len(file.Coins))
	for i, c := range file.Coins {
		op, err := wire.NewOutPointFromString(c.OutPoint)
		if err != nil {
			return nil, fmt.Errorf("coin %d: invalid outpoint %q: %w",
				i, c.OutPoint, err)
		}

		script, err := c.script().pkScript(params)
		if err != nil {
			return nil, fmt.Errorf("coin %d: %w", i, err)
		}

		anonSet := c.AnonSet
		if anonSet == 0 {
			anonSet = 1
		}

		coins = append(coins, coinselect.Coin{
			OutPoint: *op,
			Amount:   btcutil.Amount(c.AmountSat),
			PkScript: script,
			AnonSet:  anonSet,
		})
	}

	log.Debugf("Loaded %d coins and %d clustered keys", len(coins),
		idx.Len())

	return &walletSnapshot{
		coins:    coins,
		clusters: idx.Snapshot(),
	}, nil
}
