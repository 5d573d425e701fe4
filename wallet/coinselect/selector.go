// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/momantech/WalletWasabi/pkg/btcunit"
	"github.com/momantech/WalletWasabi/wallet/cluster"
)

// candidate is a coin annotated with everything the ranking needs. Scripts
// and clusters are replaced by dense ordinals so that the hot loop of the
// search never hashes.
type candidate struct {
	coin Coin

	// pos is the position of the coin in the slice handed to New.
	pos int

	// script is the ordinal of the coin's script identity.
	script int

	// cluster is the ordinal of the coin's cluster.
	cluster int
}

// Selection is the outcome of a successful coin selection.
type Selection struct {
	// Coins are the coins to spend. The forced coins come first in the
	// order they were requested, followed by the selected coins in the
	// order of the candidate set.
	Coins []Coin

	// Forced is the number of leading entries of Coins that were forced
	// by the caller.
	Forced int

	// Total is the sum of the amounts of Coins.
	Total btcutil.Amount

	// Change is the amount exceeding the target.
	Change btcutil.Amount

	// InputSize is the minimum virtual size the inputs spending Coins add
	// to a transaction.
	InputSize btcunit.VByte

	// Heuristic is true when the search was cut short or skipped. The
	// coins are then the best covering seen before the budget ran out, or
	// the largest coins if none was seen.
	Heuristic bool
}

// OutPoints returns the outpoints of the selected coins.
func (s *Selection) OutPoints() []wire.OutPoint {
	outpoints := make([]wire.OutPoint, 0, len(s.Coins))
	for i := range s.Coins {
		outpoints = append(outpoints, s.Coins[i].OutPoint)
	}

	return outpoints
}

// Selector picks coins from a fixed candidate set. It is immutable after
// creation and therefore safe for concurrent use.
type Selector struct {
	cfg selectorCfg

	// coins are the candidates in the order given to New.
	coins []candidate

	// byOutPoint maps an outpoint to its position in coins.
	byOutPoint map[wire.OutPoint]int

	// clusterSizes maps a cluster ordinal to its member count.
	clusterSizes []int

	// total is the sum of all candidate amounts.
	total btcutil.Amount
}

// clusterKey identifies a cluster during ordinal assignment. Keys that are
// unknown to the cluster view form a singleton cluster of their own.
type clusterKey struct {
	known bool
	id    cluster.ID
	key   cluster.KeyID
}

// New creates a selector over the given candidate coins. The cluster view is
// used to look up the cluster of every coin's script, a nil view puts every
// script into its own cluster.
func New(coins []Coin, clusters ClusterView, opts ...Option) (*Selector,
	error) {

	cfg := defaultSelectorCfg()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Selector{
		cfg:        cfg,
		coins:      make([]candidate, 0, len(coins)),
		byOutPoint: make(map[wire.OutPoint]int, len(coins)),
	}

	scripts := make(map[cluster.KeyID]int)
	clusterOrds := make(map[clusterKey]int)

	for i, coin := range coins {
		if coin.Amount <= 0 || coin.Amount > btcutil.MaxSatoshi {
			return nil, fmt.Errorf("%w: %v has %v", ErrInvalidAmount,
				coin.OutPoint, coin.Amount)
		}

		if _, ok := s.byOutPoint[coin.OutPoint]; ok {
			return nil, fmt.Errorf("%w: %v", ErrDuplicatedCoin,
				coin.OutPoint)
		}

		key := coin.KeyID()

		script, ok := scripts[key]
		if !ok {
			script = len(scripts)
			scripts[key] = script
		}

		ck, size := clusterKey{key: key}, 1
		if clusters != nil {
			if c, ok := clusters.ClusterOf(key); ok {
				ck = clusterKey{known: true, id: c.ID}
				size = max(c.Size(), 1)
			}
		}

		ord, ok := clusterOrds[ck]
		if !ok {
			ord = len(s.clusterSizes)
			clusterOrds[ck] = ord
			s.clusterSizes = append(s.clusterSizes, size)
		}

		s.byOutPoint[coin.OutPoint] = i
		s.coins = append(s.coins, candidate{
			coin:    coin,
			pos:     i,
			script:  script,
			cluster: ord,
		})
		s.total += coin.Amount
		if s.total > btcutil.MaxSatoshi {
			return nil, fmt.Errorf("%w: candidates exceed the supply "+
				"at %v", ErrInvalidAmount, coin.OutPoint)
		}
	}

	log.Tracef("Created selector over %d coins in %d clusters totaling %v",
		len(s.coins), len(s.clusterSizes), s.total)

	return s, nil
}

// Len returns the number of candidate coins.
func (s *Selector) Len() int {
	return len(s.coins)
}

// Available returns the total amount of all candidate coins.
func (s *Selector) Available() btcutil.Amount {
	return s.total
}

// Select returns the coins to spend for a payment of the given target. The
// forced outpoints are always part of the result. When they already cover the
// target nothing else is added, otherwise the best covering of the remaining
// amount is picked from the other candidates.
//
// An *InsufficientFundsError is returned when all candidates together cannot
// cover the target.
func (s *Selector) Select(forced []wire.OutPoint,
	target btcutil.Amount) (*Selection, error) {

	if target <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}

	forcedIdx, err := s.resolveForced(forced)
	if err != nil {
		return nil, err
	}

	var forcedTotal btcutil.Amount
	for _, i := range forcedIdx {
		forcedTotal += s.coins[i].coin.Amount
	}

	// The forced coins alone fund the payment, no ranking is needed.
	if forcedTotal >= target {
		log.Debugf("Forced coins (%v) cover target %v", forcedTotal,
			target)

		return s.newSelection(forcedIdx, nil, target, false), nil
	}

	if s.total < target {
		return nil, &InsufficientFundsError{
			Target:    target,
			Available: s.total,
		}
	}

	winner, heuristic, err := s.search(forcedIdx, target-forcedTotal)
	if err != nil {
		return nil, err
	}

	selection := s.newSelection(forcedIdx, winner, target, heuristic)

	log.Debugf("Selected %d coins (%d forced) totaling %v for target %v, "+
		"change=%v, heuristic=%v", len(selection.Coins), selection.Forced,
		selection.Total, target, selection.Change, heuristic)
	log.Tracef("Selection: %v", newLogClosure(func() string {
		return spew.Sdump(selection.OutPoints())
	}))

	return selection, nil
}

// resolveForced maps the forced outpoints to candidate positions.
func (s *Selector) resolveForced(forced []wire.OutPoint) ([]int, error) {
	seen := fn.NewSet[wire.OutPoint]()
	indices := make([]int, 0, len(forced))

	for _, op := range forced {
		if seen.Contains(op) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicatedCoin, op)
		}
		seen.Add(op)

		i, ok := s.byOutPoint[op]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownCoin, op)
		}

		indices = append(indices, i)
	}

	return indices, nil
}

// newSelection assembles the result from the forced and the selected
// candidate positions.
func (s *Selector) newSelection(forced, selected []int,
	target btcutil.Amount, heuristic bool) *Selection {

	selected = append([]int(nil), selected...)
	sort.Ints(selected)

	coins := make([]Coin, 0, len(forced)+len(selected))
	scripts := make([][]byte, 0, len(forced)+len(selected))
	for _, group := range [][]int{forced, selected} {
		for _, i := range group {
			coins = append(coins, s.coins[i].coin)
			scripts = append(scripts, s.coins[i].coin.PkScript)
		}
	}

	total := TotalAmount(coins)

	return &Selection{
		Coins:     coins,
		Forced:    len(forced),
		Total:     total,
		Change:    total - target,
		InputSize: btcunit.MinInputSize(scripts...),
		Heuristic: heuristic,
	}
}
