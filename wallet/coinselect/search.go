package coinselect

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// search finds the best covering of residual among the candidates that are
// not forced. It returns the candidate positions of the winner and whether the
// winner was found heuristically.
//
// The candidates are ordered by amount, largest first. The k largest coins
// then form the largest possible k-subset, so the smallest k whose largest
// coins cover the residual is the minimal number of inputs. Only subsets of
// exactly that size are enumerated.
func (s *Selector) search(forced []int, residual btcutil.Amount) ([]int,
	bool, error) {

	excluded := fn.NewSet(forced...)

	pool := make([]*candidate, 0, len(s.coins)-len(forced))
	for i := range s.coins {
		if excluded.Contains(i) {
			continue
		}

		pool = append(pool, &s.coins[i])
	}

	// A stable sort keeps equal amounts in the caller's order which the
	// duplicate elimination of the walker relies on.
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].coin.Amount > pool[j].coin.Amount
	})

	// prefix[i] is the total of the i largest candidates.
	prefix := make([]btcutil.Amount, len(pool)+1)
	for i, c := range pool {
		prefix[i+1] = prefix[i] + c.coin.Amount
	}

	k := sort.Search(len(prefix), func(i int) bool {
		return prefix[i] >= residual
	})
	if k == len(prefix) {
		// The caller checked the overall balance, so this means the
		// forced coins were counted twice somewhere.
		return nil, false, &InsufficientFundsError{
			Target:    residual,
			Available: prefix[len(pool)],
		}
	}

	if k > s.cfg.maxInputs {
		log.Debugf("Covering %v needs %d inputs, more than the max of "+
			"%d, falling back to largest-first", residual, k,
			s.cfg.maxInputs)

		winner, err := largestFirst(pool, residual)

		return winner, true, err
	}

	w := &walker{
		pool:     pool,
		prefix:   prefix,
		residual: residual,
		k:        k,
		budget:   s.cfg.searchBudget,
		picks:    make([]*candidate, k),
		ranker:   newRanker(s, forced, residual, k),
	}

	complete := w.walk(0, 0, 0)
	if !complete {
		log.Debugf("Search budget of %d nodes exhausted for %d-input "+
			"coverings of %v", s.cfg.searchBudget, k, residual)
	}

	if w.best == nil {
		winner, err := largestFirst(pool, residual)

		return winner, true, err
	}

	log.Tracef("Visited %d nodes searching %d-input coverings of %v",
		w.visited, k, residual)

	return w.best.positions, !complete, nil
}

// walker enumerates the k-subsets of the pool that cover the residual and
// keeps the best one according to its ranker.
type walker struct {
	pool     []*candidate
	prefix   []btcutil.Amount
	residual btcutil.Amount
	k        int

	budget  int
	visited int

	// picks holds the candidates of the subset under construction.
	picks []*candidate

	ranker *ranker
	best   *score
}

// walk extends the current subset at the given depth with candidates from
// start onwards. It returns false once the search budget is used up.
func (w *walker) walk(start, depth int, sum btcutil.Amount) bool {
	if depth == w.k {
		if sum >= w.residual {
			w.consider(sum)
		}

		return true
	}

	remaining := w.k - depth
	for i := start; i+remaining <= len(w.pool); i++ {
		// The best this branch can do is to take the next largest
		// coins. The candidates shrink from here on, so once that
		// falls short no later branch can cover either.
		if sum+w.prefix[i+remaining]-w.prefix[i] < w.residual {
			break
		}

		// A coin interchangeable with its predecessor leads to
		// subsets that rank the same but sit at later positions. The
		// predecessor's branch already covered them.
		if i > start && interchangeable(w.pool[i], w.pool[i-1]) {
			continue
		}

		w.visited++
		if w.visited > w.budget {
			return false
		}

		w.picks[depth] = w.pool[i]
		if !w.walk(i+1, depth+1, sum+w.pool[i].coin.Amount) {
			return false
		}
	}

	return true
}

// consider ranks the complete subset in picks and keeps it if it beats the
// best one so far.
func (w *walker) consider(sum btcutil.Amount) {
	current := w.ranker.score(w.picks, sum)
	if w.best == nil || current.better(w.best) {
		w.best = current.clone()
	}
}

// interchangeable reports whether swapping a for b in any subset leaves its
// rank untouched.
func interchangeable(a, b *candidate) bool {
	return a.coin.Amount == b.coin.Amount && a.script == b.script &&
		a.cluster == b.cluster
}

// largestFirst picks the largest candidates until the residual is covered.
// The pool must already be ordered largest first.
func largestFirst(pool []*candidate, residual btcutil.Amount) ([]int,
	error) {

	coins := make([]coinset.Coin, 0, len(pool))
	for _, c := range pool {
		coins = append(coins, selectable{c})
	}

	selector := coinset.MinIndexCoinSelector{
		MaxInputs: len(coins),
	}

	set, err := selector.CoinSelect(residual, coins)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}

	positions := make([]int, 0, len(set.Coins()))
	for _, c := range set.Coins() {
		positions = append(positions, c.(selectable).pos)
	}

	return positions, nil
}

// selectable adapts a candidate to the coinset.Coin interface.
type selectable struct {
	*candidate
}

// Hash returns the hash of the transaction creating the coin.
func (s selectable) Hash() *chainhash.Hash {
	return &s.coin.Hash
}

// Index returns the output index of the coin.
func (s selectable) Index() uint32 {
	return s.coin.Index
}

// Value returns the amount of the coin.
func (s selectable) Value() btcutil.Amount {
	return s.coin.Amount
}

// PkScript returns the output script of the coin.
func (s selectable) PkScript() []byte {
	return s.coin.PkScript
}

// NumConfs is not tracked by the selector.
func (s selectable) NumConfs() int64 {
	return 0
}

// ValueAge is not tracked by the selector.
func (s selectable) ValueAge() int64 {
	return 0
}

// A compile time check to ensure selectable satisfies coinset.Coin.
var _ coinset.Coin = selectable{}
