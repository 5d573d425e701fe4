package coinselect

import (
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// score is the rank of a covering subset. All coverings compared against
// each other have the same number of coins, so the coin count itself does
// not show up here.
type score struct {
	// exact is set for a single coin matching the residual exactly. It
	// only applies to single coin coverings.
	exact bool

	// clusters is the number of distinct clusters the subset touches that
	// the forced coins did not touch already.
	clusters int

	// exposure is the combined member count of those clusters.
	exposure int

	// scripts is the number of distinct scripts the subset adds to the
	// transaction.
	scripts int

	// excess is the amount above the residual.
	excess btcutil.Amount

	// positions are the sorted candidate positions of the subset. They
	// break the remaining ties in favor of the caller's ordering.
	positions []int
}

// better reports whether s ranks strictly before other.
func (s *score) better(other *score) bool {
	switch {
	case s.exact != other.exact:
		return s.exact

	case s.clusters != other.clusters:
		return s.clusters < other.clusters

	case s.exposure != other.exposure:
		return s.exposure < other.exposure

	case s.scripts != other.scripts:
		return s.scripts < other.scripts

	case s.excess != other.excess:
		return s.excess < other.excess
	}

	return slices.Compare(s.positions, other.positions) < 0
}

// clone returns a deep copy of the score.
func (s *score) clone() *score {
	c := *s
	c.positions = slices.Clone(s.positions)

	return &c
}

// ranker scores candidate subsets relative to the forced coins of one
// selection. It reuses its buffers, so the score it returns is only valid
// until the next call.
type ranker struct {
	sel      *Selector
	residual btcutil.Amount
	single   bool

	// forcedClusters and forcedScripts are what the forced coins already
	// reveal. Spending more from them leaks nothing new.
	forcedClusters fn.Set[int]
	forcedScripts  fn.Set[int]

	clusters []int
	scripts  []int
	current  score
}

func newRanker(sel *Selector, forced []int, residual btcutil.Amount,
	size int) *ranker {

	r := &ranker{
		sel:            sel,
		residual:       residual,
		single:         size == 1,
		forcedClusters: fn.NewSet[int](),
		forcedScripts:  fn.NewSet[int](),
		clusters:       make([]int, 0, size),
		scripts:        make([]int, 0, size),
		current: score{
			positions: make([]int, 0, size),
		},
	}

	for _, i := range forced {
		r.forcedClusters.Add(sel.coins[i].cluster)
		r.forcedScripts.Add(sel.coins[i].script)
	}

	return r
}

// score ranks the given subset whose amounts add up to total.
func (r *ranker) score(subset []*candidate, total btcutil.Amount) *score {
	r.clusters = r.clusters[:0]
	r.scripts = r.scripts[:0]
	s := &r.current
	s.positions = s.positions[:0]
	s.exposure = 0

	for _, c := range subset {
		s.positions = append(s.positions, c.pos)

		if !r.forcedClusters.Contains(c.cluster) &&
			!slices.Contains(r.clusters, c.cluster) {

			r.clusters = append(r.clusters, c.cluster)
			s.exposure += r.sel.clusterSizes[c.cluster]
		}

		if !r.forcedScripts.Contains(c.script) &&
			!slices.Contains(r.scripts, c.script) {

			r.scripts = append(r.scripts, c.script)
		}
	}
	slices.Sort(s.positions)

	s.clusters = len(r.clusters)
	s.scripts = len(r.scripts)
	s.excess = total - r.residual
	s.exact = r.single && s.excess == 0

	return s
}
