package coinselect

const (
	// DefaultMaxInputs is the largest subset size the selector enumerates
	// exhaustively. Payments that need more coins are funded with the
	// largest-first heuristic.
	DefaultMaxInputs = 16

	// DefaultSearchBudget is the number of search nodes the selector
	// visits before it settles for the best covering found so far.
	DefaultSearchBudget = 1_000_000
)

// selectorCfg holds the tunables of a Selector.
type selectorCfg struct {
	maxInputs    int
	searchBudget int
}

func defaultSelectorCfg() selectorCfg {
	return selectorCfg{
		maxInputs:    DefaultMaxInputs,
		searchBudget: DefaultSearchBudget,
	}
}

// Option configures a Selector.
type Option func(*selectorCfg)

// WithMaxInputs sets the largest subset size that is searched exhaustively.
// Values below one are ignored.
func WithMaxInputs(n int) Option {
	return func(cfg *selectorCfg) {
		if n > 0 {
			cfg.maxInputs = n
		}
	}
}

// WithSearchBudget sets the number of search nodes visited before the
// selector stops enumerating. Values below one are ignored.
func WithSearchBudget(n int) Option {
	return func(cfg *selectorCfg) {
		if n > 0 {
			cfg.searchBudget = n
		}
	}
}
