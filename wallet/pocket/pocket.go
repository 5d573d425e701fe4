// Package pocket groups a wallet's coins into pockets, the unit in which a
// user picks coins by hand before a payment is funded. Coins that reached the
// wallet's anonymity target share one private pocket, all other coins are
// grouped by the cluster that can see them.
package pocket

import (
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
)

// PrivateLabel is the label of the pocket holding the coins that reached the
// anonymity target.
const PrivateLabel = "Private"

// Pocket is a group of coins that is selected or deselected as a whole.
type Pocket struct {
	// Labels are the labels of the cluster owning the coins. The private
	// pocket is labeled PrivateLabel.
	Labels []string

	// Private is set for the pocket of coins above the anonymity target.
	Private bool

	// ClusterSize is the member count of the pocket's cluster. It is zero
	// for the private pocket.
	ClusterSize int

	// Coins are the coins of the pocket in wallet order.
	Coins []coinselect.Coin

	// Total is the sum of the amounts of Coins.
	Total btcutil.Amount
}

// Label returns the human readable label of the pocket.
func (p *Pocket) Label() string {
	return strings.Join(p.Labels, ", ")
}

// Group sorts the given coins into pockets. Coins with an anonymity set of at
// least privateThreshold go to the private pocket. The pockets are ordered by
// total, largest first.
func Group(coins []coinselect.Coin, clusters coinselect.ClusterView,
	privateThreshold uint32) []Pocket {

	var (
		private *Pocket
		byKey   = make(map[string]*Pocket)
		pockets []*Pocket
	)

	for _, coin := range coins {
		if privateThreshold > 0 && coin.AnonSet >= privateThreshold {
			if private == nil {
				private = &Pocket{
					Labels:  []string{PrivateLabel},
					Private: true,
				}
				pockets = append(pockets, private)
			}

			private.add(coin)

			continue
		}

		key, pocket := pocketFor(coin, clusters)
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = pocket
			pockets = append(pockets, pocket)
			existing = pocket
		}

		existing.add(coin)
	}

	sort.SliceStable(pockets, func(i, j int) bool {
		if pockets[i].Total != pockets[j].Total {
			return pockets[i].Total > pockets[j].Total
		}

		return pockets[i].Label() < pockets[j].Label()
	})

	result := make([]Pocket, 0, len(pockets))
	for _, p := range pockets {
		result = append(result, *p)
	}

	log.Debugf("Grouped %d coins into %d pockets", len(coins), len(result))

	return result
}

// pocketFor returns the grouping key and an empty pocket for the cluster of
// the coin.
func pocketFor(coin coinselect.Coin,
	clusters coinselect.ClusterView) (string, *Pocket) {

	key := coin.KeyID()

	if clusters != nil {
		if c, ok := clusters.ClusterOf(key); ok {
			return fmt.Sprintf("cluster:%d", c.ID), &Pocket{
				Labels:      c.Labels,
				ClusterSize: c.Size(),
			}
		}
	}

	return "key:" + key.String(), &Pocket{ClusterSize: 1}
}

func (p *Pocket) add(coin coinselect.Coin) {
	p.Coins = append(p.Coins, coin)
	p.Total += coin.Amount
}

// Coins flattens the given pockets into a candidate set.
func Coins(pockets ...Pocket) []coinselect.Coin {
	var coins []coinselect.Coin
	for _, p := range pockets {
		coins = append(coins, p.Coins...)
	}

	return coins
}

// StillNeeded returns how much is missing for the given pockets to fund the
// target. A result of zero or less means enough is selected.
func StillNeeded(target btcutil.Amount, pockets ...Pocket) btcutil.Amount {
	needed := target
	for _, p := range pockets {
		needed -= p.Total
	}

	return needed
}
