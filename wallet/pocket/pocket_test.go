package pocket

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/momantech/WalletWasabi/wallet/cluster"
	"github.com/momantech/WalletWasabi/wallet/coinselect"
	"github.com/stretchr/testify/require"
)

func testCoin(i int, script string, amount btcutil.Amount,
	anonSet uint32) coinselect.Coin {

	return coinselect.Coin{
		OutPoint: wire.OutPoint{
			Hash: chainhash.HashH([]byte(fmt.Sprintf("tx-%d", i))),
		},
		Amount:   amount,
		PkScript: []byte(script),
		AnonSet:  anonSet,
	}
}

func key(script string) cluster.KeyID {
	return cluster.KeyIDFromScript([]byte(script))
}

// TestGroup checks that coins are grouped by cluster and anonymity.
func TestGroup(t *testing.T) {
	t.Parallel()

	// Arrange: Alice and Bob share a cluster, Eve has her own, one key is
	// unknown to the index and two coins are private.
	idx := cluster.NewIndex()
	idx.AddKey(key("alice"), "Alice")
	idx.AddKey(key("bob"), "Bob")
	idx.AddKey(key("eve"), "Eve")
	require.NoError(t, idx.Link(key("alice"), key("bob")))

	coins := []coinselect.Coin{
		testCoin(0, "alice", 400, 1),
		testCoin(1, "eve", 50, 1),
		testCoin(2, "bob", 100, 2),
		testCoin(3, "mixed-1", 300, 50),
		testCoin(4, "stray", 50, 1),
		testCoin(5, "mixed-2", 300, 100),
	}

	// Act: Group with an anonymity target of 50.
	pockets := Group(coins, idx.Snapshot(), 50)

	// Assert: Four pockets ordered by total.
	require.Len(t, pockets, 4)

	require.Equal(t, []string{"Private"}, pockets[0].Labels)
	require.True(t, pockets[0].Private)
	require.Equal(t, btcutil.Amount(600), pockets[0].Total)
	require.Len(t, pockets[0].Coins, 2)

	require.Equal(t, "Alice, Bob", pockets[1].Label())
	require.Equal(t, 2, pockets[1].ClusterSize)
	require.Equal(t, btcutil.Amount(500), pockets[1].Total)
	require.Equal(t, []coinselect.Coin{coins[0], coins[2]},
		pockets[1].Coins)

	// Equal totals are ordered by label, the unlabeled pocket first.
	require.Empty(t, pockets[2].Labels)
	require.Equal(t, 1, pockets[2].ClusterSize)
	require.Equal(t, "Eve", pockets[3].Label())

	// Assert: Flattening all pockets gives back every coin.
	require.ElementsMatch(t, coins, Coins(pockets...))
}

// TestGroupWithoutThreshold checks that a zero threshold disables the
// private pocket.
func TestGroupWithoutThreshold(t *testing.T) {
	t.Parallel()

	coins := []coinselect.Coin{
		testCoin(0, "a", 10, 100),
		testCoin(1, "a", 20, 1),
	}

	pockets := Group(coins, nil, 0)
	require.Len(t, pockets, 1)
	require.False(t, pockets[0].Private)
	require.Equal(t, btcutil.Amount(30), pockets[0].Total)
}

// TestStillNeeded checks the amount missing for a pocket selection.
func TestStillNeeded(t *testing.T) {
	t.Parallel()

	pockets := Group([]coinselect.Coin{
		testCoin(0, "a", 10, 1),
		testCoin(1, "b", 20, 1),
	}, nil, 0)

	// The 20 sat pocket comes first.
	require.Equal(t, btcutil.Amount(20), pockets[0].Total)
	require.Equal(t, btcutil.Amount(25), StillNeeded(25))
	require.Equal(t, btcutil.Amount(5), StillNeeded(25, pockets[0]))
	require.Equal(t, btcutil.Amount(15), StillNeeded(25, pockets[1]))
	require.Equal(t, btcutil.Amount(-5), StillNeeded(25, pockets...))
}

// TestPocketsFundSelection runs a selection restricted to a chosen pocket.
func TestPocketsFundSelection(t *testing.T) {
	t.Parallel()

	coins := []coinselect.Coin{
		testCoin(0, "a", 10, 1),
		testCoin(1, "b", 20, 1),
		testCoin(2, "b", 15, 1),
	}
	pockets := Group(coins, nil, 0)

	// The "b" pocket holds 35 sats and comes first.
	s, err := coinselect.New(Coins(pockets[0]), nil)
	require.NoError(t, err)

	sel, err := s.Select(nil, 30)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(35), sel.Total)

	_, err = s.Select(nil, 40)
	require.ErrorIs(t, err, coinselect.ErrInsufficientFunds)
}
