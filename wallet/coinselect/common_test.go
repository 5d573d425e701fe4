package coinselect

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/momantech/WalletWasabi/wallet/cluster"
	"github.com/stretchr/testify/require"
)

// bitcents returns the given number of hundredths of a bitcoin.
func bitcents(n int64) btcutil.Amount {
	return btcutil.Amount(n) * btcutil.SatoshiPerBitcent
}

// wallet is a test helper that hands out coins on freshly generated keys and
// tracks their clusters.
type wallet struct {
	t     *testing.T
	index *cluster.Index
	coins []Coin
	seq   uint32
}

func newWallet(t *testing.T) *wallet {
	t.Helper()

	return &wallet{
		t:     t,
		index: cluster.NewIndex(),
	}
}

// newScript derives a unique P2WPKH script.
func (w *wallet) newScript() []byte {
	w.seq++

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], w.seq)
	hash := btcutil.Hash160(buf[:])

	return append([]byte{0x00, 0x14}, hash...)
}

// receive adds a coin paying to the given script.
func (w *wallet) receive(pkScript []byte, amount btcutil.Amount) Coin {
	w.seq++

	coin := Coin{
		OutPoint: wire.OutPoint{
			Hash:  chainhash.HashH([]byte(fmt.Sprintf("tx-%d", w.seq))),
			Index: w.seq % 3,
		},
		Amount:   amount,
		PkScript: pkScript,
		AnonSet:  1,
	}
	w.coins = append(w.coins, coin)

	return coin
}

// addCluster receives one coin per amount, each on a new key, and links all
// of those keys into a single cluster.
func (w *wallet) addCluster(label string, amounts ...btcutil.Amount) []Coin {
	w.t.Helper()

	coins := make([]Coin, 0, len(amounts))
	keys := make([]cluster.KeyID, 0, len(amounts))

	for _, amount := range amounts {
		pkScript := w.newScript()
		key := cluster.KeyIDFromScript(pkScript)

		w.index.AddKey(key, label)
		keys = append(keys, key)
		coins = append(coins, w.receive(pkScript, amount))
	}

	if len(keys) > 1 {
		require.NoError(w.t, w.index.Link(keys...))
	}

	return coins
}

// selector creates a selector over all coins received so far.
func (w *wallet) selector(opts ...Option) *Selector {
	w.t.Helper()

	s, err := New(w.coins, w.index.Snapshot(), opts...)
	require.NoError(w.t, err)

	return s
}

func repeat(amount btcutil.Amount, n int) []btcutil.Amount {
	amounts := make([]btcutil.Amount, n)
	for i := range amounts {
		amounts[i] = amount
	}

	return amounts
}

func outPoints(coins ...Coin) []wire.OutPoint {
	ops := make([]wire.OutPoint, 0, len(coins))
	for _, c := range coins {
		ops = append(ops, c.OutPoint)
	}

	return ops
}
