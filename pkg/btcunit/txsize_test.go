package btcunit

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/stretchr/testify/require"
)

// TestVByteArithmetic checks adding sizes and their string form.
func TestVByteArithmetic(t *testing.T) {
	t.Parallel()

	sum := NewVByte(100).Add(NewVByte(41))
	require.Equal(t, uint64(141), sum.Val())
	require.Equal(t, "141 vb", sum.String())
	require.Equal(t, "0 vb", VByte{}.String())
}

// TestMinInputSize checks that the input size of several scripts is the sum
// of their individual sizes.
func TestMinInputSize(t *testing.T) {
	t.Parallel()

	// A P2WPKH script: OP_0 <20 byte hash>.
	p2wpkh := append([]byte{0x00, 0x14}, bytes.Repeat([]byte{1}, 20)...)

	// A P2TR script: OP_1 <32 byte key>.
	p2tr := append([]byte{0x51, 0x20}, bytes.Repeat([]byte{2}, 32)...)

	want := txsizes.GetMinInputVirtualSize(p2wpkh) +
		txsizes.GetMinInputVirtualSize(p2tr)

	got := MinInputSize(p2wpkh, p2tr)
	require.Equal(t, uint64(want), got.Val())

	require.Zero(t, MinInputSize().Val())
}
