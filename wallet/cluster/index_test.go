package cluster

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(i int) KeyID {
	return KeyIDFromScript([]byte(fmt.Sprintf("script-%d", i)))
}

// TestIndexSingletons checks that freshly added keys live in their own
// clusters.
func TestIndexSingletons(t *testing.T) {
	t.Parallel()

	// Arrange: Add three unrelated keys.
	idx := NewIndex()
	for i := 0; i < 3; i++ {
		idx.AddKey(testKey(i), fmt.Sprintf("label-%d", i))
	}

	// Act: Take a snapshot.
	snap := idx.Snapshot()

	// Assert: Every key is alone in its cluster and the IDs follow the
	// insertion order.
	require.Equal(t, 3, snap.Len())
	require.Len(t, snap.Clusters(), 3)

	for i := 0; i < 3; i++ {
		c, ok := snap.ClusterOf(testKey(i))
		require.True(t, ok)
		require.Equal(t, ID(i), c.ID)
		require.Equal(t, 1, c.Size())
		require.Equal(t, fmt.Sprintf("label-%d", i), c.Label())
	}

	_, ok := snap.ClusterOf(testKey(42))
	require.False(t, ok)
}

// TestIndexLink verifies that linking merges clusters, keeps the oldest ID
// and unions the labels.
func TestIndexLink(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	for i := 0; i < 5; i++ {
		idx.AddKey(testKey(i))
	}
	idx.AddKey(testKey(1), "Alice")
	idx.AddKey(testKey(3), "Bob", " ", "Alice")

	// Link 3 and 4 first, then join the pair with 1.
	require.NoError(t, idx.Link(testKey(3), testKey(4)))
	require.NoError(t, idx.Link(testKey(4), testKey(1)))

	snap := idx.Snapshot()
	c, ok := snap.ClusterOf(testKey(3))
	require.True(t, ok)

	require.Equal(t, ID(1), c.ID)
	require.Equal(t, 3, c.Size())
	require.Equal(t, []KeyID{testKey(1), testKey(3), testKey(4)}, c.Members)
	require.Equal(t, []string{"Alice", "Bob"}, c.Labels)
	require.Equal(t, "Alice, Bob", c.Label())

	// Keys 0 and 2 are untouched.
	require.Len(t, snap.Clusters(), 3)

	byID, ok := snap.Cluster(ID(1))
	require.True(t, ok)
	require.Equal(t, c, byID)
}

// TestIndexLinkErrors checks the failure modes of Link.
func TestIndexLinkErrors(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.AddKey(testKey(0))
	idx.AddKey(testKey(1))

	err := idx.Link(testKey(0))
	require.ErrorIs(t, err, ErrNothingToLink)

	err = idx.Link(testKey(0), testKey(7))
	require.ErrorIs(t, err, ErrUnknownKey)

	// A failed link must not merge anything.
	c, ok := idx.ClusterOf(testKey(0))
	require.True(t, ok)
	require.Equal(t, 1, c.Size())
}

// TestSnapshotIsImmutable ensures that later merges do not leak into a
// snapshot taken earlier.
func TestSnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.AddKey(testKey(0))
	idx.AddKey(testKey(1))

	before := idx.Snapshot()
	require.NoError(t, idx.Link(testKey(0), testKey(1)))
	after := idx.Snapshot()

	c, _ := before.ClusterOf(testKey(1))
	require.Equal(t, 1, c.Size())

	c, _ = after.ClusterOf(testKey(1))
	require.Equal(t, 2, c.Size())
	require.Equal(t, ID(0), c.ID)
}

// TestNilSnapshot checks that a nil snapshot behaves like an empty one.
func TestNilSnapshot(t *testing.T) {
	t.Parallel()

	var snap *Snapshot

	_, ok := snap.ClusterOf(testKey(0))
	require.False(t, ok)
	require.Nil(t, snap.Clusters())
	require.Zero(t, snap.Len())
}

// TestIndexConcurrentLinks links a chain of keys from many goroutines and
// checks that they all end up in one cluster.
func TestIndexConcurrentLinks(t *testing.T) {
	t.Parallel()

	const numKeys = 64

	idx := NewIndex()
	for i := 0; i < numKeys; i++ {
		idx.AddKey(testKey(i))
	}

	errs := make([]error, numKeys)
	var wg sync.WaitGroup
	for i := 1; i < numKeys; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			errs[i] = idx.Link(testKey(i-1), testKey(i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	snap := idx.Snapshot()
	require.Len(t, snap.Clusters(), 1)

	c, ok := snap.ClusterOf(testKey(numKeys - 1))
	require.True(t, ok)
	require.Equal(t, numKeys, c.Size())
	require.Equal(t, ID(0), c.ID)
	require.Equal(t, numKeys, idx.Len())
}

// TestIndexClusterOf checks that looking up a single key on the index agrees
// with the snapshot.
func TestIndexClusterOf(t *testing.T) {
	t.Parallel()

	// Arrange: Six keys where 1, 3 and 5 are linked and 2 carries a label.
	idx := NewIndex()
	for i := 0; i < 6; i++ {
		idx.AddKey(testKey(i))
	}
	idx.AddKey(testKey(2), "Carol")
	idx.AddKey(testKey(5), "Alice")
	require.NoError(t, idx.Link(testKey(5), testKey(3)))
	require.NoError(t, idx.Link(testKey(3), testKey(1)))

	snap := idx.Snapshot()

	for i := 0; i < 6; i++ {
		// Act: Look the key up on the index directly.
		got, ok := idx.ClusterOf(testKey(i))

		// Assert: It matches the snapshot.
		require.True(t, ok)
		want, _ := snap.ClusterOf(testKey(i))
		require.Equal(t, want, got, i)
	}

	c, _ := idx.ClusterOf(testKey(5))
	require.Equal(t, ID(1), c.ID)
	require.Equal(t, []KeyID{testKey(1), testKey(3), testKey(5)}, c.Members)
	require.Equal(t, []string{"Alice"}, c.Labels)

	_, ok := idx.ClusterOf(testKey(42))
	require.False(t, ok)
}

// TestSnapshotClustersAreCopies checks that modifying a returned cluster does
// not change the snapshot.
func TestSnapshotClustersAreCopies(t *testing.T) {
	t.Parallel()

	// Arrange: A snapshot with one labelled cluster of two keys.
	idx := NewIndex()
	idx.AddKey(testKey(0), "Alice")
	idx.AddKey(testKey(1), "Bob")
	require.NoError(t, idx.Link(testKey(0), testKey(1)))
	snap := idx.Snapshot()

	// Act: Overwrite the members and labels of every returned view.
	byKey, _ := snap.ClusterOf(testKey(0))
	byKey.Members[0] = testKey(9)
	byKey.Labels[0] = "Mallory"

	byID, _ := snap.Cluster(ID(0))
	byID.Members[1] = testKey(9)
	byID.Labels[1] = "Mallory"

	all := snap.Clusters()
	all[0].Members[0] = testKey(9)
	all[0].Labels[0] = "Mallory"

	// Assert: Later lookups still see the original cluster.
	c, ok := snap.ClusterOf(testKey(1))
	require.True(t, ok)
	require.Equal(t, []KeyID{testKey(0), testKey(1)}, c.Members)
	require.Equal(t, []string{"Alice", "Bob"}, c.Labels)

	c, ok = snap.Cluster(ID(0))
	require.True(t, ok)
	require.Equal(t, []KeyID{testKey(0), testKey(1)}, c.Members)
	require.Equal(t, []string{"Alice", "Bob"}, c.Labels)
}
