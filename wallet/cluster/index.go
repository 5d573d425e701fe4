// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cluster tracks which of the wallet's key identities are believed to
// be linked together, e.g. because they were spent in the same transaction or
// handed out to the same counterparty.
//
// The Index is a union-find structure that only ever grows: keys are added
// when they are generated and clusters are merged when the wallet discovers
// new linkage. Readers such as the coin selector never touch the Index
// directly, instead they work against an immutable Snapshot.
package cluster

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrUnknownKey is returned when an operation references a key that
	// was never added to the index.
	ErrUnknownKey = errors.New("unknown key")

	// ErrNothingToLink is returned when Link is called with fewer than two
	// keys.
	ErrNothingToLink = errors.New("at least two keys are needed to link")
)

// KeyID is the identity of a key/script owned by the wallet. It is the sha256
// of the output script so that identities can be compared and used as map
// keys cheaply.
type KeyID chainhash.Hash

// KeyIDFromScript returns the identity of the given output script.
func KeyIDFromScript(pkScript []byte) KeyID {
	return KeyID(chainhash.HashH(pkScript))
}

// String returns the hex encoding of the key identity.
func (k KeyID) String() string {
	return chainhash.Hash(k).String()
}

// ID identifies a cluster within a snapshot. The ID of a cluster is the
// insertion sequence of its oldest member, which makes it stable across
// merges: two clusters that merge keep the smaller of their IDs.
type ID uint32

// Cluster is a read-only view of a set of linked keys.
type Cluster struct {
	// ID is the identifier of the cluster.
	ID ID

	// Members are the key identities of the cluster, ordered by the time
	// they were added to the index.
	Members []KeyID

	// Labels is the sorted, de-duplicated union of the labels of all
	// members.
	Labels []string
}

// Size returns the member count of the cluster.
func (c Cluster) Size() int {
	return len(c.Members)
}

// Label returns a human readable label of the cluster.
func (c Cluster) Label() string {
	return strings.Join(c.Labels, ", ")
}

// Index is a concurrency-safe union-find over key identities.
//
// NOTE: Clusters only ever grow. There is no way to unlink keys once the
// wallet learned that they are linked.
type Index struct {
	mu sync.RWMutex

	// nodes maps a key to its position in the parallel slices below.
	nodes map[KeyID]int

	keys   []KeyID
	parent []int

	// The following slices are only meaningful for root nodes.
	size   []int
	minID  []int
	labels []map[string]struct{}
}

// NewIndex creates an empty cluster index.
func NewIndex() *Index {
	return &Index{
		nodes: make(map[KeyID]int),
	}
}

// AddKey registers a new key in its own singleton cluster. If the key is
// already known, the labels are merged into its current cluster instead.
func (x *Index) AddKey(key KeyID, labels ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n, ok := x.nodes[key]; ok {
		root := x.find(n)
		addLabels(x.labels[root], labels)

		return
	}

	n := len(x.keys)
	x.nodes[key] = n
	x.keys = append(x.keys, key)
	x.parent = append(x.parent, n)
	x.size = append(x.size, 1)
	x.minID = append(x.minID, n)

	set := make(map[string]struct{}, len(labels))
	addLabels(set, labels)
	x.labels = append(x.labels, set)
}

// Link merges the clusters of all given keys into one. Every key must have
// been added beforehand.
func (x *Index) Link(keys ...KeyID) error {
	if len(keys) < 2 {
		return ErrNothingToLink
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Resolve all keys first so that an unknown key leaves the index
	// untouched.
	nodes := make([]int, 0, len(keys))
	for _, key := range keys {
		n, ok := x.nodes[key]
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownKey, key)
		}

		nodes = append(nodes, n)
	}

	root := x.find(nodes[0])
	for _, n := range nodes[1:] {
		root = x.union(root, x.find(n))
	}

	log.Debugf("Linked %d keys into cluster %d of size %d", len(keys),
		x.minID[root], x.size[root])

	return nil
}

// Len returns the number of keys in the index.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.keys)
}

// ClusterOf returns the current cluster of the given key. Only the members of
// that cluster are collected.
func (x *Index) ClusterOf(key KeyID) (Cluster, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	n, ok := x.nodes[key]
	if !ok {
		return Cluster{}, false
	}

	root := x.find(n)
	c := Cluster{
		ID:      ID(x.minID[root]),
		Members: make([]KeyID, 0, x.size[root]),
		Labels:  sortedLabels(x.labels[root]),
	}

	// A member can't be older than the cluster's oldest key.
	for m := x.minID[root]; m < len(x.keys); m++ {
		if len(c.Members) == x.size[root] {
			break
		}

		if x.find(m) == root {
			c.Members = append(c.Members, x.keys[m])
		}
	}

	return c, true
}

// Snapshot returns an immutable copy of the current cluster assignment.
func (x *Index) Snapshot() *Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := &Snapshot{
		byKey:    make(map[KeyID]ID, len(x.keys)),
		clusters: make(map[ID]*Cluster),
	}

	for n, key := range x.keys {
		root := x.find(n)
		id := ID(x.minID[root])

		c, ok := snap.clusters[id]
		if !ok {
			c = &Cluster{
				ID:      id,
				Members: make([]KeyID, 0, x.size[root]),
				Labels:  sortedLabels(x.labels[root]),
			}
			snap.clusters[id] = c
		}

		c.Members = append(c.Members, key)
		snap.byKey[key] = id
	}

	return snap
}

// find returns the root of n, compressing the path on the way. The caller
// must hold the write lock.
func (x *Index) find(n int) int {
	root := n
	for x.parent[root] != root {
		root = x.parent[root]
	}

	for x.parent[n] != root {
		next := x.parent[n]
		x.parent[n] = root
		n = next
	}

	return root
}

// union merges two roots by size and returns the new root.
func (x *Index) union(a, b int) int {
	if a == b {
		return a
	}

	if x.size[a] < x.size[b] {
		a, b = b, a
	}

	x.parent[b] = a
	x.size[a] += x.size[b]
	if x.minID[b] < x.minID[a] {
		x.minID[a] = x.minID[b]
	}

	for label := range x.labels[b] {
		x.labels[a][label] = struct{}{}
	}
	x.labels[b] = nil

	return a
}

func addLabels(set map[string]struct{}, labels []string) {
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}

		set[label] = struct{}{}
	}
}

func sortedLabels(set map[string]struct{}) []string {
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return labels
}
