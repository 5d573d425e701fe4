package cluster

import (
	"slices"
	"sort"
)

// Snapshot is an immutable cluster assignment taken from an Index. It is safe
// for concurrent use.
type Snapshot struct {
	byKey    map[KeyID]ID
	clusters map[ID]*Cluster
}

// ClusterOf returns the cluster the given key belongs to.
func (s *Snapshot) ClusterOf(key KeyID) (Cluster, bool) {
	if s == nil {
		return Cluster{}, false
	}

	id, ok := s.byKey[key]
	if !ok {
		return Cluster{}, false
	}

	return s.clusters[id].clone(), true
}

// Cluster returns the cluster with the given ID.
func (s *Snapshot) Cluster(id ID) (Cluster, bool) {
	if s == nil {
		return Cluster{}, false
	}

	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, false
	}

	return c.clone(), true
}

// Clusters returns all clusters of the snapshot ordered by ID.
func (s *Snapshot) Clusters() []Cluster {
	if s == nil {
		return nil
	}

	clusters := make([]Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		clusters = append(clusters, c.clone())
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].ID < clusters[j].ID
	})

	return clusters
}

// clone returns a copy of the cluster that shares no slices with the
// snapshot.
func (c *Cluster) clone() Cluster {
	return Cluster{
		ID:      c.ID,
		Members: slices.Clone(c.Members),
		Labels:  slices.Clone(c.Labels),
	}
}

// Len returns the number of keys covered by the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.byKey)
}
