// Package osmdata holds the in-memory entity arena the join algorithm works
// on. Nodes, ways and relations are addressed by stable int64 identifiers;
// ways and relations reference other entities by identifier, never by
// pointer, so the OSM back-reference cycles never become ownership cycles.
package osmdata

import (
	"sort"

	"github.com/wegman-software/osmjoin/internal/geom"
)

// Kind identifies one of the three fixed OSM primitive kinds.
type Kind int

const (
	KindNode Kind = iota
	KindWay
	KindRelation
)

// String returns the OSM element name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Tags is a string tag map on any primitive.
type Tags map[string]string

// Clone returns a copy of the tag map. Clone of nil is an empty map.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports whether two tag maps hold the same entries.
func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	for k, v := range t {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Node is a point identity. Position is in projected east/north space;
// Lat/Lon keep the source coordinates for writing the dataset back out.
type Node struct {
	ID   int64
	Pos  geom.Point
	Lat  float64
	Lon  float64
	Tags Tags
}

// Way is an ordered sequence of node references.
type Way struct {
	ID    int64
	Nodes []int64
	Tags  Tags
}

// Closed reports whether the way begins and ends at the same node.
func (w *Way) Closed() bool {
	return len(w.Nodes) >= 2 && w.Nodes[0] == w.Nodes[len(w.Nodes)-1]
}

// FirstNode returns the first node reference.
func (w *Way) FirstNode() int64 {
	return w.Nodes[0]
}

// LastNode returns the last node reference.
func (w *Way) LastNode() int64 {
	return w.Nodes[len(w.Nodes)-1]
}

// CloneNodes returns a copy of the node reference slice.
func (w *Way) CloneNodes() []int64 {
	out := make([]int64, len(w.Nodes))
	copy(out, w.Nodes)
	return out
}

// Member is one entry of a relation: a reference to a primitive plus the
// role it plays inside the relation.
type Member struct {
	Kind Kind
	Ref  int64
	Role string
}

// Relation groups primitives under roles. type=multipolygon relations tie
// outer boundary ways to their inner hole ways.
type Relation struct {
	ID      int64
	Members []Member
	Tags    Tags
}

// IsMultipolygon reports whether the relation is tagged type=multipolygon.
func (r *Relation) IsMultipolygon() bool {
	return r.Tags["type"] == "multipolygon"
}

// CloneMembers returns a copy of the member list.
func (r *Relation) CloneMembers() []Member {
	out := make([]Member, len(r.Members))
	copy(out, r.Members)
	return out
}

// HasMember reports whether an identical (kind, ref, role) entry exists.
func (r *Relation) HasMember(m Member) bool {
	for _, existing := range r.Members {
		if existing == m {
			return true
		}
	}
	return false
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
