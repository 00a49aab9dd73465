package osmdata

import (
	"github.com/wegman-software/osmjoin/internal/geom"
)

// DataSet is the mutable arena of all loaded primitives. Lookup is O(1) by
// identifier. The set is not safe for concurrent mutation; the join pipeline
// is single-threaded by design.
type DataSet struct {
	nodes     map[int64]*Node
	ways      map[int64]*Way
	relations map[int64]*Relation

	// New primitives get negative identifiers counting down, so they can
	// never collide with anything read from an input file.
	nextID int64
}

// NewDataSet creates an empty dataset.
func NewDataSet() *DataSet {
	return &DataSet{
		nodes:     make(map[int64]*Node),
		ways:      make(map[int64]*Way),
		relations: make(map[int64]*Relation),
		nextID:    -1,
	}
}

// AllocateID reserves a fresh negative identifier for a new primitive.
func (ds *DataSet) AllocateID() int64 {
	id := ds.nextID
	ds.nextID--
	return id
}

// Node returns the node with the given id, or nil.
func (ds *DataSet) Node(id int64) *Node { return ds.nodes[id] }

// Way returns the way with the given id, or nil.
func (ds *DataSet) Way(id int64) *Way { return ds.ways[id] }

// Relation returns the relation with the given id, or nil.
func (ds *DataSet) Relation(id int64) *Relation { return ds.relations[id] }

// PutNode inserts or replaces a node.
func (ds *DataSet) PutNode(n *Node) { ds.nodes[n.ID] = n }

// PutWay inserts or replaces a way.
func (ds *DataSet) PutWay(w *Way) { ds.ways[w.ID] = w }

// PutRelation inserts or replaces a relation.
func (ds *DataSet) PutRelation(r *Relation) { ds.relations[r.ID] = r }

// RemoveNode deletes a node from the arena.
func (ds *DataSet) RemoveNode(id int64) { delete(ds.nodes, id) }

// RemoveWay deletes a way from the arena.
func (ds *DataSet) RemoveWay(id int64) { delete(ds.ways, id) }

// RemoveRelation deletes a relation from the arena.
func (ds *DataSet) RemoveRelation(id int64) { delete(ds.relations, id) }

// NodeCount returns the number of nodes.
func (ds *DataSet) NodeCount() int { return len(ds.nodes) }

// WayCount returns the number of ways.
func (ds *DataSet) WayCount() int { return len(ds.ways) }

// RelationCount returns the number of relations.
func (ds *DataSet) RelationCount() int { return len(ds.relations) }

// NodeIDs returns all node identifiers in ascending order.
func (ds *DataSet) NodeIDs() []int64 { return sortedIDs(ds.nodes) }

// WayIDs returns all way identifiers in ascending order.
func (ds *DataSet) WayIDs() []int64 { return sortedIDs(ds.ways) }

// RelationIDs returns all relation identifiers in ascending order.
func (ds *DataSet) RelationIDs() []int64 { return sortedIDs(ds.relations) }

// NodePos returns the projected position of a node reference. Looking up a
// dangling reference is a programming error upstream; callers may assume the
// node exists.
func (ds *DataSet) NodePos(id int64) geom.Point {
	return ds.nodes[id].Pos
}

// WayPoints returns the projected positions of all nodes of a way, in order.
func (ds *DataSet) WayPoints(w *Way) []geom.Point {
	pts := make([]geom.Point, len(w.Nodes))
	for i, n := range w.Nodes {
		pts[i] = ds.nodes[n].Pos
	}
	return pts
}

// ParentRelations returns all relations that reference at least one of the
// given ways as a member, ordered by relation id.
func (ds *DataSet) ParentRelations(wayIDs []int64) []*Relation {
	wanted := make(map[int64]bool, len(wayIDs))
	for _, id := range wayIDs {
		wanted[id] = true
	}

	var result []*Relation
	for _, rid := range ds.RelationIDs() {
		r := ds.relations[rid]
		for _, m := range r.Members {
			if m.Kind == KindWay && wanted[m.Ref] {
				result = append(result, r)
				break
			}
		}
	}
	return result
}

// Clone returns a deep copy of the dataset. Used by dry-run probes and by
// tests that compare pre/post rollback state.
func (ds *DataSet) Clone() *DataSet {
	out := NewDataSet()
	out.nextID = ds.nextID
	for id, n := range ds.nodes {
		cp := *n
		cp.Tags = n.Tags.Clone()
		out.nodes[id] = &cp
	}
	for id, w := range ds.ways {
		out.ways[id] = &Way{ID: w.ID, Nodes: w.CloneNodes(), Tags: w.Tags.Clone()}
	}
	for id, r := range ds.relations {
		out.relations[id] = &Relation{ID: r.ID, Members: r.CloneMembers(), Tags: r.Tags.Clone()}
	}
	return out
}

// Equal reports whether two datasets contain identical primitives. Intended
// for tests; identifier allocation state is not compared.
func (ds *DataSet) Equal(other *DataSet) bool {
	if len(ds.nodes) != len(other.nodes) || len(ds.ways) != len(other.ways) ||
		len(ds.relations) != len(other.relations) {
		return false
	}
	for id, n := range ds.nodes {
		on := other.nodes[id]
		if on == nil || !n.Pos.Equals(on.Pos) || !n.Tags.Equal(on.Tags) {
			return false
		}
	}
	for id, w := range ds.ways {
		ow := other.ways[id]
		if ow == nil || !w.Tags.Equal(ow.Tags) || len(w.Nodes) != len(ow.Nodes) {
			return false
		}
		for i := range w.Nodes {
			if w.Nodes[i] != ow.Nodes[i] {
				return false
			}
		}
	}
	for id, r := range ds.relations {
		or := other.relations[id]
		if or == nil || !r.Tags.Equal(or.Tags) || len(r.Members) != len(or.Members) {
			return false
		}
		for i := range r.Members {
			if r.Members[i] != or.Members[i] {
				return false
			}
		}
	}
	return true
}
