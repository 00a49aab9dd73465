// Package edit implements the reversible edit log the join pipeline commits
// its mutations through. Every command captures enough old state to undo
// itself; the log replays inverses in reverse order to roll the dataset back
// to exactly the pre-operation state.
package edit

import (
	"fmt"

	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// Command is a single reversible dataset mutation.
type Command interface {
	Apply(ds *osmdata.DataSet) error
	Revert(ds *osmdata.DataSet) error
	String() string
}

// AddNode inserts a new node.
type AddNode struct {
	Node osmdata.Node
}

func (c *AddNode) Apply(ds *osmdata.DataSet) error {
	if ds.Node(c.Node.ID) != nil {
		return fmt.Errorf("add node %d: already exists", c.Node.ID)
	}
	n := c.Node
	n.Tags = c.Node.Tags.Clone()
	ds.PutNode(&n)
	return nil
}

func (c *AddNode) Revert(ds *osmdata.DataSet) error {
	ds.RemoveNode(c.Node.ID)
	return nil
}

func (c *AddNode) String() string { return fmt.Sprintf("add node %d", c.Node.ID) }

// AddWay inserts a new way.
type AddWay struct {
	Way osmdata.Way
}

func (c *AddWay) Apply(ds *osmdata.DataSet) error {
	if ds.Way(c.Way.ID) != nil {
		return fmt.Errorf("add way %d: already exists", c.Way.ID)
	}
	w := osmdata.Way{ID: c.Way.ID, Nodes: c.Way.CloneNodes(), Tags: c.Way.Tags.Clone()}
	ds.PutWay(&w)
	return nil
}

func (c *AddWay) Revert(ds *osmdata.DataSet) error {
	ds.RemoveWay(c.Way.ID)
	return nil
}

func (c *AddWay) String() string { return fmt.Sprintf("add way %d", c.Way.ID) }

// ChangeWayNodes replaces the node list of a way. Reversing a way and
// combining ways are both expressed through this command.
type ChangeWayNodes struct {
	WayID int64
	Old   []int64
	New   []int64
}

// NewChangeWayNodes captures the current node list of the way as the old
// state.
func NewChangeWayNodes(ds *osmdata.DataSet, wayID int64, newNodes []int64) *ChangeWayNodes {
	return &ChangeWayNodes{WayID: wayID, Old: ds.Way(wayID).CloneNodes(), New: newNodes}
}

func (c *ChangeWayNodes) Apply(ds *osmdata.DataSet) error {
	w := ds.Way(c.WayID)
	if w == nil {
		return fmt.Errorf("change way %d nodes: way not found", c.WayID)
	}
	w.Nodes = append([]int64(nil), c.New...)
	return nil
}

func (c *ChangeWayNodes) Revert(ds *osmdata.DataSet) error {
	w := ds.Way(c.WayID)
	if w == nil {
		return fmt.Errorf("revert way %d nodes: way not found", c.WayID)
	}
	w.Nodes = append([]int64(nil), c.Old...)
	return nil
}

func (c *ChangeWayNodes) String() string { return fmt.Sprintf("change nodes of way %d", c.WayID) }

// ChangeTags replaces the tag set of a node, way or relation.
type ChangeTags struct {
	Kind osmdata.Kind
	Ref  int64
	Old  osmdata.Tags
	New  osmdata.Tags
}

// NewChangeTags captures the current tags of the target as the old state.
func NewChangeTags(ds *osmdata.DataSet, kind osmdata.Kind, ref int64, newTags osmdata.Tags) *ChangeTags {
	var old osmdata.Tags
	switch kind {
	case osmdata.KindNode:
		old = ds.Node(ref).Tags
	case osmdata.KindWay:
		old = ds.Way(ref).Tags
	case osmdata.KindRelation:
		old = ds.Relation(ref).Tags
	}
	return &ChangeTags{Kind: kind, Ref: ref, Old: old.Clone(), New: newTags}
}

func (c *ChangeTags) set(ds *osmdata.DataSet, tags osmdata.Tags) error {
	switch c.Kind {
	case osmdata.KindNode:
		n := ds.Node(c.Ref)
		if n == nil {
			return fmt.Errorf("change tags: node %d not found", c.Ref)
		}
		n.Tags = tags.Clone()
	case osmdata.KindWay:
		w := ds.Way(c.Ref)
		if w == nil {
			return fmt.Errorf("change tags: way %d not found", c.Ref)
		}
		w.Tags = tags.Clone()
	case osmdata.KindRelation:
		r := ds.Relation(c.Ref)
		if r == nil {
			return fmt.Errorf("change tags: relation %d not found", c.Ref)
		}
		r.Tags = tags.Clone()
	}
	return nil
}

func (c *ChangeTags) Apply(ds *osmdata.DataSet) error  { return c.set(ds, c.New) }
func (c *ChangeTags) Revert(ds *osmdata.DataSet) error { return c.set(ds, c.Old) }

func (c *ChangeTags) String() string {
	return fmt.Sprintf("change tags of %s %d", c.Kind, c.Ref)
}

// AddRelation inserts a new relation.
type AddRelation struct {
	Relation osmdata.Relation
}

func (c *AddRelation) Apply(ds *osmdata.DataSet) error {
	if ds.Relation(c.Relation.ID) != nil {
		return fmt.Errorf("add relation %d: already exists", c.Relation.ID)
	}
	r := osmdata.Relation{
		ID:      c.Relation.ID,
		Members: c.Relation.CloneMembers(),
		Tags:    c.Relation.Tags.Clone(),
	}
	ds.PutRelation(&r)
	return nil
}

func (c *AddRelation) Revert(ds *osmdata.DataSet) error {
	ds.RemoveRelation(c.Relation.ID)
	return nil
}

func (c *AddRelation) String() string { return fmt.Sprintf("add relation %d", c.Relation.ID) }

// ChangeRelation replaces the member list and tags of a relation.
type ChangeRelation struct {
	RelationID int64
	OldMembers []osmdata.Member
	NewMembers []osmdata.Member
	OldTags    osmdata.Tags
	NewTags    osmdata.Tags
}

// NewChangeRelationMembers captures the current members of the relation as
// old state and leaves tags untouched.
func NewChangeRelationMembers(ds *osmdata.DataSet, relID int64, newMembers []osmdata.Member) *ChangeRelation {
	r := ds.Relation(relID)
	return &ChangeRelation{
		RelationID: relID,
		OldMembers: r.CloneMembers(),
		NewMembers: newMembers,
		OldTags:    r.Tags.Clone(),
		NewTags:    r.Tags.Clone(),
	}
}

func (c *ChangeRelation) set(ds *osmdata.DataSet, members []osmdata.Member, tags osmdata.Tags) error {
	r := ds.Relation(c.RelationID)
	if r == nil {
		return fmt.Errorf("change relation %d: not found", c.RelationID)
	}
	r.Members = append([]osmdata.Member(nil), members...)
	r.Tags = tags.Clone()
	return nil
}

func (c *ChangeRelation) Apply(ds *osmdata.DataSet) error {
	return c.set(ds, c.NewMembers, c.NewTags)
}

func (c *ChangeRelation) Revert(ds *osmdata.DataSet) error {
	return c.set(ds, c.OldMembers, c.OldTags)
}

func (c *ChangeRelation) String() string { return fmt.Sprintf("change relation %d", c.RelationID) }

// DeleteNode removes a node, keeping a full copy for revert.
type DeleteNode struct {
	Node osmdata.Node
}

// NewDeleteNode captures the node to be deleted.
func NewDeleteNode(ds *osmdata.DataSet, nodeID int64) *DeleteNode {
	n := ds.Node(nodeID)
	cp := *n
	cp.Tags = n.Tags.Clone()
	return &DeleteNode{Node: cp}
}

func (c *DeleteNode) Apply(ds *osmdata.DataSet) error {
	if ds.Node(c.Node.ID) == nil {
		return fmt.Errorf("delete node %d: not found", c.Node.ID)
	}
	ds.RemoveNode(c.Node.ID)
	return nil
}

func (c *DeleteNode) Revert(ds *osmdata.DataSet) error {
	n := c.Node
	n.Tags = c.Node.Tags.Clone()
	ds.PutNode(&n)
	return nil
}

func (c *DeleteNode) String() string { return fmt.Sprintf("delete node %d", c.Node.ID) }

// DeleteWay removes a way, keeping a full copy for revert.
type DeleteWay struct {
	Way osmdata.Way
}

// NewDeleteWay captures the way to be deleted.
func NewDeleteWay(ds *osmdata.DataSet, wayID int64) *DeleteWay {
	w := ds.Way(wayID)
	return &DeleteWay{Way: osmdata.Way{ID: w.ID, Nodes: w.CloneNodes(), Tags: w.Tags.Clone()}}
}

func (c *DeleteWay) Apply(ds *osmdata.DataSet) error {
	if ds.Way(c.Way.ID) == nil {
		return fmt.Errorf("delete way %d: not found", c.Way.ID)
	}
	ds.RemoveWay(c.Way.ID)
	return nil
}

func (c *DeleteWay) Revert(ds *osmdata.DataSet) error {
	w := osmdata.Way{ID: c.Way.ID, Nodes: c.Way.CloneNodes(), Tags: c.Way.Tags.Clone()}
	ds.PutWay(&w)
	return nil
}

func (c *DeleteWay) String() string { return fmt.Sprintf("delete way %d", c.Way.ID) }

// DeleteRelation removes a relation, keeping a full copy for revert.
type DeleteRelation struct {
	Relation osmdata.Relation
}

// NewDeleteRelation captures the relation to be deleted.
func NewDeleteRelation(ds *osmdata.DataSet, relID int64) *DeleteRelation {
	r := ds.Relation(relID)
	return &DeleteRelation{Relation: osmdata.Relation{
		ID:      r.ID,
		Members: r.CloneMembers(),
		Tags:    r.Tags.Clone(),
	}}
}

func (c *DeleteRelation) Apply(ds *osmdata.DataSet) error {
	if ds.Relation(c.Relation.ID) == nil {
		return fmt.Errorf("delete relation %d: not found", c.Relation.ID)
	}
	ds.RemoveRelation(c.Relation.ID)
	return nil
}

func (c *DeleteRelation) Revert(ds *osmdata.DataSet) error {
	r := osmdata.Relation{
		ID:      c.Relation.ID,
		Members: c.Relation.CloneMembers(),
		Tags:    c.Relation.Tags.Clone(),
	}
	ds.PutRelation(&r)
	return nil
}

func (c *DeleteRelation) String() string { return fmt.Sprintf("delete relation %d", c.Relation.ID) }
