package join

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

func putNode(ds *osmdata.DataSet, id int64, east, north float64) {
	ds.PutNode(&osmdata.Node{
		ID:  id,
		Pos: geom.Point{East: east, North: north},
		Lon: east,
		Lat: north,
	})
}

// putClosedWay stores a way with the closing node repetition appended.
func putClosedWay(ds *osmdata.DataSet, id int64, tags osmdata.Tags, nodes ...int64) {
	closed := append(append([]int64(nil), nodes...), nodes[0])
	ds.PutWay(&osmdata.Way{ID: id, Nodes: closed, Tags: tags})
}

// overlappingSquares builds two axis-aligned squares crossing each other at
// (2,1) and (1,2): way 1 spans (0,0)-(2,2), way 2 spans (1,1)-(3,3).
func overlappingSquares(tags1, tags2 osmdata.Tags) *osmdata.DataSet {
	ds := osmdata.NewDataSet()
	coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 1}, {3, 1}, {3, 3}, {1, 3}}
	for i, c := range coords {
		putNode(ds, int64(i+1), c[0], c[1])
	}
	putClosedWay(ds, 1, tags1, 1, 2, 3, 4)
	putClosedWay(ds, 2, tags2, 5, 6, 7, 8)
	return ds
}

// wayPointSet collects the distinct node positions of a way.
func wayPointSet(ds *osmdata.DataSet, wayID int64) map[geom.Point]bool {
	set := make(map[geom.Point]bool)
	for _, nid := range ds.Way(wayID).Nodes {
		set[ds.NodePos(nid)] = true
	}
	return set
}

func samePointSet(got map[geom.Point]bool, want [][2]float64) bool {
	if len(got) != len(want) {
		return false
	}
	for _, c := range want {
		if !got[geom.Point{East: c[0], North: c[1]}] {
			return false
		}
	}
	return true
}

func TestJoinOverlappingSquares(t *testing.T) {
	ds := overlappingSquares(osmdata.Tags{"landuse": "grass"}, osmdata.Tags{"landuse": "grass"})
	j := NewJoiner(ds, Options{})

	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !res.HasChanges {
		t.Fatal("HasChanges = false, want true")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	if len(res.Polygons) != 1 {
		t.Fatalf("got %d polygons, want 1", len(res.Polygons))
	}

	pol := res.Polygons[0]
	if pol.OuterWay != 1 {
		t.Errorf("OuterWay = %d, want the first selected way to keep its id", pol.OuterWay)
	}

	outer := ds.Way(pol.OuterWay)
	if outer == nil || !outer.Closed() {
		t.Fatalf("outer way %d missing or not closed", pol.OuterWay)
	}
	if len(outer.Nodes) != 9 {
		t.Errorf("outer way has %d node entries, want 9 (8 corners, closed)", len(outer.Nodes))
	}
	wantOuter := [][2]float64{{0, 0}, {2, 0}, {2, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 2}, {0, 2}}
	if !samePointSet(wayPointSet(ds, pol.OuterWay), wantOuter) {
		t.Errorf("outer boundary points = %v, want %v", wayPointSet(ds, pol.OuterWay), wantOuter)
	}
	if outer.Tags["landuse"] != "grass" {
		t.Errorf("outer tags = %v, want landuse=grass", outer.Tags)
	}

	// The doubly covered part counts as outside, so it survives as a hole.
	if len(pol.InnerWays) != 1 {
		t.Fatalf("got %d inner ways, want 1 (the overlap)", len(pol.InnerWays))
	}
	inner := ds.Way(pol.InnerWays[0])
	if inner == nil || !inner.Closed() {
		t.Fatalf("inner way %d missing or not closed", pol.InnerWays[0])
	}
	wantInner := [][2]float64{{1, 1}, {2, 1}, {2, 2}, {1, 2}}
	if !samePointSet(wayPointSet(ds, pol.InnerWays[0]), wantInner) {
		t.Errorf("inner boundary points = %v, want %v", wayPointSet(ds, pol.InnerWays[0]), wantInner)
	}
	if len(inner.Tags) != 0 {
		t.Errorf("inner way tags = %v, want stripped", inner.Tags)
	}

	if ds.WayCount() != 2 {
		t.Errorf("WayCount = %d, want 2 (outer and hole)", ds.WayCount())
	}
	if ds.RelationCount() != 1 {
		t.Fatalf("RelationCount = %d, want 1", ds.RelationCount())
	}
	rel := ds.Relation(ds.RelationIDs()[0])
	if !rel.IsMultipolygon() {
		t.Errorf("relation tags = %v, want type=multipolygon", rel.Tags)
	}
	if len(rel.Members) != 2 ||
		!rel.HasMember(osmdata.Member{Kind: osmdata.KindWay, Ref: pol.InnerWays[0], Role: "inner"}) ||
		!rel.HasMember(osmdata.Member{Kind: osmdata.KindWay, Ref: pol.OuterWay, Role: "outer"}) {
		t.Errorf("relation members = %v, want inner %d and outer %d", rel.Members, pol.InnerWays[0], pol.OuterWay)
	}
	if len(res.CreatedRelations) != 1 || res.CreatedRelations[0] != rel.ID {
		t.Errorf("CreatedRelations = %v, want [%d]", res.CreatedRelations, rel.ID)
	}

	if j.EditCount() == 0 {
		t.Error("EditCount = 0 after a committed join")
	}
}

func TestJoinDisjointSquares(t *testing.T) {
	ds := osmdata.NewDataSet()
	coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {10, 10}, {12, 10}, {12, 12}, {10, 12}}
	for i, c := range coords {
		putNode(ds, int64(i+1), c[0], c[1])
	}
	putClosedWay(ds, 1, nil, 1, 2, 3, 4)
	putClosedWay(ds, 2, nil, 5, 6, 7, 8)
	before := ds.Clone()

	j := NewJoiner(ds, Options{})
	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.HasChanges {
		t.Error("HasChanges = true for non-intersecting input")
	}
	if j.EditCount() != 0 {
		t.Errorf("EditCount = %d, want 0", j.EditCount())
	}
	if !ds.Equal(before) {
		t.Error("dataset modified by a no-op join")
	}
}

func TestJoinTouchingAtSinglePoint(t *testing.T) {
	// A square and a triangle below it whose apex lies in the middle of the
	// square's bottom edge. The apex node must be spliced into the square
	// and both areas survive as separate polygons.
	ds := osmdata.NewDataSet()
	coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 0}, {2, -1}, {0, -1}}
	for i, c := range coords {
		putNode(ds, int64(i+1), c[0], c[1])
	}
	putClosedWay(ds, 1, osmdata.Tags{"natural": "water"}, 1, 2, 3, 4)
	putClosedWay(ds, 2, osmdata.Tags{"natural": "water"}, 5, 6, 7)

	j := NewJoiner(ds, Options{})
	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !res.HasChanges {
		t.Fatal("HasChanges = false, want true")
	}
	if len(res.Polygons) != 2 {
		t.Fatalf("got %d polygons, want 2", len(res.Polygons))
	}
	outers := map[int64]bool{}
	for _, pol := range res.Polygons {
		if len(pol.InnerWays) != 0 {
			t.Errorf("polygon %d has inner ways %v, want none", pol.OuterWay, pol.InnerWays)
		}
		outers[pol.OuterWay] = true
	}
	if !outers[1] || !outers[2] {
		t.Errorf("outer ways = %v, want ways 1 and 2", outers)
	}

	square := ds.Way(1)
	touched := false
	for _, nid := range square.Nodes {
		if nid == 5 {
			touched = true
		}
	}
	if !touched {
		t.Errorf("square nodes = %v, want the touch node 5 spliced in", square.Nodes)
	}
	if ds.NodeCount() != 7 {
		t.Errorf("NodeCount = %d, want 7 (no synthetic node for an endpoint touch)", ds.NodeCount())
	}
	if ds.RelationCount() != 0 {
		t.Errorf("RelationCount = %d, want 0", ds.RelationCount())
	}
}

func TestJoinTagConflictAborts(t *testing.T) {
	ds := overlappingSquares(osmdata.Tags{"landuse": "grass"}, osmdata.Tags{"landuse": "forest"})
	before := ds.Clone()

	j := NewJoiner(ds, Options{})
	_, err := j.Join(context.Background(), []int64{1, 2})
	if !errors.Is(err, ErrTagConflict) {
		t.Fatalf("Join error = %v, want ErrTagConflict", err)
	}
	if !ds.Equal(before) {
		t.Error("dataset modified by an aborted join")
	}
	if j.EditCount() != 0 {
		t.Errorf("EditCount = %d after abort, want 0", j.EditCount())
	}
}

func TestJoinUnionPolicyMergesTags(t *testing.T) {
	ds := overlappingSquares(osmdata.Tags{"landuse": "grass"}, osmdata.Tags{"landuse": "forest"})

	j := NewJoiner(ds, Options{Resolver: &PolicyResolver{Policy: "union"}})
	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	got := ds.Way(res.Polygons[0].OuterWay).Tags["landuse"]
	if got != "grass;forest" {
		t.Errorf("merged landuse = %q, want %q", got, "grass;forest")
	}
}

func TestJoinSelectionErrors(t *testing.T) {
	ds := osmdata.NewDataSet()
	putNode(ds, 1, 0, 0)
	putNode(ds, 2, 1, 0)
	putNode(ds, 3, 1, 1)
	ds.PutWay(&osmdata.Way{ID: 10, Nodes: []int64{1, 2, 3}})

	tests := []struct {
		name      string
		selection []int64
		want      error
	}{
		{"empty selection", nil, ErrNothingToJoin},
		{"open way", []int64{10}, ErrOpenWay},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			j := NewJoiner(ds, Options{})
			if _, err := j.Join(context.Background(), tc.selection); !errors.Is(err, tc.want) {
				t.Errorf("Join error = %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("unknown way", func(t *testing.T) {
		j := NewJoiner(ds, Options{})
		_, err := j.Join(context.Background(), []int64{99})
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("Join error = %v, want a not-found error", err)
		}
	})
}

// cancelAfterContext reports cancellation starting with the n+1th Err call.
// It drives the pipeline into its checkpoints one by one.
type cancelAfterContext struct {
	calls int
	allow int
}

func (c *cancelAfterContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c *cancelAfterContext) Done() <-chan struct{}       { return nil }
func (c *cancelAfterContext) Value(key any) any           { return nil }

func (c *cancelAfterContext) Err() error {
	c.calls++
	if c.calls > c.allow {
		return context.Canceled
	}
	return nil
}

func TestJoinRollbackOnCancellation(t *testing.T) {
	for allow := 0; allow <= 3; allow++ {
		// Conflicting tags with the union policy guarantee committed edits
		// before the first checkpoint.
		ds := overlappingSquares(osmdata.Tags{"landuse": "grass"}, osmdata.Tags{"landuse": "forest"})
		before := ds.Clone()
		j := NewJoiner(ds, Options{Resolver: &PolicyResolver{Policy: "union"}})

		res, err := j.Join(&cancelAfterContext{allow: allow}, []int64{1, 2})

		if allow >= 3 {
			if err != nil {
				t.Fatalf("allow=%d: Join: %v", allow, err)
			}
			if !res.HasChanges {
				t.Errorf("allow=%d: HasChanges = false, want true", allow)
			}
			continue
		}

		if !errors.Is(err, context.Canceled) {
			t.Errorf("allow=%d: Join error = %v, want context.Canceled", allow, err)
		}
		if !ds.Equal(before) {
			t.Errorf("allow=%d: dataset differs from its pre-join state after rollback", allow)
		}
		if j.EditCount() != 0 {
			t.Errorf("allow=%d: EditCount = %d after rollback, want 0", allow, j.EditCount())
		}
	}
}

func TestJoinRelationReconciliation(t *testing.T) {
	ds := overlappingSquares(osmdata.Tags{"landuse": "grass"}, osmdata.Tags{"landuse": "grass"})

	// An untouched hole way referenced by the pre-existing multipolygon.
	putNode(ds, 20, 100, 100)
	putNode(ds, 21, 101, 100)
	putNode(ds, 22, 101, 101)
	putClosedWay(ds, 50, nil, 20, 21, 22)

	ds.PutRelation(&osmdata.Relation{
		ID:   100,
		Tags: osmdata.Tags{"type": "multipolygon", "name": "pond"},
		Members: []osmdata.Member{
			{Kind: osmdata.KindWay, Ref: 1, Role: "outer"},
			{Kind: osmdata.KindWay, Ref: 50, Role: "inner"},
		},
	})
	ds.PutRelation(&osmdata.Relation{
		ID:      200,
		Tags:    osmdata.Tags{"type": "route"},
		Members: []osmdata.Member{{Kind: osmdata.KindWay, Ref: 2, Role: ""}},
	})

	j := NewJoiner(ds, Options{})
	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(res.Polygons) != 1 {
		t.Fatalf("got %d polygons, want 1", len(res.Polygons))
	}
	pol := res.Polygons[0]

	if ds.Relation(100) != nil {
		t.Error("relation 100 still present, want it replaced by the combined relation")
	}

	// The non-multipolygon relation gets the merged way back under the role
	// the consumed way had.
	route := ds.Relation(200)
	if route == nil {
		t.Fatal("relation 200 deleted")
	}
	if len(route.Members) != 1 || route.Members[0].Ref != pol.OuterWay || route.Members[0].Role != "" {
		t.Errorf("route members = %v, want the merged way %d under its old role", route.Members, pol.OuterWay)
	}

	var combined *osmdata.Relation
	for _, rid := range ds.RelationIDs() {
		if r := ds.Relation(rid); r.IsMultipolygon() {
			combined = r
		}
	}
	if combined == nil {
		t.Fatal("no multipolygon relation after join")
	}
	if combined.Tags["name"] != "pond" {
		t.Errorf("combined tags = %v, want name=pond carried over", combined.Tags)
	}
	if len(combined.Members) != 3 ||
		!combined.HasMember(osmdata.Member{Kind: osmdata.KindWay, Ref: 50, Role: "inner"}) ||
		!combined.HasMember(osmdata.Member{Kind: osmdata.KindWay, Ref: pol.InnerWays[0], Role: "inner"}) ||
		!combined.HasMember(osmdata.Member{Kind: osmdata.KindWay, Ref: pol.OuterWay, Role: "outer"}) {
		t.Errorf("combined members = %v, want inner 50, inner %d, outer %d",
			combined.Members, pol.InnerWays[0], pol.OuterWay)
	}

	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want the combine warning and the relation surgery warning", res.Warnings)
	}
}

func TestTestJoin(t *testing.T) {
	t.Run("overlapping", func(t *testing.T) {
		ds := overlappingSquares(nil, nil)
		ok, err := NewJoiner(ds, Options{}).TestJoin([]int64{1, 2})
		if err != nil || !ok {
			t.Errorf("TestJoin = %v, %v, want true", ok, err)
		}
	})

	t.Run("disjoint", func(t *testing.T) {
		ds := osmdata.NewDataSet()
		coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {10, 10}, {12, 10}, {12, 12}, {10, 12}}
		for i, c := range coords {
			putNode(ds, int64(i+1), c[0], c[1])
		}
		putClosedWay(ds, 1, nil, 1, 2, 3, 4)
		putClosedWay(ds, 2, nil, 5, 6, 7, 8)
		ok, err := NewJoiner(ds, Options{}).TestJoin([]int64{1, 2})
		if err != nil || ok {
			t.Errorf("TestJoin = %v, %v, want false", ok, err)
		}
	})

	t.Run("shared corner node", func(t *testing.T) {
		ds := osmdata.NewDataSet()
		coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {4, 2}, {4, 4}, {2, 4}}
		for i, c := range coords {
			putNode(ds, int64(i+1), c[0], c[1])
		}
		putClosedWay(ds, 1, nil, 1, 2, 3, 4)
		putClosedWay(ds, 2, nil, 3, 5, 6, 7)
		ok, err := NewJoiner(ds, Options{}).TestJoin([]int64{1, 2})
		if err != nil || !ok {
			t.Errorf("TestJoin = %v, %v, want true", ok, err)
		}
	})

	t.Run("open way", func(t *testing.T) {
		ds := osmdata.NewDataSet()
		putNode(ds, 1, 0, 0)
		putNode(ds, 2, 1, 0)
		ds.PutWay(&osmdata.Way{ID: 10, Nodes: []int64{1, 2}})
		if _, err := NewJoiner(ds, Options{}).TestJoin([]int64{10}); !errors.Is(err, ErrOpenWay) {
			t.Errorf("TestJoin error = %v, want ErrOpenWay", err)
		}
	})
}

// edgeSharingSquares builds two squares sharing the whole edge between
// (2,0) and (2,2): way 1 spans (0,0)-(2,2), way 2 spans (2,0)-(4,2).
func edgeSharingSquares() *osmdata.DataSet {
	ds := osmdata.NewDataSet()
	coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {4, 0}, {4, 2}}
	for i, c := range coords {
		putNode(ds, int64(i+1), c[0], c[1])
	}
	putClosedWay(ds, 1, osmdata.Tags{"landuse": "meadow"}, 1, 2, 3, 4)
	putClosedWay(ds, 2, osmdata.Tags{"landuse": "meadow"}, 2, 5, 6, 3)
	return ds
}

func TestJoinEdgeSharingSquares(t *testing.T) {
	ds := edgeSharingSquares()
	j := NewJoiner(ds, Options{})

	res, err := j.Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !res.HasChanges {
		t.Fatal("HasChanges = false, want true")
	}
	if len(res.Polygons) != 1 {
		t.Fatalf("got %d polygons, want 1", len(res.Polygons))
	}

	pol := res.Polygons[0]
	if pol.OuterWay != 1 {
		t.Errorf("OuterWay = %d, want 1", pol.OuterWay)
	}
	if len(pol.InnerWays) != 0 {
		t.Errorf("InnerWays = %v, want none (shared boundary cancels)", pol.InnerWays)
	}

	outer := ds.Way(pol.OuterWay)
	if outer == nil || !outer.Closed() {
		t.Fatalf("outer way %d missing or not closed", pol.OuterWay)
	}
	if len(outer.Nodes) != 7 {
		t.Errorf("outer way has %d node entries, want 7 (6 corners, closed)", len(outer.Nodes))
	}
	wantOuter := [][2]float64{{0, 0}, {2, 0}, {4, 0}, {4, 2}, {2, 2}, {0, 2}}
	if !samePointSet(wayPointSet(ds, pol.OuterWay), wantOuter) {
		t.Errorf("boundary points = %v, want %v", wayPointSet(ds, pol.OuterWay), wantOuter)
	}
	if outer.Tags["landuse"] != "meadow" {
		t.Errorf("outer tags = %v, want landuse=meadow", outer.Tags)
	}

	if ds.NodeCount() != 6 {
		t.Errorf("NodeCount = %d, want 6 (no crossings, no new nodes)", ds.NodeCount())
	}
	if ds.WayCount() != 1 {
		t.Errorf("WayCount = %d, want 1", ds.WayCount())
	}
	if ds.RelationCount() != 0 {
		t.Errorf("RelationCount = %d, want 0", ds.RelationCount())
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
}

// TestJoinGridConfigurations runs the full join over several axis-aligned
// rectangle layouts and checks the polygon, way and relation counts plus
// the structural invariants every successful join must uphold.
func TestJoinGridConfigurations(t *testing.T) {
	tests := []struct {
		name      string
		build     func() *osmdata.DataSet
		selection []int64
		polygons  int
		inner     int
		ways      int
		relations int
	}{
		{
			name:      "crossing pair",
			build:     func() *osmdata.DataSet { return overlappingSquares(nil, nil) },
			selection: []int64{1, 2},
			polygons:  1,
			inner:     1,
			ways:      2,
			relations: 1,
		},
		{
			name:      "shared edge",
			build:     edgeSharingSquares,
			selection: []int64{1, 2},
			polygons:  1,
			inner:     0,
			ways:      1,
			relations: 0,
		},
		{
			name: "three chained squares",
			// Each square overlaps the next; the third also runs along
			// part of the first one's right edge.
			build: func() *osmdata.DataSet {
				ds := osmdata.NewDataSet()
				coords := [][2]float64{
					{0, 0}, {2, 0}, {2, 2}, {0, 2},
					{1, 0.5}, {3, 0.5}, {3, 2.5}, {1, 2.5},
					{2, 1}, {4, 1}, {4, 3}, {2, 3},
				}
				for i, c := range coords {
					putNode(ds, int64(i+1), c[0], c[1])
				}
				putClosedWay(ds, 1, nil, 1, 2, 3, 4)
				putClosedWay(ds, 2, nil, 5, 6, 7, 8)
				putClosedWay(ds, 3, nil, 9, 10, 11, 12)
				return ds
			},
			selection: []int64{1, 2, 3},
			polygons:  1,
			inner:     1,
			ways:      2,
			relations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := tt.build()
			res, err := NewJoiner(ds, Options{}).Join(context.Background(), tt.selection)
			if err != nil {
				t.Fatalf("Join: %v", err)
			}
			if !res.HasChanges {
				t.Fatal("HasChanges = false, want true")
			}
			if len(res.Polygons) != tt.polygons {
				t.Fatalf("got %d polygons, want %d", len(res.Polygons), tt.polygons)
			}

			innerTotal := 0
			for _, pol := range res.Polygons {
				innerTotal += len(pol.InnerWays)
				for _, wid := range append([]int64{pol.OuterWay}, pol.InnerWays...) {
					w := ds.Way(wid)
					if w == nil {
						t.Fatalf("result way %d missing from dataset", wid)
					}
					if !w.Closed() {
						t.Errorf("result way %d is not closed", wid)
					}
				}
			}
			if innerTotal != tt.inner {
				t.Errorf("got %d inner ways, want %d", innerTotal, tt.inner)
			}

			if ds.WayCount() != tt.ways {
				t.Errorf("WayCount = %d, want %d", ds.WayCount(), tt.ways)
			}
			if ds.RelationCount() != tt.relations {
				t.Errorf("RelationCount = %d, want %d", ds.RelationCount(), tt.relations)
			}

			// Every surviving way references only nodes that still exist.
			for _, wid := range ds.WayIDs() {
				for _, nid := range ds.Way(wid).Nodes {
					if ds.Node(nid) == nil {
						t.Errorf("way %d references missing node %d", wid, nid)
					}
				}
			}
		})
	}
}

func TestJoinCoincidentAreasVanish(t *testing.T) {
	// The same boundary drawn twice cancels out entirely: all fragments
	// pair up as duplicates and the area disappears, taking its unused
	// untagged nodes with it.
	ds := osmdata.NewDataSet()
	coords := [][2]float64{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	for i, c := range coords {
		putNode(ds, int64(i+1), c[0], c[1])
	}
	ds.Node(4).Tags = osmdata.Tags{"barrier": "gate"}
	putClosedWay(ds, 1, osmdata.Tags{"landuse": "forest"}, 1, 2, 3, 4)
	putClosedWay(ds, 2, osmdata.Tags{"landuse": "forest"}, 1, 2, 3, 4)

	res, err := NewJoiner(ds, Options{}).Join(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !res.HasChanges {
		t.Fatal("HasChanges = false, want true")
	}
	if len(res.Polygons) != 0 {
		t.Errorf("got %d polygons, want 0", len(res.Polygons))
	}
	if ds.WayCount() != 0 {
		t.Errorf("WayCount = %d, want 0", ds.WayCount())
	}
	for _, nid := range []int64{1, 2, 3} {
		if ds.Node(nid) != nil {
			t.Errorf("node %d survived with nothing referencing it", nid)
		}
	}
	if ds.Node(4) == nil {
		t.Error("tagged node 4 was deleted, want it kept")
	}
	if ds.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1 (only the tagged node)", ds.NodeCount())
	}
}

// TestJoinRandomGridRectangles joins batches of randomly placed
// axis-aligned rectangles and checks the invariants every outcome must
// uphold: a failed join leaves the dataset untouched, a successful one
// leaves only closed ways whose node references all resolve.
func TestJoinRandomGridRectangles(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 300; iter++ {
		ds := osmdata.NewDataSet()
		count := 2 + rng.Intn(3)
		var selection []int64
		nextNode := int64(1)
		for w := 0; w < count; w++ {
			minE := float64(rng.Intn(8))
			minN := float64(rng.Intn(8))
			width := float64(1 + rng.Intn(4))
			height := float64(1 + rng.Intn(4))
			ids := []int64{nextNode, nextNode + 1, nextNode + 2, nextNode + 3}
			putNode(ds, ids[0], minE, minN)
			putNode(ds, ids[1], minE+width, minN)
			putNode(ds, ids[2], minE+width, minN+height)
			putNode(ds, ids[3], minE, minN+height)
			nextNode += 4
			wayID := int64(100 + w)
			putClosedWay(ds, wayID, nil, ids...)
			selection = append(selection, wayID)
		}
		before := ds.Clone()

		res, err := NewJoiner(ds, Options{}).Join(context.Background(), selection)
		if err != nil {
			if !ds.Equal(before) {
				t.Fatalf("iteration %d: failed join modified the dataset: %v", iter, err)
			}
			continue
		}
		if !res.HasChanges {
			if !ds.Equal(before) {
				t.Fatalf("iteration %d: no-op join modified the dataset", iter)
			}
			continue
		}

		for _, wid := range ds.WayIDs() {
			w := ds.Way(wid)
			if !w.Closed() {
				t.Fatalf("iteration %d: way %d not closed after join", iter, wid)
			}
			for _, nid := range w.Nodes {
				if ds.Node(nid) == nil {
					t.Fatalf("iteration %d: way %d references missing node %d", iter, wid, nid)
				}
			}
		}
		for _, pol := range res.Polygons {
			for _, wid := range append([]int64{pol.OuterWay}, pol.InnerWays...) {
				if ds.Way(wid) == nil {
					t.Fatalf("iteration %d: result way %d missing from dataset", iter, wid)
				}
			}
		}
	}
}
