// Package join implements merging of overlapping closed ways and
// multipolygons. The pipeline unifies duplicate nodes, inserts intersection
// nodes, splits the ways into oriented fragments, classifies which side of
// each fragment is interior, walks the fragments clockwise into boundary
// rings, nests the rings into outer/inner groups and reconciles the relation
// memberships of the consumed ways. Every mutation goes through a reversible
// edit log; on any internal failure or cancellation the dataset is restored
// exactly.
package join

import (
	"fmt"
	"strings"

	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// Multipolygon is one area: an outer boundary way plus its hole ways. It is
// used both for collected input areas and for result polygons.
type Multipolygon struct {
	OuterWay  int64
	InnerWays []int64
}

// Result describes the outcome of a join.
type Result struct {
	// HasChanges is false when no intersections were found and nothing was
	// committed.
	HasChanges bool
	// Polygons lists the resulting top-level areas.
	Polygons []Multipolygon
	// Warnings are operator-facing notes about relation surgery that the
	// operator should verify.
	Warnings []string
	// CreatedRelations lists relations synthesized during the join, either
	// for inner rings or to combine several outer memberships.
	CreatedRelations []int64
}

// wayInPolygon is an oriented fragment: a way plus the side its polygon
// interior lies on. insideToTheRight means the interior is to the right when
// walking the way in storage direction.
type wayInPolygon struct {
	wayID            int64
	insideToTheRight bool
}

func (w *wayInPolygon) String() string {
	side := "left"
	if w.insideToTheRight {
		side = "right"
	}
	return fmt.Sprintf("way %d (inside %s)", w.wayID, side)
}

// assembledRing is an ordered list of oriented fragments whose concatenated
// node sequence is closed.
type assembledRing struct {
	ways []*wayInPolygon
}

// nodes returns the boundary node sequence, one entry per node, without the
// closing repetition. Each fragment contributes its nodes in traversal
// direction, dropping the final node which the next fragment repeats.
func (r *assembledRing) nodes(ds *osmdata.DataSet) []int64 {
	var out []int64
	for _, frag := range r.ways {
		w := ds.Way(frag.wayID)
		if frag.insideToTheRight {
			for pos := 0; pos < len(w.Nodes)-1; pos++ {
				out = append(out, w.Nodes[pos])
			}
		} else {
			for pos := len(w.Nodes) - 1; pos > 0; pos-- {
				out = append(out, w.Nodes[pos])
			}
		}
	}
	return out
}

// reverse flips inside and outside of the ring.
func (r *assembledRing) reverse() {
	for _, frag := range r.ways {
		frag.insideToTheRight = !frag.insideToTheRight
	}
	for i, j := 0, len(r.ways)-1; i < j; i, j = i+1, j-1 {
		r.ways[i], r.ways[j] = r.ways[j], r.ways[i]
	}
}

func (r *assembledRing) String() string {
	parts := make([]string, len(r.ways))
	for i, w := range r.ways {
		parts[i] = w.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// assembledMultipolygon is an outer ring plus its immediate inner rings.
type assembledMultipolygon struct {
	outer *assembledRing
	inner []*assembledRing
}

// polygonLevel tracks the containment depth of a ring during nesting.
// Even levels are true outer polygons, odd levels are holes.
type polygonLevel struct {
	level int
	pol   *assembledMultipolygon
}

// relationRole records that a consumed way was a member of a relation under
// a given role, so the merged way can be re-attached afterwards.
type relationRole struct {
	rel  int64
	role string
}
