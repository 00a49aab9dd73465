package join

import (
	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// findPolygons groups boundary rings into outer/inner hierarchies and keeps
// every other nesting level: even levels are real polygons, odd levels are
// holes and become the inner rings of their parents.
func findPolygons(ds *osmdata.DataSet, boundaries []*assembledRing) []*assembledMultipolygon {
	levels := findOuterRings(ds, 0, boundaries)

	var result []*assembledMultipolygon
	for _, pl := range levels {
		if pl.level%2 == 0 {
			result = append(result, pl.pol)
		}
	}
	return result
}

// findOuterRings picks the rings not contained in any other remaining ring
// as outers of the current level, then recurses into their contained rings
// one level deeper. Holes-of-holes end up two levels down and become outers
// again.
func findOuterRings(ds *osmdata.DataSet, level int, rings []*assembledRing) []*polygonLevel {
	var result []*polygonLevel

	for _, outer := range rings {
		outerGood := true
		var innerCandidates []*assembledRing

		for _, other := range rings {
			if other == outer {
				continue
			}
			if ringInsideRing(ds, outer, other) {
				outerGood = false
				break
			} else if ringInsideRing(ds, other, outer) {
				innerCandidates = append(innerCandidates, other)
			}
		}

		if !outerGood {
			continue
		}

		pol := &assembledMultipolygon{outer: outer}
		polLevel := &polygonLevel{level: level, pol: pol}

		if len(innerCandidates) > 0 {
			innerList := findOuterRings(ds, level+1, innerCandidates)
			result = append(result, innerList...)

			for _, pl := range innerList {
				if pl.level == level+1 {
					pol.inner = append(pol.inner, pl.pol.outer)
				}
			}
		}

		result = append(result, polLevel)
	}

	return result
}

// ringInsideRing reports whether the inside ring lies within the outside
// ring. The test picks any node of the inside ring not shared with the
// outside ring and ray-casts it; rings sharing every node are defined as not
// contained, so touching boundaries never contain each other.
func ringInsideRing(ds *osmdata.DataSet, inside, outside *assembledRing) bool {
	outsideNodes := outside.nodes(ds)
	outsideSet := make(map[int64]bool, len(outsideNodes))
	for _, nid := range outsideNodes {
		outsideSet[nid] = true
	}

	outsidePoints := make([]geom.Point, len(outsideNodes))
	for i, nid := range outsideNodes {
		outsidePoints[i] = ds.NodePos(nid)
	}

	for _, nid := range inside.nodes(ds) {
		if !outsideSet[nid] {
			return geom.PointInPolygon(ds.NodePos(nid), outsidePoints)
		}
	}

	// All nodes shared.
	return false
}
