package join

import (
	"math"

	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// markWayInsideSide classifies for each fragment which side the assembled
// area's interior is on. The fragments are already split at every possible
// intersection, so a ray cast from the midpoint of a fragment's first
// segment crosses the combined boundary a number of times whose parity
// decides the side. isInner inverts the result for hole boundaries.
//
// The ray runs along the local x axis; when the first segment is closer to
// parallel with that axis, the sampling axes rotate 90 degrees so the ray
// never runs along the fragment itself.
func markWayInsideSide(ds *osmdata.DataSet, parts []int64, isInner bool) []*wayInPolygon {
	result := make([]*wayInPolygon, 0, len(parts))

	for _, wid := range parts {
		w := ds.Way(wid)
		rayNode1 := ds.NodePos(w.Nodes[0])
		rayNode2 := ds.NodePos(w.Nodes[1])
		rayFrom := rayNode1.Midpoint(rayNode2)

		var x, y func(geom.Point) float64
		if math.Abs(rayNode1.East-rayNode2.East) < math.Abs(rayNode1.North-rayNode2.North) {
			x = func(p geom.Point) float64 { return p.East }
			y = func(p geom.Point) float64 { return p.North }
		} else {
			x = func(p geom.Point) float64 { return -p.North }
			y = func(p geom.Point) float64 { return p.East }
		}

		xRay := x(rayFrom)
		yRay := y(rayFrom)
		intersections := 0

		for _, pid := range parts {
			part := ds.Way(pid)
			for i := 0; i+1 < len(part.Nodes); i++ {
				n1 := ds.NodePos(part.Nodes[i])
				n2 := ds.NodePos(part.Nodes[i+1])
				if (rayNode1.Equals(n1) && rayNode2.Equals(n2)) ||
					(rayNode2.Equals(n1) && rayNode1.Equals(n2)) {
					// The segment the ray starts from; skipping it avoids
					// rounding trouble at the ray origin.
					continue
				}

				x1, y1 := x(n1), y(n1)
				x2, y2 := x(n2), y(n2)

				// Strict less-than on the upper bound so an intersection at
				// a vertex shared by two consecutive segments counts once.
				if !((y1 <= yRay && yRay < y2) || (y2 <= yRay && yRay < y1)) {
					continue
				}
				xIntersect := x1 + (x2-x1)*(yRay-y1)/(y2-y1)
				if xIntersect < xRay {
					intersections++
				}
			}
		}

		insideRight := (intersections%2 == 0) != isInner != (y(rayNode1) > yRay)
		result = append(result, &wayInPolygon{wayID: wid, insideToTheRight: insideRight})
	}

	return result
}
