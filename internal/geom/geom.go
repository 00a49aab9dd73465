// Package geom provides the planar geometry primitives used by the area
// join algorithm. All computation happens in projected east/north space,
// never in raw lat/lon.
package geom

import "math"

// Epsilon is the tolerance used when comparing coordinates and angles.
// Projected coordinates are meters, so anything below a nanometer is noise.
const Epsilon = 1e-9

// Point is an immutable 2D coordinate in a planar projection.
type Point struct {
	East  float64
	North float64
}

// Equals reports whether two points have identical coordinates.
func (p Point) Equals(q Point) bool {
	return p.East == q.East && p.North == q.North
}

// EpsilonEquals reports whether two points coincide within Epsilon.
func (p Point) EpsilonEquals(q Point) bool {
	return EqualsEpsilon(p.East, q.East) && EqualsEpsilon(p.North, q.North)
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return Point{East: (p.East + q.East) / 2, North: (p.North + q.North) / 2}
}

// EqualsEpsilon reports whether two scalars are within Epsilon of each other.
func EqualsEpsilon(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// SegmentIntersection computes the intersection of segments (p1,p2) and
// (p3,p4). The second return value is false if the segments are parallel
// or do not touch within both segment bounds. Endpoint touches count as
// intersections; callers that want to ignore shared endpoints must filter
// them out themselves.
func SegmentIntersection(p1, p2, p3, p4 Point) (Point, bool) {
	x1, y1 := p1.East, p1.North
	x2, y2 := p2.East, p2.North
	x3, y3 := p3.East, p3.North
	x4, y4 := p4.East, p4.North

	denom := (y4-y3)*(x2-x1) - (x4-x3)*(y2-y1)
	if denom == 0 {
		// Parallel or collinear. Collinear overlap is handled upstream by
		// the duplicate fragment removal, not here.
		return Point{}, false
	}

	ua := ((x4-x3)*(y1-y3) - (y4-y3)*(x1-x3)) / denom
	ub := ((x2-x1)*(y1-y3) - (y2-y1)*(x1-x3)) / denom
	if ua < 0 || ua > 1 || ub < 0 || ub > 1 {
		return Point{}, false
	}

	return Point{East: x1 + ua*(x2-x1), North: y1 + ua*(y2-y1)}, true
}

// PointInPolygon reports whether p lies strictly inside the polygon described
// by the given node positions, using the even-odd (ray casting) rule. The
// polygon may be given open or closed; a repeated last point is ignored.
func PointInPolygon(p Point, polygon []Point) bool {
	n := len(polygon)
	if n > 1 && polygon[0].Equals(polygon[n-1]) {
		polygon = polygon[:n-1]
		n--
	}
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := polygon[i], polygon[j]
		// Strict less-than on one side of the comparison so a vertex shared
		// by two consecutive segments is counted exactly once.
		if (a.North > p.North) != (b.North > p.North) {
			xCross := a.East + (b.East-a.East)*(p.North-a.North)/(b.North-a.North)
			if p.East < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// OrientedAngle returns the angle between rays (n1,n2) and (n1,n3),
// normalized to [0, 2*pi).
func OrientedAngle(n1, n2, n3 Point) float64 {
	angle := math.Atan2(n3.North-n1.North, n3.East-n1.East) -
		math.Atan2(n2.North-n1.North, n2.East-n1.East)
	for angle >= 2*math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}

// Bearing returns the compass-style angle of the direction from p to q,
// measured as atan2(dEast, dNorth). The traverser compares bearings when
// choosing the most clockwise continuation at a junction.
func Bearing(p, q Point) float64 {
	return math.Atan2(q.East-p.East, q.North-p.North)
}

// NormalizeTurn maps an angle difference into (-pi, pi].
func NormalizeTurn(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}
