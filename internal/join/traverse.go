package join

import (
	"fmt"
	"math"

	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// wayTraverser walks oriented fragments clockwise. The head node is the
// current position; walk picks the most clockwise continuation among the
// fragments leaving the head node.
type wayTraverser struct {
	ds          *osmdata.DataSet
	available   []*wayInPolygon
	lastWay     *wayInPolygon
	lastReverse bool
}

func newWayTraverser(ds *osmdata.DataSet, ways []*wayInPolygon) *wayTraverser {
	available := make([]*wayInPolygon, len(ways))
	copy(available, ways)
	return &wayTraverser{ds: ds, available: available}
}

func (t *wayTraverser) removeWay(w *wayInPolygon) {
	for i, candidate := range t.available {
		if candidate == w {
			t.available = append(t.available[:i], t.available[i+1:]...)
			return
		}
	}
}

func (t *wayTraverser) removeWays(ways []*wayInPolygon) {
	for _, w := range ways {
		t.removeWay(w)
	}
}

// setStart resets the walk to the given fragment.
func (t *wayTraverser) setStart(w *wayInPolygon) {
	t.lastWay = w
	t.lastReverse = !w.insideToTheRight
}

// startNewWay picks the next remaining fragment as the walk start, or nil
// when nothing remains.
func (t *wayTraverser) startNewWay() *wayInPolygon {
	if len(t.available) == 0 {
		t.lastWay = nil
		return nil
	}
	t.lastWay = t.available[0]
	t.lastReverse = !t.lastWay.insideToTheRight
	return t.lastWay
}

// headNode is the current position of the walk.
func (t *wayTraverser) headNode() int64 {
	w := t.ds.Way(t.lastWay.wayID)
	if t.lastReverse {
		return w.FirstNode()
	}
	return w.LastNode()
}

// prevNode is the node just before the head node.
func (t *wayTraverser) prevNode() int64 {
	w := t.ds.Way(t.lastWay.wayID)
	if t.lastReverse {
		return w.Nodes[1]
	}
	return w.Nodes[len(w.Nodes)-2]
}

// walk advances to the next fragment on a clockwise path: among all
// fragments outgoing from the head node, the one with the sharpest clockwise
// turn wins. Going straight back where we came from is always the worst
// choice and is only taken when nothing else leaves the junction. Returns
// nil when no fragment leaves the head node at all.
func (t *wayTraverser) walk() *wayInPolygon {
	head := t.headNode()
	prev := t.prevNode()
	headPos := t.ds.NodePos(head)
	prevPos := t.ds.NodePos(prev)

	headAngle := math.Atan2(headPos.East-prevPos.East, headPos.North-prevPos.North)

	var best *wayInPolygon
	bestAngle := 0.0

	consider := func(way *wayInPolygon, nextNode int64) {
		var angle float64
		if nextNode == prev {
			// We always prefer anything over going back.
			angle = math.Inf(1)
		} else {
			nextPos := t.ds.NodePos(nextNode)
			angle = geom.NormalizeTurn(
				math.Atan2(nextPos.East-headPos.East, nextPos.North-headPos.North) - headAngle)
		}
		if best == nil || angle < bestAngle {
			best = way
			bestAngle = angle
		}
	}

	for _, way := range t.available {
		w := t.ds.Way(way.wayID)
		if way.insideToTheRight && w.FirstNode() == head {
			consider(way, w.Nodes[1])
		}
	}
	for _, way := range t.available {
		w := t.ds.Way(way.wayID)
		if !way.insideToTheRight && w.LastNode() == head {
			consider(way, w.Nodes[len(w.Nodes)-2])
		}
	}

	t.lastWay = best
	t.lastReverse = best != nil && !best.insideToTheRight
	return best
}

// leftComingWay searches for another fragment terminating at the head node
// on the left side of the current fragment. Such a fragment belongs to a
// ring nested differently and the ring accumulation must restart from it.
func (t *wayTraverser) leftComingWay() *wayInPolygon {
	head := t.headNode()
	prev := t.prevNode()
	headPos := t.ds.NodePos(head)
	prevPos := t.ds.NodePos(prev)

	var mostLeft *wayInPolygon
	comingToHead := false
	angle := 2 * math.Pi

	for _, candidate := range t.available {
		w := t.ds.Way(candidate.wayID)

		var candComingToHead bool
		var candPrev int64
		switch {
		case w.FirstNode() == head:
			candComingToHead = !candidate.insideToTheRight
			candPrev = w.Nodes[1]
		case w.LastNode() == head:
			candComingToHead = candidate.insideToTheRight
			candPrev = w.Nodes[len(w.Nodes)-2]
		default:
			continue
		}
		if candComingToHead && candidate == t.lastWay {
			continue
		}

		candAngle := geom.OrientedAngle(headPos, t.ds.NodePos(candPrev), prevPos)

		if mostLeft == nil || candAngle < angle ||
			(geom.EqualsEpsilon(candAngle, angle) && !candComingToHead) {
			mostLeft = candidate
			comingToHead = candComingToHead
			angle = candAngle
		}
	}

	if !comingToHead {
		return nil
	}
	return mostLeft
}

func (t *wayTraverser) String() string {
	last := "<none>"
	if t.lastWay != nil {
		last = t.lastWay.String()
	}
	return fmt.Sprintf("traverser{available=%d, last=%s, reverse=%v}",
		len(t.available), last, t.lastReverse)
}

// findBoundaryRings assembles all fragments into closed boundary rings.
// Degenerate two-node loops are dropped up front; rings that collapse to two
// or fewer nodes and inner loops truncated during traversal end up in
// discarded. The returned rings are simple: self-touching rings are split by
// a reverse re-traversal pass.
func findBoundaryRings(ds *osmdata.DataSet, fragments []*wayInPolygon, discarded *[]int64) ([]*assembledRing, error) {
	// Fragments that are just a point (nodeA-nodeA stubs from degenerate
	// input) would derail the walk.
	clean := make([]*wayInPolygon, 0, len(fragments))
	for _, frag := range fragments {
		w := ds.Way(frag.wayID)
		if len(w.Nodes) == 2 && w.Closed() {
			*discarded = append(*discarded, frag.wayID)
			continue
		}
		clean = append(clean, frag)
	}

	traverser := newWayTraverser(ds, clean)
	var result []*assembledRing

	for {
		startWay := traverser.startNewWay()
		if startWay == nil {
			break
		}
		if err := assembleRingStartingWith(ds, traverser, startWay, &result, discarded); err != nil {
			return nil, err
		}
	}

	return fixTouchingRings(ds, result)
}

func assembleRingStartingWith(ds *osmdata.DataSet, traverser *wayTraverser, startWay *wayInPolygon,
	result *[]*assembledRing, discarded *[]int64) error {
	path := []*wayInPolygon{startWay}
	var startWays []*wayInPolygon

	for {
		if leftComing := traverser.leftComingWay(); leftComing != nil && !containsFragment(startWays, leftComing) {
			// A ring nested differently terminates here; restart the
			// accumulation from its fragment.
			path = path[:0]
			path = append(path, leftComing)
			traverser.setStart(leftComing)
			startWays = append(startWays, leftComing)
		}

		nextWay := traverser.walk()
		if nextWay == nil {
			return internalErrorf(
				fmt.Sprintf("%s, path=%v", traverser, fragmentStrings(path)),
				"traverser could not find a next way")
		}

		if path[0] == nextWay {
			// Path is closed.
			ring := &assembledRing{ways: path}
			if len(ring.nodes(ds)) <= 2 {
				// Invalid micro loop; drop its fragments entirely.
				traverser.removeWays(path)
				for _, frag := range path {
					*discarded = append(*discarded, frag.wayID)
				}
			} else {
				*result = append(*result, ring)
				traverser.removeWays(path)
			}
			return nil
		}

		if idx := indexOfFragment(path, nextWay); idx >= 0 {
			// Inner loop: truncate the path back to the first occurrence and
			// discard the loop's fragments.
			for len(path) > idx {
				current := path[idx]
				*discarded = append(*discarded, current.wayID)
				traverser.removeWay(current)
				path = append(path[:idx], path[idx+1:]...)
			}
			traverser.setStart(path[idx-1])
		} else {
			path = append(path, nextWay)
		}
	}
}

// fixTouchingRings splits rings passing through the same node twice (a
// figure eight via a shared vertex) into simple rings. Each ring is
// re-traversed in reverse orientation; every closed sub-walk becomes an
// independent ring.
func fixTouchingRings(ds *osmdata.DataSet, rings []*assembledRing) ([]*assembledRing, error) {
	var out []*assembledRing

	for _, ring := range rings {
		ring.reverse()
		traverser := newWayTraverser(ds, ring.ways)

		for {
			startWay := traverser.startNewWay()
			if startWay == nil {
				break
			}

			simpleWays := []*wayInPolygon{startWay}
			for {
				nextWay := traverser.walk()
				if nextWay == nil {
					return nil, internalErrorf(traverser.String(),
						"ring re-traversal lost its path")
				}
				if nextWay == startWay {
					break
				}
				simpleWays = append(simpleWays, nextWay)
			}
			traverser.removeWays(simpleWays)

			simpleRing := &assembledRing{ways: simpleWays}
			simpleRing.reverse()
			out = append(out, simpleRing)
		}
	}

	return out, nil
}

func containsFragment(list []*wayInPolygon, w *wayInPolygon) bool {
	return indexOfFragment(list, w) >= 0
}

func indexOfFragment(list []*wayInPolygon, w *wayInPolygon) int {
	for i, candidate := range list {
		if candidate == w {
			return i
		}
	}
	return -1
}

func fragmentStrings(list []*wayInPolygon) []string {
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.String()
	}
	return out
}
