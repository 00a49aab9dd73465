package join

import (
	"github.com/wegman-software/osmjoin/internal/edit"
	"github.com/wegman-software/osmjoin/internal/geom"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

type coordKey struct {
	east, north float64
}

// removeDuplicateNodes unifies nodes at identical coordinates into one
// representative node (first seen wins) and drops immediate repetitions from
// the way node lists. A way collapsing to a single node is padded back to a
// trivial closed stub so downstream phases keep their invariants.
func (j *Joiner) removeDuplicateNodes(ways []int64) (bool, error) {
	nodeMap := make(map[coordKey]int64)
	changedAny := false

	for _, wid := range ways {
		w := j.ds.Way(wid)
		if len(w.Nodes) < 2 {
			continue
		}

		newNodes := make([]int64, 0, len(w.Nodes))
		for _, nid := range w.Nodes {
			pos := j.ds.NodePos(nid)
			key := coordKey{pos.East, pos.North}

			rep, ok := nodeMap[key]
			if !ok {
				// First node seen at this coordinate becomes the
				// representative for all later ones.
				nodeMap[key] = nid
				rep = nid
			}
			if len(newNodes) == 0 || newNodes[len(newNodes)-1] != rep {
				newNodes = append(newNodes, rep)
			}
		}

		if sameSequenceExact(w.Nodes, newNodes) {
			continue
		}
		if len(newNodes) == 1 {
			// All nodes at the same coordinate. Keep a closed stub.
			newNodes = append(newNodes, newNodes[0])
		}
		if err := j.log.Apply(edit.NewChangeWayNodes(j.ds, wid, newNodes)); err != nil {
			return false, err
		}
		changedAny = true
	}

	return changedAny, nil
}

func sameSequenceExact(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// snapshotNodeLists copies the node lists of the given ways, deduplicating
// repeated way ids while keeping first-seen order.
func snapshotNodeLists(ds *osmdata.DataSet, ways []int64) ([]int64, [][]int64) {
	seen := make(map[int64]bool, len(ways))
	var order []int64
	var lists [][]int64
	for _, wid := range ways {
		if seen[wid] {
			continue
		}
		seen[wid] = true
		order = append(order, wid)
		lists = append(lists, ds.Way(wid).CloneNodes())
	}
	return order, lists
}

// hasIntersections is the non-mutating probe behind TestJoin. It reports
// whether any two non-adjacent segments of the given ways either cross or
// meet at a shared node.
func hasIntersections(ds *osmdata.DataSet, ways []int64) bool {
	_, lists := snapshotNodeLists(ds, ways)

	for w1 := 0; w1 < len(lists); w1++ {
		for w2 := w1; w2 < len(lists); w2++ {
			a, b := lists[w1], lists[w2]
			for s1 := 0; s1+1 < len(a); s1++ {
				s2start := 0
				if w1 == w2 {
					s2start = s1 + 2 // skip the adjacent segment
				}
				for s2 := s2start; s2+1 < len(b); s2++ {
					n1, n2 := a[s1], a[s1+1]
					n3, n4 := b[s2], b[s2+1]

					if n1 == n3 || n1 == n4 || n2 == n3 || n2 == n4 {
						// Junction of the first and last segment of a closed
						// way is not a self-intersection.
						if w1 == w2 && s1 == 0 && s2 == len(b)-2 {
							continue
						}
						return true
					}

					if _, ok := geom.SegmentIntersection(
						ds.NodePos(n1), ds.NodePos(n2), ds.NodePos(n3), ds.NodePos(n4)); ok {
						return true
					}
				}
			}
		}
	}
	return false
}

// addIntersections computes all segment crossings among the given ways
// (pairwise and within a single way) and inserts a shared node at each true
// crossing, splitting both segments. Non-adjacent segments that already meet
// at a shared node contribute that node as a cut node. A crossing that
// coincides with a segment endpoint reuses that node and splits only the
// segment it lies within. Returns the set of cut nodes; empty means nothing
// overlaps.
func (j *Joiner) addIntersections(ways []int64) (map[int64]bool, error) {
	order, lists := snapshotNodeLists(j.ds, ways)
	changed := make([]bool, len(order))
	cut := make(map[int64]bool)

	for w1 := 0; w1 < len(order); w1++ {
		for w2 := w1; w2 < len(order); w2++ {
			for s1 := 0; s1+1 < len(lists[w1]); s1++ {
				s2start := 0
				if w1 == w2 {
					s2start = s1 + 2 // skip the adjacent segment
				}
				for s2 := s2start; s2+1 < len(lists[w2]); s2++ {
					// Re-read every iteration; insertions below mutate the
					// lists mid-scan.
					n1, n2 := lists[w1][s1], lists[w1][s1+1]
					n3, n4 := lists[w2][s2], lists[w2][s2+1]

					closureJunction := w1 == w2 && s1 == 0 && s2 == len(lists[w2])-2

					common := 0
					if n1 == n3 || n1 == n4 {
						common++
						if !closureJunction {
							cut[n1] = true
						}
					}
					if n2 == n3 || n2 == n4 {
						common++
						if !closureJunction {
							cut[n2] = true
						}
					}
					if common > 0 {
						continue
					}

					p, ok := geom.SegmentIntersection(
						j.ds.NodePos(n1), j.ds.NodePos(n2), j.ds.NodePos(n3), j.ds.NodePos(n4))
					if !ok {
						continue
					}

					var intNode int64
					insert1, insert2 := true, true
					switch {
					case p.EpsilonEquals(j.ds.NodePos(n1)):
						intNode, insert1 = n1, false
					case p.EpsilonEquals(j.ds.NodePos(n2)):
						intNode, insert1 = n2, false
					}
					switch {
					case p.EpsilonEquals(j.ds.NodePos(n3)):
						intNode, insert2 = n3, false
					case p.EpsilonEquals(j.ds.NodePos(n4)):
						intNode, insert2 = n4, false
					}

					if intNode == 0 {
						// True crossing: create a node at the computed point.
						node := osmdata.Node{ID: j.ds.AllocateID(), Pos: p}
						if j.tr != nil {
							node.Lon, node.Lat = j.tr.Inverse(p.East, p.North)
						} else {
							node.Lon, node.Lat = p.East, p.North
						}
						if err := j.log.Apply(&edit.AddNode{Node: node}); err != nil {
							return nil, err
						}
						intNode = node.ID
					}

					if insert1 {
						lists[w1] = insertNode(lists[w1], s1+1, intNode)
						changed[w1] = true
						if w1 == w2 {
							s2++ // insertion shifted the secondary segment
						}
					}
					if insert2 {
						lists[w2] = insertNode(lists[w2], s2+1, intNode)
						changed[w2] = true
					}
					cut[intNode] = true
				}
			}
		}
	}

	if len(cut) == 0 {
		return cut, nil
	}

	for i, wid := range order {
		if !changed[i] {
			continue
		}
		if err := j.log.Apply(edit.NewChangeWayNodes(j.ds, wid, lists[i])); err != nil {
			return nil, err
		}
	}

	return cut, nil
}

func insertNode(nodes []int64, at int, id int64) []int64 {
	out := make([]int64, 0, len(nodes)+1)
	out = append(out, nodes[:at]...)
	out = append(out, id)
	out = append(out, nodes[at:]...)
	return out
}
