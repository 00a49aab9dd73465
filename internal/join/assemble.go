package join

import (
	"fmt"

	"github.com/wegman-software/osmjoin/internal/edit"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// joinPolygon synthesizes the final outer way and inner ways of one
// assembled multipolygon.
func (j *Joiner) joinPolygon(polygon *assembledMultipolygon) (*Multipolygon, error) {
	outer, err := j.joinRingWays(polygon.outer.ways)
	if err != nil {
		return nil, err
	}

	result := &Multipolygon{OuterWay: outer}
	for _, ring := range polygon.inner {
		inner, err := j.joinRingWays(ring.ways)
		if err != nil {
			return nil, err
		}
		result.InnerWays = append(result.InnerWays, inner)
	}

	return result, nil
}

// joinRingWays merges the fragments of one ring into a single closed way.
// If every fragment is reversed the whole ring flips first, so the merged
// way keeps the original drawing direction.
func (j *Joiner) joinRingWays(ways []*wayInPolygon) (int64, error) {
	allReverse := true
	for _, w := range ways {
		allReverse = allReverse && !w.insideToTheRight
	}
	if allReverse {
		for _, w := range ways {
			w.insideToTheRight = !w.insideToTheRight
		}
	}

	joined, err := j.joinOrientedWays(ways)
	if err != nil {
		return 0, err
	}

	if w := j.ds.Way(joined); w == nil || !w.Closed() {
		return 0, internalErrorf(fmt.Sprintf("way %d", joined), "joined ring is not closed")
	}
	return joined, nil
}

// joinOrientedWays reverses fragments stored against their traversal
// direction and combines everything into the first fragment's way.
func (j *Joiner) joinOrientedWays(ways []*wayInPolygon) (int64, error) {
	if len(ways) < 2 {
		return ways[0].wayID, nil
	}

	ids := make([]int64, 0, len(ways))
	for _, w := range ways {
		ids = append(ids, w.wayID)
		if !w.insideToTheRight {
			way := j.ds.Way(w.wayID)
			reversed := make([]int64, len(way.Nodes))
			for i, nid := range way.Nodes {
				reversed[len(way.Nodes)-1-i] = nid
			}
			if err := j.log.Apply(edit.NewChangeWayNodes(j.ds, w.wayID, reversed)); err != nil {
				return 0, err
			}
		}
	}

	return j.combineWays(ids)
}

// combineWays chains the given ways into the first one and deletes the
// rest. Ways may still need reversal to fit the chain (the all-reverse flip
// in joinRingWays changes orientation flags without touching node lists).
func (j *Joiner) combineWays(ids []int64) (int64, error) {
	target := ids[0]
	nodes := j.ds.Way(target).CloneNodes()
	remaining := append([]int64(nil), ids[1:]...)

	for len(remaining) > 0 {
		progress := false
		for i, id := range remaining {
			wn := j.ds.Way(id).Nodes
			switch {
			case nodes[len(nodes)-1] == wn[0]:
				nodes = append(nodes, wn[1:]...)
			case nodes[len(nodes)-1] == wn[len(wn)-1]:
				for k := len(wn) - 2; k >= 0; k-- {
					nodes = append(nodes, wn[k])
				}
			case nodes[0] == wn[len(wn)-1]:
				nodes = append(append([]int64(nil), wn[:len(wn)-1]...), nodes...)
			case nodes[0] == wn[0]:
				prefix := make([]int64, 0, len(wn)-1)
				for k := len(wn) - 1; k >= 1; k-- {
					prefix = append(prefix, wn[k])
				}
				nodes = append(prefix, nodes...)
			default:
				continue
			}
			remaining = append(remaining[:i], remaining[i+1:]...)
			progress = true
			break
		}
		if !progress {
			return 0, internalErrorf(fmt.Sprintf("ways %v", ids), "fragments do not form a chain")
		}
	}

	if err := j.log.Apply(edit.NewChangeWayNodes(j.ds, target, nodes)); err != nil {
		return 0, err
	}
	for _, id := range ids[1:] {
		if err := j.log.Apply(edit.NewDeleteWay(j.ds, id)); err != nil {
			return 0, err
		}
	}

	return target, nil
}

// stripTags clears all tags from the given (inner) ways. The area semantics
// live on the outer way and the multipolygon relation.
func (j *Joiner) stripTags(ways []int64) error {
	for _, wid := range ways {
		if len(j.ds.Way(wid).Tags) == 0 {
			continue
		}
		if err := j.log.Apply(edit.NewChangeTags(j.ds, osmdata.KindWay, wid, osmdata.Tags{})); err != nil {
			return err
		}
	}
	return nil
}
