package join

import (
	"github.com/wegman-software/osmjoin/internal/edit"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// buildNodeChunks cuts the node sequence of a way at the given split nodes.
// Chunking does not care about the way being circular; the traverser glues
// everything back together later. Concatenating the chunks in order
// reproduces the original node sequence exactly.
func buildNodeChunks(w *osmdata.Way, splitNodes map[int64]bool) [][]int64 {
	var result [][]int64
	var cur []int64

	for _, nid := range w.Nodes {
		cur = append(cur, nid)
		if len(cur) > 1 && splitNodes[nid] {
			result = append(result, cur)
			cur = []int64{nid}
		}
	}

	if len(cur) > 1 {
		result = append(result, cur)
	}

	return result
}

// splitWayOnNodes splits a way at the given cut nodes. The first chunk keeps
// the original way id; every further chunk becomes a new way carrying a copy
// of the tags. A way without interior cut nodes is returned unchanged as a
// one-element result.
func (j *Joiner) splitWayOnNodes(wayID int64, splitNodes map[int64]bool) ([]int64, error) {
	w := j.ds.Way(wayID)
	chunks := buildNodeChunks(w, splitNodes)
	if len(chunks) <= 1 {
		return []int64{wayID}, nil
	}

	result := make([]int64, 0, len(chunks))

	if err := j.log.Apply(edit.NewChangeWayNodes(j.ds, wayID, chunks[0])); err != nil {
		return nil, err
	}
	result = append(result, wayID)

	tags := w.Tags.Clone()
	for _, chunk := range chunks[1:] {
		newWay := osmdata.Way{ID: j.ds.AllocateID(), Nodes: chunk, Tags: tags.Clone()}
		if err := j.log.Apply(&edit.AddWay{Way: newWay}); err != nil {
			return nil, err
		}
		result = append(result, newWay.ID)
	}

	return result, nil
}
