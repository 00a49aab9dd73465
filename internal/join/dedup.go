package join

import "github.com/wegman-software/osmjoin/internal/osmdata"

// duplicateCollector finds pairs of ways whose node sequences are identical
// forward or exactly reversed. Such pairs are one shared boundary drawn
// twice; both copies are withdrawn from the join. Quadratic, but the
// fragment counts here are small.
//
// add and merge keep the accumulate/combine structure associative, so the
// discarded multiset does not depend on input order.
type duplicateCollector struct {
	ds         *osmdata.DataSet
	current    []int64
	duplicates []int64
}

func newDuplicateCollector(ds *osmdata.DataSet) *duplicateCollector {
	return &duplicateCollector{ds: ds}
}

func (c *duplicateCollector) add(wayID int64) {
	nodes := c.ds.Way(wayID).Nodes

	for i, candidate := range c.current {
		if sameSequence(c.ds.Way(candidate).Nodes, nodes) {
			c.current = append(c.current[:i], c.current[i+1:]...)
			c.duplicates = append(c.duplicates, candidate, wayID)
			return
		}
	}
	c.current = append(c.current, wayID)
}

func (c *duplicateCollector) merge(other *duplicateCollector) {
	c.duplicates = append(c.duplicates, other.duplicates...)
	for _, wayID := range other.current {
		c.add(wayID)
	}
}

// sameSequence reports whether b equals a forward or exactly reversed.
func sameSequence(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	forward := true
	backward := true
	n := len(a)
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			forward = false
		}
		if a[i] != b[n-1-i] {
			backward = false
		}
		if !forward && !backward {
			return false
		}
	}
	return true
}

// findDuplicateWays returns all ways that occur as duplicate pairs within
// the given list.
func findDuplicateWays(ds *osmdata.DataSet, ways []int64) []int64 {
	c := newDuplicateCollector(ds)
	for _, wid := range ways {
		c.add(wid)
	}
	return c.duplicates
}
