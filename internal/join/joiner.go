package join

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wegman-software/osmjoin/internal/edit"
	"github.com/wegman-software/osmjoin/internal/osmdata"
	"github.com/wegman-software/osmjoin/internal/proj"
)

// Options configures a Joiner.
type Options struct {
	// Resolver decides merged tags on conflicts. Defaults to the failing
	// policy resolver.
	Resolver TagResolver
	// Transformer converts intersection nodes back to lat/lon. Optional;
	// without it east/north values are stored as lon/lat directly.
	Transformer *proj.Transformer
	// Logger for phase reporting. Optional.
	Logger *zap.Logger
}

// Joiner runs join operations against one dataset. A Joiner instance serves
// one operation at a time; the pipeline mutates shared entities and must
// never run concurrently against the same dataset.
type Joiner struct {
	ds       *osmdata.DataSet
	log      *edit.Log
	resolver TagResolver
	tr       *proj.Transformer
	logger   *zap.Logger

	warnings       []string
	addedRelations []int64
}

// NewJoiner creates a Joiner for the dataset.
func NewJoiner(ds *osmdata.DataSet, opts Options) *Joiner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = &PolicyResolver{}
	}
	return &Joiner{
		ds:       ds,
		log:      edit.NewLog(ds, logger),
		resolver: resolver,
		tr:       opts.Transformer,
		logger:   logger,
	}
}

// EditCount returns the number of edits committed by the last operation.
func (j *Joiner) EditCount() int {
	return j.log.Len()
}

// TestJoin reports whether the selection has anything to join, committing
// nothing. The same validation and relation analysis as Join applies.
func (j *Joiner) TestJoin(selection []int64) (bool, error) {
	if err := j.validateSelection(selection); err != nil {
		return false, err
	}
	areas, err := CollectMultipolygons(j.ds, selection)
	if err != nil {
		return false, err
	}
	return hasIntersections(j.ds, areaWays(areas)), nil
}

// Join merges the selected closed ways and the multipolygon areas they
// belong to. On success the dataset holds the merged polygons and the
// result lists them. On any error after the first committed edit, every
// edit is rolled back before the error is returned; the dataset is then
// bit-identical to its pre-call state.
//
// The context is honored at phase checkpoints, not inside the traversal
// inner loops.
func (j *Joiner) Join(ctx context.Context, selection []int64) (*Result, error) {
	j.warnings = nil
	j.addedRelations = nil

	if err := j.validateSelection(selection); err != nil {
		return nil, err
	}

	areas, err := CollectMultipolygons(j.ds, selection)
	if err != nil {
		return nil, err
	}

	if !hasIntersections(j.ds, areaWays(areas)) {
		j.logger.Info("no intersection found, nothing to join")
		return &Result{HasChanges: false}, nil
	}

	result, err := j.run(ctx, areas)
	if err != nil {
		if rbErr := j.log.RollbackAll(); rbErr != nil {
			j.logger.Error("rollback failed", zap.Error(rbErr))
			return nil, fmt.Errorf("%w (additionally: %v)", err, rbErr)
		}
		j.logger.Info("join aborted, all edits rolled back", zap.Error(err))
		return nil, err
	}

	return result, nil
}

func (j *Joiner) run(ctx context.Context, areas []*Multipolygon) (*Result, error) {
	if err := j.resolveTagConflicts(areas); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return j.joinAreas(ctx, areas)
}

func (j *Joiner) validateSelection(selection []int64) error {
	if len(selection) == 0 {
		return ErrNothingToJoin
	}
	for _, wid := range selection {
		w := j.ds.Way(wid)
		if w == nil {
			return fmt.Errorf("way %d: not found", wid)
		}
		if !w.Closed() {
			return fmt.Errorf("way %d: %w", wid, ErrOpenWay)
		}
	}
	return nil
}

// resolveTagConflicts unifies the tags of all involved ways before the
// merge, so combining fragments later never has to guess. With fewer than
// two ways there is nothing to unify.
func (j *Joiner) resolveTagConflicts(areas []*Multipolygon) error {
	ids := areaWays(areas)
	if len(ids) < 2 {
		return nil
	}

	ways := make([]*osmdata.Way, len(ids))
	for i, wid := range ids {
		ways[i] = j.ds.Way(wid)
	}

	resolved, err := j.resolver.Resolve(ways)
	if err != nil {
		return err
	}

	for _, wid := range ids {
		if j.ds.Way(wid).Tags.Equal(resolved) {
			continue
		}
		if err := j.log.Apply(edit.NewChangeTags(j.ds, osmdata.KindWay, wid, resolved)); err != nil {
			return err
		}
	}
	j.log.Checkpoint("fix tag conflicts")
	return nil
}

// joinAreas is the main pipeline: dedup, intersect, split, classify,
// traverse, nest, reconcile.
func (j *Joiner) joinAreas(ctx context.Context, areas []*Multipolygon) (*Result, error) {
	hasChanges := false

	var innerStarting, outerStarting []int64
	for _, area := range areas {
		outerStarting = append(outerStarting, area.OuterWay)
		innerStarting = append(innerStarting, area.InnerWays...)
	}
	allStarting := append(append([]int64(nil), innerStarting...), outerStarting...)

	removed, err := j.removeDuplicateNodes(allStarting)
	if err != nil {
		return nil, err
	}
	if removed {
		hasChanges = true
		j.log.Checkpoint("removed duplicate nodes")
	}

	cutNodes, err := j.addIntersections(allStarting)
	if err != nil {
		return nil, err
	}
	if len(cutNodes) == 0 {
		return &Result{HasChanges: hasChanges}, nil
	}
	j.log.Checkpoint("added node on all intersections")
	j.logger.Debug("intersection nodes inserted", zap.Int("count", len(cutNodes)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Strip the ways out of their relations so splitting and combining can
	// proceed quietly; memberships are restored onto the merged ways below.
	var rels []relationRole
	for _, wid := range allStarting {
		rr, err := j.removeFromAllRelations(wid)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rr...)
	}
	warnAboutRelations := len(rels) > 0 && len(allStarting) > 1

	splitOuter, err := j.splitAll(outerStarting, cutNodes)
	if err != nil {
		return nil, err
	}
	splitInner, err := j.splitAll(innerStarting, cutNodes)
	if err != nil {
		return nil, err
	}
	j.log.Checkpoint("split ways into fragments")

	// Shared boundaries drawn twice cancel out.
	duplicates := findDuplicateWays(j.ds, append(append([]int64(nil), splitOuter...), splitInner...))
	splitOuter = removeAll(splitOuter, duplicates)
	splitInner = removeAll(splitInner, duplicates)

	prepared := markWayInsideSide(j.ds, splitOuter, false)
	prepared = append(prepared, markWayInsideSide(j.ds, splitInner, true)...)

	discarded := append([]int64(nil), duplicates...)
	boundaries, err := findBoundaryRings(j.ds, prepared, &discarded)
	if err != nil {
		return nil, err
	}
	j.logger.Debug("boundary rings assembled", zap.Int("rings", len(boundaries)))

	polygons := findPolygons(j.ds, boundaries)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resultPolygons []Multipolygon
	relationsToDelete := make(map[int64]bool)

	for _, pol := range polygons {
		resultPol, err := j.joinPolygon(pol)
		if err != nil {
			return nil, err
		}

		own, err := j.addOwnMultipolygonRelation(resultPol.InnerWays)
		if err != nil {
			return nil, err
		}
		if err := j.fixRelations(rels, resultPol.OuterWay, own, relationsToDelete); err != nil {
			return nil, err
		}
		if err := j.stripTags(resultPol.InnerWays); err != nil {
			return nil, err
		}

		resultPolygons = append(resultPolygons, *resultPol)
	}
	j.log.Checkpoint("assemble new polygons")

	for _, rid := range sortedSet(relationsToDelete) {
		if err := j.log.Apply(edit.NewDeleteRelation(j.ds, rid)); err != nil {
			return nil, err
		}
	}
	j.log.Checkpoint("delete relations")

	// Drop the leftover fragments that ended up in no polygon, along with
	// their nodes once nothing else uses them.
	deleted := make(map[int64]bool)
	candidateNodes := make(map[int64]bool)
	for _, wid := range discarded {
		if deleted[wid] || j.ds.Way(wid) == nil {
			continue
		}
		for _, nid := range j.ds.Way(wid).Nodes {
			candidateNodes[nid] = true
		}
		if err := j.log.Apply(edit.NewDeleteWay(j.ds, wid)); err != nil {
			return nil, err
		}
		deleted[wid] = true
	}
	if err := j.deleteOrphanedNodes(candidateNodes); err != nil {
		return nil, err
	}
	j.log.Checkpoint("delete discarded ways")

	if warnAboutRelations {
		j.warn("some ways were part of relations that have been modified; verify no errors were introduced")
	}

	j.logger.Info("joined overlapping areas",
		zap.Int("polygons", len(resultPolygons)),
		zap.Int("edits", j.log.Len()))

	return &Result{
		HasChanges:       true,
		Polygons:         resultPolygons,
		Warnings:         j.warnings,
		CreatedRelations: j.addedRelations,
	}, nil
}

// deleteOrphanedNodes removes untagged candidate nodes that no surviving
// way or relation references. The discarded fragments were their last
// users; tagged nodes stay, they carry meaning of their own.
func (j *Joiner) deleteOrphanedNodes(candidates map[int64]bool) error {
	if len(candidates) == 0 {
		return nil
	}
	for _, wid := range j.ds.WayIDs() {
		for _, nid := range j.ds.Way(wid).Nodes {
			delete(candidates, nid)
		}
	}
	for _, rid := range j.ds.RelationIDs() {
		for _, m := range j.ds.Relation(rid).Members {
			if m.Kind == osmdata.KindNode {
				delete(candidates, m.Ref)
			}
		}
	}
	for _, nid := range sortedSet(candidates) {
		n := j.ds.Node(nid)
		if n == nil || len(n.Tags) > 0 {
			continue
		}
		if err := j.log.Apply(edit.NewDeleteNode(j.ds, nid)); err != nil {
			return err
		}
	}
	return nil
}

func (j *Joiner) splitAll(ways []int64, cutNodes map[int64]bool) ([]int64, error) {
	var result []int64
	for _, wid := range ways {
		parts, err := j.splitWayOnNodes(wid, cutNodes)
		if err != nil {
			return nil, err
		}
		result = append(result, parts...)
	}
	return result, nil
}

func (j *Joiner) warn(msg string) {
	j.warnings = append(j.warnings, msg)
	j.logger.Warn(msg)
}

func areaWays(areas []*Multipolygon) []int64 {
	var ids []int64
	for _, area := range areas {
		ids = append(ids, area.OuterWay)
		ids = append(ids, area.InnerWays...)
	}
	return ids
}

func removeAll(list, toRemove []int64) []int64 {
	removeSet := make(map[int64]bool, len(toRemove))
	for _, id := range toRemove {
		removeSet[id] = true
	}
	out := list[:0]
	for _, id := range list {
		if !removeSet[id] {
			out = append(out, id)
		}
	}
	return out
}

func sortedSet(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}
