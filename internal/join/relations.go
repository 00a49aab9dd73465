package join

import (
	"strings"

	"github.com/wegman-software/osmjoin/internal/edit"
	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// CollectMultipolygons analyzes the multipolygon relations of the selected
// ways and collects the areas to join: for each relation with a selected
// outer way, the outer plus its selected inner ways become one area.
// Selected ways in no relation become standalone areas. Relation layouts
// the join declines to handle are rejected with the matching catalog error.
func CollectMultipolygons(ds *osmdata.DataSet, selected []int64) ([]*Multipolygon, error) {
	selectedSet := make(map[int64]bool, len(selected))
	for _, wid := range selected {
		selectedSet[wid] = true
	}

	var result []*Multipolygon
	processedOuter := make(map[int64]bool)
	processedInner := make(map[int64]bool)

	for _, r := range ds.ParentRelations(selected) {
		if !r.IsMultipolygon() {
			continue
		}

		var outerWays, innerWays []int64
		hasKnownOuter := false

		for _, m := range r.Members {
			if m.Kind != osmdata.KindWay {
				continue
			}
			switch {
			case strings.EqualFold(m.Role, "outer"):
				outerWays = append(outerWays, m.Ref)
				hasKnownOuter = hasKnownOuter || selectedSet[m.Ref]
			case strings.EqualFold(m.Role, "inner"):
				innerWays = append(innerWays, m.Ref)
			}
		}

		if !hasKnownOuter {
			continue
		}

		if len(outerWays) > 1 {
			return nil, ErrMultipleOuterWays
		}
		outerWay := outerWays[0]

		// Only selected inner ways take part.
		selectedInner := innerWays[:0]
		for _, wid := range innerWays {
			if selectedSet[wid] {
				selectedInner = append(selectedInner, wid)
			}
		}

		if processedOuter[outerWay] {
			return nil, ErrOuterInMultipleRelations
		}
		if processedInner[outerWay] {
			return nil, ErrInnerAndOuter
		}
		for _, wid := range selectedInner {
			if processedOuter[wid] {
				return nil, ErrInnerAndOuter
			}
			if processedInner[wid] {
				return nil, ErrInnerInMultipleRelations
			}
		}

		processedOuter[outerWay] = true
		for _, wid := range selectedInner {
			processedInner[wid] = true
		}

		result = append(result, &Multipolygon{
			OuterWay:  outerWay,
			InnerWays: append([]int64(nil), selectedInner...),
		})
	}

	// Remaining selected ways, not part of any multipolygon relation.
	for _, wid := range selected {
		if processedOuter[wid] || processedInner[wid] {
			continue
		}
		result = append(result, &Multipolygon{OuterWay: wid})
	}

	return result, nil
}

// removeFromAllRelations strips the way from every relation it is a member
// of, recording the (relation, role) pairs for later reconciliation. Only
// the first membership per relation is removed, matching how the pairs are
// re-attached.
func (j *Joiner) removeFromAllRelations(wayID int64) ([]relationRole, error) {
	var result []relationRole

	for _, rid := range j.ds.RelationIDs() {
		r := j.ds.Relation(rid)
		for i, m := range r.Members {
			if m.Kind != osmdata.KindWay || m.Ref != wayID {
				continue
			}

			newMembers := r.CloneMembers()
			newMembers = append(newMembers[:i], newMembers[i+1:]...)
			if err := j.log.Apply(edit.NewChangeRelationMembers(j.ds, rid, newMembers)); err != nil {
				return nil, err
			}

			saved := relationRole{rel: rid, role: m.Role}
			if !containsRelationRole(result, saved) {
				result = append(result, saved)
			}
			break
		}
	}

	return result, nil
}

// addOwnMultipolygonRelation creates a fresh multipolygon relation holding
// the given inner ways. The outer membership is left to fixRelations, which
// merges it with whatever pre-existing relations claim the outer way.
func (j *Joiner) addOwnMultipolygonRelation(inner []int64) (*relationRole, error) {
	if len(inner) == 0 {
		return nil, nil
	}

	rel := osmdata.Relation{
		ID:   j.ds.AllocateID(),
		Tags: osmdata.Tags{"type": "multipolygon"},
	}
	for _, wid := range inner {
		rel.Members = append(rel.Members, osmdata.Member{Kind: osmdata.KindWay, Ref: wid, Role: "inner"})
	}

	if err := j.log.Apply(&edit.AddRelation{Relation: rel}); err != nil {
		return nil, err
	}
	j.addedRelations = append(j.addedRelations, rel.ID)

	return &relationRole{rel: rel.ID, role: "outer"}, nil
}

// fixRelations re-attaches the merged outer way to the relations its source
// ways were members of. A single multipolygon-outer membership is restored
// directly; several collapse into one newly synthesized relation combining
// all members and tags, and the originals are queued for deletion.
func (j *Joiner) fixRelations(rels []relationRole, outer int64, own *relationRole,
	relationsToDelete map[int64]bool) error {

	var multiOuters []relationRole
	if own != nil {
		multiOuters = append(multiOuters, *own)
	}

	for _, rr := range rels {
		rel := j.ds.Relation(rr.rel)
		if rel == nil {
			continue
		}
		if rel.IsMultipolygon() && strings.EqualFold(rr.role, "outer") {
			multiOuters = append(multiOuters, rr)
			continue
		}

		// Not a multipolygon outer membership; just add the merged way back
		// under the recorded role.
		newMembers := append(rel.CloneMembers(),
			osmdata.Member{Kind: osmdata.KindWay, Ref: outer, Role: rr.role})
		if err := j.log.Apply(edit.NewChangeRelationMembers(j.ds, rr.rel, newMembers)); err != nil {
			return err
		}
	}

	switch len(multiOuters) {
	case 0:
		return nil
	case 1:
		rr := multiOuters[0]
		rel := j.ds.Relation(rr.rel)
		newMembers := append(rel.CloneMembers(),
			osmdata.Member{Kind: osmdata.KindWay, Ref: outer, Role: rr.role})
		return j.log.Apply(edit.NewChangeRelationMembers(j.ds, rr.rel, newMembers))
	default:
		// Several multipolygon relations claim the merged way as outer.
		// Synthesize one relation combining all their members and tags.
		combined := osmdata.Relation{ID: j.ds.AllocateID(), Tags: osmdata.Tags{}}
		for _, rr := range multiOuters {
			rel := j.ds.Relation(rr.rel)
			for _, m := range rel.Members {
				if !combined.HasMember(m) {
					combined.Members = append(combined.Members, m)
				}
			}
			for k, v := range rel.Tags {
				combined.Tags[k] = v
			}
			relationsToDelete[rr.rel] = true
		}
		combined.Members = append(combined.Members,
			osmdata.Member{Kind: osmdata.KindWay, Ref: outer, Role: "outer"})

		if err := j.log.Apply(&edit.AddRelation{Relation: combined}); err != nil {
			return err
		}
		j.addedRelations = append(j.addedRelations, combined.ID)
		j.warn("merged way was outer in several multipolygon relations; they were combined into one")
		return nil
	}
}

func containsRelationRole(list []relationRole, rr relationRole) bool {
	for _, existing := range list {
		if existing == rr {
			return true
		}
	}
	return false
}
