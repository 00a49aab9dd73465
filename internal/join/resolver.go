package join

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wegman-software/osmjoin/internal/osmdata"
)

// TagResolver decides the tag set of the merged area when the joined ways
// carry differing tags. Interactive frontends can plug in their own
// implementation; returning an error aborts the join with nothing committed.
type TagResolver interface {
	Resolve(ways []*osmdata.Way) (osmdata.Tags, error)
}

// PolicyResolver resolves tag conflicts without user interaction according
// to a fixed policy (see the config package for the policy names).
type PolicyResolver struct {
	Policy string
}

// Resolve merges the tags of all ways. Keys present on only one way are
// kept as-is; keys with conflicting values are handled per policy.
func (r *PolicyResolver) Resolve(ways []*osmdata.Way) (osmdata.Tags, error) {
	merged := osmdata.Tags{}
	values := map[string][]string{}

	for _, w := range ways {
		keys := make([]string, 0, len(w.Tags))
		for k := range w.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := w.Tags[k]
			if !containsValue(values[k], v) {
				values[k] = append(values[k], v)
			}
		}
	}

	for k, vs := range values {
		if len(vs) == 1 {
			merged[k] = vs[0]
			continue
		}
		switch r.Policy {
		case "first":
			merged[k] = vs[0]
		case "union":
			merged[k] = strings.Join(vs, ";")
		default:
			return nil, fmt.Errorf("%w: key %q has values %v", ErrTagConflict, k, vs)
		}
	}

	return merged, nil
}

func containsValue(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
