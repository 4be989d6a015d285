package resolver

import (
	"cascade/rules"
)

// kindIndex buckets rules by target kind keeping global specificity order
// inside every bucket.
type kindIndex struct {
	byKind    map[string][]*rules.Rule
	attrKinds map[string]bool // kinds with at least one attribute predicate
}

func buildIndex(rs *rules.RuleSet) kindIndex {
	idx := kindIndex{
		byKind:    make(map[string][]*rules.Rule),
		attrKinds: make(map[string]bool),
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		kind := r.Matcher.Kind
		idx.byKind[kind] = append(idx.byKind[kind], r)
		if r.Matcher.HasAttributes() {
			idx.attrKinds[kind] = true
		}
	}
	return idx
}

// candidates returns rules which could apply to the kind, nil for unknown
// kinds.
func (idx kindIndex) candidates(kind string) []*rules.Rule {
	return idx.byKind[kind]
}

// attributeSensitive reports whether results for kind may depend on element
// attributes.
func (idx kindIndex) attributeSensitive(kind string) bool {
	return idx.attrKinds[kind]
}
