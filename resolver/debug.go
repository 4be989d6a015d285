package resolver

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"cascade/utils/debug"
)

// String returns readable tree of indexed rule set: kinds in natural order,
// each with its rules in application order. It exists for debug reports and
// manual inspection.
func (r *Resolver) String() string {
	if r == nil {
		return "<nil Resolver>"
	}

	tw := debug.NewTreeWriter()
	tw.Line(0, "Generation %s: %d rule(s), %d kind(s)", r.generation, r.rs.Len(), len(r.index.byKind))

	kinds := slices.Collect(maps.Keys(r.index.byKind))
	sort.Sort(natural.StringSlice(kinds))
	for _, kind := range kinds {
		if r.index.attrKinds[kind] {
			tw.Line(1, "Kind[%q] attribute sensitive", kind)
		} else {
			tw.Line(1, "Kind[%q]", kind)
		}
		for _, rule := range r.index.byKind[kind] {
			tw.Line(2, "Rule %s specificity[%d]", rule.Matcher, rule.Specificity)
			tw.TextBlock(3, "selector", rule.Selector)
			for _, w := range rule.Warnings {
				tw.TextBlock(3, "dropped", w)
			}
			tw.Map(3, rule.Props.Map())
		}
	}

	if len(r.fallback) > 0 {
		tw.Line(0, "Fallback tables: %d", len(r.fallback))
		names := slices.Collect(maps.Keys(r.fallback))
		sort.Sort(natural.StringSlice(names))
		for _, name := range names {
			tw.Line(1, "Property[%q]", name)
			tokens := make(map[string]any, len(r.fallback[name]))
			for k, v := range r.fallback[name] {
				tokens[k] = v
			}
			tw.Map(2, tokens)
		}
	}
	return tw.String()
}
