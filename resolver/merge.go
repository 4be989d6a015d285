package resolver

import (
	"cascade/props"
	"cascade/rules"
)

// merge folds matched rules (highest specificity first) into a fresh bag.
// Rules are applied from lowest to highest specificity, so for plain
// properties the most specific rule wins. Class lists accumulate with more
// specific tokens first, structured property is deep merged. Rule bags are
// never modified, everything placed into result is a copy.
func (r *Resolver) merge(matched []*rules.Rule) props.Bag {
	out := make(props.Bag)
	class := ""
	for i := len(matched) - 1; i >= 0; i-- {
		rule := matched[i]
		for key, val := range rule.Props {
			switch key {
			case r.classKey:
				tokens, ok := val.ClassTokens()
				if !ok {
					continue
				}
				class = joinClasses(tokens, class)
				r.tracer.TraceMerge(key, rule.Selector, "prepend", props.String(class))

			case r.structuredKey:
				nested, ok := val.Bag()
				if !ok {
					out[key] = val.Clone()
					r.tracer.TraceMerge(key, rule.Selector, "replace", out[key])
					continue
				}
				if existing, ok := out[key].Bag(); ok {
					out[key] = props.Object(props.DeepMerge(existing, nested))
					r.tracer.TraceMerge(key, rule.Selector, "deep merge", out[key])
				} else {
					out[key] = props.Object(nested.Clone())
					r.tracer.TraceMerge(key, rule.Selector, "set", out[key])
				}

			default:
				out[key] = val.Clone()
				r.tracer.TraceMerge(key, rule.Selector, "overwrite", out[key])
			}
		}
	}
	if class != "" {
		out[r.classKey] = props.String(class)
	}
	return out
}
