package resolver

import (
	"go.uber.org/zap"

	"cascade/props"
	"cascade/rules"
)

// DefaultSemanticProperties lists semantic property names in the order their
// class tokens are appended.
var DefaultSemanticProperties = []string{"variant", "size", "color"}

// DefaultFallback returns fallback tables used when rule set supplies none.
func DefaultFallback() rules.FallbackMaps {
	return rules.FallbackMaps{
		"variant": {
			"solid":   "btn-solid",
			"outline": "btn-outline",
			"ghost":   "btn-ghost",
			"soft":    "btn-soft",
			"link":    "btn-link",
		},
		"size": {
			"xs": "btn-xs",
			"sm": "btn-sm",
			"md": "btn-md",
			"lg": "btn-lg",
			"xl": "btn-xl",
		},
		"color": {
			"primary":   "btn-primary",
			"secondary": "btn-secondary",
			"success":   "btn-success",
			"error":     "btn-error",
			"warning":   "btn-warning",
			"info":      "btn-info",
		},
	}
}

// applyFallback rewrites semantic properties of merged bag into class tokens
// for consumers which do not understand them. Properties with values not
// present in the tables stay untouched. Structured property is always
// dropped.
func (r *Resolver) applyFallback(bag props.Bag) {
	class, _ := bag[r.classKey].ClassTokens()
	changed := false
	for _, name := range r.semantic {
		s, ok := bag[name].Str()
		if !ok {
			continue
		}
		token, ok := r.fallback[name][s]
		if !ok || token == "" {
			continue
		}
		r.tracer.TraceFallback(name, s, token)
		class = joinClasses(class, token)
		delete(bag, name)
		changed = true
	}
	if changed {
		bag[r.classKey] = props.String(class)
	}
	if _, ok := bag[r.structuredKey]; ok {
		r.log.Debug("Structured property dropped for fallback consumer", zap.String("key", r.structuredKey))
		delete(bag, r.structuredKey)
	}
}

// joinClasses concatenates space separated class lists skipping empty ones.
func joinClasses(first, second string) string {
	switch {
	case first == "":
		return second
	case second == "":
		return first
	default:
		return first + " " + second
	}
}
