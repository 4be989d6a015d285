// Package rules compiles selector declarations into specificity ordered rule
// sets.
package rules

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"cascade/props"
	"cascade/selector"
)

// Declaration is a single authored rule: selector text and its properties.
type Declaration struct {
	Selector string
	Props    props.Bag
}

// FallbackMaps maps semantic property name (variant, size, color) to a table
// of property value -> class token.
type FallbackMaps map[string]map[string]string

// Rule is a compiled declaration. Immutable once compiled.
type Rule struct {
	Matcher     selector.Matcher
	Props       props.Bag
	Selector    string // as authored
	Specificity int
	Warnings    []string // fragments dropped while parsing selector
}

// RuleSet is a compiled set of rules sorted by descending specificity.
// Rule sets are never modified, reloading produces a new one.
type RuleSet struct {
	Rules    []Rule
	Fallback FallbackMaps // nil when bundle does not supply its own
}

// Len returns number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// Compiler turns declarations into rule sets.
type Compiler struct {
	log    *zap.Logger
	parser *selector.Parser
}

// NewCompiler creates compiler using provided selector parser, when parser is
// nil default vocabulary is used.
func NewCompiler(log *zap.Logger, parser *selector.Parser) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	if parser == nil {
		parser = selector.NewParser(log)
	}
	return &Compiler{log: log.Named("compiler"), parser: parser}
}

// Compile parses and scores every declaration and sorts result by descending
// specificity. Sort is stable: among equal scores declaration order is kept.
// Compilation never fails.
func (c *Compiler) Compile(decls []Declaration, fallback FallbackMaps) *RuleSet {
	rs := &RuleSet{
		Rules:    make([]Rule, 0, len(decls)),
		Fallback: fallback,
	}
	for _, d := range decls {
		m, warnings := c.parser.ParseWithWarnings(d.Selector)
		bag := d.Props
		if bag == nil {
			bag = props.Bag{}
		}
		rs.Rules = append(rs.Rules, Rule{
			Matcher:     m,
			Props:       bag,
			Selector:    d.Selector,
			Specificity: selector.Specificity(m),
			Warnings:    warnings,
		})
	}
	slices.SortStableFunc(rs.Rules, func(a, b Rule) int {
		return cmp.Compare(b.Specificity, a.Specificity)
	})
	c.log.Debug("Rule set compiled", zap.Int("rules", len(rs.Rules)), zap.Int("fallback tables", len(fallback)))
	return rs
}

// Compile compiles declarations with default selector vocabulary.
func Compile(decls []Declaration) *RuleSet {
	return NewCompiler(nil, nil).Compile(decls, nil)
}
