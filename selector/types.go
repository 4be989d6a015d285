package selector

import (
	"strconv"
	"strings"
)

// Operator is an attribute comparison operator.
type Operator int

const (
	OpExists    Operator = iota // [name]
	OpEquals                    // [name="v"]
	OpIncludes                  // [name~="v"] whitespace separated token
	OpDashMatch                 // [name|="v"] exact or "v-" prefix
	OpPrefix                    // [name^="v"]
	OpSuffix                    // [name$="v"]
	OpSubstring                 // [name*="v"]
)

// String returns the CSS representation of the operator, "" for OpExists.
func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "="
	case OpIncludes:
		return "~="
	case OpDashMatch:
		return "|="
	case OpPrefix:
		return "^="
	case OpSuffix:
		return "$="
	case OpSubstring:
		return "*="
	default:
		return ""
	}
}

// AttributeMatcher is a single attribute predicate.
type AttributeMatcher struct {
	Attribute string
	Operator  Operator
	Value     string // unused for OpExists
}

// String returns the matcher in selector syntax.
func (a AttributeMatcher) String() string {
	if a.Operator == OpExists {
		return "[" + a.Attribute + "]"
	}
	return "[" + a.Attribute + a.Operator.String() + strconv.Quote(a.Value) + "]"
}

// Match checks matcher against attribute value. present is false when the
// element does not have the attribute at all.
func (a AttributeMatcher) Match(value string, present bool) bool {
	if !present {
		return false
	}
	switch a.Operator {
	case OpExists:
		return true
	case OpEquals:
		return value == a.Value
	case OpIncludes:
		if a.Value == "" {
			return false
		}
		for _, tok := range strings.Fields(value) {
			if tok == a.Value {
				return true
			}
		}
		return false
	case OpDashMatch:
		return a.Value != "" && (value == a.Value || strings.HasPrefix(value, a.Value+"-"))
	case OpPrefix:
		return a.Value != "" && strings.HasPrefix(value, a.Value)
	case OpSuffix:
		return a.Value != "" && strings.HasSuffix(value, a.Value)
	case OpSubstring:
		return a.Value != "" && strings.Contains(value, a.Value)
	}
	return false
}

// Matcher is a parsed selector. Empty strings mean the part is absent.
type Matcher struct {
	Kind       string
	Context    string
	Identifier string
	State      string
	Attributes []AttributeMatcher // source order
}

// IsGlobal is true when matcher applies to every request for its kind.
func (m Matcher) IsGlobal() bool {
	return m.Context == "" && m.Identifier == "" && m.State == "" && len(m.Attributes) == 0
}

// HasAttributes is true when matching depends on element attributes.
func (m Matcher) HasAttributes() bool {
	return len(m.Attributes) > 0
}

// String returns canonical (expanded) selector text.
func (m Matcher) String() string {
	var sb strings.Builder
	sb.WriteString(m.Kind)
	if m.Context != "" {
		sb.WriteString(`[data-context=` + strconv.Quote(m.Context) + `]`)
	}
	if m.Identifier != "" {
		sb.WriteString(`[data-id=` + strconv.Quote(m.Identifier) + `]`)
	}
	if m.State != "" {
		sb.WriteString(":" + m.State)
	}
	for _, a := range m.Attributes {
		sb.WriteString(a.String())
	}
	return sb.String()
}

// Specificity weights.
const (
	weightBase       = 1
	weightContext    = 10
	weightIdentifier = 20
	weightState      = 10
	weightAttribute  = 10
)

// Specificity returns deterministic score used to order competing rules.
// NOTE: context+state (21) ties with identifier alone (21), ties are resolved by
// declaration order.
func Specificity(m Matcher) int {
	score := weightBase
	if m.Context != "" {
		score += weightContext
	}
	if m.Identifier != "" {
		score += weightIdentifier
	}
	if m.State != "" {
		score += weightState
	}
	return score + weightAttribute*len(m.Attributes)
}
