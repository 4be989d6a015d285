package resolver

import (
	"cascade/selector"
)

// AttributeSource gives access to attributes of the concrete element being
// resolved. ok is false when attribute is absent, present but empty
// attributes must return "", true.
type AttributeSource interface {
	Attribute(name string) (value string, ok bool)
}

// Attributes is a map based AttributeSource.
type Attributes map[string]string

// Attribute implements AttributeSource.
func (a Attributes) Attribute(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// AttributeFunc adapts function to AttributeSource.
type AttributeFunc func(name string) (string, bool)

// Attribute implements AttributeSource.
func (f AttributeFunc) Attribute(name string) (string, bool) {
	return f(name)
}

// matches checks every predicate of the matcher against request. Matcher
// without predicates is global for its kind and always matches.
func matches(m *selector.Matcher, req *Request) bool {
	if m.Context != "" && m.Context != req.Context {
		return false
	}
	if m.Identifier != "" && m.Identifier != req.Identifier {
		return false
	}
	if m.State != "" && m.State != req.State {
		return false
	}
	if len(m.Attributes) == 0 {
		return true
	}
	if req.Attributes == nil {
		return false
	}
	for _, am := range m.Attributes {
		if !am.Match(req.Attributes.Attribute(am.Attribute)) {
			return false
		}
	}
	return true
}
