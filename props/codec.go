package props

import (
	"encoding/json"
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes mapping of property names to values. Null values
// become empty strings: yaml does not call Value unmarshaler for null nodes so
// they are handled here.
func (b *Bag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	out := make(Bag, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var v Value
		if err := v.UnmarshalYAML(val); err != nil {
			return fmt.Errorf("property %q: %w", key.Value, err)
		}
		out[key.Value] = v
	}
	*b = out
	return nil
}

// UnmarshalYAML decodes scalars, sequences of scalars and mappings. Null
// scalars become empty strings.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.AliasNode:
		return v.UnmarshalYAML(node.Alias)
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			*v = Bool(b)
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return err
			}
			*v = Number(f)
		case "!!null":
			*v = String("")
		default:
			*v = String(node.Value)
		}
		return nil
	case yaml.SequenceNode:
		list := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: only scalar list elements are supported", item.Line)
			}
			list = append(list, item.Value)
		}
		*v = List(list...)
		return nil
	case yaml.MappingNode:
		var b Bag
		if err := b.UnmarshalYAML(node); err != nil {
			return err
		}
		*v = Object(b)
		return nil
	}
	return fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = String("")
		return nil
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
