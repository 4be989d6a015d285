package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"cascade/props"
)

// Declarations is an ordered selector -> properties mapping. When decoded
// from YAML declaration order of the document is kept.
type Declarations []Declaration

// UnmarshalYAML decodes mapping node keeping key order.
func (d *Declarations) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: rules must be a mapping of selector to properties", node.Line)
	}
	out := make(Declarations, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var bag props.Bag
		if err := val.Decode(&bag); err != nil {
			return fmt.Errorf("selector %q: %w", key.Value, err)
		}
		out = out.set(key.Value, bag)
	}
	*d = out
	return nil
}

// MarshalYAML keeps declaration order.
func (d Declarations) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, decl := range d {
		var val yaml.Node
		if err := val.Encode(decl.Props); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: decl.Selector}, &val)
	}
	return node, nil
}

// set replaces properties of already declared selector in place or appends a
// new declaration.
func (d Declarations) set(sel string, bag props.Bag) Declarations {
	for i := range d {
		if d[i].Selector == sel {
			d[i].Props = bag
			return d
		}
	}
	return append(d, Declaration{Selector: sel, Props: bag})
}

// Bundle is a single authored YAML document with rules.
type Bundle struct {
	Rules    Declarations `yaml:"rules"`
	Fallback FallbackMaps `yaml:"fallback,omitempty"`
}

// DecodeBundle reads bundle from r. Unknown top level fields are rejected.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	b := &Bundle{}
	if err := dec.Decode(b); err != nil {
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		return nil, fmt.Errorf("failed to decode rule bundle: %w", err)
	}
	return b, nil
}

// Merge overlays other bundle: repeated selectors replace properties in place,
// fallback tables are merged per semantic property.
func (b *Bundle) Merge(other *Bundle) {
	for _, d := range other.Rules {
		b.Rules = b.Rules.set(d.Selector, d.Props)
	}
	for name, table := range other.Fallback {
		if b.Fallback == nil {
			b.Fallback = make(FallbackMaps)
		}
		if b.Fallback[name] == nil {
			b.Fallback[name] = make(map[string]string, len(table))
		}
		for k, v := range table {
			b.Fallback[name][k] = v
		}
	}
}

// FindBundles expands glob patterns (doublestar syntax) and returns matching
// regular files in natural order, without duplicates. Patterns without glob
// characters must point to existing files.
func FindBundles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Clean(pattern))
		if err != nil {
			return nil, fmt.Errorf("bad rule source pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 && !containsGlob(pattern) {
			return nil, fmt.Errorf("rule source '%s' does not exist", pattern)
		}
		sort.Sort(natural.StringSlice(matches))
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// LoadBundles reads and merges all bundle files in order. Every unreadable or
// malformed file is reported, combined error is returned together with what
// could be loaded.
func LoadBundles(files []string, log *zap.Logger) (*Bundle, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var errs error
	merged := &Bundle{}
	for _, name := range files {
		b, err := loadBundle(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		log.Debug("Rule bundle loaded", zap.String("file", name), zap.Int("rules", len(b.Rules)))
		merged.Merge(b)
	}
	return merged, errs
}

func loadBundle(name string) (*Bundle, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open rule bundle: %w", err)
	}
	defer f.Close()

	b, err := DecodeBundle(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// Load discovers, reads and compiles all bundles matching patterns. Returned
// slice lists files actually used. Any load problem is an error - partially
// loaded rule sets are never returned.
func Load(patterns []string, c *Compiler) (*RuleSet, []string, error) {
	files, err := FindBundles(patterns)
	if err != nil {
		return nil, nil, err
	}
	b, err := LoadBundles(files, c.log)
	if err != nil {
		return nil, files, err
	}
	return c.Compile(b.Rules, b.Fallback), files, nil
}
