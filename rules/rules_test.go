package rules_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"cascade/props"
	"cascade/rules"
	"cascade/selector"
)

func TestCompile_SortsByDescendingSpecificity(t *testing.T) {
	rs := rules.Compile([]rules.Declaration{
		{Selector: "button", Props: props.Bag{"variant": props.String("outline")}},
		{Selector: "button#chat.send", Props: props.Bag{"variant": props.String("solid")}},
		{Selector: "button.chat", Props: props.Bag{"class": props.String("ghost")}},
		{Selector: "button:hover[data-a]", Props: props.Bag{"color": props.String("accent")}},
	})

	var got []string
	for _, r := range rs.Rules {
		got = append(got, r.Selector)
	}
	want := "button#chat.send button:hover[data-a] button.chat button"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
	if rs.Rules[0].Specificity != 21 || rs.Rules[3].Specificity != 1 {
		t.Errorf("unexpected specificity: %d, %d", rs.Rules[0].Specificity, rs.Rules[3].Specificity)
	}
}

func TestCompile_StableAmongEqualScores(t *testing.T) {
	rs := rules.Compile([]rules.Declaration{
		{Selector: "button.chat:hover"}, // 21
		{Selector: "button#send"},       // 21
		{Selector: "button.chat"},       // 11
		{Selector: "button:focus"},      // 11
	})

	want := []string{"button.chat:hover", "button#send", "button.chat", "button:focus"}
	for i, r := range rs.Rules {
		if r.Selector != want[i] {
			t.Errorf("rule %d = %s, want %s", i, r.Selector, want[i])
		}
	}
}

func TestCompile_NeverFails(t *testing.T) {
	rs := rules.Compile([]rules.Declaration{
		{Selector: "[[[", Props: nil},
		{Selector: "", Props: props.Bag{}},
	})
	if rs.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", rs.Len())
	}
	for _, r := range rs.Rules {
		if r.Props == nil {
			t.Errorf("rule %q has nil props", r.Selector)
		}
		if r.Matcher.Kind != selector.DefaultKind {
			t.Errorf("rule %q kind = %q", r.Selector, r.Matcher.Kind)
		}
	}
	if len(rs.Rules[0].Warnings) == 0 {
		t.Error("expected warnings for malformed selector")
	}
}

func TestCompiler_UsesParserVocabulary(t *testing.T) {
	p := selector.NewParser(zap.NewNop(), selector.WithContexts("composer"))
	c := rules.NewCompiler(zap.NewNop(), p)

	rs := c.Compile([]rules.Declaration{{Selector: "button.composer"}}, nil)
	if rs.Rules[0].Matcher.Context != "composer" {
		t.Errorf("context = %q", rs.Rules[0].Matcher.Context)
	}
}

func TestDeclarations_KeepYAMLOrder(t *testing.T) {
	src := `
rules:
  "button#chat.send": {variant: solid, color: primary}
  button: {variant: outline}
  "input[data-required]": {class: req}
  button.chat:
fallback:
  variant:
    solid: btn-solid
`
	b, err := rules.DecodeBundle(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}

	want := []string{"button#chat.send", "button", "input[data-required]", "button.chat"}
	if len(b.Rules) != len(want) {
		t.Fatalf("got %d declarations, want %d", len(b.Rules), len(want))
	}
	for i, d := range b.Rules {
		if d.Selector != want[i] {
			t.Errorf("declaration %d = %s, want %s", i, d.Selector, want[i])
		}
	}
	if c, _ := b.Rules[0].Props["color"].Str(); c != "primary" {
		t.Errorf("color = %s", b.Rules[0].Props["color"])
	}
	if b.Fallback["variant"]["solid"] != "btn-solid" {
		t.Errorf("fallback = %v", b.Fallback)
	}

	// and back again
	out, err := yaml.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if i, j := strings.Index(string(out), "chat.send"), strings.Index(string(out), "data-required"); i < 0 || j < 0 || i > j {
		t.Errorf("declaration order lost:\n%s", out)
	}
}

func TestDecodeBundle_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "rulez: {}\n"},
		{"rules not a mapping", "rules: [a, b]\n"},
		{"bad property", "rules:\n  button: {class: [[a]]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rules.DecodeBundle(strings.NewReader(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}

	b, err := rules.DecodeBundle(strings.NewReader(""))
	if err != nil || len(b.Rules) != 0 {
		t.Errorf("empty document: %v, %v", b, err)
	}
}

func writeBundle(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MergesInNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "styles/10-late.yaml", `
rules:
  button: {variant: ghost}
  input: {size: sm}
fallback:
  variant: {ghost: v-ghost}
`)
	writeBundle(t, dir, "styles/2-early.yaml", `
rules:
  button: {variant: outline}
  "button.chat": {class: chat}
fallback:
  variant: {solid: v-solid}
`)
	writeBundle(t, dir, "styles/readme.txt", "not a bundle")

	rs, files, err := rules.Load([]string{filepath.Join(dir, "styles", "**", "*.yaml")}, rules.NewCompiler(zap.NewNop(), nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "2-early.yaml" {
		t.Errorf("files = %v", files)
	}
	if rs.Len() != 3 {
		t.Fatalf("rules = %d, want 3", rs.Len())
	}
	for _, r := range rs.Rules {
		if r.Selector == "button" {
			if v, _ := r.Props["variant"].Str(); v != "ghost" {
				t.Errorf("later bundle must win for repeated selector, got %s", v)
			}
		}
	}
	if rs.Fallback["variant"]["solid"] != "v-solid" || rs.Fallback["variant"]["ghost"] != "v-ghost" {
		t.Errorf("fallback tables not merged: %v", rs.Fallback)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeBundle(t, dir, "good.yaml", "rules:\n  button: {}\n")
	bad1 := writeBundle(t, dir, "bad1.yaml", "rules: nope\n")
	bad2 := writeBundle(t, dir, "bad2.yaml", "unknown: 1\n")

	c := rules.NewCompiler(zap.NewNop(), nil)

	if _, _, err := rules.Load([]string{filepath.Join(dir, "missing.yaml")}, c); err == nil {
		t.Error("expected error for missing file")
	}

	rs, files, err := rules.Load([]string{good, bad1, bad2}, c)
	if err == nil {
		t.Fatal("expected error for malformed bundles")
	}
	if rs != nil {
		t.Error("rule set must not be returned on error")
	}
	if len(files) != 3 {
		t.Errorf("files = %v", files)
	}
	if !strings.Contains(err.Error(), "bad1.yaml") || !strings.Contains(err.Error(), "bad2.yaml") {
		t.Errorf("all failures must be reported: %v", err)
	}

	// no matches for a glob is not an error
	rs, _, err = rules.Load([]string{filepath.Join(dir, "none", "*.yaml")}, c)
	if err != nil || rs.Len() != 0 {
		t.Errorf("empty glob: %v, %v", rs, err)
	}
}
