package props_test

import (
	"encoding/json"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"cascade/props"
)

func TestDeepMerge_NestedBags(t *testing.T) {
	base := props.Bag{
		"padding": props.Object(props.Bag{
			"x": props.Number(1),
			"y": props.Number(2),
		}),
		"tags": props.List("a", "b"),
	}
	over := props.Bag{
		"padding": props.Object(props.Bag{
			"y": props.Number(4),
			"z": props.Number(8),
		}),
		"tags": props.List("c"),
	}

	got := props.DeepMerge(base, over)

	padding, ok := got["padding"].Bag()
	if !ok {
		t.Fatalf("padding is %s, want bag", got["padding"].Kind())
	}
	want := props.Bag{"x": props.Number(1), "y": props.Number(4), "z": props.Number(8)}
	if !padding.Equal(want) {
		t.Errorf("padding = %s, want %s", padding, want)
	}
	if list, _ := got["tags"].Strings(); len(list) != 1 || list[0] != "c" {
		t.Errorf("lists must be overwritten, got %v", list)
	}

	// arguments must stay intact
	if orig, _ := base["padding"].Bag(); len(orig) != 2 {
		t.Errorf("base was modified: %s", orig)
	}
}

func TestDeepMerge_ScalarReplacesBag(t *testing.T) {
	base := props.Bag{"shadow": props.Object(props.Bag{"blur": props.Number(2)})}
	over := props.Bag{"shadow": props.String("none")}

	got := props.DeepMerge(base, over)
	if s, ok := got["shadow"].Str(); !ok || s != "none" {
		t.Errorf("shadow = %s, want \"none\"", got["shadow"])
	}

	got = props.DeepMerge(over, base)
	if got["shadow"].Kind() != props.KindBag {
		t.Errorf("shadow = %s, want bag", got["shadow"])
	}
}

func TestDeepMerge_Idempotent(t *testing.T) {
	cfg := props.Bag{"a": props.Object(props.Bag{"b": props.Object(props.Bag{"c": props.Bool(true)})})}

	once := props.DeepMerge(nil, cfg)
	twice := props.DeepMerge(once, cfg)
	if !once.Equal(twice) {
		t.Errorf("merging twice = %s, merging once = %s", twice, once)
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := props.Bag{
		"nested": props.Object(props.Bag{"k": props.String("v")}),
		"list":   props.List("x"),
	}
	cp := orig.Clone()
	nested, _ := cp["nested"].Bag()
	nested["k"] = props.String("changed")
	list, _ := cp["list"].Strings()
	list[0] = "y"

	if n, _ := orig["nested"].Bag(); n["k"].String() != `"v"` {
		t.Errorf("nested bag shared with clone")
	}
	if l, _ := orig["list"].Strings(); l[0] != "x" {
		t.Errorf("list shared with clone")
	}
}

func TestClassTokens(t *testing.T) {
	tests := []struct {
		name string
		val  props.Value
		want string
		ok   bool
	}{
		{"string", props.String("  btn  primary "), "btn  primary", true},
		{"list", props.List("btn", " wide ", ""), "btn wide", true},
		{"empty string", props.String("   "), "", false},
		{"number", props.Number(3), "", false},
		{"bag", props.Object(props.Bag{}), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.val.ClassTokens()
			if got != tt.want || ok != tt.ok {
				t.Errorf("ClassTokens() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestValue_UnmarshalYAML(t *testing.T) {
	src := `
variant: solid
rounded: true
width: 12.5
order: 3
empty:
classes: [a, b]
style:
  padding:
    x: 4
`
	var b props.Bag
	if err := yaml.Unmarshal([]byte(src), &b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if s, ok := b["variant"].Str(); !ok || s != "solid" {
		t.Errorf("variant = %s", b["variant"])
	}
	if v, ok := b["rounded"].Boolean(); !ok || !v {
		t.Errorf("rounded = %s", b["rounded"])
	}
	if n, ok := b["width"].Num(); !ok || n != 12.5 {
		t.Errorf("width = %s", b["width"])
	}
	if n, ok := b["order"].Num(); !ok || n != 3 {
		t.Errorf("order = %s", b["order"])
	}
	if s, ok := b["empty"].Str(); !ok || s != "" {
		t.Errorf("empty = %s", b["empty"])
	}
	if l, ok := b["classes"].Strings(); !ok || len(l) != 2 {
		t.Errorf("classes = %s", b["classes"])
	}
	style, ok := b["style"].Bag()
	if !ok {
		t.Fatalf("style = %s, want bag", b["style"])
	}
	padding, _ := style["padding"].Bag()
	if n, _ := padding["x"].Num(); n != 4 {
		t.Errorf("style.padding.x = %s", padding["x"])
	}
}

func TestBag_UnmarshalYAML_Nulls(t *testing.T) {
	src := `
variant:
alias: &none ~
again: *none
style:
  border: null
`
	var b props.Bag
	if err := yaml.Unmarshal([]byte(src), &b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, name := range []string{"variant", "alias", "again"} {
		if s, ok := b[name].Str(); !ok || s != "" {
			t.Errorf("%s = %s (%s), want empty string", name, b[name], b[name].Kind())
		}
	}
	style, _ := b["style"].Bag()
	if s, ok := style["border"].Str(); !ok || s != "" {
		t.Errorf("style.border = %s (%s), want empty string", style["border"], style["border"].Kind())
	}
}

func TestValue_UnmarshalYAML_RejectsNestedLists(t *testing.T) {
	var b props.Bag
	if err := yaml.Unmarshal([]byte(`classes: [[a]]`), &b); err == nil {
		t.Error("expected error for nested sequence")
	}
}

func TestValue_JSON(t *testing.T) {
	b := props.Bag{
		"variant": props.String("solid"),
		"size":    props.Number(2),
		"style":   props.Object(props.Bag{"bold": props.Bool(true)}),
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"size":2,"style":{"bold":true},"variant":"solid"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back props.Bag
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(b) {
		t.Errorf("Unmarshal() = %s, want %s", back, b)
	}
}

func TestFromMap_Unsupported(t *testing.T) {
	if _, err := props.FromMap(map[string]any{"bad": []int{1}}); err == nil {
		t.Error("expected error for []int")
	}
}
