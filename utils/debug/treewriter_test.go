package debug

import (
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{"no depth", 0, "kind", nil, "kind\n"},
		{"depth 2", 2, "rule", nil, "    rule\n"},
		{"with formatting", 1, "specificity: %d", []any{21}, "  specificity: 21\n"},
		{"multiple args", 0, "%s (%d rules)", []any{"button", 5}, "button (5 rules)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{"empty value", 0, "class", "", "class: \n"},
		{"with value", 1, "class", "ghost base", "  class: \"ghost base\"\n"},
		{"value with quotes", 0, "selector", `input[type="text"]`, "selector: \"input[type=\\\"text\\\"]\"\n"},
		{"value with newline", 0, "multiline", "line1\nline2", "multiline: \"line1\\nline2\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"btn-solid", `"btn-solid"`},
		{"col1\tcol2", `"col1\tcol2"`},
		{`path\to\file`, `"path\\to\\file"`},
	}

	for _, tt := range tests {
		if got := encodeText(tt.input); got != tt.want {
			t.Errorf("encodeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTreeWriter_Map(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "button#send")
	tw.Map(1, map[string]any{
		"variant": "solid",
		"style": map[string]any{
			"padding10": 4.0,
			"padding2":  2.0,
		},
		"class":    "",
		"disabled": false,
	})

	want := "button#send\n" +
		"  class: \n" +
		"  disabled: false\n" +
		"  style:\n" +
		"    padding2: 2\n" +
		"    padding10: 4\n" +
		"  variant: \"solid\"\n"
	if got := tw.String(); got != want {
		t.Errorf("Map():\ngot:\n%s\nwant:\n%s", got, want)
	}
}
