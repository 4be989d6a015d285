package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/maruel/natural"

	"cascade/props"
	"cascade/rules"
)

// TraceFileName is name of the trace file written by Flush.
const TraceFileName = "resolve-trace.txt"

// Tracer records resolution steps for debugging. When enabled (via non-empty
// workDir) it captures how rules are indexed, matched, merged and how
// semantic fallback rewrites results.
//
// The trace is written to a file when Flush() is called, the file is placed
// in the working directory so it gets included in the debug report archive.
// Tracer is safe for concurrent use, but is meant for diagnostics only: every
// request is recorded.
type Tracer struct {
	mu       sync.Mutex
	enabled  bool
	workDir  string
	entries  []traceEntry
	sections map[string]int // section name -> entry count for summary
}

type traceEntry struct {
	operation string
	subject   string
	details   string
}

// NewTracer creates a new tracer. If workDir is empty, tracing is disabled.
func NewTracer(workDir string) *Tracer {
	return &Tracer{
		workDir:  workDir,
		enabled:  workDir != "",
		sections: make(map[string]int),
	}
}

// IsEnabled returns true if tracing is active.
func (t *Tracer) IsEnabled() bool {
	if t == nil {
		return false
	}
	return t.enabled
}

func (t *Tracer) add(section, operation, subject, details string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, traceEntry{operation: operation, subject: subject, details: details})
	t.sections[section]++
}

// TraceIndex logs rule set indexing for a new generation.
func (t *Tracer) TraceIndex(generation string, index map[string][]*rules.Rule, attrKinds map[string]bool) {
	if !t.IsEnabled() {
		return
	}
	kinds := make([]string, 0, len(index))
	for k := range index {
		kinds = append(kinds, k)
	}
	sort.Sort(natural.StringSlice(kinds))

	var details strings.Builder
	for _, k := range kinds {
		fmt.Fprintf(&details, "%s: %d rule(s)", k, len(index[k]))
		if attrKinds[k] {
			details.WriteString(", attribute sensitive")
		}
		details.WriteString("\n")
	}
	t.add("indexed", "INDEX", generation, strings.TrimSuffix(details.String(), "\n"))
}

// TraceCacheHit logs result served from cache.
func (t *Tracer) TraceCacheHit(key string) {
	if !t.IsEnabled() {
		return
	}
	t.add("cache_hits", "HIT", key, "")
}

// TraceMatch logs rules matched for a request in application order reversed,
// highest specificity first.
func (t *Tracer) TraceMatch(req *Request, matched []*rules.Rule) {
	if !t.IsEnabled() {
		return
	}
	var details strings.Builder
	if len(matched) == 0 {
		details.WriteString("(no rules matched)")
	}
	for i, r := range matched {
		if i > 0 {
			details.WriteString("\n")
		}
		fmt.Fprintf(&details, "%s (%d): %s", r.Selector, r.Specificity, r.Props)
	}
	t.add("matched", "MATCH", req.String(), details.String())
}

// TraceMerge logs merge decision for a single property.
func (t *Tracer) TraceMerge(prop, rule, action string, result props.Value) {
	if !t.IsEnabled() {
		return
	}
	t.add("merged", "MERGE", prop, fmt.Sprintf("rule=%s action=%s result=%s", rule, action, result))
}

// TraceFallback logs semantic property rewritten into a class token.
func (t *Tracer) TraceFallback(prop, value, token string) {
	if !t.IsEnabled() {
		return
	}
	t.add("fallback", "FALLBACK", prop, fmt.Sprintf("%s -> %s", value, token))
}

// TraceResult logs final resolved properties.
func (t *Tracer) TraceResult(req *Request, res Result, cached bool) {
	if !t.IsEnabled() {
		return
	}
	details := res.Props.String()
	if cached {
		details += "\n(stored in cache)"
	}
	t.add("resolved", "RESULT", req.String(), details)
}

// TraceFault logs resolution failure which was replaced with empty result.
func (t *Tracer) TraceFault(req *Request, cause any) {
	if !t.IsEnabled() {
		return
	}
	t.add("faults", "FAULT", req.String(), fmt.Sprintf("%v", cause))
}

// Flush writes the trace to a file and clears the buffer. Returns the path to
// the trace file, or empty string if tracing is disabled or nothing was
// recorded.
func (t *Tracer) Flush() (string, error) {
	if !t.IsEnabled() {
		return "", nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("=== Style Resolution Trace ===\n\n")

	sections := make([]string, 0, len(t.sections))
	for s := range t.sections {
		sections = append(sections, s)
	}
	sort.Sort(natural.StringSlice(sections))

	sb.WriteString("Summary:\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "  %s: %d\n", s, t.sections[s])
	}
	sb.WriteString("\n")

	sb.WriteString("Detailed Trace:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for i, entry := range t.entries {
		fmt.Fprintf(&sb, "[%04d] %s: %s\n", i+1, entry.operation, entry.subject)
		if entry.details != "" {
			for line := range strings.SplitSeq(entry.details, "\n") {
				sb.WriteString("       " + line + "\n")
			}
		}
		sb.WriteString("\n")
	}

	tracePath := filepath.Join(t.workDir, TraceFileName)
	if err := os.WriteFile(tracePath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("unable to write resolution trace: %w", err)
	}

	t.entries = nil
	t.sections = make(map[string]int)

	return tracePath, nil
}
