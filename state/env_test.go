package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"cascade/config"
	"cascade/resolver"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	if ctx == nil {
		t.Fatal("ContextWithEnv() returned nil")
	}

	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}

	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}
}

func TestEnvFromContext(t *testing.T) {
	t.Run("valid context", func(t *testing.T) {
		ctx := ContextWithEnv(context.Background())
		env := EnvFromContext(ctx)

		if env == nil {
			t.Error("Expected non-nil environment")
		}
	})

	t.Run("panic on missing env", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when env not in context")
			}
		}()

		// Use plain context without env
		EnvFromContext(context.Background())
	})
}

func TestLocalEnv_StdLog(t *testing.T) {
	env := &LocalEnv{}
	// nothing to redirect to
	env.RedirectStdLog()
	if env.restoreStdLog != nil {
		t.Error("std log redirected without logger")
	}
	env.RestoreStdLog()

	env.Log = zaptest.NewLogger(t)
	env.RedirectStdLog()
	if env.restoreStdLog == nil {
		t.Fatal("std log not redirected")
	}
	env.RestoreStdLog()
}

func TestLocalEnv_Instrumentation(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	if env.Registry == nil || env.Metrics == nil {
		t.Fatal("Registry and metrics must be prepared")
	}
	if env.Tracer.IsEnabled() {
		t.Error("Tracing must be disabled by default")
	}

	env.Metrics.Reloaded(true)
	families, err := env.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "cascade_rules_reloads_total" {
			found = true
		}
	}
	if !found {
		t.Error("Resolver metrics are not registered")
	}
}

func TestLocalEnv_PrepareTracer(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := &LocalEnv{Cfg: &config.Config{Version: 1}}
		if err := env.PrepareTracer(); err != nil {
			t.Fatalf("PrepareTracer() error = %v", err)
		}
		if env.Tracer.IsEnabled() {
			t.Error("Tracer enabled without report or configuration request")
		}
		// nil tracer must be safe to flush
		env.FlushTrace()
	})

	t.Run("requested by configuration", func(t *testing.T) {
		t.Setenv("TMPDIR", t.TempDir())
		env := &LocalEnv{
			Cfg: &config.Config{Version: 1, Resolver: config.ResolverConfig{Trace: true}},
			Log: zaptest.NewLogger(t),
		}
		if err := env.PrepareTracer(); err != nil {
			t.Fatalf("PrepareTracer() error = %v", err)
		}
		if !env.Tracer.IsEnabled() {
			t.Fatal("Tracer not enabled")
		}
		first := env.Tracer
		if err := env.PrepareTracer(); err != nil || env.Tracer != first {
			t.Error("PrepareTracer() must keep existing tracer")
		}
	})
}

func TestLocalEnv_NewReloader(t *testing.T) {
	dir := t.TempDir()
	bundle := "rules:\n  widget: {variant: solid, class: w}\n  \"widget.composer\": {class: c}\n"
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(bundle), 0644); err != nil {
		t.Fatal(err)
	}

	env := EnvFromContext(ContextWithEnv(context.Background()))
	env.Log = zaptest.NewLogger(t)
	env.Cfg = &config.Config{
		Version: 1,
		Rules: config.RulesConfig{
			Sources:       []string{filepath.Join(dir, "*.yaml")},
			DefaultKind:   "widget",
			KnownContexts: []string{"composer"},
		},
		Resolver: config.ResolverConfig{
			CacheSize:          10,
			ClassKey:           "class",
			StructuredKey:      "style",
			SemanticProperties: []string{"variant"},
		},
	}

	r := env.NewReloader()
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	res := r.Resolve(resolver.Request{Kind: "widget", Context: "composer", SemanticFallback: true})
	if got, _ := res.Props["class"].Str(); got != "c w btn-solid" {
		t.Errorf("class = %q, want %q", got, "c w btn-solid")
	}
	if files := r.Files(); len(files) != 1 {
		t.Errorf("Files() = %v", files)
	}
}
