// Package reload keeps active resolver generation and replaces it when rule
// sources change.
package reload

import (
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cascade/resolver"
	"cascade/rules"
)

// Reloader owns currently active resolver. Every successful reload compiles
// rule sources into a fresh rule set and builds a fresh resolver (with its
// own index and empty cache), which atomically replaces previous one.
// Failed reload keeps previous generation serving.
type Reloader struct {
	log      *zap.Logger
	patterns []string
	compiler *rules.Compiler
	metrics  *resolver.Metrics
	opts     []resolver.Option

	mu       sync.Mutex // serializes reloads
	current  atomic.Pointer[resolver.Resolver]
	files    atomic.Pointer[[]string]
	attempts atomic.Int64
	failures atomic.Int64
}

// New creates reloader for rule sources matching patterns. Until first
// successful Reload an empty resolver is active.
func New(log *zap.Logger, patterns []string, compiler *rules.Compiler, metrics *resolver.Metrics, opts ...resolver.Option) *Reloader {
	if log == nil {
		log = zap.NewNop()
	}
	if compiler == nil {
		compiler = rules.NewCompiler(log, nil)
	}
	r := &Reloader{
		log:      log.Named("reload"),
		patterns: slices.Clone(patterns),
		compiler: compiler,
		metrics:  metrics,
		opts:     append(slices.Clone(opts), resolver.WithLogger(log), resolver.WithMetrics(metrics)),
	}
	r.current.Store(resolver.New(nil, r.opts...))
	r.files.Store(&[]string{})
	return r
}

// Resolver returns active resolver generation, never nil. Callers should not
// hold on to returned value across requests to observe reloads.
func (r *Reloader) Resolver() *resolver.Resolver {
	return r.current.Load()
}

// Resolve resolves request against active generation.
func (r *Reloader) Resolve(req resolver.Request) resolver.Result {
	return r.current.Load().Resolve(req)
}

// Files returns rule source files used by active generation.
func (r *Reloader) Files() []string {
	return slices.Clone(*r.files.Load())
}

// Patterns returns rule source patterns.
func (r *Reloader) Patterns() []string {
	return slices.Clone(r.patterns)
}

// Reload loads and compiles rule sources and activates new resolver
// generation. On error active generation is left untouched.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts.Add(1)

	rs, files, err := rules.Load(r.patterns, r.compiler)
	if err != nil {
		r.failures.Add(1)
		r.metrics.Reloaded(false)
		r.log.Warn("Unable to reload rules, keeping previous generation",
			zap.String("generation", r.current.Load().Generation()),
			zap.Error(err))
		return err
	}

	for _, rule := range rs.Rules {
		if len(rule.Warnings) > 0 {
			r.log.Debug("Selector partially ignored", zap.String("selector", rule.Selector), zap.Strings("dropped", rule.Warnings))
		}
	}

	next := resolver.New(rs, r.opts...)
	prev := r.current.Swap(next)
	r.files.Store(&files)
	r.metrics.Reloaded(true)
	r.log.Info("Rules loaded",
		zap.Int("files", len(files)),
		zap.Int("rules", rs.Len()),
		zap.String("generation", next.Generation()),
		zap.String("previous", prev.Generation()))
	return nil
}

// Attempts returns number of reloads attempted.
func (r *Reloader) Attempts() int64 {
	return r.attempts.Load()
}

// Failures returns number of failed reloads.
func (r *Reloader) Failures() int64 {
	return r.failures.Load()
}
