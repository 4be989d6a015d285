// Package resolver computes effective style properties for element
// descriptions against compiled rule set.
package resolver

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cascade/props"
	"cascade/rules"
)

// Defaults for property keys with special merge behavior.
const (
	DefaultClassKey      = "class"
	DefaultStructuredKey = "style"
)

// Request describes element being styled.
type Request struct {
	Kind       string
	Context    string
	Identifier string
	State      string
	// Attributes of the concrete element, nil when consumer does not
	// provide them. Results for kinds with attribute rules are not cached
	// when attributes are provided.
	Attributes AttributeSource
	// SemanticFallback requests rewriting of semantic properties into class
	// tokens for consumers which cannot interpret them.
	SemanticFallback bool
}

// String returns request description for logs and traces.
func (req *Request) String() string {
	var sb strings.Builder
	sb.WriteString(req.Kind)
	if req.Context != "" {
		sb.WriteString(" context=" + req.Context)
	}
	if req.Identifier != "" {
		sb.WriteString(" id=" + req.Identifier)
	}
	if req.State != "" {
		sb.WriteString(" state=" + req.State)
	}
	if req.Attributes != nil {
		sb.WriteString(" +attributes")
	}
	if req.SemanticFallback {
		sb.WriteString(" +fallback")
	}
	return sb.String()
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// cacheKey composes kind, context, identifier, state and fallback flag.
// Attributes never take part in the key.
func (req *Request) cacheKey() string {
	return strings.Join([]string{
		keyEscaper.Replace(req.Kind),
		keyEscaper.Replace(req.Context),
		keyEscaper.Replace(req.Identifier),
		keyEscaper.Replace(req.State),
		strconv.FormatBool(req.SemanticFallback),
	}, "|")
}

// Result holds resolved properties. Results may be shared between callers
// through the cache and must be treated as read-only, use Clone to obtain a
// private copy.
type Result struct {
	Props props.Bag
}

// Clone returns deep copy of the result.
func (r Result) Clone() Result {
	return Result{Props: r.Props.Clone()}
}

// IsEmpty returns true when no properties were resolved.
func (r Result) IsEmpty() bool {
	return len(r.Props) == 0
}

// Stats is a snapshot of resolver counters.
type Stats struct {
	Requests    int64 `json:"requests"`    // all Resolve calls
	Hits        int64 `json:"hits"`        // served from cache
	Misses      int64 `json:"misses"`      // cacheable, evaluated and stored
	Uncached    int64 `json:"uncached"`    // attribute dependent, evaluated every time
	Evaluations int64 `json:"evaluations"` // matching and merge runs
	Faults      int64 `json:"faults"`      // failed evaluations replaced with empty result
	Evictions   int64 `json:"evictions"`   // entries pushed out of cache
	CacheSize   int   `json:"cache_size"`  // current number of cached entries
}

type counters struct {
	requests, hits, misses, uncached, evaluations, faults, evictions atomic.Int64
}

// Resolver resolves requests against single immutable rule set generation.
// Resolver is safe for concurrent use.
type Resolver struct {
	log           *zap.Logger
	generation    string
	rs            *rules.RuleSet
	index         kindIndex
	cache         *lruCache[string, Result]
	fallback      rules.FallbackMaps
	classKey      string
	structuredKey string
	semantic      []string
	tracer        *Tracer
	metrics       *Metrics
	stats         counters
}

type options struct {
	log           *zap.Logger
	cacheSize     int
	fallback      rules.FallbackMaps
	classKey      string
	structuredKey string
	semantic      []string
	tracer        *Tracer
	metrics       *Metrics
}

// Option configures Resolver.
type Option func(*options)

// WithLogger sets logger, by default nothing is logged.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithCacheSize sets resolution cache capacity. Values below 1 select
// DefaultCacheSize.
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithFallback sets fallback tables overriding both rule set supplied and
// default ones.
func WithFallback(fb rules.FallbackMaps) Option {
	return func(o *options) { o.fallback = fb }
}

// WithClassKey sets name of class list property.
func WithClassKey(key string) Option {
	return func(o *options) { o.classKey = key }
}

// WithStructuredKey sets name of nested structured property.
func WithStructuredKey(key string) Option {
	return func(o *options) { o.structuredKey = key }
}

// WithSemanticProperties sets names of properties rewritten by semantic
// fallback, in order of application.
func WithSemanticProperties(names ...string) Option {
	return func(o *options) { o.semantic = slices.Clone(names) }
}

// WithTracer enables resolution tracing.
func WithTracer(t *Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New indexes rule set and creates resolver with empty cache. Nil rule set
// is treated as empty one.
func New(rs *rules.RuleSet, opts ...Option) *Resolver {
	o := options{
		cacheSize:     DefaultCacheSize,
		classKey:      DefaultClassKey,
		structuredKey: DefaultStructuredKey,
		semantic:      DefaultSemanticProperties,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if rs == nil {
		rs = &rules.RuleSet{}
	}

	fallback := o.fallback
	if fallback == nil {
		fallback = rs.Fallback
	}
	if fallback == nil {
		fallback = DefaultFallback()
	}

	r := &Resolver{
		generation:    newGeneration(),
		rs:            rs,
		index:         buildIndex(rs),
		cache:         newLruCache[string, Result](o.cacheSize),
		fallback:      fallback,
		classKey:      o.classKey,
		structuredKey: o.structuredKey,
		semantic:      o.semantic,
		tracer:        o.tracer,
		metrics:       o.metrics,
	}
	r.log = o.log.Named("resolver").With(zap.String("generation", r.generation))
	r.log.Debug("Rule set indexed",
		zap.Int("rules", rs.Len()),
		zap.Int("kinds", len(r.index.byKind)),
		zap.Int("attribute sensitive kinds", len(r.index.attrKinds)))
	r.tracer.TraceIndex(r.generation, r.index.byKind, r.index.attrKinds)
	r.metrics.activated(rs.Len())
	return r
}

func newGeneration() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Generation returns unique identifier of this resolver instance.
func (r *Resolver) Generation() string {
	return r.generation
}

// RuleSet returns compiled rule set served by resolver.
func (r *Resolver) RuleSet() *rules.RuleSet {
	return r.rs
}

// Resolve returns effective properties for request. It never fails: any
// evaluation problem produces empty result which is not cached.
func (r *Resolver) Resolve(req Request) (res Result) {
	r.stats.requests.Add(1)

	cacheable := req.Attributes == nil || !r.index.attributeSensitive(req.Kind)
	var key string
	if cacheable {
		key = req.cacheKey()
		if cached, ok := r.cache.get(key); ok {
			r.stats.hits.Add(1)
			r.metrics.request(outcomeHit)
			r.tracer.TraceCacheHit(key)
			return cached
		}
		r.stats.misses.Add(1)
		r.metrics.request(outcomeMiss)
	} else {
		r.stats.uncached.Add(1)
		r.metrics.request(outcomeUncached)
	}

	defer func() {
		if p := recover(); p != nil {
			r.stats.faults.Add(1)
			r.metrics.fault()
			r.log.Debug("Resolution failed, returning empty result",
				zap.Stringer("request", &req),
				zap.Any("cause", p),
				zap.Stack("stack"))
			r.tracer.TraceFault(&req, p)
			res = Result{Props: props.Bag{}}
		}
	}()

	res = r.evaluate(&req)
	if cacheable {
		evicted := r.cache.set(key, res)
		if evicted {
			r.stats.evictions.Add(1)
		}
		r.metrics.cacheStored(evicted, r.cache.len())
	}
	r.tracer.TraceResult(&req, res, cacheable)
	return res
}

func (r *Resolver) evaluate(req *Request) Result {
	r.stats.evaluations.Add(1)

	candidates := r.index.candidates(req.Kind)
	if len(candidates) == 0 {
		return Result{Props: props.Bag{}}
	}

	matched := make([]*rules.Rule, 0, len(candidates))
	for _, rule := range candidates {
		if matches(&rule.Matcher, req) {
			matched = append(matched, rule)
		}
	}
	r.tracer.TraceMatch(req, matched)

	bag := r.merge(matched)
	if req.SemanticFallback {
		r.applyFallback(bag)
	}
	return Result{Props: bag}
}

// Stats returns snapshot of resolver counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Requests:    r.stats.requests.Load(),
		Hits:        r.stats.hits.Load(),
		Misses:      r.stats.misses.Load(),
		Uncached:    r.stats.uncached.Load(),
		Evaluations: r.stats.evaluations.Load(),
		Faults:      r.stats.faults.Load(),
		Evictions:   r.stats.evictions.Load(),
		CacheSize:   r.cache.len(),
	}
}

// CachedKeys returns cache keys from least to most recently used.
func (r *Resolver) CachedKeys() []string {
	return r.cache.keys()
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("requests=%d hits=%d misses=%d uncached=%d evaluations=%d faults=%d evictions=%d cached=%d",
		s.Requests, s.Hits, s.Misses, s.Uncached, s.Evaluations, s.Faults, s.Evictions, s.CacheSize)
}
