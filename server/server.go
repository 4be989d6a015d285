// Package server exposes resolver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cascade/props"
	"cascade/resolver"
)

// AttrPrefix marks query parameters carrying element attributes.
const AttrPrefix = "attr."

// Source provides active resolver generation.
type Source interface {
	Resolver() *resolver.Resolver
	Files() []string
}

// Server serves resolution requests.
type Server struct {
	log      *zap.Logger
	src      Source
	gatherer prometheus.Gatherer
	router   chi.Router
}

// New creates server with routes registered. When gatherer is nil /metrics
// is not served.
func New(log *zap.Logger, src Source, gatherer prometheus.Gatherer) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:      log.Named("server"),
		src:      src,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/resolve", s.handleResolve)
	r.Get("/rules", s.handleRules)
	r.Get("/stats", s.handleStats)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until context is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("Server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type resolveResponse struct {
	Generation string    `json:"generation"`
	Props      props.Bag `json:"props"`
}

// ParseRequest builds resolution request from URL query: kind, context, id,
// state, fallback and attr.<name> parameters. Kind is required.
func ParseRequest(r *http.Request) (resolver.Request, error) {
	q := r.URL.Query()
	req := resolver.Request{
		Kind:       q.Get("kind"),
		Context:    q.Get("context"),
		Identifier: q.Get("id"),
		State:      q.Get("state"),
	}
	if req.Kind == "" {
		return req, errors.New("kind is required")
	}
	if fb := q.Get("fallback"); fb != "" {
		v, err := strconv.ParseBool(fb)
		if err != nil {
			return req, fmt.Errorf("bad fallback value '%s': %w", fb, err)
		}
		req.SemanticFallback = v
	}
	var attrs resolver.Attributes
	for name, values := range q {
		attr, ok := strings.CutPrefix(name, AttrPrefix)
		if !ok || attr == "" {
			continue
		}
		if attrs == nil {
			attrs = make(resolver.Attributes)
		}
		attrs[attr] = values[0]
	}
	if attrs != nil {
		req.Attributes = attrs
	}
	return req, nil
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.src.Resolver()
	writeJSON(w, http.StatusOK, resolveResponse{
		Generation: res.Generation(),
		Props:      res.Resolve(req).Props,
	})
}

// RuleInfo describes compiled rule.
type RuleInfo struct {
	Selector    string    `json:"selector"`
	Matcher     string    `json:"matcher"`
	Kind        string    `json:"kind"`
	Specificity int       `json:"specificity"`
	Props       props.Bag `json:"props"`
	Warnings    []string  `json:"warnings,omitempty"`
}

type rulesResponse struct {
	Generation string     `json:"generation"`
	Files      []string   `json:"files"`
	Rules      []RuleInfo `json:"rules"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	res := s.src.Resolver()
	kind := r.URL.Query().Get("kind")

	out := rulesResponse{
		Generation: res.Generation(),
		Files:      s.src.Files(),
		Rules:      []RuleInfo{},
	}
	for _, rule := range res.RuleSet().Rules {
		if kind != "" && rule.Matcher.Kind != kind {
			continue
		}
		out.Rules = append(out.Rules, RuleInfo{
			Selector:    rule.Selector,
			Matcher:     rule.Matcher.String(),
			Kind:        rule.Matcher.Kind,
			Specificity: rule.Specificity,
			Props:       rule.Props,
			Warnings:    rule.Warnings,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	res := s.src.Resolver()
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": res.Generation(),
		"stats":      res.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
