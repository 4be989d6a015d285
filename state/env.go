// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cascade/config"
	"cascade/misc"
	"cascade/reload"
	"cascade/resolver"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// resolver instrumentation, shared by all rule set generations
	Registry *prometheus.Registry
	Metrics  *resolver.Metrics
	Tracer   *resolver.Tracer

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// PrepareTracer enables resolution tracing when either debug report is being
// collected or tracing is requested by configuration. Trace is written into
// temporary directory which becomes part of the report.
func (e *LocalEnv) PrepareTracer() error {
	if e.Tracer.IsEnabled() {
		return nil
	}
	if e.Rpt == nil && (e.Cfg == nil || !e.Cfg.Resolver.Trace) {
		return nil
	}
	dir, err := os.MkdirTemp("", misc.GetAppName()+"-t-")
	if err != nil {
		return fmt.Errorf("unable to create trace directory: %w", err)
	}
	if e.Rpt != nil {
		e.Rpt.StoreWorkDir("trace", dir)
	}
	e.Tracer = resolver.NewTracer(dir)
	return nil
}

// FlushTrace writes accumulated resolution trace if tracing is enabled.
func (e *LocalEnv) FlushTrace() {
	path, err := e.Tracer.Flush()
	if e.Log == nil {
		return
	}
	if err != nil {
		e.Log.Warn("Unable to save resolution trace", zap.Error(err))
		return
	}
	if path != "" {
		e.Log.Debug("Resolution trace saved", zap.String("file", path))
	}
}

// NewReloader creates reloader for configured rule sources using configured
// selector vocabulary and resolver options. Rules are not loaded.
func (e *LocalEnv) NewReloader() *reload.Reloader {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	return reload.New(log,
		e.Cfg.Rules.Sources,
		e.Cfg.Rules.Compiler(log),
		e.Metrics,
		e.Cfg.Resolver.Options(e.Tracer, e.Metrics)...)
}
