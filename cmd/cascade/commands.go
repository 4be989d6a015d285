package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	yaml "gopkg.in/yaml.v3"

	"cascade/config"
	"cascade/reload"
	"cascade/resolver"
	"cascade/server"
	"cascade/state"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	colorWarn  = "\x1b[33m"
	colorReset = "\x1b[0m"
)

// loadRules compiles configured rule sources into active resolver generation
// and puts copies of the sources into debug report.
func loadRules(env *state.LocalEnv) (*reload.Reloader, error) {
	r := env.NewReloader()
	if err := r.Reload(); err != nil {
		return nil, err
	}
	for i, f := range r.Files() {
		name := fmt.Sprintf("rules/%02d-%s", i, config.CleanFileName(filepath.Base(f)))
		if err := env.Rpt.StoreCopy(name, f); err != nil {
			env.Log.Warn("Unable to store rule source in report", zap.String("file", f), zap.Error(err))
		}
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("rules/index.txt", []byte(r.Resolver().String()))
	}
	return r, nil
}

// requestFromFlags builds resolution request from command flags.
func requestFromFlags(cmd *cli.Command) (resolver.Request, error) {
	req := resolver.Request{
		Kind:             cmd.String("kind"),
		Context:          cmd.String("context"),
		Identifier:       cmd.String("id"),
		State:            cmd.String("state"),
		SemanticFallback: cmd.Bool("fallback"),
	}
	if attrs := cmd.StringSlice("attr"); len(attrs) > 0 {
		set := make(resolver.Attributes, len(attrs))
		for _, a := range attrs {
			name, value, ok := strings.Cut(a, "=")
			if !ok || name == "" {
				return req, fmt.Errorf("malformed attribute '%s', expected NAME=VALUE", a)
			}
			set[name] = value
		}
		req.Attributes = set
	}
	return req, nil
}

func runResolve(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	if cmd.Args().Len() > 0 {
		env.Log.Warn("Malformed command line, unexpected arguments", zap.Strings("ignoring", cmd.Args().Slice()))
	}

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	format := cmd.String("format")
	if format != formatJSON && format != formatYAML {
		return fmt.Errorf("unsupported output format '%s'", format)
	}

	r, err := loadRules(env)
	if err != nil {
		return fmt.Errorf("unable to load rules: %w", err)
	}

	res := r.Resolve(req)
	env.Log.Debug("Request resolved", zap.Stringer("request", &req), zap.Stringer("props", res.Props), zap.Stringer("stats", r.Resolver().Stats()))

	return writeProps(os.Stdout, format, res)
}

func writeProps(out io.Writer, format string, res resolver.Result) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case formatYAML:
		data, err = yaml.Marshal(res.Props)
	default:
		data, err = json.MarshalIndent(res.Props, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("unable to format result: %w", err)
	}
	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	r, err := loadRules(env)
	if err != nil {
		return fmt.Errorf("unable to load rules: %w", err)
	}
	env.Log.Info("Rules loaded", zap.Strings("files", r.Files()), zap.Int("rules", r.Resolver().RuleSet().Len()))

	if cmd.Bool("tree") {
		_, err = io.WriteString(os.Stdout, r.Resolver().String())
		return err
	}
	return writeRules(os.Stdout, r.Resolver(), cmd.String("kind"), config.EnableColorOutput(os.Stdout))
}

func writeRules(out io.Writer, res *resolver.Resolver, kind string, color bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPECIFICITY\tSELECTOR\tMATCHER\tPROPERTIES")
	for _, rule := range res.RuleSet().Rules {
		if kind != "" && rule.Matcher.Kind != kind {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", rule.Specificity, rule.Selector, rule.Matcher.String(), rule.Props)
		for _, w := range rule.Warnings {
			if color {
				w = colorWarn + w + colorReset
			}
			fmt.Fprintf(tw, "\t\t! %s\t\n", w)
		}
	}
	return tw.Flush()
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	addr := env.Cfg.Server.Listen
	if l := cmd.String("listen"); l != "" {
		addr = l
	}

	r, err := loadRules(env)
	if err != nil {
		return fmt.Errorf("unable to load rules: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if env.Cfg.Server.Watch && !cmd.Bool("nowatch") {
		w, err := reload.NewWatcher(env.Log, r, env.Cfg.Server.Debounce)
		if err != nil {
			return fmt.Errorf("unable to watch rule sources: %w", err)
		}
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		return server.New(env.Log, r, env.Registry).ListenAndServe(ctx, addr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	env.Log.Info("Serving finished", zap.Int64("reloads", r.Attempts()), zap.Int64("failed reloads", r.Failures()))
	return nil
}
