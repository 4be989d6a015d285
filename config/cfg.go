package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rupor-github/gencfg"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"cascade/resolver"
	"cascade/rules"
	"cascade/selector"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	RulesConfig struct {
		Sources       []string `yaml:"sources" validate:"min=1,dive,required"`
		DefaultKind   string   `yaml:"default_kind" validate:"required"`
		KnownContexts []string `yaml:"known_contexts" validate:"dive,required"`
	}

	ResolverConfig struct {
		CacheSize          int                `yaml:"cache_size" validate:"min=1"`
		ClassKey           string             `yaml:"class_key" validate:"required"`
		StructuredKey      string             `yaml:"structured_key" validate:"required"`
		SemanticProperties []string           `yaml:"semantic_properties" validate:"dive,required"`
		Fallback           rules.FallbackMaps `yaml:"fallback,omitempty"`
		Trace              bool               `yaml:"trace"`
	}

	ServerConfig struct {
		Listen   string        `yaml:"listen" validate:"required,hostname_port"`
		Watch    bool          `yaml:"watch"`
		Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Rules     RulesConfig    `yaml:"rules"`
		Resolver  ResolverConfig `yaml:"resolver"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

var kindWord = regexp.MustCompile(`^\w+$`)

// additionalChecks validates constraints spanning several fields.
func additionalChecks(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	if !kindWord.MatchString(cfg.Rules.DefaultKind) {
		sl.ReportError(cfg.Rules.DefaultKind, "default_kind", "DefaultKind", "word", "")
	}
	if cfg.Resolver.ClassKey == cfg.Resolver.StructuredKey {
		sl.ReportError(cfg.Resolver.StructuredKey, "structured_key", "StructuredKey", "nefield", "ClassKey")
	}
	for _, name := range cfg.Resolver.SemanticProperties {
		if name == cfg.Resolver.ClassKey || name == cfg.Resolver.StructuredKey {
			sl.ReportError(cfg.Resolver.SemanticProperties, "semantic_properties", "SemanticProperties", "excluded_with", name)
			break
		}
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(additionalChecks)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Parser returns selector parser configured with rule vocabulary.
func (conf *RulesConfig) Parser(log *zap.Logger) *selector.Parser {
	opts := []selector.Option{selector.WithDefaultKind(conf.DefaultKind)}
	if len(conf.KnownContexts) > 0 {
		opts = append(opts, selector.WithContexts(conf.KnownContexts...))
	}
	return selector.NewParser(log, opts...)
}

// Compiler returns rule compiler configured with rule vocabulary.
func (conf *RulesConfig) Compiler(log *zap.Logger) *rules.Compiler {
	return rules.NewCompiler(log, conf.Parser(log))
}

// Options translates configuration into resolver options. Tracer and metrics
// may be nil.
func (conf *ResolverConfig) Options(tracer *resolver.Tracer, metrics *resolver.Metrics) []resolver.Option {
	opts := []resolver.Option{
		resolver.WithCacheSize(conf.CacheSize),
		resolver.WithClassKey(conf.ClassKey),
		resolver.WithStructuredKey(conf.StructuredKey),
		resolver.WithSemanticProperties(conf.SemanticProperties...),
		resolver.WithTracer(tracer),
		resolver.WithMetrics(metrics),
	}
	if len(conf.Fallback) > 0 {
		opts = append(opts, resolver.WithFallback(conf.Fallback))
	}
	return opts
}
