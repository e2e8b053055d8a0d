// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Resolver Configuration
// =============================================================================

//go:embed resolver_config.yaml
var defaultResolverConfigYAML []byte

// =============================================================================
// Resolver Configuration Types
// =============================================================================

// ResolverConfig holds the limits and collaborator settings of the resolver.
//
// Description:
//
//	The request deadline bounds one whole resolution episode. The translator
//	timeout, validation timeout and per-candidate timeout are independent and
//	always subordinate to the request deadline.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ResolverConfig struct {
	// RequestTimeout is the overall deadline of one resolution.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`

	Validation ValidationConfig `yaml:"validation"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Translator TranslatorConfig `yaml:"translator"`
	Explain    ExplainConfig    `yaml:"explain"`
	Store      StoreConfig      `yaml:"store"`
	Audit      AuditConfig      `yaml:"audit"`
}

// ValidationConfig bounds the dry-run stage.
type ValidationConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Workers int           `yaml:"workers" validate:"min=1,max=64"`
}

// ExecutorConfig bounds the parallel execution stage.
type ExecutorConfig struct {
	// Workers is the fixed worker budget.
	Workers int `yaml:"workers" validate:"min=1,max=64"`

	// CandidateTimeout is applied to each candidate individually.
	CandidateTimeout time.Duration `yaml:"candidate_timeout" validate:"gt=0"`
}

// TranslatorConfig configures the external translator adapter.
type TranslatorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Provider is "openai" or "ollama".
	Provider string `yaml:"provider" validate:"oneof=openai ollama"`

	Model   string        `yaml:"model" validate:"required"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// MaxAttempts includes the first call.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=5"`

	Temperature       float64       `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens         int           `yaml:"max_tokens" validate:"min=16"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=0"`
	CacheDir          string        `yaml:"cache_dir"`
	CacheTTL          time.Duration `yaml:"cache_ttl" validate:"min=0"`
}

// ExplainConfig configures the explanation synthesizer.
type ExplainConfig struct {
	DefaultLanguage string `yaml:"default_language" validate:"oneof=pt en"`

	// MaxStrategiesListed caps the attempted strategies named in an
	// explanation. Zero names all of them.
	MaxStrategiesListed int `yaml:"max_strategies_listed" validate:"min=0"`
}

// StoreConfig configures the graph store connection.
type StoreConfig struct {
	URI            string `yaml:"uri" validate:"required"`
	User           string `yaml:"user"`
	Database       string `yaml:"database"`
	MaxConnections int    `yaml:"max_connections" validate:"min=1"`
}

// AuditConfig configures the resolution analytics sink. Empty URL disables it.
type AuditConfig struct {
	InfluxURL    string `yaml:"influx_url"`
	InfluxOrg    string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultRequestTimeout      = 20 * time.Second
	DefaultValidationTimeout   = 3 * time.Second
	DefaultWorkers             = 4
	DefaultCandidateTimeout    = 5 * time.Second
	DefaultTranslatorTimeout   = 8 * time.Second
	DefaultTranslatorAttempts  = 2
	DefaultTranslatorMaxTokens = 300
	DefaultLanguage            = "pt"
	DefaultStoreURI            = "bolt://localhost:7687"
	DefaultMaxConnections      = 20
)

// defaultModels is the model used per provider when none is configured.
var defaultModels = map[string]string{
	"openai": "gpt-4o",
	"ollama": "llama3.1",
}

func applyResolverDefaults(cfg *ResolverConfig) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Validation.Timeout <= 0 {
		cfg.Validation.Timeout = DefaultValidationTimeout
	}
	if cfg.Validation.Workers <= 0 {
		cfg.Validation.Workers = DefaultWorkers
	}
	if cfg.Executor.Workers <= 0 {
		cfg.Executor.Workers = DefaultWorkers
	}
	if cfg.Executor.CandidateTimeout <= 0 {
		cfg.Executor.CandidateTimeout = DefaultCandidateTimeout
	}
	if cfg.Translator.Provider == "" {
		cfg.Translator.Provider = "openai"
	}
	if cfg.Translator.Model == "" {
		cfg.Translator.Model = defaultModels[cfg.Translator.Provider]
	}
	if cfg.Translator.Timeout <= 0 {
		cfg.Translator.Timeout = DefaultTranslatorTimeout
	}
	if cfg.Translator.MaxAttempts <= 0 {
		cfg.Translator.MaxAttempts = DefaultTranslatorAttempts
	}
	if cfg.Translator.MaxTokens <= 0 {
		cfg.Translator.MaxTokens = DefaultTranslatorMaxTokens
	}
	if cfg.Explain.DefaultLanguage == "" {
		cfg.Explain.DefaultLanguage = DefaultLanguage
	}
	if cfg.Store.URI == "" {
		cfg.Store.URI = DefaultStoreURI
	}
	if cfg.Store.MaxConnections <= 0 {
		cfg.Store.MaxConnections = DefaultMaxConnections
	}
}

// =============================================================================
// Singleton Resolver Config
// =============================================================================

var (
	resolverConfigMu      sync.RWMutex
	resolverConfigOnce    sync.Once
	cachedResolverConfig  *ResolverConfig
	resolverConfigLoadErr error
)

// GetResolverConfig returns the cached embedded resolver configuration.
//
// Description:
//
//	Loads resolver_config.yaml on first call and caches the result. The
//	returned pointer is shared; callers needing to override fields (for
//	example from the environment) must copy it first.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*ResolverConfig - The loaded configuration. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetResolverConfig(ctx context.Context) (*ResolverConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetResolverConfig: ctx must not be nil")
	}

	resolverConfigMu.RLock()
	if cachedResolverConfig != nil || resolverConfigLoadErr != nil {
		cfg, err := cachedResolverConfig, resolverConfigLoadErr
		resolverConfigMu.RUnlock()
		return cfg, err
	}
	resolverConfigMu.RUnlock()

	resolverConfigMu.Lock()
	defer resolverConfigMu.Unlock()

	resolverConfigOnce.Do(func() {
		cachedResolverConfig, resolverConfigLoadErr = LoadResolverConfig(ctx, defaultResolverConfigYAML)
	})
	return cachedResolverConfig, resolverConfigLoadErr
}

// ResetResolverConfig clears the cache so tests can reload.
func ResetResolverConfig() {
	resolverConfigMu.Lock()
	defer resolverConfigMu.Unlock()
	cachedResolverConfig = nil
	resolverConfigLoadErr = nil
	resolverConfigOnce = sync.Once{}
}

// LoadResolverConfig parses, defaults and validates resolver YAML.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*ResolverConfig - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func LoadResolverConfig(ctx context.Context, data []byte) (*ResolverConfig, error) {
	_, span := configTracer.Start(ctx, "config.LoadResolverConfig")
	defer span.End()

	if err := checkSize("LoadResolverConfig", data); err != nil {
		return nil, err
	}

	var cfg ResolverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadResolverConfig: parsing YAML: %w", err)
	}

	applyResolverDefaults(&cfg)

	if err := ValidateResolverConfig(&cfg); err != nil {
		return nil, fmt.Errorf("LoadResolverConfig: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("request_timeout_ms", cfg.RequestTimeout.Milliseconds()),
		attribute.Int("executor_workers", cfg.Executor.Workers),
		attribute.Bool("translator_enabled", cfg.Translator.Enabled),
		attribute.String("translator_provider", cfg.Translator.Provider),
	)

	slog.Info("resolver config loaded",
		slog.Duration("request_timeout", cfg.RequestTimeout),
		slog.Int("executor_workers", cfg.Executor.Workers),
		slog.Duration("candidate_timeout", cfg.Executor.CandidateTimeout),
		slog.Bool("translator_enabled", cfg.Translator.Enabled),
	)

	return &cfg, nil
}

// ValidateResolverConfig checks struct constraints and cross-field rules.
func ValidateResolverConfig(cfg *ResolverConfig) error {
	if err := structValidate.Struct(cfg); err != nil {
		return describeValidationError(err)
	}
	if cfg.Translator.Timeout >= cfg.RequestTimeout {
		return fmt.Errorf("translator.timeout (%s) must be shorter than request_timeout (%s)",
			cfg.Translator.Timeout, cfg.RequestTimeout)
	}
	if cfg.Executor.CandidateTimeout > cfg.RequestTimeout {
		return fmt.Errorf("executor.candidate_timeout (%s) exceeds request_timeout (%s)",
			cfg.Executor.CandidateTimeout, cfg.RequestTimeout)
	}
	return nil
}

// =============================================================================
// Environment Overrides
// =============================================================================

// ApplyEnv returns a copy of cfg with environment overrides applied.
//
// Description:
//
//	Recognized variables: NEO4J_URI, NEO4J_USER, NEO4J_DATABASE,
//	TRANSLATOR_ENABLED, TRANSLATOR_PROVIDER, TRANSLATOR_MODEL,
//	OPENAI_BASE_URL, OLLAMA_BASE_URL, TRANSLATION_CACHE_DIR,
//	RESOLVE_WORKERS, INFLUX_URL, INFLUX_ORG, INFLUX_BUCKET.
//	Secrets are handled by LoadSecretsFromEnv, never here.
//
// Inputs:
//
//	cfg - The base configuration. Not modified.
//	getenv - Lookup function, usually os.Getenv.
//
// Outputs:
//
//	*ResolverConfig - The overridden copy.
//	error - Non-nil when the result no longer validates.
func ApplyEnv(cfg *ResolverConfig, getenv func(string) string) (*ResolverConfig, error) {
	out := *cfg

	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&out.Store.URI, "NEO4J_URI")
	setString(&out.Store.User, "NEO4J_USER")
	setString(&out.Store.Database, "NEO4J_DATABASE")
	setString(&out.Translator.Provider, "TRANSLATOR_PROVIDER")
	setString(&out.Translator.Model, "TRANSLATOR_MODEL")
	setString(&out.Translator.CacheDir, "TRANSLATION_CACHE_DIR")
	setString(&out.Audit.InfluxURL, "INFLUX_URL")
	setString(&out.Audit.InfluxOrg, "INFLUX_ORG")
	setString(&out.Audit.InfluxBucket, "INFLUX_BUCKET")

	switch out.Translator.Provider {
	case "ollama":
		setString(&out.Translator.BaseURL, "OLLAMA_BASE_URL")
	default:
		setString(&out.Translator.BaseURL, "OPENAI_BASE_URL")
	}

	if v := strings.TrimSpace(getenv("TRANSLATOR_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TRANSLATOR_ENABLED: %w", err)
		}
		out.Translator.Enabled = enabled
	}
	if v := strings.TrimSpace(getenv("RESOLVE_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RESOLVE_WORKERS: %w", err)
		}
		out.Executor.Workers = n
		out.Validation.Workers = n
	}

	if err := ValidateResolverConfig(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
