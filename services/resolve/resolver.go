// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve answers natural-language questions about a drawing graph.
//
// A Resolver runs one episode per question through a fixed pipeline:
// classify, expand terms, generate candidates, validate, execute in
// parallel, rank and explain. Per-candidate failures are recorded on the
// candidate and never abort the episode. Only an unreachable graph store
// is returned as an error.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCAD/services/resolve/audit"
	"github.com/AleutianAI/AleutianCAD/services/resolve/candidates"
	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/executor"
	"github.com/AleutianAI/AleutianCAD/services/resolve/explain"
	"github.com/AleutianAI/AleutianCAD/services/resolve/intent"
	"github.com/AleutianAI/AleutianCAD/services/resolve/ranking"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
	"github.com/AleutianAI/AleutianCAD/services/resolve/terms"
	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
	"github.com/AleutianAI/AleutianCAD/services/resolve/validation"
)

var tracer = otel.Tracer("aleutian.cad.resolve")

// Options configures New.
type Options struct {
	// Config is required.
	Config *config.ResolverConfig

	// Store is required.
	Store store.GraphStore

	// Translator produces the external candidate. Nil disables it and every
	// result is marked degraded.
	Translator candidates.Translator

	// Audit receives one summary per episode. Nil logs episodes.
	Audit audit.Sink

	Logger *slog.Logger
}

// Resolver runs resolution episodes.
//
// Thread Safety: Safe for concurrent use. Every component it holds is
// immutable after construction.
type Resolver struct {
	classifier     *intent.Classifier
	registry       *terms.Registry
	generator      *candidates.Generator
	validator      *validation.Validator
	executor       *executor.Executor
	synthesizer    *explain.Synthesizer
	store          store.GraphStore
	audit          audit.Sink
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New builds a Resolver from the embedded rule, vocabulary and template
// configuration.
//
// Inputs:
//
//	ctx - Used while loading configuration.
//	opts - Config and Store are required.
//
// Outputs:
//
//	*Resolver - Ready to resolve questions.
//	error - Non-nil if configuration fails to load or a required option is missing.
func New(ctx context.Context, opts Options) (*Resolver, error) {
	if opts.Config == nil {
		return nil, errors.New("resolve.New: config must not be nil")
	}
	if opts.Store == nil {
		return nil, errors.New("resolve.New: store must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := config.GetIntentRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading intent rules: %w", err)
	}
	mappings, err := config.GetTermMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading term mappings: %w", err)
	}
	templates, err := config.GetCandidateTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading candidate templates: %w", err)
	}

	classifier, err := intent.NewClassifier(rules, logger)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}
	registry, err := terms.NewRegistry(mappings)
	if err != nil {
		return nil, fmt.Errorf("building term registry: %w", err)
	}

	genOpts := []candidates.Option{candidates.WithLogger(logger)}
	if opts.Translator != nil {
		genOpts = append(genOpts, candidates.WithTranslator(opts.Translator))
	}
	generator, err := candidates.NewGenerator(templates, registry, genOpts...)
	if err != nil {
		return nil, err
	}
	validator, err := validation.NewValidator(opts.Store, opts.Config.Validation, logger)
	if err != nil {
		return nil, err
	}
	exec, err := executor.NewExecutor(opts.Store, opts.Config.Executor, logger)
	if err != nil {
		return nil, err
	}

	sink := opts.Audit
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}

	timeout := opts.Config.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	return &Resolver{
		classifier:     classifier,
		registry:       registry,
		generator:      generator,
		validator:      validator,
		executor:       exec,
		synthesizer:    explain.NewSynthesizer(opts.Config.Explain),
		store:          opts.Store,
		audit:          sink,
		requestTimeout: timeout,
		logger:         logger,
	}, nil
}

// TranslatorEnabled reports whether the external translator is configured.
func (r *Resolver) TranslatorEnabled() bool {
	return r.generator.TranslatorEnabled()
}

// Store returns the graph store the resolver queries.
func (r *Resolver) Store() store.GraphStore {
	return r.store
}

// Resolve answers one question.
//
// Description:
//
//	Runs the full pipeline once under the configured request deadline.
//	The result always lists every attempted candidate; when none produced
//	rows PrimaryResult is nil and the explanation says so. The result is
//	degraded when the translator was disabled, failed, or its candidate
//	was rejected by validation.
//
// Inputs:
//
//	ctx - The caller's context. The request deadline is applied on top.
//	q - The question.
//
// Outputs:
//
//	*resolution.Result - Never nil when error is nil.
//	error - Wraps resolution.ErrStoreUnreachable when the store is down.
//	Also non-nil, without that sentinel, if no candidate template exists.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, q resolution.Question) (*resolution.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "resolve.Resolve")
	defer span.End()

	start := time.Now()
	episodeID := strfmt.UUID(uuid.NewString())
	logger := r.logger.With(slog.String("episode_id", episodeID.String()))
	span.SetAttributes(attribute.String("episode_id", episodeID.String()))

	cls := r.classifier.Classify(textnorm.Normalize(q.Text))
	classificationsTotal.WithLabelValues(string(cls.Intent), strconv.FormatBool(cls.Defaulted)).Inc()

	matches := r.registry.Match(q.Text)
	if len(matches) == 0 {
		logger.Debug("no concepts recognized", slog.String("reason", resolution.ErrConceptNotMatched.Error()))
	}

	gen, err := r.generator.Generate(ctx, q, cls, matches)
	if err != nil {
		return nil, r.fail(span, "generate", err, start)
	}
	degraded := gen.TranslatorErr != nil
	if degraded {
		logger.Info("translator candidate unavailable", slog.String("error", gen.TranslatorErr.Error()))
	}

	vreport, err := r.validator.Validate(ctx, gen.Candidates)
	if err != nil {
		return nil, r.fail(span, "validate", err, start)
	}
	if translatorRejected(gen.Candidates) {
		degraded = true
	}

	xreport, err := r.executor.Execute(ctx, gen.Candidates)
	if err != nil {
		return nil, r.fail(span, "execute", err, start)
	}

	settle(gen.Candidates, logger)
	ranked := ranking.Rank(gen.Candidates)
	exp := r.synthesizer.Synthesize(explain.Input{
		Question:     q,
		Intent:       cls.Intent,
		Concepts:     matches,
		Primary:      ranked.Primary,
		Alternatives: ranked.Alternatives,
		Degraded:     degraded,
	})

	result := &resolution.Result{
		EpisodeID: episodeID,
		Interpretation: resolution.Interpretation{
			DetectedIntent: cls.Intent,
			SemanticTerms:  semanticTerms(matches),
			Rationale:      rationale(cls, gen),
		},
		AlternativeResults: make([]resolution.CandidateResult, 0, len(ranked.Alternatives)),
		Explanation:        exp.Text,
		Language:           exp.Language,
		Degraded:           degraded,
		ResolvedAt:         strfmt.DateTime(time.Now().UTC()),
	}
	if ranked.Primary != nil {
		primary := resolution.ToCandidateResult(ranked.Primary)
		result.PrimaryResult = &primary
	}
	for _, c := range ranked.Alternatives {
		result.AlternativeResults = append(result.AlternativeResults, resolution.ToCandidateResult(c))
	}

	outcome := "answered"
	if ranked.Primary == nil {
		outcome = "exhausted"
		logger.Info("no candidate produced rows",
			slog.String("outcome", resolution.ErrAllCandidatesExhausted.Error()),
			slog.Int("candidates", len(gen.Candidates)),
		)
	}
	latency := time.Since(start)
	resolutionsTotal.WithLabelValues(outcome, strconv.FormatBool(degraded)).Inc()
	resolutionSeconds.WithLabelValues(outcome).Observe(latency.Seconds())

	span.SetAttributes(
		attribute.String("intent", string(cls.Intent)),
		attribute.String("outcome", outcome),
		attribute.Bool("degraded", degraded),
		attribute.Int("candidates", len(gen.Candidates)),
	)

	ep := audit.Episode{
		ID:         episodeID.String(),
		Intent:     string(cls.Intent),
		Language:   exp.Language,
		Degraded:   degraded,
		FellBack:   gen.FellBack,
		Translator: translatorOutcome(gen.TranslatorErr),
		Answered:   ranked.Primary != nil,
		Candidates: len(gen.Candidates),
		Invalid:    vreport.Invalid,
		Executed:   xreport.Executed,
		Empty:      xreport.Empty,
		Failed:     xreport.Failed,
		TimedOut:   xreport.TimedOut,
		Skipped:    xreport.Skipped,
		Latency:    latency,
		FinishedAt: time.Now(),
	}
	if ranked.Primary != nil {
		ep.PrimaryStrategy = ranked.Primary.Strategy
	}
	if err := r.audit.Record(context.WithoutCancel(ctx), ep); err != nil {
		logger.Warn("audit record failed", slog.String("error", err.Error()))
	}

	logger.Info("question resolved",
		slog.String("intent", string(cls.Intent)),
		slog.String("outcome", outcome),
		slog.Bool("degraded", degraded),
		slog.Duration("latency", latency),
	)
	return result, nil
}

// fail records a fatal pipeline error.
func (r *Resolver) fail(span trace.Span, stage string, err error, start time.Time) error {
	outcome := "error"
	if resolution.IsStoreUnreachable(err) {
		outcome = "store_unreachable"
	}
	resolutionsTotal.WithLabelValues(outcome, "false").Inc()
	resolutionSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")
	r.logger.Error("resolution failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("resolve: %s: %w", stage, err)
}

// settle marks any candidate that no stage finished as skipped, so ranking
// and the response only ever see terminal statuses.
func settle(cands []*resolution.Candidate, logger *slog.Logger) {
	for _, c := range cands {
		if c.Status.Terminal() {
			continue
		}
		logger.Warn("candidate left unfinished",
			slog.String("strategy", c.Strategy),
			slog.String("status", string(c.Status)),
		)
		c.Err = fmt.Errorf("%w: left %s", resolution.ErrCandidateTimeout, c.Status)
		c.Status = resolution.StatusSkipped
	}
}

// translatorOutcome labels the translator's part in an episode.
func translatorOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var terr *resolution.TranslationError
	if errors.As(err, &terr) {
		return string(terr.Kind)
	}
	return "disabled"
}

// translatorRejected reports whether the translator candidate failed validation.
// A candidate skipped because the request deadline hit during its dry run
// is not a rejection.
func translatorRejected(cands []*resolution.Candidate) bool {
	for _, c := range cands {
		if c.FromTranslator() && c.Status == resolution.StatusInvalid {
			return true
		}
	}
	return false
}

func semanticTerms(matches []resolution.ConceptMatch) []string {
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m.Concept] {
			continue
		}
		seen[m.Concept] = true
		out = append(out, m.Concept)
	}
	return out
}

func rationale(cls resolution.Classification, gen *candidates.Generation) string {
	text := cls.Reason
	if cls.Rule != "" {
		text = fmt.Sprintf("%s (rule %s)", cls.Reason, cls.Rule)
	}
	if gen.FellBack {
		text += "; no template applied to the recognized terms, general exploration used"
	}
	return text
}
