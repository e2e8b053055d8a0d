// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package translator adapts a language model into a source of candidate
// Cypher queries.
//
// Everything it returns is untrusted: the resolver turns a translation into
// a lowest-priority candidate that goes through the same validation as the
// templates.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianCAD/services/llm"
	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
)

var tracer = otel.Tracer("aleutian.cad.translator")

// Options holds optional collaborators.
type Options struct {
	// Cache stores successful translations. Nil disables caching.
	Cache CacheStore

	Logger *slog.Logger

	// NewBackOff builds the retry schedule for one Translate call.
	// Nil uses an exponential schedule starting at 200ms.
	NewBackOff func() backoff.BackOff
}

// Translator turns a question into one Cypher query.
//
// Description:
//
//	Each call is bounded by the translator timeout, which is independent of
//	the caller's deadline (whichever is earlier wins). Provider errors are
//	retried up to MaxAttempts; rate limiting, empty and malformed output are
//	not. A local token bucket caps the call rate before the provider does.
//
// Thread Safety: Safe for concurrent use.
type Translator struct {
	completer  llm.Completer
	system     string
	cfg        config.TranslatorConfig
	limiter    *rate.Limiter
	cache      CacheStore
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// New creates a Translator.
//
// Inputs:
//
//	completer - The model backend. Must not be nil.
//	schema - Rendered into the system prompt. Must not be nil.
//	cfg - Timeout, attempts, sampling and rate settings.
//	opts - Optional collaborators.
//
// Outputs:
//
//	*Translator - Ready to use.
//	error - Non-nil if a required input is missing.
func New(completer llm.Completer, schema *config.GraphSchema, cfg config.TranslatorConfig, opts Options) (*Translator, error) {
	if completer == nil {
		return nil, errors.New("translator.New: completer must not be nil")
	}
	if schema == nil {
		return nil, errors.New("translator.New: schema must not be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTranslatorTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	t := &Translator{
		completer:  completer,
		system:     BuildSystemPrompt(schema),
		cfg:        cfg,
		cache:      opts.Cache,
		logger:     opts.Logger,
		newBackOff: opts.NewBackOff,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.newBackOff == nil {
		t.newBackOff = defaultBackOff
	}
	if cfg.RequestsPerMinute > 0 {
		perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60)
		t.limiter = rate.NewLimiter(perSecond, max(1, cfg.RequestsPerMinute/10))
	}
	return t, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// Model names the backing model.
func (t *Translator) Model() string { return t.completer.Model() }

// Translate returns a query for question.
//
// Inputs:
//
//	ctx - Caller deadline. The translator timeout is applied on top.
//	question - Raw question text.
//
// Outputs:
//
//	string - A query that starts with a read clause. Not yet validated.
//	error - Always a *resolution.TranslationError on failure.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "translator.Translate")
	defer span.End()
	start := time.Now()
	defer func() { translatorLatencySeconds.Observe(time.Since(start).Seconds()) }()

	normalized := strings.Join(textnorm.Words(textnorm.Normalize(question)), " ")
	if normalized == "" {
		return "", t.fail(span, resolution.NewTranslationError(resolution.TranslationEmpty, errors.New("question is blank")))
	}

	key := CacheKey(t.completer.Model(), t.system, normalized)
	if query, ok := t.lookup(ctx, key); ok {
		translatorCallsTotal.WithLabelValues("cache_hit").Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return query, nil
	}

	if t.limiter != nil && !t.limiter.Allow() {
		return "", t.fail(span, resolution.NewTranslationError(resolution.TranslationRateLimited,
			errors.New("local request budget exhausted")))
	}

	callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req := llm.CompletionRequest{
		System:      t.system,
		Prompt:      buildUserPrompt(question),
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	}
	attempts := 0
	query, err := backoff.Retry(callCtx, func() (string, error) {
		attempts++
		translatorAttemptsTotal.Inc()
		completion, err := t.completer.Complete(callCtx, req)
		if err != nil {
			switch {
			case errors.Is(err, llm.ErrRateLimited):
				return "", backoff.Permanent(resolution.NewTranslationError(resolution.TranslationRateLimited, err))
			case errors.Is(err, llm.ErrEmptyCompletion):
				return "", backoff.Permanent(resolution.NewTranslationError(resolution.TranslationEmpty, err))
			case callCtx.Err() != nil:
				return "", backoff.Permanent(err)
			}
			t.logger.Debug("translator attempt failed",
				slog.Int("attempt", attempts),
				slog.String("error", llm.SafeLogString(err.Error())),
			)
			return "", err
		}
		q, err := ExtractCypher(completion)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return q, nil
	}, backoff.WithBackOff(t.newBackOff()), backoff.WithMaxTries(uint(t.cfg.MaxAttempts)))

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		return "", t.fail(span, classify(callCtx, err))
	}

	translatorCallsTotal.WithLabelValues("ok").Inc()
	t.store(ctx, key, question, query)
	return query, nil
}

func (t *Translator) lookup(ctx context.Context, key string) (string, bool) {
	if t.cache == nil {
		return "", false
	}
	entry, err := t.cache.Load(ctx, key)
	if err != nil {
		t.logger.Warn("translation cache load failed", slog.String("error", err.Error()))
		return "", false
	}
	if entry == nil {
		return "", false
	}
	return entry.Query, true
}

func (t *Translator) store(ctx context.Context, key, question, query string) {
	if t.cache == nil {
		return
	}
	err := t.cache.Save(ctx, key, CacheEntry{
		Question: question,
		Model:    t.completer.Model(),
		Query:    query,
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		t.logger.Warn("translation cache save failed", slog.String("error", err.Error()))
	}
}

func (t *Translator) fail(span trace.Span, err *resolution.TranslationError) error {
	translatorCallsTotal.WithLabelValues(string(err.Kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Kind))
	t.logger.Info("translation failed",
		slog.String("kind", string(err.Kind)),
		slog.String("error", llm.SafeLogString(err.Error())),
	)
	return err
}

func classify(callCtx context.Context, err error) *resolution.TranslationError {
	var te *resolution.TranslationError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return resolution.NewTranslationError(resolution.TranslationTimeout, err)
	}
	return resolution.NewTranslationError(resolution.TranslationUnavailable, fmt.Errorf("provider: %w", err))
}
