// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package candidates turns a classified question into an ordered list of
// candidate queries.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/terms"
)

var tracer = otel.Tracer("aleutian.cad.candidates")

// Translator produces one untrusted query for a question.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// Generation is the output of one Generate call.
type Generation struct {
	// Candidates are in registration order: templates by rank, then the
	// translator candidate if any.
	Candidates []*resolution.Candidate

	// Intent is the intent whose templates were used. It differs from the
	// classified intent only when FellBack is set.
	Intent resolution.Intent

	// FellBack is set when gating left no template for the classified
	// intent and general_exploration templates were used instead.
	FellBack bool

	// TranslatorErr records why no translator candidate was produced.
	// Nil when the translator candidate is present.
	TranslatorErr error
}

// Generator builds candidates from templates and the optional translator.
//
// Thread Safety: Safe for concurrent use; holds only immutable state.
type Generator struct {
	templates  *config.CandidateTemplates
	registry   *terms.Registry
	translator Translator
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithTranslator enables the external translator candidate.
func WithTranslator(t Translator) Option {
	return func(g *Generator) { g.translator = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithIDFunc replaces the candidate ID source.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

// NewGenerator creates a Generator.
//
// Inputs:
//
//	templates - The validated template set. Must not be nil.
//	registry - Supplies the scale extractor for shaped templates. Must not be nil.
//	opts - Optional translator, logger and ID source.
//
// Outputs:
//
//	*Generator - Ready to use.
//	error - Non-nil if a required input is missing or a template gates on
//	a concept the registry does not know.
func NewGenerator(templates *config.CandidateTemplates, registry *terms.Registry, opts ...Option) (*Generator, error) {
	if templates == nil {
		return nil, errors.New("NewGenerator: templates must not be nil")
	}
	if registry == nil {
		return nil, errors.New("NewGenerator: registry must not be nil")
	}
	for _, t := range templates.Templates {
		for _, name := range t.WhenConcepts {
			if !registry.Has(name) {
				return nil, fmt.Errorf("NewGenerator: template %q gates on unknown concept %q (known: %s)",
					t.Name, name, strings.Join(registry.Concepts(), ", "))
			}
		}
	}
	g := &Generator{
		templates: templates,
		registry:  registry,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TranslatorEnabled reports whether a translator is configured.
func (g *Generator) TranslatorEnabled() bool {
	return g.translator != nil
}

// Generate builds the ordered candidate list for one question.
//
// Description:
//
//	Templates of the classified intent are kept when ungated or when one of
//	their gate concepts matched. They are ordered by rank with file order
//	breaking ties. If nothing survives, the general_exploration templates
//	are used. The translator candidate, when produced, is appended last at
//	resolution.TranslatorPriority.
//
//	For a given intent and set of matches the template candidates are
//	identical across calls apart from their IDs.
//
// Inputs:
//
//	ctx - Bounds the translator call.
//	q - The question.
//	cls - The classification of q.
//	matches - Concept matches in registry order.
//
// Outputs:
//
//	*Generation - Never has an empty candidate list.
//	error - Non-nil only when no template could be produced at all.
func (g *Generator) Generate(ctx context.Context, q resolution.Question, cls resolution.Classification, matches []resolution.ConceptMatch) (*Generation, error) {
	ctx, span := tracer.Start(ctx, "candidates.Generate")
	defer span.End()

	gen := &Generation{Intent: cls.Intent}
	selected := g.selectTemplates(cls.Intent, matches)
	if len(selected) == 0 && cls.Intent != resolution.IntentGeneralExploration {
		gen.Intent = resolution.IntentGeneralExploration
		gen.FellBack = true
		selected = g.selectTemplates(resolution.IntentGeneralExploration, matches)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no candidate templates for intent %s", cls.Intent)
	}

	for _, t := range selected {
		gen.Candidates = append(gen.Candidates, g.fromTemplate(t, matches, len(gen.Candidates)))
	}

	gen.TranslatorErr = g.translate(ctx, q, gen)

	span.SetAttributes(
		attribute.String("intent", string(gen.Intent)),
		attribute.Bool("fell_back", gen.FellBack),
		attribute.Int("candidate_count", len(gen.Candidates)),
		attribute.Bool("translator_candidate", gen.TranslatorErr == nil),
	)
	recordGeneration(gen)

	g.logger.Debug("candidates generated",
		slog.String("intent", string(gen.Intent)),
		slog.Bool("fell_back", gen.FellBack),
		slog.Int("count", len(gen.Candidates)),
	)
	return gen, nil
}

func (g *Generator) selectTemplates(intent resolution.Intent, matches []resolution.ConceptMatch) []config.CandidateTemplate {
	var out []config.CandidateTemplate
	for _, t := range g.templates.ForIntent(intent) {
		if !t.Gated() {
			out = append(out, t)
			continue
		}
		if _, ok := gateMatch(t, matches); ok {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rank < out[j].Rank
	})
	return out
}

// gateMatch returns the first match, in registry order, that opens t's gate.
func gateMatch(t config.CandidateTemplate, matches []resolution.ConceptMatch) (resolution.ConceptMatch, bool) {
	for _, m := range matches {
		for _, c := range t.WhenConcepts {
			if m.Concept == c {
				return m, true
			}
		}
	}
	return resolution.ConceptMatch{}, false
}

func (g *Generator) fromTemplate(t config.CandidateTemplate, matches []resolution.ConceptMatch, order int) *resolution.Candidate {
	c := &resolution.Candidate{
		ID:          g.newID(),
		Strategy:    t.Name,
		Description: t.Description,
		Priority:    t.Rank,
		Order:       order,
		Query:       t.Query,
		Params:      map[string]any{},
		Status:      resolution.StatusPending,
	}
	if len(t.Bind) > 0 {
		m, _ := gateMatch(t, matches)
		for param, src := range t.Bind {
			c.Params[param] = bindValue(m, src)
		}
	}
	if t.Shape == config.ShapeExtractScale {
		c.Shape = ScaleShaper(g.registry)
	}
	return c
}

func bindValue(m resolution.ConceptMatch, src config.BindSource) string {
	switch src {
	case config.BindText:
		return m.Text
	case config.BindConcept:
		return m.Concept
	}
	if m.Value != "" {
		return m.Value
	}
	return m.Text
}

func (g *Generator) translate(ctx context.Context, q resolution.Question, gen *Generation) error {
	if g.translator == nil {
		return fmt.Errorf("%w: disabled", resolution.ErrTranslatorUnavailable)
	}
	query, err := g.translator.Translate(ctx, q.Text)
	if err != nil {
		var terr *resolution.TranslationError
		if errors.As(err, &terr) {
			return err
		}
		kind := resolution.TranslationUnavailable
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			kind = resolution.TranslationTimeout
		}
		return resolution.NewTranslationError(kind, err)
	}
	gen.Candidates = append(gen.Candidates, &resolution.Candidate{
		ID:          g.newID(),
		Strategy:    resolution.StrategyExternalTranslation,
		Description: "Query proposed by the language model translator",
		Priority:    resolution.TranslatorPriority,
		Order:       len(gen.Candidates),
		Query:       query,
		Params:      map[string]any{},
		Status:      resolution.StatusPending,
	})
	return nil
}
