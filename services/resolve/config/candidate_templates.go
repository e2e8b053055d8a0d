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
	"regexp"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianCAD/services/resolve/cypher"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Candidate Templates
// =============================================================================

//go:embed candidate_templates.yaml
var defaultCandidateTemplatesYAML []byte

// BindSource selects which part of a concept match fills a parameter.
type BindSource string

const (
	// BindValue uses the structured value, falling back to the matched text.
	BindValue BindSource = "value"

	// BindText uses the matched text.
	BindText BindSource = "text"

	// BindConcept uses the canonical concept name.
	BindConcept BindSource = "concept"
)

// ShapeExtractScale reduces rows to the scale notation they contain.
const ShapeExtractScale = "extract_scale"

// paramPattern finds $name parameter references in query text.
var paramPattern = regexp.MustCompile(`\$([A-Za-z_]\w*)`)

// =============================================================================
// Candidate Template Types
// =============================================================================

// CandidateTemplates is the registered template set, in file order.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type CandidateTemplates struct {
	Templates []CandidateTemplate `yaml:"templates"`
}

// CandidateTemplate is one rule-based query strategy.
type CandidateTemplate struct {
	Name        string            `yaml:"name" validate:"required"`
	Intent      resolution.Intent `yaml:"intent"`
	Rank        int               `yaml:"rank" validate:"min=0,max=999"`
	Description string            `yaml:"description" validate:"required"`
	Query       string            `yaml:"query" validate:"required"`

	// WhenConcepts gates the template on any of these concepts matching.
	WhenConcepts []string `yaml:"when_concepts"`

	// Bind maps query parameters to a part of the first matched gate concept.
	Bind map[string]BindSource `yaml:"bind"`

	Shape string `yaml:"shape" validate:"omitempty,oneof=extract_scale"`
}

// Gated reports whether the template depends on matched concepts.
func (t *CandidateTemplate) Gated() bool {
	return len(t.WhenConcepts) > 0
}

// ForIntent returns the templates registered for intent, in file order.
func (c *CandidateTemplates) ForIntent(intent resolution.Intent) []CandidateTemplate {
	var out []CandidateTemplate
	for _, t := range c.Templates {
		if t.Intent == intent {
			out = append(out, t)
		}
	}
	return out
}

// =============================================================================
// Singleton Candidate Templates
// =============================================================================

var (
	candidateTemplatesMu      sync.RWMutex
	candidateTemplatesOnce    sync.Once
	cachedCandidateTemplates  *CandidateTemplates
	candidateTemplatesLoadErr error
)

// GetCandidateTemplates returns the cached embedded template set.
//
// Description:
//
//	Loads the graph schema and term mappings first, since templates are
//	validated against both.
//
// Thread Safety: Safe for concurrent use.
func GetCandidateTemplates(ctx context.Context) (*CandidateTemplates, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetCandidateTemplates: ctx must not be nil")
	}

	candidateTemplatesMu.RLock()
	if cachedCandidateTemplates != nil || candidateTemplatesLoadErr != nil {
		t, err := cachedCandidateTemplates, candidateTemplatesLoadErr
		candidateTemplatesMu.RUnlock()
		return t, err
	}
	candidateTemplatesMu.RUnlock()

	schema, err := GetGraphSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCandidateTemplates: %w", err)
	}
	mappings, err := GetTermMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCandidateTemplates: %w", err)
	}

	candidateTemplatesMu.Lock()
	defer candidateTemplatesMu.Unlock()

	candidateTemplatesOnce.Do(func() {
		cachedCandidateTemplates, candidateTemplatesLoadErr = LoadCandidateTemplates(ctx, defaultCandidateTemplatesYAML, schema, mappings)
	})
	return cachedCandidateTemplates, candidateTemplatesLoadErr
}

// ResetCandidateTemplates clears the cache so tests can reload.
func ResetCandidateTemplates() {
	candidateTemplatesMu.Lock()
	defer candidateTemplatesMu.Unlock()
	cachedCandidateTemplates = nil
	candidateTemplatesLoadErr = nil
	candidateTemplatesOnce = sync.Once{}
}

// LoadCandidateTemplates parses and validates a template set.
//
// Description:
//
//	Each template must be read-only, a single statement, and reference only
//	labels, relationship types and properties declared in schema. Gate
//	concepts must exist in mappings. Every parameter used by the query must
//	be bound and every binding must be used. Each intent needs at least one
//	ungated template so generation never comes back empty.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//	schema - Graph schema descriptor. Must not be nil.
//	mappings - Term mappings. Must not be nil.
//
// Outputs:
//
//	*CandidateTemplates - The validated template set.
//	error - Non-nil if parsing or validation fails.
func LoadCandidateTemplates(ctx context.Context, data []byte, schema *GraphSchema, mappings *TermMappings) (*CandidateTemplates, error) {
	_, span := configTracer.Start(ctx, "config.LoadCandidateTemplates")
	defer span.End()

	if schema == nil || mappings == nil {
		return nil, fmt.Errorf("LoadCandidateTemplates: schema and mappings must not be nil")
	}
	if err := checkSize("LoadCandidateTemplates", data); err != nil {
		return nil, err
	}

	var c CandidateTemplates
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("LoadCandidateTemplates: parsing YAML: %w", err)
	}

	if err := validateCandidateTemplates(&c, schema, mappings); err != nil {
		return nil, fmt.Errorf("LoadCandidateTemplates: validation: %w", err)
	}

	span.SetAttributes(attribute.Int("template_count", len(c.Templates)))
	slog.Info("candidate templates loaded", slog.Int("template_count", len(c.Templates)))

	return &c, nil
}

func validateCandidateTemplates(c *CandidateTemplates, schema *GraphSchema, mappings *TermMappings) error {
	known := make(map[string]bool, len(mappings.Concepts)+len(mappings.Structured))
	for _, m := range mappings.Concepts {
		known[m.Name] = true
	}
	for _, m := range mappings.Structured {
		known[m.Name] = true
	}

	seen := make(map[string]bool, len(c.Templates))
	ungated := make(map[resolution.Intent]bool)

	for i := range c.Templates {
		t := &c.Templates[i]
		if err := structValidate.Struct(t); err != nil {
			return fmt.Errorf("template[%d]: %w", i, describeValidationError(err))
		}
		if seen[t.Name] {
			return fmt.Errorf("template[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true

		if !t.Intent.Valid() {
			return fmt.Errorf("template %q: unknown intent %q", t.Name, t.Intent)
		}
		if !t.Gated() {
			ungated[t.Intent] = true
		}
		for _, name := range t.WhenConcepts {
			if !known[name] {
				return fmt.Errorf("template %q: unknown concept %q", t.Name, name)
			}
		}

		if kw, bad := cypher.MutatingClause(t.Query); bad {
			return fmt.Errorf("template %q: mutating clause %s", t.Name, kw)
		}
		if cypher.MultipleStatements(t.Query) {
			return fmt.Errorf("template %q: multiple statements", t.Name)
		}
		if !cypher.StartsWithReadClause(t.Query) {
			return fmt.Errorf("template %q: must start with a read clause", t.Name)
		}
		if err := schema.CheckQuery(t.Query); err != nil {
			return fmt.Errorf("template %q: %w", t.Name, err)
		}

		if err := validateBindings(t); err != nil {
			return fmt.Errorf("template %q: %w", t.Name, err)
		}
	}

	for _, intent := range resolution.AllIntents {
		if !ungated[intent] {
			return fmt.Errorf("intent %s has no ungated template", intent)
		}
	}
	return nil
}

func validateBindings(t *CandidateTemplate) error {
	if len(t.Bind) > 0 && !t.Gated() {
		return fmt.Errorf("bind requires when_concepts")
	}

	used := make(map[string]bool)
	for _, m := range paramPattern.FindAllStringSubmatch(cypher.StripLiterals(t.Query), -1) {
		used[m[1]] = true
	}

	params := make([]string, 0, len(t.Bind))
	for p := range t.Bind {
		params = append(params, p)
	}
	sort.Strings(params)
	for _, p := range params {
		switch t.Bind[p] {
		case BindValue, BindText, BindConcept:
		default:
			return fmt.Errorf("param %s: unknown bind source %q", p, t.Bind[p])
		}
		if !used[p] {
			return fmt.Errorf("param %s is bound but not used", p)
		}
	}
	for p := range used {
		if _, ok := t.Bind[p]; !ok {
			return fmt.Errorf("param %s is used but not bound", p)
		}
	}
	return nil
}
