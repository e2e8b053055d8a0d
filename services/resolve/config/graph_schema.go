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
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianCAD/services/resolve/cypher"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Graph Schema
// =============================================================================

//go:embed graph_schema.yaml
var defaultGraphSchemaYAML []byte

// implicitProperties exist on every node.
var implicitProperties = []string{"uid"}

// =============================================================================
// Graph Schema Types
// =============================================================================

// GraphSchema describes the drawing graph written by the ingestion pipeline.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type GraphSchema struct {
	// Labels maps each node label to its known properties.
	Labels map[string][]string `yaml:"labels"`

	Relationships []SchemaRelationship `yaml:"relationships"`

	// Notes are free-form hints rendered into the translator prompt.
	Notes []string `yaml:"notes"`

	// Examples are worked question/query pairs for the translator.
	Examples []FewShotExample `yaml:"examples"`
}

// SchemaRelationship is one typed edge between two labels.
type SchemaRelationship struct {
	From string `yaml:"from" validate:"required"`
	Type string `yaml:"type" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

// FewShotExample pairs a question with a query that answers it.
type FewShotExample struct {
	Question string `yaml:"question" validate:"required"`
	Query    string `yaml:"query" validate:"required"`
}

// HasLabel reports whether label is part of the schema.
func (s *GraphSchema) HasLabel(label string) bool {
	_, ok := s.Labels[label]
	return ok
}

// HasRelationship reports whether any edge of type relType exists.
func (s *GraphSchema) HasRelationship(relType string) bool {
	for _, r := range s.Relationships {
		if r.Type == relType {
			return true
		}
	}
	return false
}

// HasProperty reports whether label carries prop.
func (s *GraphSchema) HasProperty(label, prop string) bool {
	if slices.Contains(implicitProperties, prop) {
		return s.HasLabel(label)
	}
	return slices.Contains(s.Labels[label], prop)
}

// LabelNames returns the label names in sorted order.
func (s *GraphSchema) LabelNames() []string {
	names := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		names = append(names, l)
	}
	sort.Strings(names)
	return names
}

// CheckQuery verifies that q only references known schema elements.
//
// Description:
//
//	Node labels, relationship types and property accesses through bound
//	variables are compared with the schema. Computed aliases and function
//	calls are not checked.
//
// Outputs:
//
//	error - Names the first unknown element, nil when q is in schema.
func (s *GraphSchema) CheckQuery(q string) error {
	refs := cypher.Scan(q)
	for _, l := range refs.Labels {
		if !s.HasLabel(l) {
			return fmt.Errorf("unknown label %q", l)
		}
	}
	for _, r := range refs.RelTypes {
		if !s.HasRelationship(r) {
			return fmt.Errorf("unknown relationship type %q", r)
		}
	}
	for _, l := range refs.Labels {
		for _, p := range refs.Properties[l] {
			if !s.HasProperty(l, p) {
				return fmt.Errorf("unknown property %s.%s", l, p)
			}
		}
	}
	return nil
}

// Render formats the schema as prompt text.
//
// Description:
//
//	The output is stable for a given schema: labels are sorted and
//	relationships keep their declared order. The translation cache keys on
//	this text.
func (s *GraphSchema) Render() string {
	var b strings.Builder
	b.WriteString("Graph schema (labels and relationships):\n")
	for _, r := range s.Relationships {
		fmt.Fprintf(&b, "(:%s) -[:%s]-> (:%s)\n", r.From, r.Type, r.To)
	}
	fmt.Fprintf(&b, "Each node has a unique `%s` property. Additional properties:\n", implicitProperties[0])
	for _, l := range s.LabelNames() {
		fmt.Fprintf(&b, "%s: %s\n", l, strings.Join(s.Labels[l], ", "))
	}
	for _, n := range s.Notes {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// Singleton Graph Schema
// =============================================================================

var (
	graphSchemaMu      sync.RWMutex
	graphSchemaOnce    sync.Once
	cachedGraphSchema  *GraphSchema
	graphSchemaLoadErr error
)

// GetGraphSchema returns the cached embedded schema descriptor.
//
// Thread Safety: Safe for concurrent use.
func GetGraphSchema(ctx context.Context) (*GraphSchema, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetGraphSchema: ctx must not be nil")
	}

	graphSchemaMu.RLock()
	if cachedGraphSchema != nil || graphSchemaLoadErr != nil {
		s, err := cachedGraphSchema, graphSchemaLoadErr
		graphSchemaMu.RUnlock()
		return s, err
	}
	graphSchemaMu.RUnlock()

	graphSchemaMu.Lock()
	defer graphSchemaMu.Unlock()

	graphSchemaOnce.Do(func() {
		cachedGraphSchema, graphSchemaLoadErr = LoadGraphSchema(ctx, defaultGraphSchemaYAML)
	})
	return cachedGraphSchema, graphSchemaLoadErr
}

// ResetGraphSchema clears the cache so tests can reload.
func ResetGraphSchema() {
	graphSchemaMu.Lock()
	defer graphSchemaMu.Unlock()
	cachedGraphSchema = nil
	graphSchemaLoadErr = nil
	graphSchemaOnce = sync.Once{}
}

// LoadGraphSchema parses and validates a schema descriptor.
//
// Description:
//
//	Relationship endpoints must be declared labels, and every few-shot
//	example must itself pass CheckQuery and be read-only.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*GraphSchema - The validated schema.
//	error - Non-nil if parsing or validation fails.
func LoadGraphSchema(ctx context.Context, data []byte) (*GraphSchema, error) {
	_, span := configTracer.Start(ctx, "config.LoadGraphSchema")
	defer span.End()

	if err := checkSize("LoadGraphSchema", data); err != nil {
		return nil, err
	}

	var s GraphSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("LoadGraphSchema: parsing YAML: %w", err)
	}

	if err := validateGraphSchema(&s); err != nil {
		return nil, fmt.Errorf("LoadGraphSchema: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("label_count", len(s.Labels)),
		attribute.Int("relationship_count", len(s.Relationships)),
		attribute.Int("example_count", len(s.Examples)),
	)
	slog.Info("graph schema loaded",
		slog.Int("label_count", len(s.Labels)),
		slog.Int("relationship_count", len(s.Relationships)),
		slog.Int("example_count", len(s.Examples)),
	)

	return &s, nil
}

func validateGraphSchema(s *GraphSchema) error {
	if len(s.Labels) == 0 {
		return fmt.Errorf("labels must not be empty")
	}
	for i := range s.Relationships {
		r := &s.Relationships[i]
		if err := structValidate.Struct(r); err != nil {
			return fmt.Errorf("relationship[%d]: %w", i, describeValidationError(err))
		}
		if !s.HasLabel(r.From) || !s.HasLabel(r.To) {
			return fmt.Errorf("relationship[%d] %s: endpoint label not declared", i, r.Type)
		}
	}
	for i := range s.Examples {
		ex := &s.Examples[i]
		if err := structValidate.Struct(ex); err != nil {
			return fmt.Errorf("example[%d]: %w", i, describeValidationError(err))
		}
		if kw, bad := cypher.MutatingClause(ex.Query); bad {
			return fmt.Errorf("example[%d]: mutating clause %s", i, kw)
		}
		if err := s.CheckQuery(ex.Query); err != nil {
			return fmt.Errorf("example[%d]: %w", i, err)
		}
	}
	return nil
}
