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
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Term Mappings
// =============================================================================

//go:embed term_mappings.yaml
var defaultTermMappingsYAML []byte

// =============================================================================
// Term Mapping Types
// =============================================================================

// TermMappings lists the canonical domain concepts known to the resolver.
//
// Description:
//
//	Concepts are recognized by lexical variants. Structured recognizers
//	match fixed-form values such as scale notations and project codes.
//	Order matters: the registry reports matches in the order concepts are
//	listed here.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type TermMappings struct {
	Concepts   []ConceptMapping    `yaml:"concepts"`
	Structured []StructuredMapping `yaml:"structured"`
}

// ConceptMapping is one lexically recognized concept.
type ConceptMapping struct {
	Name     string   `yaml:"name" validate:"required"`
	Target   string   `yaml:"target" validate:"required"`
	Variants []string `yaml:"variants" validate:"min=1,dive,required"`
}

// StructuredMapping is one fixed-form value recognizer.
type StructuredMapping struct {
	Name     string   `yaml:"name" validate:"required"`
	Target   string   `yaml:"target" validate:"required"`
	Patterns []string `yaml:"patterns" validate:"min=1,dive,required"`

	// Value optionally extracts the canonical value from the matched text.
	Value string `yaml:"value"`
}

// =============================================================================
// Singleton Term Mappings
// =============================================================================

var (
	termMappingsMu      sync.RWMutex
	termMappingsOnce    sync.Once
	cachedTermMappings  *TermMappings
	termMappingsLoadErr error
)

// GetTermMappings returns the cached embedded term mappings.
//
// Thread Safety: Safe for concurrent use.
func GetTermMappings(ctx context.Context) (*TermMappings, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetTermMappings: ctx must not be nil")
	}

	termMappingsMu.RLock()
	if cachedTermMappings != nil || termMappingsLoadErr != nil {
		m, err := cachedTermMappings, termMappingsLoadErr
		termMappingsMu.RUnlock()
		return m, err
	}
	termMappingsMu.RUnlock()

	termMappingsMu.Lock()
	defer termMappingsMu.Unlock()

	termMappingsOnce.Do(func() {
		cachedTermMappings, termMappingsLoadErr = LoadTermMappings(ctx, defaultTermMappingsYAML)
	})
	return cachedTermMappings, termMappingsLoadErr
}

// ResetTermMappings clears the cache so tests can reload.
func ResetTermMappings() {
	termMappingsMu.Lock()
	defer termMappingsMu.Unlock()
	cachedTermMappings = nil
	termMappingsLoadErr = nil
	termMappingsOnce = sync.Once{}
}

// LoadTermMappings parses and validates a term mapping document.
//
// Description:
//
//	Concept and recognizer names share one namespace and must be unique.
//	Every structured pattern and value extractor must compile.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*TermMappings - The validated mappings.
//	error - Non-nil if parsing or validation fails.
func LoadTermMappings(ctx context.Context, data []byte) (*TermMappings, error) {
	_, span := configTracer.Start(ctx, "config.LoadTermMappings")
	defer span.End()

	if err := checkSize("LoadTermMappings", data); err != nil {
		return nil, err
	}

	var m TermMappings
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("LoadTermMappings: parsing YAML: %w", err)
	}

	if err := validateTermMappings(&m); err != nil {
		return nil, fmt.Errorf("LoadTermMappings: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("concept_count", len(m.Concepts)),
		attribute.Int("structured_count", len(m.Structured)),
	)
	slog.Info("term mappings loaded",
		slog.Int("concept_count", len(m.Concepts)),
		slog.Int("structured_count", len(m.Structured)),
	)

	return &m, nil
}

func validateTermMappings(m *TermMappings) error {
	if len(m.Concepts) == 0 && len(m.Structured) == 0 {
		return fmt.Errorf("no concepts defined")
	}

	seen := make(map[string]bool, len(m.Concepts)+len(m.Structured))
	for i := range m.Concepts {
		c := &m.Concepts[i]
		if err := structValidate.Struct(c); err != nil {
			return fmt.Errorf("concept[%d]: %w", i, describeValidationError(err))
		}
		if seen[c.Name] {
			return fmt.Errorf("concept[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		for _, v := range c.Variants {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("concept %q: blank variant", c.Name)
			}
		}
	}

	for i := range m.Structured {
		s := &m.Structured[i]
		if err := structValidate.Struct(s); err != nil {
			return fmt.Errorf("structured[%d]: %w", i, describeValidationError(err))
		}
		if seen[s.Name] {
			return fmt.Errorf("structured[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		for _, p := range s.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("structured %q: pattern %q: %w", s.Name, p, err)
			}
		}
		if s.Value != "" {
			if _, err := regexp.Compile(s.Value); err != nil {
				return fmt.Errorf("structured %q: value %q: %w", s.Name, s.Value, err)
			}
		}
	}
	return nil
}
