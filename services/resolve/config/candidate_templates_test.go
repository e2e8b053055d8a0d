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
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

func loadTemplateDeps(t *testing.T) (*GraphSchema, *TermMappings) {
	t.Helper()
	schema := loadEmbeddedSchema(t)
	mappings, err := LoadTermMappings(context.Background(), defaultTermMappingsYAML)
	if err != nil {
		t.Fatalf("LoadTermMappings: %v", err)
	}
	return schema, mappings
}

func TestLoadCandidateTemplates_Embedded(t *testing.T) {
	schema, mappings := loadTemplateDeps(t)

	c, err := LoadCandidateTemplates(context.Background(), defaultCandidateTemplatesYAML, schema, mappings)
	if err != nil {
		t.Fatalf("LoadCandidateTemplates failed on embedded YAML: %v", err)
	}

	for _, intent := range resolution.AllIntents {
		ts := c.ForIntent(intent)
		if len(ts) == 0 {
			t.Errorf("no templates for %s", intent)
			continue
		}
		for _, tmpl := range ts {
			if tmpl.Rank >= resolution.TranslatorPriority {
				t.Errorf("template %s rank %d must stay below translator priority", tmpl.Name, tmpl.Rank)
			}
		}
	}

	scale := c.ForIntent(resolution.IntentScaleInfo)
	var shaped bool
	for _, tmpl := range scale {
		if tmpl.Shape == ShapeExtractScale {
			shaped = true
		}
	}
	if !shaped {
		t.Error("expected at least one scale template with extract_scale")
	}
}

func TestLoadCandidateTemplates_Validation(t *testing.T) {
	schema, mappings := loadTemplateDeps(t)

	// ungated covers every intent so single-template cases fail for the
	// reason under test.
	ungated := `
  - {name: u1, intent: project_info, description: d, query: "MATCH (b:Building) RETURN b.name"}
  - {name: u2, intent: scale_info, description: d, query: "MATCH (b:Building) RETURN b.name"}
  - {name: u3, intent: count_query, description: d, query: "MATCH (b:Building) RETURN b.name"}
  - {name: u4, intent: element_search, description: d, query: "MATCH (b:Building) RETURN b.name"}
  - {name: u5, intent: general_exploration, description: d, query: "MATCH (b:Building) RETURN b.name"}
`

	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"baseline", "", ""},
		{"mutating", `  - {name: x, intent: count_query, description: d, query: "MATCH (n) DETACH DELETE n"}`, "mutating"},
		{"multi statement", `  - {name: x, intent: count_query, description: d, query: "MATCH (n) RETURN n; MATCH (m) RETURN m"}`, "multiple statements"},
		{"not a read", `  - {name: x, intent: count_query, description: d, query: "SHOW DATABASES"}`, "read clause"},
		{"off schema", `  - {name: x, intent: count_query, description: d, query: "MATCH (o:OCRText) RETURN o"}`, "unknown label"},
		{"unknown concept", `  - {name: x, intent: count_query, description: d, when_concepts: [unicorn], query: "MATCH (b:Building) RETURN b"}`, "unknown concept"},
		{"unbound param", `  - {name: x, intent: count_query, description: d, when_concepts: [parede], query: "MATCH (a:Annotation) WHERE a.text CONTAINS $term RETURN a"}`, "not bound"},
		{"unused binding", `  - {name: x, intent: count_query, description: d, when_concepts: [parede], bind: {term: concept}, query: "MATCH (b:Building) RETURN b"}`, "not used"},
		{"bind without gate", `  - {name: x, intent: count_query, description: d, bind: {term: concept}, query: "MATCH (a:Annotation) WHERE a.text CONTAINS $term RETURN a"}`, "requires when_concepts"},
		{"bad bind source", `  - {name: x, intent: count_query, description: d, when_concepts: [parede], bind: {term: span}, query: "MATCH (a:Annotation) WHERE a.text CONTAINS $term RETURN a"}`, "unknown bind source"},
		{"duplicate", `  - {name: u1, intent: count_query, description: d, query: "MATCH (b:Building) RETURN b"}`, "duplicate"},
		{"bad shape", `  - {name: x, intent: count_query, description: d, shape: uppercase, query: "MATCH (b:Building) RETURN b"}`, "Shape"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte("templates:" + ungated + tt.extra + "\n")
			_, err := LoadCandidateTemplates(context.Background(), data, schema, mappings)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadCandidateTemplates_MissingUngated(t *testing.T) {
	schema, mappings := loadTemplateDeps(t)

	data := []byte(`
templates:
  - {name: u1, intent: project_info, description: d, query: "MATCH (b:Building) RETURN b.name"}
`)
	_, err := LoadCandidateTemplates(context.Background(), data, schema, mappings)
	if err == nil || !strings.Contains(err.Error(), "no ungated template") {
		t.Fatalf("expected ungated coverage error, got %v", err)
	}
}

func TestGetCandidateTemplates(t *testing.T) {
	ResetCandidateTemplates()
	ResetGraphSchema()
	ResetTermMappings()
	t.Cleanup(func() {
		ResetCandidateTemplates()
		ResetGraphSchema()
		ResetTermMappings()
	})

	c, err := GetCandidateTemplates(context.Background())
	if err != nil {
		t.Fatalf("GetCandidateTemplates: %v", err)
	}
	if len(c.Templates) == 0 {
		t.Fatal("expected templates")
	}
}
