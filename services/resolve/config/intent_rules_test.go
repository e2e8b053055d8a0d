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
	"testing"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

func TestLoadIntentRules_Embedded(t *testing.T) {
	rules, err := LoadIntentRules(context.Background(), defaultIntentRulesYAML)
	if err != nil {
		t.Fatalf("LoadIntentRules failed on embedded YAML: %v", err)
	}
	if len(rules.Rules) == 0 {
		t.Fatal("expected at least one rule")
	}

	covered := make(map[resolution.Intent]bool)
	for _, r := range rules.Rules {
		covered[r.Intent] = true
	}
	for _, intent := range resolution.AllIntents {
		if intent == resolution.IntentGeneralExploration {
			continue
		}
		if !covered[intent] {
			t.Errorf("no rule produces %s", intent)
		}
	}
}

func TestLoadIntentRules_ScaleBeforeProject(t *testing.T) {
	rules, err := LoadIntentRules(context.Background(), defaultIntentRulesYAML)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	firstScale, firstProject := -1, -1
	for i, r := range rules.Rules {
		if r.Intent == resolution.IntentScaleInfo && firstScale < 0 {
			firstScale = i
		}
		if r.Intent == resolution.IntentProjectInfo && firstProject < 0 {
			firstProject = i
		}
	}
	if firstScale < 0 || firstProject < 0 || firstScale > firstProject {
		t.Errorf("scale rules must precede project rules (scale=%d project=%d)", firstScale, firstProject)
	}
}

func TestLoadIntentRules_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown intent", `
rules:
  - name: r
    intent: weather_query
    when: [{all: [["chuva"]]}]
`},
		{"duplicate name", `
rules:
  - name: r
    intent: count_query
    when: [{all: [["quant*"]]}]
  - name: r
    intent: scale_info
    when: [{all: [["escala"]]}]
`},
		{"empty when", `
rules:
  - name: r
    intent: count_query
    when: []
`},
		{"empty group", `
rules:
  - name: r
    intent: count_query
    when: [{all: [[]]}]
`},
		{"blank pattern", `
rules:
  - name: r
    intent: count_query
    when: [{all: [["  "]]}]
`},
		{"bad regex", `
rules:
  - name: r
    intent: scale_info
    when: [{all: [[".*(unclosed"]]}]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadIntentRules(context.Background(), []byte(tt.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestGetIntentRules_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if _, err := GetIntentRules(nil); err == nil {
		t.Fatal("expected error for nil context")
	}
}
