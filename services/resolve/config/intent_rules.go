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

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Intent Rules
// =============================================================================

//go:embed intent_rules.yaml
var defaultIntentRulesYAML []byte

// =============================================================================
// Intent Rule Types
// =============================================================================

// IntentRules is the ordered rule table of the intent classifier.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentRules struct {
	Rules []IntentRule `yaml:"rules"`
}

// IntentRule maps pattern sets to one intent.
//
// Description:
//
//	The rule fires when any of its When sets matches. Rules are evaluated in
//	registration order and the first firing rule decides the intent.
type IntentRule struct {
	// Name identifies the rule in logs and rationales.
	Name string `yaml:"name"`

	// Intent is the intent returned when the rule fires.
	Intent resolution.Intent `yaml:"intent"`

	// Reason is a short explanation attached to the classification.
	Reason string `yaml:"reason"`

	// When lists alternative pattern sets.
	When []PatternSet `yaml:"when"`
}

// PatternSet matches when every group has at least one matching pattern.
type PatternSet struct {
	All [][]string `yaml:"all"`
}

// =============================================================================
// Singleton Intent Rules
// =============================================================================

var (
	intentRulesMu      sync.RWMutex
	intentRulesOnce    sync.Once
	cachedIntentRules  *IntentRules
	intentRulesLoadErr error
)

// GetIntentRules returns the cached embedded intent rule table.
//
// Thread Safety: Safe for concurrent use.
func GetIntentRules(ctx context.Context) (*IntentRules, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetIntentRules: ctx must not be nil")
	}

	intentRulesMu.RLock()
	if cachedIntentRules != nil || intentRulesLoadErr != nil {
		rules, err := cachedIntentRules, intentRulesLoadErr
		intentRulesMu.RUnlock()
		return rules, err
	}
	intentRulesMu.RUnlock()

	intentRulesMu.Lock()
	defer intentRulesMu.Unlock()

	intentRulesOnce.Do(func() {
		cachedIntentRules, intentRulesLoadErr = LoadIntentRules(ctx, defaultIntentRulesYAML)
	})
	return cachedIntentRules, intentRulesLoadErr
}

// ResetIntentRules clears the cache so tests can reload.
func ResetIntentRules() {
	intentRulesMu.Lock()
	defer intentRulesMu.Unlock()
	cachedIntentRules = nil
	intentRulesLoadErr = nil
	intentRulesOnce = sync.Once{}
}

// LoadIntentRules parses and validates an intent rule table.
//
// Description:
//
//	Rejects unknown intents, duplicate rule names, empty groups and regex
//	patterns that do not compile. Patterns are stored as written; the
//	classifier normalizes them when it compiles the table.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*IntentRules - The validated rule table.
//	error - Non-nil if parsing or validation fails.
func LoadIntentRules(ctx context.Context, data []byte) (*IntentRules, error) {
	_, span := configTracer.Start(ctx, "config.LoadIntentRules")
	defer span.End()

	if err := checkSize("LoadIntentRules", data); err != nil {
		return nil, err
	}

	var rules IntentRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadIntentRules: parsing YAML: %w", err)
	}

	if err := validateIntentRules(&rules); err != nil {
		return nil, fmt.Errorf("LoadIntentRules: validation: %w", err)
	}

	span.SetAttributes(attribute.Int("rule_count", len(rules.Rules)))
	slog.Info("intent rules loaded", slog.Int("rule_count", len(rules.Rules)))

	return &rules, nil
}

func validateIntentRules(rules *IntentRules) error {
	seen := make(map[string]bool, len(rules.Rules))
	for i, r := range rules.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule[%d]: name must not be empty", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("rule[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true

		if !r.Intent.Valid() {
			return fmt.Errorf("rule[%d] (%s): unknown intent %q", i, r.Name, r.Intent)
		}
		if len(r.When) == 0 {
			return fmt.Errorf("rule[%d] (%s): when must not be empty", i, r.Name)
		}
		for j, set := range r.When {
			if len(set.All) == 0 {
				return fmt.Errorf("rule[%d] (%s) when[%d]: all must not be empty", i, r.Name, j)
			}
			for k, group := range set.All {
				if len(group) == 0 {
					return fmt.Errorf("rule[%d] (%s) when[%d] group[%d]: empty group", i, r.Name, j, k)
				}
				for _, p := range group {
					if strings.TrimSpace(p) == "" {
						return fmt.Errorf("rule[%d] (%s): blank pattern", i, r.Name)
					}
					if strings.Contains(p, ".*") {
						if _, err := regexp.Compile(p); err != nil {
							return fmt.Errorf("rule[%d] (%s): pattern %q: %w", i, r.Name, p, err)
						}
					}
				}
			}
		}
	}
	return nil
}
