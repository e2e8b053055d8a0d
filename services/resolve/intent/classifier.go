// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies normalized questions into resolution intents.
package intent

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
)

// =============================================================================
// Compiled Rule Table
// =============================================================================

// compiledPattern is one pattern in its matchable form.
type compiledPattern struct {
	raw string

	// words is the normalized phrase. Unused for regex patterns.
	words []string

	// prefix makes the last word match as a word prefix.
	prefix bool

	// regex is set for patterns containing ".*".
	regex *regexp.Regexp
}

// compiledSet matches when every group has a matching pattern.
type compiledSet [][]compiledPattern

type compiledRule struct {
	name   string
	intent resolution.Intent
	reason string
	sets   []compiledSet
}

// Classifier maps normalized question text to exactly one intent.
//
// Description:
//
//	Rules are evaluated in table order and the first rule with a matching
//	pattern set wins. When nothing matches the question is classified as
//	general_exploration with Defaulted set. Classification does no I/O.
//
// Thread Safety: Safe for concurrent use (read-only after construction).
type Classifier struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewClassifier compiles an intent rule table.
//
// Inputs:
//
//	rules - Validated rule table. Must not be nil.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*Classifier - Ready to classify.
//	error - Non-nil when a regex pattern fails to compile.
func NewClassifier(rules *config.IntentRules, logger *slog.Logger) (*Classifier, error) {
	if rules == nil {
		return nil, fmt.Errorf("NewClassifier: rules must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Classifier{
		rules:  make([]compiledRule, 0, len(rules.Rules)),
		logger: logger,
	}
	for _, r := range rules.Rules {
		cr := compiledRule{name: r.Name, intent: r.Intent, reason: r.Reason}
		for _, set := range r.When {
			cs := make(compiledSet, 0, len(set.All))
			for _, group := range set.All {
				patterns, err := compilePatterns(group)
				if err != nil {
					return nil, fmt.Errorf("NewClassifier: rule %s: %w", r.Name, err)
				}
				cs = append(cs, patterns)
			}
			cr.sets = append(cr.sets, cs)
		}
		c.rules = append(c.rules, cr)
	}

	logger.Debug("intent classifier compiled", slog.Int("rule_count", len(c.rules)))
	return c, nil
}

// compilePatterns prepares a pattern group. Patterns containing ".*" are
// regular expressions; a trailing "*" marks a word prefix; anything else is
// a whole-word phrase.
func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		cp := compiledPattern{raw: p}
		switch {
		case strings.Contains(p, ".*"):
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p, err)
			}
			cp.regex = re
		default:
			body := p
			if strings.HasSuffix(body, "*") {
				cp.prefix = true
				body = strings.TrimSuffix(body, "*")
			}
			cp.words = textnorm.Words(textnorm.Normalize(body))
			if len(cp.words) == 0 {
				return nil, fmt.Errorf("pattern %q has no words", p)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// =============================================================================
// Classification
// =============================================================================

// Classify returns the intent of a normalized question.
//
// Description:
//
//	Total: every input, including the empty string, yields exactly one
//	intent from the closed set.
//
// Inputs:
//
//	normalized - Question text after textnorm.Normalize.
//
// Outputs:
//
//	resolution.Classification - The verdict, naming the rule that fired.
func (c *Classifier) Classify(normalized string) resolution.Classification {
	words := textnorm.Words(normalized)

	for _, r := range c.rules {
		for _, set := range r.sets {
			if set.matches(normalized, words) {
				return resolution.Classification{
					Intent: r.intent,
					Rule:   r.name,
					Reason: r.reason,
				}
			}
		}
	}

	return resolution.Classification{
		Intent:    resolution.IntentGeneralExploration,
		Reason:    "No specific pattern matched",
		Defaulted: true,
	}
}

// RuleNames lists the compiled rules in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

func (s compiledSet) matches(normalized string, words []string) bool {
	for _, group := range s {
		if !matchAny(normalized, words, group) {
			return false
		}
	}
	return true
}

func matchAny(normalized string, words []string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.matches(normalized, words) {
			return true
		}
	}
	return false
}

// matches checks the pattern against the question.
func (cp compiledPattern) matches(normalized string, words []string) bool {
	if cp.regex != nil {
		return cp.regex.MatchString(normalized)
	}
	return phraseAt(words, cp.words, cp.prefix) >= 0
}

// phraseAt returns the index of the first word where phrase occurs as a
// contiguous run, or -1. With prefix set the last phrase word only needs to
// start the corresponding question word.
func phraseAt(words, phrase []string, prefix bool) int {
	n := len(phrase)
	for i := 0; i+n <= len(words); i++ {
		ok := true
		for j, w := range phrase {
			got := words[i+j]
			if j == n-1 && prefix {
				if !strings.HasPrefix(got, w) {
					ok = false
					break
				}
				continue
			}
			if got != w {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}
