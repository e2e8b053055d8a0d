// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explain turns a ranked resolution into user-facing text.
//
// Everything here is pure formatting: no I/O, no errors.
package explain

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// Input is everything the synthesizer needs about one episode.
type Input struct {
	Question     resolution.Question
	Intent       resolution.Intent
	Concepts     []resolution.ConceptMatch
	Primary      *resolution.Candidate
	Alternatives []*resolution.Candidate
	Degraded     bool
}

// Explanation is the synthesized text and the language it is written in.
type Explanation struct {
	Language string
	Text     string
}

// Synthesizer formats explanations.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Synthesizer struct {
	defaultLanguage string
	maxStrategies   int
}

// NewSynthesizer creates a Synthesizer. An empty language takes the default
// and a zero strategy cap lists every strategy.
func NewSynthesizer(cfg config.ExplainConfig) *Synthesizer {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = config.DefaultLanguage
	}
	return &Synthesizer{defaultLanguage: cfg.DefaultLanguage, maxStrategies: cfg.MaxStrategiesListed}
}

// Synthesize describes what was searched, what was found and what else was tried.
//
// Description:
//
//	With a primary result the text reports its size and the alternatives
//	checked. Without one it says either that nothing was found (at least
//	one candidate ran and came back empty) or that the data could not be
//	queried (no candidate ran), and names the attempted strategies with
//	their outcome. Degraded mode is always mentioned.
func (s *Synthesizer) Synthesize(in Input) Explanation {
	lang := DetectLanguage(in.Question.Text, in.Question.LanguageHint, s.defaultLanguage)
	m := catalogs[lang]

	var b strings.Builder
	fmt.Fprintf(&b, m.interpreted, m.intents[in.Intent])

	if terms := conceptNames(in.Concepts); len(terms) > 0 {
		b.WriteString(" ")
		fmt.Fprintf(&b, m.terms, strings.Join(terms, ", "))
	}

	b.WriteString(" ")
	switch {
	case in.Primary != nil:
		fmt.Fprintf(&b, m.found, len(in.Primary.Rows), in.Primary.Description)
		if n := len(in.Alternatives); n > 0 {
			b.WriteString(" ")
			fmt.Fprintf(&b, m.alsoChecked, n)
			if withRows := countWithRows(in.Alternatives); withRows > 0 {
				b.WriteString(" ")
				fmt.Fprintf(&b, m.alsoReturned, withRows)
			}
		}

	case anyExecuted(in.Alternatives):
		b.WriteString(m.nothingFound)
		b.WriteString(" ")
		fmt.Fprintf(&b, m.attempted, s.strategyList(m, in.Alternatives))

	case len(in.Alternatives) == 0:
		b.WriteString(m.noStrategies)

	default:
		b.WriteString(m.systemError)
		b.WriteString(" ")
		fmt.Fprintf(&b, m.attempted, s.strategyList(m, in.Alternatives))
	}

	if in.Degraded {
		b.WriteString(" ")
		b.WriteString(m.degraded)
	}

	return Explanation{Language: lang, Text: b.String()}
}

// strategyList names candidates with their outcome, up to maxStrategies
// when a cap is set.
func (s *Synthesizer) strategyList(m messages, cands []*resolution.Candidate) string {
	limit := len(cands)
	if s.maxStrategies > 0 {
		limit = min(limit, s.maxStrategies)
	}
	parts := make([]string, 0, limit)
	for _, c := range cands[:limit] {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Strategy, m.outcome(c)))
	}
	out := strings.Join(parts, ", ")
	if rest := len(cands) - limit; rest > 0 {
		out += " " + fmt.Sprintf(m.more, rest)
	}
	return out
}

func conceptNames(matches []resolution.ConceptMatch) []string {
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		name := m.Concept
		if m.Value != "" {
			name = m.Concept + " " + m.Value
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func anyExecuted(cands []*resolution.Candidate) bool {
	for _, c := range cands {
		if c.Status == resolution.StatusExecuted {
			return true
		}
	}
	return false
}

func countWithRows(cands []*resolution.Candidate) int {
	n := 0
	for _, c := range cands {
		if c.HasRows() {
			n++
		}
	}
	return n
}
