// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package terms recognizes canonical domain concepts in question text.
//
// A Registry is built once at startup from the term mappings and never
// mutated afterwards, so concurrent Match calls need no locking. New
// concepts are added through a Builder before Build is called.
package terms

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
)

// ScaleConcept is the name of the structured recognizer used by ExtractScale.
const ScaleConcept = "scale"

// =============================================================================
// Registry
// =============================================================================

// entry is one registered concept. Exactly one of variants or patterns is set.
type entry struct {
	name   string
	target string

	// variants are normalized word sequences.
	variants [][]string

	// patterns are fixed-form recognizers tried in order on raw text.
	patterns []*regexp.Regexp

	// value extracts the canonical value from a structured match.
	value *regexp.Regexp
}

func (e *entry) structured() bool {
	return len(e.patterns) > 0
}

// Registry is the immutable concept lookup.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	entries []entry
	index   map[string]int
}

// NewRegistry builds a registry from loaded term mappings.
//
// Description:
//
//	Lexical concepts are registered first, then structured recognizers,
//	each in file order. That order is the order of Match results.
//
// Inputs:
//
//	m - Validated term mappings. Must not be nil.
//
// Outputs:
//
//	*Registry - The built registry.
//	error - Non-nil if a concept cannot be registered.
func NewRegistry(m *config.TermMappings) (*Registry, error) {
	if m == nil {
		return nil, fmt.Errorf("NewRegistry: mappings must not be nil")
	}
	b := NewBuilder()
	for _, c := range m.Concepts {
		if err := b.RegisterConcept(c.Name, c.Target, c.Variants...); err != nil {
			return nil, fmt.Errorf("NewRegistry: %w", err)
		}
	}
	for _, s := range m.Structured {
		if err := b.RegisterStructured(s.Name, s.Target, s.Patterns, s.Value); err != nil {
			return nil, fmt.Errorf("NewRegistry: %w", err)
		}
	}
	return b.Build(), nil
}

// Has reports whether a concept with this name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Concepts lists registered concept names in registration order.
func (r *Registry) Concepts() []string {
	names := make([]string, len(r.entries))
	for i := range r.entries {
		names[i] = r.entries[i].name
	}
	return names
}

// Match returns the concepts found in question.
//
// Description:
//
//	Lexical variants are matched as whole-word runs over the normalized
//	question; the reported span indexes the normalized text. Structured
//	recognizers run on the raw question and the span indexes the raw text.
//	Each concept is reported at most once: for lexical concepts the
//	earliest occurrence wins (longest variant on a tie), for structured
//	concepts the first recognizer that matches wins. Results follow
//	registration order. A question with no concepts yields nil; that is
//	not an error.
//
// Inputs:
//
//	question - Raw question text.
//
// Outputs:
//
//	[]resolution.ConceptMatch - Matches in registration order.
func (r *Registry) Match(question string) []resolution.ConceptMatch {
	normalized := textnorm.Normalize(question)
	tokens := textnorm.Tokenize(normalized)

	var out []resolution.ConceptMatch
	for i := range r.entries {
		e := &r.entries[i]
		var (
			m  resolution.ConceptMatch
			ok bool
		)
		if e.structured() {
			m, ok = e.matchStructured(question)
		} else {
			m, ok = e.matchLexical(normalized, tokens)
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

func (e *entry) matchLexical(normalized string, tokens []textnorm.Token) (resolution.ConceptMatch, bool) {
	bestStart, bestLen := -1, 0
	for _, v := range e.variants {
		at := findPhrase(tokens, v)
		if at < 0 {
			continue
		}
		if bestStart < 0 || at < bestStart || (at == bestStart && len(v) > bestLen) {
			bestStart, bestLen = at, len(v)
		}
	}
	if bestStart < 0 {
		return resolution.ConceptMatch{}, false
	}

	span := resolution.Span{Start: tokens[bestStart].Start, End: tokens[bestStart+bestLen-1].End}
	return resolution.ConceptMatch{
		Concept: e.name,
		Kind:    resolution.MatchLexical,
		Text:    normalized[span.Start:span.End],
		Span:    span,
		Target:  e.target,
	}, true
}

func (e *entry) matchStructured(raw string) (resolution.ConceptMatch, bool) {
	for _, re := range e.patterns {
		loc := re.FindStringIndex(raw)
		if loc == nil {
			continue
		}
		text := raw[loc[0]:loc[1]]
		return resolution.ConceptMatch{
			Concept: e.name,
			Kind:    resolution.MatchStructured,
			Text:    text,
			Span:    resolution.Span{Start: loc[0], End: loc[1]},
			Value:   e.extract(text),
			Target:  e.target,
		}, true
	}
	return resolution.ConceptMatch{}, false
}

func (e *entry) extract(text string) string {
	if e.value == nil {
		return text
	}
	if v := e.value.FindString(text); v != "" {
		return v
	}
	return text
}

// findPhrase returns the token index where phrase starts, or -1.
func findPhrase(tokens []textnorm.Token, phrase []string) int {
	n := len(phrase)
	for i := 0; i+n <= len(tokens); i++ {
		matched := true
		for j := range phrase {
			if tokens[i+j].Text != phrase[j] {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// ExtractScale finds a scale notation in free text such as an annotation.
//
// Description:
//
//	Uses the recognizers of the "scale" concept, so annotation text and
//	questions are read the same way. "ESC: 1:1000" yields "1:1000".
//
// Outputs:
//
//	string - The canonical notation.
//	bool - False when the text holds no scale or no scale recognizer is
//	registered.
func (r *Registry) ExtractScale(text string) (string, bool) {
	i, ok := r.index[ScaleConcept]
	if !ok || !r.entries[i].structured() {
		return "", false
	}
	m, found := r.entries[i].matchStructured(text)
	if !found {
		return "", false
	}
	return m.Value, true
}

// =============================================================================
// Builder
// =============================================================================

// Builder collects concepts before a Registry is built.
//
// Thread Safety: Not safe for concurrent use.
type Builder struct {
	entries []entry
	index   map[string]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// RegisterConcept adds a lexically recognized concept.
//
// Variants are normalized, so "Escritório" and "escritorio" are the same
// variant. Variants that normalize to nothing are rejected.
func (b *Builder) RegisterConcept(name, target string, variants ...string) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	if len(variants) == 0 {
		return fmt.Errorf("concept %q: no variants", name)
	}

	e := entry{name: name, target: target}
	for _, v := range variants {
		words := textnorm.Words(textnorm.Normalize(v))
		if len(words) == 0 {
			return fmt.Errorf("concept %q: variant %q has no words", name, v)
		}
		e.variants = append(e.variants, words)
	}
	b.add(e)
	return nil
}

// RegisterStructured adds a fixed-form value recognizer.
//
// Patterns are tried in order on the raw text; list the most specific
// form first. value, when not empty, extracts the canonical value from
// the matched text.
func (b *Builder) RegisterStructured(name, target string, patterns []string, value string) error {
	if err := b.checkName(name); err != nil {
		return err
	}
	if len(patterns) == 0 {
		return fmt.Errorf("structured %q: no patterns", name)
	}

	e := entry{name: name, target: target}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("structured %q: pattern %q: %w", name, p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	if value != "" {
		re, err := regexp.Compile(value)
		if err != nil {
			return fmt.Errorf("structured %q: value %q: %w", name, value, err)
		}
		e.value = re
	}
	b.add(e)
	return nil
}

// Build freezes the registered concepts. The builder must not be used
// afterwards.
func (b *Builder) Build() *Registry {
	r := &Registry{
		entries: b.entries,
		index:   b.index,
	}
	b.entries = nil
	b.index = nil
	return r
}

func (b *Builder) checkName(name string) error {
	if b.index == nil {
		return fmt.Errorf("builder already built")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("concept name must not be empty")
	}
	if _, dup := b.index[name]; dup {
		return fmt.Errorf("concept %q already registered", name)
	}
	return nil
}

func (b *Builder) add(e entry) {
	b.index[e.name] = len(b.entries)
	b.entries = append(b.entries, e)
}
