// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolution defines the value types shared by every stage of a
// question resolution episode: the question itself, its intent, the concept
// matches, the candidate queries and the final result.
//
// Thread Safety:
//
//	All types are owned by a single resolution episode. A Candidate is
//	written by exactly one worker at a time; the orchestrator only reads it
//	after all workers have joined.
package resolution

import (
	"time"

	"github.com/go-openapi/strfmt"
)

// =============================================================================
// Question
// =============================================================================

// Question is the immutable input of one resolution episode.
type Question struct {
	// Text is the raw question as typed by the user.
	Text string

	// LanguageHint is an optional "pt" or "en" supplied by the caller.
	LanguageHint string

	// ArrivedAt is when the question entered the engine.
	ArrivedAt time.Time
}

// NewQuestion creates a Question stamped with the current time.
func NewQuestion(text, languageHint string) Question {
	return Question{
		Text:         text,
		LanguageHint: languageHint,
		ArrivedAt:    time.Now(),
	}
}

// =============================================================================
// Intent
// =============================================================================

// Intent is the closed-set classification of what a question asks for.
type Intent string

const (
	IntentProjectInfo        Intent = "project_info"
	IntentScaleInfo          Intent = "scale_info"
	IntentCountQuery         Intent = "count_query"
	IntentElementSearch      Intent = "element_search"
	IntentGeneralExploration Intent = "general_exploration"
)

// AllIntents lists every intent in declaration order.
var AllIntents = []Intent{
	IntentProjectInfo,
	IntentScaleInfo,
	IntentCountQuery,
	IntentElementSearch,
	IntentGeneralExploration,
}

// Valid reports whether i belongs to the closed intent set.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}

// Classification is the classifier's verdict for one question.
type Classification struct {
	// Intent is always a member of AllIntents.
	Intent Intent

	// Rule is the name of the rule that fired. Empty when Defaulted.
	Rule string

	// Reason is the human-readable reason attached to the rule.
	Reason string

	// Defaulted is true when no rule matched and the classifier fell back
	// to general_exploration.
	Defaulted bool
}

// =============================================================================
// Concept matches
// =============================================================================

// MatchKind distinguishes vocabulary hits from structured-value hits.
type MatchKind string

const (
	// MatchLexical is a hit on a lexical variant in the normalized text.
	MatchLexical MatchKind = "lexical"

	// MatchStructured is a hit by a fixed-form recognizer on the raw text.
	MatchStructured MatchKind = "structured"
)

// Span is a half-open byte range [Start, End).
//
// Lexical spans index the normalized question; structured spans index the
// raw question.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ConceptMatch is one canonical concept found in a question.
type ConceptMatch struct {
	// Concept is the canonical concept name, e.g. "escala".
	Concept string `json:"concept"`

	// Kind tells how the concept was found.
	Kind MatchKind `json:"kind"`

	// Text is the matched substring.
	Text string `json:"text"`

	// Span locates Text.
	Span Span `json:"span"`

	// Value is the normalized structured value (e.g. "1:1000"). Empty for
	// lexical matches.
	Value string `json:"value,omitempty"`

	// Target is the graph label or property the concept refers to.
	Target string `json:"target,omitempty"`
}

// =============================================================================
// Candidates
// =============================================================================

// Status is the lifecycle state of a candidate query.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusInvalid   Status = "invalid"
	StatusExecuted  Status = "executed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further stage will touch a candidate in
// this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusInvalid, StatusExecuted, StatusFailed, StatusTimedOut, StatusSkipped:
		return true
	}
	return false
}

// StrategyExternalTranslation is the strategy name of the translator candidate.
const StrategyExternalTranslation = "external-translation"

// TranslatorPriority is the priority rank given to the translator candidate.
// It is larger than any template rank accepted by the configuration.
const TranslatorPriority = 1000

// Row is one result record returned by the graph store.
type Row map[string]any

// RowShaper post-processes the rows of a successfully executed candidate.
type RowShaper func(rows []Row) []Row

// Candidate is one independently generated query attempt.
type Candidate struct {
	// ID is unique within one resolution episode.
	ID string

	// Strategy is the template name or StrategyExternalTranslation.
	Strategy string

	// Description is a short human-readable label.
	Description string

	// Priority is the rank; lower is more specific.
	Priority int

	// Order is the registration order inside the episode, starting at 0.
	Order int

	// Query is the Cypher text.
	Query string

	// Params are the bound query parameters.
	Params map[string]any

	// Status is the current lifecycle state.
	Status Status

	// Rows holds the result set once executed.
	Rows []Row

	// Err is the captured failure, if any.
	Err error

	// Duration is the wall time spent executing.
	Duration time.Duration

	// Shape is applied to Rows after execution. May be nil.
	Shape RowShaper
}

// FromTranslator reports whether the candidate came from the external translator.
func (c *Candidate) FromTranslator() bool {
	return c.Strategy == StrategyExternalTranslation
}

// HasRows reports whether the candidate executed and produced at least one row.
func (c *Candidate) HasRows() bool {
	return c.Status == StatusExecuted && len(c.Rows) > 0
}

// ErrorText returns the captured error message or "".
func (c *Candidate) ErrorText() string {
	if c.Err == nil {
		return ""
	}
	return c.Err.Error()
}

// =============================================================================
// Result
// =============================================================================

// Interpretation describes how the question was understood.
type Interpretation struct {
	DetectedIntent Intent   `json:"detected_intent"`
	SemanticTerms  []string `json:"semantic_terms"`
	Rationale      string   `json:"rationale"`
}

// CandidateResult is the public view of one attempted candidate.
type CandidateResult struct {
	Description string `json:"description"`
	QueryText   string `json:"query_text"`
	Results     []Row  `json:"results"`
	Strategy    string `json:"strategy"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Result is the full answer of one resolution episode.
//
// PrimaryResult is nil (and omitted from JSON) when no candidate produced rows.
type Result struct {
	EpisodeID          strfmt.UUID       `json:"episode_id"`
	Interpretation     Interpretation    `json:"interpretation"`
	PrimaryResult      *CandidateResult  `json:"primary_result,omitempty"`
	AlternativeResults []CandidateResult `json:"alternative_results"`
	Explanation        string            `json:"explanation"`
	Language           string            `json:"language"`
	Degraded           bool              `json:"degraded"`
	ResolvedAt         strfmt.DateTime   `json:"resolved_at"`
}

// ToCandidateResult converts a candidate to its public view.
func ToCandidateResult(c *Candidate) CandidateResult {
	rows := c.Rows
	if rows == nil {
		rows = []Row{}
	}
	return CandidateResult{
		Description: c.Description,
		QueryText:   c.Query,
		Results:     rows,
		Strategy:    c.Strategy,
		Status:      c.Status,
		Error:       c.ErrorText(),
	}
}
