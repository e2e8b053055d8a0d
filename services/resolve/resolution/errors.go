// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolution

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrConceptNotMatched means no registry concept appeared in the question.
	// Non-fatal; classification is unaffected.
	ErrConceptNotMatched = errors.New("no domain concept matched")

	// ErrTranslatorUnavailable means the external translator produced no
	// usable candidate. Non-fatal; sets the degraded flag.
	ErrTranslatorUnavailable = errors.New("translator unavailable")

	// ErrCandidateInvalid is captured per candidate by the validator.
	ErrCandidateInvalid = errors.New("candidate invalid")

	// ErrMutatingQuery is a CandidateInvalid caused by a write clause.
	ErrMutatingQuery = fmt.Errorf("%w: mutating clause", ErrCandidateInvalid)

	// ErrCandidateTimeout is captured per candidate by the executor when its
	// own timeout or the request deadline elapsed.
	ErrCandidateTimeout = errors.New("candidate timed out")

	// ErrAllCandidatesExhausted is the terminal, non-exceptional outcome when
	// no candidate produced rows.
	ErrAllCandidatesExhausted = errors.New("all candidates exhausted")

	// ErrStoreUnreachable is the only fatal condition. It reflects an
	// infrastructure failure, not the absence of an answer.
	ErrStoreUnreachable = errors.New("graph store unreachable")
)

// TranslationErrorKind classifies translator failures.
type TranslationErrorKind string

const (
	TranslationTimeout     TranslationErrorKind = "timeout"
	TranslationMalformed   TranslationErrorKind = "malformed"
	TranslationEmpty       TranslationErrorKind = "empty"
	TranslationUnavailable TranslationErrorKind = "unavailable"
	TranslationRateLimited TranslationErrorKind = "rate_limited"
)

// TranslationError is returned by the translator adapter.
//
// errors.Is(err, ErrTranslatorUnavailable) holds for every TranslationError.
type TranslationError struct {
	Kind TranslationErrorKind
	Err  error
}

// NewTranslationError creates a TranslationError.
func NewTranslationError(kind TranslationErrorKind, err error) *TranslationError {
	return &TranslationError{Kind: kind, Err: err}
}

// Error implements error.
func (e *TranslationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("translation %s", e.Kind)
	}
	return fmt.Sprintf("translation %s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the cause and ErrTranslatorUnavailable.
func (e *TranslationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTranslatorUnavailable}
	}
	return []error{ErrTranslatorUnavailable, e.Err}
}

// IsStoreUnreachable reports whether err is a store connectivity failure.
func IsStoreUnreachable(err error) bool {
	return errors.Is(err, ErrStoreUnreachable)
}
