// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import "github.com/AleutianAI/AleutianCAD/services/resolve/store"

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.4.0"

// ResolveRequest is the body of POST /v1/resolve/query.
type ResolveRequest struct {
	// Question is the natural-language question.
	Question string `json:"question" binding:"required,max=2000"`

	// Language is an optional response language hint ("pt", "en", "pt-BR").
	Language string `json:"language,omitempty" binding:"omitempty,max=16"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// Error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeStoreUnreachable = "STORE_UNREACHABLE"
	CodeResolutionFailed = "RESOLUTION_FAILED"
)

// HealthResponse is returned by GET /v1/resolve/health.
type HealthResponse struct {
	// Status is "healthy" or "unavailable".
	Status string `json:"status"`

	Version string `json:"version"`

	// StoreOK is true when the graph store answered a ping.
	StoreOK bool `json:"store_ok"`

	// TranslatorEnabled is false when results are always degraded.
	TranslatorEnabled bool `json:"translator_enabled"`
}

// QuestionCategory groups example questions.
type QuestionCategory struct {
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

// SuggestionsResponse is returned by GET /v1/resolve/suggest-questions.
type SuggestionsResponse struct {
	// DataSummary counts nodes per label. Absent when the store is down.
	DataSummary []store.LabelCount `json:"data_summary,omitempty"`

	SuggestedQuestions []QuestionCategory `json:"suggested_questions"`

	Tips []string `json:"tips,omitempty"`

	// Error explains why only basic suggestions are offered.
	Error string `json:"error,omitempty"`
}
