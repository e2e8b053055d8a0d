// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm wraps the language-model backends used to translate questions
// into Cypher.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Completion Contract
// =============================================================================

// CompletionRequest is one single-turn completion.
type CompletionRequest struct {
	// System carries the instructions and schema.
	System string

	// Prompt is the user turn.
	Prompt string

	Temperature float64
	MaxTokens   int
}

// Completer produces one completion for a prompt.
//
// Description:
//
//	Implementations return ErrRateLimited when the provider throttles the
//	caller and ErrEmptyCompletion when the provider answered with nothing.
//	Any other error is a provider or transport failure.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Model names the backing model. It is part of cache keys.
	Model() string
}

var (
	// ErrRateLimited indicates the provider rejected the call for quota.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrEmptyCompletion indicates the provider returned no choices.
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Options selects and configures a backend.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds the Completer for opts.Provider.
func New(opts Options) (Completer, error) {
	switch opts.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL)
	case ProviderOllama:
		return NewOllamaClient(opts.Model, opts.BaseURL)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
}
