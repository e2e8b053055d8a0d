// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient implements Completer against a local Ollama server.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient creates an OllamaClient. The server is not contacted.
func NewOllamaClient(model, baseURL string) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model is missing")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	l, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}
	slog.Info("Initializing Ollama client", slog.String("model", model), slog.String("url", baseURL))
	return &OllamaClient{llm: l, model: model}, nil
}

// Model implements Completer.
func (c *OllamaClient) Model() string { return c.model }

// Complete implements Completer.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	content := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "429") {
			return "", fmt.Errorf("ollama: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("ollama: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Content, nil
}
