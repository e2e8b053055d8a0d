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

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// healthPingTimeout bounds the store ping of the health endpoint.
const healthPingTimeout = 2 * time.Second

// Handlers serves the resolve HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandlers creates Handlers. A nil logger uses slog.Default().
func NewHandlers(resolver *Resolver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{resolver: resolver, logger: logger}
}

// HandleResolve handles POST /v1/resolve/query.
//
// Description:
//
//	Resolves one question. A question nothing could answer is still a
//	200 with an explanation; only an unreachable graph store is a 503.
//
// Request Body:
//
//	ResolveRequest
//
// Response:
//
//	200 OK: resolution.Result
//	400 Bad Request: Missing or oversized question
//	503 Service Unavailable: Graph store unreachable
//	500 Internal Server Error: Any other failure
func (h *Handlers) HandleResolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleResolve"))

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), resolution.NewQuestion(req.Question, req.Language))
	if err != nil {
		if resolution.IsStoreUnreachable(err) {
			logger.Error("graph store unreachable", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "the drawing database is unreachable",
				Code:    CodeStoreUnreachable,
				Details: err.Error(),
			})
			return
		}
		logger.Error("resolution failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "resolution failed",
			Code:    CodeResolutionFailed,
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSuggestQuestions handles GET /v1/resolve/suggest-questions.
//
// Response:
//
//	200 OK: SuggestionsResponse, with Error set when the store is down
func (h *Handlers) HandleSuggestQuestions(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, SuggestQuestions(c.Request.Context(), h.resolver.Store()))
}

// HandleHealth handles GET /v1/resolve/health.
//
// Response:
//
//	200 OK: HealthResponse (store reachable)
//	503 Service Unavailable: HealthResponse (store unreachable)
func (h *Handlers) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:            "healthy",
		Version:           ServiceVersion,
		StoreOK:           true,
		TranslatorEnabled: h.resolver.TranslatorEnabled(),
	}
	if err := h.resolver.Store().Ping(ctx); err != nil {
		h.logger.Warn("health check: store ping failed", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		resp.StoreOK = false
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
