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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1/resolve/* endpoints.
//
// Description:
//
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/resolve/query - Resolve a question
//	GET  /v1/resolve/suggest-questions - Example questions for the loaded drawing
//	GET  /v1/resolve/health - Store and translator status
//
// Example:
//
//	handlers := resolve.NewHandlers(resolver, logger)
//	v1 := router.Group("/v1")
//	resolve.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	resolve := rg.Group("/resolve")
	{
		resolve.POST("/query", handlers.HandleResolve)
		resolve.GET("/suggest-questions", handlers.HandleSuggestQuestions)
		resolve.GET("/health", handlers.HandleHealth)
	}
}
