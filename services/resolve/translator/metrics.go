// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package translator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// translatorCallsTotal counts Translate calls by outcome.
	// Labels: outcome (ok, cache_hit, timeout, malformed, empty, unavailable, rate_limited)
	translatorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "translator",
		Name:      "calls_total",
		Help:      "Translate calls by outcome",
	}, []string{"outcome"})

	translatorAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "translator",
		Name:      "provider_attempts_total",
		Help:      "Calls made to the language model provider, including retries",
	})

	translatorLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cadquery",
		Subsystem: "translator",
		Name:      "latency_seconds",
		Help:      "Translate latency including retries",
		Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 4, 8, 16},
	})
)
