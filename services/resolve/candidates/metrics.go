// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package candidates

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesGenerated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cadquery",
		Subsystem: "candidates",
		Name:      "generated",
		Help:      "Candidates generated per question",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
	}, []string{"intent"})

	// candidatesFallbackTotal counts gating fallbacks to general_exploration.
	candidatesFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "candidates",
		Name:      "fallback_total",
		Help:      "Generations that fell back to general exploration templates",
	}, []string{"fell_back"})
)

func recordGeneration(gen *Generation) {
	candidatesGenerated.WithLabelValues(string(gen.Intent)).Observe(float64(len(gen.Candidates)))
	candidatesFallbackTotal.WithLabelValues(strconv.FormatBool(gen.FellBack)).Inc()
}
