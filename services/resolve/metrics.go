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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// classificationsTotal counts classifier verdicts.
	// Labels: intent, defaulted (true/false)
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "intent",
		Name:      "classifications_total",
		Help:      "Questions classified, by intent",
	}, []string{"intent", "defaulted"})

	// resolutionsTotal counts finished episodes.
	// Labels: outcome (answered, exhausted, store_unreachable, error), degraded
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "resolve",
		Name:      "resolutions_total",
		Help:      "Resolution episodes by outcome",
	}, []string{"outcome", "degraded"})

	resolutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cadquery",
		Subsystem: "resolve",
		Name:      "duration_seconds",
		Help:      "End-to-end resolution latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)
