// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// executorOutcomesTotal counts candidate outcomes.
	// Labels: status (executed, failed, timed_out, skipped)
	executorOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cadquery",
		Subsystem: "executor",
		Name:      "outcomes_total",
		Help:      "Executed candidates by final status",
	}, []string{"status"})

	executorCandidateSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cadquery",
		Subsystem: "executor",
		Name:      "candidate_duration_seconds",
		Help:      "Wall time of one candidate execution",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"status"})
)
