// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store is the narrow read-only boundary to the drawing graph.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// GraphStore validates and runs read-only Cypher against the drawing graph.
//
// Description:
//
//	Validate performs a dry run that reads and writes no data. Execute runs
//	the query under the deadline carried by ctx. Implementations wrap
//	infrastructure failures with resolution.ErrStoreUnreachable so callers
//	can tell "no answer" from "no database".
//
// Thread Safety: Implementations must be safe for concurrent use.
type GraphStore interface {
	// Validate dry-runs query. A non-nil error means the query is invalid
	// or the store is unreachable.
	Validate(ctx context.Context, query string, params map[string]any) error

	// Execute runs query and returns all rows. No rows is not an error.
	Execute(ctx context.Context, query string, params map[string]any) ([]resolution.Row, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// LabelCountQuery counts nodes per primary label.
const LabelCountQuery = "MATCH (n) RETURN labels(n)[0] AS label, count(n) AS count"

// LabelCount is the number of nodes carrying one label.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// LabelCounts returns node counts per label, largest first.
//
// Outputs:
//
//	[]LabelCount - Sorted by count descending, then label.
//	error - Non-nil when the query fails.
func LabelCounts(ctx context.Context, s GraphStore) ([]LabelCount, error) {
	rows, err := s.Execute(ctx, LabelCountQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("counting labels: %w", err)
	}

	out := make([]LabelCount, 0, len(rows))
	for _, r := range rows {
		label, _ := r["label"].(string)
		if label == "" {
			continue
		}
		out = append(out, LabelCount{Label: label, Count: toInt64(r["count"])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
