// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ranking picks the primary answer among executed candidates.
package ranking

import (
	"sort"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// Ranking is the ordered outcome of one episode.
type Ranking struct {
	// Primary is the best candidate with rows, or nil when none produced any.
	Primary *resolution.Candidate

	// Alternatives holds every other candidate in rank order.
	Alternatives []*resolution.Candidate
}

// tier orders candidates by outcome: rows first, then empty results, then
// everything that did not execute.
func tier(c *resolution.Candidate) int {
	switch {
	case c.HasRows():
		return 0
	case c.Status == resolution.StatusExecuted:
		return 1
	default:
		return 2
	}
}

// Rank orders candidates and selects the primary.
//
// Description:
//
//	The order is total: outcome tier, then priority ascending, then
//	registration order ascending. The result does not depend on the order
//	of the input slice or on which worker finished first. Call Rank only
//	after execution has completed.
//
// Inputs:
//
//	cands - The episode's candidates. Not modified.
//
// Outputs:
//
//	Ranking - Primary is nil when no candidate has rows.
func Rank(cands []*resolution.Candidate) Ranking {
	ordered := make([]*resolution.Candidate, len(cands))
	copy(ordered, cands)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ta, tb := tier(a), tier(b); ta != tb {
			return ta < tb
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Order < b.Order
	})

	var r Ranking
	if len(ordered) > 0 && ordered[0].HasRows() {
		r.Primary = ordered[0]
		ordered = ordered[1:]
	}
	r.Alternatives = ordered
	return r
}
