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
	"sort"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/terms"
)

// ScaleShaper reduces rows to {"scale": "1:N", "annotation": text}.
//
// Rows without a recognizable scale notation are dropped, as are repeats of
// the same (scale, annotation) pair. The "text" column is preferred; other
// string columns are scanned in key order.
func ScaleShaper(registry *terms.Registry) resolution.RowShaper {
	return func(rows []resolution.Row) []resolution.Row {
		out := make([]resolution.Row, 0, len(rows))
		seen := make(map[[2]string]bool)
		for _, row := range rows {
			scale, text, ok := findScale(registry, row)
			if !ok {
				continue
			}
			k := [2]string{scale, text}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, resolution.Row{"scale": scale, "annotation": text})
		}
		return out
	}
}

func findScale(registry *terms.Registry, row resolution.Row) (scale, text string, ok bool) {
	if s, isString := row["text"].(string); isString {
		if scale, ok := registry.ExtractScale(s); ok {
			return scale, s, true
		}
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != "text" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, isString := row[k].(string)
		if !isString {
			continue
		}
		if scale, ok := registry.ExtractScale(s); ok {
			return scale, s, true
		}
	}
	return "", "", false
}
