// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cypher holds lexical helpers over Cypher query text.
//
// None of these functions parse Cypher. They scan text with string literals,
// quoted identifiers and comments blanked out, which is enough to find
// clause keywords, node labels, relationship types and property accesses in
// the read-only query shapes the resolver produces or accepts.
package cypher

import (
	"regexp"
	"strings"
	"unicode"
)

// =============================================================================
// Literal Stripping
// =============================================================================

// StripLiterals blanks the contents of string literals, backtick-quoted
// identifiers and comments.
//
// Description:
//
//	The result has the same byte length as the input. Quote characters are
//	kept; everything between them becomes spaces. Line comments (//) and
//	block comments are replaced entirely. Unterminated literals run to the
//	end of the text.
//
// Inputs:
//
//	q - Query text.
//
// Outputs:
//
//	string - Text safe to scan for keywords and identifiers.
func StripLiterals(q string) string {
	out := []byte(q)
	n := len(out)

	for i := 0; i < n; i++ {
		c := out[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote := c
			j := i + 1
			for j < n {
				if out[j] == '\\' && quote != '`' && j+1 < n {
					out[j], out[j+1] = ' ', ' '
					j += 2
					continue
				}
				if out[j] == quote {
					break
				}
				out[j] = ' '
				j++
			}
			i = j

		case c == '/' && i+1 < n && out[i+1] == '/':
			for i < n && out[i] != '\n' {
				out[i] = ' '
				i++
			}

		case c == '/' && i+1 < n && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for i < n {
				if out[i] == '*' && i+1 < n && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
		}
	}
	return string(out)
}

// =============================================================================
// Clause Safety
// =============================================================================

// mutatingKeywords are clause keywords that write data, change schema or
// administration state, or invoke procedures.
var mutatingKeywords = map[string]bool{
	"CREATE":    true,
	"INSERT":    true,
	"MERGE":     true,
	"SET":       true,
	"DELETE":    true,
	"DETACH":    true,
	"REMOVE":    true,
	"DROP":      true,
	"FOREACH":   true,
	"CALL":      true,
	"GRANT":     true,
	"REVOKE":    true,
	"DENY":      true,
	"ALTER":     true,
	"START":     true,
	"STOP":      true,
	"TERMINATE": true,
}

// readClauses are the keywords a read query may begin with.
var readClauses = map[string]bool{
	"MATCH":    true,
	"OPTIONAL": true,
	"WITH":     true,
	"UNWIND":   true,
	"RETURN":   true,
}

// word is one identifier-like token of stripped query text.
type word struct {
	text     string
	afterDot bool
}

// words splits stripped text into identifier tokens, upper-cased.
func words(stripped string) []word {
	var out []word
	start := -1
	for i, r := range stripped + " " {
		isIdent := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if isIdent {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			afterDot := start > 0 && stripped[start-1] == '.'
			out = append(out, word{text: strings.ToUpper(stripped[start:i]), afterDot: afterDot})
			start = -1
		}
	}
	return out
}

// MutatingClause reports the first mutating keyword in q.
//
// Description:
//
//	Literals and comments are stripped first, so a keyword inside a string
//	such as 'CREATE DATE' does not count. Property names following a dot
//	are ignored. LOAD CSV is reported as "LOAD CSV".
//
// Outputs:
//
//	string - The offending keyword, or "" when none is present.
//	bool - True when a mutating keyword was found.
func MutatingClause(q string) (string, bool) {
	ws := words(StripLiterals(q))
	for i, w := range ws {
		if w.afterDot {
			continue
		}
		if mutatingKeywords[w.text] {
			return w.text, true
		}
		if w.text == "LOAD" && i+1 < len(ws) && ws[i+1].text == "CSV" {
			return "LOAD CSV", true
		}
	}
	return "", false
}

// MultipleStatements reports whether q holds more than one statement.
// A single trailing semicolon is allowed.
func MultipleStatements(q string) bool {
	stripped := strings.TrimSpace(StripLiterals(q))
	stripped = strings.TrimSuffix(stripped, ";")
	return strings.Contains(stripped, ";")
}

// StartsWithReadClause reports whether q begins with a read clause keyword.
func StartsWithReadClause(q string) bool {
	ws := words(StripLiterals(q))
	if len(ws) == 0 {
		return false
	}
	return readClauses[ws[0].text]
}

// =============================================================================
// Schema References
// =============================================================================

var (
	nodePattern  = regexp.MustCompile(`\(\s*([A-Za-z_]\w*)?\s*:\s*([A-Za-z_]\w*(?:\s*:\s*[A-Za-z_]\w*)*)\s*(\{[^}]*\})?`)
	relPattern   = regexp.MustCompile(`\[\s*(?:[A-Za-z_]\w*)?\s*:\s*([A-Za-z_]\w*(?:\s*\|\s*:?\s*[A-Za-z_]\w*)*)`)
	propAccess   = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)
	mapKey       = regexp.MustCompile(`([A-Za-z_]\w*)\s*:`)
	labelSplit   = regexp.MustCompile(`\s*:\s*`)
	relTypeSplit = regexp.MustCompile(`\s*\|\s*:?\s*`)
)

// References lists the schema elements a query mentions.
type References struct {
	// Labels in first-seen order, deduplicated.
	Labels []string

	// RelTypes in first-seen order, deduplicated.
	RelTypes []string

	// Properties maps a label to the property names read through variables
	// bound to it, deduplicated in first-seen order.
	Properties map[string][]string
}

// Scan extracts labels, relationship types and property accesses from q.
//
// Description:
//
//	Variables are bound to the first label of the node pattern that
//	introduces them. Property accesses on unbound variables (aliases from
//	WITH, list elements) are not reported. Inline property maps on node
//	patterns count as property accesses on the pattern's label.
//
// Thread Safety: Pure function; safe for concurrent use.
func Scan(q string) References {
	stripped := StripLiterals(q)
	refs := References{Properties: make(map[string][]string)}

	seenLabel := make(map[string]bool)
	seenRel := make(map[string]bool)
	seenProp := make(map[string]bool)
	bound := make(map[string]string)

	addProp := func(label, prop string) {
		key := label + "." + prop
		if seenProp[key] {
			return
		}
		seenProp[key] = true
		refs.Properties[label] = append(refs.Properties[label], prop)
	}

	for _, m := range nodePattern.FindAllStringSubmatch(stripped, -1) {
		labels := labelSplit.Split(strings.TrimSpace(m[2]), -1)
		for _, l := range labels {
			if l == "" || seenLabel[l] {
				continue
			}
			seenLabel[l] = true
			refs.Labels = append(refs.Labels, l)
		}
		if m[1] != "" {
			if _, ok := bound[m[1]]; !ok {
				bound[m[1]] = labels[0]
			}
		}
		if m[3] != "" {
			for _, k := range mapKey.FindAllStringSubmatch(m[3], -1) {
				addProp(labels[0], k[1])
			}
		}
	}

	for _, m := range relPattern.FindAllStringSubmatch(stripped, -1) {
		for _, t := range relTypeSplit.Split(strings.TrimSpace(m[1]), -1) {
			if t == "" || seenRel[t] {
				continue
			}
			seenRel[t] = true
			refs.RelTypes = append(refs.RelTypes, t)
		}
	}

	for _, m := range propAccess.FindAllStringSubmatch(stripped, -1) {
		if label, ok := bound[m[1]]; ok {
			addProp(label, m[2])
		}
	}

	return refs
}
