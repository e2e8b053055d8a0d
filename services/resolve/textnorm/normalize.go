// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package textnorm normalizes question text for rule and vocabulary matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, folds accents ("escritório" → "escritorio") and
// collapses runs of whitespace into a single space.
//
// Thread Safety: Safe for concurrent use. A new transformer chain is built
// per call because transform.Chain is stateful.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(FoldAccents(s))), " ")
}

// FoldAccents strips combining marks while preserving case.
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Words splits normalized text into word tokens, dropping punctuation.
func Words(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Token is one word of normalized text with its byte offsets.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits normalized text into word tokens with their positions.
func Tokenize(normalized string) []Token {
	var out []Token
	start := -1
	for i, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, Token{Text: normalized[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Token{Text: normalized[start:], Start: start, End: len(normalized)})
	}
	return out
}
