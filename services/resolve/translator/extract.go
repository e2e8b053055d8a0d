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
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianCAD/services/resolve/cypher"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*\\s*(.*?)```")

// ExtractCypher pulls the query out of a model completion.
//
// Description:
//
//	Accepts, in order of preference: a JSON object with a "cypher" field,
//	the first fenced code block, or the raw text. A trailing semicolon is
//	dropped. The result must begin with a read clause; anything else is
//	reported as malformed, and nothing at all as empty.
//
// Outputs:
//
//	string - The extracted query.
//	error - *resolution.TranslationError of kind empty or malformed.
func ExtractCypher(completion string) (string, error) {
	text := strings.TrimSpace(completion)
	if text == "" {
		return "", resolution.NewTranslationError(resolution.TranslationEmpty, errors.New("completion is blank"))
	}

	if strings.HasPrefix(text, "{") {
		var payload struct {
			Cypher string `json:"cypher"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return "", resolution.NewTranslationError(resolution.TranslationMalformed, err)
		}
		text = payload.Cypher
	} else if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	if text == "" {
		return "", resolution.NewTranslationError(resolution.TranslationEmpty, errors.New("no query in completion"))
	}
	if !cypher.StartsWithReadClause(text) {
		return "", resolution.NewTranslationError(resolution.TranslationMalformed,
			errors.New("completion does not start with a read clause"))
	}
	return text, nil
}
