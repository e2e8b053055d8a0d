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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
)

const instructions = `You translate questions about a CAD drawing into a single read-only Cypher query.
Rules:
- Use only the labels, relationship types and properties listed in the schema.
- Never write data: no CREATE, MERGE, SET, DELETE, REMOVE, DROP, CALL or LOAD CSV.
- Return exactly one statement and alias every returned value.
- Questions may be in Portuguese or English. Annotation text is usually upper case Portuguese.
- Answer with JSON only: {"cypher": "<query>"}`

// BuildSystemPrompt renders the instructions, schema and worked examples.
//
// The output is deterministic for a given schema.
func BuildSystemPrompt(schema *config.GraphSchema) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(schema.Render())

	if len(schema.Examples) > 0 {
		b.WriteString("\n\nExamples:\n")
		for _, ex := range schema.Examples {
			fmt.Fprintf(&b, "Question: %s\n{\"cypher\": %q}\n", ex.Question, ex.Query)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildUserPrompt(question string) string {
	return "Question: " + question
}
