// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"strings"
	"testing"
)

func TestSafeLogString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		mustNotIn string
	}{
		{
			name:      "openai key",
			input:     "failed: sk-abcdefghijklmnopqrstuvwxyz1234 returned 401",
			want:      "failed: [REDACTED:openai_key] returned 401",
			mustNotIn: "sk-abcdefghij",
		},
		{
			name:      "openai project key",
			input:     "key sk-proj-AbCdEfGhIjKlMnOpQrStUvWx_yz rejected",
			want:      "key [REDACTED:openai_project_key] rejected",
			mustNotIn: "sk-proj-AbCd",
		},
		{
			name:      "bearer",
			input:     "Authorization: Bearer abc.def.ghijklmnop",
			want:      "Authorization: [REDACTED:bearer_token]",
			mustNotIn: "abc.def",
		},
		{
			name:      "influx token",
			input:     "header Token s3cr3tT0kenValue== sent",
			want:      "header [REDACTED:influx_token] sent",
			mustNotIn: "s3cr3t",
		},
		{
			name:      "password assignment",
			input:     "connect password=hunter22&db=x",
			want:      "connect password=[REDACTED]&db=x",
			mustNotIn: "hunter22",
		},
		{
			name:      "neo4j uri",
			input:     "dial neo4j://neo4j:hunter22@db:7687 failed",
			want:      "dial neo4j://[REDACTED]@db:7687 failed",
			mustNotIn: "hunter22",
		},
		{
			name:      "bolt+s uri",
			input:     "bolt+s://u:p@host",
			want:      "bolt+s://[REDACTED]@host",
			mustNotIn: "u:p",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeLogString(tt.input)
			if got != tt.want {
				t.Errorf("SafeLogString(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.Contains(got, tt.mustNotIn) {
				t.Errorf("secret %q leaked in %q", tt.mustNotIn, got)
			}
		})
	}
}

func TestSafeLogString_Untouched(t *testing.T) {
	for _, s := range []string{"", "normal log message", "sk-test", "bolt://localhost:7687"} {
		if got := SafeLogString(s); got != s {
			t.Errorf("SafeLogString(%q) = %q, want unchanged", s, got)
		}
	}
}
