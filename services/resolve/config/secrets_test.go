// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "testing"

func TestSecrets(t *testing.T) {
	env := map[string]string{
		SecretOpenAIKey:     "sk-test-123",
		SecretNeo4jPassword: "  ",
	}
	s := LoadSecretsFromEnv(func(k string) string { return env[k] })

	if !s.Has(SecretOpenAIKey) {
		t.Fatal("expected OPENAI_API_KEY to be sealed")
	}
	if s.Has(SecretNeo4jPassword) {
		t.Error("blank values must not be sealed")
	}

	var got string
	if err := s.With(SecretOpenAIKey, func(v string) error {
		got = v
		return nil
	}); err != nil {
		t.Fatalf("With: %v", err)
	}
	if got != "sk-test-123" {
		t.Errorf("expected sealed value back, got %q", got)
	}

	missing := "unset"
	if err := s.With(SecretInfluxToken, func(v string) error {
		missing = v
		return nil
	}); err != nil {
		t.Fatalf("With on missing secret: %v", err)
	}
	if missing != "" {
		t.Errorf("missing secret should yield empty value, got %q", missing)
	}

	if _, err := s.Open(SecretInfluxToken); err == nil {
		t.Error("expected error opening a missing secret")
	}
}
