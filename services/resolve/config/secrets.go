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

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// Secret names read from the environment.
const (
	SecretOpenAIKey     = "OPENAI_API_KEY"
	SecretNeo4jPassword = "NEO4J_PASSWORD"
	SecretInfluxToken   = "INFLUX_TOKEN"
)

var memguardInitOnce sync.Once

// Secrets holds credentials sealed in encrypted memory enclaves.
//
// Description:
//
//	Values are copied out of the environment once and sealed. Callers open
//	a secret only while constructing the client that needs it and must
//	Destroy the returned buffer afterwards.
//
// Thread Safety: Safe for concurrent use after construction.
type Secrets struct {
	enclaves map[string]*memguard.Enclave
}

// LoadSecretsFromEnv seals the known secret variables that are set.
//
// Inputs:
//
//	getenv - Lookup function, usually os.Getenv.
//
// Outputs:
//
//	*Secrets - Never nil. Missing variables are simply absent.
func LoadSecretsFromEnv(getenv func(string) string) *Secrets {
	memguardInitOnce.Do(memguard.CatchInterrupt)

	s := &Secrets{enclaves: make(map[string]*memguard.Enclave)}
	for _, name := range []string{SecretOpenAIKey, SecretNeo4jPassword, SecretInfluxToken} {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			continue
		}
		s.enclaves[name] = memguard.NewEnclave([]byte(v))
	}

	slog.Debug("secrets sealed", slog.Int("count", len(s.enclaves)))
	return s
}

// Has reports whether the named secret is present.
func (s *Secrets) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.enclaves[name]
	return ok
}

// Open decrypts the named secret into a locked buffer.
//
// Outputs:
//
//	*memguard.LockedBuffer - Caller must Destroy it.
//	error - Non-nil when the secret is missing or cannot be opened.
func (s *Secrets) Open(name string) (*memguard.LockedBuffer, error) {
	if !s.Has(name) {
		return nil, fmt.Errorf("secret %s not set", name)
	}
	buf, err := s.enclaves[name].Open()
	if err != nil {
		return nil, fmt.Errorf("opening secret %s: %w", name, err)
	}
	return buf, nil
}

// With opens the named secret, passes a copy of its value to fn and
// destroys the buffer. A missing secret calls fn with "".
func (s *Secrets) With(name string, fn func(value string) error) error {
	if !s.Has(name) {
		return fn("")
	}
	buf, err := s.Open(name)
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(strings.Clone(buf.String()))
}

// PurgeSecrets wipes all sealed memory. Call once on shutdown.
func PurgeSecrets() {
	memguard.Purge()
}
