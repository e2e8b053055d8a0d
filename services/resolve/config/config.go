// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the embedded YAML tables that drive question
// resolution: resolver limits, intent rules, term mappings, candidate
// templates and the graph schema descriptor.
//
// Every table is parsed once, defaulted, validated and cached. Callers get
// read-only values; nothing in this package is mutated after load except by
// the Reset functions used in tests.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
)

// MaxYAMLFileSize bounds the size of any configuration document.
const MaxYAMLFileSize = 1 << 20

var configTracer = otel.Tracer("aleutian.cad.config")

// structValidate checks struct tags on loaded configuration.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// checkSize rejects empty or oversized YAML documents.
func checkSize(loader string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: empty YAML data", loader)
	}
	if len(data) > MaxYAMLFileSize {
		return fmt.Errorf("%s: YAML data exceeds maximum size (%d > %d)", loader, len(data), MaxYAMLFileSize)
	}
	return nil
}

// describeValidationError flattens validator errors into one line.
func describeValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
