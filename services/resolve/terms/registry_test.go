// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package terms

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

func newEmbeddedRegistry(t *testing.T) *Registry {
	t.Helper()
	m, err := config.GetTermMappings(context.Background())
	require.NoError(t, err)
	r, err := NewRegistry(m)
	require.NoError(t, err)
	return r
}

func conceptNames(ms []resolution.ConceptMatch) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Concept
	}
	return out
}

func findMatch(ms []resolution.ConceptMatch, concept string) (resolution.ConceptMatch, bool) {
	for _, m := range ms {
		if m.Concept == concept {
			return m, true
		}
	}
	return resolution.ConceptMatch{}, false
}

func TestMatch_Lexical(t *testing.T) {
	r := newEmbeddedRegistry(t)

	ms := r.Match("Qual a Escala do projeto?")
	assert.Equal(t, []string{"projeto", "escala"}, conceptNames(ms))

	m, ok := findMatch(ms, "escala")
	require.True(t, ok)
	assert.Equal(t, resolution.MatchLexical, m.Kind)
	assert.Equal(t, "escala", m.Text)
	assert.Equal(t, resolution.Span{Start: 7, End: 13}, m.Span)
	assert.Equal(t, "Annotation.text", m.Target)
}

func TestMatch_AccentsAndPlurals(t *testing.T) {
	r := newEmbeddedRegistry(t)

	ms := r.Match("Quantas anotações há no escritório?")
	assert.Contains(t, conceptNames(ms), "anotacao")
	assert.Contains(t, conceptNames(ms), "escritorio")
}

func TestMatch_WholeWordsOnly(t *testing.T) {
	r := newEmbeddedRegistry(t)

	// "paredão" folds to "paredao", which is not a variant of parede.
	ms := r.Match("o paredão")
	assert.NotContains(t, conceptNames(ms), "parede")

	ms = r.Match("wallpaper")
	assert.NotContains(t, conceptNames(ms), "parede")
}

func TestMatch_MultiWordVariantPreferred(t *testing.T) {
	r := newEmbeddedRegistry(t)

	ms := r.Match("qual o nome do projeto")
	m, ok := findMatch(ms, "nome do projeto")
	require.True(t, ok)
	assert.Equal(t, "nome do projeto", m.Text)
}

func TestMatch_Structured(t *testing.T) {
	r := newEmbeddedRegistry(t)

	tests := []struct {
		name     string
		question string
		concept  string
		text     string
		value    string
	}{
		{"full project code", "Do que trata o ECB1-EST-AP-CORP-221-PV32-R00?", "project_code", "ECB1-EST-AP-CORP-221-PV32-R00", "ECB1-EST-AP-CORP-221-PV32-R00"},
		{"short code", "Existe o SBBI2024 no desenho?", "project_code", "SBBI2024", "SBBI2024"},
		{"dashed code", "Referência ABC-123-4567", "project_code", "ABC-123-4567", "ABC-123-4567"},
		{"esc notation", "Tem ESC: 1:1000?", "scale", "ESC: 1:1000", "1:1000"},
		{"escala notation", "ESCALA 1:500 aplicada", "scale", "ESCALA 1:500", "1:500"},
		{"bare ratio", "desenhado em 1:50", "scale", "1:50", "1:50"},
		{"building type", "projeto AEROPORTO regional", "building_type", "AEROPORTO", "AEROPORTO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := findMatch(r.Match(tt.question), tt.concept)
			require.True(t, ok, "no %s match in %q", tt.concept, tt.question)
			assert.Equal(t, resolution.MatchStructured, m.Kind)
			assert.Equal(t, tt.text, m.Text)
			assert.Equal(t, tt.value, m.Value)
			assert.Equal(t, tt.text, tt.question[m.Span.Start:m.Span.End])
		})
	}
}

func TestMatch_NoConcepts(t *testing.T) {
	r := newEmbeddedRegistry(t)
	assert.Empty(t, r.Match("bom dia"))
	assert.Empty(t, r.Match(""))
}

func TestExtractScale(t *testing.T) {
	r := newEmbeddedRegistry(t)

	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"ESC: 1:1000", "1:1000", true},
		{"ESCALA H 1:1500", "1:1500", true},
		{"PLANTA BAIXA - ESCALA 1:100", "1:100", true},
		{"ESCALA", "", false},
		{"NÍVEL +3.50", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, found := r.ExtractScale(tt.text)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractScale_NoRecognizer(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterConcept("parede", "WallSegment", "parede"))
	_, found := b.Build().ExtractScale("1:100")
	assert.False(t, found)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.RegisterConcept("porta", "Annotation.text", "porta", "Door"))
	require.NoError(t, b.RegisterStructured("code", "Annotation.text", []string{`[A-Z]{3}\d+`}, ""))

	assert.Error(t, b.RegisterConcept("porta", "x", "y"), "duplicate")
	assert.Error(t, b.RegisterConcept("", "x", "y"), "empty name")
	assert.Error(t, b.RegisterConcept("z", "x"), "no variants")
	assert.Error(t, b.RegisterConcept("p", "x", "!!"), "variant without words")
	assert.Error(t, b.RegisterStructured("s", "x", []string{"("}, ""), "bad pattern")
	assert.Error(t, b.RegisterStructured("s", "x", []string{"a"}, "("), "bad value")

	r := b.Build()
	assert.Equal(t, []string{"porta", "code"}, r.Concepts())
	assert.True(t, r.Has("code"))
	assert.False(t, r.Has("z"))

	ms := r.Match("A DOOR near ABC12")
	assert.Equal(t, []string{"porta", "code"}, conceptNames(ms))

	assert.Error(t, b.RegisterConcept("late", "x", "late"), "builder is frozen after Build")
}

func TestMatch_ConcurrentReads(t *testing.T) {
	r := newEmbeddedRegistry(t)
	want := r.Match("Quantas paredes e portas existem na escala 1:100?")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, r.Match("Quantas paredes e portas existem na escala 1:100?"))
			}
		}()
	}
	wg.Wait()
}
