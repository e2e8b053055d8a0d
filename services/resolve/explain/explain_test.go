// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		hint     string
		fallback string
		want     string
	}{
		{"portuguese markers", "Quais são as portas do projeto?", "", "en", "pt"},
		{"english markers", "How many doors are there in the project?", "", "pt", "en"},
		{"hint wins", "Quais são as portas do projeto?", "en-US", "pt", "en"},
		{"regional hint", "How many doors?", "pt-BR", "en", "pt"},
		{"unsupported hint ignored", "How many doors are there?", "fr", "pt", "en"},
		{"garbage hint ignored", "How many doors are there?", "!!", "pt", "en"},
		{"tie uses fallback", "ECB1-EST-AP-CORP-221-PV32-R00", "", "en", "en"},
		{"empty fallback is portuguese", "1:100", "", "", "pt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text, tt.hint, tt.fallback))
		})
	}
}

func executed(strategy string, rows int) *resolution.Candidate {
	c := &resolution.Candidate{Strategy: strategy, Description: strategy + " description", Status: resolution.StatusExecuted}
	for i := 0; i < rows; i++ {
		c.Rows = append(c.Rows, resolution.Row{"i": i})
	}
	return c
}

func withStatus(strategy string, status resolution.Status) *resolution.Candidate {
	return &resolution.Candidate{Strategy: strategy, Status: status}
}

func TestSynthesize_Primary(t *testing.T) {
	s := NewSynthesizer(config.ExplainConfig{})
	exp := s.Synthesize(Input{
		Question: resolution.NewQuestion("Qual a escala do projeto?", ""),
		Intent:   resolution.IntentScaleInfo,
		Concepts: []resolution.ConceptMatch{
			{Concept: "escala", Kind: resolution.MatchLexical},
			{Concept: "escala", Kind: resolution.MatchLexical},
		},
		Primary:      executed("annotation_scale_notation", 3),
		Alternatives: []*resolution.Candidate{executed("building_scale_metadata", 1), executed("x", 0)},
	})

	assert.Equal(t, "pt", exp.Language)
	assert.Contains(t, exp.Text, "Interpretei sua pergunta como: escala do desenho.")
	assert.Contains(t, exp.Text, "Termos reconhecidos: escala.")
	assert.Contains(t, exp.Text, "Encontrei 3 resultado(s)")
	assert.Contains(t, exp.Text, `"annotation_scale_notation description"`)
	assert.Contains(t, exp.Text, "Também verifiquei 2 abordagem(s) alternativa(s).")
	assert.Contains(t, exp.Text, "1 delas também retornaram dados.")
	assert.NotContains(t, exp.Text, "tradução automática")
}

func TestSynthesize_NothingFoundVersusSystemError(t *testing.T) {
	s := NewSynthesizer(config.ExplainConfig{DefaultLanguage: "en", MaxStrategiesListed: 6})
	q := resolution.NewQuestion("How many elevators are there?", "")

	nothing := s.Synthesize(Input{
		Question: q,
		Intent:   resolution.IntentCountQuery,
		Alternatives: []*resolution.Candidate{
			executed("count_all_labels", 0),
			withStatus("feature_type_count", resolution.StatusFailed),
		},
	})
	assert.Equal(t, "en", nothing.Language)
	assert.Contains(t, nothing.Text, "No information about this was found")
	assert.Contains(t, nothing.Text, "count_all_labels (no results), feature_type_count (failed)")
	assert.NotContains(t, nothing.Text, "System error")

	broken := s.Synthesize(Input{
		Question: q,
		Intent:   resolution.IntentCountQuery,
		Alternatives: []*resolution.Candidate{
			withStatus("count_all_labels", resolution.StatusTimedOut),
			withStatus("feature_type_count", resolution.StatusInvalid),
			withStatus("space_count", resolution.StatusSkipped),
		},
	})
	assert.Contains(t, broken.Text, "System error")
	assert.Contains(t, broken.Text, "count_all_labels (timed out), feature_type_count (invalid), space_count (not run)")
	assert.NotContains(t, broken.Text, "No information")

	none := s.Synthesize(Input{Question: q, Intent: resolution.IntentCountQuery})
	assert.Contains(t, none.Text, "no query strategy was generated")
}

func TestSynthesize_NamesEveryAttemptedStrategyByDefault(t *testing.T) {
	s := NewSynthesizer(config.ExplainConfig{DefaultLanguage: "pt"})
	names := []string{
		"wall_elements", "window_elements", "door_elements", "stair_elements",
		"layer_keywords", "annotation_keywords", "block_names", "external-translation",
	}
	alts := make([]*resolution.Candidate, 0, len(names))
	for _, n := range names {
		alts = append(alts, executed(n, 0))
	}

	exp := s.Synthesize(Input{
		Question:     resolution.NewQuestion("Quais as janelas e portas?", ""),
		Intent:       resolution.IntentElementSearch,
		Alternatives: alts,
	})
	for _, n := range names {
		assert.Contains(t, exp.Text, n+" (sem resultados)")
	}
	assert.NotContains(t, exp.Text, "e mais")
}

func TestSynthesize_TruncatesStrategyList(t *testing.T) {
	s := NewSynthesizer(config.ExplainConfig{DefaultLanguage: "pt", MaxStrategiesListed: 2})
	exp := s.Synthesize(Input{
		Question: resolution.NewQuestion("Quais as janelas?", ""),
		Intent:   resolution.IntentElementSearch,
		Alternatives: []*resolution.Candidate{
			executed("a", 0), executed("b", 0), executed("c", 0), executed("d", 0),
		},
	})
	assert.Contains(t, exp.Text, "Estratégias tentadas: a (sem resultados), b (sem resultados) e mais 2.")
	assert.NotContains(t, exp.Text, "c (")
}

func TestSynthesize_Degraded(t *testing.T) {
	s := NewSynthesizer(config.ExplainConfig{})
	exp := s.Synthesize(Input{
		Question: resolution.NewQuestion("What is the project about?", ""),
		Intent:   resolution.IntentProjectInfo,
		Concepts: []resolution.ConceptMatch{{Concept: "project_code", Kind: resolution.MatchStructured, Value: "ABC123"}},
		Primary:  executed("project_code_lookup", 1),
		Degraded: true,
	})
	assert.Equal(t, "en", exp.Language)
	assert.Contains(t, exp.Text, "Recognized terms: project_code ABC123.")
	assert.Contains(t, exp.Text, "only predefined queries were used")
	assert.NotContains(t, exp.Text, "alternative")
}
