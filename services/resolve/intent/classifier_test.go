// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/textnorm"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := config.GetIntentRules(context.Background())
	require.NoError(t, err)
	c, err := NewClassifier(rules, nil)
	require.NoError(t, err)
	return c
}

func TestClassify_EmbeddedRules(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		question string
		want     resolution.Intent
		rule     string
	}{
		{"Qual o nome do projeto?", resolution.IntentProjectInfo, "project_identity"},
		{"Do que se trata este projeto?", resolution.IntentProjectInfo, "project_identity"},
		{"What is the project name?", resolution.IntentProjectInfo, "project_identity"},
		{"Qual o projeto?", resolution.IntentProjectInfo, "project_generic"},
		{"O que é ECB1-EST-AP-CORP?", resolution.IntentProjectInfo, "project_identity"},
		{"Qual a escala do projeto?", resolution.IntentScaleInfo, "scale"},
		{"Is it drawn at 1:100?", resolution.IntentScaleInfo, "scale"},
		{"Quais as dimensões do desenho?", resolution.IntentScaleInfo, "scale"},
		{"Quantas escalas existem?", resolution.IntentCountQuery, "scale_count"},
		{"Quantas paredes existem?", resolution.IntentCountQuery, "count"},
		{"How many floors are there?", resolution.IntentCountQuery, "count"},
		{"Mostre as paredes do projeto", resolution.IntentElementSearch, "building_elements"},
		{"Quais são os círculos?", resolution.IntentElementSearch, "geometric_features"},
		{"Where are the stairs?", resolution.IntentElementSearch, "building_elements"},
		{"Liste as anotações", resolution.IntentElementSearch, "annotations"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := c.Classify(textnorm.Normalize(tt.question))
			assert.Equal(t, tt.want, got.Intent)
			assert.Equal(t, tt.rule, got.Rule)
			assert.False(t, got.Defaulted)
		})
	}
}

func TestClassify_DefaultsToGeneralExploration(t *testing.T) {
	c := newTestClassifier(t)

	for _, q := range []string{"", "Olá!", "bom dia", "??"} {
		got := c.Classify(textnorm.Normalize(q))
		assert.Equal(t, resolution.IntentGeneralExploration, got.Intent, q)
		assert.True(t, got.Defaulted, q)
		assert.Empty(t, got.Rule, q)
	}
}

func TestClassify_Totality(t *testing.T) {
	c := newTestClassifier(t)

	vocab := []string{"qual", "escala", "quantas", "paredes", "projeto", "nome", "1:100",
		"circulos", "anotacoes", "o", "a", "de", "what", "how", "many", "?", "ç", "🏗", "ECB1-EST-AP"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := rng.Intn(8)
		q := ""
		for j := 0; j < n; j++ {
			q += vocab[rng.Intn(len(vocab))] + " "
		}
		got := c.Classify(textnorm.Normalize(q))
		require.True(t, got.Intent.Valid(), "question %q produced %q", q, got.Intent)
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	rules := &config.IntentRules{Rules: []config.IntentRule{
		{Name: "first", Intent: resolution.IntentCountQuery, When: []config.PatternSet{{All: [][]string{{"parede*"}}}}},
		{Name: "second", Intent: resolution.IntentElementSearch, When: []config.PatternSet{{All: [][]string{{"paredes"}}}}},
	}}
	c, err := NewClassifier(rules, nil)
	require.NoError(t, err)

	got := c.Classify("mostre as paredes")
	assert.Equal(t, "first", got.Rule)
	assert.Equal(t, []string{"first", "second"}, c.RuleNames())
}

func TestClassify_PatternForms(t *testing.T) {
	rules := &config.IntentRules{Rules: []config.IntentRule{
		{Name: "phrase", Intent: resolution.IntentCountQuery, When: []config.PatternSet{{All: [][]string{{"how many"}}}}},
		{Name: "prefix", Intent: resolution.IntentScaleInfo, When: []config.PatternSet{{All: [][]string{{"escal*"}}}}},
		{Name: "regex", Intent: resolution.IntentProjectInfo, When: []config.PatternSet{{All: [][]string{{`.*\bpv\d+`}}}}},
		{Name: "both", Intent: resolution.IntentElementSearch, When: []config.PatternSet{{All: [][]string{{"porta"}, {"janela"}}}}},
	}}
	c, err := NewClassifier(rules, nil)
	require.NoError(t, err)

	tests := []struct {
		text string
		rule string
	}{
		{"how many rooms", "phrase"},
		{"many how rooms", ""},
		{"escalas", "prefix"},
		{"desescalar", ""},
		{"codigo pv32", "regex"},
		{"porta e janela", "both"},
		{"porta apenas", ""},
		{"portas e janelas", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.rule, c.Classify(tt.text).Rule)
		})
	}
}

func TestNewClassifier_Errors(t *testing.T) {
	_, err := NewClassifier(nil, nil)
	assert.Error(t, err)

	_, err = NewClassifier(&config.IntentRules{Rules: []config.IntentRule{
		{Name: "bad", Intent: resolution.IntentCountQuery, When: []config.PatternSet{{All: [][]string{{".*("}}}}},
	}}, nil)
	assert.Error(t, err)

	_, err = NewClassifier(&config.IntentRules{Rules: []config.IntentRule{
		{Name: "punct", Intent: resolution.IntentCountQuery, When: []config.PatternSet{{All: [][]string{{"?!"}}}}},
	}}, nil)
	assert.Error(t, err)
}
