// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCAD/services/resolve/audit"
	"github.com/AleutianAI/AleutianCAD/services/resolve/candidates"
	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store/storetest"
)

const projectCode = "ECB1-EST-AP-CORP-221-PV32-R00"

type stubTranslator struct {
	query string
	err   error
}

func (s stubTranslator) Translate(context.Context, string) (string, error) {
	return s.query, s.err
}

type recordingSink struct {
	mu       sync.Mutex
	episodes []audit.Episode
}

func (s *recordingSink) Record(_ context.Context, ep audit.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes = append(s.episodes, ep)
	return nil
}

func newTestResolver(t *testing.T, s store.GraphStore, tr candidates.Translator, sink audit.Sink) *Resolver {
	t.Helper()
	cfg, err := config.GetResolverConfig(context.Background())
	require.NoError(t, err)

	r, err := New(context.Background(), Options{Config: cfg, Store: s, Translator: tr, Audit: sink})
	require.NoError(t, err)
	return r
}

func newResolverWithDeadline(t *testing.T, d time.Duration, s store.GraphStore, tr candidates.Translator, sink audit.Sink) *Resolver {
	t.Helper()
	base, err := config.GetResolverConfig(context.Background())
	require.NoError(t, err)
	cfg := *base
	cfg.RequestTimeout = d

	r, err := New(context.Background(), Options{Config: &cfg, Store: s, Translator: tr, Audit: sink})
	require.NoError(t, err)
	return r
}

// hangingTranslator answers only when its context ends.
type hangingTranslator struct{}

func (hangingTranslator) Translate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// stalledValidateStore never finishes a dry run before its context ends.
type stalledValidateStore struct {
	storetest.Fake
}

func (s *stalledValidateStore) Validate(ctx context.Context, _ string, _ map[string]any) error {
	<-ctx.Done()
	return ctx.Err()
}

func ask(t *testing.T, r *Resolver, text string) *resolution.Result {
	t.Helper()
	res, err := r.Resolve(context.Background(), resolution.NewQuestion(text, ""))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

var readOnlyTranslation = stubTranslator{query: "MATCH (a:Annotation) RETURN a.text AS text LIMIT 5"}

func TestResolve_ProjectName(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "b.name IS NOT NULL", Rows: []resolution.Row{{"name": projectCode}}},
	}}
	sink := &recordingSink{}
	r := newTestResolver(t, fake, readOnlyTranslation, sink)

	res := ask(t, r, "Qual o nome do projeto?")

	assert.Equal(t, resolution.IntentProjectInfo, res.Interpretation.DetectedIntent)
	require.NotNil(t, res.PrimaryResult)
	assert.Equal(t, "building_name", res.PrimaryResult.Strategy)
	assert.Equal(t, []resolution.Row{{"name": projectCode}}, res.PrimaryResult.Results)
	assert.False(t, res.Degraded)
	assert.Equal(t, "pt", res.Language)
	assert.NotEmpty(t, res.EpisodeID)

	require.Len(t, sink.episodes, 1)
	ep := sink.episodes[0]
	assert.True(t, ep.Answered)
	assert.Equal(t, "building_name", ep.PrimaryStrategy)
	assert.Equal(t, res.EpisodeID.String(), ep.ID)
}

func TestResolve_ScaleFromAnnotation(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "CONTAINS 'escala'", Rows: []resolution.Row{{"text": "PLANTA BAIXA TÉRREO - ESC: 1:1000"}}},
	}}
	r := newTestResolver(t, fake, readOnlyTranslation, nil)

	res := ask(t, r, "Qual a escala do projeto?")

	assert.Equal(t, resolution.IntentScaleInfo, res.Interpretation.DetectedIntent)
	require.NotNil(t, res.PrimaryResult)
	assert.Equal(t, "annotation_scale_notation", res.PrimaryResult.Strategy)
	require.NotEmpty(t, res.PrimaryResult.Results)
	assert.Equal(t, "1:1000", res.PrimaryResult.Results[0]["scale"])
}

func TestResolve_NothingFound(t *testing.T) {
	fake := &storetest.Fake{}
	r := newTestResolver(t, fake, readOnlyTranslation, nil)

	res := ask(t, r, "Quantos elevadores existem?")

	assert.Nil(t, res.PrimaryResult)
	assert.False(t, res.Degraded)
	require.NotEmpty(t, res.AlternativeResults)

	for _, alt := range res.AlternativeResults {
		assert.Equal(t, resolution.StatusExecuted, alt.Status, alt.Strategy)
		assert.Empty(t, alt.Results)
		assert.NotNil(t, alt.Results)
		assert.Contains(t, res.Explanation, alt.Strategy)
	}
	assert.Contains(t, res.Explanation, "Não encontrei")
	assert.NotContains(t, res.Explanation, "Erro do sistema")
}

func TestResolve_TranslatorTimeoutIsDegraded(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "b.name IS NOT NULL", Rows: []resolution.Row{{"name": projectCode}}},
	}}
	tr := stubTranslator{err: resolution.NewTranslationError(resolution.TranslationTimeout, context.DeadlineExceeded)}
	r := newTestResolver(t, fake, tr, nil)

	res := ask(t, r, "Qual o nome do projeto?")

	assert.True(t, res.Degraded)
	require.NotNil(t, res.PrimaryResult)
	assert.Equal(t, "building_name", res.PrimaryResult.Strategy)
	for _, alt := range res.AlternativeResults {
		assert.NotEqual(t, resolution.StrategyExternalTranslation, alt.Strategy)
	}
}

func TestResolve_RequestDeadlineCancelsTranslator(t *testing.T) {
	sink := &recordingSink{}
	r := newResolverWithDeadline(t, 50*time.Millisecond, &storetest.Fake{}, hangingTranslator{}, sink)

	start := time.Now()
	res := ask(t, r, "Qual o nome do projeto?")
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, res.Degraded)
	for _, alt := range res.AlternativeResults {
		assert.NotEqual(t, resolution.StrategyExternalTranslation, alt.Strategy)
	}
	require.Len(t, sink.episodes, 1)
	assert.Equal(t, string(resolution.TranslationTimeout), sink.episodes[0].Translator)
	assert.True(t, sink.episodes[0].Degraded)
}

func TestResolve_RequestDeadlineDuringValidationIsNotDegraded(t *testing.T) {
	sink := &recordingSink{}
	r := newResolverWithDeadline(t, 50*time.Millisecond, &stalledValidateStore{}, readOnlyTranslation, sink)

	start := time.Now()
	res := ask(t, r, "Qual o nome do projeto?")
	assert.Less(t, time.Since(start), time.Second)

	assert.False(t, res.Degraded)
	assert.Nil(t, res.PrimaryResult)
	require.NotEmpty(t, res.AlternativeResults)
	var sawTranslator bool
	for _, alt := range res.AlternativeResults {
		assert.Equal(t, resolution.StatusSkipped, alt.Status, alt.Strategy)
		if alt.Strategy == resolution.StrategyExternalTranslation {
			sawTranslator = true
		}
	}
	assert.True(t, sawTranslator, "translator candidate missing from alternatives")

	require.Len(t, sink.episodes, 1)
	ep := sink.episodes[0]
	assert.Equal(t, "ok", ep.Translator)
	assert.Zero(t, ep.Invalid)
	assert.Equal(t, ep.Candidates, ep.Skipped)
}

func TestResolve_TranslatorDisabledIsDegraded(t *testing.T) {
	r := newTestResolver(t, &storetest.Fake{}, nil, nil)
	assert.False(t, r.TranslatorEnabled())

	res := ask(t, r, "Qual o nome do projeto?")
	assert.True(t, res.Degraded)
}

func TestResolve_MutatingTranslationIsRejected(t *testing.T) {
	fake := &storetest.Fake{}
	r := newTestResolver(t, fake, stubTranslator{query: "MATCH (n) DETACH DELETE n"}, nil)

	res := ask(t, r, "Qual o nome do projeto?")

	assert.True(t, res.Degraded)
	var found bool
	for _, alt := range res.AlternativeResults {
		if alt.Strategy == resolution.StrategyExternalTranslation {
			found = true
			assert.Equal(t, resolution.StatusInvalid, alt.Status)
			assert.NotEmpty(t, alt.Error)
		}
	}
	assert.True(t, found, "translator candidate missing from alternatives")
	for _, q := range fake.Executed() {
		assert.NotContains(t, q, "DELETE")
	}
}

func TestResolve_SpecificTemplateWinsRegardlessOfSpeed(t *testing.T) {
	for i := 0; i < 3; i++ {
		fake := &storetest.Fake{Responses: []storetest.Response{
			{Match: "b.name IS NOT NULL", Rows: []resolution.Row{{"name": projectCode}}, Delay: 30 * time.Millisecond},
			{Match: "'empreendimento'", Rows: []resolution.Row{{"project_info": "EMPREENDIMENTO CORPORATIVO TORRE A"}}},
		}}
		r := newTestResolver(t, fake, readOnlyTranslation, nil)

		res := ask(t, r, "Qual o nome do projeto?")
		require.NotNil(t, res.PrimaryResult)
		assert.Equal(t, "building_name", res.PrimaryResult.Strategy)
		assert.Equal(t, "project_annotations", res.AlternativeResults[0].Strategy)
	}
}

func TestResolve_StoreUnreachableIsFatal(t *testing.T) {
	sink := &recordingSink{}
	r := newTestResolver(t, &storetest.Fake{Unreachable: true}, readOnlyTranslation, sink)

	res, err := r.Resolve(context.Background(), resolution.NewQuestion("Qual o nome do projeto?", ""))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, resolution.IsStoreUnreachable(err))
	assert.Empty(t, sink.episodes)
}

func TestResolve_EnglishQuestion(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "b.name IS NOT NULL", Rows: []resolution.Row{{"name": projectCode}}},
	}}
	r := newTestResolver(t, fake, readOnlyTranslation, nil)

	res := ask(t, r, "What is the name of the project?")
	assert.Equal(t, "en", res.Language)
	assert.True(t, strings.HasPrefix(res.Explanation, "I interpreted your question as: project information."))
}

func TestResolve_ProjectCodeLookupRanksFirst(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "CONTAINS $code", Rows: []resolution.Row{{"text": projectCode + " - TERMINAL", "layer": "TEXTO"}}},
		{Match: "b.name IS NOT NULL", Rows: []resolution.Row{{"name": "Aeroporto"}}},
	}}
	r := newTestResolver(t, fake, readOnlyTranslation, nil)

	res := ask(t, r, "Do que trata o "+projectCode+"?")
	require.NotNil(t, res.PrimaryResult)
	assert.Equal(t, "project_code_lookup", res.PrimaryResult.Strategy)
	assert.Contains(t, res.Interpretation.SemanticTerms, "project_code")

	var params map[string]any
	for _, c := range fake.Calls() {
		if c.Op == "execute" && strings.Contains(c.Query, "$code") {
			params = c.Params
		}
	}
	assert.Equal(t, map[string]any{"code": projectCode}, params)
}

func TestSettle_MarksUnfinishedCandidatesSkipped(t *testing.T) {
	cands := []*resolution.Candidate{
		{Strategy: "done", Status: resolution.StatusExecuted},
		{Strategy: "stuck_validated", Status: resolution.StatusValidated},
		{Strategy: "stuck_pending", Status: resolution.StatusPending},
	}
	settle(cands, slog.New(slog.DiscardHandler))

	assert.Equal(t, resolution.StatusExecuted, cands[0].Status)
	assert.NoError(t, cands[0].Err)
	for _, c := range cands[1:] {
		assert.Equal(t, resolution.StatusSkipped, c.Status, c.Strategy)
		assert.ErrorIs(t, c.Err, resolution.ErrCandidateTimeout)
		assert.True(t, c.Status.Terminal())
	}
}

func TestNew_RequiresConfigAndStore(t *testing.T) {
	_, err := New(context.Background(), Options{Store: &storetest.Fake{}})
	assert.Error(t, err)

	cfg, err := config.GetResolverConfig(context.Background())
	require.NoError(t, err)
	_, err = New(context.Background(), Options{Config: cfg})
	assert.Error(t, err)
}
