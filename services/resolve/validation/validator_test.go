// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store/storetest"
)

func candidate(strategy, query string) *resolution.Candidate {
	return &resolution.Candidate{ID: strategy, Strategy: strategy, Query: query, Status: resolution.StatusPending}
}

func newTestValidator(t *testing.T, s store.GraphStore) *Validator {
	t.Helper()
	v, err := NewValidator(s, config.ValidationConfig{Timeout: 50 * time.Millisecond, Workers: 2}, nil)
	require.NoError(t, err)
	return v
}

func TestValidate_MixedBatch(t *testing.T) {
	fake := &storetest.Fake{Responses: []storetest.Response{
		{Match: "Unknown", ValidateErr: errors.New("Neo.ClientError.Statement.SyntaxError")},
	}}
	v := newTestValidator(t, fake)

	cands := []*resolution.Candidate{
		candidate("ok", "MATCH (b:Building) RETURN b.name AS name"),
		candidate("write", "MATCH (n) DETACH DELETE n"),
		candidate("two", "MATCH (n) RETURN n; MATCH (m) RETURN m"),
		candidate("syntax", "MATCH (u:Unknown RETURN u"),
		candidate("literal", "MATCH (a:Annotation) WHERE a.text = 'CREATE; SET' RETURN a.text AS text"),
		candidate("not_read", "SHOW DATABASES"),
	}

	report, err := v.Validate(context.Background(), cands)
	require.NoError(t, err)

	want := map[string]resolution.Status{
		"ok":       resolution.StatusValidated,
		"write":    resolution.StatusInvalid,
		"two":      resolution.StatusInvalid,
		"syntax":   resolution.StatusInvalid,
		"literal":  resolution.StatusValidated,
		"not_read": resolution.StatusInvalid,
	}
	for _, c := range cands {
		assert.Equal(t, want[c.Strategy], c.Status, c.Strategy)
	}

	assert.ErrorIs(t, cands[1].Err, resolution.ErrMutatingQuery)
	assert.ErrorIs(t, cands[2].Err, resolution.ErrCandidateInvalid)
	assert.ErrorIs(t, cands[3].Err, resolution.ErrCandidateInvalid)
	assert.Contains(t, cands[3].Err.Error(), "SyntaxError")

	assert.Equal(t, 2, report.Validated)
	assert.Equal(t, 4, report.Invalid)
	assert.Equal(t, map[string]int{
		ReasonMutating: 1, ReasonMultiStatement: 1, ReasonStore: 1, ReasonNotRead: 1,
	}, report.Rejections)

	// Structurally rejected queries never reach the store.
	for _, call := range fake.Calls() {
		assert.False(t, strings.Contains(call.Query, "DELETE"), "mutating query sent to store")
		assert.False(t, strings.Contains(call.Query, "SHOW"), "non-read query sent to store")
	}
}

func TestValidate_StoreUnreachableEscalates(t *testing.T) {
	v := newTestValidator(t, &storetest.Fake{Unreachable: true})

	_, err := v.Validate(context.Background(), []*resolution.Candidate{
		candidate("a", "MATCH (n) RETURN n"),
		candidate("b", "MATCH (m) RETURN m"),
	})
	require.Error(t, err)
	assert.True(t, resolution.IsStoreUnreachable(err))
}

type blockingStore struct {
	storetest.Fake
}

func (b *blockingStore) Validate(ctx context.Context, _ string, _ map[string]any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestValidate_PerCandidateTimeout(t *testing.T) {
	v := newTestValidator(t, &blockingStore{})

	c := candidate("slow", "MATCH (n) RETURN n")
	start := time.Now()
	report, err := v.Validate(context.Background(), []*resolution.Candidate{c})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, resolution.StatusInvalid, c.Status)
	assert.ErrorIs(t, c.Err, resolution.ErrCandidateInvalid)
	assert.Equal(t, 1, report.Rejections[ReasonTimeout])
}

func TestValidate_RequestDeadlineSkipsInsteadOfRejecting(t *testing.T) {
	v := newTestValidator(t, &blockingStore{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	cands := []*resolution.Candidate{
		candidate("a", "MATCH (n) RETURN n"),
		candidate("b", "MATCH (f:Floor) RETURN f"),
		candidate("c", "MATCH (b:Building) RETURN b"),
	}
	report, err := v.Validate(ctx, cands)
	require.NoError(t, err)

	for _, c := range cands {
		assert.Equal(t, resolution.StatusSkipped, c.Status, c.Strategy)
		assert.ErrorIs(t, c.Err, resolution.ErrCandidateTimeout)
		assert.NotErrorIs(t, c.Err, resolution.ErrCandidateInvalid)
	}
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.Invalid)
	assert.Empty(t, report.Rejections)
}

func TestValidate_CancelledContextSkipsWithoutStoreCall(t *testing.T) {
	fake := &storetest.Fake{}
	v := newTestValidator(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := candidate("a", "MATCH (n) RETURN n")
	report, err := v.Validate(ctx, []*resolution.Candidate{c})
	require.NoError(t, err)
	assert.Equal(t, resolution.StatusSkipped, c.Status)
	assert.ErrorIs(t, c.Err, resolution.ErrCandidateTimeout)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, fake.Calls())
}

func TestValidate_SkipsNonPending(t *testing.T) {
	fake := &storetest.Fake{}
	v := newTestValidator(t, fake)

	done := candidate("done", "MATCH (n) RETURN n")
	done.Status = resolution.StatusExecuted

	report, err := v.Validate(context.Background(), []*resolution.Candidate{done})
	require.NoError(t, err)
	assert.Equal(t, resolution.StatusExecuted, done.Status)
	assert.Zero(t, report.Validated)
	assert.Empty(t, fake.Calls())
}

func TestStructural(t *testing.T) {
	tests := []struct {
		query  string
		reason string
	}{
		{"MATCH (n) RETURN n", ""},
		{"WITH 1 AS x RETURN x", ""},
		{"MATCH (n) SET n.x = 1", ReasonMutating},
		{"MERGE (n:Floor)", ReasonMutating},
		{"MATCH (a:Annotation) INSERT (:Annotation {text: 'x'})", ReasonMutating},
		{"INSERT (:Building {name: 'x'})", ReasonMutating},
		{"LOAD CSV FROM 'x' AS row RETURN row", ReasonMutating},
		{"CALL db.labels()", ReasonMutating},
		{"MATCH (n) RETURN n;", ""},
		{"MATCH (n) RETURN n; RETURN 1", ReasonMultiStatement},
		{"EXPLAIN MATCH (n) RETURN n", ReasonNotRead},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			reason, err := Structural(tt.query)
			assert.Equal(t, tt.reason, reason)
			if tt.reason == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, resolution.ErrCandidateInvalid)
			}
		})
	}
}

func TestNewValidator_RequiresStore(t *testing.T) {
	_, err := NewValidator(nil, config.ValidationConfig{}, nil)
	assert.Error(t, err)
}
