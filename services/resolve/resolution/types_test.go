// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntent_Valid(t *testing.T) {
	for _, i := range AllIntents {
		assert.True(t, i.Valid(), i)
	}
	assert.False(t, Intent("legend_search").Valid())
	assert.False(t, Intent("").Valid())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusValidated.Terminal())
	for _, s := range []Status{StatusInvalid, StatusExecuted, StatusFailed, StatusTimedOut, StatusSkipped} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestTranslationError_Unwrap(t *testing.T) {
	err := NewTranslationError(TranslationTimeout, context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrTranslatorUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "translation timeout: context deadline exceeded", err.Error())

	var te *TranslationError
	require.True(t, errors.As(error(err), &te))
	assert.Equal(t, TranslationTimeout, te.Kind)

	bare := NewTranslationError(TranslationEmpty, nil)
	assert.True(t, errors.Is(bare, ErrTranslatorUnavailable))
	assert.Equal(t, "translation empty", bare.Error())
}

func TestMutatingQueryIsCandidateInvalid(t *testing.T) {
	assert.True(t, errors.Is(ErrMutatingQuery, ErrCandidateInvalid))
}

func TestResult_PrimaryAbsentInJSON(t *testing.T) {
	res := Result{
		Interpretation:     Interpretation{DetectedIntent: IntentScaleInfo, SemanticTerms: []string{"escala"}},
		AlternativeResults: []CandidateResult{},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	_, present := decoded["primary_result"]
	assert.False(t, present, "absent primary result must not be serialized")
	assert.Contains(t, decoded, "alternative_results")
	assert.Equal(t, false, decoded["degraded"])
}

func TestToCandidateResult_EmptyRowsSerializeAsArray(t *testing.T) {
	c := &Candidate{Strategy: "building_name", Status: StatusFailed, Err: errors.New("boom")}
	cr := ToCandidateResult(c)

	assert.NotNil(t, cr.Results)
	assert.Len(t, cr.Results, 0)
	assert.Equal(t, "boom", cr.Error)
	assert.Equal(t, StatusFailed, cr.Status)
}
