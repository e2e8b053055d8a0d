// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest provides a scripted in-memory GraphStore for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// Response scripts the store's answer for queries containing Match.
type Response struct {
	// Match is a substring of the query text. The first matching response wins.
	Match string

	// Rows are returned by Execute.
	Rows []resolution.Row

	// Err is returned by Execute.
	Err error

	// ValidateErr is returned by Validate.
	ValidateErr error

	// Delay is slept before Execute answers, honoring ctx.
	Delay time.Duration
}

// Call records one store invocation.
type Call struct {
	Op     string
	Query  string
	Params map[string]any
}

// Fake is a GraphStore whose answers are scripted by query substring.
//
// Unscripted queries validate and return no rows.
//
// Thread Safety: Safe for concurrent use.
type Fake struct {
	// Responses are consulted in order.
	Responses []Response

	// Unreachable makes every call fail with resolution.ErrStoreUnreachable.
	Unreachable bool

	mu    sync.Mutex
	calls []Call
}

// Validate answers from the script.
func (f *Fake) Validate(ctx context.Context, query string, params map[string]any) error {
	f.record("validate", query, params)
	if f.Unreachable {
		return fmt.Errorf("validate: %w", resolution.ErrStoreUnreachable)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r, ok := f.lookup(query); ok {
		return r.ValidateErr
	}
	return nil
}

// Execute answers from the script after the scripted delay.
func (f *Fake) Execute(ctx context.Context, query string, params map[string]any) ([]resolution.Row, error) {
	f.record("execute", query, params)
	if f.Unreachable {
		return nil, fmt.Errorf("execute: %w", resolution.ErrStoreUnreachable)
	}

	r, ok := f.lookup(query)
	if !ok {
		return nil, ctx.Err()
	}
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return copyRows(r.Rows), nil
}

// Ping fails only when Unreachable is set.
func (f *Fake) Ping(ctx context.Context) error {
	if f.Unreachable {
		return resolution.ErrStoreUnreachable
	}
	return ctx.Err()
}

// Calls returns a snapshot of recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Executed lists the queries passed to Execute, in call order.
func (f *Fake) Executed() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == "execute" {
			out = append(out, c.Query)
		}
	}
	return out
}

func (f *Fake) record(op, query string, params map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Query: query, Params: params})
}

func (f *Fake) lookup(query string) (Response, bool) {
	for _, r := range f.Responses {
		if strings.Contains(query, r.Match) {
			return r, true
		}
	}
	return Response{}, false
}

func copyRows(rows []resolution.Row) []resolution.Row {
	if rows == nil {
		return nil
	}
	out := make([]resolution.Row, len(rows))
	for i, r := range rows {
		row := make(resolution.Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		out[i] = row
	}
	return out
}
