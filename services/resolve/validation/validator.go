// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation rejects candidate queries that could write to the
// graph or that the store cannot plan.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/cypher"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
)

var tracer = otel.Tracer("aleutian.cad.validation")

// Rejection reasons, used as metric labels.
const (
	ReasonMutating       = "mutating"
	ReasonMultiStatement = "multi_statement"
	ReasonNotRead        = "not_read"
	ReasonStore          = "store"
	ReasonTimeout        = "timeout"
)

// Report summarizes one validation pass.
type Report struct {
	Validated int
	Invalid   int

	// Skipped counts candidates the request deadline cut off before a
	// verdict. They are not rejections.
	Skipped int

	// Rejections counts invalid candidates per reason.
	Rejections map[string]int
}

// Validator checks candidates structurally and with a store dry run.
//
// Thread Safety: Safe for concurrent use.
type Validator struct {
	store   store.GraphStore
	timeout time.Duration
	workers int
	logger  *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(s store.GraphStore, cfg config.ValidationConfig, logger *slog.Logger) (*Validator, error) {
	if s == nil {
		return nil, errors.New("NewValidator: store must not be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultValidationTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{store: s, timeout: cfg.Timeout, workers: cfg.Workers, logger: logger}, nil
}

// Validate marks every pending candidate validated or invalid.
//
// Description:
//
//	The structural guard runs first and is final: a query that contains a
//	write clause or more than one statement is invalid whatever the store
//	says. Survivors are dry-run against the store concurrently, each under
//	its own timeout. One invalid candidate never affects the others.
//
// Inputs:
//
//	ctx - The request context.
//	cands - Candidates to check. Only pending ones are touched.
//
// Outputs:
//
//	Report - Counts for the pass.
//	error - Wraps resolution.ErrStoreUnreachable when the store is down.
//	Nothing else is returned as an error.
func (v *Validator) Validate(ctx context.Context, cands []*resolution.Candidate) (Report, error) {
	ctx, span := tracer.Start(ctx, "validation.Validate")
	defer span.End()

	reasons := make([]string, len(cands))
	var dryRun []int
	for i, c := range cands {
		if c.Status != resolution.StatusPending {
			continue
		}
		if reason, err := Structural(c.Query); err != nil {
			c.Status = resolution.StatusInvalid
			c.Err = err
			reasons[i] = reason
			continue
		}
		dryRun = append(dryRun, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, i := range dryRun {
		c := cands[i]
		g.Go(func() error {
			reason, err := v.dryRun(gctx, c)
			if resolution.IsStoreUnreachable(err) {
				return err
			}
			reasons[i] = reason
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unreachable")
		return Report{}, fmt.Errorf("validation: %w", err)
	}

	report := Report{Rejections: map[string]int{}}
	for i, c := range cands {
		switch {
		case c.Status == resolution.StatusValidated:
			report.Validated++
		case c.Status == resolution.StatusSkipped:
			report.Skipped++
		case reasons[i] != "":
			report.Invalid++
			report.Rejections[reasons[i]]++
			validationRejectionsTotal.WithLabelValues(reasons[i]).Inc()
			v.logger.Debug("candidate rejected",
				slog.String("strategy", c.Strategy),
				slog.String("reason", reasons[i]),
				slog.String("error", c.ErrorText()),
			)
		}
	}

	span.SetAttributes(
		attribute.Int("validated", report.Validated),
		attribute.Int("invalid", report.Invalid),
		attribute.Int("skipped", report.Skipped),
	)
	return report, nil
}

// dryRun validates one candidate against the store and sets its status.
// The returned reason is empty when the candidate is valid or was skipped
// because the request context ended first.
func (v *Validator) dryRun(ctx context.Context, c *resolution.Candidate) (string, error) {
	if ctx.Err() != nil {
		skip(c, ctx.Err())
		return "", nil
	}
	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	err := v.store.Validate(cctx, c.Query, c.Params)
	switch {
	case err == nil:
		c.Status = resolution.StatusValidated
		return "", nil
	case resolution.IsStoreUnreachable(err):
		return "", err
	case ctx.Err() != nil:
		// The request ended, not the candidate's own budget.
		skip(c, ctx.Err())
		return "", nil
	case errors.Is(err, context.DeadlineExceeded) || cctx.Err() != nil:
		c.Status = resolution.StatusInvalid
		c.Err = fmt.Errorf("%w: validation timed out after %s", resolution.ErrCandidateInvalid, v.timeout)
		return ReasonTimeout, nil
	}
	c.Status = resolution.StatusInvalid
	c.Err = fmt.Errorf("%w: %v", resolution.ErrCandidateInvalid, err)
	return ReasonStore, nil
}

func skip(c *resolution.Candidate, cause error) {
	c.Status = resolution.StatusSkipped
	c.Err = fmt.Errorf("%w: validation interrupted: %v", resolution.ErrCandidateTimeout, cause)
}

// Structural applies the checks that need no store.
//
// Outputs:
//
//	string - The rejection reason, empty when the query passes.
//	error - Wraps resolution.ErrCandidateInvalid (and ErrMutatingQuery for
//	write clauses) when the query is rejected.
func Structural(query string) (string, error) {
	if kw, ok := cypher.MutatingClause(query); ok {
		return ReasonMutating, fmt.Errorf("%w: %s", resolution.ErrMutatingQuery, kw)
	}
	if cypher.MultipleStatements(query) {
		return ReasonMultiStatement, fmt.Errorf("%w: multiple statements", resolution.ErrCandidateInvalid)
	}
	if !cypher.StartsWithReadClause(query) {
		return ReasonNotRead, fmt.Errorf("%w: query must start with a read clause", resolution.ErrCandidateInvalid)
	}
	return "", nil
}
