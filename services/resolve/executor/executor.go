// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs validated candidates against the graph store in
// parallel under a fixed worker budget.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
)

var tracer = otel.Tracer("aleutian.cad.executor")

// Report counts candidate outcomes for one execution pass.
type Report struct {
	Executed int
	Empty    int
	Failed   int
	TimedOut int
	Skipped  int
}

// Executor runs candidates concurrently.
//
// Thread Safety: Safe for concurrent use. Each call to Execute owns its
// candidates until it returns.
type Executor struct {
	store            store.GraphStore
	workers          int
	candidateTimeout time.Duration
	logger           *slog.Logger
}

// NewExecutor creates an Executor.
//
// Inputs:
//
//	s - The graph store. Must not be nil.
//	cfg - Worker budget and per-candidate timeout. Zero values take defaults.
//	logger - May be nil.
func NewExecutor(s store.GraphStore, cfg config.ExecutorConfig, logger *slog.Logger) (*Executor, error) {
	if s == nil {
		return nil, errors.New("NewExecutor: store must not be nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWorkers
	}
	if cfg.CandidateTimeout <= 0 {
		cfg.CandidateTimeout = config.DefaultCandidateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:            s,
		workers:          cfg.Workers,
		candidateTimeout: cfg.CandidateTimeout,
		logger:           logger,
	}, nil
}

// Execute runs every validated candidate and records its outcome.
//
// Description:
//
//	At most Workers candidates run at once. Each runs under its own
//	timeout, nested in the request deadline carried by ctx. A candidate
//	still waiting for a worker when the request deadline passes is
//	skipped without touching the store. A panic while running or shaping
//	one candidate marks only that candidate failed. Candidates in any
//	status other than validated are left alone.
//
//	Execute returns only after every worker has finished, so callers may
//	read the candidates without further synchronization.
//
// Inputs:
//
//	ctx - Carries the request deadline.
//	cands - The episode's candidates.
//
// Outputs:
//
//	Report - Outcome counts.
//	error - Wraps resolution.ErrStoreUnreachable. Nothing else is returned.
func (e *Executor) Execute(ctx context.Context, cands []*resolution.Candidate) (Report, error) {
	ctx, span := tracer.Start(ctx, "executor.Execute")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, e.workers)

	for _, c := range cands {
		if c.Status != resolution.StatusValidated {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				skip(c, gctx.Err())
				return nil
			}
			defer func() { <-sem }()

			if err := gctx.Err(); err != nil {
				skip(c, err)
				return nil
			}
			return e.run(gctx, c)
		})
	}

	err := g.Wait()

	var report Report
	for _, c := range cands {
		switch c.Status {
		case resolution.StatusExecuted:
			report.Executed++
			if len(c.Rows) == 0 {
				report.Empty++
			}
		case resolution.StatusFailed:
			report.Failed++
		case resolution.StatusTimedOut:
			report.TimedOut++
		case resolution.StatusSkipped:
			report.Skipped++
		default:
			continue
		}
		executorOutcomesTotal.WithLabelValues(string(c.Status)).Inc()
	}

	span.SetAttributes(
		attribute.Int("executed", report.Executed),
		attribute.Int("failed", report.Failed),
		attribute.Int("timed_out", report.TimedOut),
		attribute.Int("skipped", report.Skipped),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unreachable")
		return report, fmt.Errorf("executor: %w", err)
	}
	return report, nil
}

// run executes one candidate. It returns an error only when the store is
// unreachable.
func (e *Executor) run(ctx context.Context, c *resolution.Candidate) (err error) {
	cctx, cancel := context.WithTimeout(ctx, e.candidateTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		c.Duration = time.Since(start)
		executorCandidateSeconds.WithLabelValues(string(c.Status)).Observe(c.Duration.Seconds())
	}()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			e.logger.Error("panic while executing candidate recovered",
				slog.String("strategy", c.Strategy),
				slog.Any("panic", r),
				slog.String("stack", string(buf[:n])),
			)
			c.Status = resolution.StatusFailed
			c.Rows = nil
			c.Err = fmt.Errorf("panic: %v", r)
			err = nil
		}
	}()

	rows, execErr := e.store.Execute(cctx, c.Query, c.Params)
	switch {
	case execErr == nil:
		if c.Shape != nil {
			rows = c.Shape(rows)
		}
		c.Status = resolution.StatusExecuted
		c.Rows = rows
		return nil

	case resolution.IsStoreUnreachable(execErr):
		c.Status = resolution.StatusFailed
		c.Err = execErr
		return execErr

	case cctx.Err() != nil:
		c.Status = resolution.StatusTimedOut
		c.Err = fmt.Errorf("%w: %v", resolution.ErrCandidateTimeout, cctx.Err())
		return nil
	}

	e.logger.Debug("candidate failed",
		slog.String("strategy", c.Strategy),
		slog.String("error", execErr.Error()),
	)
	c.Status = resolution.StatusFailed
	c.Err = execErr
	return nil
}

func skip(c *resolution.Candidate, cause error) {
	c.Status = resolution.StatusSkipped
	c.Err = fmt.Errorf("%w: not started: %v", resolution.ErrCandidateTimeout, cause)
}
