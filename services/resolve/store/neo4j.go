// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

var storeTracer = otel.Tracer("aleutian.cad.store")

// Neo4jConfig configures a Neo4jStore.
type Neo4jConfig struct {
	URI            string
	User           string
	Password       string
	Database       string
	MaxConnections int
	Logger         *slog.Logger
}

// Neo4jStore is a GraphStore backed by a Neo4j server.
//
// Description:
//
//	Every call opens a read-mode session, so the server rejects writes even
//	if one slipped past validation. Validate prefixes the query with
//	EXPLAIN, which plans the query without touching data.
//
// Thread Safety: Safe for concurrent use; the driver pools connections.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
//
// Inputs:
//
//	ctx - Bounds the connectivity check.
//	cfg - Connection settings. URI is required.
//
// Outputs:
//
//	*Neo4jStore - The connected store. Close it on shutdown.
//	error - Wraps resolution.ErrStoreUnreachable when the server cannot be
//	reached.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("NewNeo4jStore: uri must not be empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			if cfg.MaxConnections > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnections
			}
		})
	if err != nil {
		return nil, fmt.Errorf("NewNeo4jStore: creating driver: %w", err)
	}

	s := &Neo4jStore{driver: driver, database: cfg.Database, logger: logger}
	if err := s.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("NewNeo4jStore: %w", err)
	}

	logger.Info("graph store connected",
		slog.String("uri", cfg.URI),
		slog.String("database", cfg.Database),
	)
	return s, nil
}

// Ping verifies the server is reachable.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", resolution.ErrStoreUnreachable, err)
	}
	return nil
}

// Close releases all pooled connections.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Validate plans query with EXPLAIN.
func (s *Neo4jStore) Validate(ctx context.Context, query string, params map[string]any) error {
	ctx, span := storeTracer.Start(ctx, "store.Validate")
	defer span.End()

	_, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "EXPLAIN "+query, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		err = classifyError(ctx, "validate", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "validate failed")
		return err
	}
	return nil
}

// Execute runs query and converts every record to a Row.
func (s *Neo4jStore) Execute(ctx context.Context, query string, params map[string]any) ([]resolution.Row, error) {
	ctx, span := storeTracer.Start(ctx, "store.Execute")
	defer span.End()

	start := time.Now()
	out, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]resolution.Row, 0, len(records))
		for _, rec := range records {
			row := make(resolution.Row, len(rec.Keys))
			for k, v := range rec.AsMap() {
				row[k] = convertValue(v)
			}
			rows = append(rows, row)
		}
		return rows, nil
	})
	if err != nil {
		err = classifyError(ctx, "execute", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute failed")
		return nil, err
	}

	rows, _ := out.([]resolution.Row)
	span.SetAttributes(
		attribute.Int("row_count", len(rows)),
		attribute.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return rows, nil
}

func (s *Neo4jStore) read(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			s.logger.Debug("closing session", slog.String("error", err.Error()))
		}
	}()
	return session.ExecuteRead(ctx, work)
}

// classifyError separates deadline, infrastructure and query errors.
func classifyError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%s: %w: %v", op, resolution.ErrStoreUnreachable, err)
	}
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) && strings.HasPrefix(nerr.Code, "Neo.ClientError.Security.") {
		return fmt.Errorf("%s: %w: %v", op, resolution.ErrStoreUnreachable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// convertValue turns driver graph types into plain JSON-friendly values.
func convertValue(v any) any {
	switch t := v.(type) {
	case dbtype.Node:
		props := make(map[string]any, len(t.Props))
		for k, pv := range t.Props {
			props[k] = convertValue(pv)
		}
		return map[string]any{"labels": t.Labels, "properties": props}
	case dbtype.Relationship:
		props := make(map[string]any, len(t.Props))
		for k, pv := range t.Props {
			props[k] = convertValue(pv)
		}
		return map[string]any{"type": t.Type, "properties": props}
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = convertValue(e)
		}
		return out
	case nil, string, bool, int64, float64, []byte:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return v
}
