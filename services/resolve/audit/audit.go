// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit records one summary per finished resolution episode.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Measurement is the Influx measurement episodes are written to.
const Measurement = "resolution_episodes"

// Episode summarizes one resolution.
type Episode struct {
	ID              string
	Intent          string
	Language        string
	Degraded        bool
	FellBack        bool
	Answered        bool
	PrimaryStrategy string
	// Translator is "ok", "disabled" or the translation failure kind.
	Translator      string
	Candidates      int
	Invalid         int
	Executed        int
	Empty           int
	Failed          int
	TimedOut        int
	Skipped         int
	Latency         time.Duration
	FinishedAt      time.Time
}

// Sink receives episode summaries. Record errors never affect the answer.
type Sink interface {
	Record(ctx context.Context, ep Episode) error
}

// =============================================================================
// Log sink
// =============================================================================

// LogSink writes episodes as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, ep Episode) error {
	s.logger.InfoContext(ctx, "resolution episode",
		slog.String("episode_id", ep.ID),
		slog.String("intent", ep.Intent),
		slog.String("language", ep.Language),
		slog.Bool("answered", ep.Answered),
		slog.Bool("degraded", ep.Degraded),
		slog.String("primary_strategy", ep.PrimaryStrategy),
		slog.String("translator", ep.Translator),
		slog.Int("candidates", ep.Candidates),
		slog.Int("invalid", ep.Invalid),
		slog.Int("executed", ep.Executed),
		slog.Int("failed", ep.Failed),
		slog.Int("timed_out", ep.TimedOut),
		slog.Int("skipped", ep.Skipped),
		slog.Duration("latency", ep.Latency),
	)
	return nil
}

// =============================================================================
// Influx sink
// =============================================================================

// InfluxConfig locates the Influx bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes each episode as one point.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink creates an InfluxSink. The connection is not checked here.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("NewInfluxSink: url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Record implements Sink.
func (s *InfluxSink) Record(ctx context.Context, ep Episode) error {
	p := influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("intent", ep.Intent).
		AddTag("language", ep.Language).
		AddTag("degraded", boolTag(ep.Degraded)).
		AddTag("answered", boolTag(ep.Answered)).
		AddField("episode_id", ep.ID).
		AddField("fell_back", ep.FellBack).
		AddField("primary_strategy", ep.PrimaryStrategy).
		AddField("translator", ep.Translator).
		AddField("candidates", ep.Candidates).
		AddField("invalid", ep.Invalid).
		AddField("executed", ep.Executed).
		AddField("empty", ep.Empty).
		AddField("failed", ep.Failed).
		AddField("timed_out", ep.TimedOut).
		AddField("skipped", ep.Skipped).
		AddField("latency_ms", ep.Latency.Milliseconds()).
		SetTime(ep.FinishedAt)

	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
