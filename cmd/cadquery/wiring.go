// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianCAD/services/llm"
	"github.com/AleutianAI/AleutianCAD/services/resolve"
	"github.com/AleutianAI/AleutianCAD/services/resolve/audit"
	"github.com/AleutianAI/AleutianCAD/services/resolve/candidates"
	"github.com/AleutianAI/AleutianCAD/services/resolve/config"
	"github.com/AleutianAI/AleutianCAD/services/resolve/store"
	"github.com/AleutianAI/AleutianCAD/services/resolve/translator"
	badgerstore "github.com/AleutianAI/AleutianCAD/services/storage/badger"
)

// app owns every long-lived collaborator built for one command.
type app struct {
	cfg      *config.ResolverConfig
	secrets  *config.Secrets
	store    *store.Neo4jStore
	resolver *resolve.Resolver

	closers []func(context.Context) error
}

// loadConfig reads the embedded config (or --config) and applies the
// environment overrides.
func loadConfig(ctx context.Context) (*config.ResolverConfig, error) {
	var (
		base *config.ResolverConfig
		err  error
	)
	if configPath != "" {
		data, rerr := os.ReadFile(configPath)
		if rerr != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, rerr)
		}
		base, err = config.LoadResolverConfig(ctx, data)
	} else {
		base, err = config.GetResolverConfig(ctx)
	}
	if err != nil {
		return nil, err
	}
	return config.ApplyEnv(base, os.Getenv)
}

// newApp connects to the store. The resolver is only built by withResolver.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, secrets: config.LoadSecretsFromEnv(os.Getenv)}

	err = a.secrets.With(config.SecretNeo4jPassword, func(password string) error {
		s, serr := store.NewNeo4jStore(ctx, store.Neo4jConfig{
			URI:            cfg.Store.URI,
			User:           cfg.Store.User,
			Password:       password,
			Database:       cfg.Store.Database,
			MaxConnections: cfg.Store.MaxConnections,
			Logger:         slog.Default(),
		})
		if serr != nil {
			return serr
		}
		a.store = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to graph store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)
	return a, nil
}

// withResolver builds the translator, audit sink and resolver.
func (a *app) withResolver(ctx context.Context) error {
	tr, err := a.newTranslator()
	if err != nil {
		return err
	}

	sink, err := a.newAuditSink()
	if err != nil {
		return err
	}

	r, err := resolve.New(ctx, resolve.Options{
		Config:     a.cfg,
		Store:      a.store,
		Translator: tr,
		Audit:      sink,
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}
	a.resolver = r
	return nil
}

// newTranslator returns nil when translation is disabled or has no
// credentials. The resolver then runs on templates alone and reports degraded.
func (a *app) newTranslator() (candidates.Translator, error) {
	tcfg := a.cfg.Translator
	if !tcfg.Enabled {
		slog.Info("translator disabled by config")
		return nil, nil
	}
	if tcfg.Provider == llm.ProviderOpenAI && !a.secrets.Has(config.SecretOpenAIKey) {
		slog.Warn("translator disabled: OPENAI_API_KEY not set")
		return nil, nil
	}

	var completer llm.Completer
	err := a.secrets.With(config.SecretOpenAIKey, func(key string) error {
		c, cerr := llm.New(llm.Options{
			Provider: tcfg.Provider,
			Model:    tcfg.Model,
			BaseURL:  tcfg.BaseURL,
			APIKey:   key,
		})
		completer = c
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", tcfg.Provider, err)
	}

	schema, err := config.GetGraphSchema(context.Background())
	if err != nil {
		return nil, err
	}

	t, err := translator.New(completer, schema, tcfg, translator.Options{
		Cache:  a.openTranslationCache(),
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// openTranslationCache opens the Badger cache. A cache that cannot be
// opened disables caching, never translation.
func (a *app) openTranslationCache() translator.CacheStore {
	dir := translationCacheDir(a.cfg.Translator.CacheDir)
	if dir == "" {
		return nil
	}
	db, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	if err != nil {
		slog.Warn("translation cache unavailable, caching disabled",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
		return nil
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	cache, err := translator.NewBadgerCacheStore(db, a.cfg.Translator.CacheTTL, slog.Default())
	if err != nil {
		slog.Warn("translation cache unavailable", slog.String("error", err.Error()))
		return nil
	}
	slog.Info("translation cache opened", slog.String("path", dir))
	return cache
}

// translationCacheDir falls back to ~/.aleutian/cache/translate.
func translationCacheDir(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aleutian", "cache", "translate")
}

func (a *app) newAuditSink() (audit.Sink, error) {
	acfg := a.cfg.Audit
	if acfg.InfluxURL == "" {
		return audit.NewLogSink(slog.Default()), nil
	}

	var sink *audit.InfluxSink
	err := a.secrets.With(config.SecretInfluxToken, func(token string) error {
		s, serr := audit.NewInfluxSink(audit.InfluxConfig{
			URL:    acfg.InfluxURL,
			Token:  token,
			Org:    acfg.InfluxOrg,
			Bucket: acfg.InfluxBucket,
		})
		sink = s
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		sink.Close()
		return nil
	})
	slog.Info("auditing episodes to InfluxDB",
		slog.String("url", acfg.InfluxURL),
		slog.String("bucket", acfg.InfluxBucket),
	)
	return sink, nil
}

// Close releases everything in reverse order of creation and wipes secrets.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	config.PurgeSecrets()
	return errors.Join(errs...)
}
