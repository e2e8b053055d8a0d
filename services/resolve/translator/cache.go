// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package translator

// Storage layout:
//
//	translate/cypher/v1/{key}  ->  gob-encoded CacheEntry, TTL 7 days by default
//
// The key hashes the model, the rendered system prompt and the normalized
// question, so changing any of them makes old entries unreachable.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/AleutianCAD/services/storage/badger"
)

// CacheKeyPrefix is prepended to every translation cache key.
const CacheKeyPrefix = "translate/cypher/v1/"

// DefaultCacheTTL is the lifetime of a cached translation.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheEntry is one stored translation.
type CacheEntry struct {
	Question string
	Model    string
	Query    string
	StoredAt time.Time
}

// CacheStore persists successful translations.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CacheStore interface {
	// Load returns (nil, nil) on a miss.
	Load(ctx context.Context, key string) (*CacheEntry, error)

	// Save stores entry under key. Failures are non-fatal to callers.
	Save(ctx context.Context, key string, entry CacheEntry) error
}

// CacheKey derives the cache key for a translation request.
func CacheKey(model, systemPrompt, normalizedQuestion string) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", model)
	fmt.Fprintf(h, "prompt=%s\n", systemPrompt)
	fmt.Fprintf(h, "question=%s\n", normalizedQuestion)
	return hex.EncodeToString(h.Sum(nil))
}

var errCacheMiss = errors.New("cache miss")

// BadgerCacheStore implements CacheStore on BadgerDB with native TTL.
//
// The caller owns the DB lifecycle.
//
// Thread Safety: Safe for concurrent use.
type BadgerCacheStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerCacheStore creates a store over db. A ttl of zero uses DefaultCacheTTL.
func NewBadgerCacheStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) (*BadgerCacheStore, error) {
	if db == nil {
		return nil, errors.New("NewBadgerCacheStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerCacheStore{db: db, ttl: ttl, logger: logger}, nil
}

// Load implements CacheStore.
func (s *BadgerCacheStore) Load(ctx context.Context, key string) (*CacheEntry, error) {
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(CacheKeyPrefix + key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("translation cache: miss", slog.String("key", shortKey(key)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("translation cache load: %w", err)
	}

	entry, err := DecodeCacheEntry(raw)
	if err != nil {
		return nil, fmt.Errorf("translation cache decode: %w", err)
	}
	s.logger.Debug("translation cache: hit", slog.String("key", shortKey(key)))
	return entry, nil
}

// Save implements CacheStore.
func (s *BadgerCacheStore) Save(ctx context.Context, key string, entry CacheEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("translation cache encode: %w", err)
	}
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry([]byte(CacheKeyPrefix+key), buf.Bytes()).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("translation cache save: %w", err)
	}
	return nil
}

// DecodeCacheEntry decodes a stored value. Shared with the dump tool.
func DecodeCacheEntry(raw []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8] + "..."
	}
	return k
}
