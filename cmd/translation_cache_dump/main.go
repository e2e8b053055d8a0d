// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// translation_cache_dump inspects the persisted question-to-Cypher cache.
//
// The cadquery translator stores every successful translation in BadgerDB
// so repeated questions skip the model call. This tool opens the cache
// read-only and prints each entry: key, model, question, TTL remaining and
// the cached query.
//
// Usage:
//
//	translation_cache_dump [--path /path/to/translate/cache] [--grep text]
//
// If --path is not given, reads TRANSLATION_CACHE_DIR from the environment,
// falling back to ~/.aleutian/cache/translate/.
//
// Exit codes:
//
//	0 success, including an empty or missing cache
//	1 error opening or reading the database
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianCAD/services/resolve/translator"
	badgerstore "github.com/AleutianAI/AleutianCAD/services/storage/badger"
)

// entry is one decoded cache record.
type entry struct {
	key       string
	expiresAt time.Time
	hasExpiry bool
	rawSize   int
	value     *translator.CacheEntry
	decodeErr error
}

func main() {
	pathFlag := flag.String("path", "", "Path to the translation BadgerDB directory (overrides TRANSLATION_CACHE_DIR)")
	grepFlag := flag.String("grep", "", "Only show entries whose question contains this text (case-insensitive)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("TRANSLATION_CACHE_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".aleutian", "cache", "translate")
	}

	fmt.Printf("Translation cache path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. No translation has been cached yet.")
		os.Exit(0)
	}

	cfg := badgerstore.DefaultConfig(dbPath)
	cfg.ReadOnly = true
	cfg.GCInterval = 0
	db, err := badgerstore.Open(cfg)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	entries, err := collectEntries(context.Background(), db, *grepFlag)
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}
	printEntries(os.Stdout, entries, time.Now())
}

// collectEntries reads every record under translator.CacheKeyPrefix,
// optionally keeping only questions that contain filter.
func collectEntries(ctx context.Context, db *badgerstore.DB, filter string) ([]entry, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))

	var entries []entry
	err := db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(translator.CacheKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			e := entry{key: strings.TrimPrefix(string(item.Key()), translator.CacheKeyPrefix)}

			// ExpiresAt is Unix seconds, 0 means no expiry.
			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				e.hasExpiry = true
				e.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			e.rawSize = len(raw)

			e.value, e.decodeErr = translator.DecodeCacheEntry(raw)
			if filter != "" && (e.value == nil || !strings.Contains(strings.ToLower(e.value.Question), filter)) {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest first; undecodable entries last.
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].value, entries[j].value
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.StoredAt.After(b.StoredAt)
	})
	return entries, nil
}

func printEntries(w io.Writer, entries []entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "\nNo translation cache entries found.")
		return
	}

	fmt.Fprintf(w, "\nFound %d translation cache entr%s:\n", len(entries), plural(len(entries), "y", "ies"))
	fmt.Fprintln(w, strings.Repeat("─", 80))

	models := map[string]int{}
	for i, e := range entries {
		fmt.Fprintf(w, "\n[%d] Key:      %s\n", i+1, e.key)

		if e.hasExpiry {
			remaining := e.expiresAt.Sub(now)
			if remaining < 0 {
				fmt.Fprintf(w, "    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Fprintf(w, "    TTL:      %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					e.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Fprintf(w, "    TTL:      no expiry set\n")
		}
		fmt.Fprintf(w, "    Size:     %s\n", formatBytes(e.rawSize))

		if e.decodeErr != nil {
			fmt.Fprintf(w, "    DECODE ERROR: %v\n", e.decodeErr)
			continue
		}

		v := e.value
		models[v.Model]++
		fmt.Fprintf(w, "    Model:    %s\n", v.Model)
		fmt.Fprintf(w, "    Stored:   %s\n", v.StoredAt.Format(time.RFC3339))
		fmt.Fprintf(w, "    Question: %s\n", v.Question)
		fmt.Fprintf(w, "    Query:\n")
		for _, line := range strings.Split(strings.TrimSpace(v.Query), "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}

	names := make([]string, 0, len(models))
	for m := range models {
		names = append(names, m)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, m := range names {
		parts[i] = fmt.Sprintf("%s=%d", m, models[m])
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("─", 80))
	fmt.Fprintf(w, "Summary: %d entr%s, models: %s\n",
		len(entries), plural(len(entries), "y", "ies"), strings.Join(parts, ", "))
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
