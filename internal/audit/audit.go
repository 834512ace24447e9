// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit persists a small history of graph-reload events to an
// embedded key-value store, so an operator can answer "when did the
// knowledge packs last change, and did it succeed" without grepping logs.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Entry is one recorded reload attempt.
type Entry struct {
	At       time.Time `json:"at"`
	PacksDir string    `json:"packs_dir"`
	Nodes    int       `json:"nodes"`
	Edges    int       `json:"edges"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
}

// Log is an append-only, size-bounded history of reload Entries.
type Log struct {
	db      *badger.DB
	maxKept int
}

// Open opens (or creates) a badger store rooted at dir. maxKept bounds how
// many entries Recent will ever need to scan; Record prunes older keys
// past that bound.
func Open(dir string, maxKept int) (*Log, error) {
	if maxKept <= 0 {
		maxKept = 500
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return &Log{db: db, maxKept: maxKept}, nil
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends an Entry keyed by a monotonically increasing, sortable
// timestamp so iteration order is chronological.
func (l *Log) Record(e Entry) error {
	key := entryKey(e.At)
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	l.prune()
	return nil
}

// Recent returns up to n entries, most recent first.
func (l *Log) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true})
		defer it.Close()
		for it.Rewind(); it.Valid() && len(entries) < n; it.Next() {
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: read: %w", err)
	}
	return entries, nil
}

// prune drops the oldest keys once the store exceeds maxKept entries. Best
// effort: a failure here never blocks Record's caller.
func (l *Log) prune() {
	var keys [][]byte
	_ = l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, k)
		}
		return nil
	})
	if len(keys) <= l.maxKept {
		return
	}
	excess := keys[:len(keys)-l.maxKept]
	_ = l.db.Update(func(txn *badger.Txn) error {
		for _, k := range excess {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func entryKey(at time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))
	return buf
}
