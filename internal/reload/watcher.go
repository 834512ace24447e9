// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reload watches a knowledge-pack directory and atomically swaps
// a fresh graph.Snapshot into a snapshot.Handle whenever its contents
// change (§5 "Reload", §9 "Global engine"). A bad edit never reaches the
// handle: a failed reload is logged and the previously active snapshot
// keeps serving traffic.
package reload

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/physiograph/internal/audit"
	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/internal/snapshot"
	"github.com/AleutianAI/physiograph/pkg/logging"
)

// Options configures a Watcher.
type Options struct {
	// DebounceWindow batches the bursts of events one `git pull` or editor
	// save produces into a single reload.
	DebounceWindow time.Duration
}

// DefaultOptions returns the watcher's sensible defaults.
func DefaultOptions() Options {
	return Options{DebounceWindow: 200 * time.Millisecond}
}

// Watcher hot-reloads the knowledge packs under PacksDir into handle.
type Watcher struct {
	packsDir string
	handle   *snapshot.Handle
	logger   *logging.Logger
	debounce time.Duration

	fsw *fsnotify.Watcher
	log *audit.Log

	mu       sync.Mutex
	watching bool
	done     chan struct{}
}

// WithAudit attaches a reload audit log. Every ReloadNow call, whether
// triggered by the watcher or the /v1/reload endpoint, appends one Entry.
func (w *Watcher) WithAudit(log *audit.Log) *Watcher {
	w.log = log
	return w
}

// New creates a Watcher for packsDir. Call Start to begin watching.
func New(packsDir string, handle *snapshot.Handle, logger *logging.Logger, opts *Options) (*Watcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	resolved := DefaultOptions()
	if opts != nil {
		resolved = *opts
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		packsDir: packsDir,
		handle:   handle,
		logger:   logger,
		debounce: resolved.DebounceWindow,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching packsDir and its subdirectories. It returns once
// the initial watch list is established; reload events are processed by
// a background goroutine until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.packsDir); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop releases the underlying filesystem watch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	close(w.done)
	_ = w.fsw.Close()
}

// ReloadNow synchronously re-runs the loader and, on success, swaps the
// handle. It is exported so the façade's /v1/reload endpoint and the
// background watcher share one code path.
func (w *Watcher) ReloadNow() error {
	snap, err := graph.Load(w.packsDir, w.logger)
	if err != nil {
		w.logger.Error("graph reload failed", "error", err, "packs_dir", w.packsDir)
		w.recordAudit(audit.Entry{At: time.Now(), PacksDir: w.packsDir, OK: false, Error: err.Error()})
		return err
	}
	w.handle.Store(snap)
	w.logger.Info("graph reloaded", "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	w.recordAudit(audit.Entry{At: time.Now(), PacksDir: w.packsDir, Nodes: len(snap.Nodes), Edges: len(snap.Edges), OK: true})
	return nil
}

func (w *Watcher) recordAudit(e audit.Entry) {
	if w.log == nil {
		return
	}
	if err := w.log.Record(e); err != nil {
		w.logger.Warn("audit record failed", "error", err)
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// loop batches fsnotify events within DebounceWindow and triggers at most
// one reload per batch.
func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isPackFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timerC = nil
			if err := w.ReloadNow(); err != nil {
				w.logger.Warn("reload skipped, keeping previous snapshot", "error", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func isPackFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
