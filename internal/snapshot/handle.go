// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot holds the atomically swappable handle to the current
// graph.Snapshot (§5 "Reload", §9 "Global engine"). The façade and the
// hot-reload watcher are the only writers; every simulation is a reader
// that captures the current value once, at its own entry, so a reload
// racing a simulation can never be observed mid-run.
package snapshot

import (
	"sync/atomic"

	"github.com/AleutianAI/physiograph/internal/graph"
)

// Handle is a lock-free, atomically swappable pointer to the active
// graph.Snapshot. The zero value is not usable; construct with New.
type Handle struct {
	current atomic.Pointer[graph.Snapshot]
}

// New returns a Handle initialized to snap.
func New(snap *graph.Snapshot) *Handle {
	h := &Handle{}
	h.current.Store(snap)
	return h
}

// Load returns the currently active snapshot. The returned pointer is
// captured by value at the call site: a subsequent Store on the same
// Handle does not affect a simulation already holding this pointer.
func (h *Handle) Load() *graph.Snapshot {
	return h.current.Load()
}

// Store atomically replaces the active snapshot. In-flight simulations
// that already called Load keep operating on the snapshot they captured.
func (h *Handle) Store(snap *graph.Snapshot) {
	h.current.Store(snap)
}
