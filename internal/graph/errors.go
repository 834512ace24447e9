// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Sentinel errors for loader-level contract violations (§4.7). Every one
// of these is a LoadError: raised at graph construction and halts the
// load. They are distinct from simulation-time BadRequest errors, which
// are tolerated (e.g. an unknown perturbation node id is silently
// skipped, not reported through this list).
var (
	// ErrDuplicateNodeID is returned when two nodes in the same knowledge
	// pack set (or across packs) share an id (invariant I2).
	ErrDuplicateNodeID = errors.New("graph: duplicate node id")

	// ErrDuplicateAlias is returned when the lowercased form of an alias
	// collides with another node's id or alias anywhere in the graph.
	ErrDuplicateAlias = errors.New("graph: duplicate alias")

	// ErrDanglingEdgeEndpoint is returned when an edge's source or target
	// does not resolve to a known node (invariant I1).
	ErrDanglingEdgeEndpoint = errors.New("graph: edge references unknown node")

	// ErrUnknownRelation is returned when an edge or phase declares a
	// relation outside the fixed Relation enum (invariant I3).
	ErrUnknownRelation = errors.New("graph: unknown relation")

	// ErrDuplicatePhaseTiming is returned when two phases of the same
	// edge's temporal profile share an "at" value.
	ErrDuplicatePhaseTiming = errors.New("graph: duplicate temporal phase timing")

	// ErrGatedPhaseMissingThreshold is returned when a phase resolves a
	// directional activation gate (activation_direction != any) without a
	// resolved activation_threshold.
	ErrGatedPhaseMissingThreshold = errors.New("graph: gated phase missing activation threshold")

	// ErrInvalidDomain is returned for a node domain outside the fixed set.
	ErrInvalidDomain = errors.New("graph: invalid node domain")

	// ErrInvalidWeight is returned for an edge weight outside [0,1].
	ErrInvalidWeight = errors.New("graph: edge weight out of range")

	// ErrEmptySyndromeSequence is returned for a syndrome with no sequence.
	ErrEmptySyndromeSequence = errors.New("graph: syndrome sequence is empty")
)

// LoadError wraps a sentinel graph construction error with the pack file
// and identifier that triggered it, so callers can report actionable
// diagnostics without string-matching the message.
type LoadError struct {
	// Source is the knowledge-pack path the offending record came from,
	// when known.
	Source string
	// Ident is the node/edge/syndrome identifier implicated, when known.
	Ident string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Source == "" && e.Ident == "" {
		return e.Err.Error()
	}
	if e.Ident == "" {
		return e.Source + ": " + e.Err.Error()
	}
	if e.Source == "" {
		return e.Ident + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Ident + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
