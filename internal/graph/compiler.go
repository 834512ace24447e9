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

import "fmt"

// Compiled is the frozen, query-ready form of a graph: the node set plus
// the compiled adjacency derived from CompileEdges. It is the unit the
// propagation engine and the static analytics both operate over, and the
// unit an atomic snapshot swap (see the snapshot package) replaces as a
// whole.
type Compiled struct {
	Nodes         map[string]Node
	NodeOrder     []string
	Edges         []Edge
	CompiledEdges []CompiledEdge
	Adjacency     map[string][]CompiledEdge
	ReverseAdj    map[string][]CompiledEdge
	Syndromes     []Syndrome
}

// CompileEdges expands each logical edge into one CompiledEdge per
// temporal phase and builds order-stable forward/reverse adjacency (§4.1).
//
// An edge with no TemporalProfile produces exactly one phase at its own
// Delay, with IsLegacyTiming=true. An edge with a TemporalProfile produces
// one phase per entry, any unset phase field falling back to the logical
// edge's value, with IsLegacyTiming=false (invariant P6: len(CompiledEdges)
// == sum over edges of max(1, len(TemporalProfile))).
func CompileEdges(nodes map[string]Node, edges []Edge) ([]CompiledEdge, map[string][]CompiledEdge, map[string][]CompiledEdge, error) {
	compiled := make([]CompiledEdge, 0, len(edges))

	for _, edge := range edges {
		edge = edge.normalized()
		if err := validateEdgeEndpoints(nodes, edge); err != nil {
			return nil, nil, nil, err
		}
		if !edge.Rel.Valid() {
			return nil, nil, nil, &LoadError{Ident: fmt.Sprintf("%s->%s", edge.Source, edge.Target), Err: ErrUnknownRelation}
		}

		if len(edge.TemporalProfile) == 0 {
			ce, err := compileLegacyPhase(edge)
			if err != nil {
				return nil, nil, nil, err
			}
			compiled = append(compiled, ce)
			continue
		}

		seenAt := make(map[Timescale]bool, len(edge.TemporalProfile))
		for _, phase := range edge.TemporalProfile {
			if seenAt[phase.At] {
				return nil, nil, nil, &LoadError{
					Ident: fmt.Sprintf("%s->%s", edge.Source, edge.Target),
					Err:   ErrDuplicatePhaseTiming,
				}
			}
			seenAt[phase.At] = true

			ce, err := compilePhase(edge, phase)
			if err != nil {
				return nil, nil, nil, err
			}
			compiled = append(compiled, ce)
		}
	}

	adj := make(map[string][]CompiledEdge)
	rev := make(map[string][]CompiledEdge)
	for _, ce := range compiled {
		adj[ce.Source] = append(adj[ce.Source], ce)
		rev[ce.Target] = append(rev[ce.Target], ce)
	}

	return compiled, adj, rev, nil
}

func validateEdgeEndpoints(nodes map[string]Node, edge Edge) error {
	if _, ok := nodes[edge.Source]; !ok {
		return &LoadError{Ident: edge.Source, Err: ErrDanglingEdgeEndpoint}
	}
	if _, ok := nodes[edge.Target]; !ok {
		return &LoadError{Ident: edge.Target, Err: ErrDanglingEdgeEndpoint}
	}
	return nil
}

func compileLegacyPhase(edge Edge) (CompiledEdge, error) {
	at := edge.Delay
	if err := requireGateThreshold(edge.ActivationDirection, edge.ActivationThreshold); err != nil {
		return CompiledEdge{}, &LoadError{Ident: fmt.Sprintf("%s->%s", edge.Source, edge.Target), Err: err}
	}
	return CompiledEdge{
		Source:              edge.Source,
		Target:              edge.Target,
		At:                  at,
		AtTick:              TickOf(at),
		Rel:                 edge.Rel,
		Weight:              edge.Weight,
		Priority:            edge.Priority,
		ActivationDirection: edge.ActivationDirection,
		ActivationThreshold: edge.ActivationThreshold,
		Context:             copyContext(edge.Context),
		Description:         edge.Description,
		IsLegacyTiming:      true,
	}, nil
}

func compilePhase(edge Edge, phase EdgePhase) (CompiledEdge, error) {
	rel := edge.Rel
	if phase.Rel != "" {
		rel = phase.Rel
	}
	weight := edge.Weight
	if phase.Weight != nil {
		weight = *phase.Weight
	}
	priority := edge.Priority
	if phase.Priority != "" {
		priority = phase.Priority
	}
	activationDir := edge.ActivationDirection
	if phase.ActivationDirection != "" {
		activationDir = phase.ActivationDirection
	}
	threshold := edge.ActivationThreshold
	if phase.ActivationThreshold != nil {
		threshold = phase.ActivationThreshold
	}
	description := edge.Description
	if phase.Description != "" {
		description = phase.Description
	}

	if err := requireGateThreshold(activationDir, threshold); err != nil {
		return CompiledEdge{}, &LoadError{
			Ident: fmt.Sprintf("%s->%s@%s", edge.Source, edge.Target, phase.At),
			Err:   err,
		}
	}

	return CompiledEdge{
		Source:              edge.Source,
		Target:              edge.Target,
		At:                  phase.At,
		AtTick:              TickOf(phase.At),
		Rel:                 rel,
		Weight:              weight,
		Priority:            priority,
		ActivationDirection: activationDir,
		ActivationThreshold: threshold,
		Context:             copyContext(edge.Context),
		Description:         description,
		IsLegacyTiming:      false,
	}, nil
}

// requireGateThreshold enforces: if a phase's resolved activation_direction
// is not "any", a resolved activation_threshold must exist.
func requireGateThreshold(dir Direction, threshold *float64) error {
	if dir != "" && dir != DirAny && threshold == nil {
		return ErrGatedPhaseMissingThreshold
	}
	return nil
}

func copyContext(src map[string]bool) map[string]bool {
	if len(src) == 0 {
		return map[string]bool{}
	}
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
