// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the tick-scheduled influence-propagation
// simulation: request validation, context-baseline expansion, the
// per-(node,tick) resolver, fan-out, trace maintenance, and syndrome
// labelling. A simulation is a pure function of (graph.Snapshot, Request).
package engine

import (
	"fmt"

	"github.com/AleutianAI/physiograph/internal/graph"
)

// Op is a perturbation operator.
type Op string

const (
	OpIncrease Op = "increase"
	OpDecrease Op = "decrease"
	OpBlock    Op = "block"
	OpSet      Op = "set"
)

func (o Op) Valid() bool {
	switch o {
	case OpIncrease, OpDecrease, OpBlock, OpSet:
		return true
	default:
		return false
	}
}

// Perturbation is one user-requested manual push on a node (§3).
type Perturbation struct {
	NodeID string   `json:"node_id"`
	Op     Op       `json:"op"`
	Value  *float64 `json:"value,omitempty"`
}

// Options bounds the cost and presentation of a simulation (§3, §5).
// MaxHops, MinConfidence, and MinEffectSize are pointers so a request can
// distinguish "omitted, apply the default" from an explicitly requested
// boundary value such as max_hops=0 ("no propagation past the seed") or
// min_confidence=0 ("no floor") — the same nil-means-absent convention
// graph.Node.BaselineLevel and graph.Edge.ActivationThreshold already use.
// Once Validate/normalized has run, all three are guaranteed non-nil.
type Options struct {
	MaxHops       *int            `json:"max_hops,omitempty"`
	MinConfidence *float64        `json:"min_confidence,omitempty"`
	MinEffectSize *float64        `json:"min_effect_size,omitempty"`
	TimeWindow    graph.Timescale `json:"time_window"`
	DimUnaffected bool            `json:"dim_unaffected"`
}

// DefaultOptions matches the §3 defaults.
func DefaultOptions() Options {
	return Options{
		MaxHops:       intPtr(5),
		MinConfidence: float64Ptr(0.1),
		MinEffectSize: float64Ptr(0.05),
		TimeWindow:    graph.TimescaleAll,
	}
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

// normalized fills in absent (nil) fields with their §3 defaults and
// validates enumerated and bounded fields. An explicitly supplied zero
// (max_hops=0, min_confidence=0, min_effect_size=0) is a valid boundary
// value and is preserved rather than overwritten.
func (o Options) normalized() (Options, error) {
	out := o
	if out.MaxHops == nil {
		out.MaxHops = DefaultOptions().MaxHops
	}
	if out.MinConfidence == nil {
		out.MinConfidence = DefaultOptions().MinConfidence
	}
	if out.MinEffectSize == nil {
		out.MinEffectSize = DefaultOptions().MinEffectSize
	}
	if out.TimeWindow == "" {
		out.TimeWindow = graph.TimescaleAll
	}
	if !out.TimeWindow.Valid() && out.TimeWindow != graph.TimescaleAll {
		return Options{}, fmt.Errorf("engine: invalid time_window %q", o.TimeWindow)
	}
	if *out.MaxHops < 0 {
		return Options{}, fmt.Errorf("engine: max_hops must be non-negative")
	}
	if *out.MinConfidence < 0 || *out.MinConfidence > 1 {
		return Options{}, fmt.Errorf("engine: min_confidence out of range")
	}
	if *out.MinEffectSize < 0 || *out.MinEffectSize > 1 {
		return Options{}, fmt.Errorf("engine: min_effect_size out of range")
	}
	return out, nil
}

// Request is a simulation request (§3).
type Request struct {
	Perturbations []Perturbation  `json:"perturbations"`
	Context       map[string]bool `json:"context"`
	Options       Options         `json:"options"`
}

// Validate checks enum membership of every perturbation op and returns a
// normalized copy of the request with option defaults applied. Per §9,
// unknown variants are rejected at parse time; "set" is accepted (and
// coerced to a no-op at seeding time, per §9 Open Question 1).
func (r Request) Validate() (Request, error) {
	for _, p := range r.Perturbations {
		if !p.Op.Valid() {
			return Request{}, fmt.Errorf("engine: invalid perturbation op %q", p.Op)
		}
	}
	opts, err := r.Options.normalized()
	if err != nil {
		return Request{}, err
	}
	out := r
	out.Options = opts
	return out, nil
}

// AffectedNode is a resolved per-node outcome at its dominant tick (§3).
type AffectedNode struct {
	NodeID     string          `json:"node_id"`
	Direction  graph.Direction `json:"direction"`
	Magnitude  graph.Magnitude `json:"magnitude"`
	Confidence float64         `json:"confidence"`
	EffectSize float64         `json:"effect_size"`
	Timescale  graph.Timescale `json:"timescale"`
	Tick       int             `json:"tick"`
}

// TraceStep is one ranked causal path to a target node (§3).
type TraceStep struct {
	Path       []string `json:"path"`
	Steps      []string `json:"steps"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary,omitempty"`
}

// Response is the full simulation result (§3).
type Response struct {
	AffectedNodes []AffectedNode            `json:"affected_nodes"`
	Traces        map[string][]TraceStep    `json:"traces"`
	Timelines     map[string][]AffectedNode `json:"timelines"`
	MaxTicks      int                       `json:"max_ticks"`
}
