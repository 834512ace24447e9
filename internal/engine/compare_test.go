// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/physiograph/internal/graph"
)

func TestClassify_New(t *testing.T) {
	ct, delta := classify(AffectedNode{}, false, AffectedNode{EffectSize: 0.4}, true)
	assert.Equal(t, ChangeNew, ct)
	assert.Equal(t, 0.4, delta)
}

func TestClassify_Resolved(t *testing.T) {
	ct, delta := classify(AffectedNode{EffectSize: 0.4}, true, AffectedNode{}, false)
	assert.Equal(t, ChangeResolved, ct)
	assert.Equal(t, -0.4, delta)
}

func TestClassify_Unchanged_NeitherPresent(t *testing.T) {
	ct, _ := classify(AffectedNode{}, false, AffectedNode{}, false)
	assert.Equal(t, changeUnchanged, ct)
}

func TestClassify_DirectionFlip(t *testing.T) {
	b := AffectedNode{Direction: graph.DirUp, EffectSize: 0.5}
	iv := AffectedNode{Direction: graph.DirDown, EffectSize: 0.5}
	ct, _ := classify(b, true, iv, true)
	assert.Equal(t, ChangeDirectionFlip, ct)
}

func TestClassify_StrengthenedAndWeakened(t *testing.T) {
	b := AffectedNode{Direction: graph.DirUp, EffectSize: 0.3}
	iv := AffectedNode{Direction: graph.DirUp, EffectSize: 0.5}
	ct, delta := classify(b, true, iv, true)
	assert.Equal(t, ChangeStrengthened, ct)
	assert.InDelta(t, 0.2, delta, 1e-9)

	ct, _ = classify(iv, true, b, true)
	assert.Equal(t, ChangeWeakened, ct)
}

func TestClassify_WithinTolerance_Unchanged(t *testing.T) {
	b := AffectedNode{Direction: graph.DirUp, EffectSize: 0.30}
	iv := AffectedNode{Direction: graph.DirUp, EffectSize: 0.34}
	ct, _ := classify(b, true, iv, true)
	assert.Equal(t, changeUnchanged, ct)
}

func TestCompare_RunsBothSimulationsAndClassifies(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	baselineReq := Request{}
	interventionReq := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}

	resp, err := Compare(snap, ComparisonRequest{Baseline: baselineReq, Intervention: interventionReq}, nil)
	require.NoError(t, err)

	var found bool
	for _, row := range resp.ChangedNodes {
		if row.NodeID == "b" {
			found = true
			assert.Equal(t, ChangeNew, row.ChangeType)
		}
	}
	assert.True(t, found, "b should appear as a new change between baseline and intervention")
}

// TestCompare_EqualDeltaRowsOrderDeterministically covers the determinism
// requirement (§5): two newly-affected nodes with identical effect-size
// deltas must come out in the same relative order on every run, rather than
// depending on Go's randomized map iteration.
func TestCompare_EqualDeltaRowsOrderDeterministically(t *testing.T) {
	nodes := map[string]graph.Node{
		"a": threeNode("a"),
		"b": threeNode("b"),
		"c": threeNode("c"),
	}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
		{Source: "a", Target: "c", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	baselineReq := Request{}
	interventionReq := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}

	var orders [][]string
	for i := 0; i < 10; i++ {
		resp, err := Compare(snap, ComparisonRequest{Baseline: baselineReq, Intervention: interventionReq}, nil)
		require.NoError(t, err)

		var order []string
		for _, row := range resp.ChangedNodes {
			if row.NodeID == "b" || row.NodeID == "c" {
				order = append(order, row.NodeID)
			}
		}
		orders = append(orders, order)
	}

	for i := 1; i < len(orders); i++ {
		assert.Equal(t, orders[0], orders[i], "equal-delta rows must order identically across runs")
	}
	assert.Equal(t, []string{"b", "c"}, orders[0], "equal-delta rows fall back to ascending node id order")
}
