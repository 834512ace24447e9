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

func mustSnapshot(t *testing.T, nodes map[string]graph.Node, edges []graph.Edge, syndromes []graph.Syndrome) *graph.Snapshot {
	t.Helper()
	order := make([]string, 0, len(nodes))
	for id := range nodes {
		order = append(order, id)
	}
	compiled, adj, rev, err := graph.CompileEdges(nodes, edges)
	require.NoError(t, err)
	return &graph.Snapshot{
		Compiled: graph.Compiled{
			Nodes:         nodes,
			NodeOrder:     order,
			Edges:         edges,
			CompiledEdges: compiled,
			Adjacency:     adj,
			ReverseAdj:    rev,
			Syndromes:     syndromes,
		},
		AliasIndex: map[string]string{},
	}
}

func threeNode(id string) graph.Node {
	return graph.Node{ID: id, Domain: graph.DomainCardio, MinLevel: -1, MaxLevel: 1}
}

// TestSimulate_ThreeNodeChain covers seed scenario 1/2: A -(increases)->
// B -(decreases)-> C, with max_hops bounding how far propagation travels.
func TestSimulate_ThreeNodeChain(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b"), "c": threeNode("c")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
		{Source: "b", Target: "c", Rel: graph.RelDecreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	req := Request{
		Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}},
		Options:       Options{MaxHops: intPtr(2)},
	}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	byNode := map[string]AffectedNode{}
	for _, n := range resp.AffectedNodes {
		byNode[n.NodeID] = n
	}
	require.Contains(t, byNode, "b")
	require.Contains(t, byNode, "c")
	assert.Equal(t, graph.DirUp, byNode["b"].Direction)
	assert.Equal(t, graph.DirDown, byNode["c"].Direction)
}

// TestSimulate_ThreeNodeChain_MaxHopsOne: with max_hops=1 the dominant
// influence can travel only one hop past the seed, so C is never reached.
func TestSimulate_ThreeNodeChain_MaxHopsOne(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b"), "c": threeNode("c")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
		{Source: "b", Target: "c", Rel: graph.RelDecreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	req := Request{
		Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}},
		Options:       Options{MaxHops: intPtr(1)},
	}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	byNode := map[string]AffectedNode{}
	for _, n := range resp.AffectedNodes {
		byNode[n.NodeID] = n
	}
	assert.Contains(t, byNode, "b")
	assert.NotContains(t, byNode, "c")
}

// TestSimulate_TwoPhaseEdge covers seed scenario 3: a single edge with an
// immediate increases phase and a later hours decreases phase.
func TestSimulate_TwoPhaseEdge(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	w1, w2 := 0.6, 0.2
	edges := []graph.Edge{
		{
			Source: "a", Target: "b", Rel: graph.RelIncreases,
			TemporalProfile: []graph.EdgePhase{
				{At: graph.TimescaleImmediate, Rel: graph.RelIncreases, Weight: &w1},
				{At: graph.TimescaleHours, Rel: graph.RelDecreases, Weight: &w2},
			},
		},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	timeline := resp.Timelines["b"]
	require.NotEmpty(t, timeline)
	assert.Equal(t, 0, timeline[0].Tick)
	assert.Equal(t, graph.DirUp, timeline[0].Direction)

	var sawHoursDown bool
	for _, tp := range timeline {
		if tp.Tick == graph.TickOf(graph.TimescaleHours) && tp.Direction == graph.DirDown {
			sawHoursDown = true
		}
	}
	assert.True(t, sawHoursDown, "expected a later down-direction resolution at the hours tick")
}

// TestSimulate_DelayedChain covers seed scenario 4: A-(hours,w=0.2)->
// B-(immediate,w=0.6)->C. B cannot resolve before tick 2 (hours), so C
// cannot resolve before tick 2 either (immediate relative to B's tick).
func TestSimulate_DelayedChain(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b"), "c": threeNode("c")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 0.2, Delay: graph.TimescaleHours},
		{Source: "b", Target: "c", Rel: graph.RelIncreases, Weight: 0.6, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	bTimeline := resp.Timelines["b"]
	require.NotEmpty(t, bTimeline)
	assert.Equal(t, graph.TickOf(graph.TimescaleHours), bTimeline[0].Tick)

	cTimeline := resp.Timelines["c"]
	require.NotEmpty(t, cTimeline)
	assert.Equal(t, graph.TickOf(graph.TimescaleHours), cTimeline[0].Tick)
}

// TestSimulate_ContextBaseline_COPD covers seed scenario 6: setting the
// copd context flag perturbs the built-in baseline nodes even with no
// user perturbations.
func TestSimulate_ContextBaseline_COPD(t *testing.T) {
	nodes := map[string]graph.Node{
		"pulm.mechanics.resistance":           threeNode("pulm.mechanics.resistance"),
		"pulm.gasexchange.vq_mismatch":        threeNode("pulm.gasexchange.vq_mismatch"),
		"pulm.gasexchange.diffusion_capacity": threeNode("pulm.gasexchange.diffusion_capacity"),
	}
	snap := mustSnapshot(t, nodes, nil, nil)

	req := Request{Context: map[string]bool{"copd": true}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	byNode := map[string]AffectedNode{}
	for _, n := range resp.AffectedNodes {
		byNode[n.NodeID] = n
	}
	assert.Equal(t, graph.DirUp, byNode["pulm.mechanics.resistance"].Direction)
	assert.Equal(t, graph.DirUp, byNode["pulm.gasexchange.vq_mismatch"].Direction)
	assert.Equal(t, graph.DirDown, byNode["pulm.gasexchange.diffusion_capacity"].Direction)
}

// TestSimulate_Determinism covers P4: identical input produces an
// identical response, including trace ordering.
func TestSimulate_Determinism(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b"), "c": threeNode("c")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 0.8, Delay: graph.TimescaleImmediate},
		{Source: "a", Target: "c", Rel: graph.RelIncreases, Weight: 0.6, Delay: graph.TimescaleMinutes},
		{Source: "b", Target: "c", Rel: graph.RelIncreases, Weight: 0.5, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	first, err := Simulate(snap, req, nil)
	require.NoError(t, err)
	second, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestSimulate_BoundaryBehavior_HoursOnlyPhase_NoTickZeroState covers the
// boundary case: an edge with only an hours phase produces no tick-0
// resolution for its target.
func TestSimulate_BoundaryBehavior_HoursOnlyPhase_NoTickZeroState(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 0.8, Delay: graph.TimescaleHours},
	}
	snap := mustSnapshot(t, nodes, edges, nil)
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	timeline := resp.Timelines["b"]
	require.NotEmpty(t, timeline)
	assert.NotEqual(t, 0, timeline[0].Tick)
}

// TestSimulate_BoundaryBehavior_SaturatedNode_NearZeroEffect covers the
// saturation boundary: a node already pinned at its ceiling dampens
// further upward influence to near zero.
func TestSimulate_BoundaryBehavior_SaturatedNode_NearZeroEffect(t *testing.T) {
	nodes := map[string]graph.Node{
		"a": threeNode("a"),
		"b": {ID: "b", Domain: graph.DomainCardio, BaselineLevel: 0.48, MinLevel: -0.5, MaxLevel: 0.5},
		"c": threeNode("c"),
	}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
		{Source: "b", Target: "c", Rel: graph.RelIncreases, Weight: 0.9, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	byNode := map[string]AffectedNode{}
	for _, n := range resp.AffectedNodes {
		byNode[n.NodeID] = n
	}
	require.Contains(t, byNode, "b")
	// b's own resolution is unaffected by its saturation (saturation
	// gates b's outgoing fan-out, not b's own resolved effect size).
	assert.NotContains(t, byNode, "c", "saturated node's near-zero gain should fail the min_effect_size filter downstream")
}

// TestSimulate_UnknownPerturbationNodeID_SilentlySkipped covers open
// question 4: an unresolvable perturbation node id produces no error and
// no resolved nodes.
func TestSimulate_UnknownPerturbationNodeID_SilentlySkipped(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a")}
	snap := mustSnapshot(t, nodes, nil, nil)

	req := Request{Perturbations: []Perturbation{{NodeID: "does.not.exist", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.AffectedNodes)
}

// TestSimulate_SetOp_CoercedToNoOp covers open question 1.
func TestSimulate_SetOp_CoercedToNoOp(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	value := 0.5
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpSet, Value: &value}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.AffectedNodes, "a set perturbation is a no-op and propagates nothing")
}

func TestSimulate_InvalidPerturbationOp_RejectedAtValidate(t *testing.T) {
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: Op("nonsense")}}}
	_, err := req.Validate()
	assert.Error(t, err)
}

// TestSimulate_ExplicitZeroMaxHops_PreservedAsBoundary covers §3: an
// explicitly supplied max_hops=0 means "no propagation past the seed" and
// must not be coerced to the default of 5.
func TestSimulate_ExplicitZeroMaxHops_PreservedAsBoundary(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 1.0, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)

	req := Request{
		Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}},
		Options:       Options{MaxHops: intPtr(0)},
	}
	req, err := req.Validate()
	require.NoError(t, err)
	require.NotNil(t, req.Options.MaxHops)
	assert.Equal(t, 0, *req.Options.MaxHops, "an explicit zero must survive normalization rather than becoming the default")

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	byNode := map[string]AffectedNode{}
	for _, n := range resp.AffectedNodes {
		byNode[n.NodeID] = n
	}
	assert.NotContains(t, byNode, "b", "max_hops=0 must stop propagation at the seed node")
}

// TestOptions_Normalized_ExplicitZeroMinConfidenceAndEffectSize covers §3:
// explicit zero floors (no floor) must not be overwritten by the defaults.
func TestOptions_Normalized_ExplicitZeroMinConfidenceAndEffectSize(t *testing.T) {
	opts := Options{MinConfidence: float64Ptr(0), MinEffectSize: float64Ptr(0)}
	out, err := opts.normalized()
	require.NoError(t, err)
	require.NotNil(t, out.MinConfidence)
	require.NotNil(t, out.MinEffectSize)
	assert.Equal(t, 0.0, *out.MinConfidence)
	assert.Equal(t, 0.0, *out.MinEffectSize)
}

// TestSimulate_MagnitudeBinning_ConsistentWithEffectSize covers P5.
func TestSimulate_MagnitudeBinning_ConsistentWithEffectSize(t *testing.T) {
	nodes := map[string]graph.Node{"a": threeNode("a"), "b": threeNode("b")}
	edges := []graph.Edge{
		{Source: "a", Target: "b", Rel: graph.RelIncreases, Weight: 0.9, Delay: graph.TimescaleImmediate},
	}
	snap := mustSnapshot(t, nodes, edges, nil)
	req := Request{Perturbations: []Perturbation{{NodeID: "a", Op: OpIncrease}}}
	req, err := req.Validate()
	require.NoError(t, err)

	resp, err := Simulate(snap, req, nil)
	require.NoError(t, err)

	for _, n := range resp.AffectedNodes {
		assert.Equal(t, graph.MagnitudeOf(n.EffectSize), n.Magnitude)
	}
}
