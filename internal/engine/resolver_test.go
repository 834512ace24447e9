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

func TestResolve_SingleInfluence(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.8, EffectSize: 0.6, Priority: graph.PriorityMedium, Path: []string{"a", "b"}},
	}
	res, ok := resolve(bucket)
	require.True(t, ok)
	assert.Equal(t, graph.DirUp, res.Direction)
	assert.InDelta(t, 0.6, res.EffectSize, 1e-9)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, 1, res.DominantHops)
}

// TestResolve_ExactBalance_NoResolution covers the exact-balance boundary
// behavior: equal up/down scores (including the all-zero case) resolve
// to "no resolution".
func TestResolve_ExactBalance_NoResolution(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.5, EffectSize: 0.4, Priority: graph.PriorityMedium, Path: []string{"a"}},
		{Direction: graph.DirDown, Confidence: 0.5, EffectSize: 0.4, Priority: graph.PriorityMedium, Path: []string{"b"}},
	}
	_, ok := resolve(bucket)
	assert.False(t, ok)
}

func TestResolve_AllZeroEffectSize_NoResolution(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.5, EffectSize: 0, Priority: graph.PriorityMedium, Path: []string{"a"}},
		{Direction: graph.DirDown, Confidence: 0.5, EffectSize: 0, Priority: graph.PriorityMedium, Path: []string{"b"}},
	}
	_, ok := resolve(bucket)
	assert.False(t, ok)
}

// TestResolve_OnlyTopPriorityTierConsidered: a lower-priority influence
// opposing the top tier must not affect the outcome at all.
func TestResolve_OnlyTopPriorityTierConsidered(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.9, EffectSize: 0.5, Priority: graph.PriorityHigh, Path: []string{"a"}},
		{Direction: graph.DirDown, Confidence: 0.9, EffectSize: 10, Priority: graph.PriorityLow, Path: []string{"z"}},
	}
	res, ok := resolve(bucket)
	require.True(t, ok)
	assert.Equal(t, graph.DirUp, res.Direction)
}

// TestResolve_EffectSizeAndConfidenceStayInUnitInterval covers P2 across
// a variety of inputs, including ones engineered to push the raw formula
// outside [0,1] before clamping.
func TestResolve_EffectSizeAndConfidenceStayInUnitInterval(t *testing.T) {
	buckets := [][]Influence{
		{
			{Direction: graph.DirUp, Confidence: 1.0, EffectSize: 1.0, Priority: graph.PriorityUltra, Path: []string{"a"}},
		},
		{
			{Direction: graph.DirUp, Confidence: 1.0, EffectSize: 0.9, Priority: graph.PriorityMedium, Path: []string{"a"}},
			{Direction: graph.DirDown, Confidence: 1.0, EffectSize: 0.1, Priority: graph.PriorityMedium, Path: []string{"b"}},
		},
		{
			{Direction: graph.DirUp, Confidence: 0.05, EffectSize: 0.02, Priority: graph.PriorityLow, Path: []string{"a"}},
			{Direction: graph.DirDown, Confidence: 0.05, EffectSize: 0.01, Priority: graph.PriorityLow, Path: []string{"b"}},
		},
	}
	for _, bucket := range buckets {
		res, ok := resolve(bucket)
		require.True(t, ok)
		assert.GreaterOrEqual(t, res.EffectSize, 0.0)
		assert.LessOrEqual(t, res.EffectSize, 1.0)
		assert.GreaterOrEqual(t, res.Confidence, 0.1)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestResolve_DominantPicksHighestEffectSizeThenConfidence(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.5, EffectSize: 0.3, Priority: graph.PriorityMedium, Path: []string{"a", "x"}},
		{Direction: graph.DirUp, Confidence: 0.9, EffectSize: 0.3, Priority: graph.PriorityMedium, Path: []string{"a", "y"}},
	}
	res, ok := resolve(bucket)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "y"}, res.Dominant.Path)
}

// TestResolve_SecondaryTraceBranches_DedupedAndAttenuated covers the
// ≤3-branch cap, the dominant's own path being excluded, and the 0.7
// confidence attenuation.
func TestResolve_SecondaryTraceBranches_DedupedAndAttenuated(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.9, EffectSize: 0.9, Priority: graph.PriorityMedium, Path: []string{"dom"}},
		{Direction: graph.DirUp, Confidence: 0.8, EffectSize: 0.5, Priority: graph.PriorityMedium, Path: []string{"b1"}},
		{Direction: graph.DirUp, Confidence: 0.8, EffectSize: 0.5, Priority: graph.PriorityMedium, Path: []string{"b1"}}, // duplicate path
		{Direction: graph.DirUp, Confidence: 0.7, EffectSize: 0.4, Priority: graph.PriorityMedium, Path: []string{"b2"}},
		{Direction: graph.DirUp, Confidence: 0.6, EffectSize: 0.3, Priority: graph.PriorityMedium, Path: []string{"b3"}},
		{Direction: graph.DirUp, Confidence: 0.5, EffectSize: 0.2, Priority: graph.PriorityMedium, Path: []string{"b4"}},
	}
	res, ok := resolve(bucket)
	require.True(t, ok)
	require.Len(t, res.SecondaryTrace, 3)
	assert.InDelta(t, 0.8*0.7, res.SecondaryTrace[0].Confidence, 1e-9)
	for _, branch := range res.SecondaryTrace {
		assert.NotEqual(t, []string{"dom"}, branch.Path)
	}
}

// TestResolve_SecondaryTraceBranches_IncludesLosingDirection covers §4.3.1:
// secondary trace branches are drawn from the full top-priority-tier
// bucket, not just the winning direction, so a competing opposite-direction
// influence still surfaces (attenuated) as a trace-only branch instead of
// being dropped.
func TestResolve_SecondaryTraceBranches_IncludesLosingDirection(t *testing.T) {
	bucket := []Influence{
		{Direction: graph.DirUp, Confidence: 0.9, EffectSize: 0.9, Priority: graph.PriorityMedium, Path: []string{"dom"}},
		{Direction: graph.DirDown, Confidence: 0.8, EffectSize: 0.3, Priority: graph.PriorityMedium, Path: []string{"opposer"}},
	}
	res, ok := resolve(bucket)
	require.True(t, ok)
	assert.Equal(t, graph.DirUp, res.Direction)

	var sawOpposer bool
	for _, branch := range res.SecondaryTrace {
		if branch.Path[0] == "opposer" {
			sawOpposer = true
			assert.Equal(t, graph.DirDown, branch.Direction)
			assert.InDelta(t, 0.8*0.7, branch.Confidence, 1e-9)
		}
	}
	assert.True(t, sawOpposer, "losing-direction influence from the top tier must still appear as a secondary trace branch")
}
