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
	"sort"

	"github.com/AleutianAI/physiograph/internal/graph"
)

// Influence is a pending signed contribution into a (node, tick) bucket
// (§4.3 "Data structures").
type Influence struct {
	Direction  graph.Direction
	Confidence float64
	EffectSize float64
	Priority   graph.Priority
	Path       []string
	Steps      []string
}

// resolution is the output of resolving one (node, tick) bucket (§4.3.1).
type resolution struct {
	Direction      graph.Direction
	Confidence     float64
	EffectSize     float64
	Dominant       Influence
	DominantHops   int
	SecondaryTrace []Influence
}

// resolve implements §4.3.1. bucket must be non-empty. ok is false when
// the bucket is exactly balanced (including all-zero), which the spec
// calls "no resolution".
func resolve(bucket []Influence) (resolution, bool) {
	maxRank := 0
	for _, inf := range bucket {
		if r := inf.Priority.Rank(); r > maxRank {
			maxRank = r
		}
	}

	var top []Influence
	for _, inf := range bucket {
		if inf.Priority.Rank() == maxRank {
			top = append(top, inf)
		}
	}

	var upScore, downScore float64
	for _, inf := range top {
		switch inf.Direction {
		case graph.DirUp:
			upScore += inf.EffectSize
		case graph.DirDown:
			downScore += inf.EffectSize
		}
	}

	if upScore == downScore {
		return resolution{}, false
	}

	var direction graph.Direction
	var losingSum float64
	if upScore > downScore {
		direction = graph.DirUp
		losingSum = downScore
	} else {
		direction = graph.DirDown
		losingSum = upScore
	}

	effectSize := clamp01(absFloat(upScore - downScore))
	oppositionRatio := losingSum / maxFloat(0.01, upScore+downScore)

	var confSum float64
	var confCount int
	for _, inf := range top {
		if inf.Direction == direction {
			confSum += inf.Confidence
			confCount++
		}
	}
	meanConf := 0.0
	if confCount > 0 {
		meanConf = confSum / float64(confCount)
	}
	confidence := clamp(meanConf*(1-0.5*oppositionRatio), 0.1, 1.0)

	winners := make([]Influence, 0, len(top))
	for _, inf := range top {
		if inf.Direction == direction {
			winners = append(winners, inf)
		}
	}
	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].EffectSize != winners[j].EffectSize {
			return winners[i].EffectSize > winners[j].EffectSize
		}
		return winners[i].Confidence > winners[j].Confidence
	})
	dominant := winners[0]
	dominantHops := len(dominant.Path) - 1
	if dominantHops < 0 {
		dominantHops = 0
	}

	secondary := secondaryTraceBranches(top, dominant)

	return resolution{
		Direction:      direction,
		Confidence:     confidence,
		EffectSize:     effectSize,
		Dominant:       dominant,
		DominantHops:   dominantHops,
		SecondaryTrace: secondary,
	}, true
}

// secondaryTraceBranches picks up to three further entries from the full
// top-priority-tier bucket (both directions), sorted by (effect_size,
// confidence, len(path)) descending, excluding the dominant and
// deduplicated by (direction, path), each attenuated by 0.7 (§4.3.1).
func secondaryTraceBranches(top []Influence, dominant Influence) []Influence {
	sorted := make([]Influence, len(top))
	copy(sorted, top)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EffectSize != sorted[j].EffectSize {
			return sorted[i].EffectSize > sorted[j].EffectSize
		}
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return len(sorted[i].Path) > len(sorted[j].Path)
	})

	seen := map[string]bool{pathKey(dominant.Direction, dominant.Path): true}
	var branches []Influence
	for _, inf := range sorted {
		key := pathKey(inf.Direction, inf.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		attenuated := inf
		attenuated.Confidence = clamp01(inf.Confidence * 0.7)
		branches = append(branches, attenuated)
		if len(branches) == 3 {
			break
		}
	}
	return branches
}

func pathKey(dir graph.Direction, path []string) string {
	key := string(dir) + "|"
	for _, p := range path {
		key += p + ">"
	}
	return key
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
