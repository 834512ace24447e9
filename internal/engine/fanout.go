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
	"fmt"

	"github.com/AleutianAI/physiograph/internal/graph"
)

// fanOut implements §4.3.3/§4.3.4/§4.3 step 8: deliver the dominant
// influence along every matching outgoing compiled edge of nodeID, and
// returns the target node ids that became ready at the current tick
// (at_tick == 0 deliveries).
func (s *simulation) fanOut(nodeID string, tick int, res resolution) []string {
	var newlyReady []string

	for _, ce := range s.snap.Adjacency[nodeID] {
		if !contextMatches(ce.Context, s.req.Context) {
			continue
		}

		targetDir, ok := propagatedDirection(ce.Rel, res.Direction)
		if !ok {
			continue
		}

		thresholdGain := activationGain(s.snap.Nodes[nodeID], s.activity[nodeID][tick], ce, res.Direction)
		saturationGain := saturationGain(s.snap.Nodes[nodeID], s.activity[nodeID][tick], targetDir)
		timeGain := 1.0
		if ce.IsLegacyTiming {
			timeGain = timeConstantGain(s.snap.Nodes[nodeID].TimeConstant)
		}

		effectSize := clamp01(res.EffectSize * ce.Weight * thresholdGain * saturationGain * timeGain)
		confidence := clamp(res.Confidence*thresholdGain*saturationGain, 0, 1)
		if effectSize < *s.req.Options.MinEffectSize || confidence < *s.req.Options.MinConfidence {
			continue
		}

		nextTick := tick + ce.AtTick
		if nextTick > s.maxTick {
			continue
		}

		path := append(append([]string(nil), res.Dominant.Path...), ce.Target)
		description := stepDescription(s.snap.Nodes[nodeID].Label, s.snap.Nodes[ce.Target].Label, targetDir, ce.Rel, ce.At)
		steps := append(append([]string(nil), res.Dominant.Steps...), description)

		s.enqueue(ce.Target, nextTick, Influence{
			Direction:  targetDir,
			Confidence: confidence,
			EffectSize: effectSize,
			Priority:   ce.Priority,
			Path:       path,
			Steps:      steps,
		})
		s.upsertTrace(ce.Target, TraceStep{Path: path, Steps: steps, Confidence: confidence})

		if ce.AtTick == 0 {
			newlyReady = append(newlyReady, ce.Target)
		}
	}

	return newlyReady
}

// emitSecondaryTraces implements §4.3.2: secondary branches only update
// traces, they never seed new influences.
func (s *simulation) emitSecondaryTraces(nodeID string, tick int, res resolution) {
	for _, branch := range res.SecondaryTrace {
		for _, ce := range s.snap.Adjacency[nodeID] {
			if !contextMatches(ce.Context, s.req.Context) {
				continue
			}
			targetDir, ok := propagatedDirection(ce.Rel, branch.Direction)
			if !ok {
				continue
			}

			confidence := clamp01(branch.Confidence * 0.7)
			if confidence < *s.req.Options.MinConfidence {
				continue
			}

			path := append(append([]string(nil), branch.Path...), ce.Target)
			description := stepDescription(s.snap.Nodes[nodeID].Label, s.snap.Nodes[ce.Target].Label, targetDir, ce.Rel, ce.At)
			steps := append(append([]string(nil), branch.Steps...), description)

			s.upsertTrace(ce.Target, TraceStep{Path: path, Steps: steps, Confidence: confidence})
		}
	}
}

// contextMatches implements §4.3.3.a: every declared (key, required)
// pair must match request.context, defaulting missing keys to false.
func contextMatches(edgeContext map[string]bool, requestContext map[string]bool) bool {
	for key, required := range edgeContext {
		if requestContext[key] != required {
			return false
		}
	}
	return true
}

// propagatedDirection implements §4.3.3.b: positive relations preserve
// direction, decreases flips it; unknown/unchanged never propagate.
func propagatedDirection(rel graph.Relation, sourceDir graph.Direction) (graph.Direction, bool) {
	switch sourceDir {
	case graph.DirUnknown, graph.DirUnchanged:
		return "", false
	case graph.DirUp, graph.DirDown:
	default:
		return "", false
	}

	if rel.IsPositive() {
		return sourceDir, true
	}
	if sourceDir == graph.DirUp {
		return graph.DirDown, true
	}
	return graph.DirUp, true
}

// activationGain implements §4.3.3.c.
func activationGain(node graph.Node, activity float64, ce graph.CompiledEdge, sourceDir graph.Direction) float64 {
	if ce.ActivationThreshold == nil {
		return 1.0
	}
	sourceLevel := clamp(node.BaselineLevel+activity, node.MinLevel, node.MaxLevel)
	sourceStrength := absFloat(sourceLevel)

	if ce.ActivationDirection != graph.DirAny && sourceDir != ce.ActivationDirection {
		return 0.0
	}
	if sourceStrength >= *ce.ActivationThreshold {
		return 1.0
	}
	return 0.0
}

// saturationGain implements §4.3.3.d.
func saturationGain(node graph.Node, activity float64, direction graph.Direction) float64 {
	if node.MinLevel <= -1 && node.MaxLevel >= 1 {
		return 1.0
	}
	sourceLevel := clamp(node.BaselineLevel+activity, node.MinLevel, node.MaxLevel)
	switch direction {
	case graph.DirUp:
		if sourceLevel >= node.MaxLevel-0.05 {
			return 0.05
		}
	case graph.DirDown:
		if sourceLevel <= node.MinLevel+0.05 {
			return 0.05
		}
	}
	return 1.0
}

// timeConstantGain implements §4.3.3.e.
func timeConstantGain(tc graph.TimeConstant) float64 {
	switch tc {
	case graph.TimeConstantAcute:
		return 1.0
	case graph.TimeConstantSubacute:
		return 0.75
	case graph.TimeConstantChronic:
		return 0.5
	default:
		return 1.0
	}
}

// stepDescription implements §4.3.4.
func stepDescription(sourceLabel, targetLabel string, targetDir graph.Direction, rel graph.Relation, at graph.Timescale) string {
	prefix := ""
	if at != graph.TimescaleImmediate {
		prefix = fmt.Sprintf("Over %s, ", at)
	}

	positive := rel.IsPositive()
	switch {
	case positive && targetDir == graph.DirUp:
		return fmt.Sprintf("%sIncreased %s promotes %s → Increased %s", prefix, sourceLabel, targetLabel, targetLabel)
	case positive && targetDir == graph.DirDown:
		return fmt.Sprintf("%sReduced %s fails to promote %s → Decreased %s", prefix, sourceLabel, targetLabel, targetLabel)
	case !positive && targetDir == graph.DirDown:
		return fmt.Sprintf("%sIncreased %s inhibits %s → Decreased %s", prefix, sourceLabel, targetLabel, targetLabel)
	default:
		return fmt.Sprintf("%sReduced %s disinhibits %s → Increased %s", prefix, sourceLabel, targetLabel, targetLabel)
	}
}
