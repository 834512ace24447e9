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

	"github.com/AleutianAI/physiograph/internal/baseline"
	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/pkg/logging"
)

// simulation holds every per-run buffer (§3 "Lifecycle", §4.3 "Data
// structures"). It is discarded when Simulate returns; nothing here
// outlives one call. The embedded snapshot is captured by value at
// Simulate's entry (§5, §9 "Global engine"), so a concurrent reload can
// never be observed mid-simulation.
type simulation struct {
	snap    *graph.Snapshot
	req     Request
	maxTick int
	logger  *logging.Logger

	buffer     map[string]map[int][]Influence
	activity   map[string]map[int]float64
	propagated map[string]map[int]map[graph.Direction]bool
	resolved   map[string]map[int]AffectedNode
	traces     map[string][]TraceStep
}

// Simulate runs the full propagation loop described in §4.3 and
// assembles the Response per §3 "Assembly". snap is captured by value;
// the caller's underlying graph data is never mutated.
func Simulate(snap *graph.Snapshot, req Request, logger *logging.Logger) (Response, error) {
	if logger == nil {
		logger = logging.Default()
	}
	req, err := req.Validate()
	if err != nil {
		return Response{}, err
	}

	maxTick := graph.MaxTick(req.Options.TimeWindow)

	sim := &simulation{
		snap:       snap,
		req:        req,
		maxTick:    maxTick,
		logger:     logger,
		buffer:     make(map[string]map[int][]Influence),
		activity:   make(map[string]map[int]float64),
		propagated: make(map[string]map[int]map[graph.Direction]bool),
		resolved:   make(map[string]map[int]AffectedNode),
		traces:     make(map[string][]TraceStep),
	}

	sim.seed()
	sim.run()

	return sim.assemble(), nil
}

// seed expands the context baselines and emits one tick-0 influence per
// resulting perturbation (§4.3 "Seeding", §4.2).
func (s *simulation) seed() {
	userPerts := make([]baseline.Perturbation, 0, len(s.req.Perturbations))
	for _, p := range s.req.Perturbations {
		userPerts = append(userPerts, baseline.Perturbation{NodeID: p.NodeID, Op: baseline.Op(p.Op)})
	}
	merged := baseline.Expand(userPerts, s.req.Context)

	for _, p := range merged {
		nodeID, ok := s.snap.ResolveID(p.NodeID)
		if !ok {
			continue // unknown perturbation node id: silently skipped (§4.3, §4.7)
		}

		var direction graph.Direction
		switch p.Op {
		case baseline.OpIncrease:
			direction = graph.DirUp
		case baseline.OpDecrease, baseline.Op(OpBlock):
			direction = graph.DirDown
		default:
			direction = graph.DirUnchanged
		}

		s.enqueue(nodeID, 0, Influence{
			Direction:  direction,
			Confidence: 1.0,
			EffectSize: 1.0,
			Priority:   graph.PriorityUltra,
			Path:       []string{nodeID},
			Steps:      nil,
		})
	}
}

// enqueue appends an influence to a (node, tick) bucket, creating the
// intermediate maps as needed.
func (s *simulation) enqueue(nodeID string, tick int, inf Influence) {
	if s.buffer[nodeID] == nil {
		s.buffer[nodeID] = make(map[int][]Influence)
	}
	s.buffer[nodeID][tick] = append(s.buffer[nodeID][tick], inf)
}

// run drains the work queue tick by tick (§4.3 "Main loop").
func (s *simulation) run() {
	for tick := 0; tick <= s.maxTick; tick++ {
		ready := s.readySet(tick)

		for len(ready) > 0 {
			nodeID := ready[0]
			ready = ready[1:]

			bucket := s.buffer[nodeID][tick]
			if len(bucket) == 0 {
				continue
			}

			res, ok := resolve(bucket)
			if !ok {
				continue
			}
			if res.EffectSize < *s.req.Options.MinEffectSize {
				continue
			}
			if s.isStable(nodeID, tick, res) {
				continue
			}

			affected := AffectedNode{
				NodeID:     nodeID,
				Direction:  res.Direction,
				Magnitude:  graph.MagnitudeOf(res.EffectSize),
				Confidence: res.Confidence,
				EffectSize: res.EffectSize,
				Timescale:  graph.TimescaleOfTick(tick),
				Tick:       tick,
			}
			s.setResolved(nodeID, tick, affected)
			s.setActivity(nodeID, tick, res)

			s.emitSecondaryTraces(nodeID, tick, res)

			if res.DominantHops >= *s.req.Options.MaxHops || s.alreadyPropagated(nodeID, tick, res.Direction) {
				continue
			}
			s.markPropagated(nodeID, tick, res.Direction)

			newlyReady := s.fanOut(nodeID, tick, res)
			ready = mergeReadySorted(ready, newlyReady)
		}
	}
}

// readySet returns the sorted node ids with a non-empty bucket at tick.
func (s *simulation) readySet(tick int) []string {
	var ready []string
	for nodeID, byTick := range s.buffer {
		if len(byTick[tick]) > 0 {
			ready = append(ready, nodeID)
		}
	}
	sort.Strings(ready)
	return ready
}

// mergeReadySorted inserts newlyReady node ids not already present,
// keeping the slice sorted (§4.3 step 8: "kept sorted").
func mergeReadySorted(ready []string, newlyReady []string) []string {
	if len(newlyReady) == 0 {
		return ready
	}
	present := make(map[string]bool, len(ready))
	for _, n := range ready {
		present[n] = true
	}
	for _, n := range newlyReady {
		if !present[n] {
			ready = append(ready, n)
			present[n] = true
		}
	}
	sort.Strings(ready)
	return ready
}

// isStable implements §4.3 step 4: a prior resolution at the same tick
// with the same direction and negligible deltas is a no-op.
func (s *simulation) isStable(nodeID string, tick int, res resolution) bool {
	prior, ok := s.resolved[nodeID][tick]
	if !ok {
		return false
	}
	if prior.Direction != res.Direction {
		return false
	}
	return absFloat(prior.Confidence-res.Confidence) < 0.01 && absFloat(prior.EffectSize-res.EffectSize) < 0.01
}

func (s *simulation) setResolved(nodeID string, tick int, affected AffectedNode) {
	if s.resolved[nodeID] == nil {
		s.resolved[nodeID] = make(map[int]AffectedNode)
	}
	s.resolved[nodeID][tick] = affected
}

func (s *simulation) setActivity(nodeID string, tick int, res resolution) {
	if s.activity[nodeID] == nil {
		s.activity[nodeID] = make(map[int]float64)
	}
	signed := res.EffectSize
	if res.Direction == graph.DirDown {
		signed = -signed
	}
	s.activity[nodeID][tick] = signed
}

func (s *simulation) alreadyPropagated(nodeID string, tick int, dir graph.Direction) bool {
	return s.propagated[nodeID] != nil && s.propagated[nodeID][tick] != nil && s.propagated[nodeID][tick][dir]
}

func (s *simulation) markPropagated(nodeID string, tick int, dir graph.Direction) {
	if s.propagated[nodeID] == nil {
		s.propagated[nodeID] = make(map[int]map[graph.Direction]bool)
	}
	if s.propagated[nodeID][tick] == nil {
		s.propagated[nodeID][tick] = make(map[graph.Direction]bool)
	}
	s.propagated[nodeID][tick][dir] = true
}

// assemble builds the final Response from resolved ticks (§3 "Assembly").
func (s *simulation) assemble() Response {
	var affectedNodes []AffectedNode
	timelines := make(map[string][]AffectedNode)

	nodeIDs := make([]string, 0, len(s.resolved))
	for nodeID := range s.resolved {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		ticks := make([]int, 0, len(s.resolved[nodeID]))
		for tick := range s.resolved[nodeID] {
			ticks = append(ticks, tick)
		}
		sort.Ints(ticks)

		var timeline []AffectedNode
		for _, tick := range ticks {
			timeline = append(timeline, s.resolved[nodeID][tick])
		}
		timelines[nodeID] = timeline
		affectedNodes = append(affectedNodes, timeline[0])
	}

	return Response{
		AffectedNodes: affectedNodes,
		Traces:        s.traces,
		Timelines:     timelines,
		MaxTicks:      s.maxTick,
	}
}
