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

import (
	"container/heap"
	"fmt"
	"sort"
)

// Analytics is the result of running the static graph analyses (§4.6) over
// a Compiled graph. It is a pure function of its input graph and is
// consumed by the audit/CLI harness, never by the propagation engine.
type Analytics struct {
	DirectDownstream   map[string]map[Timescale][]string
	DirectUpstream     map[string]map[Timescale][]string
	MultiHopDownstream  map[string]map[Timescale][]string
	MultiHopUpstream    map[string]map[Timescale][]string
	SCCs                [][]string
	FeedbackClusters    []FeedbackCluster
	ReviewCandidates    ReviewCandidates
}

// FeedbackCluster is a strongly connected component with mixed-sign or
// reciprocal induced edges (§4.6.4).
type FeedbackCluster struct {
	Nodes            []string
	Edges            []string
	MixedSign        bool
	Reciprocal       bool
	HasDelayedPhase  bool
	ReciprocalPairs  [][2]string
}

// ReviewCandidates summarizes the feedback structures an author should
// double-check (§4.6.5).
type ReviewCandidates struct {
	ReciprocalEdges             [][2]string
	FastFeedbackLoops           []FeedbackCluster
	ImmediateOnlyHighWeightEdges []string
}

// Analyze runs the full static analytics suite over a compiled graph,
// bounding multi-hop reachability to maxTick (clamped to [0, 3]).
func Analyze(g Compiled, maxTick int) Analytics {
	bounded := maxTick
	if bounded < 0 {
		bounded = 0
	}
	if bounded > TickOf(TimescaleDays) {
		bounded = TickOf(TimescaleDays)
	}

	directDownstream := groupDirectNeighbors(g, g.Adjacency, func(ce CompiledEdge) string { return ce.Target })
	directUpstream := groupDirectNeighbors(g, g.ReverseAdj, func(ce CompiledEdge) string { return ce.Source })
	multiDownstream := groupReachability(g, g.Adjacency, bounded, func(ce CompiledEdge) string { return ce.Target })
	multiUpstream := groupReachability(g, g.ReverseAdj, bounded, func(ce CompiledEdge) string { return ce.Source })

	logicalAdj := logicalAdjacency(g)
	sccs := stronglyConnectedComponents(g.NodeOrder, logicalAdj)
	clusters := buildFeedbackClusters(g, sccs)

	return Analytics{
		DirectDownstream:   directDownstream,
		DirectUpstream:     directUpstream,
		MultiHopDownstream: multiDownstream,
		MultiHopUpstream:   multiUpstream,
		SCCs:               sccs,
		FeedbackClusters:   clusters,
		ReviewCandidates:   reviewCandidates(g, clusters),
	}
}

// groupDirectNeighbors implements §4.6.1: for each node, for each
// timescale bucket, the set (sorted) of neighbors reached by a single
// compiled phase at that timescale.
func groupDirectNeighbors(g Compiled, adjacency map[string][]CompiledEdge, neighborOf func(CompiledEdge) string) map[string]map[Timescale][]string {
	result := make(map[string]map[Timescale][]string, len(g.Nodes))
	for nodeID := range g.Nodes {
		buckets := map[Timescale]map[string]bool{
			TimescaleImmediate: {},
			TimescaleMinutes:   {},
			TimescaleHours:     {},
			TimescaleDays:      {},
		}
		for _, ce := range adjacency[nodeID] {
			buckets[ce.At][neighborOf(ce)] = true
		}
		result[nodeID] = sortedBuckets(buckets)
	}
	return result
}

func sortedBuckets(buckets map[Timescale]map[string]bool) map[Timescale][]string {
	out := make(map[Timescale][]string, len(buckets))
	for ts, set := range buckets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[ts] = values
	}
	return out
}

// groupReachability implements §4.6.2: for every start node, the
// minimum-tick-sum to every reachable node within maxTick, bucketed by the
// reached tick. The start node itself is always omitted.
func groupReachability(g Compiled, adjacency map[string][]CompiledEdge, maxTick int, neighborOf func(CompiledEdge) string) map[string]map[Timescale][]string {
	result := make(map[string]map[Timescale][]string, len(g.Nodes))
	for nodeID := range g.Nodes {
		earliest := reachableByTimescale(nodeID, adjacency, maxTick, neighborOf)
		buckets := map[Timescale]map[string]bool{
			TimescaleImmediate: {},
			TimescaleMinutes:   {},
			TimescaleHours:     {},
			TimescaleDays:      {},
		}
		for target, tick := range earliest {
			buckets[TimescaleOfTick(tick)][target] = true
		}
		result[nodeID] = sortedBuckets(buckets)
	}
	return result
}

// tickHeapItem is one entry of the Dijkstra-like frontier: ticks are
// non-negative integers in 0..3, so a simple binary heap on tick suffices.
type tickHeapItem struct {
	tick int
	node string
}

type tickHeap []tickHeapItem

func (h tickHeap) Len() int            { return len(h) }
func (h tickHeap) Less(i, j int) bool  { return h[i].tick < h[j].tick }
func (h tickHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *tickHeap) Push(x interface{}) { *h = append(*h, x.(tickHeapItem)) }
func (h *tickHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reachableByTimescale computes the minimum-tick-sum from start to every
// reachable node, relaxing over CompiledEdge.AtTick as a non-negative edge
// weight (§4.6.2). This is Dijkstra specialized to the 0..3 tick domain.
func reachableByTimescale(start string, adjacency map[string][]CompiledEdge, maxTick int, neighborOf func(CompiledEdge) string) map[string]int {
	best := map[string]int{start: 0}
	h := &tickHeap{{tick: 0, node: start}}

	for h.Len() > 0 {
		item := heap.Pop(h).(tickHeapItem)
		if b, ok := best[item.node]; ok && item.tick > b {
			continue
		}
		for _, ce := range adjacency[item.node] {
			neighbor := neighborOf(ce)
			nextTick := item.tick + ce.AtTick
			if nextTick > maxTick {
				continue
			}
			if existing, ok := best[neighbor]; ok && nextTick >= existing {
				continue
			}
			best[neighbor] = nextTick
			heap.Push(h, tickHeapItem{tick: nextTick, node: neighbor})
		}
	}

	delete(best, start)
	return best
}

// logicalAdjacency builds the non-temporal adjacency used by SCC/feedback
// analysis: one edge per logical Edge, ignoring phases entirely.
func logicalAdjacency(g Compiled) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(g.Nodes))
	for nodeID := range g.Nodes {
		adj[nodeID] = map[string]bool{}
	}
	for _, e := range g.Edges {
		if _, ok := adj[e.Source]; !ok {
			adj[e.Source] = map[string]bool{}
		}
		adj[e.Source][e.Target] = true
		if _, ok := adj[e.Target]; !ok {
			adj[e.Target] = map[string]bool{}
		}
	}
	return adj
}

// tarjanFrame is one call-stack frame of the iterative Tarjan's algorithm,
// avoiding recursion so deep or pathological graphs cannot overflow the
// goroutine stack.
type tarjanFrame struct {
	node      string
	neighbors []string
	nextIdx   int
}

// stronglyConnectedComponents runs Tarjan's SCC over the logical adjacency
// (§4.6.3). A component is reported iff it has more than one node or the
// single node has a self-loop. Node iteration order follows g's load
// order for determinism; each component's members are sorted, and the
// component list is stable-sorted by (size, sorted nodes).
func stronglyConnectedComponents(nodeOrder []string, adj map[string]map[string]bool) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	neighborsOf := func(node string) []string {
		set := adj[node]
		out := make([]string, 0, len(set))
		for n := range set {
			out = append(out, n)
		}
		sort.Strings(out)
		return out
	}

	strongConnect := func(root string) {
		call := []*tarjanFrame{{node: root, neighbors: neighborsOf(root)}}
		indices[root] = index
		lowlinks[root] = index
		index++
		stack = append(stack, root)
		onStack[root] = true

		for len(call) > 0 {
			frame := call[len(call)-1]

			if frame.nextIdx < len(frame.neighbors) {
				neighbor := frame.neighbors[frame.nextIdx]
				frame.nextIdx++

				if _, visited := indices[neighbor]; !visited {
					indices[neighbor] = index
					lowlinks[neighbor] = index
					index++
					stack = append(stack, neighbor)
					onStack[neighbor] = true
					call = append(call, &tarjanFrame{node: neighbor, neighbors: neighborsOf(neighbor)})
					continue
				}
				if onStack[neighbor] {
					if indices[neighbor] < lowlinks[frame.node] {
						lowlinks[frame.node] = indices[neighbor]
					}
				}
				continue
			}

			// All neighbors processed; pop this frame and propagate
			// lowlink to the parent before checking for an SCC root.
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := call[len(call)-1]
				if lowlinks[frame.node] < lowlinks[parent.node] {
					lowlinks[parent.node] = lowlinks[frame.node]
				}
			}

			if lowlinks[frame.node] == indices[frame.node] {
				var component []string
				for {
					member := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[member] = false
					component = append(component, member)
					if member == frame.node {
						break
					}
				}
				if len(component) > 1 || adj[frame.node][frame.node] {
					sort.Strings(component)
					components = append(components, component)
				}
			}
		}
	}

	for _, nodeID := range nodeOrder {
		if _, visited := indices[nodeID]; !visited {
			strongConnect(nodeID)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) < len(components[j])
		}
		for k := range components[i] {
			if components[i][k] != components[j][k] {
				return components[i][k] < components[j][k]
			}
		}
		return false
	})

	return components
}

// buildFeedbackClusters implements §4.6.4.
func buildFeedbackClusters(g Compiled, sccs [][]string) []FeedbackCluster {
	clusters := make([]FeedbackCluster, 0, len(sccs))

	for _, component := range sccs {
		nodeSet := make(map[string]bool, len(component))
		for _, n := range component {
			nodeSet[n] = true
		}

		var inducedEdges []Edge
		for _, e := range g.Edges {
			if nodeSet[e.Source] && nodeSet[e.Target] {
				inducedEdges = append(inducedEdges, e)
			}
		}
		if len(inducedEdges) == 0 {
			continue
		}

		var inducedCompiled []CompiledEdge
		for _, ce := range g.CompiledEdges {
			if nodeSet[ce.Source] && nodeSet[ce.Target] {
				inducedCompiled = append(inducedCompiled, ce)
			}
		}

		hasPositive, hasNegative := false, false
		seenPairs := make(map[[2]string]bool, len(inducedEdges))
		for _, e := range inducedEdges {
			if e.Rel.IsPositive() {
				hasPositive = true
			} else {
				hasNegative = true
			}
			seenPairs[[2]string{e.Source, e.Target}] = true
		}
		mixedSign := hasPositive && hasNegative

		reciprocalSet := make(map[[2]string]bool)
		for pair := range seenPairs {
			source, target := pair[0], pair[1]
			if source == target {
				continue
			}
			if seenPairs[[2]string{target, source}] {
				sorted := [2]string{source, target}
				if target < source {
					sorted = [2]string{target, source}
				}
				reciprocalSet[sorted] = true
			}
		}
		hasSelfLoop := false
		for _, e := range inducedEdges {
			if e.Source == e.Target {
				hasSelfLoop = true
				break
			}
		}
		hasReciprocal := len(reciprocalSet) > 0 || hasSelfLoop

		if !hasReciprocal && !mixedSign {
			continue
		}

		reciprocalPairs := make([][2]string, 0, len(reciprocalSet))
		for pair := range reciprocalSet {
			reciprocalPairs = append(reciprocalPairs, pair)
		}
		sort.Slice(reciprocalPairs, func(i, j int) bool {
			if reciprocalPairs[i][0] != reciprocalPairs[j][0] {
				return reciprocalPairs[i][0] < reciprocalPairs[j][0]
			}
			return reciprocalPairs[i][1] < reciprocalPairs[j][1]
		})

		sort.Slice(inducedEdges, func(i, j int) bool {
			a, b := inducedEdges[i], inducedEdges[j]
			if a.Source != b.Source {
				return a.Source < b.Source
			}
			if a.Target != b.Target {
				return a.Target < b.Target
			}
			return a.Rel < b.Rel
		})
		edgeLabels := make([]string, 0, len(inducedEdges))
		for _, e := range inducedEdges {
			edgeLabels = append(edgeLabels, fmt.Sprintf("%s %s %s", e.Source, e.Rel, e.Target))
		}

		hasDelayedPhase := false
		for _, ce := range inducedCompiled {
			if ce.AtTick > 0 {
				hasDelayedPhase = true
				break
			}
		}

		clusters = append(clusters, FeedbackCluster{
			Nodes:           component,
			Edges:           edgeLabels,
			MixedSign:       mixedSign,
			Reciprocal:      hasReciprocal,
			HasDelayedPhase: hasDelayedPhase,
			ReciprocalPairs: reciprocalPairs,
		})
	}

	return clusters
}

// reviewCandidates implements §4.6.5.
func reviewCandidates(g Compiled, clusters []FeedbackCluster) ReviewCandidates {
	pairSet := make(map[[2]string]bool)
	for _, c := range clusters {
		for _, pair := range c.ReciprocalPairs {
			pairSet[pair] = true
		}
	}
	reciprocalEdges := make([][2]string, 0, len(pairSet))
	for pair := range pairSet {
		reciprocalEdges = append(reciprocalEdges, pair)
	}
	sort.Slice(reciprocalEdges, func(i, j int) bool {
		if reciprocalEdges[i][0] != reciprocalEdges[j][0] {
			return reciprocalEdges[i][0] < reciprocalEdges[j][0]
		}
		return reciprocalEdges[i][1] < reciprocalEdges[j][1]
	})

	var fastFeedback []FeedbackCluster
	for _, c := range clusters {
		if !c.HasDelayedPhase {
			fastFeedback = append(fastFeedback, c)
		}
	}

	nodeSets := make([]map[string]bool, len(clusters))
	for i, c := range clusters {
		set := make(map[string]bool, len(c.Nodes))
		for _, n := range c.Nodes {
			set[n] = true
		}
		nodeSets[i] = set
	}
	inAnyCluster := func(source, target string) bool {
		for _, set := range nodeSets {
			if set[source] && set[target] {
				return true
			}
		}
		return false
	}

	phasesByPair := make(map[[2]string][]CompiledEdge)
	for _, ce := range g.CompiledEdges {
		key := [2]string{ce.Source, ce.Target}
		phasesByPair[key] = append(phasesByPair[key], ce)
	}

	labelSet := make(map[string]bool)
	for _, e := range g.Edges {
		phases := phasesByPair[[2]string{e.Source, e.Target}]
		if len(phases) == 0 {
			continue
		}
		allImmediate := true
		for _, p := range phases {
			if p.AtTick != 0 {
				allImmediate = false
				break
			}
		}
		if !allImmediate || e.Weight < 0.7 || !inAnyCluster(e.Source, e.Target) {
			continue
		}
		labelSet[fmt.Sprintf("%s %s %s", e.Source, e.Rel, e.Target)] = true
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return ReviewCandidates{
		ReciprocalEdges:              reciprocalEdges,
		FastFeedbackLoops:            fastFeedback,
		ImmediateOnlyHighWeightEdges: labels,
	}
}
