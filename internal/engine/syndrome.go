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
	"strings"

	"github.com/AleutianAI/physiograph/internal/graph"
)

// syndromeMatch is one syndrome detected within a trace path (§4.5).
type syndromeMatch struct {
	Label    string
	FirstIdx int
	LastIdx  int
}

func (m syndromeMatch) spanLen() int { return m.LastIdx - m.FirstIdx + 1 }

// summarize implements §4.5: detect every syndrome whose sequence is an
// order-preserving subsequence of path, take each syndrome's leftmost
// match span (firstMatchSpan), drop matches strictly subsumed by a longer one, dedupe
// labels, and render the human-readable summary.
func summarize(path []string, syndromes []graph.Syndrome) string {
	var matches []syndromeMatch
	for _, syn := range syndromes {
		start, end, found := firstMatchSpan(path, syn.Sequence)
		if !found {
			continue
		}
		matches = append(matches, syndromeMatch{Label: syn.Label, FirstIdx: start, LastIdx: end})
	}
	if len(matches) == 0 {
		return ""
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].FirstIdx != matches[j].FirstIdx {
			return matches[i].FirstIdx < matches[j].FirstIdx
		}
		return matches[i].spanLen() > matches[j].spanLen()
	})

	var kept []syndromeMatch
	for i, m := range matches {
		subsumed := false
		for j, other := range matches {
			if i == j {
				continue
			}
			strictlyContains := other.FirstIdx <= m.FirstIdx && other.LastIdx >= m.LastIdx &&
				(other.FirstIdx < m.FirstIdx || other.LastIdx > m.LastIdx)
			if strictlyContains && other.spanLen() > m.spanLen() {
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, m)
		}
	}

	seen := make(map[string]bool, len(kept))
	var labels []string
	for _, m := range kept {
		if seen[m.Label] {
			continue
		}
		seen[m.Label] = true
		labels = append(labels, m.Label)
	}

	return formatLabels(labels)
}

func formatLabels(labels []string) string {
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " followed by " + labels[1]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + ", followed by " + labels[len(labels)-1]
	}
}

// firstMatchSpan finds sequence's first order-preserving (non-contiguous)
// match within path: it locates sequence[0]'s first occurrence, then
// advances through the remaining elements of sequence in order, stopping
// at the first index that completes the match. It does not search for a
// smaller window once a match completes, matching the reference engine's
// greedy _subsequence_span scan.
func firstMatchSpan(path []string, sequence []string) (int, int, bool) {
	if len(sequence) == 0 {
		return 0, 0, false
	}

	start := -1
	j := 0
	for i, node := range path {
		if node != sequence[j] {
			continue
		}
		if j == 0 {
			start = i
		}
		j++
		if j == len(sequence) {
			return start, i, true
		}
	}
	return 0, 0, false
}
