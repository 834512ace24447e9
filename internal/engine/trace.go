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

import "sort"

const traceCap = 10

// upsertTrace implements §4.4: insert-or-replace by exact path, re-sort
// descending by (confidence, len(path)) on every change, and truncate to
// the first 10. The inserted/replaced entry's summary is computed fresh
// from the syndrome set.
func (s *simulation) upsertTrace(targetID string, step TraceStep) {
	step.Summary = summarize(step.Path, s.snap.Syndromes)

	existing := s.traces[targetID]
	if len(existing) == 0 {
		s.traces[targetID] = []TraceStep{step}
		return
	}

	replaced := false
	for i, t := range existing {
		if pathEqual(t.Path, step.Path) {
			if step.Confidence > t.Confidence {
				existing[i] = step
			}
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, step)
	}

	sort.SliceStable(existing, func(i, j int) bool {
		if existing[i].Confidence != existing[j].Confidence {
			return existing[i].Confidence > existing[j].Confidence
		}
		return len(existing[i].Path) > len(existing[j].Path)
	})
	if len(existing) > traceCap {
		existing = existing[:traceCap]
	}

	s.traces[targetID] = existing
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
