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
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/pkg/logging"
)

// ChangeType classifies how a node's resolution differs between a
// baseline and an intervention simulation (§6).
type ChangeType string

const (
	ChangeNew           ChangeType = "new"
	ChangeResolved      ChangeType = "resolved"
	ChangeDirectionFlip ChangeType = "direction_flip"
	ChangeStrengthened  ChangeType = "strengthened"
	ChangeWeakened      ChangeType = "weakened"
	changeUnchanged     ChangeType = "unchanged"
)

// ChangedNode is one non-unchanged row of the comparison (§6).
type ChangedNode struct {
	NodeID           string        `json:"node_id"`
	ChangeType       ChangeType    `json:"change_type"`
	BaselineNode     *AffectedNode `json:"baseline,omitempty"`
	InterventionNode *AffectedNode `json:"intervention,omitempty"`
	EffectSizeDelta  float64       `json:"effect_size_delta"`
}

// ComparisonRequest pairs a baseline and an intervention simulation
// request (§6).
type ComparisonRequest struct {
	Baseline     Request `json:"baseline"`
	Intervention Request `json:"intervention"`
}

// ComparisonResponse carries both simulation results plus the classified
// diff between them.
type ComparisonResponse struct {
	Baseline     Response      `json:"baseline"`
	Intervention Response      `json:"intervention"`
	ChangedNodes []ChangedNode `json:"changed_nodes"`
}

// Compare runs the baseline and intervention simulations concurrently
// (they operate on the same read-only snapshot and share no mutable
// state, so there is nothing to synchronize) and classifies the
// per-node differences per the §6 table.
func Compare(snap *graph.Snapshot, req ComparisonRequest, logger *logging.Logger) (ComparisonResponse, error) {
	var baselineResp, interventionResp Response

	group, _ := errgroup.WithContext(context.Background())
	group.Go(func() error {
		resp, err := Simulate(snap, req.Baseline, logger)
		if err != nil {
			return err
		}
		baselineResp = resp
		return nil
	})
	group.Go(func() error {
		resp, err := Simulate(snap, req.Intervention, logger)
		if err != nil {
			return err
		}
		interventionResp = resp
		return nil
	})
	if err := group.Wait(); err != nil {
		return ComparisonResponse{}, err
	}

	baselineByNode := indexAffected(baselineResp.AffectedNodes)
	interventionByNode := indexAffected(interventionResp.AffectedNodes)

	seen := make(map[string]bool, len(baselineByNode)+len(interventionByNode))
	nodeIDs := make([]string, 0, len(baselineByNode)+len(interventionByNode))
	for id := range baselineByNode {
		if !seen[id] {
			seen[id] = true
			nodeIDs = append(nodeIDs, id)
		}
	}
	for id := range interventionByNode {
		if !seen[id] {
			seen[id] = true
			nodeIDs = append(nodeIDs, id)
		}
	}
	sort.Strings(nodeIDs)

	var changed []ChangedNode
	for _, nodeID := range nodeIDs {
		b, hasB := baselineByNode[nodeID]
		iv, hasIv := interventionByNode[nodeID]
		changeType, delta := classify(b, hasB, iv, hasIv)
		if changeType == changeUnchanged {
			continue
		}

		row := ChangedNode{NodeID: nodeID, ChangeType: changeType, EffectSizeDelta: delta}
		if hasB {
			baselineCopy := b
			row.BaselineNode = &baselineCopy
		}
		if hasIv {
			interventionCopy := iv
			row.InterventionNode = &interventionCopy
		}
		changed = append(changed, row)
	}

	sort.SliceStable(changed, func(i, j int) bool {
		return absFloat(changed[i].EffectSizeDelta) > absFloat(changed[j].EffectSizeDelta)
	})

	return ComparisonResponse{
		Baseline:     baselineResp,
		Intervention: interventionResp,
		ChangedNodes: changed,
	}, nil
}

func indexAffected(nodes []AffectedNode) map[string]AffectedNode {
	out := make(map[string]AffectedNode, len(nodes))
	for _, n := range nodes {
		out[n.NodeID] = n
	}
	return out
}

// classify implements the §6 change_type table.
func classify(b AffectedNode, hasB bool, iv AffectedNode, hasIv bool) (ChangeType, float64) {
	switch {
	case !hasB && hasIv:
		return ChangeNew, iv.EffectSize
	case hasB && !hasIv:
		return ChangeResolved, -b.EffectSize
	case !hasB && !hasIv:
		return changeUnchanged, 0
	}

	delta := iv.EffectSize - b.EffectSize
	switch {
	case iv.Direction != b.Direction:
		return ChangeDirectionFlip, delta
	case iv.EffectSize > b.EffectSize+0.05:
		return ChangeStrengthened, delta
	case b.EffectSize > iv.EffectSize+0.05:
		return ChangeWeakened, delta
	default:
		return changeUnchanged, delta
	}
}
