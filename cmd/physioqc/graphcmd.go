// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/pkg/cliux"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Run the static graph analytics (SCCs, feedback clusters, review candidates)",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := graph.Load(packsDir, logger)
		if err != nil {
			return fmt.Errorf("physioqc: %w", err)
		}

		analytics := graph.Analyze(snap.Compiled, graph.TickOf(graph.TimescaleDays))

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(analytics)
		}

		fmt.Println(cliux.Heading("graph analytics"))
		fmt.Printf("strongly connected components: %d\n", len(analytics.SCCs))
		for _, scc := range analytics.SCCs {
			fmt.Printf("  %v\n", scc)
		}
		fmt.Printf("feedback clusters: %d\n", len(analytics.FeedbackClusters))
		for _, c := range analytics.FeedbackClusters {
			fmt.Printf("  nodes=%v mixed_sign=%v reciprocal=%v has_delayed_phase=%v\n",
				c.Nodes, c.MixedSign, c.Reciprocal, c.HasDelayedPhase)
		}
		fmt.Printf("review candidates: %d reciprocal edges, %d fast-feedback loops, %d immediate-only high-weight edges\n",
			len(analytics.ReviewCandidates.ReciprocalEdges),
			len(analytics.ReviewCandidates.FastFeedbackLoops),
			len(analytics.ReviewCandidates.ImmediateOnlyHighWeightEdges))
		return nil
	},
}
