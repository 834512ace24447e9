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

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and compile the knowledge packs, reporting any loader error",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := graph.Load(packsDir, logger)
		if err != nil {
			if !jsonOut {
				fmt.Println(cliux.Fail("load failed: %v", err))
			}
			return fmt.Errorf("physioqc: %w", err)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(map[string]any{
				"packs_dir":      packsDir,
				"nodes":          len(snap.Nodes),
				"edges":          len(snap.Edges),
				"compiled_edges": len(snap.CompiledEdges),
				"syndromes":      len(snap.Syndromes),
			})
		}

		fmt.Println(cliux.OK("%d nodes, %d edges, %d compiled edges, %d syndromes",
			len(snap.Nodes), len(snap.Edges), len(snap.CompiledEdges), len(snap.Syndromes)))
		return nil
	},
}
