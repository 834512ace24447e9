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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/physiograph/pkg/logging"
)

var (
	packsDir string
	jsonOut  bool

	logger = logging.Default()

	rootCmd = &cobra.Command{
		Use:   "physioqc",
		Short: "Offline quality checks for physiograph knowledge packs",
		Long: `physioqc loads a directory of knowledge packs, compiles the
graph, and reports loader errors or static-analytics findings without
starting the HTTP façade.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&packsDir, "packs", "./knowledge/packs", "path to the knowledge-pack directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON output")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(graphCmd)
}
