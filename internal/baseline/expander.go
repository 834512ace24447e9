// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline expands a request's Boolean clinical context into the
// perturbations it implies, merging them with the user's own perturbations
// under the precedence rule in §4.2: user perturbations always win, and
// among baseline perturbations the first context flag (in table order) to
// touch a node wins.
package baseline

// Op is the perturbation operator a context-baseline entry contributes.
// It mirrors the subset of engine.Op the table needs; baseline entries
// are always increase/decrease, never block/set.
type Op string

const (
	OpIncrease Op = "increase"
	OpDecrease Op = "decrease"
)

// Perturbation is the minimal shape the expander produces and consumes:
// a node identifier and an operator. The engine package's Perturbation
// carries additional fields (an optional value); expansion only ever
// needs these two.
type Perturbation struct {
	NodeID string
	Op     Op
}

// entry is one built-in baseline perturbation.
type entry struct {
	NodeID string
	Op     Op
}

// flagEntries is the fixed built-in table (§6), keyed by context flag.
// Declaration order below is the evaluation order: flagOrder must list
// every key exactly once, in the order flags are considered when two
// flags would otherwise claim the same node.
var flagEntries = map[string][]entry{
	"ace_inhibitor": {
		{NodeID: "renal.raas.at1_receptor", Op: OpDecrease},
		{NodeID: "renal.raas.aldosterone", Op: OpDecrease},
	},
	"beta_blocker": {
		{NodeID: "cardio.signaling.gs_protein", Op: OpDecrease},
		{NodeID: "cardio.hemodynamics.heart_rate", Op: OpDecrease},
	},
	"heart_failure": {
		{NodeID: "cardio.hemodynamics.stroke_volume", Op: OpDecrease},
		{NodeID: "cardio.metabolism.myocardial_o2_supply", Op: OpDecrease},
		{NodeID: "renal.metabolism.anp_bnp", Op: OpIncrease},
	},
	"dehydration": {
		{NodeID: "renal.volume.ecf_volume", Op: OpDecrease},
		{NodeID: "renal.metabolism.osmolarity", Op: OpIncrease},
		{NodeID: "renal.metabolism.adh", Op: OpIncrease},
	},
	"ckd": {
		{NodeID: "renal.tubule.na_reabsorption", Op: OpDecrease},
		{NodeID: "renal.metabolism.potassium", Op: OpIncrease},
	},
	"copd": {
		{NodeID: "pulm.mechanics.resistance", Op: OpIncrease},
		{NodeID: "pulm.gasexchange.vq_mismatch", Op: OpIncrease},
		{NodeID: "pulm.gasexchange.diffusion_capacity", Op: OpDecrease},
	},
}

// flagOrder fixes the declaration order of flagEntries; this order is
// observable (§4.2: "evaluation order of flags is table order").
var flagOrder = []string{
	"ace_inhibitor",
	"beta_blocker",
	"heart_failure",
	"dehydration",
	"ckd",
	"copd",
}

// Expand merges context-implied baseline perturbations into userPerts
// per §4.2: for every flag set true in context, append each baseline
// perturbation whose node is not already among the user perturbations
// and not already appended by an earlier (table-order) flag. User
// perturbations always precede baseline ones and are never altered or
// removed.
func Expand(userPerts []Perturbation, context map[string]bool) []Perturbation {
	claimed := make(map[string]bool, len(userPerts))
	for _, p := range userPerts {
		claimed[p.NodeID] = true
	}

	merged := make([]Perturbation, len(userPerts), len(userPerts)+8)
	copy(merged, userPerts)

	for _, flag := range flagOrder {
		if !context[flag] {
			continue
		}
		for _, e := range flagEntries[flag] {
			if claimed[e.NodeID] {
				continue
			}
			claimed[e.NodeID] = true
			merged = append(merged, Perturbation{NodeID: e.NodeID, Op: e.Op})
		}
	}

	return merged
}
