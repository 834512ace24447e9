// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the reasoning engine over HTTP: simulate, compare,
// graph inspection, and hot reload. Per §1 this façade is an external
// collaborator with no non-trivial algorithmic behavior of its own — it
// only validates, binds, and translates between JSON and the engine's
// types.
package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/physiograph/internal/engine"
	"github.com/AleutianAI/physiograph/internal/graph"
)

// apiValidate is the shared validator instance for request DTOs.
// Initialized in init() so handlers never pay repeated reflection setup
// cost. It reads the same `binding` tags gin uses.
var apiValidate *validator.Validate

func init() {
	apiValidate = validator.New(validator.WithRequiredStructEnabled())
	apiValidate.SetTagName("binding")
}

// perturbationDTO mirrors engine.Perturbation with binding tags; op is
// constrained to the four accepted variants (§9: unknown variants are
// rejected at parse time — here, at bind time).
type perturbationDTO struct {
	NodeID string   `json:"node_id" binding:"required"`
	Op     string   `json:"op" binding:"required,oneof=increase decrease block set"`
	Value  *float64 `json:"value,omitempty"`
}

// optionsDTO mirrors engine.Options. MaxHops/MinConfidence/MinEffectSize
// are pointers: an absent key applies the engine's default, while an
// explicit 0 is preserved as the boundary value it is (§3) rather than
// being coerced to the default.
type optionsDTO struct {
	MaxHops       *int     `json:"max_hops" binding:"omitempty,min=0"`
	MinConfidence *float64 `json:"min_confidence" binding:"omitempty,min=0,max=1"`
	MinEffectSize *float64 `json:"min_effect_size" binding:"omitempty,min=0,max=1"`
	TimeWindow    string   `json:"time_window" binding:"omitempty,oneof=immediate minutes hours days all"`
	DimUnaffected bool     `json:"dim_unaffected"`
}

// simulateRequestDTO is the wire shape of a simulate/compare-leg request
// body (§3 "Request").
type simulateRequestDTO struct {
	Perturbations []perturbationDTO `json:"perturbations"`
	Context       map[string]bool   `json:"context"`
	Options       optionsDTO        `json:"options"`
}

func (d simulateRequestDTO) toEngineRequest() engine.Request {
	perts := make([]engine.Perturbation, 0, len(d.Perturbations))
	for _, p := range d.Perturbations {
		perts = append(perts, engine.Perturbation{
			NodeID: p.NodeID,
			Op:     engine.Op(p.Op),
			Value:  p.Value,
		})
	}
	return engine.Request{
		Perturbations: perts,
		Context:       d.Context,
		Options: engine.Options{
			MaxHops:       d.Options.MaxHops,
			MinConfidence: d.Options.MinConfidence,
			MinEffectSize: d.Options.MinEffectSize,
			TimeWindow:    graph.Timescale(d.Options.TimeWindow),
			DimUnaffected: d.Options.DimUnaffected,
		},
	}
}

// compareRequestDTO is the wire shape of a compare request body (§6).
type compareRequestDTO struct {
	Baseline     simulateRequestDTO `json:"baseline" binding:"required"`
	Intervention simulateRequestDTO `json:"intervention" binding:"required"`
}
