// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/physiograph/internal/engine"
	"github.com/AleutianAI/physiograph/internal/graph"
)

func TestSimulateRequestDTO_ToEngineRequest_MapsAllFields(t *testing.T) {
	value := 2.5
	maxHops := 3
	minConfidence := 0.2
	minEffectSize := 0.1
	dto := simulateRequestDTO{
		Perturbations: []perturbationDTO{
			{NodeID: "a", Op: "increase"},
			{NodeID: "b", Op: "set", Value: &value},
		},
		Context: map[string]bool{"copd": true},
		Options: optionsDTO{
			MaxHops:       &maxHops,
			MinConfidence: &minConfidence,
			MinEffectSize: &minEffectSize,
			TimeWindow:    "hours",
			DimUnaffected: true,
		},
	}

	req := dto.toEngineRequest()

	require.Len(t, req.Perturbations, 2)
	assert.Equal(t, "a", req.Perturbations[0].NodeID)
	assert.Equal(t, engine.OpIncrease, req.Perturbations[0].Op)
	assert.Equal(t, "b", req.Perturbations[1].NodeID)
	require.NotNil(t, req.Perturbations[1].Value)
	assert.Equal(t, 2.5, *req.Perturbations[1].Value)

	assert.True(t, req.Context["copd"])
	require.NotNil(t, req.Options.MaxHops)
	assert.Equal(t, 3, *req.Options.MaxHops)
	require.NotNil(t, req.Options.MinConfidence)
	assert.Equal(t, 0.2, *req.Options.MinConfidence)
	require.NotNil(t, req.Options.MinEffectSize)
	assert.Equal(t, 0.1, *req.Options.MinEffectSize)
	assert.Equal(t, graph.TimescaleHours, req.Options.TimeWindow)
	assert.True(t, req.Options.DimUnaffected)
}

// TestSimulateRequestDTO_ToEngineRequest_OmittedOptionsStayNil covers §3:
// an absent options block must reach engine.Request as nil pointers, not
// zero values, so Validate applies defaults rather than boundary zeros.
func TestSimulateRequestDTO_ToEngineRequest_OmittedOptionsStayNil(t *testing.T) {
	dto := simulateRequestDTO{}
	req := dto.toEngineRequest()
	assert.Nil(t, req.Options.MaxHops)
	assert.Nil(t, req.Options.MinConfidence)
	assert.Nil(t, req.Options.MinEffectSize)
}

func TestSimulateRequestDTO_ToEngineRequest_EmptyPerturbationsYieldsEmptySlice(t *testing.T) {
	dto := simulateRequestDTO{}
	req := dto.toEngineRequest()
	assert.NotNil(t, req.Perturbations)
	assert.Empty(t, req.Perturbations)
}

func TestPerturbationDTO_BindingRejectsUnknownOp(t *testing.T) {
	dto := perturbationDTO{NodeID: "a", Op: "delete"}
	err := apiValidate.Struct(dto)
	assert.Error(t, err)
}

func TestPerturbationDTO_BindingAcceptsAllFourOps(t *testing.T) {
	for _, op := range []string{"increase", "decrease", "block", "set"} {
		dto := perturbationDTO{NodeID: "a", Op: op}
		assert.NoError(t, apiValidate.Struct(dto), "op %q should be accepted at bind time", op)
	}
}

func TestOptionsDTO_BindingRejectsOutOfRangeConfidence(t *testing.T) {
	minConfidence := 1.5
	dto := optionsDTO{MinConfidence: &minConfidence}
	assert.Error(t, apiValidate.Struct(dto))
}

func TestCompareRequestDTO_BindingRequiresBothLegs(t *testing.T) {
	dto := compareRequestDTO{}
	assert.Error(t, apiValidate.Struct(dto))
}
