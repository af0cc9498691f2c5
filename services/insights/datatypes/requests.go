// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and response types for the insights endpoints.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// insightValidate is the validator instance for insights datatypes.
var insightValidate *validator.Validate

func init() {
	insightValidate = validator.New()
}

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.New().String()
}

// GenerateInsightsRequest is the body of POST /v1/insights.
//
// # Description
//
// Identifies the dataset and decision metric to generate insights for, and
// the language-model provider/model to use. Regenerate forces a fresh run:
// the prior snapshot is deleted before new statistics are computed.
//
// # Fields
//
//   - RequestID: Optional client-supplied correlation ID (UUID v4). Generated
//     server-side when absent.
//   - Timestamp: Optional Unix timestamp in milliseconds. Generated when absent.
//   - WorkspaceID / DatasetID / DecisionMetric: Required snapshot key fields.
//   - Provider: Required. Only "groq" is supported.
//   - Model: Required model identifier, e.g. "llama-3.3-70b-versatile".
//   - APIKey: Optional per-request API key; falls back to service config.
//   - Regenerate: Optional. Skip the cache and replace any prior snapshot.
//
// # Validation
//
// Uses go-playground/validator. Call Validate() after binding.
type GenerateInsightsRequest struct {
	RequestID      string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp      int64  `json:"timestamp" validate:"gte=0"`
	WorkspaceID    string `json:"workspace_id" validate:"required,min=1,max=256"`
	DatasetID      string `json:"dataset_id" validate:"required,min=1,max=512"`
	DecisionMetric string `json:"decision_metric" validate:"required,min=1,max=256"`
	Provider       string `json:"provider" validate:"required,oneof=groq"`
	Model          string `json:"model" validate:"required,min=1,max=128"`
	APIKey         string `json:"api_key,omitempty" validate:"omitempty,max=512"`
	Regenerate     bool   `json:"regenerate,omitempty"`
}

// Validate validates the request fields against their tags.
func (r *GenerateInsightsRequest) Validate() error {
	return insightValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp when the client omitted them.
func (r *GenerateInsightsRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// GenerateInsightsResponse is the success body of POST /v1/insights.
type GenerateInsightsResponse struct {
	Success         bool             `json:"success"`
	Insights        InsightPayload   `json:"insights"`
	BackendStats    BackendStats     `json:"backend_stats"`
	ExcludedColumns []ExcludedColumn `json:"excluded_columns"`
	Cached          bool             `json:"cached"`
}

// SnapshotQuery identifies a snapshot for the read/delete endpoints.
// Bound from query parameters.
type SnapshotQuery struct {
	WorkspaceID    string `form:"workspace_id" validate:"required,min=1,max=256"`
	DatasetID      string `form:"dataset_id" validate:"required,min=1,max=512"`
	DecisionMetric string `form:"decision_metric" validate:"required,min=1,max=256"`
}

// Validate validates the query fields against their tags.
func (q *SnapshotQuery) Validate() error {
	return insightValidate.Struct(q)
}
