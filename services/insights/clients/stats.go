// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package clients holds HTTP clients for the collaborator services the
// insights pipeline consumes: the statistics engine and the dataset-schema
// service, both served by the Python analytics backend.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamError carries the backend's status code so handlers can propagate
// it instead of collapsing everything to 500.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stats backend returned %d: %s", e.StatusCode, e.Detail)
}

// StatsClient calls the analytics backend. The pipeline owns no retries or
// timeouts here; those belong to the injected HTTP client.
type StatsClient struct {
	baseURL string
	http    HTTPClient
}

// NewStatsClient builds a client for the backend at baseURL. A nil hc falls
// back to http.DefaultClient.
func NewStatsClient(baseURL string, hc HTTPClient) *StatsClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &StatsClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// computeStatsRequest is the decision-EDA request body (backend wire format).
type computeStatsRequest struct {
	WorkspaceID    string `json:"workspace_id"`
	DatasetID      string `json:"dataset_id"`
	DecisionMetric string `json:"decision_metric"`
}

// ComputeStats asks the backend to compute decision-EDA statistics.
//
// # Outputs
//
//   - *datatypes.BackendStats: The trusted statistics for one pipeline run.
//   - error: *UpstreamError on a non-200 backend response.
func (c *StatsClient) ComputeStats(ctx context.Context, workspaceID, datasetID, decisionMetric string) (*datatypes.BackendStats, error) {
	body, err := json.Marshal(computeStatsRequest{
		WorkspaceID:    workspaceID,
		DatasetID:      datasetID,
		DecisionMetric: decisionMetric,
	})
	if err != nil {
		return nil, fmt.Errorf("encode stats request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/decision-eda", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call stats backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stats response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	var stats datatypes.BackendStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return &stats, nil
}

// GetSchema fetches the authoritative column list for a dataset.
//
// A failure here is expected to be non-fatal for the caller: the pipeline
// falls back to the factor names present in the statistics.
func (c *StatsClient) GetSchema(ctx context.Context, workspaceID, datasetID string) (*datatypes.DatasetSchema, error) {
	endpoint := fmt.Sprintf("%s/workspaces/%s/datasets/%s/schema",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(datasetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build schema request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call schema service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read schema response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	var schema datatypes.DatasetSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema response: %w", err)
	}
	return &schema, nil
}

// upstreamDetail extracts the backend's error detail, falling back to the
// raw body. FastAPI-style backends wrap errors as {"detail": "..."}.
func upstreamDetail(raw []byte) string {
	var wrapped struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Detail != "" {
		return wrapped.Detail
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	if detail == "" {
		slog.Debug("stats backend returned an empty error body")
		detail = "no detail provided"
	}
	return detail
}
