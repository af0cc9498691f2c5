// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the insights service.
//
// This file contains the statistics types produced by the analytics backend.
// The insights service never computes these numbers itself; it only consumes
// them as the trusted side of the validation pipeline.
package datatypes

// Factor kinds as reported by the analytics backend.
const (
	FactorNumeric     = "numeric"
	FactorCategorical = "categorical"
)

// FactorStat is the backend-computed statistical record for one dataset column.
//
// # Description
//
// One FactorStat exists per analyzable column. Numeric factors carry a Pearson
// correlation against the decision metric; categorical factors carry the
// max-min segment mean difference and its relative impact. ImpactScore is the
// backend's authoritative ranking value and is only populated on entries that
// appear in BackendStats.TopFactors.
//
// # Fields
//
//   - Factor: Column name. Must match a real dataset column.
//   - Type: "numeric" or "categorical".
//   - ImpactScore: Backend ranking value (abs correlation * 100 for numeric,
//     relative impact percentage for categorical).
//   - Correlation / AbsCorrelation: Signed and absolute Pearson correlation.
//   - MeanDifference: Difference between the highest and lowest segment means.
//   - RelativeImpactPct: MeanDifference relative to the overall mean, in percent.
//   - TopSegments / BottomSegments: Up to three highest and lowest segment means.
type FactorStat struct {
	Factor            string             `json:"factor"`
	Type              string             `json:"type"`
	ImpactScore       float64            `json:"impact_score,omitempty"`
	Correlation       float64            `json:"correlation,omitempty"`
	AbsCorrelation    float64            `json:"abs_correlation,omitempty"`
	MeanDifference    float64            `json:"mean_difference,omitempty"`
	RelativeImpactPct float64            `json:"relative_impact_pct,omitempty"`
	TopSegments       map[string]float64 `json:"top_segments,omitempty"`
	BottomSegments    map[string]float64 `json:"bottom_segments,omitempty"`
}

// ExcludedColumn records a column the backend refused to analyze and why
// (high uniqueness, free text, identifier patterns).
type ExcludedColumn struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// BackendStats is the immutable statistics input for one pipeline run.
//
// # Description
//
// Produced wholesale by the analytics backend's decision-EDA endpoint. The
// pipeline treats every field as trusted and never mutates it; the struct is
// echoed back in responses and embedded in persisted snapshots.
type BackendStats struct {
	DecisionMetric      string             `json:"decision_metric"`
	TotalRows           int                `json:"total_rows"`
	ValidRows           int                `json:"valid_rows"`
	MissingPercentage   float64            `json:"missing_percentage"`
	OutlierCount        int                `json:"outlier_count"`
	OutlierPercentage   float64            `json:"outlier_percentage"`
	TopFactors          []FactorStat       `json:"top_factors"`
	AllCorrelations     []FactorStat       `json:"all_correlations"`
	AllSegmentImpacts   []FactorStat       `json:"all_segment_impacts"`
	ExcludedColumns     []ExcludedColumn   `json:"excluded_columns"`
	DecisionMetricStats map[string]float64 `json:"decision_metric_stats,omitempty"`
}

// SchemaColumn is one column entry from the dataset-schema service.
type SchemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// DatasetSchema is the authoritative column list for a dataset. When present
// it defines the approved factor set; when unavailable the pipeline falls back
// to the factor names found in BackendStats.
type DatasetSchema struct {
	Columns []SchemaColumn `json:"columns"`
}

// ColumnNames returns the schema's column names in declaration order.
func (s *DatasetSchema) ColumnNames() []string {
	if s == nil || len(s.Columns) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}
