// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the insight types at each trust level of the pipeline.
//
// The three insight structs are deliberately distinct types rather than one
// mutable object: RawInsight comes straight from the language model and may be
// fabricated in any field, ValidatedInsight has passed the identity and
// evidence gates, and only SanitizedInsight is ever serialized into a
// response. The type system keeps unsanitized text away from the serializer.
package datatypes

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ConfidenceTier is the three-level confidence scale computed from backend
// statistics. Model-supplied confidence values are parsed but never trusted.
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "low"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceHigh   ConfidenceTier = "high"
)

// confidenceRank orders tiers for cap/downgrade comparisons.
var confidenceRank = map[ConfidenceTier]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// Rank returns the ordinal position of the tier (low=0, medium=1, high=2).
// Unknown tiers rank lowest.
func (c ConfidenceTier) Rank() int {
	return confidenceRank[c]
}

// Min returns the lower of the two tiers. Used by the confidence capper,
// which may only ever downgrade.
func (c ConfidenceTier) Min(other ConfidenceTier) ConfidenceTier {
	if other.Rank() < c.Rank() {
		return other
	}
	return c
}

// Fallback text used when the model omits or mangles a narrative field.
const (
	MissingWhyFallback      = "No explanation provided."
	MissingEvidenceFallback = "No supporting evidence provided."
)

// RawInsight is one insight exactly as the language model produced it.
//
// Every field is untrusted: the factor may be hallucinated or synthesized,
// the rank and confidence are discarded outright, and the narrative fields
// may be arbitrary JSON values rather than strings. Narrative fields are held
// as json.RawMessage so coercion happens in exactly one place (EnsureString).
type RawInsight struct {
	Rank         int             `json:"rank"`
	Factor       string          `json:"factor"`
	WhyItMatters json.RawMessage `json:"why_it_matters"`
	Evidence     json.RawMessage `json:"evidence"`
	Confidence   string          `json:"confidence"`
}

// ValidatedInsight is an insight whose factor identity and statistical
// grounding have been confirmed. Factor and Confidence are overwritten from
// trusted computation; Rank is reassigned by the ranking stage. Stat carries
// the matched backend record forward for the sanitization stage.
type ValidatedInsight struct {
	Rank         int
	Factor       string
	WhyItMatters string
	Evidence     string
	Confidence   ConfidenceTier
	Stat         FactorStat
}

// SanitizedInsight is the only insight type that reaches the response
// serializer. Invariant: WhyItMatters and Evidence contain no entry of the
// forbidden-phrase set, and Factor belongs to the approved factor set.
type SanitizedInsight struct {
	Rank                  int            `json:"rank"`
	Factor                string         `json:"factor"`
	WhyItMatters          string         `json:"why_it_matters"`
	Evidence              string         `json:"evidence"`
	Confidence            ConfidenceTier `json:"confidence"`
	ConfidenceExplanation string         `json:"confidence_explanation"`
}

// InsightPayload is the user-facing insight block of a response and the
// content portion of a persisted snapshot.
type InsightPayload struct {
	DecisionMetric string             `json:"decision_metric"`
	TopInsights    []SanitizedInsight `json:"top_insights"`
	DataRisks      []string           `json:"data_risks"`
	Limitations    string             `json:"limitations"`
}

// InsightSnapshot is the persisted result of one successful pipeline run,
// keyed by (workspace, dataset, decision metric). Snapshots are replaced
// wholesale on regeneration, never merged.
type InsightSnapshot struct {
	Version        int            `json:"version"`
	WorkspaceID    string         `json:"workspace_id"`
	DatasetID      string         `json:"dataset_id"`
	DecisionMetric string         `json:"decision_metric"`
	DatasetHash    string         `json:"dataset_hash"`
	CreatedAt      time.Time      `json:"created_at"`
	BackendStats   BackendStats   `json:"backend_stats"`
	Insights       InsightPayload `json:"insights"`
}

// EnsureString coerces a raw JSON value into a scalar string.
//
// # Description
//
// The model sometimes emits objects, arrays, or numbers where the schema asks
// for prose. Strings are unquoted; any other non-null JSON value becomes its
// compact JSON text; null, absent, or undecodable values become the supplied
// fallback. This guarantees the output schema's text fields are always scalar
// strings.
//
// # Inputs
//
//   - raw: The raw JSON value, possibly nil.
//   - fallback: Returned when the value is null, absent, or empty.
//
// # Outputs
//
//   - string: The coerced text, never empty.
func EnsureString(raw json.RawMessage, fallback string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fallback
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fallback
		}
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return fallback
	}
	return buf.String()
}
