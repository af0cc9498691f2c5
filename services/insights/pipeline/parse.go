// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// ModelEnvelope is the JSON document the language model is instructed to
// return. Every field inside is untrusted.
type ModelEnvelope struct {
	DecisionMetric string                 `json:"decision_metric"`
	TopInsights    []datatypes.RawInsight `json:"top_insights"`
	DataRisks      []string               `json:"data_risks"`
	Limitations    string                 `json:"limitations"`
}

// ParseModelOutput decodes the raw model response into a ModelEnvelope.
//
// # Description
//
// Models wrap JSON in markdown fences or leading prose often enough that the
// decoder first isolates the outermost JSON object. A response that is not
// parseable JSON, or that lacks decision_metric or top_insights, is a
// MalformedOutputError carrying a truncated excerpt of the raw text.
func ParseModelOutput(raw string) (*ModelEnvelope, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, newMalformedOutputError("no JSON object found in response", raw)
	}

	var env ModelEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, newMalformedOutputError("response is not valid JSON: "+err.Error(), raw)
	}
	if env.DecisionMetric == "" {
		return nil, newMalformedOutputError("response lacks decision_metric", raw)
	}
	if env.TopInsights == nil {
		return nil, newMalformedOutputError("response lacks top_insights", raw)
	}
	return &env, nil
}

// extractJSONObject returns the outermost {...} span of the text, stripping
// markdown code fences first. Empty string when no object is present.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
