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
	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// FallbackFactor is the factor name of the canned insight injected when
// sanitization leaves an empty list.
const FallbackFactor = "analysis_complete"

const (
	fallbackWhy      = "Analysis completed. No strong statistically significant relationships were detected in this dataset."
	fallbackEvidence = "Statistical threshold not met"
	fallbackExplain  = "Low confidence: no factor met the evidence thresholds for this dataset."
)

// dedupeByFactor drops repeated factors, first occurrence wins. Input order
// is the post-ranking order, so the highest-impact copy survives. Ranks are
// renumbered to stay contiguous.
func dedupeByFactor(insights []datatypes.SanitizedInsight) []datatypes.SanitizedInsight {
	seen := make(map[string]struct{}, len(insights))
	out := make([]datatypes.SanitizedInsight, 0, len(insights))

	for _, ins := range insights {
		if _, dup := seen[ins.Factor]; dup {
			continue
		}
		seen[ins.Factor] = struct{}{}
		ins.Rank = len(out) + 1
		out = append(out, ins)
	}
	return out
}

// injectFallback replaces an empty result set with exactly one canned,
// non-committal insight so a success response never carries an empty payload.
// Reached only after validation already succeeded with at least one insight.
func injectFallback(insights []datatypes.SanitizedInsight) []datatypes.SanitizedInsight {
	if len(insights) > 0 {
		return insights
	}
	return []datatypes.SanitizedInsight{{
		Rank:                  1,
		Factor:                FallbackFactor,
		WhyItMatters:          fallbackWhy,
		Evidence:              fallbackEvidence,
		Confidence:            datatypes.ConfidenceLow,
		ConfidenceExplanation: fallbackExplain,
	}}
}
