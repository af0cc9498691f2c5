// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// buildInsightPrompt assembles the generation prompt from trusted backend
// statistics. The model only ever sees numbers we computed; it is told to
// explain them, not to invent new ones, and every claim it makes is
// re-validated downstream regardless.
func buildInsightPrompt(stats *datatypes.BackendStats, columns []string, avoid []string) string {
	statsJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		// BackendStats round-trips through JSON on arrival; this cannot
		// realistically fail, but the prompt must never be empty.
		statsJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("You are a data analyst explaining precomputed statistics to a business user.\n")
	b.WriteString("Using ONLY the statistics below, produce decision insights for the decision metric ")
	fmt.Fprintf(&b, "%q.\n\n", stats.DecisionMetric)
	b.WriteString("Statistics:\n")
	b.Write(statsJSON)
	b.WriteString("\n\n")

	if len(columns) > 0 {
		fmt.Fprintf(&b, "The only valid factor names are these dataset columns: %s.\n",
			strings.Join(columns, ", "))
	}

	b.WriteString(`Rules:
- Use only factor names that appear in the statistics. Never combine or invent factors.
- Describe associations, not causation. Do not use words like "causes", "drives", "leads to", "results in", "improves", or "worsens".
- Respond with a single JSON object, no markdown, matching:
  {"decision_metric": string, "top_insights": [{"rank": int, "factor": string, "why_it_matters": string, "evidence": string, "confidence": "low"|"medium"|"high"}], "data_risks": [string], "limitations": string}
`)

	if len(avoid) > 0 {
		b.WriteString("\nDo not reuse any of these sentences from a previous analysis; write fresh phrasing:\n")
		for _, s := range avoid {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}
