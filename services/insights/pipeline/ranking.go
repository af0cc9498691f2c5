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
	"sort"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// rankByImpact orders insights descending by the backend impact score, with
// an ascending lexicographic tie-break on factor name so the order is a total
// order. Ranks are reassigned 1..N; any rank value the model supplied is
// already gone by this point.
func rankByImpact(idx *FactorIndex, insights []datatypes.ValidatedInsight) []datatypes.ValidatedInsight {
	ranked := make([]datatypes.ValidatedInsight, len(insights))
	copy(ranked, insights)

	sort.SliceStable(ranked, func(i, j int) bool {
		si := idx.ImpactScore(ranked[i].Factor)
		sj := idx.ImpactScore(ranked[j].Factor)
		if si != sj {
			return si > sj
		}
		return ranked[i].Factor < ranked[j].Factor
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
