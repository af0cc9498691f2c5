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
	"log/slog"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/AleutianAI/AleutianInsights/services/insights/observability"
)

// Gate names used in rejection records and metrics labels.
const (
	GateAllowList  = "allow_list"
	GateEvidence   = "evidence"
	GateConfidence = "confidence"
	GateWeakCorr   = "weak_correlation"
)

// Rejection records one dropped insight with the gate and reason.
// Rejections are logged and counted but never surfaced to end users.
type Rejection struct {
	Factor string `json:"factor"`
	Gate   string `json:"gate"`
	Reason string `json:"reason"`
}

// reject logs and counts a rejection, then returns it.
func reject(factor, gate, reason string) Rejection {
	slog.Warn("insight rejected", "factor", factor, "gate", gate, "reason", reason)
	observability.InsightsRejectedTotal.WithLabelValues(gate, reason).Inc()
	return Rejection{Factor: factor, Gate: gate, Reason: reason}
}

// looksSynthesized applies the compound-feature heuristic: factor names
// containing spaces or arithmetic operators, or long names with multiple
// underscores, indicate the model invented a derived feature.
func looksSynthesized(factor string) bool {
	if strings.ContainsAny(factor, " +-*/") {
		return true
	}
	return strings.Count(factor, "_") > 1 && len(factor) > 20
}

// allowListGate drops insights whose factor identity cannot be trusted:
// empty names, synthesized-looking names, and names outside the approved set.
func allowListGate(idx *FactorIndex, raws []datatypes.RawInsight) ([]datatypes.RawInsight, []Rejection) {
	kept := make([]datatypes.RawInsight, 0, len(raws))
	var rejections []Rejection

	for _, r := range raws {
		switch {
		case strings.TrimSpace(r.Factor) == "":
			rejections = append(rejections, reject(r.Factor, GateAllowList, "empty_factor"))
		case looksSynthesized(r.Factor):
			rejections = append(rejections, reject(r.Factor, GateAllowList, "synthesized_factor"))
		case !idx.Approved(r.Factor):
			rejections = append(rejections, reject(r.Factor, GateAllowList, "unknown_factor"))
		default:
			kept = append(kept, r)
		}
	}
	return kept, rejections
}

// hasUsableEvidence checks the statistical record backing an insight.
// Numeric factors need a finite, non-zero correlation; categorical factors
// need a finite mean difference. Anything else is rejected.
func hasUsableEvidence(stat datatypes.FactorStat) (bool, string) {
	switch stat.Type {
	case datatypes.FactorNumeric:
		corr := stat.AbsCorrelation
		if math.IsNaN(corr) || math.IsInf(corr, 0) {
			return false, "non_finite_correlation"
		}
		if corr == 0 {
			return false, "zero_correlation"
		}
		return true, ""
	case datatypes.FactorCategorical:
		diff := stat.MeanDifference
		if math.IsNaN(diff) || math.IsInf(diff, 0) {
			return false, "non_finite_mean_difference"
		}
		return true, ""
	default:
		return false, "unrecognized_factor_kind"
	}
}

// evidenceGate drops insights without a usable statistical record. The
// minimum-row check is batch-level and runs in Validate before this loop.
func evidenceGate(idx *FactorIndex, raws []datatypes.RawInsight) ([]datatypes.RawInsight, []Rejection) {
	kept := make([]datatypes.RawInsight, 0, len(raws))
	var rejections []Rejection

	for _, r := range raws {
		stat, ok := idx.Stat(r.Factor)
		if !ok {
			rejections = append(rejections, reject(r.Factor, GateEvidence, "no_statistic"))
			continue
		}
		usable, reason := hasUsableEvidence(stat)
		if !usable {
			rejections = append(rejections, reject(r.Factor, GateEvidence, reason))
			continue
		}
		kept = append(kept, r)
	}
	return kept, rejections
}
