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
	"fmt"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// Confidence thresholds for numeric factors (absolute correlation).
const (
	numericMediumThreshold = 0.10
	numericHighThreshold   = 0.30
)

// Confidence thresholds for categorical factors.
const (
	categoricalHighImpactPct   = 20.0
	categoricalMediumImpactPct = 10.0
	categoricalHighMeanDiff    = 0.1
	categoricalMediumMeanDiff  = 0.05
)

// Row-count ceilings for the confidence capper.
const (
	capLowBelowRows    = 30
	capMediumBelowRows = 100
)

// ComputeConfidence derives a confidence tier from the backend statistic
// alone. The model's self-reported confidence never enters this calculation.
//
// Sample size does not participate here: row count can only lower confidence
// later, via CapConfidence.
func ComputeConfidence(stat datatypes.FactorStat) datatypes.ConfidenceTier {
	switch stat.Type {
	case datatypes.FactorNumeric:
		corr := stat.AbsCorrelation
		if corr < 0 {
			corr = -corr
		}
		switch {
		case corr >= numericHighThreshold:
			return datatypes.ConfidenceHigh
		case corr >= numericMediumThreshold:
			return datatypes.ConfidenceMedium
		default:
			return datatypes.ConfidenceLow
		}
	case datatypes.FactorCategorical:
		switch {
		case stat.RelativeImpactPct > categoricalHighImpactPct || stat.MeanDifference > categoricalHighMeanDiff:
			return datatypes.ConfidenceHigh
		case stat.RelativeImpactPct > categoricalMediumImpactPct || stat.MeanDifference > categoricalMediumMeanDiff:
			return datatypes.ConfidenceMedium
		default:
			return datatypes.ConfidenceLow
		}
	default:
		return datatypes.ConfidenceLow
	}
}

// MaxConfidenceForRows returns the dataset-size ceiling on confidence.
func MaxConfidenceForRows(totalRows int) datatypes.ConfidenceTier {
	switch {
	case totalRows < capLowBelowRows:
		return datatypes.ConfidenceLow
	case totalRows < capMediumBelowRows:
		return datatypes.ConfidenceMedium
	default:
		return datatypes.ConfidenceHigh
	}
}

// CapConfidence downgrades the tier to at most the row-count ceiling.
// It never upgrades.
func CapConfidence(tier datatypes.ConfidenceTier, totalRows int) datatypes.ConfidenceTier {
	return tier.Min(MaxConfidenceForRows(totalRows))
}

// correlationBand maps an absolute correlation to its qualitative label.
// Shared with the sanitizer's number-stripping rewrites.
func correlationBand(abs float64) string {
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 0.7:
		return "strong"
	case abs > 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

// ConfidenceExplanation builds the human-readable explanation string from the
// final tier, row count, and (for categorical factors) segment consistency.
// Purely descriptive; no gate reads it.
func ConfidenceExplanation(tier datatypes.ConfidenceTier, stat datatypes.FactorStat, totalRows int) string {
	var qualifier string
	switch tier {
	case datatypes.ConfidenceHigh:
		qualifier = "High"
	case datatypes.ConfidenceMedium:
		qualifier = "Medium"
	default:
		qualifier = "Low"
	}

	base := fmt.Sprintf("%s confidence based on %d rows", qualifier, totalRows)
	switch stat.Type {
	case datatypes.FactorNumeric:
		return fmt.Sprintf("%s and a %s correlation signal.", base, correlationBand(stat.AbsCorrelation))
	case datatypes.FactorCategorical:
		if n := len(stat.TopSegments); n > 0 {
			return fmt.Sprintf("%s with consistent separation across %d segments.", base, n)
		}
		return base + " of segment-level differences."
	default:
		return base + "."
	}
}
