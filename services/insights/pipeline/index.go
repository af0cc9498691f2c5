// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the insight validation and sanitization
// pipeline: the deterministic gate sequence between the trusted statistics
// backend and the untrusted language model. All stages are pure functions of
// their inputs; identical inputs always produce byte-identical output.
package pipeline

import (
	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
)

// FactorIndex holds the approved factor set and the per-factor statistical
// records for one pipeline run. Built once per request and read-only after.
type FactorIndex struct {
	approved  map[string]struct{}
	stats     map[string]datatypes.FactorStat
	impact    map[string]float64
	totalRows int
}

// BuildFactorIndex constructs the index from backend statistics and an
// optional authoritative schema column list.
//
// # Description
//
// The approved factor set is the schema column list when non-empty, otherwise
// the union of factor names across TopFactors, AllCorrelations, and
// AllSegmentImpacts. The per-factor record prefers the TopFactors entry for a
// name (it carries the impact score), falling back to the correlation or
// segment-impact record tagged with its inferred kind. Empty input yields an
// empty index; this function cannot fail.
func BuildFactorIndex(stats datatypes.BackendStats, schemaColumns []string) *FactorIndex {
	idx := &FactorIndex{
		approved:  make(map[string]struct{}),
		stats:     make(map[string]datatypes.FactorStat),
		impact:    make(map[string]float64),
		totalRows: stats.TotalRows,
	}

	for _, f := range stats.TopFactors {
		if _, ok := idx.stats[f.Factor]; !ok {
			idx.stats[f.Factor] = f
		}
		idx.impact[f.Factor] = f.ImpactScore
	}
	for _, f := range stats.AllCorrelations {
		if _, ok := idx.stats[f.Factor]; !ok {
			if f.Type == "" {
				f.Type = datatypes.FactorNumeric
			}
			idx.stats[f.Factor] = f
		}
	}
	for _, f := range stats.AllSegmentImpacts {
		if _, ok := idx.stats[f.Factor]; !ok {
			if f.Type == "" {
				f.Type = datatypes.FactorCategorical
			}
			idx.stats[f.Factor] = f
		}
	}

	if len(schemaColumns) > 0 {
		for _, name := range schemaColumns {
			idx.approved[name] = struct{}{}
		}
	} else {
		for name := range idx.stats {
			idx.approved[name] = struct{}{}
		}
	}

	return idx
}

// Approved reports whether the factor name belongs to the approved set.
func (x *FactorIndex) Approved(factor string) bool {
	_, ok := x.approved[factor]
	return ok
}

// Stat returns the statistical record for the factor, if any.
func (x *FactorIndex) Stat(factor string) (datatypes.FactorStat, bool) {
	s, ok := x.stats[factor]
	return s, ok
}

// ImpactScore returns the backend-supplied ranking value for the factor,
// or 0 when the factor was not ranked.
func (x *FactorIndex) ImpactScore(factor string) float64 {
	return x.impact[factor]
}

// TotalRows returns the dataset row count the index was built from.
func (x *FactorIndex) TotalRows() int {
	return x.totalRows
}

// Len returns the number of factors with statistical records.
func (x *FactorIndex) Len() int {
	return len(x.stats)
}
