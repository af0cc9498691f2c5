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
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/AleutianAI/AleutianInsights/services/insights/sanitizer"
)

// =============================================================================
// Test Fixtures
// =============================================================================

var causalWordRe = regexp.MustCompile(`(?i)\b(causes?|caused|causing|driven|drives?|drove|leads?\s+to|led\s+to|results?\s+in|because\s+of|due\s+to)\b`)

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	engine, err := sanitizer.NewEngine()
	if err != nil {
		t.Fatalf("sanitizer.NewEngine failed: %v", err)
	}
	return New(engine, opts)
}

func rawText(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func rawInsight(factor, why, evidence string) datatypes.RawInsight {
	return datatypes.RawInsight{
		Factor:       factor,
		WhyItMatters: rawText(why),
		Evidence:     rawText(evidence),
	}
}

// testStats builds the reference dataset: one strong numeric factor, one
// categorical factor, one weak numeric factor, 1500 rows.
func testStats() datatypes.BackendStats {
	return datatypes.BackendStats{
		DecisionMetric: "monthly_revenue",
		TotalRows:      1500,
		ValidRows:      1480,
		TopFactors: []datatypes.FactorStat{
			{
				Factor:         "marketing_spend",
				Type:           datatypes.FactorNumeric,
				ImpactScore:    75.0,
				Correlation:    0.75,
				AbsCorrelation: 0.75,
			},
			{
				Factor:            "region",
				Type:              datatypes.FactorCategorical,
				ImpactScore:       25.0,
				MeanDifference:    1200.0,
				RelativeImpactPct: 25.0,
				TopSegments:       map[string]float64{"west": 5400, "north": 5100, "east": 4900},
				BottomSegments:    map[string]float64{"south": 4200},
			},
			{
				Factor:         "support_tickets",
				Type:           datatypes.FactorNumeric,
				ImpactScore:    8.0,
				Correlation:    -0.08,
				AbsCorrelation: 0.08,
			},
		},
		AllCorrelations: []datatypes.FactorStat{
			{Factor: "marketing_spend", Correlation: 0.75, AbsCorrelation: 0.75},
			{Factor: "support_tickets", Correlation: -0.08, AbsCorrelation: 0.08},
		},
		AllSegmentImpacts: []datatypes.FactorStat{
			{Factor: "region", MeanDifference: 1200.0, RelativeImpactPct: 25.0},
		},
		ExcludedColumns: []datatypes.ExcludedColumn{
			{Column: "customer_id", Reason: "identifier"},
		},
	}
}

func testColumns() []string {
	return []string{"marketing_spend", "region", "support_tickets", "monthly_revenue"}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidateHappyPath(t *testing.T) {
	p := newTestPipeline(t, Options{})

	raws := []datatypes.RawInsight{
		rawInsight("region", "Region shows clear separation between segments.", "Mean difference of 1200 across regions"),
		rawInsight("marketing_spend", "Marketing spend shows a strong relationship with revenue.", "Correlation: 0.75"),
	}

	result, err := p.Validate(testStats(), testColumns(), raws)
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}
	if len(result.Insights) != 2 {
		t.Fatalf("got %d insights, want 2", len(result.Insights))
	}

	// Impact ordering: marketing_spend (75.0) before region (25.0).
	if result.Insights[0].Factor != "marketing_spend" || result.Insights[1].Factor != "region" {
		t.Errorf("wrong order: %q then %q", result.Insights[0].Factor, result.Insights[1].Factor)
	}
	if result.Insights[0].Rank != 1 || result.Insights[1].Rank != 2 {
		t.Errorf("ranks not contiguous from 1: %d, %d", result.Insights[0].Rank, result.Insights[1].Rank)
	}
	if result.Insights[0].Confidence != datatypes.ConfidenceHigh {
		t.Errorf("marketing_spend confidence = %s, want high", result.Insights[0].Confidence)
	}
	if result.Insights[1].Confidence != datatypes.ConfidenceHigh {
		t.Errorf("region confidence = %s, want high", result.Insights[1].Confidence)
	}
}

func TestValidateRejectsUntrustedFactors(t *testing.T) {
	p := newTestPipeline(t, Options{})

	tests := []struct {
		name   string
		factor string
		reason string
	}{
		{"unknown column", "unknown_feature", "unknown_factor"},
		{"space separated compound", "marketing_spend region", "synthesized_factor"},
		{"arithmetic compound", "region+marketing", "synthesized_factor"},
		{"empty name", "", "empty_factor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws := []datatypes.RawInsight{
				rawInsight("marketing_spend", "A strong relationship with revenue.", "Correlation: 0.75"),
				rawInsight(tt.factor, "An invented relationship.", "none"),
			}
			result, err := p.Validate(testStats(), testColumns(), raws)
			if err != nil {
				t.Fatalf("Validate returned an error: %v", err)
			}
			if len(result.Insights) != 1 {
				t.Fatalf("got %d insights, want 1 survivor", len(result.Insights))
			}
			found := false
			for _, r := range result.Rejections {
				if r.Reason == tt.reason {
					found = true
				}
			}
			if !found {
				t.Errorf("no rejection with reason %q, got %v", tt.reason, result.Rejections)
			}
		})
	}
}

func TestValidateInsufficientRows(t *testing.T) {
	p := newTestPipeline(t, Options{})

	stats := testStats()
	stats.TotalRows = 49
	_, err := p.Validate(stats, testColumns(), []datatypes.RawInsight{
		rawInsight("marketing_spend", "A strong relationship.", "Correlation: 0.75"),
	})
	if !errors.Is(err, ErrInsufficientRows) {
		t.Fatalf("got %v, want ErrInsufficientRows", err)
	}

	// The boundary itself is accepted.
	stats.TotalRows = MinRowsForEvidence
	if _, err := p.Validate(stats, testColumns(), []datatypes.RawInsight{
		rawInsight("marketing_spend", "A strong relationship.", "Correlation: 0.75"),
	}); err != nil {
		t.Fatalf("row count at the minimum rejected: %v", err)
	}
}

func TestValidateNoSurvivors(t *testing.T) {
	p := newTestPipeline(t, Options{})

	_, err := p.Validate(testStats(), testColumns(), []datatypes.RawInsight{
		rawInsight("unknown_feature", "Invented.", "none"),
		rawInsight("made_up_column", "Also invented.", "none"),
	})
	if !errors.Is(err, ErrNoValidInsights) {
		t.Fatalf("got %v, want ErrNoValidInsights", err)
	}
}

// TestCausalNarrativePolicy covers both sides of the causal-narrative
// policy. The documented behavior for a causal why_it_matters is a hard
// rejection at validation time, but the reference end-to-end example has
// the same sentence surviving and being rewritten; the two cannot both
// hold, so the gate is a policy knob and both behaviors are pinned here.
func TestCausalNarrativePolicy(t *testing.T) {
	raws := []datatypes.RawInsight{
		rawInsight("marketing_spend", "Marketing spend causes revenue growth.", "Correlation: 0.75"),
		rawInsight("region", "Region shows separation between segments.", "Mean difference of 1200"),
	}

	t.Run("default rewrites during sanitization", func(t *testing.T) {
		p := newTestPipeline(t, Options{})
		result, err := p.Validate(testStats(), testColumns(), raws)
		if err != nil {
			t.Fatalf("Validate returned an error: %v", err)
		}
		if len(result.Insights) != 2 {
			t.Fatalf("got %d insights, want 2", len(result.Insights))
		}
		out := p.Sanitize(result)
		if out[0].WhyItMatters != "Marketing spend is associated with revenue growth." {
			t.Errorf("causal verb not rewritten: %q", out[0].WhyItMatters)
		}
	})

	t.Run("hard gate rejects outright", func(t *testing.T) {
		p := newTestPipeline(t, Options{RejectCausalNarratives: true})
		result, err := p.Validate(testStats(), testColumns(), raws)
		if err != nil {
			t.Fatalf("Validate returned an error: %v", err)
		}
		if len(result.Insights) != 1 || result.Insights[0].Factor != "region" {
			t.Fatalf("causal narrative not rejected, survivors: %+v", result.Insights)
		}
	})
}

// TestConfidenceOverridesModelClaim pins the reference example: a model
// claiming low confidence on a 0.75 correlation factor comes out ranked
// first, high confidence, causal verb rewritten.
func TestConfidenceOverridesModelClaim(t *testing.T) {
	p := newTestPipeline(t, Options{})

	stats := datatypes.BackendStats{
		DecisionMetric: "revenue",
		TotalRows:      1000,
		TopFactors: []datatypes.FactorStat{
			{Factor: "marketing_spend", Type: datatypes.FactorNumeric, ImpactScore: 85.5, AbsCorrelation: 0.75},
		},
	}
	raws := []datatypes.RawInsight{
		{
			Factor:       "marketing_spend",
			WhyItMatters: rawText("Marketing spend causes revenue to increase"),
			Evidence:     rawText("Correlation: 0.75"),
			Confidence:   "low",
		},
	}

	result, err := p.Validate(stats, nil, raws)
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}
	out := p.Sanitize(result)
	if len(out) != 1 {
		t.Fatalf("got %d insights, want 1", len(out))
	}
	if out[0].Rank != 1 || out[0].Factor != "marketing_spend" {
		t.Errorf("wrong identity: %+v", out[0])
	}
	if out[0].Confidence != datatypes.ConfidenceHigh {
		t.Errorf("confidence = %s, want high (model's claim discarded)", out[0].Confidence)
	}
	if out[0].WhyItMatters != "Marketing spend is associated with revenue to increase" {
		t.Errorf("narrative = %q", out[0].WhyItMatters)
	}
}

func TestValidateCoercesNonStringFields(t *testing.T) {
	p := newTestPipeline(t, Options{})

	raws := []datatypes.RawInsight{
		{
			Factor:       "marketing_spend",
			WhyItMatters: json.RawMessage(`{"text": "a strong relationship"}`),
			Evidence:     json.RawMessage(`null`),
		},
	}
	result, err := p.Validate(testStats(), testColumns(), raws)
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}
	if result.Insights[0].WhyItMatters != `{"text":"a strong relationship"}` {
		t.Errorf("object not compacted: %q", result.Insights[0].WhyItMatters)
	}
	if result.Insights[0].Evidence != datatypes.MissingEvidenceFallback {
		t.Errorf("null evidence not defaulted: %q", result.Insights[0].Evidence)
	}
}

func TestWeakCorrelationPolicy(t *testing.T) {
	raws := []datatypes.RawInsight{
		rawInsight("support_tickets", "Support tickets show a slight negative relationship.", "Correlation: -0.08"),
	}

	// Default policy: pass through with low confidence.
	t.Run("pass through", func(t *testing.T) {
		p := newTestPipeline(t, Options{})
		result, err := p.Validate(testStats(), testColumns(), raws)
		if err != nil {
			t.Fatalf("Validate returned an error: %v", err)
		}
		if len(result.Insights) != 1 {
			t.Fatalf("got %d insights, want 1", len(result.Insights))
		}
		if result.Insights[0].Confidence != datatypes.ConfidenceLow {
			t.Errorf("confidence = %s, want low", result.Insights[0].Confidence)
		}
	})

	// Suppression policy: the insight is dropped and the batch fails.
	t.Run("suppress", func(t *testing.T) {
		p := newTestPipeline(t, Options{SuppressWeakCorrelations: true})
		_, err := p.Validate(testStats(), testColumns(), raws)
		if !errors.Is(err, ErrNoValidInsights) {
			t.Fatalf("got %v, want ErrNoValidInsights", err)
		}
	})
}

// =============================================================================
// Sanitize
// =============================================================================

func TestSanitizeEndToEnd(t *testing.T) {
	p := newTestPipeline(t, Options{})

	result, err := p.Validate(testStats(), testColumns(), []datatypes.RawInsight{
		rawInsight("marketing_spend",
			"Marketing spend drives revenue with a correlation of 0.75.",
			"Correlation: 0.75, n = 1500"),
		rawInsight("region",
			"Region worsens outcomes in the south with a mean difference of 1200.",
			"Mean difference: 1200 between west and south"),
	})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	out := p.Sanitize(result)
	if len(out) != 2 {
		t.Fatalf("got %d insights, want 2", len(out))
	}

	first := out[0]
	if first.Factor != "marketing_spend" || first.Rank != 1 {
		t.Errorf("wrong first insight: %+v", first)
	}
	want := "Marketing spend appears to influence revenue with a strong correlation."
	if first.WhyItMatters != want {
		t.Errorf("narrative = %q, want %q", first.WhyItMatters, want)
	}
	// Evidence keeps its numbers.
	if first.Evidence != "Correlation: 0.75, n = 1500" {
		t.Errorf("evidence altered: %q", first.Evidence)
	}
	if first.Confidence != datatypes.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", first.Confidence)
	}
	if first.ConfidenceExplanation == "" {
		t.Error("missing confidence explanation")
	}

	for _, ins := range out {
		if causalWordRe.MatchString(ins.WhyItMatters) {
			t.Errorf("causal language in narrative: %q", ins.WhyItMatters)
		}
		if causalWordRe.MatchString(ins.Evidence) {
			t.Errorf("causal language in evidence: %q", ins.Evidence)
		}
	}
}

func TestSanitizeCapsConfidenceBySampleSize(t *testing.T) {
	p := newTestPipeline(t, Options{})

	tests := []struct {
		rows int
		want datatypes.ConfidenceTier
	}{
		{1500, datatypes.ConfidenceHigh},
		{99, datatypes.ConfidenceMedium},
		{50, datatypes.ConfidenceMedium},
	}
	for _, tt := range tests {
		stats := testStats()
		stats.TotalRows = tt.rows
		result, err := p.Validate(stats, testColumns(), []datatypes.RawInsight{
			rawInsight("marketing_spend", "A strong relationship with revenue.", "Correlation: 0.75"),
		})
		if err != nil {
			t.Fatalf("rows=%d: Validate returned an error: %v", tt.rows, err)
		}
		out := p.Sanitize(result)
		if out[0].Confidence != tt.want {
			t.Errorf("rows=%d: confidence = %s, want %s", tt.rows, out[0].Confidence, tt.want)
		}
	}
}

func TestSanitizeDeterministic(t *testing.T) {
	p := newTestPipeline(t, Options{})

	raws := []datatypes.RawInsight{
		rawInsight("region", "Region shows separation across segments.", "Mean difference: 1200"),
		rawInsight("marketing_spend", "Spend shows a strong relationship.", "Correlation: 0.75"),
		rawInsight("support_tickets", "Tickets show a slight relationship.", "Correlation: -0.08"),
	}

	run := func() []byte {
		result, err := p.Validate(testStats(), testColumns(), raws)
		if err != nil {
			t.Fatalf("Validate returned an error: %v", err)
		}
		b, err := json.Marshal(p.Sanitize(result))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		return b
	}

	first := run()
	for i := 0; i < 10; i++ {
		if got := run(); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, got)
		}
	}
}

// =============================================================================
// Free text cleanup
// =============================================================================

func TestCleanFreeText(t *testing.T) {
	p := newTestPipeline(t, Options{})

	got := p.CleanFreeText([]string{
		"High spend causes missing values in Q4",
		"Outliers in 2% of rows",
		"Churn happened because of pricing",
	})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(got), got)
	}
	if got[0] != "High spend is associated with missing values in Q4" {
		t.Errorf("rewrite failed: %q", got[0])
	}
	// Numbers are allowed in risk text.
	if got[1] != "Outliers in 2% of rows" {
		t.Errorf("clean entry altered: %q", got[1])
	}
}

func TestCleanLimitations(t *testing.T) {
	p := newTestPipeline(t, Options{})

	if got := p.CleanLimitations(""); got != DefaultLimitations {
		t.Errorf("empty input: got %q", got)
	}
	if got := p.CleanLimitations("Results happened because of sampling"); got != DefaultLimitations {
		t.Errorf("uncleanable input: got %q", got)
	}
	clean := "Observational data only; associations are not causal claims."
	if got := p.CleanLimitations(clean); got != clean {
		t.Errorf("clean input altered: %q", got)
	}
}
