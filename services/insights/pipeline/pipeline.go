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
	"log/slog"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/AleutianAI/AleutianInsights/services/insights/sanitizer"
)

// Options configures pipeline policy knobs.
type Options struct {
	// SuppressWeakCorrelations drops numeric insights whose absolute
	// correlation falls below the low-confidence threshold instead of
	// passing them through with low confidence and a warning. The
	// pass-through behavior is the default; see the policy discrepancy
	// notes in the test suite before changing it.
	SuppressWeakCorrelations bool

	// RejectCausalNarratives makes causal phrasing in why_it_matters a
	// hard rejection at validation time instead of leaving it for the
	// sanitizer's rewrite pass. Default off: the rewrite pass already
	// guarantees no causal language reaches the response, and rejecting
	// here would discard otherwise well-grounded insights.
	RejectCausalNarratives bool
}

// Pipeline composes the validation gates and the sanitization stages in a
// fixed order. Stateless apart from the immutable sanitizer engine; safe for
// concurrent use.
type Pipeline struct {
	engine *sanitizer.Engine
	opts   Options
}

// New constructs a pipeline around an existing sanitizer engine.
func New(engine *sanitizer.Engine, opts Options) *Pipeline {
	return &Pipeline{engine: engine, opts: opts}
}

// ValidationResult is the outcome of the validation pass: gated, confidence-
// scored, deterministically ranked insights plus the factor index and the
// rejection audit trail.
type ValidationResult struct {
	Insights   []datatypes.ValidatedInsight
	Index      *FactorIndex
	Rejections []Rejection
}

// Validate runs the trust gates over the raw model insights.
//
// # Description
//
// Stage order is fixed: batch row-count gate, allow-list gate, evidence
// gate, the optional forbidden-language hard gate plus confidence
// computation, the weak-correlation policy, then deterministic ranking. Confidence and factor
// identity in the output come exclusively from backend statistics; nothing
// the model claimed about itself survives.
//
// # Inputs
//
//   - stats: Trusted backend statistics for the dataset.
//   - schemaColumns: Authoritative column list, may be nil.
//   - raws: Untrusted model insights.
//
// # Outputs
//
//   - *ValidationResult: Ranked survivors with the index and rejections.
//   - error: ErrInsufficientRows when the dataset is too small, or
//     ErrNoValidInsights when every insight was rejected.
func (p *Pipeline) Validate(stats datatypes.BackendStats, schemaColumns []string, raws []datatypes.RawInsight) (*ValidationResult, error) {
	idx := BuildFactorIndex(stats, schemaColumns)

	if stats.TotalRows < MinRowsForEvidence {
		return nil, fmt.Errorf("%w: %d rows, need at least %d",
			ErrInsufficientRows, stats.TotalRows, MinRowsForEvidence)
	}

	kept, rejections := allowListGate(idx, raws)

	kept, evidenceRejections := evidenceGate(idx, kept)
	rejections = append(rejections, evidenceRejections...)

	validated := make([]datatypes.ValidatedInsight, 0, len(kept))
	for _, raw := range kept {
		why := datatypes.EnsureString(raw.WhyItMatters, datatypes.MissingWhyFallback)
		evidence := datatypes.EnsureString(raw.Evidence, datatypes.MissingEvidenceFallback)

		// Hard content-policy gate: unlike the sanitizer's soft rewrite,
		// causal phrasing at validation time rejects the insight outright.
		// Off by default; the rewrite pass covers the invariant either way.
		if p.opts.RejectCausalNarratives {
			if findings := p.engine.ScanForbidden(why); len(findings) > 0 {
				rejections = append(rejections, reject(raw.Factor, GateConfidence,
					"forbidden_language:"+findings[0].PatternId))
				continue
			}
		}

		stat, _ := idx.Stat(raw.Factor)
		tier := ComputeConfidence(stat)

		if stat.Type == datatypes.FactorNumeric && stat.AbsCorrelation < numericMediumThreshold {
			if p.opts.SuppressWeakCorrelations {
				rejections = append(rejections, reject(raw.Factor, GateWeakCorr, "below_low_threshold"))
				continue
			}
			slog.Warn("weak correlation passed through with low confidence",
				"factor", raw.Factor, "abs_correlation", stat.AbsCorrelation)
		}

		validated = append(validated, datatypes.ValidatedInsight{
			Factor:       raw.Factor,
			WhyItMatters: why,
			Evidence:     evidence,
			Confidence:   tier,
			Stat:         stat,
		})
	}

	if len(validated) == 0 {
		return nil, fmt.Errorf(
			"%w: check that the dataset has at least %d rows, that factor names match real columns, and that the listed factors carry non-zero statistical evidence",
			ErrNoValidInsights, MinRowsForEvidence)
	}

	return &ValidationResult{
		Insights:   rankByImpact(idx, validated),
		Index:      idx,
		Rejections: rejections,
	}, nil
}

// Sanitize turns validated insights into response-ready sanitized insights.
//
// # Description
//
// Re-validates factor identity against the approved set (defense in depth),
// recomputes backend confidence and silently overwrites disagreement (soft
// policy, unlike Validate's hard gate), rewrites causal language, strips
// numbers from the narrative, applies the dataset-size confidence cap,
// deduplicates factors, and injects the canned fallback if nothing remains.
// The returned slice is never empty and ranks are contiguous from 1.
func (p *Pipeline) Sanitize(result *ValidationResult) []datatypes.SanitizedInsight {
	idx := result.Index
	out := make([]datatypes.SanitizedInsight, 0, len(result.Insights))

	for _, v := range result.Insights {
		if !idx.Approved(v.Factor) {
			slog.Warn("insight dropped during sanitization, factor no longer approved", "factor", v.Factor)
			continue
		}

		tier := ComputeConfidence(v.Stat)
		if tier != v.Confidence {
			slog.Debug("overwriting model-era confidence with backend confidence",
				"factor", v.Factor, "was", v.Confidence, "now", tier)
		}
		tier = CapConfidence(tier, idx.TotalRows())

		out = append(out, datatypes.SanitizedInsight{
			Rank:                  v.Rank,
			Factor:                v.Factor,
			WhyItMatters:          p.engine.SanitizeNarrative(v.WhyItMatters),
			Evidence:              p.engine.SanitizeEvidence(v.Evidence),
			Confidence:            tier,
			ConfidenceExplanation: ConfidenceExplanation(tier, v.Stat, idx.TotalRows()),
		})
	}

	return injectFallback(dedupeByFactor(out))
}

// DefaultLimitations is the stock limitations sentence used when the model
// omits one or its version cannot be cleaned.
const DefaultLimitations = "Insights describe associations observed in the analyzed dataset and do not establish causation."

// CleanFreeText rewrites causal language in auxiliary model text such as
// data risks. Entries that still carry forbidden phrasing after rewriting
// are dropped rather than replaced; raw numbers are allowed here.
func (p *Pipeline) CleanFreeText(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		cleaned := p.engine.RewriteCausalLanguage(t)
		if len(p.engine.ScanForbidden(cleaned)) > 0 {
			slog.Warn("dropping free-text entry with residual forbidden language")
			continue
		}
		out = append(out, cleaned)
	}
	return out
}

// CleanLimitations cleans the model's limitations sentence, substituting
// the stock sentence when it is empty or cannot be cleaned.
func (p *Pipeline) CleanLimitations(text string) string {
	cleaned := p.engine.RewriteCausalLanguage(text)
	if cleaned == "" || len(p.engine.ScanForbidden(cleaned)) > 0 {
		return DefaultLimitations
	}
	return cleaned
}
