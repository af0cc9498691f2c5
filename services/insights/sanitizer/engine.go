// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sanitizer neutralizes causal and number-bearing language in
// model-generated insight text. Rules live in an embedded YAML file, are
// compiled once at startup, and are never mutated: the engine is a
// process-wide immutable table, safe for concurrent use.
package sanitizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/sanitizer/enforcement"
	"gopkg.in/yaml.v3"
)

// NeutralFallback replaces any sentence that still carries forbidden language
// after rewriting, or that collapses below the minimum useful length.
const NeutralFallback = "This factor shows a pattern associated with the decision metric."

// minNarrativeLength is the shortest rewritten sentence worth keeping.
const minNarrativeLength = 10

// Number-stripping patterns. Applied in order: correlation mentions first,
// then mean differences, then residual percentages and standalone numbers.
var (
	corrAfterRe  = regexp.MustCompile(`(?i)\bcorrelation(?:\s+coefficient)?\s*(?:of|is|was|=|:)?\s*[-+]?\d*\.?\d+`)
	corrBeforeRe = regexp.MustCompile(`(?i)[-+]?\d*\.?\d+\s+correlation\b`)
	meanDiffRe   = regexp.MustCompile(`(?i)\bmean\s+difference\s*(?:of|is|was|=|:)?\s*[-+]?\d*\.?\d+`)
	percentRe    = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?\s*%`)
	numberRe     = regexp.MustCompile(`[-+]?\b\d+(?:\.\d+)?\b`)

	floatRe       = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	orphanPunctRe = regexp.MustCompile(`\s+([,.;:!?)])`)
	emptyParenRe  = regexp.MustCompile(`\(\s*\)`)
)

// Engine applies the compiled causal-language rules. Construct once with
// NewEngine and share; all methods are pure.
type Engine struct {
	rewrites  []RewriteRule
	forbidden []ForbiddenPattern
}

// NewEngine builds the engine from the embedded rule file.
//
// # Description
//
// Unmarshals the embedded YAML, compiles every regex, and returns the
// ready-to-use engine. Rule order from the file is preserved exactly.
//
// # Outputs
//
//   - *Engine: The immutable engine.
//   - error: Non-nil if the embedded YAML is malformed or a regex is invalid.
func NewEngine() (*Engine, error) {
	var file RuleFile
	if err := yaml.Unmarshal(enforcement.CausalLanguageRules, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rule file: %w", err)
	}
	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a rule regex: %w", err)
	}
	return &Engine{rewrites: file.Rewrites, forbidden: file.Forbidden}, nil
}

// ScanForbidden audits a text for forbidden causal phrasing.
//
// Returns one Finding per pattern class that matches; an empty slice means
// the text is clean. Used both as the hard validation gate and as the
// post-rewrite residue check.
func (e *Engine) ScanForbidden(text string) []Finding {
	var findings []Finding
	for _, p := range e.forbidden {
		if match := p.compiledPattern.FindString(text); match != "" {
			findings = append(findings, Finding{
				PatternId:      p.Id,
				MatchedContent: strings.TrimSpace(match),
			})
		}
	}
	return findings
}

// RewriteCausalLanguage applies the ordered rewrite table to the text.
// Later rules depend on earlier ones having already fired; the order comes
// from the embedded file and must not change.
func (e *Engine) RewriteCausalLanguage(text string) string {
	out := text
	for _, r := range e.rewrites {
		out = r.compiledPattern.ReplaceAllString(out, r.Replacement)
	}
	return out
}

// StripNumbers removes digit-bearing fragments from narrative text.
//
// Correlation magnitudes become qualitative bands, mean-difference mentions
// become "substantial mean difference", then residual percentages and
// standalone numbers are removed and whitespace is normalized.
func (e *Engine) StripNumbers(text string) string {
	out := corrAfterRe.ReplaceAllStringFunc(text, bandReplacement)
	out = corrBeforeRe.ReplaceAllStringFunc(out, bandReplacement)
	out = meanDiffRe.ReplaceAllString(out, "substantial mean difference")
	out = percentRe.ReplaceAllString(out, "")
	out = numberRe.ReplaceAllString(out, "")
	return normalizeWhitespace(out)
}

// SanitizeNarrative fully cleans a why-it-matters sentence: causal rewrites,
// number stripping, and the neutral fallback when forbidden language remains
// or the text collapses to nothing useful.
func (e *Engine) SanitizeNarrative(text string) string {
	out := e.RewriteCausalLanguage(text)
	out = e.StripNumbers(out)
	return e.fallbackIfDirty(out)
}

// SanitizeEvidence cleans an evidence sentence. Evidence is exempt from
// number stripping (raw numbers are allowed there) but still must be free of
// causal language.
func (e *Engine) SanitizeEvidence(text string) string {
	out := normalizeWhitespace(e.RewriteCausalLanguage(text))
	return e.fallbackIfDirty(out)
}

// fallbackIfDirty swaps in the neutral sentence when forbidden tokens remain
// or the cleaned text is shorter than the minimum.
func (e *Engine) fallbackIfDirty(text string) string {
	if len(e.ScanForbidden(text)) > 0 {
		return NeutralFallback
	}
	if len(strings.TrimSpace(text)) < minNarrativeLength {
		return NeutralFallback
	}
	return text
}

// bandReplacement maps a matched correlation-number fragment to its
// qualitative band label.
func bandReplacement(match string) string {
	numText := floatRe.FindString(match)
	value, err := strconv.ParseFloat(numText, 64)
	if err != nil {
		return "correlation"
	}
	if value < 0 {
		value = -value
	}
	switch {
	case value > 0.7:
		return "strong correlation"
	case value > 0.4:
		return "moderate correlation"
	default:
		return "weak correlation"
	}
}

// normalizeWhitespace collapses runs of spaces and fixes punctuation gaps
// left behind by stripped fragments.
func normalizeWhitespace(text string) string {
	out := emptyParenRe.ReplaceAllString(text, "")
	out = multiSpaceRe.ReplaceAllString(out, " ")
	out = orphanPunctRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
