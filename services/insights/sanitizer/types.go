// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sanitizer

import (
	"fmt"
	"regexp"
)

// RuleFile mirrors the structure of the embedded YAML rule file.
type RuleFile struct {
	Rewrites  []RewriteRule      `yaml:"rewrites"`
	Forbidden []ForbiddenPattern `yaml:"forbidden"`
}

// RewriteRule is one ordered (pattern, replacement) pair. Rules fire in file
// order; later rules assume earlier ones have already been applied.
type RewriteRule struct {
	Id          string `yaml:"id"`
	Description string `yaml:"description"`
	Regex       string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`

	compiledPattern *regexp.Regexp `yaml:"-"`
}

// ForbiddenPattern is a phrase class that must never survive into output
// text. A match after rewriting triggers the neutral fallback sentence.
type ForbiddenPattern struct {
	Id          string `yaml:"id"`
	Description string `yaml:"description"`
	Regex       string `yaml:"pattern"`

	compiledPattern *regexp.Regexp `yaml:"-"`
}

// Finding reports one forbidden-phrase hit in a scanned text.
type Finding struct {
	PatternId      string `json:"pattern_id"`
	MatchedContent string `json:"matched_content"`
}

// CompileRegexes compiles every pattern in the file, preserving order.
func (f *RuleFile) CompileRegexes() error {
	for i := range f.Rewrites {
		re, err := regexp.Compile(f.Rewrites[i].Regex)
		if err != nil {
			return fmt.Errorf("failed to compile rewrite %s: %w", f.Rewrites[i].Id, err)
		}
		f.Rewrites[i].compiledPattern = re
	}
	for i := range f.Forbidden {
		re, err := regexp.Compile(f.Forbidden[i].Regex)
		if err != nil {
			return fmt.Errorf("failed to compile forbidden pattern %s: %w", f.Forbidden[i].Id, err)
		}
		f.Forbidden[i].compiledPattern = re
	}
	return nil
}
