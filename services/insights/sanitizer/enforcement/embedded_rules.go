// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bridges the build system and the runtime sanitizer. It uses the Go
embed package to bake causal_language_rules.yaml directly into the compiled
binary, so the content policy is immutable at runtime and travels with the
executable.
*/

package enforcement

import (
	_ "embed"
)

// CausalLanguageRules holds the raw byte content of causal_language_rules.yaml.
//
// Populated at compile time via the embed directive. The rewrite order in the
// file is load-bearing; consumers must preserve it.
//
// Usage:
//
//	err := yaml.Unmarshal(enforcement.CausalLanguageRules, &targetStruct)
//
//go:embed causal_language_rules.yaml
var CausalLanguageRules []byte
