// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"
)

func TestEnsureString(t *testing.T) {
	const fallback = "fallback text"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", `"marketing matters"`, "marketing matters"},
		{"empty string falls back", `""`, fallback},
		{"whitespace string falls back", `"   "`, fallback},
		{"null falls back", `null`, fallback},
		{"number becomes its text", `42`, "42"},
		{"object becomes compact JSON", `{"a": 1, "b": "x"}`, `{"a":1,"b":"x"}`},
		{"array becomes compact JSON", `[1, 2, 3]`, `[1,2,3]`},
		{"garbage falls back", `{broken`, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureString(json.RawMessage(tt.raw), fallback)
			if got != tt.want {
				t.Errorf("EnsureString(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	t.Run("nil falls back", func(t *testing.T) {
		if got := EnsureString(nil, fallback); got != fallback {
			t.Errorf("EnsureString(nil) = %q", got)
		}
	})
}

func TestConfidenceTierMin(t *testing.T) {
	tests := []struct {
		a, b, want ConfidenceTier
	}{
		{ConfidenceHigh, ConfidenceLow, ConfidenceLow},
		{ConfidenceLow, ConfidenceHigh, ConfidenceLow},
		{ConfidenceMedium, ConfidenceMedium, ConfidenceMedium},
		{ConfidenceHigh, ConfidenceMedium, ConfidenceMedium},
	}
	for _, tt := range tests {
		if got := tt.a.Min(tt.b); got != tt.want {
			t.Errorf("%s.Min(%s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConfidenceTierRank(t *testing.T) {
	if !(ConfidenceLow.Rank() < ConfidenceMedium.Rank() && ConfidenceMedium.Rank() < ConfidenceHigh.Rank()) {
		t.Error("tier ordering broken")
	}
	if ConfidenceTier("bogus").Rank() != 0 {
		t.Error("unknown tier should rank lowest")
	}
}

func TestRawInsightDecodesMessyFields(t *testing.T) {
	// why_it_matters as an object and evidence as a number must survive
	// decoding for later coercion instead of failing the whole envelope.
	blob := `{"rank": 1, "factor": "spend", "why_it_matters": {"text": "nested"}, "evidence": 42, "confidence": "very high"}`

	var ins RawInsight
	if err := json.Unmarshal([]byte(blob), &ins); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ins.Factor != "spend" {
		t.Errorf("Factor = %q", ins.Factor)
	}
	if EnsureString(ins.WhyItMatters, "x") != `{"text":"nested"}` {
		t.Errorf("WhyItMatters = %s", ins.WhyItMatters)
	}
	if EnsureString(ins.Evidence, "x") != "42" {
		t.Errorf("Evidence = %s", ins.Evidence)
	}
}
