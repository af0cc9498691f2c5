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
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure classes. Handlers map these to
// HTTP statuses; messages are safe to surface to callers verbatim.
var (
	// ErrNoValidInsights indicates every model insight was rejected by the
	// validation gates. Maps to HTTP 400 with actionable guidance.
	ErrNoValidInsights = errors.New("no insights survived validation")

	// ErrInsufficientRows indicates the dataset is below the minimum row
	// count for evidence-backed insights. The whole batch is rejected.
	ErrInsufficientRows = errors.New("dataset has too few rows for reliable insights")
)

// MinRowsForEvidence is the minimum dataset size accepted by the evidence
// gate. Below this the entire request fails rather than individual insights.
const MinRowsForEvidence = 50

// rawExcerptLimit bounds how much raw model output is echoed in a
// MalformedOutputError for diagnosis.
const rawExcerptLimit = 500

// MalformedOutputError reports language-model output that could not be
// decoded into the expected insight envelope. It keeps a truncated excerpt of
// the raw response for diagnosis; the excerpt is never persisted.
type MalformedOutputError struct {
	Reason  string
	Excerpt string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

// newMalformedOutputError builds the error with a bounded raw excerpt.
func newMalformedOutputError(reason, raw string) *MalformedOutputError {
	excerpt := raw
	if len(excerpt) > rawExcerptLimit {
		excerpt = excerpt[:rawExcerptLimit]
	}
	return &MalformedOutputError{Reason: reason, Excerpt: excerpt}
}
