// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"strings"
)

// MissingRequiredColumnError lists every required column absent from a
// dataset. Source names the consumer for RequireColumns checks and is empty
// for contract application.
type MissingRequiredColumnError struct {
	DatasetID string
	Source    string
	Columns   []string
}

func (e *MissingRequiredColumnError) Error() string {
	cols := quoted(e.Columns)
	if e.Source != "" {
		return fmt.Sprintf("%s requires columns missing from the dataset: %s", e.Source, cols)
	}
	return fmt.Sprintf("dataset %q is missing required columns: %s", e.DatasetID, cols)
}

// FailOnNaNError reports missing values left in a fail_on_nan column after
// coercion and fill.
type FailOnNaNError struct {
	DatasetID              string
	Column                 string
	MissingCount           int
	ReconciliationCritical bool
}

func (e *FailOnNaNError) Error() string {
	kind := "fail_on_nan"
	if e.ReconciliationCritical {
		kind = "reconciliation-critical fail_on_nan"
	}
	return fmt.Sprintf("dataset %q: %s column %q has %d missing values", e.DatasetID, kind, e.Column, e.MissingCount)
}

func quoted(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
