// SPDX-License-Identifier: Apache-2.0

// Package evidence turns the outcome of a contract application into a
// self-describing audit artifact. It encodes but never persists.
package evidence

import (
	"context"

	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/quality"
)

// Finding is one audit observation derived from a report.
type Finding struct {
	Assertion string `json:"assertion" yaml:"assertion"`
	Detail    string `json:"detail" yaml:"detail"`
	SourceRef string `json:"source" yaml:"source"`
	Severity  string `json:"severity" yaml:"severity"`
}

// Bundle is everything packaged for one contract application.
type Bundle struct {
	Report   *engine.SchemaReport `json:"report" yaml:"report"`
	Rules    []quality.Rule       `json:"quality_rules,omitempty" yaml:"quality_rules,omitempty"`
	Quality  *quality.Result      `json:"quality_result,omitempty" yaml:"quality_result,omitempty"`
	Findings []Finding            `json:"findings" yaml:"findings"`
}

// Encoder serializes a bundle into one document format.
type Encoder interface {
	CanHandle(format string) bool
	Encode(ctx context.Context, bundle Bundle) ([]byte, error)
	Name() string
	MediaType() string
}
