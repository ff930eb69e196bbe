// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"fmt"
	"strings"

	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/quality"
)

// assertionRule maps a set of trigger keywords to a financial-statement
// assertion an auditor would file the observation under.
type assertionRule struct {
	keywords  []string
	assertion string
}

// assertionRules is evaluated in order; the first match wins.
var assertionRules = []assertionRule{
	{keywords: []string{"no neutral value"}, assertion: "valuation"},
	{keywords: []string{"required column", "requires columns", "fail_on_nan", "missing values", "must be present", "must not contain missing"}, assertion: "completeness"},
	{keywords: []string{"could not be coerced", "must be of type", "must be valid"}, assertion: "accuracy"},
	{keywords: []string{"also matches", "kept as unknown"}, assertion: "classification"},
}

const defaultAssertion = "presentation"

// FindingMapper maps report warnings, errors and failed quality rules to
// audit findings.
type FindingMapper struct{}

// NewFindingMapper creates a new FindingMapper.
func NewFindingMapper() *FindingMapper {
	return &FindingMapper{}
}

// Map derives findings from a report and, when present, a quality result.
func (m *FindingMapper) Map(report *engine.SchemaReport, rules []quality.Rule, result *quality.Result) []Finding {
	findings := make([]Finding, 0)
	if report == nil {
		return findings
	}
	source := fmt.Sprintf("%s v%d", report.DatasetID, report.ContractVersion)

	for _, msg := range report.ValidationErrors {
		findings = append(findings, m.mapMessage(msg, source+" / errors", "error"))
	}
	for _, msg := range report.ValidationWarnings {
		findings = append(findings, m.mapMessage(msg, source+" / warnings", "warning"))
	}

	if result == nil {
		return findings
	}
	descriptions := make(map[string]string, len(rules))
	for _, r := range rules {
		descriptions[r.ID] = r.Description
	}
	for _, rr := range result.Results {
		if rr.Passed {
			continue
		}
		desc := descriptions[rr.RuleID]
		if desc == "" {
			desc = rr.RuleID
		}
		msg := fmt.Sprintf("%s: %d of %d checks failed", desc, rr.Violations, rr.Checked)
		findings = append(findings, m.mapMessage(msg, source+" / "+rr.RuleID, string(rr.Severity)))
	}
	return findings
}

func (m *FindingMapper) mapMessage(msg, source, severity string) Finding {
	lower := strings.ToLower(msg)
	assertion := defaultAssertion
	for _, rule := range assertionRules {
		if matchesAny(lower, rule.keywords) {
			assertion = rule.assertion
			break
		}
	}
	return Finding{
		Assertion: assertion,
		Detail:    normalizeDetail(msg),
		SourceRef: source,
		Severity:  severity,
	}
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func normalizeDetail(text string) string {
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}
