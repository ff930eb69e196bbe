// SPDX-License-Identifier: Apache-2.0

package encoders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gvern/soxauto/internal/evidence"
)

// MarkdownEncoder renders a bundle as an audit memo: a header block followed
// by one Markdown table per section. Sections with nothing to show are
// omitted.
type MarkdownEncoder struct{}

// NewMarkdownEncoder creates a new MarkdownEncoder.
func NewMarkdownEncoder() *MarkdownEncoder {
	return &MarkdownEncoder{}
}

func (e *MarkdownEncoder) Name() string {
	return "markdown"
}

func (e *MarkdownEncoder) MediaType() string {
	return "text/markdown"
}

func (e *MarkdownEncoder) CanHandle(format string) bool {
	return strings.EqualFold(format, "markdown") || strings.EqualFold(format, "md")
}

func (e *MarkdownEncoder) Encode(_ context.Context, bundle evidence.Bundle) ([]byte, error) {
	r := bundle.Report
	if r == nil {
		return nil, fmt.Errorf("bundle has no report")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Schema contract evidence: %s\n\n", r.DatasetID)
	fmt.Fprintf(&b, "- Report: `%s`\n", r.ReportID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "- Contract: v%d `%s`\n", r.ContractVersion, r.ContractHash)
	fmt.Fprintf(&b, "- Engine: %s\n", r.EngineVersion)
	fmt.Fprintf(&b, "- Strict: %t\n", r.Strict)
	fmt.Fprintf(&b, "- Outcome: %s\n", outcome(r.Success))

	s := r.Summary
	section(&b, "Summary", table.Row{"Rows", "Renamed", "Cast", "Filled", "Dropped", "Unknown kept", "Invalid coerced"},
		[]table.Row{{s.RowCount, s.Renamed, s.Cast, s.Filled, s.Dropped, s.UnknownKept, s.InvalidCoerced}})

	if len(r.ColumnsRenamed) > 0 {
		froms := make([]string, 0, len(r.ColumnsRenamed))
		for from := range r.ColumnsRenamed {
			froms = append(froms, from)
		}
		sort.Strings(froms)
		rows := make([]table.Row, 0, len(froms))
		for _, from := range froms {
			rows = append(rows, table.Row{from, r.ColumnsRenamed[from]})
		}
		section(&b, "Renamed columns", table.Row{"Source", "Canonical"}, rows)
	}

	if len(r.ColumnsCast) > 0 {
		cols := make([]string, 0, len(r.ColumnsCast))
		for col := range r.ColumnsCast {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		rows := make([]table.Row, 0, len(cols))
		for _, col := range cols {
			info := r.ColumnsCast[col]
			invalid := 0
			if info.InvalidCoercedCount != nil {
				invalid = *info.InvalidCoercedCount
			}
			rows = append(rows, table.Row{col, info.BeforeType, info.AfterType, invalid})
		}
		section(&b, "Cast columns", table.Row{"Column", "Before", "After", "Invalid"}, rows)
	}

	if len(bundle.Findings) > 0 {
		rows := make([]table.Row, 0, len(bundle.Findings))
		for _, f := range bundle.Findings {
			rows = append(rows, table.Row{f.Severity, f.Assertion, f.Detail, f.SourceRef})
		}
		section(&b, "Findings", table.Row{"Severity", "Assertion", "Detail", "Source"}, rows)
	}

	if bundle.Quality != nil && len(bundle.Quality.Results) > 0 {
		rows := make([]table.Row, 0, len(bundle.Quality.Results))
		for _, rr := range bundle.Quality.Results {
			status := outcome(rr.Passed)
			if rr.Skipped {
				status = "skipped"
			}
			rows = append(rows, table.Row{rr.RuleID, rr.Severity, status, rr.Checked, rr.Violations})
		}
		section(&b, "Quality rules", table.Row{"Rule", "Severity", "Status", "Checked", "Violations"}, rows)
	}

	return []byte(b.String()), nil
}

func section(b *strings.Builder, title string, header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(rows)
	fmt.Fprintf(b, "\n## %s\n\n%s\n", title, t.RenderMarkdown())
}

func outcome(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
