// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gvern/soxauto/internal/engine"
)

// writeStructured renders v as JSON or, for any other format, YAML.
func writeStructured(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderTable renders t as Markdown for the markdown format and as a boxed
// terminal table otherwise.
func renderTable(t table.Writer, format string) {
	if format == "markdown" {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// renderReportTable prints a report as terminal tables.
func renderReportTable(w io.Writer, r *engine.SchemaReport) {
	status := "passed"
	if !r.Success {
		status = "failed"
	}
	_, _ = fmt.Fprintf(w, "%s v%d %s (%s)\n", r.DatasetID, r.ContractVersion, r.ContractHash, status)

	s := r.Summary
	t := newTable(w)
	t.AppendHeader(table.Row{"Rows", "Renamed", "Cast", "Filled", "Dropped", "Unknown kept", "Invalid coerced"})
	t.AppendRow(table.Row{s.RowCount, s.Renamed, s.Cast, s.Filled, s.Dropped, s.UnknownKept, s.InvalidCoerced})
	t.Render()

	if len(r.ColumnsCast) > 0 || len(r.ColumnsRenamed) > 0 {
		t = newTable(w)
		t.AppendHeader(table.Row{"Source", "Column", "Before", "After", "Invalid"})
		canonical := make(map[string]string, len(r.ColumnsRenamed))
		for from, to := range r.ColumnsRenamed {
			canonical[to] = from
		}
		cols := make(map[string]bool)
		for col := range r.ColumnsCast {
			cols[col] = true
		}
		for to := range canonical {
			cols[to] = true
		}
		names := make([]string, 0, len(cols))
		for col := range cols {
			names = append(names, col)
		}
		sort.Strings(names)
		for _, col := range names {
			from := canonical[col]
			if from == "" {
				from = col
			}
			row := table.Row{from, col, "", "", ""}
			if info, ok := r.ColumnsCast[col]; ok {
				row[2], row[3] = info.BeforeType, info.AfterType
				if info.InvalidCoercedCount != nil {
					row[4] = *info.InvalidCoercedCount
				}
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	for _, msg := range r.ValidationErrors {
		_, _ = fmt.Fprintf(w, "error: %s\n", msg)
	}
	for _, msg := range r.ValidationWarnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
