// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gvern/soxauto/internal/dataset"
	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/evidence"
	"github.com/gvern/soxauto/internal/evidence/encoders"
	"github.com/gvern/soxauto/internal/quality"
)

// applyFlags are shared by apply and check.
type applyFlags struct {
	strict      bool
	noCast      bool
	noTrack     bool
	dropUnknown bool
	out         string

	driver string
	dsn    string
	query  string
}

func (f *applyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail when required columns are missing")
	cmd.Flags().BoolVar(&f.noCast, "no-cast", false, "Keep source values; only rename and fill")
	cmd.Flags().BoolVar(&f.noTrack, "no-track", false, "Omit the transformation event log")
	cmd.Flags().BoolVar(&f.dropUnknown, "drop-unknown", false, "Drop columns the contract does not declare")
	cmd.Flags().StringVar(&f.out, "out", "", "Write the transformed dataset as CSV to this file")
	cmd.Flags().StringVar(&f.driver, "driver", "sqlite", "database/sql driver for --query ("+strings.Join(drivers, "|")+")")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "Data source name for --query")
	cmd.Flags().StringVar(&f.query, "query", "", "Extract the dataset with this SQL query instead of reading a CSV file")
}

func (f *applyFlags) options() []engine.ApplyOption {
	return []engine.ApplyOption{
		engine.Strict(f.strict),
		engine.Cast(!f.noCast),
		engine.Track(!f.noTrack),
		engine.DropUnknown(f.dropUnknown),
	}
}

// load reads the dataset from the CSV file in args, from stdin for "-", or
// from --query.
func (f *applyFlags) load(ctx context.Context, st *state, args []string, stdin io.Reader) (*dataset.Dataset, error) {
	if f.query != "" {
		if len(args) > 0 {
			return nil, errors.New("--query and a CSV file are mutually exclusive")
		}
		if !slices.Contains(drivers, f.driver) {
			return nil, fmt.Errorf("unsupported driver %q: must be one of %s", f.driver, strings.Join(drivers, ", "))
		}
		if f.dsn == "" {
			return nil, errors.New("--dsn is required with --query")
		}
		db, err := sql.Open(f.driver, f.dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", f.driver, err)
		}
		defer closeQuietly(db)
		return dataset.Query(ctx, db, f.query)
	}

	if len(args) != 1 {
		return nil, errors.New("expected exactly one CSV file (or - for stdin)")
	}
	r := stdin
	if args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer closeQuietly(file)
		r = file
	}
	res, err := dataset.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", args[0], err)
	}
	for _, w := range res.Warnings {
		st.logger.Warn("csv parse warning", "file", args[0], "row", w.Row, "message", w.Message)
	}
	st.logger.Debug("csv loaded", "file", args[0], "encoding", res.Encoding, "rows", res.Dataset.Len())
	return res.Dataset, nil
}

func (f *applyFlags) writeOut(ds *dataset.Dataset) error {
	if f.out == "" || ds == nil {
		return nil
	}
	file, err := os.Create(f.out)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(file, ds); err != nil {
		closeQuietly(file)
		return err
	}
	return file.Close()
}

func newApplyCommand(st *state) *cobra.Command {
	flags := &applyFlags{}
	cmd := &cobra.Command{
		Use:   "apply <dataset_id> [file.csv|-]",
		Short: "Apply the active schema contract to an extract and print the report",
		Long: `Apply resolves the active contract of the dataset, renames columns through
aliases, coerces values by semantic tag, applies fill policies and prints the
transformation report. yaml, json and markdown output include audit findings.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runApply(cmd, st, flags, args, false)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func newCheckCommand(st *state) *cobra.Command {
	flags := &applyFlags{}
	cmd := &cobra.Command{
		Use:   "check <dataset_id> [file.csv|-]",
		Short: "Apply the contract, then evaluate its quality rules on the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runApply(cmd, st, flags, args, true)
			if err != nil {
				return err
			}
			if !res.Passed {
				return fmt.Errorf("quality check failed: %d error rule(s), %d warning rule(s)", res.Errors, res.Warnings)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// runApply loads and transforms the dataset, optionally checks quality rules
// and renders the outcome. The report is rendered even when the application
// fails.
func runApply(cmd *cobra.Command, st *state, flags *applyFlags, args []string, check bool) (*quality.Result, error) {
	ctx := cmd.Context()
	if err := st.open(ctx); err != nil {
		return nil, err
	}
	datasetID := args[0]
	ds, err := flags.load(ctx, st, args[1:], cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	out, report, applyErr := st.engine.Apply(ctx, ds, datasetID, flags.options()...)
	if report == nil {
		return nil, applyErr
	}

	var rules []quality.Rule
	var result *quality.Result
	if check && applyErr == nil {
		sc, err := st.registry.LoadVersion(ctx, report.DatasetID, report.ContractVersion)
		if err != nil {
			return nil, err
		}
		checker, err := quality.NewChecker()
		if err != nil {
			return nil, err
		}
		rules = quality.BuildRules(sc)
		if result, err = checker.Check(ctx, out, rules); err != nil {
			return nil, err
		}
	}

	if err := renderOutcome(ctx, cmd.OutOrStdout(), st.output(), report, rules, result); err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	if err := flags.writeOut(out); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", flags.out, err)
	}
	if result == nil {
		result = &quality.Result{Passed: true}
	}
	return result, nil
}

func renderOutcome(ctx context.Context, w io.Writer, format string, report *engine.SchemaReport, rules []quality.Rule, result *quality.Result) error {
	if format == "table" {
		renderReportTable(w, report)
		if result != nil {
			t := newTable(w)
			t.AppendHeader(table.Row{"Rule", "Severity", "Status", "Checked", "Violations"})
			for _, rr := range result.Results {
				status := "passed"
				switch {
				case rr.Skipped:
					status = "skipped"
				case !rr.Passed:
					status = "failed"
				}
				t.AppendRow(table.Row{rr.RuleID, rr.Severity, status, rr.Checked, rr.Violations})
			}
			t.Render()
		}
		return nil
	}

	packager := evidence.NewPackager(encoders.Default()...)
	pkg, err := packager.Package(ctx, packager.Build(report, rules, result), format)
	if err != nil {
		return err
	}
	_, err = w.Write(pkg.Content)
	return err
}
