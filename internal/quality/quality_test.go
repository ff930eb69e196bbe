// SPDX-License-Identifier: Apache-2.0

package quality_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/dataset"
	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/quality"
)

func glContract(t *testing.T) *contract.SchemaContract {
	t.Helper()
	sc, err := contract.New("gl_entries", 1, []contract.SchemaField{
		{Name: "entry_no", Required: true, Type: dataset.TypeString, SemanticTag: contract.TagID},
		{Name: "posting_date", Required: true, Type: dataset.TypeDate, SemanticTag: contract.TagDate},
		{Name: "amount", Required: true, Type: dataset.TypeFloat, SemanticTag: contract.TagAmount,
			FillPolicy: contract.FillFailOnNaN, ReconciliationCritical: true},
		{Name: "vendor", Type: dataset.TypeString, SemanticTag: contract.TagName},
		{Name: "line", Type: dataset.TypeInteger},
	})
	require.NoError(t, err)
	return sc
}

// ---------------------------------------------------------------------------
// BuildRules
// ---------------------------------------------------------------------------

func TestBuildRules_OrderAndCoverage(t *testing.T) {
	rules := quality.BuildRules(glContract(t))

	var ids []string
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"exists:entry_no", "exists:posting_date", "exists:amount",
		"type:entry_no", "type:posting_date", "type:amount", "type:vendor", "type:line",
		"semantic:entry_no", "semantic:posting_date", "semantic:amount", "semantic:vendor",
		"not_null:amount",
	}, ids)
}

func TestBuildRules_IsDeterministic(t *testing.T) {
	sc := glContract(t)
	assert.Equal(t, quality.BuildRules(sc), quality.BuildRules(sc))
}

func TestBuildRules_Fields(t *testing.T) {
	rules := quality.BuildRules(glContract(t))

	exists := rules[0]
	assert.Equal(t, quality.KindExists, exists.Kind)
	assert.Equal(t, quality.SeverityError, exists.Severity)
	assert.Equal(t, `"entry_no" in columns`, exists.Expression)
	assert.True(t, exists.ColumnLevel())

	semantic := rules[8]
	assert.Equal(t, quality.KindSemantic, semantic.Kind)
	assert.Equal(t, quality.SeverityWarning, semantic.Severity)
	assert.False(t, semantic.ColumnLevel())
}

func TestBuildRules_FollowTheCoercedType(t *testing.T) {
	tests := []struct {
		name      string
		field     contract.SchemaField
		wantType  string
		wantMatch string
	}{
		{
			name:      "date tag on string target",
			field:     contract.SchemaField{Name: "posted", Type: dataset.TypeString, SemanticTag: contract.TagDate},
			wantType:  "values of \"posted\" must be of type string",
			wantMatch: "value.matches(",
		},
		{
			name:      "date tag on integer target",
			field:     contract.SchemaField{Name: "posted", Type: dataset.TypeInteger, SemanticTag: contract.TagDate},
			wantType:  "values of \"posted\" must be of type date",
			wantMatch: "google.protobuf.Timestamp",
		},
		{
			name:      "amount tag on boolean target",
			field:     contract.SchemaField{Name: "posted", Type: dataset.TypeBoolean, SemanticTag: contract.TagAmount},
			wantType:  "values of \"posted\" must be of type float",
			wantMatch: "type(value) == double",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := contract.New("journal", 1, []contract.SchemaField{tt.field})
			require.NoError(t, err)
			rules := quality.BuildRules(sc)
			require.Len(t, rules, 2)
			assert.Equal(t, tt.wantType, rules[0].Description)
			assert.Contains(t, rules[1].Expression, tt.wantMatch)
		})
	}
}

// ---------------------------------------------------------------------------
// Checker
// ---------------------------------------------------------------------------

// journalResolver serves one contract to the engine.
type journalResolver struct{ sc *contract.SchemaContract }

func (r journalResolver) Load(context.Context, string) (*contract.SchemaContract, string, error) {
	return r.sc, r.sc.Hash(), nil
}

func TestChecker_EngineOutputPasses(t *testing.T) {
	sc, err := contract.New("journal", 1, []contract.SchemaField{
		{Name: "posted", Required: true, Type: dataset.TypeString, SemanticTag: contract.TagDate},
		{Name: "debit", Type: dataset.TypeBoolean, SemanticTag: contract.TagAmount},
	})
	require.NoError(t, err)

	in := dataset.MustNew(
		dataset.NewColumn("posted", dataset.TypeString, "2024-03-05", "2024-03-06"),
		dataset.NewColumn("debit", dataset.TypeString, "1,200.50", "(3.00)"),
	)
	out, report, err := engine.New(journalResolver{sc}).Apply(context.Background(), in, "journal")
	require.NoError(t, err)
	require.True(t, report.Success)

	checker, err := quality.NewChecker()
	require.NoError(t, err)
	res, err := checker.Check(context.Background(), out, quality.BuildRules(sc))
	require.NoError(t, err)
	assert.True(t, res.Passed, "%+v", res.Results)
	assert.Zero(t, res.Warnings)
}

func TestChecker_ValidDatasetPasses(t *testing.T) {
	checker, err := quality.NewChecker()
	require.NoError(t, err)

	ds := dataset.MustNew(
		dataset.NewColumn("entry_no", dataset.TypeString, "00123", "00124"),
		dataset.NewColumn("posting_date", dataset.TypeDate,
			time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		dataset.NewColumn("amount", dataset.TypeFloat, 1234.56, -10.0),
		dataset.NewColumn("vendor", dataset.TypeString, "Acme Corp", nil),
	)

	res, err := checker.Check(context.Background(), ds, quality.BuildRules(glContract(t)))
	require.NoError(t, err)
	assert.True(t, res.Passed, "%+v", res.Results)
	assert.Zero(t, res.Errors)
	assert.Zero(t, res.Warnings)
	require.Len(t, res.Results, 13)

	for _, r := range res.Results {
		if r.Column == "line" {
			assert.True(t, r.Skipped, r.RuleID)
		}
	}
}

func TestChecker_ReportsViolations(t *testing.T) {
	checker, err := quality.NewChecker()
	require.NoError(t, err)

	ds := dataset.MustNew(
		dataset.NewColumn("entry_no", dataset.TypeString, " 00123", "00124", "00125"),
		dataset.NewColumn("amount", dataset.TypeString, "12.5", nil, "x"),
		dataset.NewColumn("vendor", dataset.TypeString, "Acme  Corp", "Beta", "Gamma"),
		dataset.NewColumn("line", dataset.TypeInteger, int64(1), int64(2), nil),
	)

	res, err := checker.Check(context.Background(), ds, quality.BuildRules(glContract(t)))
	require.NoError(t, err)
	assert.False(t, res.Passed)

	byID := map[string]quality.RuleResult{}
	for _, r := range res.Results {
		byID[r.RuleID] = r
	}

	assert.False(t, byID["exists:posting_date"].Passed)
	assert.True(t, byID["exists:entry_no"].Passed)

	amountType := byID["type:amount"]
	assert.Equal(t, 3, amountType.Checked)
	assert.Equal(t, 2, amountType.Violations)
	require.NotNil(t, amountType.FirstViolation)
	assert.Equal(t, 0, *amountType.FirstViolation)

	assert.Equal(t, 1, byID["not_null:amount"].Violations)
	assert.Equal(t, 1, byID["semantic:entry_no"].Violations)
	assert.Equal(t, 1, byID["semantic:vendor"].Violations)
	assert.Equal(t, 1, byID["semantic:amount"].Violations)
	assert.True(t, byID["type:line"].Passed)

	// exists:posting_date, type:amount, not_null:amount
	assert.Equal(t, 3, res.Errors)
	assert.Equal(t, 3, res.Warnings)
}

func TestChecker_RejectsBadExpressions(t *testing.T) {
	checker, err := quality.NewChecker()
	require.NoError(t, err)
	ds := dataset.MustNew(dataset.NewColumn("a", dataset.TypeString, "x"))

	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax error", expr: "missing ||"},
		{name: "not boolean", expr: "1 + 2"},
		{name: "unknown variable", expr: "row > 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checker.Check(context.Background(), ds, []quality.Rule{
				{ID: "custom:a", Column: "a", Kind: quality.KindSemantic, Severity: quality.SeverityWarning, Expression: tt.expr},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "custom:a")
		})
	}
}
