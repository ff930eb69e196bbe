// SPDX-License-Identifier: Apache-2.0

package contract_test

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/dataset"
)

const glEntriesV1 = `
dataset_id: gl_entries
version: 1
description: General ledger entries
fields:
  - name: customer_no
    aliases: ["Customer No", "Cust. No"]
    required: true
    type: string
    semantic_tag: id
  - name: amount
    aliases: ["Amount (LCY)", "amt"]
    required: true
    type: float
    semantic_tag: amount
    coercion:
      thousands_separator: ","
    fill_policy: fail_on_nan
    reconciliation_critical: true
  - name: posting_date
    aliases: ["Posting Date"]
    type: date
    semantic_tag: date
    coercion:
      date_formats: ["%d/%m/%Y"]
`

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	c, err := contract.New("ds", 1, []contract.SchemaField{
		{Name: "  note  ", Type: dataset.TypeString, Coercion: &contract.Coercion{}},
	})
	require.NoError(t, err)

	f := c.Fields()[0]
	assert.Equal(t, "note", f.Name)
	assert.Equal(t, contract.TagOther, f.SemanticTag)
	assert.Equal(t, contract.FillKeepNaN, f.FillPolicy)
	assert.Nil(t, f.Coercion, "empty coercion blocks are dropped")
}

func TestNew_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		datasetID   string
		version     int
		fields      []contract.SchemaField
		errContains string
	}{
		{name: "missing dataset id", version: 1, fields: []contract.SchemaField{{Name: "a", Type: "string"}}, errContains: "dataset id is required"},
		{name: "zero version", datasetID: "ds", fields: []contract.SchemaField{{Name: "a", Type: "string"}}, errContains: "positive integer"},
		{name: "no fields", datasetID: "ds", version: 1, errContains: "declares no fields"},
		{name: "bad type", datasetID: "ds", version: 1, fields: []contract.SchemaField{{Name: "a", Type: "decimal"}}, errContains: `unknown type "decimal"`},
		{name: "bad tag", datasetID: "ds", version: 1, fields: []contract.SchemaField{{Name: "a", Type: "string", SemanticTag: "money"}}, errContains: "unknown semantic_tag"},
		{name: "bad fill policy", datasetID: "ds", version: 1, fields: []contract.SchemaField{{Name: "a", Type: "string", FillPolicy: "drop"}}, errContains: "unknown fill_policy"},
		{
			name: "duplicate canonical names", datasetID: "ds", version: 1,
			fields:      []contract.SchemaField{{Name: "Amount", Type: "float"}, {Name: "amount", Type: "float"}},
			errContains: "duplicates canonical name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contract.New(tt.datasetID, tt.version, tt.fields)
			require.Error(t, err)
			assert.ErrorIs(t, err, contract.ErrInvalidContract)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestNew_AliasCollisionIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []string
		alias string
	}{
		{name: "identical alias", a: []string{"Customer No"}, b: []string{"Customer No"}, alias: "Customer No"},
		{name: "case-insensitive", a: []string{"Customer No"}, b: []string{"CUSTOMER NO"}, alias: "CUSTOMER NO"},
		{name: "whitespace-normalized", a: []string{"Customer No"}, b: []string{" customer   no "}, alias: " customer   no "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contract.New("customers", 3, []contract.SchemaField{
				{Name: "customer_no", Aliases: tt.a, Type: "string", SemanticTag: "id"},
				{Name: "customer_id", Aliases: tt.b, Type: "string", SemanticTag: "id"},
			})
			var collision *contract.AliasCollisionError
			require.True(t, errors.As(err, &collision), "expected AliasCollisionError, got %v", err)
			assert.Equal(t, "customers", collision.DatasetID)
			assert.Equal(t, 3, collision.Version)
			assert.Equal(t, tt.alias, collision.Alias)
			assert.Equal(t, []string{"customer_no", "customer_id"}, collision.Fields)
		})
	}
}

func TestNew_AliasCollisionListsEveryCollision(t *testing.T) {
	_, err := contract.New("customers", 1, []contract.SchemaField{
		{Name: "customer_no", Aliases: []string{"Customer No", "Name"}, Type: "string", SemanticTag: "id"},
		{Name: "customer_id", Aliases: []string{"customer no"}, Type: "string", SemanticTag: "id"},
		{Name: "customer_name", Aliases: []string{"NAME"}, Type: "string", SemanticTag: "name"},
		{Name: "legacy_no", Aliases: []string{"CUSTOMER NO"}, Type: "string"},
	})
	var collision *contract.AliasCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, []contract.AliasCollision{
		{Alias: "customer no", Fields: []string{"customer_no", "customer_id", "legacy_no"}},
		{Alias: "NAME", Fields: []string{"customer_no", "customer_name"}},
	}, collision.Collisions)
	assert.Equal(t, "customer no", collision.Alias)
	assert.Contains(t, err.Error(), `alias "NAME" declared by fields "customer_no", "customer_name"`)
}

func TestNew_AliasCollisionKeepsOtherProblems(t *testing.T) {
	_, err := contract.New("customers", 1, []contract.SchemaField{
		{Name: "customer_no", Aliases: []string{"Customer No"}, Type: "money"},
		{Name: "customer_id", Aliases: []string{"Customer No"}, Type: "string"},
	})
	var collision *contract.AliasCollisionError
	require.ErrorAs(t, err, &collision)
	assert.ErrorIs(t, err, contract.ErrInvalidContract)
	assert.Contains(t, err.Error(), `unknown type "money"`)
}

func TestNew_RepeatedAliasWithinOneFieldIsAllowed(t *testing.T) {
	_, err := contract.New("ds", 1, []contract.SchemaField{
		{Name: "amount", Aliases: []string{"Amt", "amt"}, Type: "float"},
	})
	require.NoError(t, err)
}

func TestContract_IsImmutable(t *testing.T) {
	c, err := contract.New("ds", 1, []contract.SchemaField{
		{Name: "amount", Aliases: []string{"amt"}, Type: "float", Coercion: &contract.Coercion{StripChars: "$"}},
	})
	require.NoError(t, err)
	hash := c.Hash()

	fields := c.Fields()
	fields[0].Aliases[0] = "mutated"
	fields[0].Coercion.StripChars = "€"

	f, ok := c.Field("AMOUNT")
	require.True(t, ok)
	assert.Equal(t, []string{"amt"}, f.Aliases)
	assert.Equal(t, "$", f.Coercion.StripChars)
	assert.Equal(t, hash, c.Hash())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "customer no", contract.NormalizeName("  Customer \t No "))
	assert.Equal(t, contract.NormalizeName("CUSTOMER NO"), contract.NormalizeName("customer no"))
	assert.Equal(t, "amount", contract.NormalizeName("ａｍｏｕｎｔ"), "full-width letters fold to ASCII")
	assert.NotEqual(t, contract.NormalizeName("customer_no"), contract.NormalizeName("customer no"))
}

// ---------------------------------------------------------------------------
// Hash
// ---------------------------------------------------------------------------

func TestHash_IndependentOfIdentityAndLocation(t *testing.T) {
	fields := []contract.SchemaField{{Name: "amount", Type: "float", SemanticTag: "amount"}}
	a, err := contract.New("ds_a", 1, fields)
	require.NoError(t, err)
	b, err := contract.New("ds_b", 7, fields)
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, a.Hash())

	c, err := contract.New("ds_a", 1, []contract.SchemaField{{Name: "amount", Type: "integer", SemanticTag: "amount"}})
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestHash_DefaultsDoNotChangeDigest(t *testing.T) {
	explicit, err := contract.New("ds", 1, []contract.SchemaField{
		{Name: "note", Type: "string", SemanticTag: contract.TagOther, FillPolicy: contract.FillKeepNaN},
	})
	require.NoError(t, err)
	implicit, err := contract.New("ds", 1, []contract.SchemaField{{Name: "note", Type: "string"}})
	require.NoError(t, err)
	assert.Equal(t, explicit.Hash(), implicit.Hash())
}

// TestHashStability verifies identical field lists always hash identically.
// Property: Hash(New(id1, fields)) == Hash(New(id2, fields))
func TestHashStability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("identical field lists produce identical hashes", prop.ForAll(
		func(names []string, id1, id2 string) bool {
			var fields []contract.SchemaField
			seen := map[string]bool{}
			for _, n := range names {
				if n == "" || seen[contract.NormalizeName(n)] {
					continue
				}
				seen[contract.NormalizeName(n)] = true
				fields = append(fields, contract.SchemaField{Name: n, Aliases: []string{n + " alias"}, Type: "string"})
			}
			if len(fields) == 0 {
				return true
			}
			a, errA := contract.New("a"+id1, 1, fields)
			b, errB := contract.New("b"+id2, 2, fields)
			if errA != nil || errB != nil {
				return errA != nil && errB != nil
			}
			return a.Hash() == b.Hash()
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestLoad_Document(t *testing.T) {
	v, err := contract.NewValidator()
	require.NoError(t, err)

	c, err := contract.Load(v, "gl_entries/v1.yaml", "gl_entries", []byte(glEntriesV1))
	require.NoError(t, err)

	assert.Equal(t, "gl_entries", c.DatasetID())
	assert.Equal(t, 1, c.Version())
	assert.Equal(t, "General ledger entries", c.Description())
	require.Equal(t, 3, c.Len())

	amount, ok := c.Field("amount")
	require.True(t, ok)
	assert.Equal(t, contract.TagAmount, amount.SemanticTag)
	assert.Equal(t, contract.FillFailOnNaN, amount.FillPolicy)
	assert.True(t, amount.ReconciliationCritical)
	assert.Equal(t, ",", amount.Coercion.ThousandsSeparator)

	date, _ := c.Field("posting_date")
	assert.Equal(t, []string{"%d/%m/%Y"}, date.Coercion.DateFormats)
	assert.Equal(t, contract.FillKeepNaN, date.FillPolicy)
}

func TestLoad_JSONDocument(t *testing.T) {
	v, err := contract.NewValidator()
	require.NoError(t, err)

	doc := `{"version": 2, "fields": [{"name": "id", "type": "string", "semantic_tag": "id", "required": true}]}`
	c, err := contract.Load(v, "ds/v2.json", "ds", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Version())
}

func TestLoad_SameFieldsDifferentDocumentsHashEqual(t *testing.T) {
	v, err := contract.NewValidator()
	require.NoError(t, err)

	a, err := contract.Load(v, "a.yaml", "gl_entries", []byte(glEntriesV1))
	require.NoError(t, err)
	b, err := contract.Load(v, "mirror/b.yaml", "gl_entries_copy", []byte("# mirrored copy\n"+
		"version: 1\nfields:\n"+
		"  - {name: customer_no, aliases: [\"Customer No\", \"Cust. No\"], required: true, type: string, semantic_tag: id}\n"+
		"  - {name: amount, aliases: [\"Amount (LCY)\", amt], required: true, type: float, semantic_tag: amount, coercion: {thousands_separator: \",\"}, fill_policy: fail_on_nan, reconciliation_critical: true}\n"+
		"  - {name: posting_date, aliases: [\"Posting Date\"], type: date, semantic_tag: date, coercion: {date_formats: [\"%d/%m/%Y\"]}}\n"))
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestLoad_RejectedDocuments(t *testing.T) {
	v, err := contract.NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		collision bool
	}{
		{name: "unknown key", doc: "version: 1\nfields:\n  - {name: a, type: string, nullable: true}\n"},
		{name: "bad enum", doc: "version: 1\nfields:\n  - {name: a, type: money}\n"},
		{name: "zero version", doc: "version: 0\nfields:\n  - {name: a, type: string}\n"},
		{name: "empty field list", doc: "version: 1\nfields: []\n"},
		{name: "malformed yaml", doc: "version: [1\n"},
		{name: "dataset id mismatch", doc: "dataset_id: other\nversion: 1\nfields:\n  - {name: a, type: string}\n"},
		{
			name:      "alias collision",
			doc:       "version: 1\nfields:\n  - {name: a, type: string, aliases: [\"Customer No\"]}\n  - {name: b, type: string, aliases: [\"Customer No\"]}\n",
			collision: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contract.Load(v, "ds/v1.yaml", "ds", []byte(tt.doc))
			require.Error(t, err)
			if tt.collision {
				var collision *contract.AliasCollisionError
				assert.True(t, errors.As(err, &collision))
				return
			}
			assert.ErrorIs(t, err, contract.ErrInvalidContract)
		})
	}
}

func TestLoad_WithoutValidatorStillChecksSemantics(t *testing.T) {
	_, err := contract.Load(nil, "ds/v1.yaml", "ds", []byte("version: 1\nfields:\n  - {name: a, type: money}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrInvalidContract)
}
