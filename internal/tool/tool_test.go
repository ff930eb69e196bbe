// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/registry"
)

const glEntriesV1 = `
version: 1
fields:
  - name: entry_no
    aliases: [Entry No.]
    required: true
    type: string
    semantic_tag: id
  - name: amount
    aliases: [Amount (LCY)]
    required: true
    type: float
    semantic_tag: amount
    fill_policy: fill_zero
`

const glEntriesV2 = `
version: 2
fields:
  - name: entry_no
    aliases: [Entry No.]
    required: true
    type: string
    semantic_tag: id
  - name: posting_date
    aliases: [Posting Date]
    required: true
    type: date
    semantic_tag: date
    coercion:
      date_formats: ["%d/%m/%Y"]
  - name: amount
    aliases: [Amount (LCY)]
    required: true
    type: float
    semantic_tag: amount
    reconciliation_critical: true
`

const glExtract = "Entry No.,Posting Date,Amount (LCY),Memo\n" +
	"00123,31/03/2024,\"1,234.56\",a\n" +
	"00124,2024-04-01,-10,b\n"

func newTools(t *testing.T) *Tools {
	t.Helper()
	fsys := fstest.MapFS{
		"gl_entries/v1.yaml": {Data: []byte(glEntriesV1)},
		"gl_entries/v2.yaml": {Data: []byte(glEntriesV2)},
	}
	reg, err := registry.New(registry.NewDirSource(fsys, "test"), registry.WithPins(registry.NoPins{}))
	require.NoError(t, err)
	eng := engine.New(reg,
		engine.WithClock(func() time.Time { return time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC) }),
		engine.WithIDGenerator(func() string { return "report-1" }))
	tools, err := New(reg, eng)
	require.NoError(t, err)
	return tools
}

func boolPtr(v bool) *bool { return &v }

func TestApplySchemaContract(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t)

	tests := []struct {
		name           string
		input          InputApplySchemaContract
		wantErr        bool
		errContains    string
		wantIsError    bool
		validateOutput func(t *testing.T, output OutputApplySchemaContract)
	}{
		{
			name:        "missing dataset id returns error",
			input:       InputApplySchemaContract{Content: glExtract},
			wantErr:     true,
			errContains: "dataset_id is required",
		},
		{
			name:        "empty content returns error",
			input:       InputApplySchemaContract{DatasetID: "gl_entries"},
			wantErr:     true,
			errContains: "content is required",
		},
		{
			name:        "unknown dataset returns error",
			input:       InputApplySchemaContract{DatasetID: "vendors", Content: glExtract},
			wantErr:     true,
			errContains: "vendors",
		},
		{
			name:  "extract is normalized against the latest contract",
			input: InputApplySchemaContract{DatasetID: "gl_entries", Content: glExtract},
			validateOutput: func(t *testing.T, output OutputApplySchemaContract) {
				require.NotNil(t, output.Report)
				assert.True(t, output.Report.Success)
				assert.Equal(t, 2, output.Report.ContractVersion)
				assert.Equal(t, "utf-8", output.Encoding)
				assert.Empty(t, output.Error)
				assert.Equal(t, "entry_no,posting_date,amount,Memo\n"+
					"00123,2024-03-31,1234.56,a\n"+
					"00124,2024-04-01,-10,b\n", output.Content)
				assert.NotEmpty(t, output.Report.TransformationEvents)
				assert.Nil(t, output.Evidence)
				assert.Nil(t, output.Quality)
			},
		},
		{
			name: "cast and track can be disabled",
			input: InputApplySchemaContract{DatasetID: "gl_entries", Content: glExtract,
				Cast: boolPtr(false), Track: boolPtr(false), DropUnknown: true},
			validateOutput: func(t *testing.T, output OutputApplySchemaContract) {
				assert.Empty(t, output.Report.ColumnsCast)
				assert.Nil(t, output.Report.TransformationEvents)
				assert.Equal(t, []string{"Memo"}, output.Report.UnknownColumnsDropped)
				assert.True(t, strings.HasPrefix(output.Content, "entry_no,posting_date,amount\n"))
				assert.Contains(t, output.Content, "\"1,234.56\"")
			},
		},
		{
			name: "strict violation returns the partial report",
			input: InputApplySchemaContract{DatasetID: "gl_entries", Strict: true,
				Content: "Entry No.,Amount (LCY)\n1,2\n"},
			wantIsError: true,
			validateOutput: func(t *testing.T, output OutputApplySchemaContract) {
				require.NotNil(t, output.Report)
				assert.False(t, output.Report.Success)
				assert.Contains(t, output.Error, "posting_date")
				assert.Empty(t, output.Content)
			},
		},
		{
			name: "quality check and evidence package",
			input: InputApplySchemaContract{DatasetID: "gl_entries", Content: glExtract,
				CheckQuality: true, EvidenceFormat: "markdown"},
			validateOutput: func(t *testing.T, output OutputApplySchemaContract) {
				require.NotNil(t, output.Quality)
				assert.True(t, output.Quality.Passed, "%+v", output.Quality.Results)
				require.NotNil(t, output.Evidence)
				assert.Equal(t, "markdown", output.Evidence.Format)
				assert.True(t, strings.HasPrefix(output.Evidence.Digest, "sha256:"))
				assert.Contains(t, output.Evidence.Content, "## Quality rules")
			},
		},
		{
			name: "unsupported evidence format returns error",
			input: InputApplySchemaContract{DatasetID: "gl_entries", Content: glExtract,
				EvidenceFormat: "pdf"},
			wantErr:     true,
			errContains: "unsupported evidence format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, output, err := tools.ApplySchemaContract(ctx, req, tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			if tt.wantIsError {
				require.NotNil(t, result)
				assert.True(t, result.IsError)
			} else {
				assert.Nil(t, result)
			}
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

func TestBuildQualityRules(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t)

	tests := []struct {
		name        string
		input       InputBuildQualityRules
		wantErr     bool
		errContains string
		wantVersion int
		wantRules   int
	}{
		{name: "missing dataset id", input: InputBuildQualityRules{}, wantErr: true, errContains: "dataset_id is required"},
		{name: "negative version", input: InputBuildQualityRules{DatasetID: "gl_entries", Version: -1}, wantErr: true, errContains: "negative"},
		{name: "unknown version", input: InputBuildQualityRules{DatasetID: "gl_entries", Version: 9}, wantErr: true, errContains: "9"},
		// exists x3, type x3, semantic x3, not_null x1
		{name: "active version", input: InputBuildQualityRules{DatasetID: "gl_entries"}, wantVersion: 2, wantRules: 10},
		// exists x2, type x2, semantic x2
		{name: "explicit version", input: InputBuildQualityRules{DatasetID: "gl_entries", Version: 1}, wantVersion: 1, wantRules: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := tools.BuildQualityRules(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "gl_entries", output.DatasetID)
			assert.Equal(t, tt.wantVersion, output.ContractVersion)
			assert.NotEmpty(t, output.ContractHash)
			assert.Len(t, output.Rules, tt.wantRules)
			for _, r := range output.Rules {
				assert.NotEmpty(t, r.Expression, r.ID)
			}
		})
	}
}

func TestGetContractHash(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	tools := newTools(t)

	_, active, err := tools.GetContractHash(ctx, req, InputGetContractHash{DatasetID: "gl_entries"})
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
	assert.True(t, strings.HasPrefix(active.Hash, "sha256:"), active.Hash)

	_, v2, err := tools.GetContractHash(ctx, req, InputGetContractHash{DatasetID: "gl_entries", Version: 2})
	require.NoError(t, err)
	assert.Equal(t, active.Hash, v2.Hash)

	_, v1, err := tools.GetContractHash(ctx, req, InputGetContractHash{DatasetID: "gl_entries", Version: 1})
	require.NoError(t, err)
	assert.NotEqual(t, v1.Hash, v2.Hash)

	_, _, err = tools.GetContractHash(ctx, req, InputGetContractHash{DatasetID: "nope"})
	require.Error(t, err)
}

func TestNewServer_RegistersTools(t *testing.T) {
	tools := newTools(t)
	assert.NotPanics(t, func() {
		NewServer(tools, "test")
	})
}
