// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gvern/soxauto/internal/dataset"
	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/quality"
)

// MetadataApplySchemaContract describes the apply_schema_contract tool.
var MetadataApplySchemaContract = &mcp.Tool{
	Name: "apply_schema_contract",
	Description: "Apply the active schema contract of a dataset to a CSV extract. " +
		"Source columns are renamed to canonical names through aliases, values are coerced according " +
		"to each field's semantic tag, and fill policies are applied. " +
		"Returns the transformed CSV together with a complete report of every rename, cast and fill. " +
		"In strict mode a missing required column fails the application; the partial report is still returned.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"dataset_id", "content"},
		"properties": map[string]interface{}{
			"dataset_id": map[string]interface{}{
				"type":        "string",
				"description": "Identifier of the dataset whose contract applies, e.g. gl_entries",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "CSV extract with a header row",
			},
			"strict": map[string]interface{}{
				"type":        "boolean",
				"description": "Fail when required columns are missing. Defaults to false.",
			},
			"cast": map[string]interface{}{
				"type":        "boolean",
				"description": "Coerce values to contract types. Defaults to true.",
			},
			"track": map[string]interface{}{
				"type":        "boolean",
				"description": "Record the ordered transformation event log. Defaults to true.",
			},
			"drop_unknown": map[string]interface{}{
				"type":        "boolean",
				"description": "Drop columns the contract does not declare. Defaults to false.",
			},
			"check_quality": map[string]interface{}{
				"type":        "boolean",
				"description": "Evaluate the contract's generated quality rules against the transformed data.",
			},
			"evidence_format": map[string]interface{}{
				"type":        "string",
				"description": "When set, also return an audit evidence package in this format.",
				"enum":        []string{"json", "yaml", "markdown"},
			},
		},
	},
	OutputSchema: objectSchema,
}

// InputApplySchemaContract is the input for the ApplySchemaContract tool.
type InputApplySchemaContract struct {
	DatasetID      string `json:"dataset_id"`
	Content        string `json:"content"`
	Strict         bool   `json:"strict"`
	Cast           *bool  `json:"cast"`
	Track          *bool  `json:"track"`
	DropUnknown    bool   `json:"drop_unknown"`
	CheckQuality   bool   `json:"check_quality"`
	EvidenceFormat string `json:"evidence_format"`
}

// Evidence is an encoded audit package returned inline.
type Evidence struct {
	Format    string `json:"format"`
	MediaType string `json:"media_type"`
	Digest    string `json:"digest"`
	Content   string `json:"content"`
}

// OutputApplySchemaContract is the output for the ApplySchemaContract tool.
type OutputApplySchemaContract struct {
	// Report is the full transformation report. It is present on violations too.
	Report *engine.SchemaReport `json:"report"`
	// Content is the transformed CSV; empty when the application failed.
	Content string `json:"content,omitempty"`
	// Encoding is the character encoding detected in the input.
	Encoding      string                 `json:"encoding"`
	ParseWarnings []dataset.ParseWarning `json:"parse_warnings,omitempty"`
	Quality       *quality.Result        `json:"quality,omitempty"`
	Evidence      *Evidence              `json:"evidence,omitempty"`
	// Error describes the violation that stopped the application.
	Error string `json:"error,omitempty"`
}

// ApplySchemaContract parses the CSV content, applies the active contract and
// returns the transformed data with its report.
func (t *Tools) ApplySchemaContract(ctx context.Context, _ *mcp.CallToolRequest, input InputApplySchemaContract) (*mcp.CallToolResult, OutputApplySchemaContract, error) {
	if input.DatasetID == "" {
		return nil, OutputApplySchemaContract{}, fmt.Errorf("dataset_id is required")
	}
	if input.Content == "" {
		return nil, OutputApplySchemaContract{}, fmt.Errorf("content is required")
	}

	parsed, err := dataset.ReadCSV(strings.NewReader(input.Content))
	if err != nil {
		return nil, OutputApplySchemaContract{}, err
	}

	opts := []engine.ApplyOption{
		engine.Strict(input.Strict),
		engine.DropUnknown(input.DropUnknown),
	}
	if input.Cast != nil {
		opts = append(opts, engine.Cast(*input.Cast))
	}
	if input.Track != nil {
		opts = append(opts, engine.Track(*input.Track))
	}

	out, report, err := t.engine.Apply(ctx, parsed.Dataset, input.DatasetID, opts...)
	if report == nil {
		return nil, OutputApplySchemaContract{}, err
	}

	output := OutputApplySchemaContract{
		Report:        report,
		Encoding:      parsed.Encoding,
		ParseWarnings: parsed.Warnings,
	}
	var result *mcp.CallToolResult
	if err != nil {
		output.Error = err.Error()
		result = &mcp.CallToolResult{IsError: true}
	} else {
		var b strings.Builder
		if werr := dataset.WriteCSV(&b, out); werr != nil {
			return nil, OutputApplySchemaContract{}, werr
		}
		output.Content = b.String()
	}

	var rules []quality.Rule
	if input.CheckQuality && out != nil {
		sc, lerr := t.registry.LoadVersion(ctx, report.DatasetID, report.ContractVersion)
		if lerr != nil {
			return nil, OutputApplySchemaContract{}, lerr
		}
		rules = quality.BuildRules(sc)
		res, qerr := t.checker.Check(ctx, out, rules)
		if qerr != nil {
			return nil, OutputApplySchemaContract{}, qerr
		}
		output.Quality = res
	}

	if input.EvidenceFormat != "" {
		pkg, perr := t.packager.Package(ctx, t.packager.Build(report, rules, output.Quality), input.EvidenceFormat)
		if perr != nil {
			return nil, OutputApplySchemaContract{}, perr
		}
		output.Evidence = &Evidence{
			Format:    pkg.Format,
			MediaType: pkg.MediaType,
			Digest:    pkg.Digest,
			Content:   string(pkg.Content),
		}
	}

	return result, output, nil
}
