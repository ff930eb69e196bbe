// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/quality"
)

var versionProperty = map[string]interface{}{
	"type":        "integer",
	"minimum":     0,
	"description": "Contract version. 0 or omitted selects the active version (pinned or latest).",
}

// MetadataBuildQualityRules describes the build_quality_rules tool.
var MetadataBuildQualityRules = &mcp.Tool{
	Name: "build_quality_rules",
	Description: "Derive declarative data-quality rules from a dataset's schema contract: column existence " +
		"for required fields, value types, semantic format checks and not-null checks for " +
		"reconciliation-critical fields. Each rule carries a CEL expression. Output is deterministic.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"dataset_id"},
		"properties": map[string]interface{}{
			"dataset_id": map[string]interface{}{
				"type":        "string",
				"description": "Identifier of the dataset",
			},
			"version": versionProperty,
		},
	},
	OutputSchema: objectSchema,
}

// InputBuildQualityRules is the input for the BuildQualityRules tool.
type InputBuildQualityRules struct {
	DatasetID string `json:"dataset_id"`
	Version   int    `json:"version"`
}

// OutputBuildQualityRules is the output for the BuildQualityRules tool.
type OutputBuildQualityRules struct {
	DatasetID       string         `json:"dataset_id"`
	ContractVersion int            `json:"contract_version"`
	ContractHash    string         `json:"contract_hash"`
	Rules           []quality.Rule `json:"rules"`
}

// BuildQualityRules generates the quality rules for a contract version.
func (t *Tools) BuildQualityRules(ctx context.Context, _ *mcp.CallToolRequest, input InputBuildQualityRules) (*mcp.CallToolResult, OutputBuildQualityRules, error) {
	sc, err := t.resolve(ctx, input.DatasetID, input.Version)
	if err != nil {
		return nil, OutputBuildQualityRules{}, err
	}
	return nil, OutputBuildQualityRules{
		DatasetID:       sc.DatasetID(),
		ContractVersion: sc.Version(),
		ContractHash:    sc.Hash(),
		Rules:           quality.BuildRules(sc),
	}, nil
}

func (t *Tools) resolve(ctx context.Context, datasetID string, version int) (*contract.SchemaContract, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("dataset_id is required")
	}
	if version < 0 {
		return nil, fmt.Errorf("version must not be negative")
	}
	if version == 0 {
		active, err := t.registry.ActiveVersion(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		version = active
	}
	return t.registry.LoadVersion(ctx, datasetID, version)
}
