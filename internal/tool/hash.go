// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetadataGetContractHash describes the get_contract_hash tool.
var MetadataGetContractHash = &mcp.Tool{
	Name: "get_contract_hash",
	Description: "Return the content hash of a dataset's schema contract. The hash covers every field, " +
		"alias, tag and policy, and changes whenever any of them changes. Record it alongside control " +
		"evidence to prove which contract was in force.",
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

// InputGetContractHash is the input for the GetContractHash tool.
type InputGetContractHash struct {
	DatasetID string `json:"dataset_id"`
	Version   int    `json:"version"`
}

// OutputGetContractHash is the output for the GetContractHash tool.
type OutputGetContractHash struct {
	DatasetID string `json:"dataset_id"`
	Version   int    `json:"version"`
	Hash      string `json:"hash"`
}

// GetContractHash returns the hash of the requested, or active, contract.
func (t *Tools) GetContractHash(ctx context.Context, _ *mcp.CallToolRequest, input InputGetContractHash) (*mcp.CallToolResult, OutputGetContractHash, error) {
	sc, err := t.resolve(ctx, input.DatasetID, input.Version)
	if err != nil {
		return nil, OutputGetContractHash{}, err
	}
	return nil, OutputGetContractHash{
		DatasetID: sc.DatasetID(),
		Version:   sc.Version(),
		Hash:      sc.Hash(),
	}, nil
}
