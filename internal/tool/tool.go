// SPDX-License-Identifier: Apache-2.0

// Package tool exposes contract resolution, validation and rule generation as
// MCP tools.
package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/evidence"
	"github.com/gvern/soxauto/internal/evidence/encoders"
	"github.com/gvern/soxauto/internal/quality"
	"github.com/gvern/soxauto/internal/registry"
)

// ServerName is the implementation name advertised to MCP clients.
const ServerName = "soxauto-schema"

// objectSchema is the output schema of every tool. Reports carry timestamps
// and free-form row values, so only the envelope is constrained.
var objectSchema = map[string]interface{}{"type": "object"}

// Tools binds the MCP tool handlers to a registry and engine.
type Tools struct {
	registry *registry.Registry
	engine   *engine.Engine
	checker  *quality.Checker
	packager *evidence.Packager
}

// New creates the tool set.
func New(reg *registry.Registry, eng *engine.Engine) (*Tools, error) {
	checker, err := quality.NewChecker()
	if err != nil {
		return nil, err
	}
	return &Tools{
		registry: reg,
		engine:   eng,
		checker:  checker,
		packager: defaultPackager(),
	}, nil
}

// defaultPackager builds a Packager with all encoders registered.
func defaultPackager() *evidence.Packager {
	return evidence.NewPackager(encoders.Default()...)
}

// Register adds every tool to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, MetadataApplySchemaContract, t.ApplySchemaContract)
	mcp.AddTool(server, MetadataBuildQualityRules, t.BuildQualityRules)
	mcp.AddTool(server, MetadataGetContractHash, t.GetContractHash)
}

// NewServer creates an MCP server with every tool registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	t.Register(server)
	return server
}
