// SPDX-License-Identifier: Apache-2.0

package contract

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/goccy/go-yaml"
)

//go:embed schema.cue
var documentSchema string

// Document is the declarative form of one contract version as written in a
// YAML or JSON definition file.
type Document struct {
	DatasetID   string        `yaml:"dataset_id,omitempty" json:"dataset_id,omitempty"`
	Version     int           `yaml:"version" json:"version"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []SchemaField `yaml:"fields" json:"fields"`
}

// ParseDocument decodes a YAML or JSON contract document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal document: %w", ErrInvalidContract, err)
	}
	return &doc, nil
}

// Contract builds the contract for datasetID. A dataset_id declared inside the
// document must agree with the one derived from its location.
func (d *Document) Contract(datasetID string) (*SchemaContract, error) {
	if d.DatasetID != "" && strings.TrimSpace(d.DatasetID) != datasetID {
		return nil, fmt.Errorf("%w: document declares dataset_id %q but is registered as %q",
			ErrInvalidContract, d.DatasetID, datasetID)
	}
	return newContract(datasetID, d.Version, d.Description, d.Fields)
}

// Validator checks documents against the embedded CUE schema before they are
// decoded, so unknown keys and misspelled enum values are rejected with a path.
// A cue.Context is not safe for concurrent use; calls are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded document schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(documentSchema, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile contract schema: %w", err)
	}
	def := root.LookupPath(cue.ParsePath("#Contract"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Contract: %w", err)
	}
	return &Validator{ctx: ctx, schema: def}, nil
}

// Validate checks one raw document. name is used in error positions.
func (v *Validator) Validate(name string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidContract, name, err)
	}
	value := v.ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidContract, name, err)
	}
	if err := v.schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidContract, name, err)
	}
	return nil
}

// Load validates, parses and builds a contract from a raw document in one step.
// validator may be nil to skip the structural check.
func Load(validator *Validator, name, datasetID string, data []byte) (*SchemaContract, error) {
	if validator != nil {
		if err := validator.Validate(name, data); err != nil {
			return nil, err
		}
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Contract(datasetID)
}
