// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/quality"
)

// Packager encodes contract application outcomes with the first registered
// encoder that accepts the requested format.
type Packager struct {
	encoders []Encoder
	mapper   *FindingMapper
}

// NewPackager creates a new Packager with the provided encoders.
// The FindingMapper is created internally.
func NewPackager(encoders ...Encoder) *Packager {
	return &Packager{
		encoders: encoders,
		mapper:   NewFindingMapper(),
	}
}

// Package is one encoded evidence artifact.
type Package struct {
	Format       string `json:"format" yaml:"format"`
	MediaType    string `json:"media_type" yaml:"media_type"`
	Digest       string `json:"digest" yaml:"digest"`
	DatasetID    string `json:"dataset_id" yaml:"dataset_id"`
	ContractHash string `json:"contract_hash" yaml:"contract_hash"`
	ReportID     string `json:"report_id" yaml:"report_id"`
	FindingCount int    `json:"finding_count" yaml:"finding_count"`
	Content      []byte `json:"-" yaml:"-"`
}

// Build assembles the bundle for a report, with optional quality rules and
// their result, deriving the findings.
func (p *Packager) Build(report *engine.SchemaReport, rules []quality.Rule, result *quality.Result) Bundle {
	return Bundle{
		Report:   report,
		Rules:    rules,
		Quality:  result,
		Findings: p.mapper.Map(report, rules, result),
	}
}

// Package encodes bundle in format.
func (p *Packager) Package(ctx context.Context, bundle Bundle, format string) (Package, error) {
	if bundle.Report == nil {
		return Package{}, fmt.Errorf("evidence bundle has no report")
	}
	encoder, err := p.selectEncoder(format)
	if err != nil {
		return Package{}, err
	}

	content, err := encoder.Encode(ctx, bundle)
	if err != nil {
		return Package{}, fmt.Errorf("encoder %q failed: %w", encoder.Name(), err)
	}

	sum := sha256.Sum256(content)
	return Package{
		Format:       encoder.Name(),
		MediaType:    encoder.MediaType(),
		Digest:       "sha256:" + hex.EncodeToString(sum[:]),
		DatasetID:    bundle.Report.DatasetID,
		ContractHash: bundle.Report.ContractHash,
		ReportID:     bundle.Report.ReportID,
		FindingCount: len(bundle.Findings),
		Content:      content,
	}, nil
}

// selectEncoder returns the first registered encoder that can handle format.
func (p *Packager) selectEncoder(format string) (Encoder, error) {
	for _, encoder := range p.encoders {
		if encoder.CanHandle(format) {
			return encoder, nil
		}
	}
	return nil, fmt.Errorf("unsupported evidence format: no encoder found for %q", format)
}

// RegisteredEncoders returns the names of all currently registered encoders.
func (p *Packager) RegisteredEncoders() []string {
	names := make([]string, len(p.encoders))
	for i, encoder := range p.encoders {
		names[i] = encoder.Name()
	}
	return names
}
