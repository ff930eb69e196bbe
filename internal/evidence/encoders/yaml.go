// SPDX-License-Identifier: Apache-2.0

package encoders

import (
	"context"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/gvern/soxauto/internal/evidence"
)

// YAMLEncoder renders a bundle as a single YAML document. It also accepts an
// empty format, so register it last as the fallback.
type YAMLEncoder struct{}

// NewYAMLEncoder creates a new YAMLEncoder.
func NewYAMLEncoder() *YAMLEncoder {
	return &YAMLEncoder{}
}

func (e *YAMLEncoder) Name() string {
	return "yaml"
}

func (e *YAMLEncoder) MediaType() string {
	return "application/yaml"
}

func (e *YAMLEncoder) CanHandle(format string) bool {
	return format == "" || strings.EqualFold(format, "yaml") || strings.EqualFold(format, "yml")
}

func (e *YAMLEncoder) Encode(_ context.Context, bundle evidence.Bundle) ([]byte, error) {
	return yaml.Marshal(bundle)
}

// Default returns every encoder in selection order. YAML is last because it
// accepts an empty format.
func Default() []evidence.Encoder {
	return []evidence.Encoder{
		NewJSONEncoder(),
		NewMarkdownEncoder(),
		NewYAMLEncoder(),
	}
}
