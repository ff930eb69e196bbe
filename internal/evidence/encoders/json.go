// SPDX-License-Identifier: Apache-2.0

package encoders

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/gvern/soxauto/internal/evidence"
)

// JSONEncoder renders a bundle as indented JSON.
type JSONEncoder struct{}

// NewJSONEncoder creates a new JSONEncoder.
func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Name() string {
	return "json"
}

func (e *JSONEncoder) MediaType() string {
	return "application/json"
}

func (e *JSONEncoder) CanHandle(format string) bool {
	return strings.EqualFold(format, "json")
}

func (e *JSONEncoder) Encode(_ context.Context, bundle evidence.Bundle) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(bundle); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
