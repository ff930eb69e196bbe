// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"

	"github.com/gvern/soxauto/internal/dataset"
)

// RequireColumns asserts that ds carries every canonical column in names. It is
// the entry gate for consumers of a validated dataset: the error names source
// and all missing columns. ds is returned unchanged.
func RequireColumns(ds *dataset.Dataset, names []string, source string) (*dataset.Dataset, error) {
	if ds == nil {
		return nil, errors.New(source + ": dataset is nil")
	}
	var missing []string
	for _, name := range names {
		if !ds.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredColumnError{Source: source, Columns: missing}
	}
	return ds, nil
}
