// SPDX-License-Identifier: Apache-2.0

package registry

import "fmt"

// ContractNotFoundError reports that no definition exists for a dataset, or
// that a pinned version does not exist.
type ContractNotFoundError struct {
	DatasetID string
	Version   int
	Pinned    bool
}

func (e *ContractNotFoundError) Error() string {
	switch {
	case e.Pinned:
		return fmt.Sprintf("schema contract for dataset %q not found: pinned version %d (%s%s) does not exist",
			e.DatasetID, e.Version, PinEnvPrefix, e.DatasetID)
	case e.Version > 0:
		return fmt.Sprintf("schema contract for dataset %q not found: version %d does not exist", e.DatasetID, e.Version)
	}
	return fmt.Sprintf("schema contract for dataset %q not found", e.DatasetID)
}
