// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"

	"github.com/gvern/soxauto/internal/contract"
)

const unmatched = -1

// nameMatch assigns input columns to contract fields.
type nameMatch struct {
	// field[i] is the field index claimed by column i, or unmatched.
	field []int
	// conflicts are columns that matched a field already claimed by an
	// earlier or stronger match.
	conflicts []string
	warnings  []string
}

// matchColumns resolves columns against fields in three passes of decreasing
// strength: exact canonical name, normalized canonical name, then aliases in
// field order and declared alias order. A canonical-name match always beats an
// alias match, and each field is claimed by at most one column.
func matchColumns(columns []string, fields []contract.SchemaField) nameMatch {
	m := nameMatch{field: make([]int, len(columns))}
	for i := range m.field {
		m.field[i] = unmatched
	}
	claimedBy := make([]int, len(fields))
	for i := range claimedBy {
		claimedBy[i] = unmatched
	}
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = contract.NormalizeName(c)
	}

	claim := func(col, field int) {
		m.field[col] = field
		claimedBy[field] = col
	}

	// Exact canonical names first so a column already carrying its canonical
	// name is never displaced by a near-duplicate.
	for fi, f := range fields {
		for ci, c := range columns {
			if m.field[ci] == unmatched && c == f.Name {
				claim(ci, fi)
				break
			}
		}
	}

	canonical := make(map[string]int, len(fields))
	for fi, f := range fields {
		canonical[contract.NormalizeName(f.Name)] = fi
	}
	for ci := range columns {
		if m.field[ci] != unmatched {
			continue
		}
		if fi, ok := canonical[normalized[ci]]; ok && claimedBy[fi] == unmatched {
			claim(ci, fi)
		}
	}

	for fi, f := range fields {
		if claimedBy[fi] != unmatched {
			continue
		}
	aliases:
		for _, alias := range f.Aliases {
			key := contract.NormalizeName(alias)
			for ci := range columns {
				if m.field[ci] == unmatched && normalized[ci] == key {
					claim(ci, fi)
					break aliases
				}
			}
		}
	}

	// Anything left that still names a field lost to a stronger match.
	for ci, c := range columns {
		if m.field[ci] != unmatched {
			continue
		}
		if owner, ok := fieldNamedBy(normalized[ci], fields); ok {
			m.conflicts = append(m.conflicts, c)
			m.warnings = append(m.warnings, fmt.Sprintf(
				"column %q also matches field %q, already mapped from column %q; kept as unknown",
				c, fields[owner].Name, columns[claimedBy[owner]]))
		}
	}
	return m
}

func fieldNamedBy(key string, fields []contract.SchemaField) (int, bool) {
	for fi, f := range fields {
		if contract.NormalizeName(f.Name) == key {
			return fi, true
		}
		for _, alias := range f.Aliases {
			if contract.NormalizeName(alias) == key {
				return fi, true
			}
		}
	}
	return 0, false
}
