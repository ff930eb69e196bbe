// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName is the comparison key for column names and aliases:
// NFKC-normalized, trimmed, internal whitespace runs collapsed to one space,
// and case-folded. "Customer  No", "customer no" and "CUSTOMER NO" share a key.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}
