// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContract marks a contract document or definition that cannot be used.
var ErrInvalidContract = errors.New("invalid schema contract")

// AliasCollision is one source alias claimed by more than one field.
type AliasCollision struct {
	Alias  string
	Fields []string
}

func (c AliasCollision) String() string {
	return fmt.Sprintf("alias %q declared by fields %s", c.Alias, strings.Join(quoteAll(c.Fields), ", "))
}

// AliasCollisionError reports that fields of one contract claim the same
// source alias. It is a configuration defect and blocks the contract.
// Collisions lists every colliding alias in field order; Alias and Fields
// repeat the first one.
type AliasCollisionError struct {
	DatasetID  string
	Version    int
	Alias      string
	Fields     []string
	Collisions []AliasCollision
}

func (e *AliasCollisionError) Error() string {
	collisions := e.Collisions
	if len(collisions) == 0 {
		collisions = []AliasCollision{{Alias: e.Alias, Fields: e.Fields}}
	}
	parts := make([]string, len(collisions))
	for i, c := range collisions {
		parts[i] = c.String()
	}
	return fmt.Sprintf("alias collision in %s v%d: %s", e.DatasetID, e.Version, strings.Join(parts, "; "))
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
