// SPDX-License-Identifier: Apache-2.0

// Package quality derives data-quality rules from a schema contract and
// evaluates them against datasets.
package quality

import (
	"fmt"
	"strconv"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/dataset"
	"github.com/gvern/soxauto/internal/engine"
)

// Kind is the category of a quality rule.
type Kind string

const (
	KindExists   Kind = "exists"
	KindType     Kind = "type"
	KindSemantic Kind = "semantic"
	KindNotNull  Kind = "not_null"
)

// Severity tells the quality component how to treat a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule is one validation check derived from a contract field.
//
// Expression is a CEL predicate. Column-level rules (exists) see the variable
// columns (list of column names). Value-level rules are evaluated once per
// row and see value (the cell, null when missing) and missing (bool).
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	Column      string   `json:"column" yaml:"column"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
	Expression  string   `json:"expression" yaml:"expression"`
}

// ColumnLevel reports whether the rule is evaluated once per dataset rather
// than once per value.
func (r Rule) ColumnLevel() bool {
	return r.Kind == KindExists
}

// BuildRules derives the ordered quality rules of c: existence checks for
// required fields, type checks for every field, semantic checks for fields
// with a tag other than "other", and not-null checks for
// reconciliation-critical fields. Each group follows field order.
func BuildRules(c *contract.SchemaContract) []Rule {
	fields := c.Fields()
	var rules []Rule

	for _, f := range fields {
		if !f.Required {
			continue
		}
		rules = append(rules, Rule{
			ID:          ruleID(KindExists, f.Name),
			Column:      f.Name,
			Kind:        KindExists,
			Severity:    SeverityError,
			Description: fmt.Sprintf("column %q must be present", f.Name),
			Expression:  strconv.Quote(f.Name) + " in columns",
		})
	}

	for _, f := range fields {
		typ := engine.ProducedType(f)
		rules = append(rules, Rule{
			ID:          ruleID(KindType, f.Name),
			Column:      f.Name,
			Kind:        KindType,
			Severity:    SeverityError,
			Description: fmt.Sprintf("values of %q must be of type %s", f.Name, typ),
			Expression:  "missing || " + typeCheck(typ),
		})
	}

	for _, f := range fields {
		if f.SemanticTag == contract.TagOther {
			continue
		}
		rules = append(rules, Rule{
			ID:          ruleID(KindSemantic, f.Name),
			Column:      f.Name,
			Kind:        KindSemantic,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("values of %q must be valid %s values", f.Name, f.SemanticTag),
			Expression:  "missing || " + semanticCheck(f.SemanticTag, engine.ProducedType(f)),
		})
	}

	for _, f := range fields {
		if !f.ReconciliationCritical {
			continue
		}
		rules = append(rules, Rule{
			ID:          ruleID(KindNotNull, f.Name),
			Column:      f.Name,
			Kind:        KindNotNull,
			Severity:    SeverityError,
			Description: fmt.Sprintf("reconciliation-critical column %q must not contain missing values", f.Name),
			Expression:  "!missing",
		})
	}
	return rules
}

func ruleID(kind Kind, column string) string {
	return string(kind) + ":" + column
}

func typeCheck(t dataset.Type) string {
	switch t {
	case dataset.TypeInteger:
		return "type(value) == int"
	case dataset.TypeFloat:
		return "type(value) == double"
	case dataset.TypeBoolean:
		return "type(value) == bool"
	case dataset.TypeDate, dataset.TypeDatetime:
		return "type(value) == google.protobuf.Timestamp"
	}
	return "type(value) == string"
}

func semanticCheck(tag contract.SemanticTag, produced dataset.Type) string {
	switch tag {
	case contract.TagAmount:
		return "(type(value) == double || type(value) == int || (type(value) == string && value.matches('^-?[0-9]+(\\\\.[0-9]+)?$')))"
	case contract.TagDate:
		if produced == dataset.TypeString {
			return "(type(value) == string && value.matches('^[0-9]{4}-[0-9]{2}-[0-9]{2}([T ][0-9]{2}:[0-9]{2}(:[0-9]{2}(\\\\.[0-9]+)?)?(Z|[+-][0-9]{2}:?[0-9]{2})?)?$'))"
		}
		return "type(value) == google.protobuf.Timestamp"
	case contract.TagName:
		return "(type(value) == string && value != '' && !value.matches('^\\\\s|\\\\s$|\\\\s\\\\s'))"
	}
	return "(type(value) == string && value.matches('^\\\\S(.*\\\\S)?$'))"
}
