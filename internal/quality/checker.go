// SPDX-License-Identifier: Apache-2.0

package quality

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/gvern/soxauto/internal/dataset"
)

// RuleResult is the outcome of one rule over one dataset.
type RuleResult struct {
	RuleID     string   `json:"rule_id" yaml:"rule_id"`
	Column     string   `json:"column" yaml:"column"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Passed     bool     `json:"passed" yaml:"passed"`
	Skipped    bool     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Checked    int      `json:"checked" yaml:"checked"`
	Violations int      `json:"violations" yaml:"violations"`
	// FirstViolation is the zero-based row of the first failing value.
	FirstViolation *int `json:"first_violation,omitempty" yaml:"first_violation,omitempty"`
}

// Result aggregates rule results. Passed is false when any error-severity
// rule has violations.
type Result struct {
	Passed   bool         `json:"passed" yaml:"passed"`
	Errors   int          `json:"errors" yaml:"errors"`
	Warnings int          `json:"warnings" yaml:"warnings"`
	Results  []RuleResult `json:"results" yaml:"results"`
}

// Checker evaluates rules with CEL. Compiled programs are cached by
// expression; a Checker is safe for concurrent use.
type Checker struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewChecker creates a Checker.
func NewChecker() (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("missing", cel.BoolType),
		cel.Variable("columns", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Checker{env: env, prgCache: make(map[string]cel.Program)}, nil
}

func (c *Checker) program(expression string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expression]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.prgCache[expression]; hit {
		return prg, nil
	}
	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("CEL expression %q yields %s, want bool", expression, ast.OutputType())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	c.prgCache[expression] = prg
	return prg, nil
}

// Check evaluates every rule against ds. Value-level rules on a column the
// dataset does not carry are skipped; absence is reported by exists rules.
func (c *Checker) Check(ctx context.Context, ds *dataset.Dataset, rules []Rule) (*Result, error) {
	res := &Result{Passed: true, Results: make([]RuleResult, 0, len(rules))}
	columns := ds.Columns()

	for _, rule := range rules {
		prg, err := c.program(rule.Expression)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rr := RuleResult{RuleID: rule.ID, Column: rule.Column, Kind: rule.Kind, Severity: rule.Severity, Passed: true}

		if rule.ColumnLevel() {
			ok, err := eval(ctx, prg, map[string]any{"columns": columns, "value": nil, "missing": false})
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			rr.Checked = 1
			if !ok {
				rr.Violations = 1
			}
		} else if col, found := ds.Column(rule.Column); found {
			for i, v := range col.Values {
				ok, err := eval(ctx, prg, map[string]any{"columns": columns, "value": v, "missing": v == nil})
				if err != nil {
					return nil, fmt.Errorf("rule %s row %d: %w", rule.ID, i, err)
				}
				rr.Checked++
				if !ok {
					if rr.Violations == 0 {
						row := i
						rr.FirstViolation = &row
					}
					rr.Violations++
				}
			}
		} else {
			rr.Skipped = true
		}

		if rr.Violations > 0 {
			rr.Passed = false
			if rule.Severity == SeverityError {
				res.Errors++
				res.Passed = false
			} else {
				res.Warnings++
			}
		}
		res.Results = append(res.Results, rr)
	}
	return res, nil
}

func eval(ctx context.Context, prg cel.Program, activation map[string]any) (bool, error) {
	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("result not boolean")
	}
	return ok, nil
}
