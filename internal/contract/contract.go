// SPDX-License-Identifier: Apache-2.0

// Package contract models the per-dataset schema contract: which canonical
// columns a dataset carries, which source spellings map onto them, and how
// their values are coerced and filled.
package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gvern/soxauto/internal/dataset"
)

// SemanticTag classifies what a column means; it selects the coercion
// strategy independently of the declared storage type.
type SemanticTag string

const (
	TagAmount SemanticTag = "amount"
	TagDate   SemanticTag = "date"
	TagID     SemanticTag = "id"
	TagKey    SemanticTag = "key"
	TagCode   SemanticTag = "code"
	TagName   SemanticTag = "name"
	TagOther  SemanticTag = "other"
)

func (t SemanticTag) Valid() bool {
	switch t {
	case TagAmount, TagDate, TagID, TagKey, TagCode, TagName, TagOther:
		return true
	}
	return false
}

// IsIdentifier reports whether values of this tag must stay textual.
func (t SemanticTag) IsIdentifier() bool {
	return t == TagID || t == TagKey || t == TagCode
}

// FillPolicy is the rule applied to values still missing after coercion.
type FillPolicy string

const (
	FillKeepNaN   FillPolicy = "keep_nan"
	FillZero      FillPolicy = "fill_zero"
	FillEmpty     FillPolicy = "fill_empty"
	FillFailOnNaN FillPolicy = "fail_on_nan"
)

func (p FillPolicy) Valid() bool {
	switch p {
	case FillKeepNaN, FillZero, FillEmpty, FillFailOnNaN:
		return true
	}
	return false
}

// Coercion holds optional strategy parameters for one field.
type Coercion struct {
	// DateFormats are tried in order before the general-purpose layouts.
	// Both strftime patterns (%Y-%m-%d) and Go layouts are accepted.
	DateFormats        []string `json:"date_formats,omitempty" yaml:"date_formats,omitempty"`
	StripChars         string   `json:"strip_chars,omitempty" yaml:"strip_chars,omitempty"`
	DecimalSeparator   string   `json:"decimal_separator,omitempty" yaml:"decimal_separator,omitempty"`
	ThousandsSeparator string   `json:"thousands_separator,omitempty" yaml:"thousands_separator,omitempty"`
	CurrencySymbols    []string `json:"currency_symbols,omitempty" yaml:"currency_symbols,omitempty"`
	TrueValues         []string `json:"true_values,omitempty" yaml:"true_values,omitempty"`
	FalseValues        []string `json:"false_values,omitempty" yaml:"false_values,omitempty"`
	CollapseWhitespace *bool    `json:"collapse_whitespace,omitempty" yaml:"collapse_whitespace,omitempty"`
}

func (c *Coercion) clone() *Coercion {
	if c == nil {
		return nil
	}
	out := *c
	out.DateFormats = append([]string(nil), c.DateFormats...)
	out.CurrencySymbols = append([]string(nil), c.CurrencySymbols...)
	out.TrueValues = append([]string(nil), c.TrueValues...)
	out.FalseValues = append([]string(nil), c.FalseValues...)
	if c.CollapseWhitespace != nil {
		v := *c.CollapseWhitespace
		out.CollapseWhitespace = &v
	}
	return &out
}

func (c *Coercion) isZero() bool {
	return len(c.DateFormats) == 0 && c.StripChars == "" && c.DecimalSeparator == "" &&
		c.ThousandsSeparator == "" && len(c.CurrencySymbols) == 0 && len(c.TrueValues) == 0 &&
		len(c.FalseValues) == 0 && c.CollapseWhitespace == nil
}

// SchemaField is one canonical column definition.
type SchemaField struct {
	Name                   string       `json:"name" yaml:"name"`
	Aliases                []string     `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Required               bool         `json:"required" yaml:"required"`
	Type                   dataset.Type `json:"type" yaml:"type"`
	SemanticTag            SemanticTag  `json:"semantic_tag" yaml:"semantic_tag"`
	Coercion               *Coercion    `json:"coercion,omitempty" yaml:"coercion,omitempty"`
	FillPolicy             FillPolicy   `json:"fill_policy" yaml:"fill_policy"`
	ReconciliationCritical bool         `json:"reconciliation_critical" yaml:"reconciliation_critical"`
	Description            string       `json:"description,omitempty" yaml:"description,omitempty"`
}

func (f SchemaField) clone() SchemaField {
	f.Aliases = append([]string(nil), f.Aliases...)
	f.Coercion = f.Coercion.clone()
	return f
}

// withDefaults fills the optional enums the way contract documents expect.
func (f SchemaField) withDefaults() SchemaField {
	f.Name = strings.TrimSpace(f.Name)
	if f.SemanticTag == "" {
		f.SemanticTag = TagOther
	}
	if f.FillPolicy == "" {
		f.FillPolicy = FillKeepNaN
	}
	if f.Coercion != nil && f.Coercion.isZero() {
		f.Coercion = nil
	}
	return f
}

// SchemaContract is the immutable schema of one dataset version.
type SchemaContract struct {
	datasetID   string
	version     int
	description string
	fields      []SchemaField
	hash        string
}

// New validates fields and builds a contract. Alias collisions between fields
// yield *AliasCollisionError listing all of them; any other defect wraps
// ErrInvalidContract, alongside the collisions when both occur.
func New(datasetID string, version int, fields []SchemaField) (*SchemaContract, error) {
	return newContract(datasetID, version, "", fields)
}

func newContract(datasetID string, version int, description string, fields []SchemaField) (*SchemaContract, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidContract)
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: %s: version must be a positive integer, got %d", ErrInvalidContract, datasetID, version)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s v%d declares no fields", ErrInvalidContract, datasetID, version)
	}

	c := &SchemaContract{
		datasetID:   datasetID,
		version:     version,
		description: description,
		fields:      make([]SchemaField, len(fields)),
	}
	for i, f := range fields {
		c.fields[i] = f.clone().withDefaults()
	}
	if err := c.check(); err != nil {
		return nil, err
	}

	hash, err := ContentHash(c.fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s v%d: %v", ErrInvalidContract, datasetID, version, err)
	}
	c.hash = hash
	return c, nil
}

func (c *SchemaContract) check() error {
	var problems []error
	names := make(map[string]string, len(c.fields))
	aliasOwner := make(map[string]string)
	var collisions []AliasCollision
	collisionAt := make(map[string]int)

	for i, f := range c.fields {
		if f.Name == "" {
			problems = append(problems, fmt.Errorf("field %d has no name", i))
			continue
		}
		key := NormalizeName(f.Name)
		if prev, dup := names[key]; dup {
			problems = append(problems, fmt.Errorf("field %q duplicates canonical name %q", f.Name, prev))
		}
		names[key] = f.Name

		if !f.Type.Valid() {
			problems = append(problems, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type))
		}
		if !f.SemanticTag.Valid() {
			problems = append(problems, fmt.Errorf("field %q: unknown semantic_tag %q", f.Name, f.SemanticTag))
		}
		if !f.FillPolicy.Valid() {
			problems = append(problems, fmt.Errorf("field %q: unknown fill_policy %q", f.Name, f.FillPolicy))
		}

		seenInField := make(map[string]bool, len(f.Aliases))
		for _, alias := range f.Aliases {
			ak := NormalizeName(alias)
			if ak == "" {
				problems = append(problems, fmt.Errorf("field %q has an empty alias", f.Name))
				continue
			}
			if seenInField[ak] {
				continue
			}
			seenInField[ak] = true
			owner, taken := aliasOwner[ak]
			if !taken {
				aliasOwner[ak] = f.Name
				continue
			}
			if i, seen := collisionAt[ak]; seen {
				collisions[i].Fields = append(collisions[i].Fields, f.Name)
				continue
			}
			collisionAt[ak] = len(collisions)
			collisions = append(collisions, AliasCollision{Alias: alias, Fields: []string{owner, f.Name}})
		}
	}

	if len(collisions) > 0 {
		collisionErr := &AliasCollisionError{
			DatasetID:  c.datasetID,
			Version:    c.version,
			Alias:      collisions[0].Alias,
			Fields:     collisions[0].Fields,
			Collisions: collisions,
		}
		if len(problems) == 0 {
			return collisionErr
		}
		problems = append(problems, collisionErr)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s v%d: %w", ErrInvalidContract, c.datasetID, c.version, errors.Join(problems...))
	}
	return nil
}

func (c *SchemaContract) DatasetID() string   { return c.datasetID }
func (c *SchemaContract) Version() int        { return c.version }
func (c *SchemaContract) Description() string { return c.description }

// Hash returns the content hash of the field list ("sha256:<hex>").
func (c *SchemaContract) Hash() string { return c.hash }

// Fields returns a copy of the ordered field list.
func (c *SchemaContract) Fields() []SchemaField {
	out := make([]SchemaField, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.clone()
	}
	return out
}

// Field looks up a field by canonical name (normalized comparison).
func (c *SchemaContract) Field(name string) (SchemaField, bool) {
	key := NormalizeName(name)
	for _, f := range c.fields {
		if NormalizeName(f.Name) == key {
			return f.clone(), true
		}
	}
	return SchemaField{}, false
}

// Len returns the number of fields.
func (c *SchemaContract) Len() int { return len(c.fields) }

func (c *SchemaContract) String() string {
	return fmt.Sprintf("%s v%d (%s)", c.datasetID, c.version, c.hash)
}
