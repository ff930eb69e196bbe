// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/dataset"
)

var (
	defaultCurrencySymbols = []string{"$", "€", "£", "¥", "₹", "CHF", "USD", "EUR", "GBP"}
	defaultTrueValues      = []string{"true", "t", "yes", "y", "1"}
	defaultFalseValues     = []string{"false", "f", "no", "n", "0"}
)

// converter turns one input value into its coerced form. A nil input is
// already missing and is never passed in. ok is false when the value cannot
// be coerced.
type converter func(v any) (out any, ok bool)

// coercion is the outcome of coercing one column.
type coercion struct {
	values  []any
	typ     dataset.Type
	invalid int
	changed int
	// blanked counts non-nil inputs that became missing.
	blanked int
}

// strategyFor selects the converter for a field by its semantic tag and
// returns the column type it produces.
func strategyFor(f contract.SchemaField) (converter, dataset.Type) {
	opts := f.Coercion
	if opts == nil {
		opts = &contract.Coercion{}
	}
	switch f.SemanticTag {
	case contract.TagAmount:
		return amountConverter(f.Type, opts)
	case contract.TagDate:
		return dateConverter(f.Type, opts)
	case contract.TagID, contract.TagKey, contract.TagCode:
		return identifierConverter, dataset.TypeString
	case contract.TagName:
		return nameConverter(opts), dataset.TypeString
	}
	return byTypeConverter(f.Type, opts)
}

// ProducedType returns the column type coercion gives f.
func ProducedType(f contract.SchemaField) dataset.Type {
	_, typ := strategyFor(f)
	return typ
}

// coerceColumn applies the field's strategy to every value of col.
func coerceColumn(f contract.SchemaField, col *dataset.Column) coercion {
	conv, typ := strategyFor(f)
	res := coercion{values: make([]any, len(col.Values)), typ: typ}
	for i, v := range col.Values {
		if isBlank(v) {
			if v != nil {
				res.blanked++
			}
			continue
		}
		out, ok := conv(v)
		if !ok {
			res.invalid++
			res.changed++
			continue
		}
		if !sameValue(v, out) {
			res.changed++
		}
		res.values[i] = out
	}
	return res
}

// isBlank reports a value that counts as missing on input.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case float64:
		return math.IsNaN(x)
	}
	return false
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// ---------------------------------------------------------------------------
// amount
// ---------------------------------------------------------------------------

func amountConverter(target dataset.Type, opts *contract.Coercion) (converter, dataset.Type) {
	typ := target
	switch target {
	case dataset.TypeFloat, dataset.TypeInteger, dataset.TypeString:
	default:
		typ = dataset.TypeFloat
	}
	return func(v any) (any, bool) {
		var d decimal.Decimal
		switch x := v.(type) {
		case float64:
			if typ == dataset.TypeFloat {
				return x, true
			}
			d = decimal.NewFromFloat(x)
		case int64:
			if typ == dataset.TypeInteger {
				return x, true
			}
			d = decimal.NewFromInt(x)
		case string:
			parsed, ok := parseAmount(x, opts)
			if !ok {
				return nil, false
			}
			d = parsed
		default:
			return nil, false
		}
		switch typ {
		case dataset.TypeInteger:
			if !d.IsInteger() {
				return nil, false
			}
			return d.IntPart(), true
		case dataset.TypeString:
			return d.String(), true
		}
		return d.InexactFloat64(), true
	}, typ
}

// parseAmount reads a money string such as "$ 1,234.56", "(12.00)" or
// "1.234,56 €" (with decimal_separator ","). Parentheses and a trailing minus
// mean negative.
func parseAmount(s string, opts *contract.Coercion) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	symbols := defaultCurrencySymbols
	if len(opts.CurrencySymbols) > 0 {
		symbols = opts.CurrencySymbols
	}
	for _, sym := range symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	if opts.StripChars != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(opts.StripChars, r) {
				return -1
			}
			return r
		}, s)
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	if strings.HasSuffix(s, "-") && len(s) > 1 {
		negative = !negative
		s = s[:len(s)-1]
	}

	decimalSep := opts.DecimalSeparator
	if decimalSep == "" {
		decimalSep = "."
	}
	thousandsSep := opts.ThousandsSeparator
	if thousandsSep == "" {
		thousandsSep = ","
		if decimalSep == "," {
			thousandsSep = "."
		}
	}
	s = strings.ReplaceAll(s, thousandsSep, "")
	if decimalSep != "." {
		s = strings.ReplaceAll(s, decimalSep, ".")
	}
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ---------------------------------------------------------------------------
// date
// ---------------------------------------------------------------------------

func dateConverter(target dataset.Type, opts *contract.Coercion) (converter, dataset.Type) {
	typ := target
	switch target {
	case dataset.TypeDate, dataset.TypeDatetime, dataset.TypeString:
	default:
		typ = dataset.TypeDate
	}
	return func(v any) (any, bool) {
		var t time.Time
		switch x := v.(type) {
		case time.Time:
			t = x
		case string:
			parsed, ok := parseTime(strings.TrimSpace(x), opts.DateFormats)
			if !ok {
				return nil, false
			}
			t = parsed
		default:
			return nil, false
		}
		switch typ {
		case dataset.TypeDatetime:
			return t, true
		case dataset.TypeString:
			return dataset.FormatValue(dataset.TypeDate, midnightUTC(t)), true
		}
		return midnightUTC(t), true
	}, typ
}

// ---------------------------------------------------------------------------
// id, key, code, name
// ---------------------------------------------------------------------------

// identifierConverter keeps identifiers textual so leading zeros survive.
func identifierConverter(v any) (any, bool) {
	return stringify(v), true
}

func nameConverter(opts *contract.Coercion) converter {
	collapse := opts.CollapseWhitespace == nil || *opts.CollapseWhitespace
	return func(v any) (any, bool) {
		s := norm.NFC.String(stringify(v))
		if collapse {
			s = strings.Join(strings.Fields(s), " ")
		}
		return s, true
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return dataset.FormatValue(dataset.TypeDatetime, x)
	}
	return ""
}

// ---------------------------------------------------------------------------
// other
// ---------------------------------------------------------------------------

func byTypeConverter(target dataset.Type, opts *contract.Coercion) (converter, dataset.Type) {
	switch target {
	case dataset.TypeInteger:
		return toInteger, target
	case dataset.TypeFloat:
		return toFloat, target
	case dataset.TypeBoolean:
		return booleanConverter(opts), target
	case dataset.TypeDate, dataset.TypeDatetime:
		return dateConverter(target, opts)
	}
	return func(v any) (any, bool) { return stringify(v), true }, dataset.TypeString
}

func toInteger(v any) (any, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, false
		}
		return int64(x), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil || !d.IsInteger() {
			return nil, false
		}
		return d.IntPart(), true
	}
	return nil, false
}

func toFloat(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func booleanConverter(opts *contract.Coercion) converter {
	trueValues, falseValues := defaultTrueValues, defaultFalseValues
	if len(opts.TrueValues) > 0 {
		trueValues = opts.TrueValues
	}
	if len(opts.FalseValues) > 0 {
		falseValues = opts.FalseValues
	}
	return func(v any) (any, bool) {
		switch x := v.(type) {
		case bool:
			return x, true
		case int64:
			switch x {
			case 1:
				return true, true
			case 0:
				return false, true
			}
			return nil, false
		case string:
			s := strings.TrimSpace(x)
			for _, t := range trueValues {
				if strings.EqualFold(s, t) {
					return true, true
				}
			}
			for _, f := range falseValues {
				if strings.EqualFold(s, f) {
					return false, true
				}
			}
		}
		return nil, false
	}
}

// neutralValue is the fill value for fill_zero and fill_empty. Temporal types
// have none.
func neutralValue(t dataset.Type) (any, bool) {
	switch t {
	case dataset.TypeInteger:
		return int64(0), true
	case dataset.TypeFloat:
		return 0.0, true
	case dataset.TypeString:
		return "", true
	case dataset.TypeBoolean:
		return false, true
	}
	return nil, false
}
