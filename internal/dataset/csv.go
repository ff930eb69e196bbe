// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseWarning is a non-fatal issue found while reading a CSV extract.
type ParseWarning struct {
	Row     int    `json:"row" yaml:"row"`
	Message string `json:"message" yaml:"message"`
}

// CSVResult is the outcome of ReadCSV.
type CSVResult struct {
	Dataset  *Dataset
	Encoding string
	Warnings []ParseWarning
}

// ReadCSV reads a header-first CSV extract into a dataset of string columns.
// Byte order marks select UTF-8 or UTF-16; input that is not valid UTF-8 is
// read as Latin-1. Empty cells become missing values. Rows with too few or too
// many cells are padded or truncated and reported as warnings, as are renamed
// empty or repeated headers.
func ReadCSV(r io.Reader) (*CSVResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	decoded, encoding, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	headers, warnings := uniqueHeaders(headers)

	columns := make([]*Column, len(headers))
	for i, h := range headers {
		columns[i] = &Column{Name: h, Type: TypeString}
	}

	rowNum := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			warnings = append(warnings, ParseWarning{Row: rowNum, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		if len(row) < len(headers) {
			warnings = append(warnings, ParseWarning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding with missing values", len(row), len(headers)),
			})
		} else if len(row) > len(headers) {
			warnings = append(warnings, ParseWarning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), len(headers)),
			})
		}
		for i := range headers {
			var v any
			if i < len(row) && row[i] != "" {
				v = row[i]
			}
			columns[i].Values = append(columns[i].Values, v)
		}
	}

	ds, err := New(columns...)
	if err != nil {
		return nil, err
	}
	return &CSVResult{Dataset: ds, Encoding: encoding, Warnings: warnings}, nil
}

// uniqueHeaders trims the header row and renames empty or repeated names so
// every column can be addressed. Empty headers become column_<position> and
// repeats get a _2, _3 suffix. Each rename is reported against row 1.
func uniqueHeaders(raw []string) ([]string, []ParseWarning) {
	headers := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, h := range raw {
		headers[i] = strings.TrimSpace(h)
		taken[headers[i]] = true
	}

	var warnings []ParseWarning
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if h != "" && !seen[h] {
			seen[h] = true
			continue
		}
		var name, msg string
		if h == "" {
			name = fmt.Sprintf("column_%d", i+1)
			for n := 2; taken[name]; n++ {
				name = fmt.Sprintf("column_%d_%d", i+1, n)
			}
			msg = fmt.Sprintf("header %d is empty; renamed to %q", i+1, name)
		} else {
			name = h + "_2"
			for n := 3; taken[name]; n++ {
				name = h + "_" + strconv.Itoa(n)
			}
			msg = fmt.Sprintf("header %q is repeated at position %d; renamed to %q", h, i+1, name)
		}
		headers[i] = name
		taken[name] = true
		seen[name] = true
		warnings = append(warnings, ParseWarning{Row: 1, Message: msg})
	}
	return headers, warnings
}

func decode(raw []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		return out, "utf-8-bom", err
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		return out, "utf-16le", err
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		return out, "utf-16be", err
	case utf8.Valid(raw):
		return raw, "utf-8", nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return out, "latin-1", err
}

// WriteCSV writes the dataset with a header row. Missing values are empty
// cells, dates use 2006-01-02 and datetimes RFC 3339.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns()); err != nil {
		return err
	}
	record := make([]string, len(ds.columns))
	for row := 0; row < ds.rows; row++ {
		for i, col := range ds.columns {
			record[i] = FormatValue(col.Type, col.Values[row])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a single value the way WriteCSV does.
func FormatValue(t Type, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if t == TypeDate {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}
