// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Query runs an extraction query and returns its result set as a dataset.
// The caller owns db; connection management stays outside this package.
func Query(ctx context.Context, db *sql.DB, query string, args ...any) (*Dataset, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("extraction query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return FromRows(rows)
}

// FromRows drains rows into a dataset. Byte slices become strings and integer
// widths are normalized to int64. A column keeps a typed representation only
// when every non-missing value shares one type; mixed columns are stringified.
func FromRows(rows *sql.Rows) (*Dataset, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columns := make([]*Column, len(names))
	for i, n := range names {
		columns[i] = &Column{Name: n}
	}

	scan := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range scan {
		dest[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range scan {
			columns[i].Values = append(columns[i].Values, normalizeSQLValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, col := range columns {
		settleType(col)
	}
	return New(columns...)
}

func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case string, int64, float64, bool, time.Time:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return fmt.Sprintf("%v", v)
}

func settleType(col *Column) {
	var t Type
	mixed := false
	for _, v := range col.Values {
		vt, ok := TypeOf(v)
		if !ok {
			continue
		}
		if t == "" {
			t = vt
		} else if vt != t {
			mixed = true
			break
		}
	}
	if t == "" {
		col.Type = TypeString
		return
	}
	if !mixed {
		col.Type = t
		return
	}
	col.Type = TypeString
	for i, v := range col.Values {
		if v != nil {
			col.Values[i] = FormatValue(TypeDatetime, v)
		}
	}
}
