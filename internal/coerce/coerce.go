// Package coerce converts raw CSV cells into the values stored for a table.
//
// Numeric columns (INT, FLOAT) hold a float64 or nil; a cell that does not
// start with a number is nil rather than an error. Every other column keeps
// its raw text, and an absent cell is nil. DATE and BOOLEAN cells are not
// validated.
package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/duckmesh/tabula/internal/csvingest"
	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/schema"
)

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// Number reads the longest numeric prefix of raw, so "12abc" is 12 and
// " 3.5" is 3.5. Infinite and out-of-range values are invalid.
func Number(raw string, present bool) pgtype.Float8 {
	if !present {
		return pgtype.Float8{}
	}
	trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
	match := numericPrefix.FindString(trimmed)
	if match == "" {
		return pgtype.Float8{}
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: value, Valid: true}
}

func Text(raw string, present bool) pgtype.Text {
	return pgtype.Text{String: raw, Valid: present}
}

// Value coerces one cell for a column of the given type.
func Value(columnType schema.ColumnType, raw string, present bool) any {
	if columnType.IsNumeric() {
		number := Number(raw, present)
		if !number.Valid {
			return nil
		}
		return number.Float64
	}
	text := Text(raw, present)
	if !text.Valid {
		return nil
	}
	return text.String
}

// Row builds a stored row keyed by canonical column name. Keys in record that
// the table does not declare are ignored.
func Row(record csvingest.Record, table schema.Table) query.Row {
	row := make(query.Row, len(table.Columns))
	for _, column := range table.CanonicalColumns() {
		raw, present := record[column.Name]
		row[column.Name] = Value(column.Type, raw, present)
	}
	return row
}

func Rows(records []csvingest.Record, table schema.Table) []query.Row {
	rows := make([]query.Row, len(records))
	for i, record := range records {
		rows[i] = Row(record, table)
	}
	return rows
}
