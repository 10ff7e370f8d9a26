package duckdb

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/schema"
)

// columnType maps a declared type onto its storage type. Numeric columns are
// DOUBLE because coercion yields float64; the rest keep the raw text.
func columnType(t schema.ColumnType) string {
	if t.IsNumeric() {
		return "DOUBLE"
	}
	return "VARCHAR"
}

var readOnlyKeywords = map[string]struct{}{
	"SELECT":    {},
	"WITH":      {},
	"FROM":      {},
	"VALUES":    {},
	"SHOW":      {},
	"DESCRIBE":  {},
	"SUMMARIZE": {},
	"EXPLAIN":   {},
	"TABLE":     {},
}

// isReadOnly reports whether sqlText is a single statement that only reads.
// Anything it cannot classify counts as a write.
func isReadOnly(sqlText string) bool {
	trimmed := strings.TrimLeft(query.StripTrailingSemicolons(sqlText), "( \t\r\n")
	if strings.Contains(trimmed, ";") {
		return false
	}
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(trimmed)
	}
	_, ok := readOnlyKeywords[strings.ToUpper(trimmed[:end])]
	return ok
}

func bindingColumns(binding query.Binding) []string {
	if len(binding.Columns) > 0 {
		return binding.Columns
	}
	if len(binding.Rows) == 0 {
		return nil
	}
	// Map order is random; sort for a stable table layout.
	columns := make([]string, 0, len(binding.Rows[0]))
	for column := range binding.Rows[0] {
		columns = append(columns, column)
	}
	slices.Sort(columns)
	return columns
}

// inferBoundType picks DOUBLE or BOOLEAN when every non-nil value agrees,
// otherwise VARCHAR.
func inferBoundType(rows []query.Row, column string) string {
	numeric, boolean, seen := true, true, false
	for _, row := range rows {
		value := row[column]
		if value == nil {
			continue
		}
		seen = true
		switch value.(type) {
		case float64, float32, int, int32, int64:
			boolean = false
		case bool:
			numeric = false
		default:
			return "VARCHAR"
		}
	}
	switch {
	case !seen:
		return "VARCHAR"
	case numeric:
		return "DOUBLE"
	case boolean:
		return "BOOLEAN"
	}
	return "VARCHAR"
}

// boundRows stringifies values in mixed-type columns so they fit VARCHAR.
func boundRows(rows []query.Row, columns []string) []query.Row {
	types := make(map[string]string, len(columns))
	for _, column := range columns {
		types[column] = inferBoundType(rows, column)
	}
	out := make([]query.Row, len(rows))
	for i, row := range rows {
		converted := make(query.Row, len(columns))
		for _, column := range columns {
			value := row[column]
			if value != nil && types[column] == "VARCHAR" {
				if _, ok := value.(string); !ok {
					value = fmt.Sprint(value)
				}
			}
			converted[column] = value
		}
		out[i] = converted
	}
	return out
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
