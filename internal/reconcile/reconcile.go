// Package reconcile decides whether a parsed CSV header fits a declared table.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/duckmesh/tabula/internal/schema"
)

// SchemaMismatchError lists the columns the table declares but the CSV lacks
// (Missing, in declaration order) and the CSV columns the table does not
// declare (Extra, in header order). Both slices are non-nil.
type SchemaMismatchError struct {
	Table   string
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra columns: "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("csv does not match table %q: %s", e.Table, strings.Join(parts, "; "))
}

// Diff compares canonical header and column sets. Headers that repeat after
// canonicalization count once, and each extra name is reported once.
func Diff(headers []string, table schema.Table) (missing, extra []string) {
	missing = []string{}
	extra = []string{}

	declared := make(map[string]struct{}, len(table.Columns))
	for _, name := range table.ColumnNames() {
		declared[name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		name := schema.Canonicalize(header)
		if _, repeated := seen[name]; repeated {
			continue
		}
		seen[name] = struct{}{}
		if _, known := declared[name]; !known {
			extra = append(extra, name)
		}
	}

	for _, name := range table.ColumnNames() {
		if _, ok := seen[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, extra
}

// Check succeeds only when the header set equals the declared column set.
// Column order is irrelevant.
func Check(headers []string, table schema.Table) error {
	missing, extra := Diff(headers, table)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return &SchemaMismatchError{Table: table.Name, Missing: missing, Extra: extra}
}
