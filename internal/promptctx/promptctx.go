// Package promptctx renders the declared schema, plus one sample row per
// loaded table, as SQL text for the natural-language SQL generator.
package promptctx

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/schema"
)

// Sampler yields the first loaded row of a table.
type Sampler interface {
	FirstRow(ctx context.Context, name string) (query.Row, bool, error)
}

// Collect fetches the first row of every declared table that has data, keyed
// by canonical table name.
func Collect(ctx context.Context, sampler Sampler, tables []schema.Table) (map[string]query.Row, error) {
	samples := make(map[string]query.Row, len(tables))
	for _, table := range tables {
		row, ok, err := sampler.FirstRow(ctx, table.Key())
		if err != nil {
			return nil, fmt.Errorf("sample table %q: %w", table.Name, err)
		}
		if ok {
			samples[table.Key()] = row
		}
	}
	return samples, nil
}

// Build emits, in schema order, one CREATE TABLE statement per table followed
// by an INSERT of its sample row when samples has one. Statements are joined
// by a single space.
func Build(tables []schema.Table, samples map[string]query.Row) string {
	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		name := table.Key()
		columns := table.CanonicalColumns()

		defs := make([]string, len(columns))
		names := make([]string, len(columns))
		for i, column := range columns {
			defs[i] = column.Name + " " + string(column.Type)
			names[i] = column.Name
		}
		statement := fmt.Sprintf("CREATE TABLE %s (%s);", name, strings.Join(defs, ", "))

		if sample, ok := samples[name]; ok && sample != nil {
			values := make([]string, len(names))
			for i, column := range names {
				values[i] = Literal(sample[column])
			}
			statement += fmt.Sprintf(" INSERT INTO %s (%s) VALUES (%s);", name, strings.Join(names, ", "), strings.Join(values, ", "))
		}
		statements = append(statements, statement)
	}
	return strings.Join(statements, " ")
}

// Literal renders a value as a SQL literal.
func Literal(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", "''") + "'"
	case bool:
		if typed {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", typed)
	}
	return "'" + strings.ReplaceAll(fmt.Sprint(value), "'", "''") + "'"
}
