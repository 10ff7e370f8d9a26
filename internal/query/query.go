package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/duckmesh/tabula/internal/schema"
)

// Row is one stored or bound record keyed by column name. Imported values are
// string, float64 or nil.
type Row map[string]any

// Binding is an ad-hoc row set exposed to a single query under a table name.
// Columns fixes the column order; when empty it is taken from the first row.
type Binding struct {
	Columns []string
	Rows    []Row
}

type Bindings map[string]Binding

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// EmptyResult is the explicit shape of a query that returned nothing.
func EmptyResult() Result {
	return Result{Columns: []string{}, Rows: [][]any{}}
}

type TableInfo struct {
	Name     string
	RowCount int64
}

// Store is the relational capability the pipeline loads into and queries.
type Store interface {
	// CreateTable replaces any existing table of the same name with an empty one.
	CreateTable(ctx context.Context, name string, columns []schema.Column) error
	// DropTable tolerates an absent table.
	DropTable(ctx context.Context, name string) error
	// BulkInsert appends rows in order and fails with *schema.TableNotFoundError
	// when the table is not loaded.
	BulkInsert(ctx context.Context, name string, rows []Row) error
	// ReplaceTable is the reload: drop, create and insert as one unit that no
	// concurrent Query observes half done.
	ReplaceTable(ctx context.Context, name string, columns []schema.Column, rows []Row) error
	// Query runs sql against the loaded tables, or, when bindings is non-nil,
	// against the bound row sets only.
	Query(ctx context.Context, sql string, bindings Bindings) (Result, error)
	// FirstRow returns the first row in insertion order, or false when the
	// table is empty or not loaded.
	FirstRow(ctx context.Context, name string) (Row, bool, error)
	Tables(ctx context.Context) ([]TableInfo, error)
	Close() error
}

var ErrEmptySQL = errors.New("sql is required")

// QueryExecutionError carries the engine's diagnostic text.
type QueryExecutionError struct {
	Message string
	Err     error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Message)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

func NewExecutionError(err error) *QueryExecutionError {
	var existing *QueryExecutionError
	if errors.As(err, &existing) {
		return existing
	}
	return &QueryExecutionError{Message: err.Error(), Err: err}
}
