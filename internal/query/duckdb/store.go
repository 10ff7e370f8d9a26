// Package duckdb implements query.Store on an in-memory DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/schema"
)

// Store owns one in-memory database. Reloads and any statement that may write
// take the write lock; plain reads share the read lock, so a reader never sees
// a table between its drop and its refill.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ query.Store = (*Store)(nil)

func Open(ctx context.Context) (*Store, error) {
	db, err := openMemory(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) CreateTable(ctx context.Context, name string, columns []schema.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return recreate(ctx, tx, name, columns)
	})
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return engineErr(fmt.Errorf("drop table %q: %w", name, err))
	}
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, name string, rows []query.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns, err := tableColumns(ctx, s.db, name)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return &schema.TableNotFoundError{Name: name}
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertRows(ctx, tx, name, columns, rows)
	})
}

func (s *Store) ReplaceTable(ctx context.Context, name string, columns []schema.Column, rows []query.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := recreate(ctx, tx, name, columns); err != nil {
			return err
		}
		names := make([]string, len(columns))
		for i, column := range columns {
			names[i] = column.Name
		}
		return insertRows(ctx, tx, name, names, rows)
	})
}

func (s *Store) Query(ctx context.Context, sqlText string, bindings query.Bindings) (query.Result, error) {
	if bindings != nil {
		return queryBound(ctx, sqlText, bindings)
	}
	if isReadOnly(sqlText) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	} else {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return runQuery(ctx, s.db, sqlText)
}

func (s *Store) FirstRow(ctx context.Context, name string) (query.Row, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	columns, err := tableColumns(ctx, s.db, name)
	if err != nil {
		return nil, false, err
	}
	if len(columns) == 0 {
		return nil, false, nil
	}
	result, err := runQuery(ctx, s.db, fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid LIMIT 1`, quoteIdent(name)))
	if err != nil {
		return nil, false, err
	}
	if len(result.Rows) == 0 {
		return nil, false, nil
	}
	row := make(query.Row, len(result.Columns))
	for i, column := range result.Columns {
		row[column] = result.Rows[0][i]
	}
	return row, true, nil
}

func (s *Store) Tables(ctx context.Context) ([]query.TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return nil, engineErr(fmt.Errorf("list tables: %w", err))
	}
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	_ = rows.Close()

	tables := make([]query.TableInfo, 0, len(names))
	for _, name := range names {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(name)).Scan(&count); err != nil {
			return nil, engineErr(fmt.Errorf("count rows in %q: %w", name, err))
		}
		tables = append(tables, query.TableInfo{Name: name, RowCount: count})
	}
	return tables, nil
}

// queryBound runs sqlText in a throwaway database that holds only the bound
// row sets.
func queryBound(ctx context.Context, sqlText string, bindings query.Bindings) (query.Result, error) {
	db, err := openMemory(ctx)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = db.Close() }()

	for name, binding := range bindings {
		columns := bindingColumns(binding)
		if len(columns) == 0 {
			return query.Result{}, &query.QueryExecutionError{Message: fmt.Sprintf("binding %q has no columns", name)}
		}
		defs := make([]string, len(columns))
		for i, column := range columns {
			defs[i] = quoteIdent(column) + " " + inferBoundType(binding.Rows, column)
		}
		create := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(name), strings.Join(defs, ", "))
		if _, err := db.ExecContext(ctx, create); err != nil {
			return query.Result{}, engineErr(fmt.Errorf("bind %q: %w", name, err))
		}
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			return insertRows(ctx, tx, name, columns, boundRows(binding.Rows, columns))
		})
		if err != nil {
			return query.Result{}, err
		}
	}
	return runQuery(ctx, db, sqlText)
}

func runQuery(ctx context.Context, db *sql.DB, sqlText string) (query.Result, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, engineErr(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, engineErr(fmt.Errorf("query columns: %w", err))
	}
	if columns == nil {
		columns = []string{}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, engineErr(fmt.Errorf("scan row: %w", err))
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, engineErr(err)
	}
	return query.Result{Columns: columns, Rows: resultRows}, nil
}

func recreate(ctx context.Context, tx *sql.Tx, name string, columns []schema.Column) error {
	if len(columns) == 0 {
		return &query.QueryExecutionError{Message: fmt.Sprintf("table %q needs at least one column", name)}
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return engineErr(fmt.Errorf("drop table %q: %w", name, err))
	}
	defs := make([]string, len(columns))
	for i, column := range columns {
		defs[i] = quoteIdent(column.Name) + " " + columnType(column.Type)
	}
	create := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return engineErr(fmt.Errorf("create table %q: %w", name, err))
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, name string, columns []string, rows []query.Row) error {
	if len(rows) == 0 {
		return nil
	}
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quoteIdent(column)
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return engineErr(fmt.Errorf("prepare insert into %q: %w", name, err))
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(columns))
	for index, row := range rows {
		for i, column := range columns {
			args[i] = row[column]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return engineErr(fmt.Errorf("insert row %d into %q: %w", index, name, err))
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = 'main' AND table_name = ?
ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, engineErr(fmt.Errorf("describe table %q: %w", name, err))
	}
	defer func() { _ = rows.Close() }()

	columns := make([]string, 0)
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return engineErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// engineErr marks an engine failure as a query execution error. Context
// errors are left as they are.
func engineErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return query.NewExecutionError(err)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case *big.Int:
			if typed.IsInt64() {
				normalized[i] = typed.Int64()
			} else {
				normalized[i] = typed.String()
			}
		case duckdb.Decimal:
			normalized[i] = typed.Float64()
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
