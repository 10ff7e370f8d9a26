// Package session holds one tenant's working state: the declared schema, the
// loaded relational store, and the collaborators that operate on them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/tabula/internal/coerce"
	"github.com/duckmesh/tabula/internal/csvingest"
	"github.com/duckmesh/tabula/internal/export"
	"github.com/duckmesh/tabula/internal/nl2sql"
	"github.com/duckmesh/tabula/internal/observability"
	"github.com/duckmesh/tabula/internal/promptctx"
	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/reconcile"
	"github.com/duckmesh/tabula/internal/schema"
)

const DefaultPreviewRows = 30

var (
	ErrGeneratorDisabled = errors.New("sql generation is not configured")
	ErrArchiveDisabled   = errors.New("export archiving is not configured")
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Schema        *schema.Repository
	Generator     nl2sql.Generator
	GeneratorName string
	Archiver      *export.Archiver
	Logger        *slog.Logger
	PreviewRows   int
	MaxResultRows int
}

type Session struct {
	tenantID string
	deps     Deps
	logger   *slog.Logger
	store    query.Store
	executor *query.Executor

	mu     sync.RWMutex
	tables *schema.MemoryStore
	loaded map[string]struct{}
}

type ImportResult struct {
	Table    string             `json:"table"`
	Headers  []string           `json:"headers"`
	RowCount int                `json:"row_count"`
	Preview  []csvingest.Record `json:"preview"`
}

type ExportOptions struct {
	Filename string
	Archive  bool
	Format   export.Format
}

type ExportResult struct {
	Filename string
	Result   query.Result
	Archive  *export.ArchiveResult
}

// New loads the tenant's schema and takes ownership of store.
func New(ctx context.Context, tenantID string, store query.Store, deps Deps) (*Session, error) {
	if deps.Schema == nil {
		return nil, fmt.Errorf("schema repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("relational store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.PreviewRows <= 0 {
		deps.PreviewRows = DefaultPreviewRows
	}
	tables, err := deps.Schema.Load(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load schema for tenant %q: %w", tenantID, err)
	}
	logger := deps.Logger.With(slog.String("tenant_id", tenantID))
	return &Session{
		tenantID: tenantID,
		deps:     deps,
		logger:   logger,
		store:    store,
		executor: query.NewExecutor(store, logger, deps.MaxResultRows),
		tables:   tables,
		loaded:   map[string]struct{}{},
	}, nil
}

func (s *Session) TenantID() string {
	return s.tenantID
}

func (s *Session) schemaStore() *schema.MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables
}

func (s *Session) SchemaTables() []schema.Table {
	return s.schemaStore().List()
}

// ReloadSchema re-reads the schema blob, picking up edits made elsewhere.
func (s *Session) ReloadSchema(ctx context.Context) error {
	tables, err := s.deps.Schema.Load(ctx, s.tenantID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()
	return nil
}

// SetSchema validates and persists a new table set. Loaded data is kept.
// Tables without an ID get one; the caller's slice is left untouched.
func (s *Session) SetSchema(ctx context.Context, declared []schema.Table) error {
	if err := schema.Validate(declared); err != nil {
		return err
	}
	tables := make([]schema.Table, len(declared))
	for i, table := range declared {
		table.Columns = slices.Clone(table.Columns)
		if strings.TrimSpace(table.ID) == "" {
			table.ID = schema.NewTable(table.Name).ID
		}
		tables[i] = table
	}
	if err := s.deps.Schema.Save(ctx, s.tenantID, tables); err != nil {
		return err
	}
	store, err := schema.NewMemoryStore(tables)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tables = store
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "schema_saved",
		observability.TraceAttr(ctx),
		slog.Int("tables", len(tables)),
	)
	return nil
}

// ImportCSV replaces the named table with the CSV's rows. The CSV is parsed
// completely and its header must match the declared columns exactly, as a
// set, before the store is touched.
func (s *Session) ImportCSV(ctx context.Context, tableName string, r io.Reader) (ImportResult, error) {
	start := time.Now()
	result, outcome, err := s.importCSV(ctx, tableName, r)
	observability.ObserveImport(outcome, result.RowCount, time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "csv_import_failed",
			observability.TraceAttr(ctx),
			slog.String("table", tableName),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return ImportResult{}, err
	}
	s.logger.InfoContext(ctx, "csv_imported",
		observability.TraceAttr(ctx),
		slog.String("table", result.Table),
		slog.Int("rows", result.RowCount),
		slog.String("duration", time.Since(start).String()),
	)
	return result, nil
}

func (s *Session) importCSV(ctx context.Context, tableName string, r io.Reader) (ImportResult, string, error) {
	table, err := s.schemaStore().FindByName(tableName)
	if err != nil {
		return ImportResult{}, "table_not_found", err
	}
	parsed, err := csvingest.Parse(ctx, r, schema.Canonicalize)
	if err != nil {
		return ImportResult{}, "parse_error", err
	}
	if err := reconcile.Check(parsed.Headers, table); err != nil {
		return ImportResult{}, "schema_mismatch", err
	}

	rows := coerce.Rows(parsed.Records, table)
	if err := s.store.ReplaceTable(ctx, table.Key(), table.CanonicalColumns(), rows); err != nil {
		return ImportResult{}, observability.OutcomeError, fmt.Errorf("reload table %q: %w", table.Key(), err)
	}
	s.markLoaded(table.Key())

	preview := parsed.Records
	if len(preview) > s.deps.PreviewRows {
		preview = preview[:s.deps.PreviewRows]
	}
	return ImportResult{
		Table:    table.Key(),
		Headers:  parsed.Headers,
		RowCount: len(rows),
		Preview:  preview,
	}, observability.OutcomeSuccess, nil
}

func (s *Session) markLoaded(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loaded[name]; ok {
		return
	}
	s.loaded[name] = struct{}{}
	observability.AddLoadedTables(1)
}

// Execute runs SQL against the loaded tables. DDL and DML statements change
// them.
func (s *Session) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	return s.executor.Execute(ctx, sqlText, nil)
}

// ExecuteOver runs SQL against a freshly parsed CSV bound as tableName,
// without touching the loaded tables. When tableName is declared the CSV is
// reconciled and coerced like an import; otherwise every cell stays text.
func (s *Session) ExecuteOver(ctx context.Context, sqlText, tableName string, r io.Reader) (query.Result, error) {
	parsed, err := csvingest.Parse(ctx, r, schema.Canonicalize)
	if err != nil {
		return query.Result{}, err
	}

	name := schema.Canonicalize(tableName)
	binding := query.Binding{Columns: uniqueHeaders(parsed.Headers)}
	if table, err := s.schemaStore().FindByName(tableName); err == nil {
		if err := reconcile.Check(parsed.Headers, table); err != nil {
			return query.Result{}, err
		}
		binding.Columns = table.ColumnNames()
		binding.Rows = coerce.Rows(parsed.Records, table)
	} else {
		binding.Rows = make([]query.Row, len(parsed.Records))
		for i, record := range parsed.Records {
			row := make(query.Row, len(binding.Columns))
			for _, header := range binding.Columns {
				if raw, ok := record[header]; ok {
					row[header] = raw
				} else {
					row[header] = nil
				}
			}
			binding.Rows[i] = row
		}
	}
	return s.executor.Execute(ctx, sqlText, query.Bindings{name: binding})
}

func uniqueHeaders(headers []string) []string {
	seen := make(map[string]struct{}, len(headers))
	out := make([]string, 0, len(headers))
	for _, header := range headers {
		if _, ok := seen[header]; ok {
			continue
		}
		seen[header] = struct{}{}
		out = append(out, header)
	}
	return out
}

func (s *Session) LoadedTables(ctx context.Context) ([]query.TableInfo, error) {
	return s.store.Tables(ctx)
}

func (s *Session) PromptContext(ctx context.Context) (string, error) {
	tables := s.SchemaTables()
	samples, err := promptctx.Collect(ctx, s.store, tables)
	if err != nil {
		return "", err
	}
	return promptctx.Build(tables, samples), nil
}

// GenerateSQL asks the generator for SQL. Nothing is executed and the store
// is not touched.
func (s *Session) GenerateSQL(ctx context.Context, naturalLanguage string) (nl2sql.Result, error) {
	if s.deps.Generator == nil {
		return nl2sql.Result{}, ErrGeneratorDisabled
	}
	promptContext, err := s.PromptContext(ctx)
	if err != nil {
		return nl2sql.Result{}, err
	}

	start := time.Now()
	result, err := s.deps.Generator.Generate(ctx, nl2sql.Request{
		TenantID:        s.tenantID,
		NaturalLanguage: naturalLanguage,
		Context:         promptContext,
	})
	if err != nil {
		observability.ObserveGeneration(s.deps.GeneratorName, observability.OutcomeError, time.Since(start))
		var netErr *nl2sql.NetworkError
		if !errors.As(err, &netErr) {
			err = &nl2sql.NetworkError{Op: "generate", Err: err}
		}
		s.logger.WarnContext(ctx, "sql_generation_failed",
			observability.TraceAttr(ctx),
			slog.String("error", err.Error()),
		)
		return nl2sql.Result{}, err
	}
	observability.ObserveGeneration(s.deps.GeneratorName, observability.OutcomeSuccess, time.Since(start))
	return result, nil
}

// Export runs sqlText and, when asked, archives the result to object storage.
func (s *Session) Export(ctx context.Context, sqlText string, opts ExportOptions) (ExportResult, error) {
	if opts.Archive && s.deps.Archiver == nil {
		return ExportResult{}, ErrArchiveDisabled
	}
	result, err := s.Execute(ctx, sqlText)
	if err != nil {
		return ExportResult{}, err
	}

	filename := strings.TrimSpace(opts.Filename)
	if filename == "" {
		filename = export.Filename("query_result")
	} else if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		filename = export.Filename(filename)
	}

	out := ExportResult{Filename: filename, Result: result}
	format := opts.Format
	if format == "" {
		format = export.FormatCSV
	}
	if opts.Archive {
		archived, err := s.deps.Archiver.Archive(ctx, s.tenantID, filename, format, result.Columns, result.Rows)
		if err != nil {
			return ExportResult{}, err
		}
		out.Archive = &archived
		s.logger.InfoContext(ctx, "export_archived",
			observability.TraceAttr(ctx),
			slog.String("key", archived.Key),
			slog.String("format", string(archived.Format)),
		)
	}
	observability.ObserveExport(string(format), len(result.Rows), opts.Archive)
	return out, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	loaded := len(s.loaded)
	s.loaded = map[string]struct{}{}
	s.mu.Unlock()
	observability.AddLoadedTables(-loaded)
	return s.store.Close()
}
