package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/duckmesh/tabula/internal/observability"
)

// Executor is the single entry point for running SQL against a Store.
type Executor struct {
	Store  Store
	Logger *slog.Logger
	// MaxRows caps returned rows; zero means no cap.
	MaxRows int
}

func NewExecutor(store Store, logger *slog.Logger, maxRows int) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{Store: store, Logger: logger, MaxRows: maxRows}
}

func (e *Executor) Execute(ctx context.Context, sqlText string, bindings Bindings) (Result, error) {
	start := time.Now()
	sqlText = StripTrailingSemicolons(sqlText)
	if sqlText == "" {
		observability.ObserveQuery(observability.OutcomeError, time.Since(start))
		return Result{}, &QueryExecutionError{Message: ErrEmptySQL.Error(), Err: ErrEmptySQL}
	}

	result, err := e.Store.Query(ctx, sqlText, bindings)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveQuery(observability.OutcomeError, elapsed)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		execErr := NewExecutionError(err)
		e.Logger.WarnContext(ctx, "query_failed",
			observability.TraceAttr(ctx),
			slog.String("error", execErr.Message),
		)
		return Result{}, execErr
	}

	// A result without rows carries no columns either.
	if len(result.Rows) == 0 {
		result = EmptyResult()
	}
	if e.MaxRows > 0 && len(result.Rows) > e.MaxRows {
		result.Rows = result.Rows[:e.MaxRows]
		result.Truncated = true
	}
	result.Duration = elapsed

	observability.ObserveQuery(observability.OutcomeSuccess, elapsed)
	e.Logger.DebugContext(ctx, "query_executed",
		observability.TraceAttr(ctx),
		slog.Int("columns", len(result.Columns)),
		slog.Int("rows", len(result.Rows)),
		slog.Bool("bound", bindings != nil),
		slog.String("duration", elapsed.String()),
	)
	return result, nil
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
