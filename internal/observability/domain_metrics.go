package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	csvImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_csv_imports_total",
			Help: "Total number of CSV imports by outcome (success, parse_error, schema_mismatch, table_not_found, error).",
		},
		[]string{"outcome"},
	)
	csvImportedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabula_csv_imported_rows_total",
			Help: "Total number of rows loaded by successful CSV imports.",
		},
	)
	csvImportLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabula_csv_import_latency_ms",
			Help:    "CSV import latency from parse to reload in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_query_executions_total",
			Help: "Total number of SQL executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabula_query_latency_ms",
			Help:    "SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"outcome"},
	)
	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_sql_generation_requests_total",
			Help: "Total number of natural-language SQL generation calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	generationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabula_sql_generation_latency_ms",
			Help:    "SQL generation round trip latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_exports_total",
			Help: "Total number of result exports by format and whether they were archived.",
		},
		[]string{"format", "archived"},
	)
	exportedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabula_exported_rows_total",
			Help: "Total number of rows written by exports.",
		},
	)
	loadedTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabula_loaded_tables",
			Help: "Number of tables currently loaded across sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		csvImportsTotal,
		csvImportedRowsTotal,
		csvImportLatencyMs,
		queryExecutionsTotal,
		queryLatencyMs,
		generationRequestsTotal,
		generationLatencyMs,
		exportsTotal,
		exportedRowsTotal,
		loadedTables,
	)
}

func ObserveImport(outcome string, rows int, elapsed time.Duration) {
	csvImportsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess && rows > 0 {
		csvImportedRowsTotal.Add(float64(rows))
	}
	csvImportLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQuery(outcome string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryLatencyMs.WithLabelValues(outcome).Observe(float64(elapsed.Milliseconds()))
}

func ObserveGeneration(provider, outcome string, elapsed time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	generationRequestsTotal.WithLabelValues(provider, outcome).Inc()
	generationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExport(format string, rows int, archived bool) {
	archivedLabel := "false"
	if archived {
		archivedLabel = "true"
	}
	exportsTotal.WithLabelValues(format, archivedLabel).Inc()
	if rows > 0 {
		exportedRowsTotal.Add(float64(rows))
	}
}

func AddLoadedTables(delta int) {
	loadedTables.Add(float64(delta))
}
