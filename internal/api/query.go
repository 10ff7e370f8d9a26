package api

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/duckmesh/tabula/internal/auth"
	"github.com/duckmesh/tabula/internal/export"
	"github.com/duckmesh/tabula/internal/observability"
	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/session"
)

type queryRequest struct {
	SQL string `json:"sql"`
	// Table and CSV run the query over an ad-hoc CSV bound as Table instead
	// of over the loaded tables.
	Table string `json:"table"`
	CSV   string `json:"csv"`
}

type queryResponse struct {
	Columns   []string       `json:"columns"`
	Rows      [][]any        `json:"rows"`
	Truncated bool           `json:"truncated"`
	Stats     map[string]any `json:"stats"`
}

type exportRequest struct {
	SQL      string `json:"sql"`
	Filename string `json:"filename"`
	Archive  bool   `json:"archive"`
	Format   string `json:"format"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	var request queryRequest
	if !decodeJSON(w, r, "query", &request) {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	var (
		result query.Result
		err    error
	)
	if request.CSV != "" {
		if strings.TrimSpace(request.Table) == "" {
			writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required when csv is given", false, nil)
			return
		}
		result, err = current.ExecuteOver(r.Context(), request.SQL, request.Table, strings.NewReader(request.CSV))
	} else {
		result, err = current.Execute(r.Context(), request.SQL)
	}
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   len(result.Rows),
		},
	})
}

// exportQuery answers with the result as a CSV attachment. Archive details,
// when requested, travel in response headers.
func (h *handlers) exportQuery(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	var request exportRequest
	if !decodeJSON(w, r, "export", &request) {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	rawFormat := request.Format
	if strings.TrimSpace(rawFormat) == "" {
		rawFormat = h.defaultFormat
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}

	exported, err := current.Export(r.Context(), request.SQL, session.ExportOptions{
		Filename: request.Filename,
		Archive:  request.Archive,
		Format:   format,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeCSV)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exported.Filename}))
	w.Header().Set("X-Tabula-Row-Count", strconv.Itoa(len(exported.Result.Rows)))
	if exported.Archive != nil {
		w.Header().Set("X-Tabula-Archive-Id", exported.Archive.ID)
		w.Header().Set("X-Tabula-Archive-Key", exported.Archive.Key)
		w.Header().Set("X-Tabula-Archive-Format", string(exported.Archive.Format))
	}
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, exported.Result.Columns, exported.Result.Rows); err != nil && h.deps.Logger != nil {
		h.deps.Logger.WarnContext(r.Context(), "export_write_failed",
			observability.TraceAttr(r.Context()),
			slog.String("error", err.Error()),
		)
	}
}

func (h *handlers) generateQuery(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	var request generateRequest
	if !decodeJSON(w, r, "generate", &request) {
		return
	}
	if strings.TrimSpace(request.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}
	generated, err := current.GenerateSQL(r.Context(), request.Prompt)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated)
}

func (h *handlers) promptContext(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	text, err := current.PromptContext(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": text})
}
