package api

import (
	"net/http"
	"strings"

	"github.com/duckmesh/tabula/internal/auth"
)

type loadedTable struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

func (h *handlers) listTables(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	infos, err := current.LoadedTables(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	tables := make([]loadedTable, 0, len(infos))
	for _, info := range infos {
		tables = append(tables, loadedTable{Name: info.Name, RowCount: info.RowCount})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": current.TenantID(),
		"tables":    tables,
	})
}

// importTable reloads one declared table from the CSV request body.
func (h *handlers) importTable(w http.ResponseWriter, r *http.Request) {
	tableName := strings.TrimSpace(r.PathValue("table"))
	if tableName == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table path parameter is required", false, nil)
		return
	}
	current, ok := h.sessionFor(w, r, auth.RoleDataLoader)
	if !ok {
		return
	}

	body := r.Body
	if h.maxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	result, err := current.ImportCSV(r.Context(), tableName, body)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
