package api

import (
	"net/http"

	"github.com/duckmesh/tabula/internal/auth"
	"github.com/duckmesh/tabula/internal/schema"
)

type handlers struct {
	deps           Dependencies
	maxUploadBytes int64
	defaultFormat  string
}

type schemaDocument struct {
	TenantID string         `json:"tenant_id,omitempty"`
	Tables   []schema.Table `json:"tables"`
}

func (h *handlers) getSchema(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleQueryReader)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schemaDocument{TenantID: current.TenantID(), Tables: current.SchemaTables()})
}

// putSchema replaces the declared tables. Loaded data is left alone; a table
// whose declaration changed is reconciled again on its next import.
func (h *handlers) putSchema(w http.ResponseWriter, r *http.Request) {
	current, ok := h.sessionFor(w, r, auth.RoleSchemaAdmin)
	if !ok {
		return
	}

	var request schemaDocument
	if !decodeJSON(w, r, "schema", &request) {
		return
	}
	if request.Tables == nil {
		request.Tables = []schema.Table{}
	}
	if err := schema.Validate(request.Tables); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SCHEMA", err.Error(), false, nil)
		return
	}
	if err := current.SetSchema(r.Context(), request.Tables); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_STORE_ERROR", "failed to save schema", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemaDocument{TenantID: current.TenantID(), Tables: current.SchemaTables()})
}
