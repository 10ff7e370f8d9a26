package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/duckmesh/tabula/internal/auth"
	"github.com/duckmesh/tabula/internal/csvingest"
	"github.com/duckmesh/tabula/internal/nl2sql"
	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/reconcile"
	"github.com/duckmesh/tabula/internal/schema"
	"github.com/duckmesh/tabula/internal/session"
)

// tenantFromRequest prefers the authenticated identity, then X-Tenant-ID. An
// empty result selects the default tenant.
func tenantFromRequest(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if tenantID := strings.TrimSpace(identity.TenantID); tenantID != "" {
			return tenantID
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
}

// sessionFor authorizes role and resolves the tenant's session, writing the
// error response itself when either fails.
func (h *handlers) sessionFor(w http.ResponseWriter, r *http.Request, role string) (*session.Session, bool) {
	if h.deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return nil, false
	}
	if err := auth.Authorize(r.Context(), role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	current, err := h.deps.Sessions.Get(r.Context(), tenantFromRequest(r))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_UNAVAILABLE", "failed to open tenant session", true, map[string]any{"details": err.Error()})
		return nil, false
	}
	return current, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, what string, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid "+what+" request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

// writeDomainError maps pipeline failures onto the error envelope. Each error
// is terminal; none of them leaves partial state behind.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		tooLarge    *http.MaxBytesError
		parseErr    *csvingest.ParseError
		mismatchErr *reconcile.SchemaMismatchError
		execErr     *query.QueryExecutionError
		netErr      *nl2sql.NetworkError
	)
	switch {
	case errors.As(err, &tooLarge):
		writeError(ctx, w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the upload limit", false, map[string]any{"limit_bytes": tooLarge.Limit})
	case errors.As(err, &parseErr):
		writeError(ctx, w, http.StatusBadRequest, "CSV_PARSE_FAILED", parseErr.Error(), false, map[string]any{"line": parseErr.Line})
	case errors.As(err, &mismatchErr):
		writeError(ctx, w, http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", mismatchErr.Error(), false, map[string]any{
			"table":   mismatchErr.Table,
			"missing": mismatchErr.Missing,
			"extra":   mismatchErr.Extra,
		})
	case errors.Is(err, schema.ErrTableNotFound):
		writeError(ctx, w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
	case errors.As(err, &execErr):
		writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": execErr.Message})
	case errors.As(err, &netErr):
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", netErr.Error(), true, map[string]any{"timeout": netErr.Timeout()})
	case errors.Is(err, session.ErrGeneratorDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "GENERATION_NOT_CONFIGURED", err.Error(), false, nil)
	case errors.Is(err, session.ErrArchiveDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", err.Error(), false, nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusGatewayTimeout, "REQUEST_TIMEOUT", err.Error(), true, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "request failed", true, map[string]any{"details": err.Error()})
	}
}
