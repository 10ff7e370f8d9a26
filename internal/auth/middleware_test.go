package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:data_loader|query_reader, k2:t2:schema_admin")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.TenantID != "t1" {
		t.Fatalf("TenantID = %q", identity.TenantID)
	}
	if !identity.HasRole(RoleDataLoader) || !identity.HasRole(RoleQueryReader) {
		t.Fatalf("roles = %v", identity.Roles)
	}
	if identity.HasRole(RoleSchemaAdmin) {
		t.Fatal("k1 must not carry schema_admin")
	}
	if _, ok := validator.Validate(context.Background(), "missing"); ok {
		t.Fatal("unknown key must not validate")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{
		"invalid",
		"k1::query_reader",
		"k1:t1:",
		"k1:t1:ingest_writer",
		"k1:t1:query_reader,k1:t2:query_reader",
	} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestAuthorize(t *testing.T) {
	if err := Authorize(context.Background(), RoleSchemaAdmin); err != nil {
		t.Fatalf("Authorize() without identity error = %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{TenantID: "t1", Roles: []string{RoleQueryReader}})
	if err := Authorize(ctx, RoleQueryReader); err != nil {
		t.Fatalf("Authorize(query_reader) error = %v", err)
	}
	if err := Authorize(ctx, RoleDataLoader); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Authorize(data_loader) error = %v, want ErrForbidden", err)
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad key = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:t1:query_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.TenantID != "t1" {
			t.Fatalf("TenantID = %q", identity.TenantID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []struct{ name, value string }{
		{"X-API-Key", "k1"},
		{"Authorization", "Bearer k1"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
		req.Header.Set(header.name, header.value)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s: status = %d", header.name, rr.Code)
		}
	}
}
