package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("tabula-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Schema.Backend != SchemaBackendMemory || cfg.Schema.Key != "tables" {
		t.Fatalf("Schema = %+v", cfg.Schema)
	}
	if cfg.Engine.PreviewRows != 30 {
		t.Fatalf("Engine.PreviewRows = %d", cfg.Engine.PreviewRows)
	}
	if !cfg.Generator.Enabled || cfg.Generator.Provider != GeneratorProviderHTTP {
		t.Fatalf("Generator = %+v", cfg.Generator)
	}
	if cfg.Generator.BaseURL != "http://localhost:5000" {
		t.Fatalf("Generator.BaseURL = %q", cfg.Generator.BaseURL)
	}
	if cfg.Generator.Timeout != 30*time.Second {
		t.Fatalf("Generator.Timeout = %s", cfg.Generator.Timeout)
	}
	if cfg.Export.ArchiveEnabled {
		t.Fatal("Export.ArchiveEnabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("tabula-api", mapLookup(map[string]string{"TABULA_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Schema.Backend != SchemaBackendPostgres {
		t.Fatalf("Schema.Backend = %q", cfg.Schema.Backend)
	}
	if !cfg.ObjectStore.UseSSL || cfg.ObjectStore.AutoCreateBucket {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadTestProfileDisablesGenerator(t *testing.T) {
	cfg, err := Load("tabula-api", mapLookup(map[string]string{"TABULA_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Generator.Enabled {
		t.Fatal("Generator.Enabled should default to false in test")
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"TABULA_SERVICE_NAME":           "tabula-custom",
		"TABULA_HTTP_ADDR":              ":9999",
		"TABULA_HTTP_READ_TIMEOUT":      "2s",
		"TABULA_HTTP_MAX_UPLOAD_BYTES":  "1024",
		"TABULA_SCHEMA_BACKEND":         "s3",
		"TABULA_SCHEMA_KEY":             "schema",
		"TABULA_CATALOG_DSN":            "postgres://example",
		"TABULA_CATALOG_MAX_OPEN_CONNS": "42",
		"TABULA_OBJECTSTORE_ENDPOINT":   "s3.example.com",
		"TABULA_OBJECTSTORE_BUCKET":     "tabula-prod",
		"TABULA_OBJECTSTORE_USE_SSL":    "true",
		"TABULA_ENGINE_PREVIEW_ROWS":    "5",
		"TABULA_ENGINE_MAX_RESULT_ROWS": "0",
		"TABULA_GENERATOR_PROVIDER":     "openai",
		"TABULA_GENERATOR_BASE_URL":     "https://api.example.com",
		"TABULA_GENERATOR_API_KEY":      "secret-key",
		"TABULA_GENERATOR_MODEL":        "gpt-x",
		"TABULA_GENERATOR_TEMPERATURE":  "0.3",
		"TABULA_GENERATOR_TIMEOUT":      "21s",
		"TABULA_EXPORT_ARCHIVE_ENABLED": "true",
		"TABULA_EXPORT_DEFAULT_FORMAT":  "parquet",
		"TABULA_LOG_LEVEL":              "error",
		"TABULA_AUTH_REQUIRED":          "true",
		"TABULA_AUTH_STATIC_KEYS":       "k1:t1:query_reader",
	})
	cfg, err := Load("tabula-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "tabula-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second || cfg.HTTP.MaxUploadBytes != 1024 {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Schema.Backend != SchemaBackendS3 || cfg.Schema.Key != "schema" {
		t.Fatalf("Schema = %+v", cfg.Schema)
	}
	if cfg.Catalog.DSN != "postgres://example" || cfg.Catalog.MaxOpenConns != 42 {
		t.Fatalf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "tabula-prod" || !cfg.ObjectStore.UseSSL {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.Engine.PreviewRows != 5 || cfg.Engine.MaxResultRows != 0 {
		t.Fatalf("Engine = %+v", cfg.Engine)
	}
	if cfg.Generator.Provider != GeneratorProviderOpenAI || cfg.Generator.APIKey != "secret-key" {
		t.Fatalf("Generator = %+v", cfg.Generator)
	}
	if cfg.Generator.Temperature != 0.3 || cfg.Generator.Timeout != 21*time.Second || cfg.Generator.Model != "gpt-x" {
		t.Fatalf("Generator = %+v", cfg.Generator)
	}
	if !cfg.Export.ArchiveEnabled || cfg.Export.DefaultFormat != "parquet" {
		t.Fatalf("Export = %+v", cfg.Export)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:t1:query_reader" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"TABULA_PROFILE": "oops"},
		{"TABULA_HTTP_READ_TIMEOUT": "NaN"},
		{"TABULA_HTTP_MAX_UPLOAD_BYTES": "lots"},
		{"TABULA_CATALOG_MAX_OPEN_CONNS": "oops"},
		{"TABULA_SCHEMA_BACKEND": "sqlite"},
		{"TABULA_SCHEMA_KEY": "  "},
		{"TABULA_ENGINE_PREVIEW_ROWS": "0"},
		{"TABULA_ENGINE_MAX_RESULT_ROWS": "-1"},
		{"TABULA_GENERATOR_PROVIDER": "carrier-pigeon"},
		{"TABULA_GENERATOR_PROVIDER": "openai"},
		{"TABULA_GENERATOR_TEMPERATURE": "bad"},
		{"TABULA_EXPORT_DEFAULT_FORMAT": "xlsx"},
		{"TABULA_AUTH_REQUIRED": "not-bool"},
		{"TABULA_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("tabula-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadReportsVariableName(t *testing.T) {
	_, err := Load("tabula-api", mapLookup(map[string]string{"TABULA_GENERATOR_TIMEOUT": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "TABULA_GENERATOR_TIMEOUT") {
		t.Fatalf("error = %v", err)
	}
}

func TestDisabledGeneratorSkipsProviderValidation(t *testing.T) {
	_, err := Load("tabula-api", mapLookup(map[string]string{
		"TABULA_GENERATOR_ENABLED":  "false",
		"TABULA_GENERATOR_PROVIDER": "openai",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
