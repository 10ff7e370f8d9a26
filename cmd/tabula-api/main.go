package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duckmesh/tabula/internal/api"
	"github.com/duckmesh/tabula/internal/auth"
	"github.com/duckmesh/tabula/internal/config"
	"github.com/duckmesh/tabula/internal/export"
	"github.com/duckmesh/tabula/internal/nl2sql"
	"github.com/duckmesh/tabula/internal/observability"
	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/query/duckdb"
	"github.com/duckmesh/tabula/internal/schema"
	schemapostgres "github.com/duckmesh/tabula/internal/schema/postgres"
	"github.com/duckmesh/tabula/internal/session"
	"github.com/duckmesh/tabula/internal/storage"
	s3store "github.com/duckmesh/tabula/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tabula-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []api.ReadinessCheck

	var objects storage.ObjectStore
	if cfg.Schema.Backend == config.SchemaBackendS3 || cfg.Export.ArchiveEnabled {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return fmt.Errorf("initialize object store: %w", err)
		}
		objects = store
		checks = append(checks, api.CheckObjectStoreConfig(cfg))
	}

	var blobs schema.BlobStore
	switch cfg.Schema.Backend {
	case config.SchemaBackendPostgres:
		db, err := schemapostgres.Open(ctx, schemapostgres.DBConfig{
			DSN:             cfg.Catalog.DSN,
			ApplicationName: cfg.Service.Name,
			MaxOpenConns:    cfg.Catalog.MaxOpenConns,
			MaxIdleConns:    cfg.Catalog.MaxIdleConns,
			ConnMaxIdleTime: cfg.Catalog.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Catalog.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open schema db: %w", err)
		}
		defer func() { _ = db.Close() }()
		store := schemapostgres.NewBlobStore(db)
		blobs = store
		checks = append(checks, api.CheckCatalogDSN(cfg), store.HealthCheck)
	case config.SchemaBackendS3:
		blobs = &schema.ObjectBlobStore{Objects: objects}
	default:
		logger.Warn("schema backend is in-memory; declared tables are lost on restart")
		blobs = schema.NewMemoryBlobStore()
	}

	deps := session.Deps{
		Schema:        schema.NewRepository(blobs, cfg.Schema.Key),
		Logger:        logger,
		PreviewRows:   cfg.Engine.PreviewRows,
		MaxResultRows: cfg.Engine.MaxResultRows,
	}
	if cfg.Export.ArchiveEnabled {
		deps.Archiver = export.NewArchiver(objects)
	}
	if cfg.Generator.Enabled {
		generator, name, err := newGenerator(cfg.Generator)
		if err != nil {
			return fmt.Errorf("initialize sql generator: %w", err)
		}
		deps.Generator = generator
		deps.GeneratorName = name
	}

	sessions := session.NewManager(func(ctx context.Context) (query.Store, error) {
		return duckdb.Open(ctx)
	}, deps)
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("failed to close sessions", slog.Any("error", err))
		}
	}()

	apiDeps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		Readiness:         api.CombineReadinessChecks(checks...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static auth keys: %w", err)
		}
		apiDeps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, apiDeps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("schema_backend", cfg.Schema.Backend),
			slog.Bool("generator_enabled", cfg.Generator.Enabled),
			slog.Bool("archive_enabled", cfg.Export.ArchiveEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newGenerator(cfg config.GeneratorConfig) (nl2sql.Generator, string, error) {
	switch cfg.Provider {
	case config.GeneratorProviderOpenAI:
		generator, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		return generator, nl2sql.ProviderOpenAI, err
	default:
		generator, err := nl2sql.NewHTTPGenerator(nl2sql.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
		return generator, nl2sql.ProviderHTTP, err
	}
}
