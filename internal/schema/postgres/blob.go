package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duckmesh/tabula/internal/schema"
)

// BlobStore keeps schema blobs in the schema_blob table, one row per key.
type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(db *sql.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (s *BlobStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping schema db: %w", err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value
FROM schema_blob
WHERE blob_key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schema.ErrBlobNotFound
		}
		return nil, fmt.Errorf("get schema blob %q: %w", key, err)
	}
	return value, nil
}

func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO schema_blob (blob_key, value, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (blob_key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, string(value))
	if err != nil {
		return fmt.Errorf("set schema blob %q: %w", key, err)
	}
	return nil
}
