// Package storage is the object-store boundary. Keys are slash-separated and
// relative to the store's prefix. Two kinds of object live there: a tenant's
// schema blob at <tenant>/<schema key>.json and archived query exports under
// <tenant>/exports/ (see BuildExportPath).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// User metadata attached to every object Tabula writes.
const (
	MetadataKind   = "Tabula-Kind"
	MetadataTenant = "Tabula-Tenant"
	MetadataRows   = "Tabula-Rows"

	KindSchemaBlob = "schema-blob"
	KindExport     = "export"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// PutOptions carry the object headers. Metadata is stored as S3 user
// metadata.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
