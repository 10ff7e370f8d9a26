package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/duckmesh/tabula/internal/storage"
)

const DefaultBlobKey = "tables"

var ErrBlobNotFound = errors.New("schema: blob not found")

// BlobStore persists the opaque schema blob under a fixed key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Repository struct {
	Blob BlobStore
	Key  string
}

func NewRepository(blob BlobStore, key string) *Repository {
	if strings.TrimSpace(key) == "" {
		key = DefaultBlobKey
	}
	return &Repository{Blob: blob, Key: strings.TrimSpace(key)}
}

// Load reads the tenant's blob. A missing blob is an empty schema.
func (r *Repository) Load(ctx context.Context, tenantID string) (*MemoryStore, error) {
	raw, err := r.Blob.Get(ctx, r.blobKey(tenantID))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return NewMemoryStore(nil)
		}
		return nil, fmt.Errorf("read schema blob: %w", err)
	}
	tables, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(tables)
}

func (r *Repository) Save(ctx context.Context, tenantID string, tables []Table) error {
	if err := Validate(tables); err != nil {
		return err
	}
	raw, err := Encode(tables)
	if err != nil {
		return err
	}
	if err := r.Blob.Set(ctx, r.blobKey(tenantID), raw); err != nil {
		return fmt.Errorf("write schema blob: %w", err)
	}
	return nil
}

func (r *Repository) blobKey(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return r.Key
	}
	return path.Join(tenantID, r.Key)
}

func Decode(raw []byte) ([]Table, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var tables []Table
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("decode schema blob: %w", err)
	}
	return tables, nil
}

func Encode(tables []Table) ([]byte, error) {
	if tables == nil {
		tables = []Table{}
	}
	raw, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encode schema blob: %w", err)
	}
	return raw, nil
}

type MemoryBlobStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{values: map[string][]byte{}}
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return bytes.Clone(value), nil
}

func (m *MemoryBlobStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = bytes.Clone(value)
	return nil
}

// ObjectBlobStore keeps the blob as a JSON object in an object store.
type ObjectBlobStore struct {
	Objects storage.ObjectStore
}

func (o *ObjectBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := o.Objects.Get(ctx, key+".json")
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

func (o *ObjectBlobStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := o.Objects.Put(ctx, key+".json", bytes.NewReader(value), int64(len(value)), storage.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{storage.MetadataKind: storage.KindSchemaBlob},
	})
	return err
}
