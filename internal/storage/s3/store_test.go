package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/duckmesh/tabula/internal/storage"
)

func TestPutJoinsPrefixAndNormalizesKey(t *testing.T) {
	fake := &fakeBucketAPI{}
	store, err := NewWithAPI("bucket-a", "/tabula/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}

	_, err = store.Put(context.Background(), "/tenant-1/tables.json", bytes.NewBufferString("[]"), 2, storage.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{storage.MetadataKind: storage.KindSchemaBlob},
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if fake.lastPutKey != "tabula/prod/tenant-1/tables.json" {
		t.Fatalf("key = %q", fake.lastPutKey)
	}
	if fake.lastContentType != "application/json" {
		t.Fatalf("content type = %q", fake.lastContentType)
	}
	if fake.lastMetadata[storage.MetadataKind] != storage.KindSchemaBlob {
		t.Fatalf("metadata = %v", fake.lastMetadata)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	store, err := NewWithAPI("bucket-a", "", &fakeBucketAPI{})
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "..", "  "} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
}

func TestGetMapsNotFound(t *testing.T) {
	store, err := NewWithAPI("bucket-a", "", &fakeBucketAPI{getErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	_, err = store.Get(context.Background(), "tenant-1/tables.json")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeBucketAPI{bucketExists: false}
	store, err := NewWithAPI("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	store, err := NewWithAPI("bucket-a", "", &fakeBucketAPI{deleteErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if err := store.Delete(context.Background(), "missing/export.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}

	endpoint, secure, err = parseEndpoint("localhost:9000", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "localhost:9000" || secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
}

type fakeBucketAPI struct {
	lastPutBucket      string
	lastPutKey         string
	lastContentType    string
	lastMetadata       map[string]string
	bucketExists       bool
	createBucketCalled bool
	getErr             error
	deleteErr          error
}

func (f *fakeBucketAPI) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.lastPutKey = key
	f.lastContentType = opts.ContentType
	f.lastMetadata = opts.Metadata
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeBucketAPI) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeBucketAPI) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeBucketAPI) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeBucketAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeBucketAPI) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
