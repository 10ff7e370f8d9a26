package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/duckmesh/tabula/internal/storage"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

type ArchiveResult struct {
	ID     string
	Key    string
	Format Format
	Size   int64
}

// Archiver copies exported results into object storage.
type Archiver struct {
	Store storage.ObjectStore
	Now   func() time.Time
}

func NewArchiver(store storage.ObjectStore) *Archiver {
	return &Archiver{Store: store, Now: time.Now}
}

func (a *Archiver) Archive(ctx context.Context, tenantID, name string, format Format, columns []string, rows [][]any) (ArchiveResult, error) {
	if a.Store == nil {
		return ArchiveResult{}, fmt.Errorf("archive object store is not configured")
	}
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("generate export id: %w", err)
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case FormatCSV, "":
		format = FormatCSV
		payload = []byte(ToCSV(columns, rows))
		contentType = ContentTypeCSV
	case FormatParquet:
		payload, err = EncodeParquet(columns, rows)
		if err != nil {
			return ArchiveResult{}, err
		}
		contentType = ContentTypeParquet
	default:
		return ArchiveResult{}, fmt.Errorf("unsupported export format %q", format)
	}

	key, err := storage.BuildExportPath(tenantID, id.String(), archiveName(name), string(format), now)
	if err != nil {
		return ArchiveResult{}, err
	}
	info, err := a.Store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			storage.MetadataKind:   storage.KindExport,
			storage.MetadataTenant: tenantID,
			storage.MetadataRows:   strconv.Itoa(len(rows)),
		},
	})
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("archive export: %w", err)
	}
	size := info.Size
	if size == 0 {
		size = int64(len(payload))
	}
	return ArchiveResult{ID: id.String(), Key: key, Format: format, Size: size}, nil
}

// archiveName derives a key-safe name from a download filename.
func archiveName(filename string) string {
	name := strings.TrimSuffix(strings.TrimSpace(filename), ".csv")
	name = strings.Trim(nonAlphanumeric.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "query_result"
	}
	if len(name) > 96 {
		name = name[:96]
	}
	return name
}
