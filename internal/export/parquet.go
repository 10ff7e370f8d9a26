package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

const ContentTypeParquet = "application/vnd.apache.parquet"

type parquetRow struct {
	RowNumber   int64  `parquet:"row_number"`
	PayloadJSON string `parquet:"payload_json"`
}

// EncodeParquet writes one parquet row per result row, with the row encoded
// as a JSON object keyed by column name. Result sets have no fixed schema, so
// the payload stays JSON.
func EncodeParquet(columns []string, rows [][]any) ([]byte, error) {
	records := make([]parquetRow, 0, len(rows))
	for i, row := range rows {
		payload := make(map[string]any, len(columns))
		for j, column := range columns {
			if j < len(row) {
				payload[column] = row[j]
			} else {
				payload[column] = nil
			}
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		records = append(records, parquetRow{RowNumber: int64(i + 1), PayloadJSON: string(encoded)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
