// Package export serializes query results for download and archiving.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const ContentTypeCSV = "text/csv; charset=utf-8"

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ToCSV renders a header line and one line per row. Every cell, header
// included, is double-quoted with inner quotes doubled. Lines are joined by
// "\n" with no trailing newline.
func ToCSV(columns []string, rows [][]any) string {
	var b strings.Builder
	_ = writeCSV(&b, columns, rows)
	return b.String()
}

func WriteCSV(w io.Writer, columns []string, rows [][]any) error {
	buffered := bufio.NewWriter(w)
	if err := writeCSV(buffered, columns, rows); err != nil {
		return err
	}
	return buffered.Flush()
}

type stringWriter interface {
	WriteString(s string) (int, error)
}

func writeCSV(w stringWriter, columns []string, rows [][]any) error {
	if err := writeLine(w, len(columns), func(i int) string { return columns[i] }); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
		if err := writeLine(w, len(columns), func(i int) string {
			if i >= len(row) {
				return ""
			}
			return FormatValue(row[i])
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w stringWriter, n int, cell func(int) string) error {
	for i := 0; i < n; i++ {
		if i > 0 {
			if _, err := w.WriteString(","); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(cell(i))); err != nil {
			return err
		}
	}
	return nil
}

func quote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// FormatValue renders one cell. nil is empty, floats use the shortest form
// that round-trips, and a time at UTC midnight is written as a bare date.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", typed)
	case bool:
		return strconv.FormatBool(typed)
	case time.Time:
		utc := typed.UTC()
		if utc.Hour() == 0 && utc.Minute() == 0 && utc.Second() == 0 && utc.Nanosecond() == 0 {
			return utc.Format(time.DateOnly)
		}
		return typed.Format(time.RFC3339)
	case fmt.Stringer:
		return typed.String()
	case map[string]any, []any:
		if encoded, err := json.Marshal(typed); err == nil {
			return string(encoded)
		}
	}
	return fmt.Sprint(value)
}

// RowsFromMaps lays mapping-shaped rows out in column order. Missing keys are nil.
func RowsFromMaps[M ~map[string]any](columns []string, maps []M) [][]any {
	rows := make([][]any, len(maps))
	for i, m := range maps {
		row := make([]any, len(columns))
		for j, column := range columns {
			row[j] = m[column]
		}
		rows[i] = row
	}
	return rows
}

// Filename is the default download name for a display name: every character
// outside [a-zA-Z0-9] becomes "_", then ".csv" is appended.
func Filename(display string) string {
	base := strings.TrimSpace(display)
	if base == "" {
		base = "query_result"
	}
	return nonAlphanumeric.ReplaceAllString(base, "_") + ".csv"
}
