// Package csvingest turns raw CSV text into header-keyed records.
//
// The first record is the header. Blank lines are skipped. Quoted fields may
// contain delimiters, newlines and doubled quotes. A record with fewer fields
// than the header leaves the trailing columns absent from the Record; a
// record with more fields has the surplus dropped.
package csvingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is reported when the input holds no header record.
var ErrNoHeader = errors.New("csv has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// checkEvery bounds how many records are read between context checks.
const checkEvery = 256

// Record maps a canonical column name to its raw cell text.
type Record map[string]string

type Result struct {
	Headers []string
	Records []Record
}

type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse csv: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads the whole input before returning; no partial Result is ever
// returned alongside an error. canonicalize is applied to every header cell
// and may be nil.
func Parse(ctx context.Context, r io.Reader, canonicalize func(string) string) (Result, error) {
	if canonicalize == nil {
		canonicalize = func(name string) string { return name }
	}

	buffered := bufio.NewReader(r)
	if prefix, err := buffered.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = buffered.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, &ParseError{Err: ErrNoHeader}
		}
		return Result{}, wrapReadErr(err)
	}

	headers := make([]string, len(header))
	for i, cell := range header {
		headers[i] = canonicalize(cell)
	}

	records := make([]Record, 0)
	for count := 0; ; count++ {
		if count%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, wrapReadErr(err)
		}
		records = append(records, toRecord(headers, fields))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return Result{Headers: headers, Records: records}, nil
}

func ParseText(ctx context.Context, text string, canonicalize func(string) string) (Result, error) {
	return Parse(ctx, strings.NewReader(text), canonicalize)
}

func toRecord(headers, fields []string) Record {
	record := make(Record, len(headers))
	for i, name := range headers {
		if i >= len(fields) {
			break
		}
		// A repeated header keeps its first value.
		if _, seen := record[name]; seen {
			continue
		}
		record[name] = fields[i]
	}
	return record
}

func wrapReadErr(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}
