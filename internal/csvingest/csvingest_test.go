package csvingest

import (
	"context"
	"encoding/csv"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/duckmesh/tabula/internal/schema"
)

func TestParseCanonicalizesHeaders(t *testing.T) {
	result, err := ParseText(context.Background(), "ID,Full Name,Salary\n1,Alice,1000\n2,Bob,abc\n", schema.Canonicalize)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(result.Headers, []string{"id", "full_name", "salary"}) {
		t.Fatalf("headers = %v", result.Headers)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d", len(result.Records))
	}
	want := Record{"id": "2", "full_name": "Bob", "salary": "abc"}
	if !reflect.DeepEqual(result.Records[1], want) {
		t.Fatalf("record[1] = %v", result.Records[1])
	}
}

func TestParseQuotedFields(t *testing.T) {
	input := "name,note\n\"O'Brien, Pat\",\"said \"\"hi\"\"\nthen left\"\n"
	result, err := ParseText(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d", len(result.Records))
	}
	record := result.Records[0]
	if record["name"] != "O'Brien, Pat" {
		t.Fatalf("name = %q", record["name"])
	}
	if record["note"] != "said \"hi\"\nthen left" {
		t.Fatalf("note = %q", record["note"])
	}
}

func TestParseSkipsBlankLinesAndStripsBOM(t *testing.T) {
	input := "\ufeffid,name\n\n1,a\n\n\n2,b\n"
	result, err := ParseText(context.Background(), input, schema.Canonicalize)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Headers[0] != "id" {
		t.Fatalf("BOM not stripped: %q", result.Headers[0])
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d", len(result.Records))
	}
}

func TestParsePadsShortAndTruncatesLongRecords(t *testing.T) {
	result, err := ParseText(context.Background(), "a,b,c\n1\n1,2,3,4\n", nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	short := result.Records[0]
	if _, ok := short["b"]; ok {
		t.Fatalf("short record has b: %v", short)
	}
	if short["a"] != "1" || len(short) != 1 {
		t.Fatalf("short record = %v", short)
	}
	long := result.Records[1]
	if !reflect.DeepEqual(long, Record{"a": "1", "b": "2", "c": "3"}) {
		t.Fatalf("long record = %v", long)
	}
}

func TestParseUnterminatedQuote(t *testing.T) {
	_, err := ParseText(context.Background(), "a,b\n\"1,2\n", nil)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, csv.ErrQuote) {
		t.Fatalf("error = %v, want csv.ErrQuote", err)
	}
	if parseErr.Line == 0 {
		t.Fatal("expected line number")
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n"} {
		_, err := ParseText(context.Background(), input, nil)
		if !errors.Is(err, ErrNoHeader) {
			t.Fatalf("Parse(%q) error = %v, want ErrNoHeader", input, err)
		}
	}
}

func TestParseHeaderOnly(t *testing.T) {
	result, err := ParseText(context.Background(), "id,name", nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Records == nil || len(result.Records) != 0 {
		t.Fatalf("records = %#v", result.Records)
	}
}

func TestParseHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Parse(ctx, strings.NewReader("a\n1\n"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result.Records != nil || result.Headers != nil {
		t.Fatalf("partial result returned: %+v", result)
	}
}
