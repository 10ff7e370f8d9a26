package promptctx

import (
	"context"
	"errors"
	"testing"

	"github.com/duckmesh/tabula/internal/query"
	"github.com/duckmesh/tabula/internal/schema"
)

func declared() []schema.Table {
	return []schema.Table{
		{Name: "Employees", Columns: []schema.Column{
			{Name: "id", Type: schema.TypeVarchar},
			{Name: "Full Name", Type: schema.TypeVarchar},
			{Name: "salary", Type: schema.TypeFloat},
		}},
		{Name: "orders", Columns: []schema.Column{{Name: "id", Type: schema.TypeInt}}},
	}
}

func TestBuildWithSample(t *testing.T) {
	samples := map[string]query.Row{
		"employees": {"id": "1", "full_name": "O'Brien", "salary": float64(1000)},
	}
	got := Build(declared(), samples)
	want := "CREATE TABLE employees (id VARCHAR, full_name VARCHAR, salary FLOAT);" +
		" INSERT INTO employees (id, full_name, salary) VALUES ('1', 'O''Brien', 1000);" +
		" CREATE TABLE orders (id INT);"
	if got != want {
		t.Fatalf("Build() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildRendersNullForMissingValues(t *testing.T) {
	samples := map[string]query.Row{"orders": {"id": nil}}
	got := Build(declared()[1:], samples)
	if got != "CREATE TABLE orders (id INT); INSERT INTO orders (id) VALUES (NULL);" {
		t.Fatalf("Build() = %q", got)
	}
}

func TestBuildEmptySchema(t *testing.T) {
	if got := Build(nil, nil); got != "" {
		t.Fatalf("Build() = %q", got)
	}
}

func TestLiteral(t *testing.T) {
	cases := map[string]any{
		"NULL":    nil,
		"TRUE":    true,
		"FALSE":   false,
		"1.5":     1.5,
		"42":      int64(42),
		"'it''s'": "it's",
	}
	for want, in := range cases {
		if got := Literal(in); got != want {
			t.Fatalf("Literal(%#v) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectSkipsEmptyTables(t *testing.T) {
	sampler := fakeSampler{"employees": {"id": "1"}}
	samples, err := Collect(context.Background(), sampler, declared())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(samples) != 1 || samples["employees"]["id"] != "1" {
		t.Fatalf("samples = %v", samples)
	}
}

func TestCollectPropagatesErrors(t *testing.T) {
	_, err := Collect(context.Background(), failingSampler{}, declared())
	if !errors.Is(err, errSample) {
		t.Fatalf("Collect() error = %v", err)
	}
}

type fakeSampler map[string]query.Row

func (f fakeSampler) FirstRow(_ context.Context, name string) (query.Row, bool, error) {
	row, ok := f[name]
	return row, ok, nil
}

var errSample = errors.New("sample failed")

type failingSampler struct{}

func (failingSampler) FirstRow(context.Context, string) (query.Row, bool, error) {
	return nil, false, errSample
}
