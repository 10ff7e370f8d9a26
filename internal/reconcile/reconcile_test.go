package reconcile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/duckmesh/tabula/internal/schema"
)

func employees() schema.Table {
	return schema.Table{
		Name: "employees",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeVarchar},
			{Name: "name", Type: schema.TypeVarchar},
			{Name: "salary", Type: schema.TypeFloat},
		},
	}
}

func TestCheckAcceptsAnyOrder(t *testing.T) {
	for _, headers := range [][]string{
		{"id", "name", "salary"},
		{"salary", "id", "name"},
		{"ID", " Name ", "SALARY"},
	} {
		if err := Check(headers, employees()); err != nil {
			t.Fatalf("Check(%v) error = %v", headers, err)
		}
	}
}

func TestCheckReportsMissing(t *testing.T) {
	err := Check([]string{"id", "name"}, employees())
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *SchemaMismatchError", err)
	}
	if !reflect.DeepEqual(mismatch.Missing, []string{"salary"}) {
		t.Fatalf("missing = %v", mismatch.Missing)
	}
	if mismatch.Extra == nil || len(mismatch.Extra) != 0 {
		t.Fatalf("extra = %#v", mismatch.Extra)
	}
	if mismatch.Table != "employees" {
		t.Fatalf("table = %q", mismatch.Table)
	}
}

func TestCheckReportsMissingAndExtra(t *testing.T) {
	err := Check([]string{"bonus", "id", "Department"}, employees())
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *SchemaMismatchError", err)
	}
	if !reflect.DeepEqual(mismatch.Missing, []string{"name", "salary"}) {
		t.Fatalf("missing = %v", mismatch.Missing)
	}
	if !reflect.DeepEqual(mismatch.Extra, []string{"bonus", "department"}) {
		t.Fatalf("extra = %v", mismatch.Extra)
	}
}

func TestCheckComparesHeadersAsSets(t *testing.T) {
	for _, headers := range [][]string{
		{"id", "name", "salary", "id"},
		{"id", "name", "salary", "ID"},
		{"Salary", "salary", "name", "id"},
	} {
		if err := Check(headers, employees()); err != nil {
			t.Fatalf("Check(%v) error = %v", headers, err)
		}
	}
}

func TestCheckReportsRepeatedExtraOnce(t *testing.T) {
	err := Check([]string{"id", "name", "bonus", "Bonus"}, employees())
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *SchemaMismatchError", err)
	}
	if !reflect.DeepEqual(mismatch.Missing, []string{"salary"}) || !reflect.DeepEqual(mismatch.Extra, []string{"bonus"}) {
		t.Fatalf("mismatch = %+v", mismatch)
	}
}

func TestCheckMatchesCanonicalDeclaredNames(t *testing.T) {
	table := schema.Table{Name: "t", Columns: []schema.Column{{Name: "Unit Price", Type: schema.TypeFloat}}}
	if err := Check([]string{"unit_price"}, table); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}
