package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrTableNotFound = errors.New("schema: table not found")

type ColumnType string

const (
	TypeVarchar ColumnType = "VARCHAR"
	TypeInt     ColumnType = "INT"
	TypeText    ColumnType = "TEXT"
	TypeDate    ColumnType = "DATE"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeFloat   ColumnType = "FLOAT"
)

var columnTypes = []ColumnType{TypeVarchar, TypeInt, TypeText, TypeDate, TypeBoolean, TypeFloat}

func ParseColumnType(raw string) (ColumnType, error) {
	candidate := ColumnType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range columnTypes {
		if candidate == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown column type %q", raw)
}

// IsNumeric reports whether values of the type are coerced to numbers.
func (t ColumnType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

func (t *ColumnType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("column type must be a string: %w", err)
	}
	parsed, err := ParseColumnType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Column struct {
	Name string     `json:"name" validate:"required"`
	Type ColumnType `json:"type" validate:"required,oneof=VARCHAR INT TEXT DATE BOOLEAN FLOAT"`
}

// Table is one user-declared table. X and Y carry the editor layout and are
// round-tripped untouched.
type Table struct {
	ID      string   `json:"id"`
	Name    string   `json:"name" validate:"required"`
	Columns []Column `json:"columns" validate:"required,min=1,dive"`
	X       float64  `json:"x,omitempty"`
	Y       float64  `json:"y,omitempty"`
}

func NewTable(name string, columns ...Column) Table {
	return Table{
		ID:      uuid.NewString(),
		Name:    name,
		Columns: columns,
	}
}

// Key is the identity used for load and query bookkeeping.
func (t Table) Key() string {
	return Canonicalize(t.Name)
}

// ColumnNames returns the canonical column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, Canonicalize(column.Name))
	}
	return names
}

// CanonicalColumns returns a copy of the columns with canonical names.
func (t Table) CanonicalColumns() []Column {
	columns := make([]Column, 0, len(t.Columns))
	for _, column := range t.Columns {
		columns = append(columns, Column{Name: Canonicalize(column.Name), Type: column.Type})
	}
	return columns
}

type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}
