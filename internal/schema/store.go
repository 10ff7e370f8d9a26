package schema

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Store is the read-only view of the declared tables. Mutation belongs to the
// schema editor, which writes the blob read by Repository.
type Store interface {
	List() []Table
	FindByName(name string) (Table, error)
}

type MemoryStore struct {
	tables []Table
	byKey  map[string]int
}

func NewMemoryStore(tables []Table) (*MemoryStore, error) {
	if err := Validate(tables); err != nil {
		return nil, err
	}
	store := &MemoryStore{
		tables: make([]Table, len(tables)),
		byKey:  make(map[string]int, len(tables)),
	}
	copy(store.tables, tables)
	for i, table := range store.tables {
		store.byKey[table.Key()] = i
	}
	return store, nil
}

func (s *MemoryStore) List() []Table {
	out := make([]Table, len(s.tables))
	copy(out, s.tables)
	return out
}

func (s *MemoryStore) FindByName(name string) (Table, error) {
	index, ok := s.byKey[Canonicalize(name)]
	if !ok {
		return Table{}, &TableNotFoundError{Name: name}
	}
	return s.tables[index], nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks a table set before it is accepted as the current schema.
// Canonical table names and, within a table, canonical column names must be
// unique.
func Validate(tables []Table) error {
	seenTables := make(map[string]struct{}, len(tables))
	for i, table := range tables {
		if err := structValidator().Struct(table); err != nil {
			return fmt.Errorf("invalid table %d (%q): %w", i, table.Name, err)
		}
		key := table.Key()
		if key == "" || key == "_" {
			return fmt.Errorf("invalid table %d: name %q has no identifier characters", i, table.Name)
		}
		if _, dup := seenTables[key]; dup {
			return fmt.Errorf("duplicate table name %q", key)
		}
		seenTables[key] = struct{}{}

		seenColumns := make(map[string]struct{}, len(table.Columns))
		for _, name := range table.ColumnNames() {
			if name == "" || name == "_" {
				return fmt.Errorf("table %q: column name has no identifier characters", table.Name)
			}
			if _, dup := seenColumns[name]; dup {
				return fmt.Errorf("table %q: duplicate column name %q", table.Name, name)
			}
			seenColumns[name] = struct{}{}
		}
	}
	return nil
}
