// Package backend is a reference implementation of the REST contract the
// databridge client talks to. It backs the "serve" command and the
// end-to-end tests.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// ErrNotFound is returned when no row has the requested key.
var ErrNotFound = errors.New("record not found")

// Table stores the records of one entity type. Keys are assigned by the
// table on Insert.
type Table[T model.Entity] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	Insert(ctx context.Context, rec T) (int64, error)
	Update(ctx context.Context, id int64, rec T) error
	Delete(ctx context.Context, id int64) error
}

// tableOrder is the order the store tables are created in. Migration
// versions follow it, so new tables go last.
var tableOrder = []string{"products", "students", "employees", "members"}

func init() {
	if err := registry.Register(model.Product{}, model.Student{}, model.Employee{}, model.Member{}); err != nil {
		panic(err)
	}
}

// storeTables returns the registered metadata of every store table in
// migration order. A registered table missing from the order is an error.
func storeTables() ([]*schema.TableMetadata, error) {
	for _, name := range registry.Names() {
		if !slices.Contains(tableOrder, name) {
			return nil, fmt.Errorf("table %s has no migration", name)
		}
	}
	tables := make([]*schema.TableMetadata, 0, len(tableOrder))
	for _, name := range tableOrder {
		table, err := registry.Table(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// TableNames lists the tables every store serves.
func TableNames() []string {
	return registry.Names()
}

// Store groups the four entity tables of one backing database.
type Store struct {
	Kind      string
	Products  Table[model.Product]
	Students  Table[model.Student]
	Employees Table[model.Employee]
	Members   Table[model.Member]

	close func() error
}

// Close releases the backing database.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the store named by dsn:
//
//	memory                     in-process maps (default)
//	postgres://user@host/db    PostgreSQL
//	sqlite:/path/to/file.db    SQLite
func OpenStore(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn, maxConns)
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	}
	return nil, fmt.Errorf("unsupported store %q", dsn)
}
