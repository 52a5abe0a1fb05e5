// Package registry caches the parsed metadata of entity record types. Records
// are found by Go type when encoding and by table name when migrating.
package registry

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/marshallshelly/databridge/pkg/schema"
)

// Registry maps record types and table names to their metadata. It is safe
// for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	parser *schema.Parser
	byType map[reflect.Type]*schema.TableMetadata
	byName map[string]*schema.TableMetadata
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parser: schema.NewParser(),
		byType: make(map[reflect.Type]*schema.TableMetadata),
		byName: make(map[string]*schema.TableMetadata),
	}
}

// recordType strips pointers from the type of record.
func recordType(record any) (reflect.Type, error) {
	t := reflect.TypeOf(record)
	if t == nil {
		return nil, fmt.Errorf("record must be a struct, got nil")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct, got %s", t.Kind())
	}
	return t, nil
}

// Register adds the record types of records. Registering a type again is a
// no-op; two types cannot share a table name.
func (r *Registry) Register(records ...any) error {
	for _, record := range records {
		if _, err := r.Lookup(record); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the metadata of record's type, registering it on first use.
func (r *Registry) Lookup(record any) (*schema.TableMetadata, error) {
	t, err := recordType(record)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	table, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if table, ok := r.byType[t]; ok {
		return table, nil
	}

	table, err = r.parser.Parse(t)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", t.Name(), err)
	}
	if other, ok := r.byName[table.Name]; ok {
		return nil, fmt.Errorf("table %s already registered for %s", table.Name, other.GoType)
	}
	r.byType[t] = table
	r.byName[table.Name] = table
	return table, nil
}

// Table returns the metadata registered under name.
func (r *Registry) Table(name string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	table, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("table %s not registered", name)
	}
	return table, nil
}

// Names returns the registered table names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byName))
}

var global = NewRegistry()

// Register adds record types to the process-wide registry.
func Register(records ...any) error {
	return global.Register(records...)
}

// Table looks name up in the process-wide registry.
func Table(name string) (*schema.TableMetadata, error) {
	return global.Table(name)
}

// Names lists the tables of the process-wide registry.
func Names() []string {
	return global.Names()
}

// For returns the metadata of T from the process-wide registry. It panics
// when T cannot be parsed, which only happens for malformed struct tags.
func For[T any]() *schema.TableMetadata {
	var zero T
	table, err := global.Lookup(zero)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return table
}
