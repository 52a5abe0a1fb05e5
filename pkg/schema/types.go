package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind classifies a column by the Go type backing it.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// TableMetadata describes an entity record: its storage table and its columns.
type TableMetadata struct {
	Name    string
	GoType  reflect.Type
	Columns []ColumnMetadata
}

// ColumnMetadata describes one field of an entity record.
type ColumnMetadata struct {
	Name      string // storage column name
	JSONName  string // wire name, also used as the form field name
	Label     string
	GoField   string
	GoType    reflect.Type
	Kind      Kind
	Position  int
	Key       bool
	Required  bool
	Multiline bool
	Width     int
}

// KeyColumn returns the identity column, or nil if the record has none.
func (t *TableMetadata) KeyColumn() *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Key {
			return &t.Columns[i]
		}
	}
	return nil
}

// GetColumnByName returns the column with the given storage name.
func (t *TableMetadata) GetColumnByName(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Field returns the column whose wire name matches name, case-insensitively.
func (t *TableMetadata) Field(name string) *ColumnMetadata {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].JSONName, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// EditableColumns returns every column except the identity column.
func (t *TableMetadata) EditableColumns() []ColumnMetadata {
	cols := make([]ColumnMetadata, 0, len(t.Columns))
	for _, col := range t.Columns {
		if !col.Key {
			cols = append(cols, col)
		}
	}
	return cols
}

// FieldNames returns the wire names of all columns.
func (t *TableMetadata) FieldNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.JSONName
	}
	return names
}

// Key reads the identity value from a record or a pointer to one.
func (t *TableMetadata) Key(record any) int64 {
	col := t.KeyColumn()
	if col == nil {
		return 0
	}
	field := structValue(record).FieldByName(col.GoField)
	if !field.IsValid() {
		return 0
	}
	return field.Int()
}

// SetKey writes the identity value into the record pointed to by record.
func (t *TableMetadata) SetKey(record any, id int64) error {
	col := t.KeyColumn()
	if col == nil {
		return fmt.Errorf("table %s has no key column", t.Name)
	}
	field, err := settableField(record, col)
	if err != nil {
		return err
	}
	field.SetInt(id)
	return nil
}

// Value returns the raw value of a column in a record.
func (t *TableMetadata) Value(record any, col *ColumnMetadata) any {
	field := structValue(record).FieldByName(col.GoField)
	if !field.IsValid() {
		return nil
	}
	return field.Interface()
}

// Values returns the raw values of cols in order.
func (t *TableMetadata) Values(record any, cols []ColumnMetadata) []any {
	values := make([]any, len(cols))
	for i := range cols {
		values[i] = t.Value(record, &cols[i])
	}
	return values
}

// Format renders a column value for display or text input.
func (t *TableMetadata) Format(record any, col *ColumnMetadata) string {
	field := structValue(record).FieldByName(col.GoField)
	if !field.IsValid() {
		return ""
	}
	switch col.Kind {
	case KindInt:
		return strconv.FormatInt(field.Int(), 10)
	case KindFloat:
		return strconv.FormatFloat(field.Float(), 'f', -1, 64)
	default:
		return field.String()
	}
}

// SetFromString parses text according to the column kind and stores it in the
// record pointed to by record. Blank numeric input stores zero.
func (t *TableMetadata) SetFromString(record any, col *ColumnMetadata, text string) error {
	field, err := settableField(record, col)
	if err != nil {
		return err
	}
	switch col.Kind {
	case KindInt:
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			field.SetInt(0)
			return nil
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be a whole number", col.Label)
		}
		field.SetInt(n)
	case KindFloat:
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			field.SetFloat(0)
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", col.Label)
		}
		field.SetFloat(f)
	default:
		field.SetString(text)
	}
	return nil
}

// ScanTargets returns pointers to the fields of cols in the record pointed to
// by record, in column order, for use with Rows.Scan.
func (t *TableMetadata) ScanTargets(record any, cols []ColumnMetadata) ([]any, error) {
	targets := make([]any, len(cols))
	for i := range cols {
		field, err := settableField(record, &cols[i])
		if err != nil {
			return nil, err
		}
		targets[i] = field.Addr().Interface()
	}
	return targets, nil
}

func structValue(record any) reflect.Value {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v
}

func settableField(record any, col *ColumnMetadata) (reflect.Value, error) {
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("record must be a non-nil pointer, got %T", record)
	}
	field := v.Elem().FieldByName(col.GoField)
	if !field.IsValid() || !field.CanSet() {
		return reflect.Value{}, fmt.Errorf("field %s is not settable", col.GoField)
	}
	return field, nil
}

// kindOf maps a Go type to a column kind.
func kindOf(t reflect.Type) (Kind, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, nil
	case reflect.String:
		return KindString, nil
	}
	return KindString, fmt.Errorf("unsupported field type %s", t)
}
