package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `db:"..."`).
	StructTagKey = "db"
)

// Parser parses struct definitions to extract table metadata.
type Parser struct {
	cache map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		cache: make(map[reflect.Type]*TableMetadata),
	}
}

// tableNamer lets a record choose its storage table name.
type tableNamer interface {
	TableName() string
}

// Parse extracts TableMetadata from a Go struct type.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	// Dereference pointer types
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:    extractTableName(modelType),
		GoType:  modelType,
		Columns: make([]ColumnMetadata, 0, modelType.NumField()),
	}

	keys := 0
	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" || tagValue == "-" {
			continue
		}
		tagOpts, err := parseTag(tagValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}
		column, err := createColumnMetadata(field, tagOpts, i)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if column.Key {
			keys++
			if column.Kind != KindInt {
				return nil, fmt.Errorf("key field %s must be an integer", field.Name)
			}
		}
		table.Columns = append(table.Columns, column)
	}

	if keys != 1 {
		return nil, fmt.Errorf("model %s must declare exactly one key column, found %d", modelType.Name(), keys)
	}

	p.cache[modelType] = table
	return table, nil
}

// extractTableName returns TableName() when the record implements it and the
// snake_case struct name otherwise.
func extractTableName(modelType reflect.Type) string {
	if namer, ok := reflect.New(modelType).Elem().Interface().(tableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return toSnakeCase(modelType.Name())
}

// createColumnMetadata creates a ColumnMetadata from a struct field.
func createColumnMetadata(field reflect.StructField, opts *TagOptions, position int) (ColumnMetadata, error) {
	kind, err := kindOf(field.Type)
	if err != nil {
		return ColumnMetadata{}, err
	}

	column := ColumnMetadata{
		Name:      opts.Name,
		JSONName:  jsonName(field),
		GoField:   field.Name,
		GoType:    field.Type,
		Kind:      kind,
		Position:  position,
		Key:       opts.Has("key"),
		Required:  opts.Has("required"),
		Multiline: opts.Has("multiline"),
		Label:     opts.Get("label"),
	}
	if column.Label == "" {
		column.Label = humanize(field.Name)
	}
	column.Width = len(column.Label) + 4
	if kind == KindString {
		column.Width = max(column.Width, 20)
	} else {
		column.Width = max(column.Width, 8)
	}
	if w := opts.Get("width"); w != "" {
		if _, err := fmt.Sscanf(w, "%d", &column.Width); err != nil {
			return ColumnMetadata{}, fmt.Errorf("invalid width %q", w)
		}
	}
	return column, nil
}

// jsonName returns the field's wire name from its json tag, falling back to
// the lower-camel Go field name.
func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
		return name
	}
	r := []rune(field.Name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value),option3"
func parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
		} else {
			opts.Options[opt] = ""
		}
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// toSnakeCase converts a string from PascalCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && ch >= 'A' && ch <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(ch)
	}
	return strings.ToLower(result.String())
}

// humanize turns a Go field name into a label: "DeptName" -> "Dept Name".
func humanize(s string) string {
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && unicode.IsUpper(ch) {
			result.WriteRune(' ')
		}
		result.WriteRune(ch)
	}
	return result.String()
}
