package migration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marshallshelly/databridge/pkg/schema"
)

// Dialect describes the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// KeyType is the column definition of an auto-assigned integer key.
	KeyType string
	// Types maps column kinds to SQL types.
	Types map[schema.Kind]string
	// Returning is true when INSERT ... RETURNING reports the new key.
	Returning   bool
	placeholder func(n int) string
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

var (
	// Postgres is the PostgreSQL dialect.
	Postgres = Dialect{
		Name:    "postgres",
		KeyType: "BIGSERIAL PRIMARY KEY",
		Types: map[schema.Kind]string{
			schema.KindString: "TEXT NOT NULL DEFAULT ''",
			schema.KindInt:    "BIGINT NOT NULL DEFAULT 0",
			schema.KindFloat:  "DOUBLE PRECISION NOT NULL DEFAULT 0",
		},
		Returning:   true,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}

	// SQLite is the SQLite dialect.
	SQLite = Dialect{
		Name:    "sqlite",
		KeyType: "INTEGER PRIMARY KEY AUTOINCREMENT",
		Types: map[schema.Kind]string{
			schema.KindString: "TEXT NOT NULL DEFAULT ''",
			schema.KindInt:    "INTEGER NOT NULL DEFAULT 0",
			schema.KindFloat:  "REAL NOT NULL DEFAULT 0",
		},
		placeholder: func(int) string { return "?" },
	}
)

// quoteIdent quotes an identifier (table name, column name, etc.)
// to handle reserved keywords and special characters.
func quoteIdent(name string) string {
	return fmt.Sprintf(`"%s"`, name)
}

// Planner generates SQL statements from table metadata.
type Planner struct {
	dialect Dialect
}

// NewPlanner creates a planner for d.
func NewPlanner(d Dialect) *Planner {
	return &Planner{dialect: d}
}

// Dialect returns the planner's dialect.
func (p *Planner) Dialect() Dialect {
	return p.dialect
}

// CreateTable generates an idempotent CREATE TABLE statement.
func (p *Planner) CreateTable(table *schema.TableMetadata) string {
	parts := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		parts = append(parts, "    "+p.columnDefinition(col))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", quoteIdent(table.Name), strings.Join(parts, ",\n"))
}

func (p *Planner) columnDefinition(col schema.ColumnMetadata) string {
	if col.Key {
		return quoteIdent(col.Name) + " " + p.dialect.KeyType
	}
	return quoteIdent(col.Name) + " " + p.dialect.Types[col.Kind]
}

// Select returns a query for every row, ordered by key. Columns appear in
// table.Columns order.
func (p *Planner) Select(table *schema.TableMetadata) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		columnList(table.Columns), quoteIdent(table.Name), quoteIdent(table.KeyColumn().Name))
}

// SelectOne returns a query for the row whose key is the first parameter.
func (p *Planner) SelectOne(table *schema.TableMetadata) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		columnList(table.Columns), quoteIdent(table.Name), quoteIdent(table.KeyColumn().Name), p.dialect.Placeholder(1))
}

// Insert returns an INSERT of the editable columns. Dialects with Returning
// report the new key as the only result column.
func (p *Planner) Insert(table *schema.TableMetadata) string {
	cols := table.EditableColumns()
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = p.dialect.Placeholder(i + 1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table.Name), columnList(cols), strings.Join(params, ", "))
	if p.dialect.Returning {
		sql += " RETURNING " + quoteIdent(table.KeyColumn().Name)
	}
	return sql
}

// Update returns an UPDATE of the editable columns. The key is the last
// parameter.
func (p *Planner) Update(table *schema.TableMetadata) string {
	cols := table.EditableColumns()
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", quoteIdent(col.Name), p.dialect.Placeholder(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quoteIdent(table.Name), strings.Join(sets, ", "),
		quoteIdent(table.KeyColumn().Name), p.dialect.Placeholder(len(cols)+1))
}

// Delete returns a DELETE of the row whose key is the first parameter.
func (p *Planner) Delete(table *schema.TableMetadata) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		quoteIdent(table.Name), quoteIdent(table.KeyColumn().Name), p.dialect.Placeholder(1))
}

func columnList(cols []schema.ColumnMetadata) string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = quoteIdent(col.Name)
	}
	return strings.Join(names, ", ")
}

// splitSQL splits a SQL string into individual statements.
// This is a simple implementation that splits on semicolons.
func splitSQL(sql string) []string {
	var cleanedLines []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleanedLines = append(cleanedLines, line)
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(cleanedLines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}

// Statements splits the up SQL of m into individual statements.
func (m Migration) Statements() []string {
	return splitSQL(m.UpSQL)
}
