package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marshallshelly/databridge/pkg/migration"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// OpenSQLite opens (or creates) the SQLite database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store needs a file path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		Kind:      "sqlite",
		Products:  newSQLTable[model.Product](db),
		Students:  newSQLTable[model.Student](db),
		Employees: newSQLTable[model.Employee](db),
		Members:   newSQLTable[model.Member](db),
		close:     db.Close,
	}, nil
}

// migrateSQLite applies the migrations newer than the schema version kept in
// the meta table.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	var current string
	_ = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	version, _ := strconv.Atoi(current)

	tables, err := storeTables()
	if err != nil {
		return err
	}
	migrations := migration.Plan(migration.SQLite, tables...)
	if version >= len(migrations) {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range migrations[version:] {
		for _, stmt := range m.Statements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta(key,value) VALUES('schema_version',?) ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
		strconv.Itoa(len(migrations)))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

type sqlTable[T model.Entity] struct {
	db    *sql.DB
	table *schema.TableMetadata
	sql   statements
}

func newSQLTable[T model.Entity](db *sql.DB) *sqlTable[T] {
	table := registry.For[T]()
	return &sqlTable[T]{
		db:    db,
		table: table,
		sql:   newStatements(migration.NewPlanner(migration.SQLite), table),
	}
}

func (t *sqlTable[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, t.sql.list)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.table.Name, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var rec T
		targets, err := t.table.ScanTargets(&rec, t.table.Columns)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (t *sqlTable[T]) Get(ctx context.Context, id int64) (T, error) {
	var rec T
	targets, err := t.table.ScanTargets(&rec, t.table.Columns)
	if err != nil {
		return rec, err
	}
	if err := t.db.QueryRowContext(ctx, t.sql.get, id).Scan(targets...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, fmt.Errorf("failed to query %s: %w", t.table.Name, err)
	}
	return rec, nil
}

func (t *sqlTable[T]) Insert(ctx context.Context, rec T) (int64, error) {
	res, err := t.db.ExecContext(ctx, t.sql.insert, t.table.Values(rec, t.table.EditableColumns())...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", t.table.Name, err)
	}
	return res.LastInsertId()
}

func (t *sqlTable[T]) Update(ctx context.Context, id int64, rec T) error {
	args := append(t.table.Values(rec, t.table.EditableColumns()), id)
	res, err := t.db.ExecContext(ctx, t.sql.update, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.table.Name, err)
	}
	return requireAffected(res)
}

func (t *sqlTable[T]) Delete(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, t.sql.delete, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.table.Name, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
