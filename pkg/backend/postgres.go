package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marshallshelly/databridge/pkg/migration"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// minConns keeps one connection free for migrations while another holds
// the advisory lock.
const minConns = 2

// OpenPostgres connects to PostgreSQL, applies pending migrations and
// returns the store.
func OpenPostgres(ctx context.Context, url string, maxConns int32) (*Store, error) {
	pool, err := connect(ctx, url, maxConns)
	if err != nil {
		return nil, err
	}

	tables, err := storeTables()
	if err != nil {
		pool.Close()
		return nil, err
	}
	migrations := migration.Plan(migration.Postgres, tables...)
	if _, err := migration.NewExecutor(pool).ApplyAll(ctx, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		Kind:      "postgres",
		Products:  newPgTable[model.Product](pool),
		Students:  newPgTable[model.Student](pool),
		Employees: newPgTable[model.Employee](pool),
		Members:   newPgTable[model.Member](pool),
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// connect creates a connection pool and verifies it with a ping.
func connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = max(maxConns, minConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// statements are the prepared SQL texts of one table.
type statements struct {
	list, get, insert, update, delete string
}

func newStatements(p *migration.Planner, table *schema.TableMetadata) statements {
	return statements{
		list:   p.Select(table),
		get:    p.SelectOne(table),
		insert: p.Insert(table),
		update: p.Update(table),
		delete: p.Delete(table),
	}
}

type pgTable[T model.Entity] struct {
	pool  *pgxpool.Pool
	table *schema.TableMetadata
	sql   statements
}

func newPgTable[T model.Entity](pool *pgxpool.Pool) *pgTable[T] {
	table := registry.For[T]()
	return &pgTable[T]{
		pool:  pool,
		table: table,
		sql:   newStatements(migration.NewPlanner(migration.Postgres), table),
	}
}

func (t *pgTable[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.pool.Query(ctx, t.sql.list)
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

func (t *pgTable[T]) Get(ctx context.Context, id int64) (T, error) {
	var rec T
	targets, err := t.table.ScanTargets(&rec, t.table.Columns)
	if err != nil {
		return rec, err
	}
	if err := t.pool.QueryRow(ctx, t.sql.get, id).Scan(targets...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, fmt.Errorf("failed to query %s: %w", t.table.Name, err)
	}
	return rec, nil
}

func (t *pgTable[T]) Insert(ctx context.Context, rec T) (int64, error) {
	var id int64
	args := t.table.Values(rec, t.table.EditableColumns())
	if err := t.pool.QueryRow(ctx, t.sql.insert, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", t.table.Name, err)
	}
	return id, nil
}

func (t *pgTable[T]) Update(ctx context.Context, id int64, rec T) error {
	args := append(t.table.Values(rec, t.table.EditableColumns()), id)
	tag, err := t.pool.Exec(ctx, t.sql.update, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.table.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTable[T]) Delete(ctx context.Context, id int64) error {
	tag, err := t.pool.Exec(ctx, t.sql.delete, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.table.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
