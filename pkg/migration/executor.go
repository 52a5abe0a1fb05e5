package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultLockID is the PostgreSQL advisory lock held while migrating.
const defaultLockID int64 = 5071

// Executor applies and tracks migrations on PostgreSQL.
type Executor struct {
	pool   *pgxpool.Pool
	lockID int64
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: defaultLockID,
	}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMP,
			error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`

	if _, err := e.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Lock acquires an advisory lock on conn to prevent concurrent migrations.
// Advisory locks belong to a session, so Unlock must use the same conn.
func (e *Executor) Lock(ctx context.Context, conn *pgxpool.Conn) error {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return nil
}

// Unlock releases the advisory lock held by conn.
func (e *Executor) Unlock(ctx context.Context, conn *pgxpool.Conn) error {
	var released bool
	err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", e.lockID).Scan(&released)
	if err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	if !released {
		return fmt.Errorf("lock was not held")
	}
	return nil
}

// GetAllMigrations returns all migration records.
func (e *Executor) GetAllMigrations(ctx context.Context) ([]MigrationRecord, error) {
	query := `
		SELECT version, name, status, applied_at, error
		FROM schema_migrations
		ORDER BY version ASC
	`

	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var record MigrationRecord
		err := rows.Scan(&record.Version, &record.Name, &record.Status, &record.AppliedAt, &record.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Apply executes a migration's up SQL in a transaction.
func (e *Executor) Apply(ctx context.Context, migration Migration) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name, status) VALUES ($1, $2, $3) ON CONFLICT (version) DO UPDATE SET status = EXCLUDED.status",
		migration.Version, migration.Name, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	for i, stmt := range migration.Statements() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			failure := fmt.Errorf("migration failed at statement %d: %w", i+1, err)
			_ = tx.Rollback(ctx)
			if rerr := e.recordFailure(context.WithoutCancel(ctx), migration, failure); rerr != nil {
				return fmt.Errorf("%w (%v)", failure, rerr)
			}
			return failure
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE schema_migrations SET status = 'applied', applied_at = $1, error = NULL WHERE version = $2",
		time.Now(), migration.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update migration status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// recordFailure marks migration as failed. It runs outside the migration's
// transaction, which has been rolled back.
func (e *Executor) recordFailure(ctx context.Context, migration Migration, cause error) error {
	_, err := e.pool.Exec(ctx,
		`INSERT INTO schema_migrations (version, name, status, error) VALUES ($1, $2, $3, $4)
		ON CONFLICT (version) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, applied_at = NULL`,
		migration.Version, migration.Name, StatusFailed, cause.Error(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration failure: %w", err)
	}
	return nil
}

// ApplyAll applies every migration not yet recorded as applied, holding the
// advisory lock for the duration. It returns the number applied.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration) (int, error) {
	if err := e.Initialize(ctx); err != nil {
		return 0, err
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if err := e.Lock(ctx, conn); err != nil {
		return 0, err
	}
	defer func() { _ = e.Unlock(context.WithoutCancel(ctx), conn) }()

	records, err := e.GetAllMigrations(ctx)
	if err != nil {
		return 0, err
	}
	applied := make(map[string]bool, len(records))
	for _, r := range records {
		applied[r.Version] = r.Status == StatusApplied
	}

	count := 0
	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := e.Apply(ctx, migration); err != nil {
			return count, fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		count++
	}
	return count, nil
}
