// Package migration creates and tracks the storage schema of the reference
// backend.
package migration

import (
	"fmt"
	"time"

	"github.com/marshallshelly/databridge/pkg/schema"
)

// Migration represents a database migration.
type Migration struct {
	Version string // Zero-padded sequence number (e.g., "0001")
	Name    string // Migration name (e.g., "create_products")
	UpSQL   string // SQL for applying the migration
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord represents a migration in the tracking table.
type MigrationRecord struct {
	Version   string          // Migration version
	Name      string          // Migration name
	Status    MigrationStatus // Current status
	AppliedAt *time.Time      // When applied (nil if not applied)
	Error     *string         // Error message if failed
}

// Plan returns one create-table migration per table, in the given order.
func Plan(d Dialect, tables ...*schema.TableMetadata) []Migration {
	planner := NewPlanner(d)
	migrations := make([]Migration, len(tables))
	for i, table := range tables {
		migrations[i] = Migration{
			Version: fmt.Sprintf("%04d", i+1),
			Name:    "create_" + table.Name,
			UpSQL:   planner.CreateTable(table),
		}
	}
	return migrations
}
