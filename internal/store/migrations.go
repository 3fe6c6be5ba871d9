package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all journal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS commands (
		id             TEXT PRIMARY KEY,
		owner          TEXT NOT NULL,
		board          TEXT NOT NULL,
		register       INTEGER NOT NULL,
		count          INTEGER NOT NULL DEFAULT 1,
		operation      TEXT NOT NULL,
		period         INTEGER NOT NULL DEFAULT 0,
		requested_sec  INTEGER NOT NULL DEFAULT 0,
		requested_usec INTEGER NOT NULL DEFAULT 0,
		effective_sec  INTEGER NOT NULL,
		effective_usec INTEGER NOT NULL DEFAULT 0,
		state          TEXT NOT NULL DEFAULT 'QUEUED',
		result         TEXT NOT NULL DEFAULT '',
		vals           TEXT NOT NULL DEFAULT '[]',
		created_at     TEXT NOT NULL,
		completed_at   TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS rounds (
		id                 TEXT PRIMARY KEY,
		tick_sec           INTEGER NOT NULL,
		tick_usec          INTEGER NOT NULL DEFAULT 0,
		result             TEXT NOT NULL,
		incomplete_ports   TEXT NOT NULL DEFAULT '[]',
		commands_completed INTEGER NOT NULL DEFAULT 0,
		started_at         TEXT NOT NULL,
		completed_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_commands_owner ON commands(owner)`,
	`CREATE INDEX IF NOT EXISTS idx_commands_state ON commands(state)`,
	`CREATE INDEX IF NOT EXISTS idx_rounds_tick ON rounds(tick_sec)`,
	`CREATE INDEX IF NOT EXISTS idx_rounds_result ON rounds(result)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "commands",
		column:   "samples",
		alterSQL: "ALTER TABLE commands ADD COLUMN samples INTEGER NOT NULL DEFAULT 0",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
