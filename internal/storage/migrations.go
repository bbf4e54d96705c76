package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Public bleaching alerts
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				area_key TEXT NOT NULL,
				area_name TEXT NOT NULL,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				bleaching_count INTEGER NOT NULL,
				threshold INTEGER NOT NULL DEFAULT 200,
				severity_level TEXT NOT NULL DEFAULT 'medium',
				affected_radius_km REAL NOT NULL DEFAULT 50.0,
				description TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				version INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Append-only audit trail
			CREATE TABLE IF NOT EXISTS alert_history (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				change_type TEXT NOT NULL,
				old_value TEXT,
				new_value TEXT,
				description TEXT,
				created_at DATETIME NOT NULL
			);

			-- At most one active alert per area
			CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_area
				ON alerts(area_key) WHERE is_active = 1;

			CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active);
			CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity_level);
			CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
			CREATE INDEX IF NOT EXISTS idx_alert_history_alert ON alert_history(alert_id);
			CREATE INDEX IF NOT EXISTS idx_alert_history_type ON alert_history(change_type);
			CREATE INDEX IF NOT EXISTS idx_alert_history_created ON alert_history(created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
