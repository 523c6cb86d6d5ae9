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
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'farmer',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Plots table
			CREATE TABLE IF NOT EXISTS plots (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				crop_variety TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Alerts table (detected anomalies)
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				plot_id TEXT NOT NULL,
				sensor_type TEXT NOT NULL,
				anomaly_type TEXT NOT NULL,
				severity TEXT NOT NULL,
				value REAL NOT NULL,
				confidence REAL NOT NULL DEFAULT 0,
				message TEXT,
				detected_at DATETIME NOT NULL,
				resolved INTEGER NOT NULL DEFAULT 0,
				resolved_at DATETIME,
				FOREIGN KEY (plot_id) REFERENCES plots(id) ON DELETE CASCADE
			);

			-- Recommendations table (advisor output, one or more per alert)
			CREATE TABLE IF NOT EXISTS recommendations (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				action_type TEXT NOT NULL,
				explanation TEXT NOT NULL,
				confidence REAL NOT NULL,
				urgency TEXT NOT NULL DEFAULT 'medium',
				created_at DATETIME NOT NULL,
				FOREIGN KEY (alert_id) REFERENCES alerts(id) ON DELETE CASCADE
			);

			-- Refresh tokens table
			CREATE TABLE IF NOT EXISTS refresh_tokens (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				token_hash TEXT UNIQUE NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				revoked INTEGER NOT NULL DEFAULT 0,
				revoked_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_alerts_plot ON alerts(plot_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(resolved, detected_at);
			CREATE INDEX IF NOT EXISTS idx_recommendations_alert ON recommendations(alert_id);
			CREATE INDEX IF NOT EXISTS idx_tokens_hash ON refresh_tokens(token_hash);
			CREATE INDEX IF NOT EXISTS idx_tokens_user ON refresh_tokens(user_id);
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
