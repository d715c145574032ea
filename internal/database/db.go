package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/smukkama/landslide-monitor/internal/logger"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	log := logger.WithComponent("database")

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		log.Info().Str("file", filename).Msg("running migration")

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// InsertAlertLogs journals a batch of alerts in one transaction. Alerts
// already journaled (same alert_id) are skipped, so redelivered messages
// are harmless.
func (db *DB) InsertAlertLogs(ctx context.Context, alerts []*AlertLog) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alert_log (
			alert_id, site, level, severity, message, sound,
			critical_factors, reading_time, emitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		if _, err := stmt.ExecContext(ctx,
			a.AlertID,
			a.Site,
			a.Level,
			a.Severity,
			a.Message,
			a.Sound,
			pq.Array(a.CriticalFactors),
			a.ReadingTime,
			a.EmittedAt,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.AlertID, err)
		}
	}

	return tx.Commit()
}

// RecentAlerts returns the newest alerts for a site
func (db *DB) RecentAlerts(ctx context.Context, site string, limit int) ([]*AlertLog, error) {
	query := `
		SELECT id, alert_id, site, level, severity, message, sound,
		       critical_factors, reading_time, emitted_at, created_at
		FROM alert_log
		WHERE site = $1
		ORDER BY emitted_at DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, site, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*AlertLog
	for rows.Next() {
		var a AlertLog
		if err := rows.Scan(
			&a.ID,
			&a.AlertID,
			&a.Site,
			&a.Level,
			&a.Severity,
			&a.Message,
			&a.Sound,
			pq.Array(&a.CriticalFactors),
			&a.ReadingTime,
			&a.EmittedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}
