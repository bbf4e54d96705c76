package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, area_key, area_name, latitude, longitude, bleaching_count,
	threshold, severity_level, affected_radius_km, description, is_active, version,
	created_at, updated_at`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	alert.Version = 1
	_, err = tx.ExecContext(ctx, query,
		alert.ID, alert.AreaKey, alert.AreaName, alert.Latitude, alert.Longitude,
		alert.BleachingCount, alert.Threshold, alert.SeverityLevel, alert.AffectedRadiusKm,
		nullString(alert.Description), boolToInt(alert.IsActive), alert.Version,
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActive
		}
		return fmt.Errorf("insert alert: %w", err)
	}

	if entry != nil {
		if err := insertHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert create: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	return scanAlert(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAlertRepo) GetActiveByAreaKey(ctx context.Context, areaKey string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE area_key = ? AND is_active = 1`
	return scanAlert(r.db.QueryRowContext(ctx, query, areaKey))
}

func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE alerts SET area_name = ?, latitude = ?, longitude = ?,
			bleaching_count = ?, threshold = ?, severity_level = ?,
			affected_radius_km = ?, description = ?, is_active = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := tx.ExecContext(ctx, query,
		alert.AreaName, alert.Latitude, alert.Longitude,
		alert.BleachingCount, alert.Threshold, alert.SeverityLevel,
		alert.AffectedRadiusKm, nullString(alert.Description), boolToInt(alert.IsActive),
		alert.UpdatedAt,
		alert.ID, alert.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActive
		}
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrVersionConflict
	}

	if entry != nil {
		if err := insertHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert update: %w", err)
	}
	alert.Version++
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error) {
	where := "1 = 1"
	var args []interface{}
	if filter.ActiveOnly {
		where += " AND is_active = 1"
	}
	if filter.Severity != "" {
		where += " AND severity_level = ?"
		args = append(args, string(filter.Severity))
	}

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, total, rows.Err()
}

func (r *sqliteAlertRepo) CountActiveBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT severity_level, COUNT(*) FROM alerts WHERE is_active = 1 GROUP BY severity_level")
	if err != nil {
		return nil, fmt.Errorf("count alerts by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Severity]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		counts[models.Severity(severity)] = count
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlertFields(row scanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var description sql.NullString
	var isActive int

	err := row.Scan(
		&alert.ID, &alert.AreaKey, &alert.AreaName, &alert.Latitude, &alert.Longitude,
		&alert.BleachingCount, &alert.Threshold, &alert.SeverityLevel, &alert.AffectedRadiusKm,
		&description, &isActive, &alert.Version,
		&alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Description = description.String
	alert.IsActive = isActive != 0
	return alert, nil
}

func scanAlert(row *sql.Row) (*models.Alert, error) {
	alert, err := scanAlertFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return alert, nil
}

func scanAlertRow(rows *sql.Rows) (*models.Alert, error) {
	alert, err := scanAlertFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return alert, nil
}

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
