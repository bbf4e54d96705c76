package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

type sqliteAlertHistoryRepo struct {
	db *sql.DB
}

// execer covers both *sql.DB and *sql.Tx so history inserts can run inside
// the alert repository's transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertHistoryEntry(ctx context.Context, db execer, entry *models.AlertHistoryEntry) error {
	query := `
		INSERT INTO alert_history (id, alert_id, change_type, old_value, new_value,
			description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		entry.ID, entry.AlertID, entry.ChangeType,
		nullString(entry.OldValue), nullString(entry.NewValue),
		nullString(entry.Description), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append alert history: %w", err)
	}
	return nil
}

func (r *sqliteAlertHistoryRepo) Append(ctx context.Context, entry *models.AlertHistoryEntry) error {
	return insertHistoryEntry(ctx, r.db, entry)
}

func (r *sqliteAlertHistoryRepo) ListByAlert(ctx context.Context, alertID string, limit, offset int) ([]*models.AlertHistoryEntry, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alert_history WHERE alert_id = ?", alertID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `
		SELECT id, alert_id, change_type, old_value, new_value, description, created_at
		FROM alert_history WHERE alert_id = ? ORDER BY created_at, id
	`
	args := []interface{}{alertID}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AlertHistoryEntry
	for rows.Next() {
		e := &models.AlertHistoryEntry{}
		var oldValue, newValue, description sql.NullString
		err := rows.Scan(&e.ID, &e.AlertID, &e.ChangeType,
			&oldValue, &newValue, &description, &e.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert history: %w", err)
		}
		e.OldValue = oldValue.String
		e.NewValue = newValue.String
		e.Description = description.String
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *sqliteAlertHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_history WHERE created_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("delete alert history: %w", err)
	}
	return result.RowsAffected()
}
