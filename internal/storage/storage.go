// Package storage provides alert persistence interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

// ErrDuplicateActive is returned by Create when an active alert already
// exists for the area key. The engine treats this as an invariant violation,
// never as something to repair silently.
var ErrDuplicateActive = errors.New("active alert already exists for area")

// ErrVersionConflict is returned by Update when the record was modified
// since it was read.
var ErrVersionConflict = errors.New("alert version conflict")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the backing store.
	Open() error
	// Close releases the backing store.
	Close() error
	// Migrate runs schema migrations.
	Migrate() error

	Alerts() AlertRepository
	AlertHistory() AlertHistoryRepository
}

// AlertFilter narrows List results.
type AlertFilter struct {
	// ActiveOnly limits results to alerts with IsActive=true.
	ActiveOnly bool
	// Severity limits results to one severity level when non-empty.
	Severity models.Severity
	Limit    int
	Offset   int
}

// AlertRepository defines operations for alert records.
//
// GetActiveByAreaKey and GetByID return (nil, nil) when no record matches.
// Create enforces the at-most-one-active-per-area constraint and returns
// ErrDuplicateActive on conflict. Update compares-and-swaps on Version and
// returns ErrVersionConflict when the stored record moved on; on success the
// passed alert's Version is incremented.
//
// Create and Update write entry to the audit trail in the same transaction
// as the alert when entry is non-nil: either both land or neither does, so a
// stored alert can never be missing the history entry that produced it.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	GetActiveByAreaKey(ctx context.Context, areaKey string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error
	List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error)
	CountActiveBySeverity(ctx context.Context) (map[models.Severity]int64, error)
}

// AlertHistoryRepository defines operations for the append-only audit trail.
// Entries are immutable once appended; ListByAlert returns them in CreatedAt
// order.
type AlertHistoryRepository interface {
	Append(ctx context.Context, entry *models.AlertHistoryEntry) error
	ListByAlert(ctx context.Context, alertID string, limit, offset int) ([]*models.AlertHistoryEntry, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
