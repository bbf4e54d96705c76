package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

// MemoryStorage implements Storage entirely in memory. It is the reference
// implementation of the repository contracts and backs unit tests; it honors
// the same uniqueness and versioning guarantees as the sqlite implementation.
type MemoryStorage struct {
	mu      sync.RWMutex
	alerts  map[string]*models.Alert               // by id
	history map[string][]*models.AlertHistoryEntry // by alert id, append order

	alertRepo   *memoryAlertRepo
	historyRepo *memoryHistoryRepo
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		alerts:  make(map[string]*models.Alert),
		history: make(map[string][]*models.AlertHistoryEntry),
	}
	s.alertRepo = &memoryAlertRepo{s: s}
	s.historyRepo = &memoryHistoryRepo{s: s}
	return s
}

// Open is a no-op for memory storage.
func (s *MemoryStorage) Open() error { return nil }

// Close is a no-op for memory storage.
func (s *MemoryStorage) Close() error { return nil }

// Migrate is a no-op for memory storage.
func (s *MemoryStorage) Migrate() error { return nil }

// Alerts returns the alert repository.
func (s *MemoryStorage) Alerts() AlertRepository { return s.alertRepo }

// AlertHistory returns the history repository.
func (s *MemoryStorage) AlertHistory() AlertHistoryRepository { return s.historyRepo }

type memoryAlertRepo struct {
	s *MemoryStorage
}

func (r *memoryAlertRepo) Create(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if alert.IsActive {
		for _, a := range r.s.alerts {
			if a.IsActive && a.AreaKey == alert.AreaKey {
				return ErrDuplicateActive
			}
		}
	}

	alert.Version = 1
	r.s.alerts[alert.ID] = alert.Clone()
	r.s.appendLocked(entry)
	return nil
}

func (r *memoryAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.alerts[id]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

func (r *memoryAlertRepo) GetActiveByAreaKey(ctx context.Context, areaKey string) (*models.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.alerts {
		if a.IsActive && a.AreaKey == areaKey {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryAlertRepo) Update(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.alerts[alert.ID]
	if !ok || stored.Version != alert.Version {
		return ErrVersionConflict
	}

	alert.Version++
	r.s.alerts[alert.ID] = alert.Clone()
	r.s.appendLocked(entry)
	return nil
}

func (r *memoryAlertRepo) List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*models.Alert
	for _, a := range r.s.alerts {
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		if filter.Severity != "" && a.SeverityLevel != filter.Severity {
			continue
		}
		matched = append(matched, a.Clone())
	}

	// Newest first, matching the sqlite ORDER BY.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memoryAlertRepo) CountActiveBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[models.Severity]int64)
	for _, a := range r.s.alerts {
		if a.IsActive {
			counts[a.SeverityLevel]++
		}
	}
	return counts, nil
}

type memoryHistoryRepo struct {
	s *MemoryStorage
}

// appendLocked stores a copy of entry. Caller holds mu. A nil entry is a
// no-op, matching the alert repository's optional-entry contract.
func (s *MemoryStorage) appendLocked(entry *models.AlertHistoryEntry) {
	if entry == nil {
		return
	}
	e := *entry
	s.history[entry.AlertID] = append(s.history[entry.AlertID], &e)
}

func (r *memoryHistoryRepo) Append(ctx context.Context, entry *models.AlertHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.appendLocked(entry)
	return nil
}

func (r *memoryHistoryRepo) ListByAlert(ctx context.Context, alertID string, limit, offset int) ([]*models.AlertHistoryEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := r.s.history[alertID]
	out := make([]*models.AlertHistoryEntry, len(entries))
	for i, e := range entries {
		c := *e
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	total := int64(len(out))
	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *memoryHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, entries := range r.s.history {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.s.history, id)
		} else {
			r.s.history[id] = kept
		}
	}
	return deleted, nil
}
