package alerting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

// Config holds the engine defaults applied to areas without an existing
// alert.
type Config struct {
	// DefaultThreshold is the case count at which an area first qualifies
	// for an alert.
	DefaultThreshold int
	// AffectedRadiusKm is the fixed radius stamped on new alerts. The
	// engine never recomputes it.
	AffectedRadiusKm float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultThreshold: 200,
		AffectedRadiusKm: 50.0,
	}
}

// Validate checks the configuration. Invalid values are rejected here and
// never reach the classifier.
func (c *Config) Validate() error {
	if c.DefaultThreshold <= 0 {
		return &ConfigurationError{Field: "default_threshold", Reason: "must be positive"}
	}
	if c.AffectedRadiusKm <= 0 {
		return &ConfigurationError{Field: "affected_radius_km", Reason: "must be positive"}
	}
	return nil
}

// Engine reconciles area observations against stored alerts: it decides
// whether to create, update, deactivate, or leave state untouched, and
// appends an audit history entry for every change.
//
// All mutations for one area key are serialized through a per-key lock,
// covering both reconciliation and administrative edits. The storage layer's
// unique active-per-area constraint and version compare-and-swap back the
// same invariant against writers outside this process.
type Engine struct {
	store storage.Storage
	cfg   Config
	locks *keyLocks
	now   func() time.Time
}

// NewEngine creates an engine over the given store.
func NewEngine(store storage.Storage, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		locks: newKeyLocks(),
		now:   time.Now,
	}, nil
}

// SetClock overrides the engine clock for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Reconcile applies one observation at the current time.
func (e *Engine) Reconcile(ctx context.Context, obs *models.AreaObservation) (*Outcome, error) {
	return e.ReconcileAt(ctx, obs, e.now())
}

// ReconcileAt applies one observation at a specific time (useful for
// testing). The decision per the stored state:
//
//	no active alert, below threshold:  no-op
//	no active alert, at/over:          create, history "created"
//	active alert, at/over, unchanged:  no-op
//	active alert, at/over, changed:    update, history "severity_changed"
//	                                   or "count_updated"
//	active alert, below threshold:     deactivate, history "deactivated"
func (e *Engine) ReconcileAt(ctx context.Context, obs *models.AreaObservation, now time.Time) (*Outcome, error) {
	if err := obs.Validate(); err != nil {
		return nil, &ValidationError{AreaID: obs.AreaID, Err: err}
	}

	key := obs.AreaKey()
	unlock := e.locks.Lock(key)
	defer unlock()

	existing, err := e.store.Alerts().GetActiveByAreaKey(ctx, key)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get active alert", Err: err}
	}

	threshold := e.cfg.DefaultThreshold
	if existing != nil {
		threshold = existing.Threshold
	}
	severity, qualifies := Classify(obs.BleachingCount, threshold)

	switch {
	case existing == nil && !qualifies:
		return &Outcome{AreaKey: key}, nil
	case existing == nil:
		return e.createAlert(ctx, obs, key, threshold, severity, now)
	case qualifies:
		return e.updateAlert(ctx, existing, obs, severity, now)
	default:
		return e.deactivateAlert(ctx, existing, obs.BleachingCount, now)
	}
}

func (e *Engine) createAlert(ctx context.Context, obs *models.AreaObservation, key string, threshold int, severity models.Severity, now time.Time) (*Outcome, error) {
	alert := &models.Alert{
		ID:               uuid.New().String(),
		AreaKey:          key,
		AreaName:         obs.AreaName,
		Latitude:         obs.Latitude,
		Longitude:        obs.Longitude,
		BleachingCount:   obs.BleachingCount,
		Threshold:        threshold,
		SeverityLevel:    severity,
		AffectedRadiusKm: e.cfg.AffectedRadiusKm,
		Description: fmt.Sprintf("Bleaching threshold reached: %d cases detected in %s",
			obs.BleachingCount, obs.AreaName),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	entry := e.historyEntry(alert.ID, models.ChangeCreated, "", strconv.Itoa(obs.BleachingCount),
		fmt.Sprintf("New public alert created for %s: %d cases detected, severity %s",
			obs.AreaName, obs.BleachingCount, severity),
		now)

	// Alert and history land in one transaction; a stored alert with no
	// created entry cannot exist.
	if err := e.store.Alerts().Create(ctx, alert, entry); err != nil {
		if err == storage.ErrDuplicateActive {
			return nil, &InvariantViolationError{AreaKey: key, Err: err}
		}
		return nil, &StorageUnavailableError{Op: "create alert", Err: err}
	}

	return &Outcome{AreaKey: key, Change: models.ChangeCreated, Alert: alert.Clone()}, nil
}

func (e *Engine) updateAlert(ctx context.Context, existing *models.Alert, obs *models.AreaObservation, severity models.Severity, now time.Time) (*Outcome, error) {
	oldCount := existing.BleachingCount
	oldSeverity := existing.SeverityLevel

	if oldCount == obs.BleachingCount && oldSeverity == severity {
		return &Outcome{AreaKey: existing.AreaKey, Alert: existing.Clone()}, nil
	}

	existing.BleachingCount = obs.BleachingCount
	existing.SeverityLevel = severity
	existing.UpdatedAt = now

	var entry *models.AlertHistoryEntry
	change := models.ChangeCountUpdated
	if oldSeverity != severity {
		change = models.ChangeSeverityChanged
		entry = e.historyEntry(existing.ID, change, string(oldSeverity), string(severity),
			fmt.Sprintf("Severity changed from %s to %s at %d cases", oldSeverity, severity, obs.BleachingCount),
			now)
	} else {
		entry = e.historyEntry(existing.ID, change, strconv.Itoa(oldCount), strconv.Itoa(obs.BleachingCount),
			fmt.Sprintf("Alert updated: %d cases detected", obs.BleachingCount),
			now)
	}

	if err := e.store.Alerts().Update(ctx, existing, entry); err != nil {
		return nil, e.wrapUpdateErr(existing.AreaKey, err)
	}

	return &Outcome{
		AreaKey:          existing.AreaKey,
		Change:           change,
		Alert:            existing.Clone(),
		PreviousSeverity: oldSeverity,
		PreviousCount:    oldCount,
	}, nil
}

func (e *Engine) deactivateAlert(ctx context.Context, existing *models.Alert, count int, now time.Time) (*Outcome, error) {
	existing.IsActive = false
	existing.UpdatedAt = now

	entry := e.historyEntry(existing.ID, models.ChangeDeactivated, "true", "false",
		fmt.Sprintf("Case count %d fell below threshold %d", count, existing.Threshold),
		now)
	if err := e.store.Alerts().Update(ctx, existing, entry); err != nil {
		return nil, e.wrapUpdateErr(existing.AreaKey, err)
	}

	return &Outcome{
		AreaKey:       existing.AreaKey,
		Change:        models.ChangeDeactivated,
		Alert:         existing.Clone(),
		PreviousCount: existing.BleachingCount,
	}, nil
}

func (e *Engine) historyEntry(alertID string, change models.ChangeType, oldValue, newValue, description string, now time.Time) *models.AlertHistoryEntry {
	return &models.AlertHistoryEntry{
		ID:          uuid.New().String(),
		AlertID:     alertID,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: description,
		CreatedAt:   now,
	}
}

func (e *Engine) wrapUpdateErr(areaKey string, err error) error {
	switch err {
	case storage.ErrDuplicateActive, storage.ErrVersionConflict:
		// A conflicting write slipped past the per-key lock; that can only
		// happen if the serialization contract was broken somewhere.
		return &InvariantViolationError{AreaKey: areaKey, Err: err}
	default:
		return &StorageUnavailableError{Op: "update alert", Err: err}
	}
}
