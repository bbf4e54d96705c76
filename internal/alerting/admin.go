package alerting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

// Administrative mutations run through the same per-key serialization as
// reconciliation, so a cycle and an admin edit for one area can never
// interleave.

// AdminCreateRequest describes an administratively created alert.
type AdminCreateRequest struct {
	AreaID         string
	AreaName       string
	Latitude       float64
	Longitude      float64
	BleachingCount int
	// Threshold overrides the configured default when positive.
	Threshold   int
	Description string
}

// AdminUpdateRequest describes an administrative edit. Nil fields are left
// unchanged. Severity is always recomputed from the resulting count; it is
// not directly editable.
type AdminUpdateRequest struct {
	AreaName       *string
	Description    *string
	BleachingCount *int
}

// AdminCreate creates an alert directly. The count must be at or over the
// threshold; severity comes from the classifier like every other path.
func (e *Engine) AdminCreate(ctx context.Context, req AdminCreateRequest) (*Outcome, error) {
	obs := &models.AreaObservation{
		AreaID:         req.AreaID,
		AreaName:       req.AreaName,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		BleachingCount: req.BleachingCount,
	}
	if err := obs.Validate(); err != nil {
		return nil, &ValidationError{AreaID: req.AreaID, Err: err}
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = e.cfg.DefaultThreshold
	}
	severity, qualifies := Classify(req.BleachingCount, threshold)
	if !qualifies {
		return nil, &ValidationError{AreaID: req.AreaID,
			Err: fmt.Errorf("count %d is below threshold %d", req.BleachingCount, threshold)}
	}

	key := obs.AreaKey()
	unlock := e.locks.Lock(key)
	defer unlock()

	existing, err := e.store.Alerts().GetActiveByAreaKey(ctx, key)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get active alert", Err: err}
	}
	if existing != nil {
		return nil, &ValidationError{AreaID: req.AreaID,
			Err: fmt.Errorf("active alert already exists for area")}
	}

	now := e.now()
	alert := &models.Alert{
		ID:               uuid.New().String(),
		AreaKey:          key,
		AreaName:         req.AreaName,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		BleachingCount:   req.BleachingCount,
		Threshold:        threshold,
		SeverityLevel:    severity,
		AffectedRadiusKm: e.cfg.AffectedRadiusKm,
		Description:      req.Description,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	entry := e.historyEntry(alert.ID, models.ChangeCreated, "", strconv.Itoa(req.BleachingCount),
		fmt.Sprintf("New public alert created for %s: %d cases detected, severity %s (administrative)",
			req.AreaName, req.BleachingCount, severity),
		now)

	if err := e.store.Alerts().Create(ctx, alert, entry); err != nil {
		if err == storage.ErrDuplicateActive {
			return nil, &InvariantViolationError{AreaKey: key, Err: err}
		}
		return nil, &StorageUnavailableError{Op: "create alert", Err: err}
	}

	return &Outcome{AreaKey: key, Change: models.ChangeCreated, Alert: alert.Clone()}, nil
}

// AdminUpdate edits an alert's name, description, or count. A count change
// below threshold deactivates the alert, same as reconciliation would.
func (e *Engine) AdminUpdate(ctx context.Context, alertID string, req AdminUpdateRequest) (*Outcome, error) {
	alert, err := e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert not found")}
	}

	unlock := e.locks.Lock(alert.AreaKey)
	defer unlock()

	// Re-read under the lock to avoid clobbering a concurrent change.
	alert, err = e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert not found")}
	}

	if req.AreaName != nil {
		alert.AreaName = *req.AreaName
	}
	if req.Description != nil {
		alert.Description = *req.Description
	}

	if req.BleachingCount == nil || *req.BleachingCount == alert.BleachingCount {
		if req.AreaName == nil && req.Description == nil {
			return &Outcome{AreaKey: alert.AreaKey, Alert: alert.Clone()}, nil
		}
		// Cosmetic edit, no field the audit trail tracks.
		alert.UpdatedAt = e.now()
		if err := e.store.Alerts().Update(ctx, alert, nil); err != nil {
			return nil, e.wrapUpdateErr(alert.AreaKey, err)
		}
		return &Outcome{AreaKey: alert.AreaKey, Alert: alert.Clone()}, nil
	}

	count := *req.BleachingCount
	if count < 0 {
		return nil, &ValidationError{AreaID: alert.AreaKey,
			Err: fmt.Errorf("bleaching count must not be negative, got %d", count)}
	}

	if !alert.IsActive {
		return nil, &ValidationError{AreaID: alert.AreaKey,
			Err: fmt.Errorf("cannot change count of a deactivated alert")}
	}

	now := e.now()
	severity, qualifies := Classify(count, alert.Threshold)
	if !qualifies {
		return e.deactivateAlert(ctx, alert, count, now)
	}

	obs := &models.AreaObservation{
		AreaID:         alert.AreaKey,
		AreaName:       alert.AreaName,
		Latitude:       alert.Latitude,
		Longitude:      alert.Longitude,
		BleachingCount: count,
	}
	return e.updateAlert(ctx, alert, obs, severity, now)
}

// AdminDeactivate closes an alert administratively.
func (e *Engine) AdminDeactivate(ctx context.Context, alertID, reason string) (*Outcome, error) {
	alert, err := e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert not found")}
	}

	unlock := e.locks.Lock(alert.AreaKey)
	defer unlock()

	alert, err = e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil || !alert.IsActive {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert is not active")}
	}

	now := e.now()
	alert.IsActive = false
	alert.UpdatedAt = now

	if reason == "" {
		reason = "Alert closed by administrator"
	}
	entry := e.historyEntry(alert.ID, models.ChangeDeactivated, "true", "false", reason, now)
	if err := e.store.Alerts().Update(ctx, alert, entry); err != nil {
		return nil, e.wrapUpdateErr(alert.AreaKey, err)
	}

	return &Outcome{AreaKey: alert.AreaKey, Change: models.ChangeDeactivated, Alert: alert.Clone()}, nil
}

// AdminReactivate reopens a deactivated alert. It is rejected when another
// active alert holds the area key or when the stored count no longer
// qualifies for any severity tier.
func (e *Engine) AdminReactivate(ctx context.Context, alertID string) (*Outcome, error) {
	alert, err := e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert not found")}
	}

	unlock := e.locks.Lock(alert.AreaKey)
	defer unlock()

	alert, err = e.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get alert", Err: err}
	}
	if alert == nil || alert.IsActive {
		return nil, &ValidationError{AreaID: alertID, Err: fmt.Errorf("alert is not deactivated")}
	}

	active, err := e.store.Alerts().GetActiveByAreaKey(ctx, alert.AreaKey)
	if err != nil {
		return nil, &StorageUnavailableError{Op: "get active alert", Err: err}
	}
	if active != nil {
		return nil, &ValidationError{AreaID: alert.AreaKey,
			Err: fmt.Errorf("another active alert exists for area")}
	}

	severity, qualifies := Classify(alert.BleachingCount, alert.Threshold)
	if !qualifies {
		return nil, &ValidationError{AreaID: alert.AreaKey,
			Err: fmt.Errorf("count %d is below threshold %d", alert.BleachingCount, alert.Threshold)}
	}

	now := e.now()
	alert.IsActive = true
	alert.SeverityLevel = severity
	alert.UpdatedAt = now

	entry := e.historyEntry(alert.ID, models.ChangeReactivated, "false", "true",
		"Alert reactivated by administrator", now)
	if err := e.store.Alerts().Update(ctx, alert, entry); err != nil {
		return nil, e.wrapUpdateErr(alert.AreaKey, err)
	}

	return &Outcome{AreaKey: alert.AreaKey, Change: models.ChangeReactivated, Alert: alert.Clone()}, nil
}
