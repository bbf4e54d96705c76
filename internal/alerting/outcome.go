package alerting

import "github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"

// Notification message types consumed by the fan-out collaborators.
const (
	NotifyNewAlert     = "new_alert"
	NotifyAlertUpdated = "alert_updated"
)

// Outcome describes the result of reconciling one area observation.
// A zero Change means state was left untouched.
type Outcome struct {
	// AreaKey is the area this outcome belongs to.
	AreaKey string `json:"area_key"`
	// Change is the state change applied, empty for a no-op.
	Change models.ChangeType `json:"change_type,omitempty"`
	// Alert is a snapshot of the alert after the change. Nil when no alert
	// exists for the area.
	Alert *models.Alert `json:"alert,omitempty"`
	// PreviousSeverity holds the severity before a severity_changed outcome.
	PreviousSeverity models.Severity `json:"previous_severity,omitempty"`
	// PreviousCount holds the case count before an update outcome.
	PreviousCount int `json:"previous_count,omitempty"`
}

// Changed reports whether the outcome mutated alert state.
func (o *Outcome) Changed() bool {
	return o.Change != ""
}

// NotificationType returns the fan-out message type for the outcome, or an
// empty string for outcomes that produce no notification.
func (o *Outcome) NotificationType() string {
	switch o.Change {
	case models.ChangeCreated:
		return NotifyNewAlert
	case models.ChangeCountUpdated, models.ChangeSeverityChanged,
		models.ChangeDeactivated, models.ChangeReactivated:
		return NotifyAlertUpdated
	default:
		return ""
	}
}
