package models

import "time"

// ChangeType identifies what kind of change a history entry records.
type ChangeType string

const (
	ChangeCreated         ChangeType = "created"
	ChangeCountUpdated    ChangeType = "count_updated"
	ChangeSeverityChanged ChangeType = "severity_changed"
	ChangeDeactivated     ChangeType = "deactivated"
	ChangeReactivated     ChangeType = "reactivated"
)

// AlertHistoryEntry records one change to an alert. Entries are immutable
// once written and ordered by CreatedAt per AlertID; replaying them
// reconstructs the alert's field history.
type AlertHistoryEntry struct {
	ID          string     `json:"id"`
	AlertID     string     `json:"alert_id"`
	ChangeType  ChangeType `json:"change_type"`
	OldValue    string     `json:"old_value,omitempty"`
	NewValue    string     `json:"new_value,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
