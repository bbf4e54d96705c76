// Package models defines domain models for the coral alert service.
package models

import "time"

// Severity represents alert severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return "", false
	}
}

// Alert is a public bleaching alert for one geographic area.
// At most one alert with IsActive=true exists per AreaKey at any time.
type Alert struct {
	ID               string    `json:"id"`
	AreaKey          string    `json:"area_key"`
	AreaName         string    `json:"area_name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	BleachingCount   int       `json:"bleaching_count"`
	Threshold        int       `json:"threshold"`
	SeverityLevel    Severity  `json:"severity_level"`
	AffectedRadiusKm float64   `json:"affected_radius_km"`
	Description      string    `json:"description,omitempty"`
	IsActive         bool      `json:"is_active"`
	// Version increments on every mutation; storage updates compare-and-swap
	// on it to detect lost writes.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"last_updated"`
}

// Clone returns a copy of the alert.
func (a *Alert) Clone() *Alert {
	c := *a
	return &c
}
