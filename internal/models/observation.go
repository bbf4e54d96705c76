package models

import (
	"fmt"
	"strings"
	"time"
)

// AreaObservation is one per-area bleaching case count supplied by the
// observation source each evaluation cycle. Observations are ephemeral and
// never persisted by the engine.
type AreaObservation struct {
	AreaID         string    `json:"area_id" yaml:"area_id"`
	AreaName       string    `json:"area_name" yaml:"area_name"`
	Latitude       float64   `json:"latitude" yaml:"latitude"`
	Longitude      float64   `json:"longitude" yaml:"longitude"`
	BleachingCount int       `json:"bleaching_count" yaml:"bleaching_count"`
	ObservedAt     time.Time `json:"observed_at" yaml:"observed_at"`
}

// AreaKey derives the deduplication key for the observation's area.
// Matching is exact key equality; no fuzzy geographic merging.
func (o *AreaObservation) AreaKey() string {
	return NormalizeAreaKey(o.AreaID)
}

// NormalizeAreaKey canonicalizes an area identifier for key comparison.
func NormalizeAreaKey(areaID string) string {
	return strings.ToLower(strings.TrimSpace(areaID))
}

// Validate checks the observation for malformed fields.
func (o *AreaObservation) Validate() error {
	if strings.TrimSpace(o.AreaID) == "" {
		return fmt.Errorf("area id is required")
	}
	if o.BleachingCount < 0 {
		return fmt.Errorf("bleaching count must not be negative, got %d", o.BleachingCount)
	}
	if o.Latitude < -90 || o.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", o.Longitude)
	}
	return nil
}
