package alerts

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// ValidateSeverity parses and validates a severity query value.
func ValidateSeverity(raw string) (models.Severity, error) {
	severity, ok := models.ParseSeverity(raw)
	if !ok {
		return "", fmt.Errorf("invalid severity %q", raw)
	}
	return severity, nil
}

// parseActiveFilter interprets the "active" query parameter. An empty value
// defaults to active alerts only; "false" includes deactivated records.
func parseActiveFilter(raw string) (bool, error) {
	if raw == "" {
		return true, nil
	}
	active, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid active filter %q", raw)
	}
	return active, nil
}

// parsePagination extracts page and per_page query parameters with bounds.
func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = defaultPerPage

	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			perPage = n
		}
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
