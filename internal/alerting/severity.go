// Package alerting implements the alert reconciliation engine: severity
// classification, per-area create/update/deactivate decisions, audit history,
// and the cycle scanner that drives them.
package alerting

import "github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"

// Classify maps a case count and threshold to a severity tier. The second
// return value is false when the count is below threshold, which is not a
// valid alert severity.
//
// Bands are inclusive on the lower bound (exactly 2x threshold is high):
//
//	ratio >= 3.0        critical
//	2.0 <= ratio < 3.0  high
//	1.5 <= ratio < 2.0  medium
//	1.0 <= ratio < 1.5  low
//
// threshold > 0 is a precondition enforced at configuration load.
func Classify(count, threshold int) (models.Severity, bool) {
	ratio := float64(count) / float64(threshold)
	switch {
	case ratio >= 3.0:
		return models.SeverityCritical, true
	case ratio >= 2.0:
		return models.SeverityHigh, true
	case ratio >= 1.5:
		return models.SeverityMedium, true
	case ratio >= 1.0:
		return models.SeverityLow, true
	default:
		return "", false
	}
}
