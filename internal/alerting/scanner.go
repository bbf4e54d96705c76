package alerting

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/metrics"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

// Scanner drives one evaluation cycle: it feeds every observation through
// the engine, isolating per-area failures so one bad area never blocks the
// rest. Different areas are reconciled in parallel; the engine's per-key
// locks keep same-area work serialized.
type Scanner struct {
	engine *Engine
	// concurrency bounds how many areas reconcile in parallel.
	concurrency int
}

// CycleResult aggregates the state changes and failures of one cycle.
type CycleResult struct {
	// Outcomes holds only outcomes that changed alert state, in no
	// particular cross-area order.
	Outcomes []*Outcome
	// Errors holds per-area failures. Validation errors are skipped areas;
	// a storage-unavailable error means the remainder of the cycle was
	// abandoned for the scheduler to retry.
	Errors []error
	// Evaluated is the number of observations processed.
	Evaluated int
}

// Aborted reports whether the cycle hit a storage outage.
func (r *CycleResult) Aborted() bool {
	for _, err := range r.Errors {
		if IsStorageUnavailable(err) {
			return true
		}
	}
	return false
}

// NewScanner creates a scanner over the engine. concurrency <= 0 means
// sequential processing.
func NewScanner(engine *Engine, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scanner{engine: engine, concurrency: concurrency}
}

// RunCycle reconciles every observation once. Running the same observation
// set twice with no intervening change yields no outcomes on the second run.
func (s *Scanner) RunCycle(ctx context.Context, observations []models.AreaObservation) *CycleResult {
	start := time.Now()
	result := &CycleResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range observations {
		obs := observations[i]
		g.Go(func() error {
			// A storage outage elsewhere in the cycle cancels gctx; areas
			// not yet visited are deferred to the next cycle.
			if gctx.Err() != nil {
				return nil
			}

			outcome, err := s.engine.Reconcile(gctx, &obs)

			mu.Lock()
			defer mu.Unlock()
			result.Evaluated++

			if err != nil {
				result.Errors = append(result.Errors, err)
				metrics.ReconcileErrorsTotal.WithLabelValues(errorKind(err)).Inc()
				switch {
				case IsValidation(err):
					log.Printf("scanner: skipping area %q: %v", obs.AreaID, err)
					return nil
				case IsInvariantViolation(err):
					log.Printf("scanner: INVARIANT VIOLATION for area %q: %v", obs.AreaID, err)
					return nil
				default:
					log.Printf("scanner: aborting cycle: %v", err)
					return err
				}
			}

			if outcome.Changed() {
				result.Outcomes = append(result.Outcomes, outcome)
				metrics.OutcomesTotal.WithLabelValues(string(outcome.Change)).Inc()
			}
			return nil
		})
	}

	// The only error workers return is storage-unavailable, already
	// collected in result.Errors.
	_ = g.Wait()

	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	s.updateActiveGauge(ctx)

	log.Printf("scanner: cycle done: %d evaluated, %d changed, %d errors in %s",
		result.Evaluated, len(result.Outcomes), len(result.Errors), time.Since(start).Round(time.Millisecond))

	return result
}

func (s *Scanner) updateActiveGauge(ctx context.Context) {
	counts, err := s.engine.store.Alerts().CountActiveBySeverity(ctx)
	if err != nil {
		return
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	metrics.ActiveAlerts.Set(float64(total))
}
