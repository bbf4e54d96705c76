// Package scheduler drives periodic alert evaluation cycles.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

// Config contains scheduler configuration.
type Config struct {
	// Interval between evaluation cycles.
	Interval time.Duration
	// RetentionAge is how long history entries are kept. Zero disables
	// retention cleanup.
	RetentionAge time.Duration
	// RetentionInterval is how often the cleanup runs.
	RetentionInterval time.Duration
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = 15 * time.Minute
	}
	if c.RetentionInterval == 0 {
		c.RetentionInterval = 24 * time.Hour
	}
}

// Scheduler runs evaluation cycles on an interval, backing off while storage
// is unavailable, and prunes old history entries.
type Scheduler struct {
	config    Config
	scanner   *alerting.Scanner
	source    ObservationSource
	store     storage.Storage
	backoff   *Backoff
	onOutcome func(*alerting.Outcome)
}

// New creates a scheduler. onOutcome may be nil; when set it is invoked for
// every alert change a cycle produces.
func New(cfg Config, scanner *alerting.Scanner, source ObservationSource, store storage.Storage, onOutcome func(*alerting.Outcome)) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{
		config:    cfg,
		scanner:   scanner,
		source:    source,
		store:     store,
		backoff:   NewBackoff(),
		onOutcome: onOutcome,
	}
}

// Run blocks until ctx is cancelled. The first cycle runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("scheduler started, evaluating every %v", s.config.Interval)

	retention := s.startRetention(ctx)
	defer retention()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		timer.Reset(s.runOnce(ctx))
	}
}

// RunOnce executes a single evaluation cycle. Used by the one-shot CLI path.
func (s *Scheduler) RunOnce(ctx context.Context) (*alerting.CycleResult, error) {
	observations, err := s.source.Observations(ctx)
	if err != nil {
		return nil, err
	}

	result := s.scanner.RunCycle(ctx, observations)
	s.dispatch(result)
	return result, nil
}

// runOnce runs one cycle and returns the delay before the next one.
func (s *Scheduler) runOnce(ctx context.Context) time.Duration {
	result, err := s.RunOnce(ctx)
	if err != nil {
		delay := s.backoff.Next()
		log.Printf("observation source error: %v, retrying in %v", err, delay)
		return delay
	}

	if result.Aborted() {
		delay := s.backoff.Next()
		log.Printf("cycle aborted by storage outage, retrying in %v (attempt %d)", delay, s.backoff.Attempt())
		return delay
	}

	s.backoff.Reset()
	return s.config.Interval
}

func (s *Scheduler) dispatch(result *alerting.CycleResult) {
	if s.onOutcome == nil {
		return
	}
	for _, out := range result.Outcomes {
		s.onOutcome(out)
	}
}

// startRetention launches the history cleanup loop and returns a stop func.
func (s *Scheduler) startRetention(ctx context.Context) func() {
	if s.config.RetentionAge <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.config.RetentionInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-s.config.RetentionAge)
				deleted, err := s.store.AlertHistory().DeleteBefore(ctx, cutoff)
				if err != nil {
					log.Printf("history retention cleanup error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("history retention: deleted %d entries older than %v", deleted, cutoff.Format(time.RFC3339))
				}
			}
		}
	}()

	return func() { <-done }
}
