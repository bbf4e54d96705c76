package alerting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	engine, err := NewEngine(store, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, store
}

func manilaBay(count int) *models.AreaObservation {
	return &models.AreaObservation{
		AreaID:         "manila-bay",
		AreaName:       "Manila Bay",
		Latitude:       14.5,
		Longitude:      120.9,
		BleachingCount: count,
		ObservedAt:     testClock,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults are valid", cfg: DefaultConfig()},
		{name: "zero threshold", cfg: Config{DefaultThreshold: 0, AffectedRadiusKm: 50}, wantErr: true},
		{name: "negative threshold", cfg: Config{DefaultThreshold: -5, AffectedRadiusKm: 50}, wantErr: true},
		{name: "zero radius", cfg: Config{DefaultThreshold: 200, AffectedRadiusKm: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ce *ConfigurationError
				if !errors.As(err, &ce) {
					t.Errorf("Validate() error type = %T, want *ConfigurationError", err)
				}
			}
		})
	}
}

func TestReconcileCreatesAlert(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	outcome, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("ReconcileAt: %v", err)
	}

	if outcome.Change != models.ChangeCreated {
		t.Fatalf("change = %q, want created", outcome.Change)
	}
	alert := outcome.Alert
	if alert == nil {
		t.Fatal("outcome has no alert snapshot")
	}
	if !alert.IsActive {
		t.Error("new alert is not active")
	}
	if alert.SeverityLevel != models.SeverityLow {
		t.Errorf("severity = %q, want low for 250/200", alert.SeverityLevel)
	}
	if alert.BleachingCount != 250 {
		t.Errorf("count = %d, want 250", alert.BleachingCount)
	}
	if alert.Threshold != 200 {
		t.Errorf("threshold = %d, want default 200", alert.Threshold)
	}
	if alert.AffectedRadiusKm != 50.0 {
		t.Errorf("radius = %v, want 50.0", alert.AffectedRadiusKm)
	}
	if !alert.CreatedAt.Equal(testClock) || !alert.UpdatedAt.Equal(testClock) {
		t.Errorf("timestamps = %v / %v, want injected clock", alert.CreatedAt, alert.UpdatedAt)
	}
	if outcome.NotificationType() != NotifyNewAlert {
		t.Errorf("notification type = %q, want %q", outcome.NotificationType(), NotifyNewAlert)
	}

	entries, _, err := store.AlertHistory().ListByAlert(ctx, alert.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListByAlert: %v", err)
	}
	if len(entries) != 1 || entries[0].ChangeType != models.ChangeCreated {
		t.Fatalf("history = %+v, want one created entry", entries)
	}
}

func TestReconcileNoAlertBelowThreshold(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	outcome, err := engine.ReconcileAt(ctx, manilaBay(150), testClock)
	if err != nil {
		t.Fatalf("ReconcileAt: %v", err)
	}
	if outcome.Changed() {
		t.Fatalf("change = %q, want no-op", outcome.Change)
	}

	alerts, total, err := store.Alerts().List(ctx, storage.AlertFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(alerts) != 0 {
		t.Fatalf("alerts created for below-threshold area: %d", total)
	}
}

func TestReconcileUnchangedObservationIsNoOp(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.ReconcileAt(ctx, manilaBay(250), testClock); err != nil {
		t.Fatalf("first ReconcileAt: %v", err)
	}
	later := testClock.Add(15 * time.Minute)
	outcome, err := engine.ReconcileAt(ctx, manilaBay(250), later)
	if err != nil {
		t.Fatalf("second ReconcileAt: %v", err)
	}
	if outcome.Changed() {
		t.Fatalf("change = %q, want no-op for unchanged observation", outcome.Change)
	}

	// UpdatedAt must not move on a no-op.
	alert, err := store.Alerts().GetActiveByAreaKey(ctx, "manila-bay")
	if err != nil {
		t.Fatalf("GetActiveByAreaKey: %v", err)
	}
	if !alert.UpdatedAt.Equal(testClock) {
		t.Errorf("UpdatedAt = %v, want untouched %v", alert.UpdatedAt, testClock)
	}
}

func TestReconcileCountUpdateSameSeverity(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.ReconcileAt(ctx, manilaBay(250), testClock); err != nil {
		t.Fatalf("create: %v", err)
	}
	later := testClock.Add(15 * time.Minute)
	outcome, err := engine.ReconcileAt(ctx, manilaBay(260), later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if outcome.Change != models.ChangeCountUpdated {
		t.Fatalf("change = %q, want count_updated", outcome.Change)
	}
	if outcome.PreviousCount != 250 || outcome.Alert.BleachingCount != 260 {
		t.Errorf("count %d -> %d, want 250 -> 260", outcome.PreviousCount, outcome.Alert.BleachingCount)
	}
	if outcome.Alert.SeverityLevel != models.SeverityLow {
		t.Errorf("severity = %q, want low", outcome.Alert.SeverityLevel)
	}
	if !outcome.Alert.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", outcome.Alert.UpdatedAt, later)
	}

	entries, _, _ := store.AlertHistory().ListByAlert(ctx, outcome.Alert.ID, 0, 0)
	last := entries[len(entries)-1]
	if last.ChangeType != models.ChangeCountUpdated || last.OldValue != "250" || last.NewValue != "260" {
		t.Errorf("history entry = %+v, want count_updated 250 -> 260", last)
	}
}

func TestReconcileSeverityChange(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.ReconcileAt(ctx, manilaBay(250), testClock); err != nil {
		t.Fatalf("create: %v", err)
	}
	outcome, err := engine.ReconcileAt(ctx, manilaBay(650), testClock.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if outcome.Change != models.ChangeSeverityChanged {
		t.Fatalf("change = %q, want severity_changed", outcome.Change)
	}
	if outcome.Alert.SeverityLevel != models.SeverityCritical {
		t.Errorf("severity = %q, want critical for 650/200", outcome.Alert.SeverityLevel)
	}
	if outcome.Alert.BleachingCount != 650 {
		t.Errorf("count = %d, want 650", outcome.Alert.BleachingCount)
	}
	if outcome.PreviousSeverity != models.SeverityLow {
		t.Errorf("previous severity = %q, want low", outcome.PreviousSeverity)
	}
	if outcome.NotificationType() != NotifyAlertUpdated {
		t.Errorf("notification type = %q, want %q", outcome.NotificationType(), NotifyAlertUpdated)
	}

	entries, _, _ := store.AlertHistory().ListByAlert(ctx, outcome.Alert.ID, 0, 0)
	last := entries[len(entries)-1]
	if last.ChangeType != models.ChangeSeverityChanged || last.OldValue != "low" || last.NewValue != "critical" {
		t.Errorf("history entry = %+v, want severity_changed low -> critical", last)
	}
}

func TestReconcileDeactivatesBelowThreshold(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	outcome, err := engine.ReconcileAt(ctx, manilaBay(150), testClock.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if outcome.Change != models.ChangeDeactivated {
		t.Fatalf("change = %q, want deactivated", outcome.Change)
	}
	if outcome.Alert.IsActive {
		t.Error("alert still active after deactivation")
	}

	// Deactivated alerts stay queryable but leave active listings.
	active, err := store.Alerts().GetActiveByAreaKey(ctx, "manila-bay")
	if err != nil {
		t.Fatalf("GetActiveByAreaKey: %v", err)
	}
	if active != nil {
		t.Error("deactivated alert still returned as active")
	}
	byID, err := store.Alerts().GetByID(ctx, created.Alert.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID == nil {
		t.Fatal("deactivated alert was deleted")
	}

	entries, _, _ := store.AlertHistory().ListByAlert(ctx, created.Alert.ID, 0, 0)
	last := entries[len(entries)-1]
	if last.ChangeType != models.ChangeDeactivated || last.OldValue != "true" || last.NewValue != "false" {
		t.Errorf("history entry = %+v, want deactivated true -> false", last)
	}
}

func TestReconcileNewAlertAfterDeactivation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.ReconcileAt(ctx, manilaBay(150), testClock.Add(time.Hour)); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second, err := engine.ReconcileAt(ctx, manilaBay(300), testClock.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}

	if second.Change != models.ChangeCreated {
		t.Fatalf("change = %q, want created", second.Change)
	}
	if second.Alert.ID == first.Alert.ID {
		t.Error("re-created alert reused the deactivated alert's id")
	}
}

func TestReconcileValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		obs  *models.AreaObservation
	}{
		{name: "missing area id", obs: &models.AreaObservation{AreaName: "Nowhere", BleachingCount: 300}},
		{name: "negative count", obs: &models.AreaObservation{AreaID: "x", AreaName: "X", BleachingCount: -1}},
		{name: "latitude out of range", obs: &models.AreaObservation{AreaID: "x", Latitude: 95, BleachingCount: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ReconcileAt(ctx, tt.obs, testClock)
			if !IsValidation(err) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestReconcileAreaKeyNormalization(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	obs := manilaBay(250)
	obs.AreaID = "  Manila-Bay "
	if _, err := engine.ReconcileAt(ctx, obs, testClock); err != nil {
		t.Fatalf("ReconcileAt: %v", err)
	}

	alert, err := store.Alerts().GetActiveByAreaKey(ctx, "manila-bay")
	if err != nil {
		t.Fatalf("GetActiveByAreaKey: %v", err)
	}
	if alert == nil {
		t.Fatal("area key was not normalized")
	}
}

func TestConcurrentReconcileCreatesOneAlert(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	created := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := engine.Reconcile(ctx, manilaBay(250))
			if err != nil {
				t.Errorf("Reconcile: %v", err)
				return
			}
			if outcome.Change == models.ChangeCreated {
				created <- outcome.Alert.ID
			}
		}()
	}
	wg.Wait()
	close(created)

	var ids []string
	for id := range created {
		ids = append(ids, id)
	}
	if len(ids) != 1 {
		t.Fatalf("%d alerts created concurrently, want exactly 1", len(ids))
	}

	_, total, err := store.Alerts().List(ctx, storage.AlertFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("%d active alerts stored, want 1", total)
	}
}

// replayHistory rebuilds the tracked alert fields from the audit trail.
func replayHistory(t *testing.T, entries []*models.AlertHistoryEntry) (count int, severity models.Severity, active bool) {
	t.Helper()
	for _, e := range entries {
		switch e.ChangeType {
		case models.ChangeCreated:
			c, err := strconv.Atoi(e.NewValue)
			if err != nil {
				t.Fatalf("created entry new_value %q: %v", e.NewValue, err)
			}
			count = c
			active = true
			idx := strings.LastIndex(e.Description, "severity ")
			if idx < 0 {
				t.Fatalf("created entry description %q has no severity", e.Description)
			}
			severity = models.Severity(strings.Fields(e.Description[idx+len("severity "):])[0])
		case models.ChangeCountUpdated:
			c, err := strconv.Atoi(e.NewValue)
			if err != nil {
				t.Fatalf("count_updated entry new_value %q: %v", e.NewValue, err)
			}
			count = c
		case models.ChangeSeverityChanged:
			severity = models.Severity(e.NewValue)
			idx := strings.LastIndex(e.Description, "at ")
			if idx >= 0 {
				var c int
				if _, err := fmt.Sscanf(e.Description[idx:], "at %d cases", &c); err == nil {
					count = c
				}
			}
		case models.ChangeDeactivated:
			active = false
		case models.ChangeReactivated:
			active = true
		}
	}
	return count, severity, active
}

func TestHistoryReplayReconstructsAlert(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	steps := []int{250, 260, 650, 400, 150}
	now := testClock
	var alertID string
	for _, count := range steps {
		outcome, err := engine.ReconcileAt(ctx, manilaBay(count), now)
		if err != nil {
			t.Fatalf("ReconcileAt(%d): %v", count, err)
		}
		if outcome.Alert != nil {
			alertID = outcome.Alert.ID
		}
		now = now.Add(15 * time.Minute)
	}

	alert, err := store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	entries, _, err := store.AlertHistory().ListByAlert(ctx, alertID, 0, 0)
	if err != nil {
		t.Fatalf("ListByAlert: %v", err)
	}

	count, severity, active := replayHistory(t, entries)
	if count != alert.BleachingCount {
		t.Errorf("replayed count = %d, stored %d", count, alert.BleachingCount)
	}
	if severity != alert.SeverityLevel {
		t.Errorf("replayed severity = %q, stored %q", severity, alert.SeverityLevel)
	}
	if active != alert.IsActive {
		t.Errorf("replayed active = %v, stored %v", active, alert.IsActive)
	}

	// Entries are strictly ordered by creation time.
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Fatalf("history out of order at %d: %v before %v", i, entries[i].CreatedAt, entries[i-1].CreatedAt)
		}
	}
}

// erroringStore wraps MemoryStorage and injects repository failures.
type erroringStore struct {
	*storage.MemoryStorage
	getActiveErr error
	createErr    error
	updateErr    error
}

func (s *erroringStore) Alerts() storage.AlertRepository {
	return &erroringAlertRepo{inner: s.MemoryStorage.Alerts(), s: s}
}

type erroringAlertRepo struct {
	inner storage.AlertRepository
	s     *erroringStore
}

func (r *erroringAlertRepo) Create(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	if r.s.createErr != nil {
		return r.s.createErr
	}
	return r.inner.Create(ctx, alert, entry)
}

func (r *erroringAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *erroringAlertRepo) GetActiveByAreaKey(ctx context.Context, areaKey string) (*models.Alert, error) {
	if r.s.getActiveErr != nil {
		return nil, r.s.getActiveErr
	}
	return r.inner.GetActiveByAreaKey(ctx, areaKey)
}

func (r *erroringAlertRepo) Update(ctx context.Context, alert *models.Alert, entry *models.AlertHistoryEntry) error {
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	return r.inner.Update(ctx, alert, entry)
}

func (r *erroringAlertRepo) List(ctx context.Context, filter storage.AlertFilter) ([]*models.Alert, int64, error) {
	return r.inner.List(ctx, filter)
}

func (r *erroringAlertRepo) CountActiveBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	return r.inner.CountActiveBySeverity(ctx)
}

func TestReconcileStorageUnavailable(t *testing.T) {
	store := &erroringStore{
		MemoryStorage: storage.NewMemoryStorage(),
		getActiveErr:  errors.New("connection refused"),
	}
	engine, err := NewEngine(store, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, err = engine.ReconcileAt(context.Background(), manilaBay(250), testClock)
	if !IsStorageUnavailable(err) {
		t.Fatalf("error = %v, want StorageUnavailableError", err)
	}
}

func TestReconcileDuplicateActiveIsInvariantViolation(t *testing.T) {
	store := &erroringStore{
		MemoryStorage: storage.NewMemoryStorage(),
		createErr:     storage.ErrDuplicateActive,
	}
	engine, err := NewEngine(store, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, err = engine.ReconcileAt(context.Background(), manilaBay(250), testClock)
	if !IsInvariantViolation(err) {
		t.Fatalf("error = %v, want InvariantViolationError", err)
	}
}

func TestReconcileRetryAfterFailedCreate(t *testing.T) {
	store := &erroringStore{
		MemoryStorage: storage.NewMemoryStorage(),
		createErr:     errors.New("disk I/O error"),
	}
	engine, err := NewEngine(store, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()

	if _, err := engine.ReconcileAt(ctx, manilaBay(250), testClock); !IsStorageUnavailable(err) {
		t.Fatalf("error = %v, want StorageUnavailableError", err)
	}

	// A failed create leaves nothing behind, so the retry starts clean.
	_, total, err := store.Alerts().List(ctx, storage.AlertFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 {
		t.Fatalf("%d alerts stored after failed create, want 0", total)
	}

	store.createErr = nil
	outcome, err := engine.ReconcileAt(ctx, manilaBay(250), testClock.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("retry ReconcileAt: %v", err)
	}
	if outcome.Change != models.ChangeCreated {
		t.Fatalf("retry change = %q, want created", outcome.Change)
	}
	entries, _, err := store.AlertHistory().ListByAlert(ctx, outcome.Alert.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListByAlert: %v", err)
	}
	if len(entries) != 1 || entries[0].ChangeType != models.ChangeCreated {
		t.Fatalf("history after retry = %+v, want one created entry", entries)
	}
}

func TestReconcileRetryAfterFailedUpdate(t *testing.T) {
	store := &erroringStore{MemoryStorage: storage.NewMemoryStorage()}
	engine, err := NewEngine(store, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()

	created, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.updateErr = errors.New("disk I/O error")
	if _, err := engine.ReconcileAt(ctx, manilaBay(650), testClock.Add(15*time.Minute)); !IsStorageUnavailable(err) {
		t.Fatalf("error = %v, want StorageUnavailableError", err)
	}

	// The failed write changed neither the alert nor its audit trail.
	stored, err := store.Alerts().GetByID(ctx, created.Alert.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.BleachingCount != 250 || stored.SeverityLevel != models.SeverityLow {
		t.Fatalf("alert after failed update = %d/%q, want 250/low", stored.BleachingCount, stored.SeverityLevel)
	}
	entries, _, err := store.AlertHistory().ListByAlert(ctx, created.Alert.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListByAlert: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history after failed update = %d entries, want 1", len(entries))
	}

	store.updateErr = nil
	outcome, err := engine.ReconcileAt(ctx, manilaBay(650), testClock.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("retry ReconcileAt: %v", err)
	}
	if outcome.Change != models.ChangeSeverityChanged {
		t.Fatalf("retry change = %q, want severity_changed", outcome.Change)
	}
	entries, _, err = store.AlertHistory().ListByAlert(ctx, created.Alert.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListByAlert: %v", err)
	}
	if len(entries) != 2 || entries[1].ChangeType != models.ChangeSeverityChanged {
		t.Fatalf("history after retry = %+v, want created then severity_changed", entries)
	}
}

func TestAdminDeactivateAndReactivate(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deactivated, err := engine.AdminDeactivate(ctx, created.Alert.ID, "Field survey disproved the readings")
	if err != nil {
		t.Fatalf("AdminDeactivate: %v", err)
	}
	if deactivated.Change != models.ChangeDeactivated || deactivated.Alert.IsActive {
		t.Fatalf("deactivate outcome = %+v", deactivated)
	}

	// Deactivating twice is rejected.
	if _, err := engine.AdminDeactivate(ctx, created.Alert.ID, ""); !IsValidation(err) {
		t.Fatalf("second deactivate error = %v, want ValidationError", err)
	}

	reactivated, err := engine.AdminReactivate(ctx, created.Alert.ID)
	if err != nil {
		t.Fatalf("AdminReactivate: %v", err)
	}
	if reactivated.Change != models.ChangeReactivated || !reactivated.Alert.IsActive {
		t.Fatalf("reactivate outcome = %+v", reactivated)
	}

	entries, _, _ := store.AlertHistory().ListByAlert(ctx, created.Alert.ID, 0, 0)
	var types []models.ChangeType
	for _, e := range entries {
		types = append(types, e.ChangeType)
	}
	want := []models.ChangeType{models.ChangeCreated, models.ChangeDeactivated, models.ChangeReactivated}
	if len(types) != len(want) {
		t.Fatalf("history types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("history types = %v, want %v", types, want)
		}
	}
}

func TestAdminReactivateBlockedByActiveAlert(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.ReconcileAt(ctx, manilaBay(100), testClock.Add(time.Hour)); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second, err := engine.ReconcileAt(ctx, manilaBay(300), testClock.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if second.Alert.ID == first.Alert.ID {
		t.Fatal("expected distinct alert ids")
	}

	if _, err := engine.AdminReactivate(ctx, first.Alert.ID); !IsValidation(err) {
		t.Fatalf("reactivate error = %v, want ValidationError while another alert is active", err)
	}
}

func TestAdminCreate(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	outcome, err := engine.AdminCreate(ctx, AdminCreateRequest{
		AreaID:         "boracay",
		AreaName:       "Boracay",
		Latitude:       11.96,
		Longitude:      121.92,
		BleachingCount: 500,
		Threshold:      100,
	})
	if err != nil {
		t.Fatalf("AdminCreate: %v", err)
	}
	if outcome.Alert.SeverityLevel != models.SeverityCritical {
		t.Errorf("severity = %q, want critical for 500/100", outcome.Alert.SeverityLevel)
	}
	if outcome.Alert.Threshold != 100 {
		t.Errorf("threshold = %d, want per-area override 100", outcome.Alert.Threshold)
	}

	// Below-threshold admin creation is rejected.
	_, err = engine.AdminCreate(ctx, AdminCreateRequest{
		AreaID: "elsewhere", AreaName: "Elsewhere", BleachingCount: 10,
	})
	if !IsValidation(err) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	// Duplicate admin creation for the same area is rejected.
	_, err = engine.AdminCreate(ctx, AdminCreateRequest{
		AreaID: "boracay", AreaName: "Boracay", BleachingCount: 400, Threshold: 100,
	})
	if !IsValidation(err) {
		t.Fatalf("error = %v, want ValidationError for duplicate area", err)
	}
}

func TestAdminUpdateCountDeactivatesBelowThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	low := 50
	outcome, err := engine.AdminUpdate(ctx, created.Alert.ID, AdminUpdateRequest{BleachingCount: &low})
	if err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if outcome.Change != models.ChangeDeactivated || outcome.Alert.IsActive {
		t.Fatalf("outcome = %+v, want deactivation", outcome)
	}
}

func TestAdminUpdateCountRecomputesSeverity(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.ReconcileAt(ctx, manilaBay(250), testClock)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	high := 450
	outcome, err := engine.AdminUpdate(ctx, created.Alert.ID, AdminUpdateRequest{BleachingCount: &high})
	if err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if outcome.Change != models.ChangeSeverityChanged {
		t.Fatalf("change = %q, want severity_changed", outcome.Change)
	}
	if outcome.Alert.SeverityLevel != models.SeverityHigh {
		t.Errorf("severity = %q, want high for 450/200", outcome.Alert.SeverityLevel)
	}
}
