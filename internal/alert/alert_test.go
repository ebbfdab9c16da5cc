package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/database"
	"github.com/nerrad567/doorgate-core/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

// failingRepo rejects every write.
type failingRepo struct{}

func (failingRepo) Create(context.Context, *Alert) error { return errors.New("disk full") }
func (failingRepo) List(context.Context, Filter) ([]Alert, error) {
	return nil, errors.New("disk full")
}
func (failingRepo) Resolve(context.Context, string, string, time.Time) error {
	return errors.New("disk full")
}

// recordingLogger captures log calls by level.
type recordingLogger struct {
	mu    sync.Mutex
	calls []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, level+":"+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

type recordingTelemetry struct {
	types []string
}

func (r *recordingTelemetry) RecordAlert(alertType, _ string, _ time.Time) {
	r.types = append(r.types, alertType)
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		alertType string
		want      Severity
	}{
		{TypeDoorForced, SeverityCritical},
		{TypeTamperDetected, SeverityCritical},
		{TypeDoorLeftOpen, SeverityWarning},
		{TypePowerIssue, SeverityWarning},
		{TypeDeviceOffline, SeverityWarning},
		{TypeUnauthorizedAccess, SeverityMedium},
		{TypeMQTTConnectionFailed, SeverityCritical},
		{"battery_low", SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.alertType, func(t *testing.T) {
			if got := SeverityFor(tt.alertType); got != tt.want {
				t.Errorf("SeverityFor(%q) = %q, want %q", tt.alertType, got, tt.want)
			}
		})
	}
}

func TestEmitter_EmitPersists(t *testing.T) {
	repo := newTestRepo(t)
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tel := &recordingTelemetry{}
	log := &recordingLogger{}

	e := NewEmitter(repo, clock.Fake(start))
	e.SetTelemetry(tel)
	e.SetLogger(log)
	ctx := context.Background()

	a := e.Emit(ctx, TypeDoorForced, "door forced open", SeverityCritical,
		Related{DeviceID: "reader-1", DoorID: "door-1", Details: map[string]any{"zone": "north"}})

	if a.ID == "" {
		t.Error("Emit() returned alert without ID")
	}
	if a.Resolved {
		t.Error("new alert must not be resolved")
	}
	if !a.Timestamp.Equal(start) {
		t.Errorf("Timestamp = %v, want %v", a.Timestamp, start)
	}

	stored, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("List() = %d alerts, want 1", len(stored))
	}
	got := stored[0]
	if got.ID != a.ID || got.Severity != SeverityCritical || got.DoorID != "door-1" {
		t.Errorf("stored = %+v", got)
	}
	if got.Details["zone"] != "north" {
		t.Errorf("Details = %v", got.Details)
	}
	if len(tel.types) != 1 || tel.types[0] != TypeDoorForced {
		t.Errorf("telemetry = %v, want [door_forced]", tel.types)
	}
	if len(log.calls) != 1 || log.calls[0] != "error:alert raised" {
		t.Errorf("log calls = %v, want one error-level alert", log.calls)
	}
}

func TestEmitter_LogLevelFollowsSeverity(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityCritical, "error:alert raised"},
		{SeverityHigh, "error:alert raised"},
		{SeverityWarning, "warn:alert raised"},
		{SeverityMedium, "warn:alert raised"},
		{SeverityLow, "info:alert raised"},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			log := &recordingLogger{}
			e := NewEmitter(newTestRepo(t), clock.Real())
			e.SetLogger(log)

			e.Emit(context.Background(), "x", "msg", tt.severity, Related{})
			if len(log.calls) != 1 || log.calls[0] != tt.want {
				t.Errorf("log calls = %v, want [%s]", log.calls, tt.want)
			}
		})
	}
}

func TestEmitter_PersistenceFailureStillReturnsAlert(t *testing.T) {
	log := &recordingLogger{}
	e := NewEmitter(failingRepo{}, clock.Real())
	e.SetLogger(log)

	a := e.Emit(context.Background(), TypeDeviceOffline, "reader-1 offline", SeverityWarning, Related{DeviceID: "reader-1"})
	if a.ID == "" || a.Type != TypeDeviceOffline {
		t.Errorf("Emit() = %+v, want populated alert", a)
	}
	if len(log.calls) != 2 || log.calls[0] != "error:failed to persist alert" {
		t.Errorf("log calls = %v, want persist failure then alert", log.calls)
	}
}

func TestEmitter_UnknownSeverityUsesMapping(t *testing.T) {
	e := NewEmitter(newTestRepo(t), clock.Real())
	a := e.Emit(context.Background(), TypeTamperDetected, "tamper", "", Related{})
	if a.Severity != SeverityCritical {
		t.Errorf("Severity = %q, want critical", a.Severity)
	}
}

func TestRepository_ListAndResolve(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i, typ := range []string{TypeDeviceOffline, TypeDoorForced, TypeDeviceOffline} {
		a := &Alert{Type: typ, Severity: SeverityFor(typ), Message: typ, DeviceID: "reader-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	offline, err := repo.List(ctx, Filter{Type: TypeDeviceOffline})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(offline) != 2 {
		t.Fatalf("List(device_offline) = %d, want 2", len(offline))
	}
	if !offline[0].Timestamp.After(offline[1].Timestamp) {
		t.Error("List() not ordered newest first")
	}

	resolvedAt := base.Add(time.Hour)
	if err := repo.Resolve(ctx, offline[0].ID, "operator", resolvedAt); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := repo.Resolve(ctx, offline[0].ID, "operator", resolvedAt); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve() error = %v, want ErrAlreadyResolved", err)
	}
	if err := repo.Resolve(ctx, "alr-missing", "operator", resolvedAt); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrAlertNotFound", err)
	}

	open := false
	unresolved, _ := repo.List(ctx, Filter{Resolved: &open})
	if len(unresolved) != 2 {
		t.Errorf("unresolved = %d, want 2", len(unresolved))
	}

	done := true
	resolved, _ := repo.List(ctx, Filter{Resolved: &done})
	if len(resolved) != 1 || resolved[0].ResolvedBy != "operator" || resolved[0].ResolvedAt == nil {
		t.Errorf("resolved = %+v", resolved)
	}

	critical, _ := repo.List(ctx, Filter{Severity: SeverityCritical})
	if len(critical) != 1 {
		t.Errorf("critical = %d, want 1", len(critical))
	}
}

func TestRepository_CreateValidates(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Create(context.Background(), &Alert{Type: "x", Message: "m", Severity: "dire"})
	if !errors.Is(err, ErrInvalidAlert) {
		t.Errorf("Create() error = %v, want ErrInvalidAlert", err)
	}
}
