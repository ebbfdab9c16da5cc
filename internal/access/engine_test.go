package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/auth"
	"github.com/nerrad567/doorgate-core/internal/command"
	"github.com/nerrad567/doorgate-core/internal/door"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/database"
	"github.com/nerrad567/doorgate-core/migrations"
)

type sentCommand struct {
	deviceID string
	command  string
	data     map[string]any
}

// fakeSender records dispatched commands.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (f *fakeSender) Send(_ context.Context, deviceID, cmd string, data map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentCommand{deviceID: deviceID, command: cmd, data: data})
	return "cmd-1", nil
}

// fixture wires an Engine to real SQLite repositories.
type fixture struct {
	engine *Engine
	doors  *door.SQLiteRepository
	users  *auth.SQLiteUserRepository
	perms  *auth.SQLitePermissionRepository
	log    *audit.SQLiteRepository
	alerts *alert.SQLiteRepository
	sender *fakeSender
	clock  *clock.FakeClock
	ctx    context.Context
}

func newFixture(t *testing.T, now time.Time) *fixture {
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

	f := &fixture{
		doors:  door.NewSQLiteRepository(db.DB),
		users:  auth.NewUserRepository(db.DB),
		perms:  auth.NewPermissionRepository(db.DB),
		log:    audit.NewSQLiteRepository(db.DB),
		alerts: alert.NewSQLiteRepository(db.DB),
		sender: &fakeSender{},
		clock:  clock.Fake(now),
		ctx:    ctx,
	}

	f.engine, err = NewEngine(Deps{
		Doors:       f.doors,
		Users:       f.users,
		Permissions: f.perms,
		Log:         f.log,
		Alerts:      alert.NewEmitter(f.alerts, f.clock),
		Commands:    f.sender,
		Clock:       f.clock,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return f
}

func (f *fixture) addDoor(t *testing.T, d *door.Door) {
	t.Helper()
	if err := f.doors.Create(f.ctx, d); err != nil {
		t.Fatalf("creating door: %v", err)
	}
}

func (f *fixture) addUser(t *testing.T, cardUID string, status auth.UserStatus) *auth.User {
	t.Helper()
	u := &auth.User{Name: "Holder " + cardUID, CardUID: &cardUID, Status: status}
	if err := f.users.Create(f.ctx, u); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u
}

func (f *fixture) grant(t *testing.T, p *auth.Permission) {
	t.Helper()
	if err := f.perms.Create(f.ctx, p); err != nil {
		t.Fatalf("creating permission: %v", err)
	}
}

func (f *fixture) entries(t *testing.T) []audit.Entry {
	t.Helper()
	res, err := f.log.List(f.ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("listing access log: %v", err)
	}
	return res.Entries
}

func (f *fixture) alertList(t *testing.T) []alert.Alert {
	t.Helper()
	list, err := f.alerts.List(f.ctx, alert.Filter{})
	if err != nil {
		t.Fatalf("listing alerts: %v", err)
	}
	return list
}

func strPtr(s string) *string { return &s }

func TestNewEngine_RequiresDependencies(t *testing.T) {
	if _, err := NewEngine(Deps{}); err == nil {
		t.Error("NewEngine() with no deps returned nil error")
	}
}

func TestDecide_UnregisteredCard(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front", DeviceID: strPtr("reader-1"), AutoLock: true, AutoLockDelay: 5})

	d := f.engine.Decide(f.ctx, Attempt{CardUID: "AABBCC", DoorID: "door-1", DeviceID: "reader-1"})

	if d.Granted || d.Reason != ReasonUnauthorizedCard {
		t.Fatalf("Decide() = %+v, want unauthorized_card", d)
	}

	alerts := f.alertList(t)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != alert.TypeUnauthorizedAccess || alerts[0].Severity != alert.SeverityMedium {
		t.Errorf("alert = {%s %s}, want {unauthorized_access medium}", alerts[0].Type, alerts[0].Severity)
	}

	entries := f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].Actor != "card:AABBCC" {
		t.Errorf("actor = %q, want card:AABBCC", entries[0].Actor)
	}
	if entries[0].Action != audit.ActionAccessDenied || entries[0].Reason != ReasonUnauthorizedCard {
		t.Errorf("entry = {%s %s}", entries[0].Action, entries[0].Reason)
	}

	if len(f.sender.sent) != 1 || f.sender.sent[0].command != command.AccessDenied {
		t.Fatalf("commands = %+v, want one access_denied", f.sender.sent)
	}
	if f.sender.sent[0].data["reason"] != ReasonUnauthorizedCard {
		t.Errorf("deny reason = %v", f.sender.sent[0].data["reason"])
	}
}

func TestDecide_OutsideSchedule(t *testing.T) {
	f := newFixture(t, monday(19, 30))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front",
		Schedule: &door.Schedule{Weekdays: &door.Window{Start: "08:00", End: "18:00"}}})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1"})

	d := f.engine.Decide(f.ctx, Attempt{CardUID: "04a1b2c3", DoorID: "door-1"})

	if d.Granted || d.Reason != ReasonOutsideSchedule {
		t.Fatalf("Decide() = %+v, want outside_schedule", d)
	}
	if d.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", d.UserID, u.ID)
	}
	if len(f.alertList(t)) != 0 {
		t.Error("outside_schedule should not alert")
	}
	if len(f.entries(t)) != 1 {
		t.Error("want exactly one log entry")
	}
}

func TestDecide_Grant(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front", DeviceID: strPtr("reader-1"),
		AutoLock: true, AutoLockDelay: 7,
		Schedule: &door.Schedule{Weekdays: &door.Window{Start: "08:00", End: "18:00"}}})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1"})

	d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: "door-1", DeviceID: "reader-1"})

	if !d.Granted || d.Reason != "" {
		t.Fatalf("Decide() = %+v, want granted", d)
	}

	got, err := f.doors.GetByID(f.ctx, "door-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != door.StatusUnlocked {
		t.Errorf("door status = %q, want unlocked", got.Status)
	}
	if got.StatusChangedBy != u.ID {
		t.Errorf("status changed by = %q, want %q", got.StatusChangedBy, u.ID)
	}
	if got.StatusChangedAt == nil || !got.StatusChangedAt.Equal(monday(10, 0)) {
		t.Errorf("status changed at = %v, want %v", got.StatusChangedAt, monday(10, 0))
	}

	entries := f.entries(t)
	if len(entries) != 1 || entries[0].Action != audit.ActionAccessGranted {
		t.Fatalf("entries = %+v, want one access_granted", entries)
	}
	if entries[0].Actor != u.ID {
		t.Errorf("actor = %q, want %q", entries[0].Actor, u.ID)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("commands = %d, want 1", len(f.sender.sent))
	}
	cmd := f.sender.sent[0]
	if cmd.deviceID != "reader-1" || cmd.command != command.Unlock {
		t.Errorf("command = %s to %s, want unlock to reader-1", cmd.command, cmd.deviceID)
	}
	if cmd.data["auto_lock"] != true || cmd.data["auto_lock_delay"] != 7 || cmd.data["door_id"] != "door-1" {
		t.Errorf("unlock data = %v", cmd.data)
	}
}

func TestDecide_GrantWithoutDeviceDispatchesNothing(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1"})

	d := f.engine.Decide(f.ctx, Attempt{UserID: u.ID, DoorID: "door-1"})

	if !d.Granted {
		t.Fatalf("Decide() = %+v, want granted", d)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("commands = %+v, want none", f.sender.sent)
	}
}

func TestDecide_ScheduleOverride(t *testing.T) {
	f := newFixture(t, saturday(23, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front",
		Schedule: &door.Schedule{Weekends: &door.Window{Start: "10:00", End: "14:00"}}})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1", ScheduleOverride: true})

	if d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: "door-1"}); !d.Granted {
		t.Errorf("Decide() = %+v, want granted", d)
	}
}

func TestDecide_DenialsLogWithoutAlert(t *testing.T) {
	expired := monday(9, 0)

	tests := []struct {
		name       string
		status     auth.UserStatus
		permission *auth.Permission
		doorID     string
		wantReason string
	}{
		{name: "missing door", status: auth.UserActive, doorID: "door-404", wantReason: ReasonDoorNotFound},
		{name: "suspended user", status: auth.UserSuspended, permission: &auth.Permission{}, doorID: "door-1", wantReason: ReasonUserInactive},
		{name: "no permission", status: auth.UserActive, doorID: "door-1", wantReason: ReasonNoPermission},
		{name: "expired permission", status: auth.UserActive, permission: &auth.Permission{ExpiresAt: &expired}, doorID: "door-1", wantReason: ReasonNoPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, monday(10, 0))
			f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})
			u := f.addUser(t, "04A1B2C3", tt.status)
			if tt.permission != nil {
				tt.permission.UserID = u.ID
				tt.permission.DoorID = "door-1"
				f.grant(t, tt.permission)
			}

			d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: tt.doorID, DeviceID: "reader-1"})

			if d.Granted || d.Reason != tt.wantReason {
				t.Fatalf("Decide() = %+v, want %s", d, tt.wantReason)
			}
			if d.DoorID != tt.doorID {
				t.Errorf("DoorID = %q, want %q", d.DoorID, tt.doorID)
			}
			if n := len(f.entries(t)); n != 1 {
				t.Errorf("log entries = %d, want 1", n)
			}
			if n := len(f.alertList(t)); n != 0 {
				t.Errorf("alerts = %d, want 0", n)
			}
			if len(f.sender.sent) != 1 || f.sender.sent[0].data["reason"] != tt.wantReason {
				t.Errorf("commands = %+v, want access_denied with %s", f.sender.sent, tt.wantReason)
			}
		})
	}
}

func TestDecide_UnknownUserIDAlerts(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})

	d := f.engine.Decide(f.ctx, Attempt{UserID: "usr-ghost", DoorID: "door-1"})

	if d.Reason != ReasonUnauthorizedCard {
		t.Fatalf("Decide() = %+v, want unauthorized_card", d)
	}
	if n := len(f.alertList(t)); n != 1 {
		t.Errorf("alerts = %d, want 1", n)
	}
	if entries := f.entries(t); len(entries) != 1 || entries[0].Actor != "usr-ghost" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDecide_BlankCardStillLogged(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})

	d := f.engine.Decide(f.ctx, Attempt{CardUID: "   ", DoorID: "door-1"})

	if d.Granted || d.Reason != ReasonUnauthorizedCard {
		t.Fatalf("Decide() = %+v, want unauthorized_card", d)
	}
	entries := f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].Actor != "unknown" {
		t.Errorf("actor = %q, want unknown", entries[0].Actor)
	}
	alerts := f.alertList(t)
	if len(alerts) != 1 || alerts[0].Details["credential"] != "unknown" {
		t.Errorf("alerts = %+v, want one naming an unknown credential", alerts)
	}
}

// failingLog rejects every append.
type failingLog struct{}

func (failingLog) Append(context.Context, *audit.Entry) error {
	return errors.New("disk I/O error")
}

// brokenDoors fails every lookup with a storage error.
type brokenDoors struct{}

func (brokenDoors) GetByID(context.Context, string) (*door.Door, error) {
	return nil, errors.New("database is locked")
}

func (brokenDoors) SetStatus(context.Context, string, door.Status, string, time.Time) error {
	return errors.New("database is locked")
}

type errorCounter struct {
	noopLogger
	mu     sync.Mutex
	errors int
}

func (c *errorCounter) Error(string, ...any) {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

func TestDecide_LogFailureKeepsDecision(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1"})
	f.engine.log = failingLog{}
	logger := &errorCounter{}
	f.engine.SetLogger(logger)

	if d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: "door-1"}); !d.Granted {
		t.Errorf("Decide() = %+v, want granted despite log failure", d)
	}
	if logger.errors != 1 {
		t.Errorf("errors logged = %d, want 1", logger.errors)
	}
}

func TestDecide_StorageErrorFailsClosed(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.engine.doors = brokenDoors{}
	logger := &errorCounter{}
	f.engine.SetLogger(logger)

	d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: "door-1"})

	if d.Granted || d.Reason != ReasonDoorNotFound {
		t.Errorf("Decide() = %+v, want door_not_found", d)
	}
	if logger.errors != 1 {
		t.Errorf("errors logged = %d, want 1", logger.errors)
	}
}

func TestDecide_SendFailureKeepsDecision(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	f.addDoor(t, &door.Door{ID: "door-1", Name: "Front"})
	u := f.addUser(t, "04A1B2C3", auth.UserActive)
	f.grant(t, &auth.Permission{UserID: u.ID, DoorID: "door-1"})
	f.sender.err = command.ErrSendFailed

	if d := f.engine.Decide(f.ctx, Attempt{CardUID: "04A1B2C3", DoorID: "door-1", DeviceID: "reader-1"}); !d.Granted {
		t.Errorf("Decide() = %+v, want granted", d)
	}
}

type recordedDecision struct {
	doorID  string
	granted bool
	reason  string
}

type fakeTelemetry struct{ decisions []recordedDecision }

func (f *fakeTelemetry) RecordAccessDecision(doorID, _ string, granted bool, reason string, _ time.Time) {
	f.decisions = append(f.decisions, recordedDecision{doorID, granted, reason})
}

func TestDecide_RecordsTelemetry(t *testing.T) {
	f := newFixture(t, monday(10, 0))
	tel := &fakeTelemetry{}
	f.engine.SetTelemetry(tel)

	f.engine.Decide(f.ctx, Attempt{CardUID: "AABBCC", DoorID: "door-9"})

	if len(tel.decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(tel.decisions))
	}
	if got := tel.decisions[0]; got.doorID != "door-9" || got.granted || got.reason != ReasonDoorNotFound {
		t.Errorf("decision = %+v", got)
	}
}
