package door

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/doorgate-core/internal/infrastructure/database"
	"github.com/nerrad567/doorgate-core/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

func strPtr(s string) *string { return &s }

func testDoor(id string) *Door {
	return &Door{
		ID:            id,
		Name:          "Door " + id,
		DeviceID:      strPtr("reader-" + id),
		AutoLock:      true,
		AutoLockDelay: DefaultAutoLockDelay,
		Schedule: &Schedule{
			Weekdays: &Window{Start: "08:00", End: "18:00"},
		},
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDoor("d1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusLocked {
		t.Errorf("Status = %q, want locked", got.Status)
	}
	if !got.AutoLock || got.AutoLockDelay != 5 {
		t.Errorf("auto lock = %v/%d, want true/5", got.AutoLock, got.AutoLockDelay)
	}
	if got.Schedule == nil || got.Schedule.Weekdays == nil {
		t.Fatal("Schedule.Weekdays not round-tripped")
	}
	if got.Schedule.Weekdays.Start != "08:00" || got.Schedule.Weekends != nil {
		t.Errorf("Schedule = %+v", got.Schedule)
	}

	byDevice, err := repo.GetByDeviceID(ctx, "reader-d1")
	if err != nil {
		t.Fatalf("GetByDeviceID() error = %v", err)
	}
	if byDevice.ID != "d1" {
		t.Errorf("GetByDeviceID() = %q, want d1", byDevice.ID)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, ErrDoorNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDoorNotFound", err)
	}
	if _, err := repo.GetByDeviceID(ctx, "nope"); !errors.Is(err, ErrDoorNotFound) {
		t.Errorf("GetByDeviceID() error = %v, want ErrDoorNotFound", err)
	}
	if err := repo.SetStatus(ctx, "nope", StatusUnlocked, "u1", time.Now()); !errors.Is(err, ErrDoorNotFound) {
		t.Errorf("SetStatus() error = %v, want ErrDoorNotFound", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, ErrDoorNotFound) {
		t.Errorf("Delete() error = %v, want ErrDoorNotFound", err)
	}
}

func TestSQLiteRepository_Conflicts(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDoor("d1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testDoor("d1")); !errors.Is(err, ErrDoorExists) {
		t.Errorf("duplicate Create() error = %v, want ErrDoorExists", err)
	}

	// Same id on a free device is still a duplicate door.
	dup := testDoor("d1")
	dup.DeviceID = strPtr("reader-free")
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDoorExists) {
		t.Errorf("duplicate Create() on free device error = %v, want ErrDoorExists", err)
	}

	other := testDoor("d2")
	other.DeviceID = strPtr("reader-d1")
	if err := repo.Create(ctx, other); !errors.Is(err, ErrDeviceAlreadyBound) {
		t.Errorf("Create() error = %v, want ErrDeviceAlreadyBound", err)
	}
}

func TestSQLiteRepository_SetStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDoor("d1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 3, 4, 10, 15, 0, 0, time.UTC)
	if err := repo.SetStatus(ctx, "d1", StatusUnlocked, "u1", at); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "d1")
	if got.Status != StatusUnlocked {
		t.Errorf("Status = %q, want unlocked", got.Status)
	}
	if got.StatusChangedBy != "u1" {
		t.Errorf("StatusChangedBy = %q, want u1", got.StatusChangedBy)
	}
	if got.StatusChangedAt == nil || !got.StatusChangedAt.Equal(at) {
		t.Errorf("StatusChangedAt = %v, want %v", got.StatusChangedAt, at)
	}

	if err := repo.SetStatus(ctx, "d1", "ajar", "u1", at); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(ajar) error = %v, want ErrInvalidStatus", err)
	}
}

func TestSQLiteRepository_UpdateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDoor("d1")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testDoor("d2")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.Schedule = nil
	d.AutoLock = false
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "d1")
	if got.Schedule != nil {
		t.Errorf("Schedule = %+v, want nil after clearing", got.Schedule)
	}
	if got.AutoLock {
		t.Error("AutoLock = true, want false")
	}

	doors, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(doors) != 2 {
		t.Errorf("List() = %d doors, want 2", len(doors))
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		s       *Schedule
		wantErr bool
	}{
		{name: "nil", s: nil},
		{name: "weekdays only", s: &Schedule{Weekdays: &Window{"08:00", "18:00"}}},
		{name: "full day", s: &Schedule{Weekends: &Window{"00:00", "23:59"}}},
		{name: "unpadded", s: &Schedule{Weekdays: &Window{"8:00", "18:00"}}, wantErr: true},
		{name: "bad hour", s: &Schedule{Weekdays: &Window{"08:00", "24:00"}}, wantErr: true},
		{name: "inverted", s: &Schedule{Weekends: &Window{"18:00", "08:00"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("ValidateSchedule() error = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestSchedule_For(t *testing.T) {
	s := &Schedule{
		Weekdays: &Window{Start: "08:00", End: "18:00"},
		Weekends: &Window{Start: "10:00", End: "14:00"},
	}

	tests := []struct {
		day  time.Weekday
		want string
	}{
		{time.Monday, "08:00"},
		{time.Friday, "08:00"},
		{time.Saturday, "10:00"},
		{time.Sunday, "10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.day.String(), func(t *testing.T) {
			w := s.For(tt.day)
			if w == nil || w.Start != tt.want {
				t.Errorf("For(%v) = %+v, want start %s", tt.day, w, tt.want)
			}
		})
	}

	var none *Schedule
	if none.For(time.Monday) != nil {
		t.Error("nil schedule For() should be nil")
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: "08:00", End: "18:00"}
	tests := []struct {
		at   string
		want bool
	}{
		{"07:59", false},
		{"08:00", true},
		{"12:30", true},
		{"18:00", true},
		{"18:01", false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.at, got, tt.want)
		}
	}
}
