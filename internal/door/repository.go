package door

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for door persistence operations.
type Repository interface {
	// GetByID retrieves a door. Returns ErrDoorNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Door, error)

	// GetByDeviceID retrieves the door driven by a device.
	// Returns ErrDoorNotFound if the device is not bound.
	GetByDeviceID(ctx context.Context, deviceID string) (*Door, error)

	// List retrieves all doors.
	List(ctx context.Context) ([]Door, error)

	// Create inserts a new door.
	Create(ctx context.Context, d *Door) error

	// Update modifies an existing door's configuration.
	Update(ctx context.Context, d *Door) error

	// Delete removes a door and, through cascade, its permissions.
	Delete(ctx context.Context, id string) error

	// SetStatus records a lock state transition with its actor and time.
	SetStatus(ctx context.Context, id string, status Status, actor string, at time.Time) error
}

const doorColumns = `id, name, status, device_id, schedule, auto_lock, auto_lock_delay,
	status_changed_by, status_changed_at, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed door repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a door by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Door, error) {
	return r.getOne(ctx, `SELECT `+doorColumns+` FROM doors WHERE id = ?`, id)
}

// GetByDeviceID retrieves the door bound to a device.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Door, error) {
	return r.getOne(ctx, `SELECT `+doorColumns+` FROM doors WHERE device_id = ?`, deviceID)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (*Door, error) {
	d, err := scanDoor(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoorNotFound
		}
		return nil, fmt.Errorf("querying door: %w", err)
	}
	return d, nil
}

// List retrieves all doors ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Door, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+doorColumns+` FROM doors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying doors: %w", err)
	}
	defer rows.Close()

	var doors []Door
	for rows.Next() {
		d, err := scanDoor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning door: %w", err)
		}
		doors = append(doors, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating doors: %w", err)
	}
	return doors, nil
}

// Create inserts a new door. Status defaults to locked.
func (r *SQLiteRepository) Create(ctx context.Context, d *Door) error {
	if d.Status == "" {
		d.Status = StatusLocked
	}
	if err := ValidateDoor(d); err != nil {
		return err
	}

	scheduleJSON, err := marshalSchedule(d.Schedule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO doors (`+doorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.Name,
		string(d.Status),
		nullableString(d.DeviceID),
		scheduleJSON,
		boolToInt(d.AutoLock),
		d.AutoLockDelay,
		d.StatusChangedBy,
		nullableTime(d.StatusChangedAt),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		// SQLite may report the device binding before the primary key, so
		// an existing id is checked explicitly.
		if isUniqueConstraintError(err) && r.exists(ctx, d.ID) {
			return ErrDoorExists
		}
		return mapConstraintError(err, "inserting door")
	}
	return nil
}

func (r *SQLiteRepository) exists(ctx context.Context, id string) bool {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM doors WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// Update modifies an existing door's name, binding, schedule and auto-lock
// settings. Lock state only changes through SetStatus.
func (r *SQLiteRepository) Update(ctx context.Context, d *Door) error {
	if err := ValidateDoor(d); err != nil {
		return err
	}
	scheduleJSON, err := marshalSchedule(d.Schedule)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE doors SET
			name = ?, device_id = ?, schedule = ?, auto_lock = ?, auto_lock_delay = ?, updated_at = ?
		WHERE id = ?`,
		d.Name,
		nullableString(d.DeviceID),
		scheduleJSON,
		boolToInt(d.AutoLock),
		d.AutoLockDelay,
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return mapConstraintError(err, "updating door")
	}
	return requireRow(result)
}

// Delete removes a door by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM doors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting door: %w", err)
	}
	return requireRow(result)
}

// SetStatus records a lock state transition.
func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status Status, actor string, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	changedAt := at.UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `
		UPDATE doors
		SET status = ?, status_changed_by = ?, status_changed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(status), actor, changedAt, changedAt, id,
	)
	if err != nil {
		return fmt.Errorf("updating door status: %w", err)
	}
	return requireRow(result)
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoor(scanner rowScanner) (*Door, error) {
	var d Door
	var status string
	var deviceID, scheduleJSON, changedAt sql.NullString
	var autoLock int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&status,
		&deviceID,
		&scheduleJSON,
		&autoLock,
		&d.AutoLockDelay,
		&d.StatusChangedBy,
		&changedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	d.AutoLock = autoLock != 0
	if deviceID.Valid {
		d.DeviceID = &deviceID.String
	}
	if scheduleJSON.Valid && scheduleJSON.String != "" {
		var s Schedule
		if err := json.Unmarshal([]byte(scheduleJSON.String), &s); err != nil {
			return nil, fmt.Errorf("unmarshalling schedule: %w", err)
		}
		d.Schedule = &s
	}
	if changedAt.Valid {
		if t, err := time.Parse(time.RFC3339, changedAt.String); err == nil {
			d.StatusChangedAt = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &d, nil
}

func marshalSchedule(s *Schedule) (sql.NullString, error) {
	if s == nil || (s.Weekdays == nil && s.Weekends == nil) {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling schedule: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDoorNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapConstraintError(err error, op string) error {
	if isUniqueConstraintError(err) {
		if strings.Contains(err.Error(), "doors.device_id") {
			return ErrDeviceAlreadyBound
		}
		return ErrDoorExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
