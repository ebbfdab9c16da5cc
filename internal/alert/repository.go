package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timestampFormat is fixed-width so stored timestamps sort lexically.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Filter controls which alerts to return.
type Filter struct {
	Resolved *bool    // optional: nil returns both
	Type     string   // optional
	Severity Severity // optional
	DeviceID string   // optional
	DoorID   string   // optional
	Limit    int      // default 50, max 200
	Offset   int
}

// Repository defines the interface for alert persistence.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	List(ctx context.Context, filter Filter) ([]Alert, error)
	Resolve(ctx context.Context, id, by string, at time.Time) error
}

// SQLiteRepository stores alerts in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new alert repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// NewID returns a fresh alert identifier.
func NewID() string {
	return "alr-" + uuid.NewString()[:8]
}

// Create inserts an alert. The ID and Timestamp are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.Type == "" || a.Message == "" || !a.Severity.Valid() {
		return fmt.Errorf("%w: type, message and a known severity are required", ErrInvalidAlert)
	}

	var detailsJSON *string
	if a.Details != nil {
		b, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("marshalling alert details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, severity, message, resolved, device_id, door_id, user_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, string(a.Severity), a.Message, boolToInt(a.Resolved),
		a.DeviceID, a.DoorID, a.UserID, detailsJSON,
		a.Timestamp.UTC().Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// List returns alerts matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Alert, error) { //nolint:gocognit,gocyclo // dynamic query builder: WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for alert queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Resolved != nil {
		conditions = append(conditions, "resolved = ?")
		args = append(args, boolToInt(*filter.Resolved))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, type, severity, message, resolved, resolved_at, resolved_by,
		        device_id, door_id, user_id, details, created_at
		 FROM alerts %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		var severity, createdAt string
		var resolved int
		var resolvedAt, detailsJSON sql.NullString

		if err := rows.Scan(&a.ID, &a.Type, &severity, &a.Message, &resolved, &resolvedAt,
			&a.ResolvedBy, &a.DeviceID, &a.DoorID, &a.UserID, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}

		a.Severity = Severity(severity)
		a.Resolved = resolved != 0
		if resolvedAt.Valid {
			if t, err := time.Parse(time.RFC3339, resolvedAt.String); err == nil {
				a.ResolvedAt = &t
			}
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				a.Details = details
			}
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alert timestamp %q: %w", createdAt, err)
		}
		a.Timestamp = t

		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

// Resolve marks an alert resolved by the given operator.
func (r *SQLiteRepository) Resolve(ctx context.Context, id, by string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET resolved = 1, resolved_at = ?, resolved_by = ? WHERE id = ? AND resolved = 0`,
		at.UTC().Format(timestampFormat), by, id,
	)
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows > 0 {
		return nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking alert exists: %w", err)
	}
	if exists == 0 {
		return ErrAlertNotFound
	}
	return ErrAlreadyResolved
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
