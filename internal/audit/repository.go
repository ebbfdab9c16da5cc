// Package audit provides the append-only access log.
//
// Every access decision, remote lock change and door event the gateway
// observes becomes one entry. Entries are never updated or deleted; the
// schema enforces this with triggers.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions written by the gateway. Device events use their event type as the action.
const (
	ActionAccessGranted = "access_granted"
	ActionAccessDenied  = "access_denied"
	ActionRemoteUnlock  = "remote_unlock"
	ActionRemoteLock    = "remote_lock"
)

// timestampFormat is fixed-width so stored timestamps sort lexically.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// CardActor returns the actor recorded for a card that did not resolve to a user.
func CardActor(cardUID string) string {
	return "card:" + cardUID
}

// Entry is a single access log record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	UserID    string         `json:"user_id,omitempty"`
	CardUID   string         `json:"card_uid,omitempty"`
	DoorID    string         `json:"door_id,omitempty"`
	DeviceID  string         `json:"device_id,omitempty"`
	Action    string         `json:"action"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter controls which entries to return.
type Filter struct {
	DoorID   string    // optional
	UserID   string    // optional
	DeviceID string    // optional
	Action   string    // optional
	Since    time.Time // optional, inclusive
	Until    time.Time // optional, exclusive
	Limit    int       // default 50, max 200
	Offset   int       // pagination offset
}

// ListResult contains the paginated access log results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for access log operations.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the access log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new access log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts a new entry. The ID and Timestamp are generated if empty.
func (r *SQLiteRepository) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "log-" + uuid.NewString()[:8]
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidEntry)
	}
	if entry.Actor == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidEntry)
	}

	var detailsJSON *string
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling access log details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_logs (id, timestamp, actor, user_id, card_uid, door_id, device_id, action, reason, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(timestampFormat),
		entry.Actor,
		entry.UserID,
		entry.CardUID,
		entry.DoorID,
		entry.DeviceID,
		entry.Action,
		entry.Reason,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting access log: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit,gocyclo // dynamic query builder: WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for access log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(timestampFormat))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.Until.UTC().Format(timestampFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM access_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting access logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, timestamp, actor, user_id, card_uid, door_id, device_id, action, reason, details
		 FROM access_logs %s ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var ts string
		var detailsJSON sql.NullString

		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.UserID, &e.CardUID,
			&e.DoorID, &e.DeviceID, &e.Action, &e.Reason, &detailsJSON); err != nil {
			return nil, fmt.Errorf("scanning access log: %w", err)
		}

		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing access log timestamp %q: %w", ts, err)
		}
		e.Timestamp = t

		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				e.Details = details
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access logs: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
