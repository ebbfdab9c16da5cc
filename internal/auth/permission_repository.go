package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PermissionRepository defines the interface for door grant persistence.
type PermissionRepository interface {
	// Get returns the grant for a user on a door, expired or not.
	// Returns ErrPermissionNotFound when none exists.
	Get(ctx context.Context, userID, doorID string) (*Permission, error)
	ListByUser(ctx context.Context, userID string) ([]Permission, error)
	Create(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error
}

const permissionColumns = `id, user_id, door_id, access_level, can_unlock_remotely,
	schedule_override, expires_at, created_at`

// SQLitePermissionRepository implements PermissionRepository using SQLite.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new SQLite-backed permission repository.
func NewPermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

// Get returns the grant for a user on a door.
func (r *SQLitePermissionRepository) Get(ctx context.Context, userID, doorID string) (*Permission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE user_id = ? AND door_id = ?`,
		userID, doorID)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("querying permission: %w", err)
	}
	return p, nil
}

// ListByUser returns every grant held by a user.
func (r *SQLitePermissionRepository) ListByUser(ctx context.Context, userID string) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE user_id = ? ORDER BY door_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

// Create inserts a grant. The ID is generated if empty and the access
// level defaults to standard.
func (r *SQLitePermissionRepository) Create(ctx context.Context, p *Permission) error {
	if p.ID == "" {
		p.ID = "perm-" + uuid.NewString()[:8]
	}
	if p.AccessLevel == "" {
		p.AccessLevel = AccessStandard
	}
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.DoorID) == "" {
		return fmt.Errorf("%w: user and door are required", ErrInvalidPermission)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	var expires any
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions (`+permissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.DoorID, string(p.AccessLevel),
		boolToInt(p.CanUnlockRemotely), boolToInt(p.ScheduleOverride),
		expires, now,
	)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return ErrPermissionExists
		case strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return fmt.Errorf("%w: unknown user or door", ErrInvalidPermission)
		}
		return fmt.Errorf("creating permission: %w", err)
	}
	return nil
}

// Delete revokes a grant by ID.
func (r *SQLitePermissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func scanPermission(s scanner) (*Permission, error) {
	var p Permission
	var level string
	var remote, override int
	var expires sql.NullString
	var createdAt string

	if err := s.Scan(&p.ID, &p.UserID, &p.DoorID, &level, &remote, &override, &expires, &createdAt); err != nil {
		return nil, err
	}

	p.AccessLevel = AccessLevel(level)
	p.CanUnlockRemotely = remote != 0
	p.ScheduleOverride = override != 0
	if expires.Valid {
		if t, err := time.Parse(time.RFC3339, expires.String); err == nil {
			p.ExpiresAt = &t
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &p, nil
}

// boolToInt converts a Go bool to SQLite integer (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
