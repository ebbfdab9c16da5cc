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

// UserRepository defines the interface for card holder persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByCardUID(ctx context.Context, cardUID string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}

const userColumns = "id, name, email, card_uid, status, created_at, updated_at"

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user. The ID is generated if empty and status
// defaults to active.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	if user.Status == "" {
		user.Status = UserActive
	}
	if err := validateUser(user); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, nullCard(user.CardUID), string(user.Status), now, now,
	)
	if err != nil {
		return mapUserConstraint(err, "creating user")
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByCardUID retrieves the holder of a card. Card UIDs compare
// case-insensitively since readers differ in how they print hex.
func (r *SQLiteUserRepository) GetByCardUID(ctx context.Context, cardUID string) (*User, error) {
	if strings.TrimSpace(cardUID) == "" {
		return nil, ErrUserNotFound
	}
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE card_uid = ?", NormalizeCardUID(cardUID))
}

// List returns all users ordered by name.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Update modifies a user's name, email, card and status.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, card_uid = ?, status = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Email, nullCard(user.CardUID), string(user.Status), now, user.ID,
	)
	if err != nil {
		return mapUserConstraint(err, "updating user")
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user and, through cascade, their permissions.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// getUser executes a query and scans a single user result.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var card sql.NullString
	var status string
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Name, &u.Email, &card, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Status = UserStatus(status)
	if card.Valid {
		u.CardUID = &card.String
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// NormalizeCardUID returns the canonical stored form of a card UID.
func NormalizeCardUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

func validateUser(u *User) error {
	if u.CardUID != nil {
		card := NormalizeCardUID(*u.CardUID)
		u.CardUID = &card
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidUser)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidUser, u.Status)
	}
	return nil
}

func nullCard(uid *string) any {
	if uid == nil || strings.TrimSpace(*uid) == "" {
		return nil
	}
	return NormalizeCardUID(*uid)
}

func mapUserConstraint(err error, op string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: users.card_uid") {
		return ErrCardInUse
	}
	return fmt.Errorf("%s: %w", op, err)
}
