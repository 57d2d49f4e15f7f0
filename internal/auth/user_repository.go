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

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByAPIKey(ctx context.Context, key string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetAPIKey(ctx context.Context, id, key string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, profile_pic, google_oidc_id,
	password_hash, admin, api_key, created_at, updated_at`

// Create inserts a new user account. The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	user.Email = strings.TrimSpace(user.Email)

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, nullString(user.FirstName), nullString(user.LastName),
		nullString(user.ProfilePic), nullString(user.GoogleOIDCID), nullString(user.PasswordHash),
		boolToInt(user.Admin), nullString(user.APIKey), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "lower(email) = lower(?)", strings.TrimSpace(email))
}

// GetByAPIKey retrieves the user owning key.
func (r *SQLiteUserRepository) GetByAPIKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrUserNotFound
	}
	return r.getUser(ctx, "api_key = ?", key)
}

// List returns all users ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, email ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
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

// Update modifies a user's profile fields and admin flag.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, profile_pic = ?, admin = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(user.Email), nullString(user.FirstName), nullString(user.LastName),
		nullString(user.ProfilePic), boolToInt(user.Admin), now, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return userAffected(result)
}

// SetPasswordHash replaces the password hash. An empty hash disables
// password sign-in.
func (r *SQLiteUserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		nullString(hash), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return userAffected(result)
}

// SetAPIKey replaces the user's API key. An empty key removes it.
func (r *SQLiteUserRepository) SetAPIKey(ctx context.Context, id, key string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		nullString(key), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAPIKeyExists
		}
		return fmt.Errorf("updating api key: %w", err)
	}
	return userAffected(result)
}

// Delete removes a user account.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return userAffected(result)
}

// Count returns the number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, where string, args ...any) (*User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func userAffected(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var (
		u                                            User
		firstName, lastName, pic, oidc, hash, apiKey sql.NullString
		admin                                        int
		createdAt, updatedAt                         string
	)
	err := s.Scan(&u.ID, &u.Email, &firstName, &lastName, &pic, &oidc, &hash, &admin, &apiKey, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.ProfilePic = pic.String
	u.GoogleOIDCID = oidc.String
	u.PasswordHash = hash.String
	u.APIKey = apiKey.String
	u.Admin = admin != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this package
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this package
	return &u, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
