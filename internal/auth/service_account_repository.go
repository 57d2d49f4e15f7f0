package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServiceAccountRepository persists service accounts.
type ServiceAccountRepository interface {
	Create(ctx context.Context, sa *ServiceAccount) error
	GetByAPIKey(ctx context.Context, key string) (*ServiceAccount, error)
	List(ctx context.Context) ([]ServiceAccount, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteServiceAccountRepository implements ServiceAccountRepository using SQLite.
type SQLiteServiceAccountRepository struct {
	db *sql.DB
}

// NewServiceAccountRepository creates a new SQLite-backed service account store.
func NewServiceAccountRepository(db *sql.DB) *SQLiteServiceAccountRepository {
	return &SQLiteServiceAccountRepository{db: db}
}

// Create inserts a service account. ID and API key are generated if empty.
func (r *SQLiteServiceAccountRepository) Create(ctx context.Context, sa *ServiceAccount) error {
	if sa.ID == "" {
		sa.ID = "svc-" + uuid.NewString()[:8]
	}
	if sa.APIKey == "" {
		key, err := GenerateAPIKey(32) //nolint:mnd // default key length
		if err != nil {
			return err
		}
		sa.APIKey = key
	}
	now := time.Now().UTC().Format(time.RFC3339)
	sa.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_accounts (id, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		sa.ID, sa.Name, sa.APIKey, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAPIKeyExists
		}
		return fmt.Errorf("creating service account: %w", err)
	}
	return nil
}

// GetByAPIKey retrieves the service account owning key.
func (r *SQLiteServiceAccountRepository) GetByAPIKey(ctx context.Context, key string) (*ServiceAccount, error) {
	var (
		sa        ServiceAccount
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, api_key, created_at FROM service_accounts WHERE api_key = ?`, key,
	).Scan(&sa.ID, &sa.Name, &sa.APIKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying service account: %w", err)
	}
	sa.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this package
	return &sa, nil
}

// List returns all service accounts by name.
func (r *SQLiteServiceAccountRepository) List(ctx context.Context) ([]ServiceAccount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, api_key, created_at FROM service_accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing service accounts: %w", err)
	}
	defer rows.Close()

	out := []ServiceAccount{}
	for rows.Next() {
		var (
			sa        ServiceAccount
			createdAt string
		)
		if err := rows.Scan(&sa.ID, &sa.Name, &sa.APIKey, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning service account: %w", err)
		}
		sa.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this package
		out = append(out, sa)
	}
	return out, rows.Err()
}

// Delete removes a service account.
func (r *SQLiteServiceAccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM service_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting service account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrServiceAccountNotFound
	}
	return nil
}
