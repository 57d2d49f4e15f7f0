package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByChip retrieves a device by provider and chip id, case-insensitively.
	GetByChip(ctx context.Context, chipType, chipID string) (*Device, error)

	// GetByAPIKey retrieves the device owning an API key.
	GetByAPIKey(ctx context.Context, key string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// GetSummary retrieves a device with its measurement statistics.
	GetSummary(ctx context.Context, id string) (*Summary, error)

	// ListSummaries retrieves every device with its measurement statistics.
	ListSummaries(ctx context.Context) ([]Summary, error)

	// Create inserts a new device, assigning an ID when empty.
	// Returns ErrDeviceExists if the chip is already registered.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	Update(ctx context.Context, device *Device) error

	// UpdateState sets only the state code.
	UpdateState(ctx context.Context, id string, state State) error

	// Delete removes a device. Its measurements are kept.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `d.id, d.name, d.chip_type, d.chip_id, d.chip_model, d.device_type,
	d.empty_keg_weight, d.empty_keg_weight_unit, d.start_volume, d.start_volume_unit,
	d.display_volume_unit, d.state, d.api_key, d.created_at, d.updated_at`

// summarySelect joins each device to its measurement count and latest row.
const summarySelect = `
	SELECT ` + deviceColumns + `,
		(SELECT COUNT(*) FROM device_measurements c WHERE c.device_id = d.id),
		m.id, m.value, m.unit, m.taken_on
	FROM devices d
	LEFT JOIN device_measurements m ON m.id = (
		SELECT l.id FROM device_measurements l
		WHERE l.device_id = d.id
		ORDER BY l.taken_on DESC
		LIMIT 1
	)`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return r.getOne(ctx, "d.id = ?", id)
}

// GetByChip retrieves a device by provider and chip id.
func (r *SQLiteRepository) GetByChip(ctx context.Context, chipType, chipID string) (*Device, error) {
	return r.getOne(ctx, "lower(d.chip_type) = lower(?) AND lower(d.chip_id) = lower(?)",
		strings.TrimSpace(chipType), strings.TrimSpace(chipID))
}

// GetByAPIKey retrieves the device owning key.
func (r *SQLiteRepository) GetByAPIKey(ctx context.Context, key string) (*Device, error) {
	if key == "" {
		return nil, ErrDeviceNotFound
	}
	return r.getOne(ctx, "d.api_key = ?", key)
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, args ...any) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d WHERE ` + where

	dev, err := scanDevice(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return dev, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices d ORDER BY d.name, d.id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// GetSummary retrieves a device with its measurement statistics.
func (r *SQLiteRepository) GetSummary(ctx context.Context, id string) (*Summary, error) {
	s, err := scanSummary(r.db.QueryRowContext(ctx, summarySelect+` WHERE d.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device summary: %w", err)
	}
	return s, nil
}

// ListSummaries retrieves every device with its measurement statistics.
func (r *SQLiteRepository) ListSummaries(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, summarySelect+` ORDER BY d.name, d.id`)
	if err != nil {
		return nil, fmt.Errorf("querying device summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device summary: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device summaries: %w", err)
	}
	return out, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, chip_type, chip_id, chip_model, device_type,
			empty_keg_weight, empty_keg_weight_unit, start_volume, start_volume_unit,
			display_volume_unit, state, api_key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.ChipType, d.ChipID, nullableString(d.ChipModel), string(d.DeviceType),
		d.EmptyKegWeight, d.EmptyKegWeightUnit, d.StartVolume, d.StartVolumeUnit,
		d.DisplayVolumeUnit, int(d.State), nullableString(d.APIKey),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, chip_type = ?, chip_id = ?, chip_model = ?, device_type = ?,
			empty_keg_weight = ?, empty_keg_weight_unit = ?, start_volume = ?,
			start_volume_unit = ?, display_volume_unit = ?, state = ?, api_key = ?,
			updated_at = ?
		WHERE id = ?`,
		d.Name, d.ChipType, d.ChipID, nullableString(d.ChipModel), string(d.DeviceType),
		d.EmptyKegWeight, d.EmptyKegWeightUnit, d.StartVolume,
		d.StartVolumeUnit, d.DisplayVolumeUnit, int(d.State), nullableString(d.APIKey),
		d.UpdatedAt.Format(time.RFC3339), d.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("updating device: %w", err)
	}
	return requireAffected(result)
}

// UpdateState sets the firmware state code.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, state)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET state = ?, updated_at = ? WHERE id = ?`,
		int(state), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	return scanDeviceWith(s)
}

// scanDeviceWith scans the device columns followed by extra destinations.
func scanDeviceWith(s scanner, extra ...any) (*Device, error) {
	var (
		d                    Device
		chipModel, apiKey    sql.NullString
		deviceType           string
		state                int
		createdAt, updatedAt string
	)
	dest := append([]any{
		&d.ID, &d.Name, &d.ChipType, &d.ChipID, &chipModel, &deviceType,
		&d.EmptyKegWeight, &d.EmptyKegWeightUnit, &d.StartVolume, &d.StartVolumeUnit,
		&d.DisplayVolumeUnit, &state, &apiKey, &createdAt, &updatedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	d.ChipModel = chipModel.String
	d.APIKey = apiKey.String
	d.DeviceType = Type(deviceType)
	d.State = State(state)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this package
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this package
	return &d, nil
}

func scanSummary(s scanner) (*Summary, error) {
	var (
		count  int
		mID    sql.NullString
		mValue sql.NullFloat64
		mUnit  sql.NullString
		mTaken sql.NullString
	)
	d, err := scanDeviceWith(s, &count, &mID, &mValue, &mUnit, &mTaken)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Device: d, MeasurementCount: count}
	if mID.Valid {
		taken, err := time.Parse(timeLayout, mTaken.String)
		if err != nil {
			return nil, fmt.Errorf("parsing taken_on: %w", err)
		}
		sum.Latest = &Measurement{
			ID:       mID.String,
			DeviceID: d.ID,
			Value:    mValue.Float64,
			Unit:     mUnit.String,
			TakenOn:  taken,
		}
	}
	return sum, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
