package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MeasurementRepository persists the append-only reading history.
type MeasurementRepository interface {
	// Create appends a measurement, assigning an ID when empty.
	Create(ctx context.Context, m *Measurement) error

	// ListByDevice returns readings newest first. limit <= 0 means no limit.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Measurement, error)

	// Latest returns the most recent reading, or nil when there is none.
	Latest(ctx context.Context, deviceID string) (*Measurement, error)
}

// SQLiteMeasurementRepository implements MeasurementRepository using SQLite.
type SQLiteMeasurementRepository struct {
	db *sql.DB
}

// NewSQLiteMeasurementRepository creates a new SQLite-backed measurement store.
func NewSQLiteMeasurementRepository(db *sql.DB) *SQLiteMeasurementRepository {
	return &SQLiteMeasurementRepository{db: db}
}

// Create appends a measurement. The timestamp is stored in UTC.
func (r *SQLiteMeasurementRepository) Create(ctx context.Context, m *Measurement) error {
	if m.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidMeasurement)
	}
	if m.ID == "" {
		m.ID = "msr-" + uuid.NewString()
	}
	if m.TakenOn.IsZero() {
		m.TakenOn = time.Now()
	}
	m.TakenOn = m.TakenOn.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_measurements (id, device_id, value, unit, taken_on) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.DeviceID, m.Value, m.Unit, m.TakenOn.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting measurement: %w", err)
	}
	return nil
}

// ListByDevice returns readings for a device, newest first.
func (r *SQLiteMeasurementRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Measurement, error) {
	query := `
		SELECT id, device_id, value, unit, taken_on
		FROM device_measurements
		WHERE device_id = ?
		ORDER BY taken_on DESC`
	args := []any{deviceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	out := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return out, nil
}

// Latest returns the most recent reading for a device.
func (r *SQLiteMeasurementRepository) Latest(ctx context.Context, deviceID string) (*Measurement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, device_id, value, unit, taken_on
		FROM device_measurements
		WHERE device_id = ?
		ORDER BY taken_on DESC
		LIMIT 1`, deviceID)

	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanMeasurement(s scanner) (*Measurement, error) {
	var (
		m     Measurement
		taken string
	)
	if err := s.Scan(&m.ID, &m.DeviceID, &m.Value, &m.Unit, &taken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning measurement: %w", err)
	}
	t, err := time.Parse(timeLayout, taken)
	if err != nil {
		return nil, fmt.Errorf("parsing taken_on %q: %w", taken, err)
	}
	m.TakenOn = t
	return &m, nil
}
