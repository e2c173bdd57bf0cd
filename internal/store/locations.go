package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeviceLocation is the last position reported by a tracked device.
type DeviceLocation struct {
	Accuracy   string    `json:"accuracy"`
	DeviceName string    `json:"device_name"`
	DeviceTime string    `json:"device_time"`
	IsMoving   bool      `json:"is_moving"`
	Latitude   string    `json:"latitude"`
	Longitude  string    `json:"longitude"`
	Speed      string    `json:"speed"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// LocationRepository keeps one location record per device.
type LocationRepository interface {
	// SaveLocation upserts by device name and reports whether an existing
	// record was updated.
	SaveLocation(ctx context.Context, loc DeviceLocation) (id string, updated bool, err error)
}

// SaveLocation upserts loc keyed by DeviceName.
func (s *Store) SaveLocation(ctx context.Context, loc DeviceLocation) (string, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	loc.ReceivedAt = s.now()
	args := []any{loc.DeviceName, loc.Accuracy, loc.DeviceTime, loc.IsMoving,
		loc.Latitude, loc.Longitude, loc.Speed, loc.Timestamp, loc.ReceivedAt}

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM device_locations WHERE device_name = $1 FOR UPDATE`, loc.DeviceName).Scan(&id)
	updated := true
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		updated = false
		id = uuid.NewString()
		_, err = tx.Exec(ctx,
			`INSERT INTO device_locations
			   (id, device_name, accuracy, device_time, is_moving, latitude, longitude, speed, timestamp, received_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			append([]any{id}, args...)...)
	case err == nil:
		_, err = tx.Exec(ctx,
			`UPDATE device_locations SET accuracy = $2, device_time = $3, is_moving = $4, latitude = $5,
			        longitude = $6, speed = $7, timestamp = $8, received_at = $9
			 WHERE device_name = $1`,
			args...)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to save location for %q: %w", loc.DeviceName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, updated, nil
}
