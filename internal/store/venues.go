package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Venue is a support location listed by the API.
type Venue struct {
	ID          int        `json:"id"`
	Name        string     `json:"nome"`
	Address     string     `json:"endereco"`
	Logo        string     `json:"logo"`
	Responsible string     `json:"responsavel"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// VenueInput carries the writable fields of a venue.
type VenueInput struct {
	Name        string  `json:"nome"`
	Address     string  `json:"endereco"`
	Logo        string  `json:"logo"`
	Responsible string  `json:"responsavel"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// VenuePatch carries the fields of a partial update. Nil fields are kept.
type VenuePatch struct {
	Name        *string  `json:"nome"`
	Address     *string  `json:"endereco"`
	Logo        *string  `json:"logo"`
	Responsible *string  `json:"responsavel"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Apply returns v with the patch's non-nil fields applied.
func (p VenuePatch) Apply(v Venue) Venue {
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Address != nil {
		v.Address = *p.Address
	}
	if p.Logo != nil {
		v.Logo = *p.Logo
	}
	if p.Responsible != nil {
		v.Responsible = *p.Responsible
	}
	if p.Latitude != nil {
		v.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		v.Longitude = *p.Longitude
	}
	return v
}

// VenueRepository persists venues.
type VenueRepository interface {
	ListVenues(ctx context.Context) ([]Venue, error)
	GetVenue(ctx context.Context, id int) (Venue, error)
	CreateVenue(ctx context.Context, in VenueInput) (Venue, error)
	UpdateVenue(ctx context.Context, id int, patch VenuePatch) (Venue, error)
	DeleteVenue(ctx context.Context, id int) error
}

// SeedVenues inserts the default venues when the repository is empty. It
// returns how many were inserted.
func SeedVenues(ctx context.Context, repo VenueRepository, logger *zap.Logger) (int, error) {
	existing, err := repo.ListVenues(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		logger.Info("Venues already present; seed skipped.", zap.Int("count", len(existing)))
		return 0, nil
	}
	for i, in := range DefaultVenues() {
		if _, err := repo.CreateVenue(ctx, in); err != nil {
			return i, fmt.Errorf("failed to seed venue %q: %w", in.Name, err)
		}
	}
	logger.Info("Seeded default venues.", zap.Int("count", len(DefaultVenues())))
	return len(DefaultVenues()), nil
}

const venueColumns = `id, name, address, logo, responsible, latitude, longitude, created_at, updated_at`

func scanVenue(row pgx.Row) (Venue, error) {
	var v Venue
	err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Logo, &v.Responsible, &v.Latitude, &v.Longitude, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// ListVenues returns every venue ordered by id.
func (s *Store) ListVenues(ctx context.Context) ([]Venue, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	venues := []Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venues: %w", err)
	}
	return venues, nil
}

// GetVenue returns one venue or ErrNotFound.
func (s *Store) GetVenue(ctx context.Context, id int) (Venue, error) {
	v, err := scanVenue(s.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Venue{}, ErrNotFound
	}
	if err != nil {
		return Venue{}, fmt.Errorf("failed to get venue %d: %w", id, err)
	}
	return v, nil
}

// CreateVenue inserts a venue and returns it with its new id.
func (s *Store) CreateVenue(ctx context.Context, in VenueInput) (Venue, error) {
	v, err := scanVenue(s.pool.QueryRow(ctx,
		`INSERT INTO venues (name, address, logo, responsible, latitude, longitude, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+venueColumns,
		in.Name, in.Address, in.Logo, in.Responsible, in.Latitude, in.Longitude, s.now()))
	if err != nil {
		return Venue{}, fmt.Errorf("failed to insert venue: %w", err)
	}
	return v, nil
}

// UpdateVenue applies patch inside a transaction and returns the result.
func (s *Store) UpdateVenue(ctx context.Context, id int, patch VenuePatch) (Venue, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Venue{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	current, err := scanVenue(tx.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Venue{}, ErrNotFound
	}
	if err != nil {
		return Venue{}, fmt.Errorf("failed to load venue %d: %w", id, err)
	}

	next := patch.Apply(current)
	updated, err := scanVenue(tx.QueryRow(ctx,
		`UPDATE venues SET name = $2, address = $3, logo = $4, responsible = $5,
		        latitude = $6, longitude = $7, updated_at = $8
		 WHERE id = $1
		 RETURNING `+venueColumns,
		id, next.Name, next.Address, next.Logo, next.Responsible, next.Latitude, next.Longitude, s.now()))
	if err != nil {
		return Venue{}, fmt.Errorf("failed to update venue %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Venue{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// DeleteVenue removes a venue or returns ErrNotFound.
func (s *Store) DeleteVenue(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete venue %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
