package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgcarpool/carpool/internal/domain/location"
)

const locationColumns = `id, name, address, lat, lng, is_active, created_at, updated_at`

// LocationRepository is a PostgreSQL implementation of location.Repository
type LocationRepository struct {
	db        *sql.DB
	opTimeout time.Duration
}

// NewLocationRepository creates a new LocationRepository
func NewLocationRepository(db *sql.DB, opTimeout time.Duration) *LocationRepository {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &LocationRepository{db: db, opTimeout: opTimeout}
}

func (r *LocationRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// Create inserts a new location; ErrDuplicateName on a unique-name violation
func (r *LocationRepository) Create(ctx context.Context, l *location.Location) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var lat, lng sql.NullFloat64
	if l.Coordinates != nil {
		lat = sql.NullFloat64{Float64: l.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: l.Coordinates.Lng, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, address, lat, lng, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, l.ID, l.Name, nullString(l.Address), lat, lng, l.IsActive)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return location.ErrDuplicateName
		}
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	return scanLocation(row)
}

// GetByName retrieves a location by its unique name
func (r *LocationRepository) GetByName(ctx context.Context, name string) (*location.Location, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE name = $1`, name)
	return scanLocation(row)
}

// List returns locations sorted by name
func (r *LocationRepository) List(ctx context.Context, activeOnly bool) ([]*location.Location, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + locationColumns + ` FROM locations`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []*location.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locations, nil
}

// SetActive sets the active flag and returns the updated location
func (r *LocationRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*location.Location, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE locations
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+locationColumns+`
	`, id, active)
	return scanLocation(row)
}

// Delete removes the location
func (r *LocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if rows == 0 {
		return location.ErrLocationNotFound
	}
	return nil
}

func scanLocation(row rowScanner) (*location.Location, error) {
	var (
		l        location.Location
		address  sql.NullString
		lat, lng sql.NullFloat64
	)

	err := row.Scan(&l.ID, &l.Name, &address, &lat, &lng, &l.IsActive,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, location.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan location: %w", err)
	}

	l.Address = address.String
	if lat.Valid && lng.Valid {
		l.Coordinates = &location.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &l, nil
}
