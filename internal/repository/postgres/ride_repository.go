package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgcarpool/carpool/internal/domain/ride"
)

// matchBucket is the width of the departure_bucket column used by the
// partial unique index that collapses concurrent find-or-create races.
// It must match the default matching window.
const matchBucket = 30 * time.Minute

const rideColumns = `id, creator_name, creator_phone, origin_id, destination_id,
	departure_time, max_passengers, passengers, status, notes, idempotency_key,
	created_at, updated_at`

// RideRepository is a PostgreSQL implementation of ride.Repository
type RideRepository struct {
	db        *sql.DB
	opTimeout time.Duration
}

// NewRideRepository creates a new RideRepository
func NewRideRepository(db *sql.DB, opTimeout time.Duration) *RideRepository {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &RideRepository{db: db, opTimeout: opTimeout}
}

func (r *RideRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// Create inserts a new ride. The partial unique index on
// (origin_id, destination_id, departure_bucket) WHERE status = 'waiting'
// turns two concurrent "no match found" creates into one insert and one
// ErrRideConflict; the caller re-runs its match on conflict.
func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	passengers, err := json.Marshal(rd.Passengers)
	if err != nil {
		return fmt.Errorf("marshal passengers: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO rides (
			id, creator_name, creator_phone, origin_id, destination_id,
			departure_time, departure_bucket, max_passengers, passengers,
			status, notes, idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (origin_id, destination_id, departure_bucket)
			WHERE status = 'waiting' DO NOTHING
	`, rd.ID, rd.Creator.Name, rd.Creator.Phone, rd.OriginID, rd.DestinationID,
		rd.DepartureTime, rd.DepartureTime.UTC().Truncate(matchBucket),
		rd.MaxPassengers, passengers, rd.Status, nullString(rd.Notes),
		nullString(rd.IdempotencyKey))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Unique violation on the idempotency key; the caller resolves
			// it the same way as a route/bucket conflict.
			return ride.ErrRideConflict
		}
		return fmt.Errorf("insert ride: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	if rows == 0 {
		return ride.ErrRideConflict
	}
	return nil
}

// GetByID retrieves a ride by ID
func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

// GetByIdempotencyKey retrieves a ride created with the given key
func (r *RideRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE idempotency_key = $1`, key)
	return scanRide(row)
}

// FindMatch returns the oldest-created waiting ride on the route whose
// departure falls within the window around the requested time.
func (r *RideRepository) FindMatch(ctx context.Context, originID, destinationID uuid.UUID, departure time.Time, window time.Duration) (*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE origin_id = $1
		  AND destination_id = $2
		  AND status = 'waiting'
		  AND departure_time BETWEEN $3 AND $4
		ORDER BY created_at ASC
		LIMIT 1
	`, originID, destinationID, departure.Add(-window), departure.Add(window))
	return scanRide(row)
}

// AppendPassenger appends a passenger in a single conditional UPDATE.
// Joinability, capacity and the duplicate-phone check all happen inside
// the statement, so two concurrent joins can never both slip past a
// capacity boundary. A zero-row result is re-read once to classify the
// failure.
func (r *RideRepository) AppendPassenger(ctx context.Context, rideID uuid.UUID, p ride.Passenger) (*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	entry, err := json.Marshal([]ride.Passenger{p})
	if err != nil {
		return nil, fmt.Errorf("marshal passenger: %w", err)
	}
	phoneProbe, err := json.Marshal([]map[string]string{{"phone": p.Phone}})
	if err != nil {
		return nil, fmt.Errorf("marshal phone probe: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET passengers = passengers || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		  AND status = 'waiting'
		  AND jsonb_array_length(passengers) < max_passengers
		  AND NOT passengers @> $3::jsonb
		RETURNING `+rideColumns+`
	`, rideID, entry, phoneProbe)

	updated, err := scanRide(row)
	if err == nil {
		return updated, nil
	}
	if err != ride.ErrRideNotFound {
		return nil, err
	}

	// The guarded update matched nothing; read the ride back to say why.
	current, err := r.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	switch {
	case !current.IsJoinable():
		return nil, ride.ErrRideNotJoinable
	case current.HasPassenger(p.Phone):
		return nil, ride.ErrDuplicatePassenger
	case current.IsFull():
		return nil, ride.ErrRideFull
	}
	return nil, ride.ErrRideNotJoinable
}

// UpdateStatus moves a ride from one status to another. The status
// predicate makes the transition a compare-and-swap, so a transition
// racing the archive sweep cannot overwrite the sweep's write.
func (r *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ride.Status) (*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+rideColumns+`
	`, id, from, to)

	updated, err := scanRide(row)
	if err == nil {
		return updated, nil
	}
	if err != ride.ErrRideNotFound {
		return nil, err
	}

	// Zero rows: gone, or the status moved since the caller read it.
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ride.ErrRideConflict
}

// ListWaiting returns waiting rides departing at or after the given time
func (r *RideRepository) ListWaiting(ctx context.Context, from time.Time) ([]*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'waiting' AND departure_time >= $1
		ORDER BY departure_time ASC
	`, from)
	if err != nil {
		return nil, fmt.Errorf("list waiting rides: %w", err)
	}
	defer rows.Close()
	return scanRides(rows)
}

// ListBetween returns rides departing in [from, to)
func (r *RideRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE departure_time >= $1 AND departure_time < $2
		ORDER BY departure_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list rides between: %w", err)
	}
	defer rows.Close()
	return scanRides(rows)
}

// ListArchived returns archived rides, most recently updated first
func (r *RideRepository) ListArchived(ctx context.Context) ([]*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'archived'
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list archived rides: %w", err)
	}
	defer rows.Close()
	return scanRides(rows)
}

// ArchivePast archives every non-archived ride whose departure is before now
func (r *RideRepository) ArchivePast(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE rides
		SET status = 'archived', updated_at = NOW()
		WHERE departure_time < $1
		  AND status IN ('waiting', 'in_progress', 'completed', 'cancelled')
	`, now)
	if err != nil {
		return 0, fmt.Errorf("archive past rides: %w", err)
	}
	return res.RowsAffected()
}

// PurgeArchivedBefore hard-deletes archived rides last updated before cutoff
func (r *RideRepository) PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM rides
		WHERE status = 'archived' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge archived rides: %w", err)
	}
	return res.RowsAffected()
}

// ListOrphans returns rides whose origin or destination no longer resolves
func (r *RideRepository) ListOrphans(ctx context.Context) ([]*ride.Ride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixedRideColumns("r")+`
		FROM rides r
		LEFT JOIN locations o ON r.origin_id = o.id
		LEFT JOIN locations d ON r.destination_id = d.id
		WHERE o.id IS NULL OR d.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list orphaned rides: %w", err)
	}
	defer rows.Close()
	return scanRides(rows)
}

// Delete hard-deletes rides by ID
func (r *RideRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM rides WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete rides: %w", err)
	}
	return res.RowsAffected()
}

// CountActiveByLocation counts waiting/in_progress rides referencing the location
func (r *RideRepository) CountActiveByLocation(ctx context.Context, locationID uuid.UUID) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM rides
		WHERE (origin_id = $1 OR destination_id = $1)
		  AND status IN ('waiting', 'in_progress')
	`, locationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active rides for location: %w", err)
	}
	return count, nil
}

// PurgeByLocation hard-deletes historical rides referencing the location
func (r *RideRepository) PurgeByLocation(ctx context.Context, locationID uuid.UUID) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM rides
		WHERE (origin_id = $1 OR destination_id = $1)
		  AND status NOT IN ('waiting', 'in_progress')
	`, locationID)
	if err != nil {
		return 0, fmt.Errorf("purge rides for location: %w", err)
	}
	return res.RowsAffected()
}

// scanning helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*ride.Ride, error) {
	var (
		rd             ride.Ride
		passengers     []byte
		notes          sql.NullString
		idempotencyKey sql.NullString
	)

	err := row.Scan(
		&rd.ID, &rd.Creator.Name, &rd.Creator.Phone, &rd.OriginID,
		&rd.DestinationID, &rd.DepartureTime, &rd.MaxPassengers, &passengers,
		&rd.Status, &notes, &idempotencyKey, &rd.CreatedAt, &rd.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ride: %w", err)
	}

	if err := json.Unmarshal(passengers, &rd.Passengers); err != nil {
		return nil, fmt.Errorf("unmarshal passengers: %w", err)
	}
	rd.Notes = notes.String
	rd.IdempotencyKey = idempotencyKey.String
	return &rd, nil
}

func scanRides(rows *sql.Rows) ([]*ride.Ride, error) {
	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rides: %w", err)
	}
	return rides, nil
}

func prefixedRideColumns(alias string) string {
	return alias + `.id, ` + alias + `.creator_name, ` + alias + `.creator_phone, ` +
		alias + `.origin_id, ` + alias + `.destination_id, ` + alias + `.departure_time, ` +
		alias + `.max_passengers, ` + alias + `.passengers, ` + alias + `.status, ` +
		alias + `.notes, ` + alias + `.idempotency_key, ` + alias + `.created_at, ` +
		alias + `.updated_at`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
