package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for ride data access
type Repository interface {
	// Create inserts a new ride. If another waiting ride already occupies
	// the same (origin, destination, departure bucket) slot it returns
	// ErrRideConflict and writes nothing.
	Create(ctx context.Context, r *Ride) error

	// GetByID retrieves a ride by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)

	// GetByIdempotencyKey retrieves a ride created with the given key
	GetByIdempotencyKey(ctx context.Context, key string) (*Ride, error)

	// FindMatch returns the oldest-created waiting ride on the route whose
	// departure is within the window of the requested time
	FindMatch(ctx context.Context, originID, destinationID uuid.UUID, departure time.Time, window time.Duration) (*Ride, error)

	// AppendPassenger atomically appends a passenger, re-checking capacity,
	// duplicate phone and joinability inside the write itself
	AppendPassenger(ctx context.Context, rideID uuid.UUID, p Passenger) (*Ride, error)

	// UpdateStatus moves a ride from one status to another and returns the
	// updated ride. The write only applies while the ride is still in the
	// from status; ErrRideConflict means it moved under the caller.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Ride, error)

	// ListWaiting returns waiting rides departing at or after the given time,
	// departure-ascending
	ListWaiting(ctx context.Context, from time.Time) ([]*Ride, error)

	// ListBetween returns rides departing in [from, to), departure-ascending
	ListBetween(ctx context.Context, from, to time.Time) ([]*Ride, error)

	// ListArchived returns archived rides, most recently updated first
	ListArchived(ctx context.Context) ([]*Ride, error)

	// ArchivePast archives every non-archived ride whose departure is before now
	ArchivePast(ctx context.Context, now time.Time) (int64, error)

	// PurgeArchivedBefore hard-deletes archived rides last updated before cutoff
	PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListOrphans returns rides whose origin or destination no longer resolves
	ListOrphans(ctx context.Context) ([]*Ride, error)

	// Delete hard-deletes rides by ID
	Delete(ctx context.Context, ids ...uuid.UUID) (int64, error)

	// CountActiveByLocation counts waiting/in_progress rides referencing the
	// location as origin or destination
	CountActiveByLocation(ctx context.Context, locationID uuid.UUID) (int, error)

	// PurgeByLocation hard-deletes historical (non-active) rides referencing
	// the location as origin or destination
	PurgeByLocation(ctx context.Context, locationID uuid.UUID) (int64, error)
}
