package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/domain/ride"
)

const matchBucket = 30 * time.Minute

// RideRepository is an in-memory ride.Repository used in tests. It mirrors
// the conditional-write semantics of the PostgreSQL implementation: the
// append and create guards run under one lock, so concurrent calls observe
// the same all-or-nothing behavior.
type RideRepository struct {
	mu        sync.Mutex
	rides     map[uuid.UUID]*ride.Ride
	locations *LocationRepository
	Now       func() time.Time
}

// NewRideRepository creates an empty in-memory ride repository
func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides: make(map[uuid.UUID]*ride.Ride),
		Now:   time.Now,
	}
}

// Put seeds a ride directly, bypassing the create guards
func (r *RideRepository) Put(rd *ride.Ride) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneRide(rd)
	r.rides[cp.ID] = cp
}

// Len returns the number of stored rides
func (r *RideRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rides)
}

func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := rd.DepartureTime.UTC().Truncate(matchBucket)
	for _, existing := range r.rides {
		if existing.Status == ride.StatusWaiting &&
			existing.OriginID == rd.OriginID &&
			existing.DestinationID == rd.DestinationID &&
			existing.DepartureTime.UTC().Truncate(matchBucket).Equal(bucket) {
			return ride.ErrRideConflict
		}
		if rd.IdempotencyKey != "" && existing.IdempotencyKey == rd.IdempotencyKey {
			return ride.ErrRideConflict
		}
	}

	r.rides[rd.ID] = cloneRide(rd)
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd, ok := r.rides[id]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	return cloneRide(rd), nil
}

func (r *RideRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rd := range r.rides {
		if rd.IdempotencyKey == key {
			return cloneRide(rd), nil
		}
	}
	return nil, ride.ErrRideNotFound
}

func (r *RideRepository) FindMatch(ctx context.Context, originID, destinationID uuid.UUID, departure time.Time, window time.Duration) (*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match *ride.Ride
	for _, rd := range r.rides {
		if rd.Status != ride.StatusWaiting ||
			rd.OriginID != originID || rd.DestinationID != destinationID {
			continue
		}
		diff := rd.DepartureTime.Sub(departure)
		if diff < -window || diff > window {
			continue
		}
		if match == nil || rd.CreatedAt.Before(match.CreatedAt) {
			match = rd
		}
	}
	if match == nil {
		return nil, ride.ErrRideNotFound
	}
	return cloneRide(match), nil
}

func (r *RideRepository) AppendPassenger(ctx context.Context, rideID uuid.UUID, p ride.Passenger) (*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd, ok := r.rides[rideID]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	if !rd.IsJoinable() {
		return nil, ride.ErrRideNotJoinable
	}
	if rd.HasPassenger(p.Phone) {
		return nil, ride.ErrDuplicatePassenger
	}
	if rd.IsFull() {
		return nil, ride.ErrRideFull
	}

	rd.Passengers = append(rd.Passengers, p)
	rd.UpdatedAt = r.Now()
	return cloneRide(rd), nil
}

func (r *RideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ride.Status) (*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd, ok := r.rides[id]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	if rd.Status != from {
		return nil, ride.ErrRideConflict
	}
	rd.Status = to
	rd.UpdatedAt = r.Now()
	return cloneRide(rd), nil
}

func (r *RideRepository) ListWaiting(ctx context.Context, from time.Time) ([]*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ride.Ride
	for _, rd := range r.rides {
		if rd.Status == ride.StatusWaiting && !rd.DepartureTime.Before(from) {
			out = append(out, cloneRide(rd))
		}
	}
	sortByDeparture(out)
	return out, nil
}

func (r *RideRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ride.Ride
	for _, rd := range r.rides {
		if !rd.DepartureTime.Before(from) && rd.DepartureTime.Before(to) {
			out = append(out, cloneRide(rd))
		}
	}
	sortByDeparture(out)
	return out, nil
}

func (r *RideRepository) ListArchived(ctx context.Context) ([]*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ride.Ride
	for _, rd := range r.rides {
		if rd.Status == ride.StatusArchived {
			out = append(out, cloneRide(rd))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *RideRepository) ArchivePast(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, rd := range r.rides {
		if rd.Status != ride.StatusArchived && rd.DepartureTime.Before(now) {
			rd.Status = ride.StatusArchived
			rd.UpdatedAt = r.Now()
			count++
		}
	}
	return count, nil
}

func (r *RideRepository) PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, rd := range r.rides {
		if rd.Status == ride.StatusArchived && rd.UpdatedAt.Before(cutoff) {
			delete(r.rides, id)
			count++
		}
	}
	return count, nil
}

// Orphans tracks location existence through the companion
// LocationRepository when one is attached via SetLocations.
func (r *RideRepository) ListOrphans(ctx context.Context) ([]*ride.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locations == nil {
		return nil, nil
	}
	var out []*ride.Ride
	for _, rd := range r.rides {
		if !r.locations.exists(rd.OriginID) || !r.locations.exists(rd.DestinationID) {
			out = append(out, cloneRide(rd))
		}
	}
	return out, nil
}

func (r *RideRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, id := range ids {
		if _, ok := r.rides[id]; ok {
			delete(r.rides, id)
			count++
		}
	}
	return count, nil
}

func (r *RideRepository) CountActiveByLocation(ctx context.Context, locationID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, rd := range r.rides {
		if rd.IsActive() && (rd.OriginID == locationID || rd.DestinationID == locationID) {
			count++
		}
	}
	return count, nil
}

func (r *RideRepository) PurgeByLocation(ctx context.Context, locationID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, rd := range r.rides {
		if !rd.IsActive() && (rd.OriginID == locationID || rd.DestinationID == locationID) {
			delete(r.rides, id)
			count++
		}
	}
	return count, nil
}

// SetLocations attaches a location repository for orphan detection
func (r *RideRepository) SetLocations(locs *LocationRepository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = locs
}

func sortByDeparture(rides []*ride.Ride) {
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].DepartureTime.Before(rides[j].DepartureTime)
	})
}

func cloneRide(rd *ride.Ride) *ride.Ride {
	cp := *rd
	cp.Passengers = append([]ride.Passenger(nil), rd.Passengers...)
	return &cp
}
