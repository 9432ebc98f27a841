package ride

import (
	"time"

	"github.com/google/uuid"
)

// Status represents ride lifecycle status
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusArchived   Status = "archived"
)

// Capacity bounds carried over from the admin form limits.
const (
	DefaultMaxPassengers = 4
	MinPassengerCapacity = 1
	MaxPassengerCapacity = 8
)

// Passenger is an entry in a ride's roster. Rosters are append-only,
// so JoinedAt is non-decreasing in list order.
type Passenger struct {
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	JoinedAt time.Time `json:"joined_at"`
}

// Creator identifies who posted the ride
type Creator struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Ride represents a single departure-time-bound carpool instance
type Ride struct {
	ID             uuid.UUID   `json:"id"`
	Creator        Creator     `json:"creator"`
	OriginID       uuid.UUID   `json:"origin_id"`
	DestinationID  uuid.UUID   `json:"destination_id"`
	DepartureTime  time.Time   `json:"departure_time"`
	MaxPassengers  int         `json:"max_passengers"`
	Passengers     []Passenger `json:"passengers"`
	Status         Status      `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	IdempotencyKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

// AvailableSeats returns the number of seats left on the ride
func (r *Ride) AvailableSeats() int {
	return r.MaxPassengers - len(r.Passengers)
}

// IsFull returns true if the ride has no free seats
func (r *Ride) IsFull() bool {
	return len(r.Passengers) >= r.MaxPassengers
}

// HasPassenger returns true if a passenger with the given phone already joined
func (r *Ride) HasPassenger(phone string) bool {
	for _, p := range r.Passengers {
		if p.Phone == phone {
			return true
		}
	}
	return false
}

// IsActive returns true for rides that still block location deletion
func (r *Ride) IsActive() bool {
	return r.Status == StatusWaiting || r.Status == StatusInProgress
}

// IsJoinable returns true if the ride can accept new passengers
func (r *Ride) IsJoinable() bool {
	return r.Status == StatusWaiting
}

// AddPassenger appends a passenger after checking the roster invariants.
// It mutates only the in-memory value; persistence must re-check the same
// conditions in the write itself.
func (r *Ride) AddPassenger(p Passenger) error {
	if !r.IsJoinable() {
		return ErrRideNotJoinable
	}
	if r.HasPassenger(p.Phone) {
		return ErrDuplicatePassenger
	}
	if r.IsFull() {
		return ErrRideFull
	}
	r.Passengers = append(r.Passengers, p)
	r.UpdatedAt = p.JoinedAt
	return nil
}

// CanTransitionTo reports whether an explicit status change is allowed.
// Archived is terminal; time-based archival is handled by the lifecycle
// sweeps, not by this check.
func (r *Ride) CanTransitionTo(next Status) bool {
	switch r.Status {
	case StatusWaiting:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}
