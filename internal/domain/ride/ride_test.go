package ride

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testRide(maxPassengers int, passengers ...Passenger) *Ride {
	return &Ride{
		ID:            uuid.New(),
		Creator:       Creator{Name: "Asha", Phone: "+15550000001"},
		OriginID:      uuid.New(),
		DestinationID: uuid.New(),
		DepartureTime: time.Now().Add(2 * time.Hour),
		MaxPassengers: maxPassengers,
		Passengers:    passengers,
		Status:        StatusWaiting,
	}
}

// TestStatus_IsValid tests status validation
func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusWaiting, true},
		{StatusInProgress, true},
		{StatusCompleted, true},
		{StatusCancelled, true},
		{StatusArchived, true},
		{Status("pending"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}

// TestRide_Capacity tests seat accounting
func TestRide_Capacity(t *testing.T) {
	r := testRide(2, Passenger{Name: "Asha", Phone: "+15550000001"})

	assert.Equal(t, 1, r.AvailableSeats())
	assert.False(t, r.IsFull())

	r.Passengers = append(r.Passengers, Passenger{Name: "Ben", Phone: "+15550000002"})
	assert.Equal(t, 0, r.AvailableSeats())
	assert.True(t, r.IsFull())
}

// TestRide_HasPassenger tests phone-based roster membership
func TestRide_HasPassenger(t *testing.T) {
	r := testRide(4, Passenger{Name: "Asha", Phone: "+15550000001"})

	assert.True(t, r.HasPassenger("+15550000001"))
	assert.False(t, r.HasPassenger("+15550000002"))
}

// TestRide_AddPassenger tests the roster invariants
func TestRide_AddPassenger(t *testing.T) {
	joined := time.Now()

	t.Run("appends to waiting ride", func(t *testing.T) {
		r := testRide(4, Passenger{Name: "Asha", Phone: "+15550000001"})

		err := r.AddPassenger(Passenger{Name: "Ben", Phone: "+15550000002", JoinedAt: joined})
		assert.NoError(t, err)
		assert.Len(t, r.Passengers, 2)
		assert.Equal(t, joined, r.UpdatedAt)
	})

	t.Run("rejects duplicate phone", func(t *testing.T) {
		r := testRide(4, Passenger{Name: "Asha", Phone: "+15550000001"})

		err := r.AddPassenger(Passenger{Name: "Also Asha", Phone: "+15550000001"})
		assert.Equal(t, ErrDuplicatePassenger, err)
		assert.Len(t, r.Passengers, 1)
	})

	t.Run("rejects full ride", func(t *testing.T) {
		r := testRide(1, Passenger{Name: "Asha", Phone: "+15550000001"})

		err := r.AddPassenger(Passenger{Name: "Ben", Phone: "+15550000002"})
		assert.Equal(t, ErrRideFull, err)
	})

	t.Run("rejects non-waiting ride", func(t *testing.T) {
		r := testRide(4, Passenger{Name: "Asha", Phone: "+15550000001"})
		r.Status = StatusCancelled

		err := r.AddPassenger(Passenger{Name: "Ben", Phone: "+15550000002"})
		assert.Equal(t, ErrRideNotJoinable, err)
	})
}

// TestRide_CanTransitionTo tests the explicit status state machine
func TestRide_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"waiting to in_progress", StatusWaiting, StatusInProgress, true},
		{"waiting to completed", StatusWaiting, StatusCompleted, true},
		{"waiting to cancelled", StatusWaiting, StatusCancelled, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress to cancelled", StatusInProgress, StatusCancelled, true},
		{"in_progress to waiting", StatusInProgress, StatusWaiting, false},
		{"completed is terminal", StatusCompleted, StatusInProgress, false},
		{"cancelled is terminal", StatusCancelled, StatusWaiting, false},
		{"archived is terminal", StatusArchived, StatusWaiting, false},
		{"no explicit archival", StatusWaiting, StatusArchived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRide(4)
			r.Status = tt.from
			assert.Equal(t, tt.allowed, r.CanTransitionTo(tt.to))
		})
	}
}

// TestRide_IsActive tests which statuses block location deletion
func TestRide_IsActive(t *testing.T) {
	active := map[Status]bool{
		StatusWaiting:    true,
		StatusInProgress: true,
		StatusCompleted:  false,
		StatusCancelled:  false,
		StatusArchived:   false,
	}

	for status, want := range active {
		r := testRide(4)
		r.Status = status
		assert.Equal(t, want, r.IsActive(), "status %s", status)
	}
}
