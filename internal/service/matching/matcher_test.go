package matching

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgcarpool/carpool/internal/domain/location"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/internal/repository/memory"
	"github.com/pgcarpool/carpool/internal/service/notify"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// testNow is 09:00 UTC, inside the 08:00-20:00 service window.
var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Window:               30 * time.Minute,
		DefaultMaxPassengers: 4,
		ServiceHours:         ServiceHours{Enabled: true, OpenHour: 8, CloseHour: 20},
	}
}

func newTestService(t *testing.T, rides ride.Repository, locations location.Repository) *Service {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)

	s := NewService(rides, locations, notify.New(nil, nil, nil, log), log, testConfig())
	s.now = func() time.Time { return testNow }
	return s
}

func seedLocations(locs *memory.LocationRepository) (origin, destination uuid.UUID) {
	origin = uuid.New()
	destination = uuid.New()
	locs.Put(&location.Location{ID: origin, Name: "North Campus", IsActive: true})
	locs.Put(&location.Location{ID: destination, Name: "Downtown", IsActive: true})
	return origin, destination
}

func testRequest(origin, destination uuid.UUID) Request {
	return Request{
		PassengerName:  "Asha",
		PassengerPhone: "+15550000001",
		OriginID:       origin,
		DestinationID:  destination,
		DepartureTime:  testNow.Add(3 * time.Hour),
	}
}

// TestRequestRide_CreatesNewRide tests creation when no match exists
func TestRequestRide_CreatesNewRide(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	rd, created, err := s.RequestRide(context.Background(), testRequest(origin, destination))

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ride.StatusWaiting, rd.Status)
	assert.Equal(t, 4, rd.MaxPassengers)
	require.Len(t, rd.Passengers, 1)
	assert.Equal(t, "Asha", rd.Creator.Name)
	assert.Equal(t, rd.Creator.Phone, rd.Passengers[0].Phone)
}

// TestRequestRide_JoinsMatchWithinWindow tests that a second request on
// the same route joins the existing ride instead of creating one
func TestRequestRide_JoinsMatchWithinWindow(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	first, created, err := s.RequestRide(context.Background(), testRequest(origin, destination))
	require.NoError(t, err)
	require.True(t, created)

	second := testRequest(origin, destination)
	second.PassengerName = "Ben"
	second.PassengerPhone = "+15550000002"
	second.DepartureTime = first.DepartureTime.Add(20 * time.Minute)

	rd, created, err := s.RequestRide(context.Background(), second)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, rd.ID)
	assert.Len(t, rd.Passengers, 2)
	assert.Equal(t, 1, rides.Len())
}

// TestRequestRide_OutsideWindowCreatesSeparateRide tests that departures
// further apart than the window never share a ride
func TestRequestRide_OutsideWindowCreatesSeparateRide(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	first := testRequest(origin, destination)
	first.DepartureTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	_, created, err := s.RequestRide(context.Background(), first)
	require.NoError(t, err)
	require.True(t, created)

	second := testRequest(origin, destination)
	second.PassengerPhone = "+15550000002"
	second.DepartureTime = time.Date(2026, 3, 10, 12, 45, 0, 0, time.UTC)

	_, created, err = s.RequestRide(context.Background(), second)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, rides.Len())
}

// TestRequestRide_ReverseRouteDoesNotMatch tests route directionality
func TestRequestRide_ReverseRouteDoesNotMatch(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	_, created, err := s.RequestRide(context.Background(), testRequest(origin, destination))
	require.NoError(t, err)
	require.True(t, created)

	reversed := testRequest(destination, origin)
	reversed.PassengerPhone = "+15550000002"

	_, created, err = s.RequestRide(context.Background(), reversed)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, rides.Len())
}

// TestRequestRide_PrefersOldestMatch tests the deterministic tie-break
// across multiple compatible waiting rides
func TestRequestRide_PrefersOldestMatch(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	departure := testNow.Add(3 * time.Hour)
	older := &ride.Ride{
		ID:            uuid.New(),
		Creator:       ride.Creator{Name: "Asha", Phone: "+15550000001"},
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: departure,
		MaxPassengers: 4,
		Passengers:    []ride.Passenger{{Name: "Asha", Phone: "+15550000001"}},
		Status:        ride.StatusWaiting,
		CreatedAt:     testNow.Add(-2 * time.Hour),
	}
	newer := &ride.Ride{
		ID:            uuid.New(),
		Creator:       ride.Creator{Name: "Ben", Phone: "+15550000002"},
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: departure.Add(10 * time.Minute),
		MaxPassengers: 4,
		Passengers:    []ride.Passenger{{Name: "Ben", Phone: "+15550000002"}},
		Status:        ride.StatusWaiting,
		CreatedAt:     testNow.Add(-1 * time.Hour),
	}
	rides.Put(newer)
	rides.Put(older)

	req := testRequest(origin, destination)
	req.PassengerName = "Carol"
	req.PassengerPhone = "+15550000003"
	req.DepartureTime = departure.Add(5 * time.Minute)

	rd, created, err := s.RequestRide(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, older.ID, rd.ID)
}

// TestRequestRide_Preconditions tests every validation failure
func TestRequestRide_Preconditions(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)

	inactive := uuid.New()
	locs.Put(&location.Location{ID: inactive, Name: "Old Depot", IsActive: false})

	s := newTestService(t, rides, locs)

	tests := []struct {
		name     string
		mutate   func(r *Request)
		wantCode string
	}{
		{
			name:     "missing passenger name",
			mutate:   func(r *Request) { r.PassengerName = "  " },
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "missing passenger phone",
			mutate:   func(r *Request) { r.PassengerPhone = "" },
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "origin equals destination",
			mutate:   func(r *Request) { r.DestinationID = r.OriginID },
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "capacity above limit",
			mutate:   func(r *Request) { r.MaxPassengers = 9 },
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "departure in the past",
			mutate:   func(r *Request) { r.DepartureTime = testNow.Add(-time.Hour) },
			wantCode: "PAST_DEPARTURE",
		},
		{
			name:     "departure equal to now",
			mutate:   func(r *Request) { r.DepartureTime = testNow },
			wantCode: "PAST_DEPARTURE",
		},
		{
			name:     "departure outside service hours",
			mutate:   func(r *Request) { r.DepartureTime = time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC) },
			wantCode: "OUTSIDE_SERVICE_HOURS",
		},
		{
			name:     "unknown origin",
			mutate:   func(r *Request) { r.OriginID = uuid.New() },
			wantCode: "UNKNOWN_LOCATION",
		},
		{
			name:     "unknown destination",
			mutate:   func(r *Request) { r.DestinationID = uuid.New() },
			wantCode: "UNKNOWN_LOCATION",
		},
		{
			name:     "inactive destination",
			mutate:   func(r *Request) { r.DestinationID = inactive },
			wantCode: "LOCATION_INACTIVE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(origin, destination)
			tt.mutate(&req)

			_, _, err := s.RequestRide(context.Background(), req)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.GetAppError(err).Code)
			assert.Equal(t, 0, rides.Len())
		})
	}
}

// TestRequestRide_DuplicatePassengerOnMatch tests that a requester
// already on the matched ride is rejected, not double-added
func TestRequestRide_DuplicatePassengerOnMatch(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	req := testRequest(origin, destination)
	_, _, err := s.RequestRide(context.Background(), req)
	require.NoError(t, err)

	_, _, err = s.RequestRide(context.Background(), req)

	assert.ErrorIs(t, err, apperrors.ErrDuplicatePassenger)
	assert.Equal(t, 1, rides.Len())
}

// TestRequestRide_FullMatchIsRejected tests that a full matched ride
// surfaces RideFull instead of silently forking a new ride
func TestRequestRide_FullMatchIsRejected(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	full := &ride.Ride{
		ID:            uuid.New(),
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: testNow.Add(3 * time.Hour),
		MaxPassengers: 1,
		Passengers:    []ride.Passenger{{Name: "Asha", Phone: "+15550000001"}},
		Status:        ride.StatusWaiting,
		CreatedAt:     testNow.Add(-time.Hour),
	}
	rides.Put(full)

	req := testRequest(origin, destination)
	req.PassengerName = "Ben"
	req.PassengerPhone = "+15550000002"

	_, _, err := s.RequestRide(context.Background(), req)

	assert.ErrorIs(t, err, apperrors.ErrRideFull)
}

// TestRequestRide_IdempotencyKeyReturnsExisting tests retry dedupe
func TestRequestRide_IdempotencyKeyReturnsExisting(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	req := testRequest(origin, destination)
	req.IdempotencyKey = "req-7f3a"

	first, created, err := s.RequestRide(context.Background(), req)
	require.NoError(t, err)
	require.True(t, created)

	retry, created, err := s.RequestRide(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, retry.ID)
	assert.Len(t, retry.Passengers, 1)
	assert.Equal(t, 1, rides.Len())
}

// racingRides loses the first create to a concurrent writer: it stores
// the winner's ride and reports a conflict, so the caller must re-match.
type racingRides struct {
	*memory.RideRepository
	winner *ride.Ride
	raced  bool
}

func (r *racingRides) Create(ctx context.Context, rd *ride.Ride) error {
	if !r.raced {
		r.raced = true
		r.RideRepository.Put(r.winner)
		return ride.ErrRideConflict
	}
	return r.RideRepository.Create(ctx, rd)
}

// TestRequestRide_LostRaceJoinsWinner tests the create/re-match retry
func TestRequestRide_LostRaceJoinsWinner(t *testing.T) {
	mem := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)

	req := testRequest(origin, destination)
	req.PassengerName = "Ben"
	req.PassengerPhone = "+15550000002"

	winner := &ride.Ride{
		ID:            uuid.New(),
		Creator:       ride.Creator{Name: "Asha", Phone: "+15550000001"},
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: req.DepartureTime,
		MaxPassengers: 4,
		Passengers:    []ride.Passenger{{Name: "Asha", Phone: "+15550000001"}},
		Status:        ride.StatusWaiting,
		CreatedAt:     testNow,
	}

	rides := &racingRides{RideRepository: mem, winner: winner}
	s := newTestService(t, rides, locs)

	rd, created, err := s.RequestRide(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, rd.ID)
	assert.Len(t, rd.Passengers, 2)
	assert.Equal(t, 1, mem.Len())
}

// alwaysConflicting never finds a match and never wins a create
type alwaysConflicting struct {
	*memory.RideRepository
}

func (r *alwaysConflicting) Create(ctx context.Context, rd *ride.Ride) error {
	return ride.ErrRideConflict
}

func (r *alwaysConflicting) FindMatch(ctx context.Context, originID, destinationID uuid.UUID, departure time.Time, window time.Duration) (*ride.Ride, error) {
	return nil, ride.ErrRideNotFound
}

// TestRequestRide_PersistentConflict tests the bounded retry giving up
func TestRequestRide_PersistentConflict(t *testing.T) {
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	rides := &alwaysConflicting{RideRepository: memory.NewRideRepository()}
	s := newTestService(t, rides, locs)

	_, _, err := s.RequestRide(context.Background(), testRequest(origin, destination))

	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.GetAppError(err).Code)
}

// TestJoinRide tests the direct join path
func TestJoinRide(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	rd, _, err := s.RequestRide(context.Background(), testRequest(origin, destination))
	require.NoError(t, err)

	t.Run("appends passenger", func(t *testing.T) {
		joined, err := s.JoinRide(context.Background(), rd.ID, "Ben", "+15550000002")
		require.NoError(t, err)
		assert.Len(t, joined.Passengers, 2)
	})

	t.Run("rejects duplicate phone", func(t *testing.T) {
		_, err := s.JoinRide(context.Background(), rd.ID, "Ben", "+15550000002")
		assert.ErrorIs(t, err, apperrors.ErrDuplicatePassenger)
	})

	t.Run("rejects blank passenger", func(t *testing.T) {
		_, err := s.JoinRide(context.Background(), rd.ID, "", "+15550000003")
		require.Error(t, err)
		assert.Equal(t, "BAD_REQUEST", apperrors.GetAppError(err).Code)
	})

	t.Run("rejects unknown ride", func(t *testing.T) {
		_, err := s.JoinRide(context.Background(), uuid.New(), "Carol", "+15550000003")
		assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
	})

	t.Run("rejects cancelled ride", func(t *testing.T) {
		_, err := rides.UpdateStatus(context.Background(), rd.ID, ride.StatusWaiting, ride.StatusCancelled)
		require.NoError(t, err)

		_, err = s.JoinRide(context.Background(), rd.ID, "Carol", "+15550000003")
		assert.ErrorIs(t, err, apperrors.ErrRideNotJoinable)
	})
}

// TestJoinRide_ConcurrentJoinsRespectCapacity tests the capacity boundary
// under contention: with one free seat and many simultaneous joins,
// exactly one succeeds and the rest fail with RIDE_FULL
func TestJoinRide_ConcurrentJoinsRespectCapacity(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	rd := &ride.Ride{
		ID:            uuid.New(),
		Creator:       ride.Creator{Name: "Asha", Phone: "+15550000001"},
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: testNow.Add(3 * time.Hour),
		MaxPassengers: 2,
		Passengers:    []ride.Passenger{{Name: "Asha", Phone: "+15550000001"}},
		Status:        ride.StatusWaiting,
		CreatedAt:     testNow,
	}
	rides.Put(rd)

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.JoinRide(context.Background(), rd.ID,
				fmt.Sprintf("Rider %d", i), fmt.Sprintf("+1555900%04d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var joined, full int
	for err := range results {
		switch {
		case err == nil:
			joined++
		case err == apperrors.ErrRideFull:
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	assert.Equal(t, 1, joined)
	assert.Equal(t, attempts-1, full)

	final, err := rides.GetByID(context.Background(), rd.ID)
	require.NoError(t, err)
	assert.Len(t, final.Passengers, 2)
}

// TestListOpenRides tests that only future waiting rides are listed
func TestListOpenRides(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	origin, destination := seedLocations(locs)
	s := newTestService(t, rides, locs)

	open, _, err := s.RequestRide(context.Background(), testRequest(origin, destination))
	require.NoError(t, err)

	departed := &ride.Ride{
		ID:            uuid.New(),
		OriginID:      origin,
		DestinationID: destination,
		DepartureTime: testNow.Add(-time.Hour),
		MaxPassengers: 4,
		Status:        ride.StatusWaiting,
	}
	rides.Put(departed)

	listed, err := s.ListOpenRides(context.Background())

	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, open.ID, listed[0].ID)
}
