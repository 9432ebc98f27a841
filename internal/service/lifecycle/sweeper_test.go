package lifecycle

import (
	"context"
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

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T, rides ride.Repository) *Sweeper {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)

	s := NewSweeper(rides, notify.New(nil, nil, nil, log), log, Config{
		RetentionDays: 30,
		SweepHour:     3,
		SweepInterval: time.Hour,
	})
	s.now = func() time.Time { return testNow }
	return s
}

func seedRide(rides *memory.RideRepository, status ride.Status, departure, updated time.Time) *ride.Ride {
	rd := &ride.Ride{
		ID:            uuid.New(),
		OriginID:      uuid.New(),
		DestinationID: uuid.New(),
		DepartureTime: departure,
		MaxPassengers: 4,
		Passengers:    []ride.Passenger{{Name: "Asha", Phone: "+15550000001"}},
		Status:        status,
		CreatedAt:     updated,
		UpdatedAt:     updated,
	}
	rides.Put(rd)
	return rd
}

// TestSweepArchive tests archival of departed rides
func TestSweepArchive(t *testing.T) {
	rides := memory.NewRideRepository()
	s := newTestSweeper(t, rides)

	past := seedRide(rides, ride.StatusWaiting, testNow.Add(-time.Hour), testNow.Add(-time.Hour))
	pastDone := seedRide(rides, ride.StatusCompleted, testNow.Add(-2*time.Hour), testNow.Add(-time.Hour))
	future := seedRide(rides, ride.StatusWaiting, testNow.Add(time.Hour), testNow)

	count, err := s.SweepArchive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, id := range []uuid.UUID{past.ID, pastDone.ID} {
		rd, err := rides.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusArchived, rd.Status)
	}

	rd, err := rides.GetByID(context.Background(), future.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusWaiting, rd.Status)

	// Idempotent: nothing left to archive
	count, err = s.SweepArchive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// TestSweepPurgeExpired tests retention-based deletion of archived rides
func TestSweepPurgeExpired(t *testing.T) {
	rides := memory.NewRideRepository()
	s := newTestSweeper(t, rides)

	expired := seedRide(rides, ride.StatusArchived, testNow.AddDate(0, 0, -45), testNow.AddDate(0, 0, -40))
	recent := seedRide(rides, ride.StatusArchived, testNow.AddDate(0, 0, -12), testNow.AddDate(0, 0, -10))
	active := seedRide(rides, ride.StatusWaiting, testNow.AddDate(0, 0, -40), testNow.AddDate(0, 0, -40))

	count, err := s.SweepPurgeExpired(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = rides.GetByID(context.Background(), expired.ID)
	assert.Equal(t, ride.ErrRideNotFound, err)

	for _, id := range []uuid.UUID{recent.ID, active.ID} {
		_, err = rides.GetByID(context.Background(), id)
		assert.NoError(t, err)
	}
}

// TestSweepPurgeExpired_CustomRetention tests an explicit retention override
func TestSweepPurgeExpired_CustomRetention(t *testing.T) {
	rides := memory.NewRideRepository()
	s := newTestSweeper(t, rides)

	seedRide(rides, ride.StatusArchived, testNow.AddDate(0, 0, -12), testNow.AddDate(0, 0, -10))

	count, err := s.SweepPurgeExpired(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 0, rides.Len())
}

// TestSweepOrphans tests that historical orphans are purged while active
// ones are reported and left in place
func TestSweepOrphans(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	rides.SetLocations(locs)
	s := newTestSweeper(t, rides)

	origin := &location.Location{ID: uuid.New(), Name: "North Campus", IsActive: true}
	destination := &location.Location{ID: uuid.New(), Name: "Downtown", IsActive: true}
	locs.Put(origin)
	locs.Put(destination)

	historicalOrphan := seedRide(rides, ride.StatusCompleted, testNow.Add(-time.Hour), testNow.Add(-time.Hour))
	activeOrphan := seedRide(rides, ride.StatusWaiting, testNow.Add(time.Hour), testNow)

	intact := seedRide(rides, ride.StatusWaiting, testNow.Add(time.Hour), testNow)
	intact.OriginID = origin.ID
	intact.DestinationID = destination.ID
	rides.Put(intact)

	purged, blocking, err := s.SweepOrphans(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), purged)
	require.Len(t, blocking, 1)
	assert.Equal(t, activeOrphan.ID, blocking[0])

	_, err = rides.GetByID(context.Background(), historicalOrphan.ID)
	assert.Equal(t, ride.ErrRideNotFound, err)

	for _, id := range []uuid.UUID{activeOrphan.ID, intact.ID} {
		_, err = rides.GetByID(context.Background(), id)
		assert.NoError(t, err)
	}
}

// TestSweepOrphans_NoOrphans tests the empty case
func TestSweepOrphans_NoOrphans(t *testing.T) {
	rides := memory.NewRideRepository()
	locs := memory.NewLocationRepository()
	rides.SetLocations(locs)
	s := newTestSweeper(t, rides)

	purged, blocking, err := s.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)
	assert.Empty(t, blocking)
}

// TestArchivePastRides tests the best-effort read-path variant
func TestArchivePastRides(t *testing.T) {
	rides := memory.NewRideRepository()
	s := newTestSweeper(t, rides)

	seedRide(rides, ride.StatusWaiting, testNow.Add(-time.Hour), testNow.Add(-time.Hour))

	assert.Equal(t, int64(1), s.ArchivePastRides(context.Background()))
	assert.Equal(t, int64(0), s.ArchivePastRides(context.Background()))
}

// TestChangeStatus tests the explicit transition path
func TestChangeStatus(t *testing.T) {
	rides := memory.NewRideRepository()
	s := newTestSweeper(t, rides)

	rd := seedRide(rides, ride.StatusWaiting, testNow.Add(time.Hour), testNow)

	t.Run("waiting to in_progress", func(t *testing.T) {
		updated, err := s.ChangeStatus(context.Background(), rd.ID, ride.StatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusInProgress, updated.Status)
	})

	t.Run("in_progress to completed", func(t *testing.T) {
		updated, err := s.ChangeStatus(context.Background(), rd.ID, ride.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, ride.StatusCompleted, updated.Status)
	})

	t.Run("completed is terminal", func(t *testing.T) {
		_, err := s.ChangeStatus(context.Background(), rd.ID, ride.StatusInProgress)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("archived is never an explicit target", func(t *testing.T) {
		other := seedRide(rides, ride.StatusWaiting, testNow.Add(time.Hour), testNow)
		_, err := s.ChangeStatus(context.Background(), other.ID, ride.StatusArchived)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		_, err := s.ChangeStatus(context.Background(), rd.ID, ride.Status("paused"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("unknown ride", func(t *testing.T) {
		_, err := s.ChangeStatus(context.Background(), uuid.New(), ride.StatusCancelled)
		assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
	})
}

// staleReads serves a stale waiting copy from GetByID while the stored
// ride has already moved on
type staleReads struct {
	*memory.RideRepository
	stale *ride.Ride
}

func (r *staleReads) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	if id == r.stale.ID {
		cp := *r.stale
		return &cp, nil
	}
	return r.RideRepository.GetByID(ctx, id)
}

// TestChangeStatus_LostRaceAgainstSweep tests that a transition validated
// against a stale read cannot overwrite a status written in between; the
// conditional write rejects it
func TestChangeStatus_LostRaceAgainstSweep(t *testing.T) {
	mem := memory.NewRideRepository()

	archived := seedRide(mem, ride.StatusArchived, testNow.Add(-time.Hour), testNow)
	stale := *archived
	stale.Status = ride.StatusWaiting

	s := newTestSweeper(t, &staleReads{RideRepository: mem, stale: &stale})

	_, err := s.ChangeStatus(context.Background(), archived.ID, ride.StatusCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	current, err := mem.GetByID(context.Background(), archived.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusArchived, current.Status)
}
