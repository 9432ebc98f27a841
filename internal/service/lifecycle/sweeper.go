package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/internal/service/notify"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// Sweeper moves rides through time-based state transitions and keeps the
// ride set consistent with the location set. All sweeps are idempotent
// and safe to run concurrently with user requests: they only touch rides
// already past their decision point.
type Sweeper struct {
	rides    ride.Repository
	notifier *notify.Notifier
	logger   *logger.Logger
	config   Config
	now      func() time.Time
}

// Config holds lifecycle policy
type Config struct {
	// RetentionDays is how long archived rides are kept before purge
	RetentionDays int

	// SweepHour is the local hour near which the daily full sweep runs
	SweepHour int

	// SweepInterval is how often the Run loop wakes up
	SweepInterval time.Duration
}

// NewSweeper creates a new Sweeper
func NewSweeper(rides ride.Repository, notifier *notify.Notifier, log *logger.Logger, config Config) *Sweeper {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 30
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Hour
	}
	return &Sweeper{
		rides:    rides,
		notifier: notifier,
		logger:   log,
		config:   config,
		now:      time.Now,
	}
}

// SweepArchive archives every ride whose departure time has passed.
// Re-running when nothing is past due is a no-op.
func (s *Sweeper) SweepArchive(ctx context.Context) (int64, error) {
	count, err := s.rides.ArchivePast(ctx, s.now())
	if err != nil {
		s.logger.Error("Archive sweep failed", logger.Err(err))
		return 0, apperrors.ErrStorageUnavailable
	}
	if count > 0 {
		s.logger.Info("Archived past rides", logger.Int64("count", count))
		s.notifier.InvalidateRideListings(ctx)
		s.notifier.SweepCompleted("archive", count)
	}
	return count, nil
}

// SweepPurgeExpired hard-deletes archived rides last touched more than
// retentionDays ago. Irreversible.
func (s *Sweeper) SweepPurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = s.config.RetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	count, err := s.rides.PurgeArchivedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Purge sweep failed", logger.Err(err))
		return 0, apperrors.ErrStorageUnavailable
	}
	if count > 0 {
		s.logger.Info("Purged expired archived rides",
			logger.Int64("count", count),
			logger.Int("retention_days", retentionDays),
		)
		s.notifier.SweepCompleted("purge", count)
	}
	return count, nil
}

// SweepOrphans removes historical rides whose origin or destination no
// longer resolves. Active orphans (waiting/in_progress) are never deleted
// here; they are returned so the caller can surface the inconsistency.
func (s *Sweeper) SweepOrphans(ctx context.Context) (int64, []uuid.UUID, error) {
	orphans, err := s.rides.ListOrphans(ctx)
	if err != nil {
		s.logger.Error("Orphan scan failed", logger.Err(err))
		return 0, nil, apperrors.ErrStorageUnavailable
	}
	if len(orphans) == 0 {
		return 0, nil, nil
	}

	var purgeable []uuid.UUID
	var blocking []uuid.UUID
	for _, rd := range orphans {
		if rd.IsActive() {
			blocking = append(blocking, rd.ID)
		} else {
			purgeable = append(purgeable, rd.ID)
		}
	}

	if len(blocking) > 0 {
		s.logger.Warn("Active orphaned rides found, not purging",
			logger.Int("count", len(blocking)),
		)
	}

	purged, err := s.rides.Delete(ctx, purgeable...)
	if err != nil {
		s.logger.Error("Orphan purge failed", logger.Err(err))
		return 0, blocking, apperrors.ErrStorageUnavailable
	}
	if purged > 0 {
		s.logger.Info("Purged orphaned rides", logger.Int64("count", purged))
		s.notifier.InvalidateRideListings(ctx)
		s.notifier.SweepCompleted("orphan", purged)
	}
	return purged, blocking, nil
}

// ArchivePastRides is the best-effort variant used on read paths before
// listing rides. Errors are logged and swallowed; archival is not a
// correctness requirement for serving reads.
func (s *Sweeper) ArchivePastRides(ctx context.Context) int64 {
	count, err := s.SweepArchive(ctx)
	if err != nil {
		return 0
	}
	return count
}

// ChangeStatus applies an explicit user-triggered transition after
// validating it against the state machine.
func (s *Sweeper) ChangeStatus(ctx context.Context, id uuid.UUID, next ride.Status) (*ride.Ride, error) {
	if !next.IsValid() || next == ride.StatusArchived {
		return nil, apperrors.ErrInvalidTransition
	}

	current, err := s.rides.GetByID(ctx, id)
	if err == ride.ErrRideNotFound {
		return nil, apperrors.ErrRideNotFound
	}
	if err != nil {
		s.logger.Error("Ride lookup failed", logger.Err(err))
		return nil, apperrors.ErrStorageUnavailable
	}
	if !current.CanTransitionTo(next) {
		return nil, apperrors.ErrInvalidTransition
	}

	updated, err := s.rides.UpdateStatus(ctx, id, current.Status, next)
	if err == ride.ErrRideNotFound {
		return nil, apperrors.ErrRideNotFound
	}
	if err == ride.ErrRideConflict {
		// The ride moved (likely archived by a sweep) between our read
		// and the write; the transition no longer applies.
		return nil, apperrors.ErrInvalidTransition
	}
	if err != nil {
		s.logger.Error("Status update failed", logger.Err(err))
		return nil, apperrors.ErrStorageUnavailable
	}

	s.logger.Info("Ride status changed",
		logger.String("ride_id", id.String()),
		logger.String("status", string(next)),
	)
	s.notifier.StatusChanged(ctx, updated)
	return updated, nil
}

// Run executes the full sweep on a timer until ctx is cancelled. The
// archive sweep runs every interval; purge and orphan sweeps only run
// during the configured hour so the destructive work happens once a day.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.sweep(ctx, true)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Lifecycle sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, s.now().Hour() == s.config.SweepHour)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, full bool) {
	if _, err := s.SweepArchive(ctx); err != nil {
		return
	}
	if !full {
		return
	}
	s.SweepPurgeExpired(ctx, s.config.RetentionDays)
	s.SweepOrphans(ctx)
}
