package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/domain/location"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// Service manages the location registry: unique named points of interest
// that rides reference. Deletion is guarded so a location can never
// disappear out from under an active ride.
type Service struct {
	locations location.Repository
	rides     ride.Repository
	logger    *logger.Logger
}

// NewService creates a new registry service
func NewService(locations location.Repository, rides ride.Repository, log *logger.Logger) *Service {
	return &Service{locations: locations, rides: rides, logger: log}
}

// Create adds a new location to the registry
func (s *Service) Create(ctx context.Context, name, address string, coords *location.Coordinates) (*location.Location, error) {
	loc := &location.Location{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Address:     strings.TrimSpace(address),
		Coordinates: coords,
		IsActive:    true,
	}
	if err := loc.IsValid(); err != nil {
		return nil, apperrors.BadRequest("Location name is required", err)
	}

	err := s.locations.Create(ctx, loc)
	if err == location.ErrDuplicateName {
		return nil, apperrors.ErrDuplicateName
	}
	if err != nil {
		return nil, s.storageErr("location insert failed", err)
	}

	s.logger.Info("Location created",
		logger.String("location_id", loc.ID.String()),
		logger.String("name", loc.Name),
	)
	return loc, nil
}

// Get retrieves a location by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	loc, err := s.locations.GetByID(ctx, id)
	if err == location.ErrLocationNotFound {
		return nil, apperrors.ErrLocationNotFound
	}
	if err != nil {
		return nil, s.storageErr("location lookup failed", err)
	}
	return loc, nil
}

// List returns all locations, or only active ones
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*location.Location, error) {
	locations, err := s.locations.List(ctx, activeOnly)
	if err != nil {
		return nil, s.storageErr("location listing failed", err)
	}
	return locations, nil
}

// ToggleActive flips the active flag. Existing rides against the location
// stay valid; inactivation only blocks new matches.
func (s *Service) ToggleActive(ctx context.Context, id uuid.UUID) (*location.Location, error) {
	loc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.locations.SetActive(ctx, id, !loc.IsActive)
	if err == location.ErrLocationNotFound {
		return nil, apperrors.ErrLocationNotFound
	}
	if err != nil {
		return nil, s.storageErr("location update failed", err)
	}

	s.logger.Info("Location active flag toggled",
		logger.String("location_id", id.String()),
		logger.Bool("is_active", updated.IsActive),
	)
	return updated, nil
}

// Delete removes a location. Fails with LocationInUse while any waiting
// or in_progress ride references it; otherwise the location goes away and
// historical rides referencing it are purged. Rides that slip between the
// guard and the delete are caught by the orphan sweep.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	active, err := s.rides.CountActiveByLocation(ctx, id)
	if err != nil {
		return s.storageErr("active ride count failed", err)
	}
	if active > 0 {
		return apperrors.ErrLocationInUse
	}

	if err := s.locations.Delete(ctx, id); err != nil {
		if err == location.ErrLocationNotFound {
			return apperrors.ErrLocationNotFound
		}
		return s.storageErr("location delete failed", err)
	}

	purged, err := s.rides.PurgeByLocation(ctx, id)
	if err != nil {
		// The location is gone; the orphan sweep finishes the cleanup.
		s.logger.Warn("Historical ride purge failed, deferring to orphan sweep",
			logger.String("location_id", id.String()),
			logger.Err(err),
		)
		return nil
	}

	s.logger.Info("Location deleted",
		logger.String("location_id", id.String()),
		logger.Int64("historical_rides_purged", purged),
	)
	return nil
}

func (s *Service) storageErr(msg string, err error) error {
	s.logger.Error(msg, logger.Err(err))
	return apperrors.ErrStorageUnavailable
}
