package matching

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/domain/location"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/internal/service/notify"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// Service turns create-or-join requests into rides. A request either
// appends its passenger to a compatible waiting ride or creates a new
// one; it never does both and never silently drops a passenger.
type Service struct {
	rides     ride.Repository
	locations location.Repository
	notifier  *notify.Notifier
	logger    *logger.Logger
	config    Config
	now       func() time.Time
}

// Config holds matching policy
type Config struct {
	// Window is the departure-time tolerance for joining an existing ride
	Window time.Duration

	// DefaultMaxPassengers is used when a request does not set a capacity
	DefaultMaxPassengers int

	// ServiceHours is the operating window checked against departure times
	ServiceHours ServiceHours
}

// ServiceHours is a [OpenHour, CloseHour) window in local time
type ServiceHours struct {
	Enabled   bool
	OpenHour  int
	CloseHour int
}

// Request is a passenger's create-or-join request
type Request struct {
	PassengerName  string
	PassengerPhone string
	OriginID       uuid.UUID
	DestinationID  uuid.UUID
	DepartureTime  time.Time
	MaxPassengers  int
	Notes          string
	IdempotencyKey string
}

// NewService creates a new matching service
func NewService(rides ride.Repository, locations location.Repository, notifier *notify.Notifier, log *logger.Logger, config Config) *Service {
	if config.Window <= 0 {
		config.Window = 30 * time.Minute
	}
	if config.DefaultMaxPassengers <= 0 {
		config.DefaultMaxPassengers = ride.DefaultMaxPassengers
	}
	return &Service{
		rides:     rides,
		locations: locations,
		notifier:  notifier,
		logger:    log,
		config:    config,
		now:       time.Now,
	}
}

// RequestRide finds a compatible waiting ride for the request and appends
// the passenger, or creates a new ride with the requester as its first
// passenger. created reports which of the two happened.
func (s *Service) RequestRide(ctx context.Context, req Request) (*ride.Ride, bool, error) {
	if err := s.validate(ctx, &req); err != nil {
		return nil, false, err
	}

	// A retried create with the same key returns the ride the first
	// attempt made, without emitting events again.
	if req.IdempotencyKey != "" {
		existing, err := s.rides.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, true, nil
		}
		if err != ride.ErrRideNotFound {
			return nil, false, s.storageErr("idempotency lookup failed", err)
		}
	}

	// One retry: a create that loses the find-or-create race re-runs the
	// match and joins the winning ride instead.
	for attempt := 0; attempt < 2; attempt++ {
		match, err := s.rides.FindMatch(ctx, req.OriginID, req.DestinationID, req.DepartureTime, s.config.Window)
		if err == nil {
			joined, joinErr := s.join(ctx, match.ID, req.PassengerName, req.PassengerPhone)
			if joinErr == nil {
				return joined, false, nil
			}
			// The match archived or cancelled under us; fall through to
			// creating a fresh ride. Everything else is the caller's.
			if joinErr != apperrors.ErrRideNotJoinable {
				return nil, false, joinErr
			}
		} else if err != ride.ErrRideNotFound {
			return nil, false, s.storageErr("match lookup failed", err)
		}

		created, err := s.create(ctx, req)
		if err == ride.ErrRideConflict {
			s.logger.Info("Lost find-or-create race, re-matching",
				logger.String("origin_id", req.OriginID.String()),
				logger.String("destination_id", req.DestinationID.String()),
			)
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return created, true, nil
	}

	return nil, false, apperrors.Conflict("Concurrent ride creation, please retry", nil)
}

// JoinRide appends a passenger to a specific ride. It is the direct join
// path behind POST /v1/rides/:id/join.
func (s *Service) JoinRide(ctx context.Context, rideID uuid.UUID, name, phone string) (*ride.Ride, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(phone) == "" {
		return nil, apperrors.BadRequest("Passenger name and phone are required", nil)
	}
	return s.join(ctx, rideID, name, phone)
}

// GetRide retrieves a ride by ID
func (s *Service) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	rd, err := s.rides.GetByID(ctx, id)
	if err == ride.ErrRideNotFound {
		return nil, apperrors.ErrRideNotFound
	}
	if err != nil {
		return nil, s.storageErr("ride lookup failed", err)
	}
	return rd, nil
}

// ListOpenRides returns waiting rides with a future departure
func (s *Service) ListOpenRides(ctx context.Context) ([]*ride.Ride, error) {
	rides, err := s.rides.ListWaiting(ctx, s.now())
	if err != nil {
		return nil, s.storageErr("ride listing failed", err)
	}
	return rides, nil
}

func (s *Service) validate(ctx context.Context, req *Request) error {
	if strings.TrimSpace(req.PassengerName) == "" || strings.TrimSpace(req.PassengerPhone) == "" {
		return apperrors.BadRequest("Passenger name and phone are required", nil)
	}
	if req.OriginID == req.DestinationID {
		return apperrors.ErrInvalidRequest
	}
	if req.MaxPassengers != 0 &&
		(req.MaxPassengers < ride.MinPassengerCapacity || req.MaxPassengers > ride.MaxPassengerCapacity) {
		return apperrors.BadRequest("Passenger capacity must be between 1 and 8", nil)
	}

	now := s.now()
	if !req.DepartureTime.After(now) {
		return apperrors.ErrPastDeparture
	}
	if s.config.ServiceHours.Enabled {
		hour := req.DepartureTime.In(now.Location()).Hour()
		if hour < s.config.ServiceHours.OpenHour || hour >= s.config.ServiceHours.CloseHour {
			return apperrors.ErrOutsideServiceHours
		}
	}

	for _, id := range []uuid.UUID{req.OriginID, req.DestinationID} {
		loc, err := s.locations.GetByID(ctx, id)
		if err == location.ErrLocationNotFound {
			return apperrors.ErrUnknownLocation
		}
		if err != nil {
			return s.storageErr("location lookup failed", err)
		}
		if !loc.IsActive {
			return apperrors.ErrLocationInactive
		}
	}
	return nil
}

func (s *Service) join(ctx context.Context, rideID uuid.UUID, name, phone string) (*ride.Ride, error) {
	passenger := ride.Passenger{Name: name, Phone: phone, JoinedAt: s.now()}

	updated, err := s.rides.AppendPassenger(ctx, rideID, passenger)
	switch err {
	case nil:
	case ride.ErrRideNotFound:
		return nil, apperrors.ErrRideNotFound
	case ride.ErrDuplicatePassenger:
		return nil, apperrors.ErrDuplicatePassenger
	case ride.ErrRideFull:
		return nil, apperrors.ErrRideFull
	case ride.ErrRideNotJoinable:
		return nil, apperrors.ErrRideNotJoinable
	default:
		return nil, s.storageErr("passenger append failed", err)
	}

	s.logger.Info("Passenger joined ride",
		logger.String("ride_id", updated.ID.String()),
		logger.Int("passengers", len(updated.Passengers)),
		logger.Int("available_seats", updated.AvailableSeats()),
	)
	s.notifier.PassengerJoined(ctx, updated)
	return updated, nil
}

func (s *Service) create(ctx context.Context, req Request) (*ride.Ride, error) {
	maxPassengers := req.MaxPassengers
	if maxPassengers == 0 {
		maxPassengers = s.config.DefaultMaxPassengers
	}

	now := s.now()
	rd := &ride.Ride{
		ID: uuid.New(),
		Creator: ride.Creator{
			Name:  req.PassengerName,
			Phone: req.PassengerPhone,
		},
		OriginID:      req.OriginID,
		DestinationID: req.DestinationID,
		DepartureTime: req.DepartureTime,
		MaxPassengers: maxPassengers,
		Passengers: []ride.Passenger{
			{Name: req.PassengerName, Phone: req.PassengerPhone, JoinedAt: now},
		},
		Status:         ride.StatusWaiting,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.rides.Create(ctx, rd); err != nil {
		if err == ride.ErrRideConflict {
			return nil, err
		}
		return nil, s.storageErr("ride insert failed", err)
	}

	s.logger.Info("Ride created",
		logger.String("ride_id", rd.ID.String()),
		logger.String("origin_id", rd.OriginID.String()),
		logger.String("destination_id", rd.DestinationID.String()),
	)
	s.notifier.RideCreated(ctx, rd)
	return rd, nil
}

func (s *Service) storageErr(msg string, err error) error {
	s.logger.Error(msg, logger.Err(err))
	return apperrors.ErrStorageUnavailable
}
