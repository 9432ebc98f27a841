package notify

import (
	"context"

	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/pkg/cache"
	"github.com/pgcarpool/carpool/pkg/logger"
	"github.com/pgcarpool/carpool/pkg/monitoring"
	"github.com/pgcarpool/carpool/pkg/websocket"
	"github.com/redis/go-redis/v9"
)

// Event types delivered to WebSocket subscribers
const (
	EventRideCreated     = "ride_created"
	EventPassengerJoined = "passenger_joined"
	EventStatusChanged   = "status_changed"
)

// Broadcaster is the hub surface the notifier needs
type Broadcaster interface {
	Broadcast(message websocket.Message)
	BroadcastToRide(rideID string, message websocket.Message)
}

// Notifier fans mutation events out to the WebSocket hub, invalidates the
// cached ride listings, and records monitoring events. Delivery is
// best-effort: a notifier failure never fails the mutation that produced
// the event.
type Notifier struct {
	hub    Broadcaster
	redis  *redis.Client
	nr     *monitoring.NewRelicApp
	logger *logger.Logger
}

// New creates a Notifier. hub, redis and nr may each be nil.
func New(hub Broadcaster, redisClient *redis.Client, nr *monitoring.NewRelicApp, log *logger.Logger) *Notifier {
	return &Notifier{hub: hub, redis: redisClient, nr: nr, logger: log}
}

// RideCreated emits the event for a newly created ride
func (n *Notifier) RideCreated(ctx context.Context, rd *ride.Ride) {
	n.emit(ctx, EventRideCreated, rd)
	if n.nr != nil {
		n.nr.RecordRideCreated(rd.OriginID.String(), rd.DestinationID.String())
	}
}

// PassengerJoined emits the event for a passenger appended to a ride
func (n *Notifier) PassengerJoined(ctx context.Context, rd *ride.Ride) {
	n.emit(ctx, EventPassengerJoined, rd)
	if n.nr != nil {
		n.nr.RecordPassengerJoined(rd.ID.String(), len(rd.Passengers))
	}
}

// StatusChanged emits the event for a ride status transition
func (n *Notifier) StatusChanged(ctx context.Context, rd *ride.Ride) {
	n.emit(ctx, EventStatusChanged, rd)
}

// SweepCompleted records the outcome of a lifecycle sweep
func (n *Notifier) SweepCompleted(kind string, affected int64) {
	if n.nr != nil {
		n.nr.RecordSweep(kind, affected)
	}
}

// InvalidateRideListings drops the cached waiting-ride listings. Exposed
// for the lifecycle sweeps, which mutate rides without going through the
// per-ride events above.
func (n *Notifier) InvalidateRideListings(ctx context.Context) {
	if n.redis == nil {
		return
	}
	if err := n.redis.Del(ctx, cache.WaitingRidesKey).Err(); err != nil && err != redis.Nil {
		n.logger.Warn("Failed to invalidate ride listing cache", logger.Err(err))
	}
}

func (n *Notifier) emit(ctx context.Context, eventType string, rd *ride.Ride) {
	n.InvalidateRideListings(ctx)

	if n.hub == nil {
		return
	}
	msg := websocket.Message{Type: eventType, Data: rd}
	n.hub.Broadcast(msg)
	n.hub.BroadcastToRide(rd.ID.String(), msg)

	n.logger.Debug("Event emitted",
		logger.String("event", eventType),
		logger.String("ride_id", rd.ID.String()),
	)
}
