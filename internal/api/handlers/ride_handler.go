package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/api/dto"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/internal/service/matching"
	"github.com/pgcarpool/carpool/pkg/cache"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// ListRides handles GET /v1/rides
func (h *Handlers) ListRides(c *gin.Context) {
	ctx := c.Request.Context()

	// Best-effort archival keeps past rides out of the listing.
	h.Lifecycle.ArchivePastRides(ctx)

	if h.Redis != nil {
		var cached []*ride.Ride
		if ok, err := cache.GetJSON(ctx, h.Redis, cache.WaitingRidesKey, &cached); err == nil && ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	rides, err := h.Matching.ListOpenRides(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rides == nil {
		rides = []*ride.Ride{}
	}

	if h.Redis != nil {
		if err := cache.SetJSON(ctx, h.Redis, cache.WaitingRidesKey, rides, h.CacheTTL); err != nil {
			h.Logger.Warn("Failed to cache ride listing", logger.Err(err))
		}
	}

	c.JSON(http.StatusOK, rides)
}

// RequestRide handles POST /v1/rides
func (h *Handlers) RequestRide(c *gin.Context) {
	var req dto.RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "Invalid request payload",
		})
		return
	}

	originID, err := uuid.Parse(req.OriginID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "origin_id must be a valid UUID",
		})
		return
	}
	destinationID, err := uuid.Parse(req.DestinationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "destination_id must be a valid UUID",
		})
		return
	}
	departure, err := time.Parse(time.RFC3339, req.DepartureTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "departure_time must be RFC3339",
		})
		return
	}

	rd, created, err := h.Matching.RequestRide(c.Request.Context(), matching.Request{
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		OriginID:       originID,
		DestinationID:  destinationID,
		DepartureTime:  departure,
		MaxPassengers:  req.MaxPassengers,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.RideResponse{Ride: rd, Created: created})
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "id must be a valid UUID",
		})
		return
	}

	rd, err := h.Matching.GetRide(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}

// JoinRide handles POST /v1/rides/:id/join
func (h *Handlers) JoinRide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "id must be a valid UUID",
		})
		return
	}

	var req dto.JoinRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "Invalid request payload",
		})
		return
	}

	rd, err := h.Matching.JoinRide(c.Request.Context(), id, req.PassengerName, req.PassengerPhone)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RideResponse{Ride: rd})
}

// UpdateRideStatus handles PUT /v1/rides/:id/status
func (h *Handlers) UpdateRideStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "id must be a valid UUID",
		})
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "Invalid request payload",
		})
		return
	}

	rd, err := h.Lifecycle.ChangeStatus(c.Request.Context(), id, ride.Status(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RideResponse{Ride: rd})
}
