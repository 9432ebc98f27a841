package dto

import "github.com/pgcarpool/carpool/internal/domain/ride"

// RequestRideRequest is a create-or-join ride request
type RequestRideRequest struct {
	PassengerName  string `json:"passenger_name" binding:"required"`
	PassengerPhone string `json:"passenger_phone" binding:"required"`
	OriginID       string `json:"origin_id" binding:"required,uuid"`
	DestinationID  string `json:"destination_id" binding:"required,uuid"`
	DepartureTime  string `json:"departure_time" binding:"required"`
	MaxPassengers  int    `json:"max_passengers" binding:"omitempty,min=1,max=8"`
	Notes          string `json:"notes"`
}

// JoinRideRequest adds a passenger to a specific ride
type JoinRideRequest struct {
	PassengerName  string `json:"passenger_name" binding:"required"`
	PassengerPhone string `json:"passenger_phone" binding:"required"`
}

// UpdateStatusRequest moves a ride to a new status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=in_progress completed cancelled"`
}

// CreateLocationRequest adds a location to the registry
type CreateLocationRequest struct {
	Name    string   `json:"name" binding:"required"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// RideResponse wraps a ride and whether this request created it
type RideResponse struct {
	Ride    *ride.Ride `json:"ride"`
	Created bool       `json:"created"`
}

// SweepResponse reports the outcome of an admin-triggered sweep
type SweepResponse struct {
	Archived int64    `json:"archived"`
	Purged   int64    `json:"purged"`
	Orphans  int64    `json:"orphans_purged"`
	Blocking []string `json:"blocking_ride_ids,omitempty"`
}

// ErrorResponse carries the stable machine-readable error code
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse wraps a generic success payload
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
