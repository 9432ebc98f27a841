package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgcarpool/carpool/internal/api/dto"
	"github.com/pgcarpool/carpool/internal/domain/location"
)

// ListLocations handles GET /v1/locations and GET /v1/admin/locations.
// The public listing only shows active locations; admins see everything
// with ?all=true.
func (h *Handlers) ListLocations(c *gin.Context) {
	activeOnly := c.Query("all") != "true"

	locations, err := h.Registry.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if locations == nil {
		locations = []*location.Location{}
	}
	c.JSON(http.StatusOK, locations)
}

// CreateLocation handles POST /v1/admin/locations
func (h *Handlers) CreateLocation(c *gin.Context) {
	var req dto.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "Invalid request payload",
		})
		return
	}

	var coords *location.Coordinates
	if req.Lat != nil && req.Lng != nil {
		coords = &location.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	}

	loc, err := h.Registry.Create(c.Request.Context(), req.Name, req.Address, coords)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

// ToggleLocation handles POST /v1/admin/locations/:id/toggle
func (h *Handlers) ToggleLocation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "id must be a valid UUID",
		})
		return
	}

	loc, err := h.Registry.ToggleActive(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// DeleteLocation handles DELETE /v1/admin/locations/:id
func (h *Handlers) DeleteLocation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code: "INVALID_REQUEST", Message: "id must be a valid UUID",
		})
		return
	}

	if err := h.Registry.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Location deleted"})
}
