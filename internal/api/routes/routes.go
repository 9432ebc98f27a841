package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pgcarpool/carpool/internal/api/handlers"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket connection
		v1.GET("/ws", h.HandleWebSocket)

		// Ride endpoints
		rides := v1.Group("/rides")
		{
			rides.GET("", h.ListRides)
			rides.POST("", h.RequestRide)
			rides.GET("/:id", h.GetRide)
			rides.POST("/:id/join", h.JoinRide)
			rides.PUT("/:id/status", h.UpdateRideStatus)
		}

		// Public location listing
		v1.GET("/locations", h.ListLocations)

		// Admin endpoints
		admin := v1.Group("/admin")
		{
			admin.GET("/dashboard", h.Dashboard)
			admin.GET("/rides/archived", h.ArchivedRides)
			admin.POST("/sweep", h.RunSweep)

			locations := admin.Group("/locations")
			{
				locations.GET("", h.ListLocations)
				locations.POST("", h.CreateLocation)
				locations.POST("/:id/toggle", h.ToggleLocation)
				locations.DELETE("/:id", h.DeleteLocation)
			}
		}
	}
}
