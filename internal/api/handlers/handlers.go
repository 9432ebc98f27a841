package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pgcarpool/carpool/internal/api/dto"
	"github.com/pgcarpool/carpool/internal/domain/ride"
	"github.com/pgcarpool/carpool/internal/service/lifecycle"
	"github.com/pgcarpool/carpool/internal/service/matching"
	"github.com/pgcarpool/carpool/internal/service/registry"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
	"github.com/pgcarpool/carpool/pkg/websocket"
	"github.com/redis/go-redis/v9"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Matching  *matching.Service
	Lifecycle *lifecycle.Sweeper
	Registry  *registry.Service
	Rides     ride.Repository
	Redis     *redis.Client
	Logger    *logger.Logger
	Hub       *websocket.Hub
	CacheTTL  time.Duration
}

// NewHandlers creates a new Handlers instance
func NewHandlers(matchingSvc *matching.Service, sweeper *lifecycle.Sweeper, registrySvc *registry.Service, rides ride.Repository, redisClient *redis.Client, log *logger.Logger, hub *websocket.Hub, cacheTTL time.Duration) *Handlers {
	return &Handlers{
		Matching:  matchingSvc,
		Lifecycle: sweeper,
		Registry:  registrySvc,
		Rides:     rides,
		Redis:     redisClient,
		Logger:    log,
		Hub:       hub,
		CacheTTL:  cacheTTL,
	}
}

// respondError maps any error to its stable code and HTTP status
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= 500 {
		h.Logger.Error("Request failed", logger.Err(err),
			logger.String("path", c.FullPath()),
		)
	}
	c.JSON(appErr.Status, dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}
