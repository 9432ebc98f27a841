package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pgcarpool/carpool/internal/api/dto"
	apperrors "github.com/pgcarpool/carpool/pkg/errors"
	"github.com/pgcarpool/carpool/pkg/logger"
)

// Dashboard handles GET /v1/admin/dashboard: today's rides plus all
// upcoming open rides, the two views the admin panel renders.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	h.Lifecycle.ArchivePastRides(ctx)

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	todayRides, err := h.Rides.ListBetween(ctx, startOfDay, endOfDay)
	if err != nil {
		h.Logger.Error("Dashboard query failed", logger.Err(err))
		h.respondError(c, apperrors.ErrStorageUnavailable)
		return
	}

	upcomingRides, err := h.Rides.ListWaiting(ctx, now)
	if err != nil {
		h.Logger.Error("Dashboard query failed", logger.Err(err))
		h.respondError(c, apperrors.ErrStorageUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today_rides":    todayRides,
		"upcoming_rides": upcomingRides,
	})
}

// ArchivedRides handles GET /v1/admin/rides/archived
func (h *Handlers) ArchivedRides(c *gin.Context) {
	ctx := c.Request.Context()

	h.Lifecycle.ArchivePastRides(ctx)

	rides, err := h.Rides.ListArchived(ctx)
	if err != nil {
		h.Logger.Error("Archived listing failed", logger.Err(err))
		h.respondError(c, apperrors.ErrStorageUnavailable)
		return
	}
	c.JSON(http.StatusOK, rides)
}

// RunSweep handles POST /v1/admin/sweep: runs the full lifecycle sweep on
// demand and reports what it did, including any active orphaned rides it
// refused to purge.
func (h *Handlers) RunSweep(c *gin.Context) {
	ctx := c.Request.Context()

	archived, err := h.Lifecycle.SweepArchive(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	purged, err := h.Lifecycle.SweepPurgeExpired(ctx, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	orphansPurged, blocking, err := h.Lifecycle.SweepOrphans(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	blockingIDs := make([]string, 0, len(blocking))
	for _, id := range blocking {
		blockingIDs = append(blockingIDs, id.String())
	}

	c.JSON(http.StatusOK, dto.SweepResponse{
		Archived: archived,
		Purged:   purged,
		Orphans:  orphansPurged,
		Blocking: blockingIDs,
	})
}
