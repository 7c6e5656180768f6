package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"bom-analytics-helper/config"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/monitor"
	"bom-analytics-helper/services"
	"bom-analytics-helper/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the services the handlers use. Set once at startup with Setup.
type Deps struct {
	Sync     *services.SyncService
	Backfill *services.BackfillService
	Status   *services.StatusService
	Hooks    *services.Hooks
	Nonces   *middleware.Nonces

	// WebhookSecret verifies WooCommerce webhook signatures; empty rejects all deliveries.
	WebhookSecret string
}

var deps *Deps

// Setup wires the handlers to d.
func Setup(d *Deps) {
	deps = d
}

func sendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func sendError(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": false, "data": data})
}

func sendFailure(c *gin.Context, err error, msg string) {
	config.Logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	sendError(c, http.StatusInternalServerError, gin.H{"message": msg})
}

// StatusPage renders the admin dashboard.
func StatusPage(c *gin.Context) {
	dashboard, err := deps.Status.Dashboard(c.Request.Context())
	if err != nil {
		config.Logger.Error("failed to build dashboard", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to load BOM analytics status")
		return
	}
	monitor.Render(c, monitor.PageData{
		Dashboard: dashboard,
		Nonce:     deps.Nonces.Create(middleware.NonceAction, middleware.CurrentUserID(c)),
	})
}

// StartBackfill runs the backfill inside the request. The client may give up
// waiting; the run continues on a context detached from the request.
func StartBackfill(c *gin.Context) {
	force := utils.ParseBool(c.PostForm("force"))
	ctx := services.PersistentContext(c.Request.Context())

	result, progress, err := deps.Backfill.StartBackfill(ctx, force)
	if err != nil {
		if errors.Is(err, services.ErrBackfillAlreadyRunning) {
			sendError(c, http.StatusOK, gin.H{
				"success": false,
				"message": "Backfill is already in progress.",
				"data":    progress,
			})
			return
		}
		sendFailure(c, err, "Backfill failed.")
		return
	}

	sendSuccess(c, gin.H{
		"success": true,
		"message": result.Message,
		"run_id":  result.RunID,
		"data": gin.H{
			"processed": result.Processed,
			"errors":    result.Errors,
		},
	})
}

// GetProgress returns the backfill progress and the sync statistics.
func GetProgress(c *gin.Context) {
	ctx := c.Request.Context()
	progress, err := deps.Backfill.GetProgress(ctx)
	if err != nil {
		sendFailure(c, err, "Failed to load backfill progress.")
		return
	}
	status, err := deps.Sync.GetSyncStatus(ctx)
	if err != nil {
		sendFailure(c, err, "Failed to load sync status.")
		return
	}
	sendSuccess(c, gin.H{"progress": progress, "sync": status})
}

// ClearAnalytics removes every synced BOM row and resets the backfill.
func ClearAnalytics(c *gin.Context) {
	result, err := deps.Backfill.ClearAnalytics(c.Request.Context())
	if err != nil {
		sendFailure(c, err, "Failed to clear BOM analytics.")
		return
	}
	sendSuccess(c, gin.H{
		"success": true,
		"message": result.Message,
		"data":    gin.H{"deleted": result.Deleted},
	})
}

// TestSync syncs the most recent order.
func TestSync(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, err := deps.Sync.LatestOrderID(ctx)
	if err != nil {
		if errors.Is(err, services.ErrNoOrders) {
			sendError(c, http.StatusOK, gin.H{"message": "No orders found."})
			return
		}
		sendFailure(c, err, "Failed to load the latest order.")
		return
	}

	ok, err := deps.Sync.SyncBOMToAnalytics(ctx, orderID, false)
	if err != nil {
		sendFailure(c, err, fmt.Sprintf("Test sync failed for order #%d", orderID))
		return
	}
	if !ok {
		sendError(c, http.StatusOK, gin.H{"message": fmt.Sprintf("No BOMs found in order #%d", orderID)})
		return
	}
	sendSuccess(c, gin.H{"message": fmt.Sprintf("Test sync completed for order #%d", orderID)})
}

// RemoveDuplicates deletes duplicate BOM rows.
func RemoveDuplicates(c *gin.Context) {
	result, err := deps.Sync.RemoveDuplicates(c.Request.Context())
	if err != nil {
		sendFailure(c, err, "Failed to remove duplicate BOM records.")
		return
	}
	sendSuccess(c, result)
}

// RemoveOrder deletes one order's BOM rows from analytics.
func RemoveOrder(c *gin.Context) {
	orderID, err := utils.ParseOrderID(c.Param("id"))
	if err != nil {
		sendError(c, http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ok, err := deps.Sync.RemoveBOMFromAnalytics(c.Request.Context(), orderID)
	if err != nil {
		sendFailure(c, err, fmt.Sprintf("Failed to remove BOM analytics for order #%d", orderID))
		return
	}
	if !ok {
		sendError(c, http.StatusOK, gin.H{"message": fmt.Sprintf("No BOMs found in order #%d", orderID)})
		return
	}
	sendSuccess(c, gin.H{"message": fmt.Sprintf("Removed BOM analytics for order #%d", orderID)})
}

// Health reports service and database liveness.
func Health(c *gin.Context) {
	code, state, db := http.StatusOK, "ok", "ok"
	if config.DB == nil {
		code, state, db = http.StatusServiceUnavailable, "degraded", "not connected"
	} else if sqlDB, err := config.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		code, state, db = http.StatusServiceUnavailable, "degraded", "unreachable"
	}
	c.JSON(code, gin.H{
		"status":   state,
		"message":  "BOM analytics helper is running",
		"database": db,
	})
}
