package routes

import (
	"bom-analytics-helper/controllers"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/monitor"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, deps *controllers.Deps) {
	controllers.Setup(deps)

	// Status page script
	monitor.RegisterAssets(router)

	// Admin dashboard
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireCapability(middleware.CapabilityManageShop))
	{
		admin.GET("/bom-analytics", controllers.StatusPage)
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", controllers.Health)

		// Status page actions (capability + nonce)
		analytics := v1.Group("/analytics")
		analytics.Use(
			middleware.AuthMiddleware(),
			middleware.RequireCapability(middleware.CapabilityManageShop),
			middleware.RequireNonce(deps.Nonces, middleware.NonceAction),
		)
		{
			analytics.POST("/backfill", controllers.StartBackfill)
			analytics.POST("/progress", controllers.GetProgress)
			analytics.POST("/clear", controllers.ClearAnalytics)
			analytics.POST("/test-sync", controllers.TestSync)
			analytics.POST("/dedupe", controllers.RemoveDuplicates)
			analytics.DELETE("/orders/:id", controllers.RemoveOrder)
		}
	}

	// Shop webhooks (HMAC signed)
	router.POST("/webhooks/woocommerce", controllers.WooCommerceWebhook)
}
