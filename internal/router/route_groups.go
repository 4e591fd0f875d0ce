package router

import (
	"cafe_pos_backend/internal/handlers"
	"cafe_pos_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupOrderRoutes sets up the staff order routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler, idem gin.HandlerFunc) {
	orderRoutes := authenticatedGroup.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(middleware.RoleAdmin, middleware.RoleStaff))
	{
		orderRoutes.PUT("/drafts", orderHandler.UpsertStaffDraft)
		orderRoutes.DELETE("/drafts", orderHandler.DiscardStaffDraft)

		orderRoutes.POST("", idem, orderHandler.CreateStaffOrder)
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.POST("/merge", idem, orderHandler.MergeOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)
		orderRoutes.PATCH("/:id/status", orderHandler.ChangeStatus)
		orderRoutes.POST("/:id/hold", idem, orderHandler.HoldOrder)
		orderRoutes.POST("/:id/resume", idem, orderHandler.ResumeHold)
		orderRoutes.POST("/:id/verify", idem, orderHandler.VerifyOrder)
		orderRoutes.POST("/:id/reject", idem, orderHandler.RejectOrder)
		orderRoutes.POST("/:id/cancel", idem, orderHandler.CancelOrder)
		orderRoutes.POST("/:id/returns", idem, orderHandler.ReturnOrder)
		orderRoutes.POST("/:id/split", idem, orderHandler.SplitOrder)
	}
}

// SetupPublicOrderRoutes sets up the unauthenticated customer order routes.
func SetupPublicOrderRoutes(publicGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler, idem gin.HandlerFunc) {
	orderRoutes := publicGroup.Group("/orders")
	{
		orderRoutes.PUT("/drafts", orderHandler.UpsertCustomerDraft)
		orderRoutes.POST("", idem, orderHandler.CreateCustomerOrder)
		orderRoutes.GET("/:id", orderHandler.GetPublicOrderByID)
	}
}

// SetupCustomerRoutes sets up the customer and loyalty routes.
func SetupCustomerRoutes(authenticatedGroup *gin.RouterGroup, customerHandler *handlers.CustomerHandler, idem gin.HandlerFunc) {
	customerRoutes := authenticatedGroup.Group("/customers")
	customerRoutes.Use(middleware.RoleAuthMiddleware(middleware.RoleAdmin, middleware.RoleStaff))
	{
		customerRoutes.GET("/:id", customerHandler.GetCustomerByID)
		customerRoutes.POST("/:id/loyalty-adjustments", middleware.RoleAuthMiddleware(middleware.RoleAdmin), idem, customerHandler.AdjustLoyaltyPoints)
	}
}

// SetupStockRoutes sets up the stock alert routes.
func SetupStockRoutes(authenticatedGroup *gin.RouterGroup, stockHandler *handlers.StockHandler) {
	stockRoutes := authenticatedGroup.Group("/stock")
	stockRoutes.Use(middleware.RoleAuthMiddleware(middleware.RoleAdmin, middleware.RoleStaff))
	{
		stockRoutes.GET("/alerts", stockHandler.GetUnreadAlerts)
		stockRoutes.POST("/alerts/:id/read", stockHandler.MarkAlertRead)
	}
}
