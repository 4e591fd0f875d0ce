package router

import (
	"database/sql"
	"time"

	"cafe_pos_backend/internal/handlers"
	"cafe_pos_backend/internal/middleware"
	"cafe_pos_backend/internal/realtime"
	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Options carries the process-wide collaborators the routes need.
type Options struct {
	JWTSecret  []byte
	TxTimeout  time.Duration
	Dispatcher *services.Dispatcher
	Hub        *realtime.Hub
	KeyStore   middleware.KeyStore // nil disables Idempotency-Key checks
}

// Handlers groups every HTTP handler served by the API.
type Handlers struct {
	Orders    *handlers.OrderHandler
	Customers *handlers.CustomerHandler
	Stock     *handlers.StockHandler
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, db *sql.DB, opts Options) {
	// Initialize Repositories
	deps := services.Deps{
		Transactor:   repositories.NewTransactor(db, opts.TxTimeout),
		Orders:       repositories.NewOrderRepository(),
		OrderRecords: repositories.NewOrderRecordRepository(),
		Stock:        repositories.NewStockRepository(),
		Recipes:      repositories.NewRecipeRepository(),
		Customers:    repositories.NewCustomerRepository(),
		Products:     repositories.NewProductRepository(),
		Dispatcher:   opts.Dispatcher,
	}

	// Initialize Services
	orderService := services.NewOrderService(deps)
	draftService := services.NewDraftService(deps)
	loyaltyService := services.NewLoyaltyService(deps)
	inventoryService := services.NewInventoryService(deps)

	// Initialize Handlers
	Register(engine, Handlers{
		Orders:    handlers.NewOrderHandler(orderService, draftService),
		Customers: handlers.NewCustomerHandler(loyaltyService),
		Stock:     handlers.NewStockHandler(inventoryService),
	}, opts)
}

// Register mounts the handlers on engine.
func Register(engine *gin.Engine, h Handlers, opts Options) {
	idem := middleware.Idempotency(opts.KeyStore)

	apiV1 := engine.Group("/api/v1")

	// Customer self-ordering from the table QR code
	SetupPublicOrderRoutes(apiV1.Group("/public"), h.Orders, idem)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(opts.JWTSecret))
	{
		SetupOrderRoutes(authenticated, h.Orders, idem)
		SetupCustomerRoutes(authenticated, h.Customers, idem)
		SetupStockRoutes(authenticated, h.Stock)
	}

	if opts.Hub != nil {
		engine.GET("/ws",
			middleware.AuthMiddleware(opts.JWTSecret),
			middleware.RoleAuthMiddleware(middleware.RoleAdmin, middleware.RoleStaff),
			opts.Hub.HandleWebSocket,
		)
	}
}
