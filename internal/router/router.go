package router

import (
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/config"
	"github.com/RhaCode/Groci-Smart-sub000/internal/handler"
	"github.com/RhaCode/Groci-Smart-sub000/internal/infra"
	"github.com/RhaCode/Groci-Smart-sub000/internal/middleware"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"
	"github.com/RhaCode/Groci-Smart-sub000/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ocrCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	storeSvc := service.NewStoreService(storeRepo)
	categorySvc := service.NewCategoryService(categoryRepo)
	productSvc := service.NewProductService(productRepo, priceRepo, categoryRepo)
	priceSvc := service.NewPriceService(priceRepo, productRepo, storeRepo, rdb,
		time.Duration(cfg.CompareCacheTTLMinutes)*time.Minute)
	receiptSvc := service.NewReceiptService(receiptRepo, productRepo, storeRepo, priceRepo, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	storesH := handler.NewStoresHandler(storeSvc)
	categoriesH := handler.NewCategoriesHandler(categorySvc)
	productsH := handler.NewProductsHandler(productSvc)
	pricesH := handler.NewPricesHandler(priceSvc)
	receiptsH := handler.NewReceiptsHandler(receiptSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, ocrCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/register", authH.Register)
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	moderator := middleware.RequireRole("moderator", "admin")
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		// Profile
		v1.GET("/profile", authH.GetProfile)
		v1.PUT("/profile", authH.UpdateProfile)

		// Stores — any shopper can submit; moderation decisions are gated
		stores := v1.Group("/stores")
		{
			stores.POST("", storesH.Create)
			stores.GET("", storesH.List)
			stores.GET("/:id", storesH.Get)
			stores.PUT("/:id", storesH.Update)
			stores.DELETE("/:id", moderator, storesH.Delete)
			stores.PATCH("/:id/approve", moderator, storesH.Approve)
			stores.PATCH("/:id/reject", moderator, storesH.Reject)
		}

		// Preferred stores — set semantics per user
		me := v1.Group("/me/stores")
		{
			me.GET("", storesH.ListPreferred)
			me.PUT("/:id", storesH.AddPreferred)
			me.DELETE("/:id", storesH.RemovePreferred)
		}

		categories := v1.Group("/categories")
		{
			categories.POST("", categoriesH.Create)
			categories.GET("", categoriesH.ListRoots)
			categories.GET("/:id", categoriesH.Get)
			categories.PUT("/:id", categoriesH.Update)
			categories.PATCH("/:id/parent", categoriesH.Reparent)
			categories.GET("/:id/selectable-parents", categoriesH.SelectableParents)
			categories.DELETE("/:id", moderator, categoriesH.Delete)
			categories.PATCH("/:id/approve", moderator, categoriesH.Approve)
			categories.PATCH("/:id/reject", moderator, categoriesH.Reject)
		}

		products := v1.Group("/products")
		{
			products.POST("", productsH.Create)
			products.POST("/search", productsH.Search)
			products.GET("/barcode/:barcode", productsH.GetByBarcode)
			products.GET("/:id", productsH.Get)
			products.PUT("/:id", productsH.Update)
			products.DELETE("/:id", moderator, productsH.Delete)
			products.PATCH("/:id/approve", moderator, productsH.Approve)
			products.PATCH("/:id/reject", moderator, productsH.Reject)

			// Price ledger views hang off the product
			products.GET("/:id/prices", pricesH.ListByProduct)
			products.GET("/:id/compare", pricesH.Compare)
		}

		prices := v1.Group("/prices")
		{
			prices.POST("", pricesH.Add)
			prices.POST("/compare", pricesH.CompareMultiple)
			prices.PATCH("/:id/approve", moderator, pricesH.Approve)
			prices.PATCH("/:id/reject", moderator, pricesH.Reject)
			prices.DELETE("/:id", moderator, pricesH.Deactivate)
		}

		// Receipts — always scoped to the authenticated user
		receipts := v1.Group("/receipts")
		{
			receipts.POST("", receiptsH.Upload)
			receipts.GET("", receiptsH.List)
			receipts.GET("/stats", receiptsH.Stats)
			receipts.GET("/spending", receiptsH.SpendingByMonth)
			receipts.GET("/:id", receiptsH.Get)
			receipts.PUT("/:id", receiptsH.Update)
			receipts.DELETE("/:id", receiptsH.Delete)
			receipts.POST("/:id/reprocess", receiptsH.Reprocess)

			receipts.POST("/:id/items", receiptsH.AddItem)
			receipts.PUT("/:id/items/:item_id", receiptsH.UpdateItem)
			receipts.DELETE("/:id/items/:item_id", receiptsH.DeleteItem)
			receipts.PATCH("/:id/items/:item_id/link", receiptsH.LinkItem)
		}

		users := v1.Group("/users", middleware.RequireRole("admin"))
		{
			users.GET("", authH.ListUsers)
			users.PATCH("/:id/role", authH.SetRole)
			users.DELETE("/:id", authH.DeactivateUser)
			users.PATCH("/:id/reactivate", authH.ReactivateUser)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
