// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/database"
	"github.com/javajoker/storefront-backend/internal/handlers"
	"github.com/javajoker/storefront-backend/internal/middleware"
	"github.com/javajoker/storefront-backend/internal/services"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// Server is the wired HTTP engine plus the background resources behind it.
type Server struct {
	Engine *gin.Engine

	productService *services.ProductService
	viewCache      *services.ViewCache
	limiters       []*middleware.RateLimiter
}

// Initialize wires services from cfg, choosing the asset store by STORAGE_DRIVER.
func Initialize(db *gorm.DB, cfg *config.Config, log *logrus.Logger) (*Server, error) {
	assets, err := services.NewAssetStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return New(db, cfg, log, assets)
}

func New(db *gorm.DB, cfg *config.Config, log *logrus.Logger, assets services.AssetStore) (*Server, error) {
	viewCache, err := services.NewViewCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	// Initialize services
	tagService := services.NewTagService(log)
	productService := services.NewProductService(db, assets, tagService, viewCache, log)
	catalogService := services.NewCatalogService(db, log)
	dashboardService := services.NewDashboardService(db)
	authService := services.NewAuthService(db, cfg.JWT, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	productHandler := handlers.NewProductHandler(productService, catalogService, cfg.Server.MaxUploadSize, log)
	storefrontHandler := handlers.NewStorefrontHandler(catalogService, log)
	adminHandler := handlers.NewAdminHandler(dashboardService, log)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	var limiters []*middleware.RateLimiter
	limit := func(newLimiter func() *middleware.RateLimiter) gin.HandlerFunc {
		if !cfg.Server.RateLimit {
			return func(c *gin.Context) { c.Next() }
		}
		l := newLimiter()
		limiters = append(limiters, l)
		return l.Middleware()
	}
	generalLimit := limit(middleware.NewGeneralRateLimiter)
	authLimit := limit(middleware.NewAuthRateLimiter)
	uploadLimit := limit(middleware.NewUploadRateLimiter)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(generalLimit)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			log.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	if local, ok := assets.(*services.LocalAssetStore); ok {
		r.Static("/uploads", local.Root())
	}

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuditLogMiddleware(db, log))
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(authLimit)
		{
			auth.POST("/login", authHandler.Login)
		}

		// Storefront routes
		products := v1.Group("/products")
		{
			products.GET("", middleware.CacheView(viewCache, middleware.StaticView(services.ViewProducts)), storefrontHandler.GetProducts)
			products.GET("/popular", middleware.CacheView(viewCache, middleware.StaticView(services.ViewStorefront)), storefrontHandler.GetPopularProducts)
			products.GET("/recent", middleware.CacheView(viewCache, middleware.StaticView(services.ViewStorefront)), storefrontHandler.GetRecentProducts)
			products.GET("/:id", middleware.CacheView(viewCache, productDetailView), storefrontHandler.GetProduct)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)

			adminProducts := admin.Group("/products")
			{
				adminProducts.GET("", productHandler.GetProducts)
				adminProducts.GET("/:id", productHandler.GetProduct)
				adminProducts.POST("", uploadLimit, productHandler.CreateProduct)
				adminProducts.PUT("/:id", uploadLimit, productHandler.UpdateProduct)
				adminProducts.DELETE("/:id", productHandler.DeleteProduct)
				adminProducts.PATCH("/:id/availability", productHandler.SetAvailability)
			}
		}
	}

	return &Server{
		Engine:         r,
		productService: productService,
		viewCache:      viewCache,
		limiters:       limiters,
	}, nil
}

// productDetailView keys the detail page by canonical id so it matches the
// view the write pipeline revalidates.
func productDetailView(c *gin.Context) string {
	if id, err := uuid.Parse(c.Param("id")); err == nil {
		return services.ProductView(id)
	}
	return "/products/" + c.Param("id")
}

// Close waits for pending image deletions and releases background workers.
func (s *Server) Close() {
	s.productService.Close()
	for _, l := range s.limiters {
		l.Stop()
	}
	s.viewCache.Close()
}
