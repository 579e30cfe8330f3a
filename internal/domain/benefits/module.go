package benefits

import (
	"benefits_gateway/internal/domain/benefits/handler"
	"benefits_gateway/internal/domain/benefits/repository"
	"benefits_gateway/internal/domain/benefits/service"
	"benefits_gateway/internal/pkg/middleware"
	"benefits_gateway/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// BenefitsModule 收藏/预订缓存协调模块
type BenefitsModule struct{}

func init() {
	registry.Register(&BenefitsModule{})
}

func (m *BenefitsModule) Name() string {
	return "benefits"
}

func (m *BenefitsModule) Priority() int {
	return 10
}

func (m *BenefitsModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入：未启用 Redis 时本地缓存落在 GORM（sqlite/postgres）
	var store repository.CacheStore
	if ctx.Redis != nil {
		store = repository.NewRedisStore(ctx.Redis)
	} else {
		store = repository.NewGormStore(ctx.DB)
	}

	bService := service.NewBenefitsService(ctx.Authority, store, ctx.Pool)
	bHandler := handler.NewBenefitsHandler(bService)

	// 2. 路由注册
	setupRoutes(ctx.Router, bHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.BenefitsHandler) {
	authorized := r.Group("")
	authorized.Use(middleware.AuthMiddleware())
	{
		promos := authorized.Group("/promotions")
		{
			promos.GET("/favorites", h.GetFavoritePromotions)
			promos.POST("/:id/favorite", h.FavoritePromotion)
			promos.DELETE("/:id/favorite", h.UnfavoritePromotion)
			promos.GET("/reserved", h.GetReservedPromotions)
		}

		bookings := authorized.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.GetUserBookings)
			bookings.GET("/:id", h.GetBookingByID)
			bookings.PATCH("/:id", h.UpdateBooking)
			bookings.POST("/:id/cancel", h.CancelBooking)
		}

		cache := authorized.Group("/cache")
		{
			cache.DELETE("", h.ClearCache)
			cache.GET("/stats", h.GetCacheStats)
		}
	}
}
