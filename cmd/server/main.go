package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"benefits_gateway/internal/pkg/authority"
	"benefits_gateway/internal/pkg/config"
	"benefits_gateway/internal/pkg/middleware"
	"benefits_gateway/internal/pkg/registry"
	"benefits_gateway/internal/pkg/worker"
	"benefits_gateway/pkg/database"
	"benefits_gateway/pkg/logger"

	// 模块自注册
	_ "benefits_gateway/internal/domain/benefits"
	_ "benefits_gateway/internal/domain/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger.Init(config.GlobalConfig.App.Debug)
	defer logger.Sync()

	db := database.InitCacheDB()

	var rdb *redis.Client
	if config.GlobalConfig.Redis.Enabled {
		rdb = database.InitRedis()
	}

	client := authority.NewHTTPClient(config.GlobalConfig.Authority)

	pool := worker.NewPool(3, 500)
	pool.Start()

	if config.GlobalConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(100, 200)))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	moduleCtx := &registry.ModuleContext{
		DB:        db,
		Redis:     rdb,
		Router:    r,
		Authority: client,
		Pool:      pool,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("Failed to initialize modules", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + config.GlobalConfig.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("port", config.GlobalConfig.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Forced shutdown", zap.Error(err))
	}
}
