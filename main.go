package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docuvault/api/cache"
	"github.com/docuvault/api/config"
	"github.com/docuvault/api/controller"
	"github.com/docuvault/api/dao"
	"github.com/docuvault/api/db"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/router"
	"github.com/docuvault/api/scheduler"
	"github.com/docuvault/api/warmup"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	redisClient, err := db.NewRedisClient()
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis(redisClient)

	store := db.NewRedisStore(redisClient)
	authorizationDAO := dao.NewAuthorizationDAO(db.Neo4jDriver)

	// Initialize the cache subsystem
	stats := cache.NewStats()
	analyzer := cache.NewCachePerformanceAnalyzer(stats)
	cacheService := cache.NewPermissionCacheService(store, authorizationDAO, analyzer, stats)
	optimizer := cache.NewCacheMemoryOptimizer(store, analyzer)
	warmupService := warmup.NewCacheWarmupService(authorizationDAO, cacheService)
	warmupEngine := warmup.NewStrategyEngine(optimizer, warmupService)

	// Start the maintenance scheduler
	maintenance := scheduler.New(store, cacheService, analyzer, optimizer, warmupEngine)
	if err := maintenance.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer maintenance.Stop()

	// Initialize controllers
	cacheController := controller.NewCacheController(cacheService, analyzer, optimizer, warmupEngine)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(cacheController, redisClient, 100, time.Minute) // 100 requests per minute

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
