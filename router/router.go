// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/docuvault/api/controller"
	"github.com/docuvault/api/middleware"
)

func SetupRouter(
	cacheController *controller.CacheController,
	redisClient *redis.Client,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(redisClient, rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	cacheController.RegisterRoutes(api)

	return router
}
