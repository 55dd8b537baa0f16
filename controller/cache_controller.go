// api/controller/cache_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuvault/api/cache"
	dv_errors "github.com/docuvault/api/errors"
	"github.com/docuvault/api/util"
	"github.com/docuvault/api/warmup"
)

// CacheController exposes the cache subsystem's public operations to
// operators and admin tooling: statistics, reports, recommendations,
// cleanup/warmup triggers and the eviction and reset entry points.
type CacheController struct {
	cacheService *cache.PermissionCacheService
	analyzer     *cache.CachePerformanceAnalyzer
	optimizer    *cache.CacheMemoryOptimizer
	warmupEngine *warmup.StrategyEngine
}

func NewCacheController(
	cacheService *cache.PermissionCacheService,
	analyzer *cache.CachePerformanceAnalyzer,
	optimizer *cache.CacheMemoryOptimizer,
	warmupEngine *warmup.StrategyEngine,
) *CacheController {
	return &CacheController{
		cacheService: cacheService,
		analyzer:     analyzer,
		optimizer:    optimizer,
		warmupEngine: warmupEngine,
	}
}

// RegisterRoutes registers the admin API routes for the cache subsystem
func (cc *CacheController) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/cache")
	{
		group.GET("/stats", cc.GetStats)
		group.GET("/report", cc.GetReport)
		group.GET("/memory", cc.GetMemoryInfo)
		group.GET("/recommendations", cc.GetRecommendations)
		group.GET("/warmup/history", cc.GetWarmupHistory)
		group.GET("/warmup/patterns", cc.GetAccessPatterns)
		group.POST("/cleanup", cc.TriggerCleanup)
		group.POST("/warmup", cc.TriggerWarmup)
		group.POST("/evict/users/:username", cc.EvictUser)
		group.POST("/evict/documents/:id", cc.EvictDocument)
		group.POST("/reset/statistics", cc.ResetStatistics)
		group.POST("/reset/patterns", cc.ResetAccessPatterns)
	}
}

// GetStats endpoint
func (cc *CacheController) GetStats(c *gin.Context) {
	stats, err := cc.cacheService.CacheStats(c)
	if err != nil {
		util.RespondWithError(c, http.StatusServiceUnavailable, "Failed to collect cache stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetReport endpoint
func (cc *CacheController) GetReport(c *gin.Context) {
	c.JSON(http.StatusOK, cc.analyzer.PerformanceReport())
}

// GetMemoryInfo endpoint
func (cc *CacheController) GetMemoryInfo(c *gin.Context) {
	info, err := cc.optimizer.MemoryUsageInfo(c)
	if err != nil {
		util.RespondWithError(c, http.StatusServiceUnavailable, "Failed to collect memory info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetRecommendations endpoint
func (cc *CacheController) GetRecommendations(c *gin.Context) {
	recommendations, err := cc.optimizer.OptimizationRecommendations(c)
	if err != nil {
		util.RespondWithError(c, http.StatusServiceUnavailable, "Failed to compute recommendations", err)
		return
	}
	c.JSON(http.StatusOK, recommendations)
}

// GetWarmupHistory endpoint
func (cc *CacheController) GetWarmupHistory(c *gin.Context) {
	c.JSON(http.StatusOK, cc.warmupEngine.WarmupHistory())
}

// GetAccessPatterns endpoint
func (cc *CacheController) GetAccessPatterns(c *gin.Context) {
	c.JSON(http.StatusOK, cc.warmupEngine.AccessPatterns())
}

// TriggerCleanup endpoint. The cleanup runs asynchronously; the response
// carries the result once it completes.
func (cc *CacheController) TriggerCleanup(c *gin.Context) {
	result := <-cc.optimizer.PerformCleanup(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// TriggerWarmup endpoint
func (cc *CacheController) TriggerWarmup(c *gin.Context) {
	execution := <-cc.warmupEngine.ExecuteSmartWarmup(c.Request.Context())
	c.JSON(http.StatusOK, execution)
}

// EvictUser endpoint evicts one user's permission set and assignment
// entries.
func (cc *CacheController) EvictUser(c *gin.Context) {
	username := c.Param("username")
	if err := cc.cacheService.EvictUserPermissions(c, username); err != nil {
		util.RespondWithError(c, http.StatusServiceUnavailable, "Failed to evict user permissions", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EvictDocument endpoint evicts every cache entry touching one document.
func (cc *CacheController) EvictDocument(c *gin.Context) {
	documentID := c.Param("id")
	if err := cc.cacheService.EvictDocumentCache(c, documentID); err != nil {
		if errors.Is(err, dv_errors.ErrCacheOperation) {
			util.RespondWithError(c, http.StatusServiceUnavailable, "Failed to evict document cache", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to evict document cache", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetStatistics endpoint
func (cc *CacheController) ResetStatistics(c *gin.Context) {
	cc.analyzer.ResetStatistics()
	c.Status(http.StatusNoContent)
}

// ResetAccessPatterns endpoint
func (cc *CacheController) ResetAccessPatterns(c *gin.Context) {
	cc.warmupEngine.ResetAccessPatterns()
	c.Status(http.StatusNoContent)
}
