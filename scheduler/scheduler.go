// api/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/docuvault/api/cache"
	"github.com/docuvault/api/config"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/warmup"
)

// Scheduler is the periodic-task registry for the cache subsystem: a cron
// runner started at process init and stopped at shutdown. Every job catches
// and logs its own errors and panics; a failing job never takes down the
// runner or its neighbors.
type Scheduler struct {
	cron         *cron.Cron
	store        cache.KeyValueStore
	cacheService *cache.PermissionCacheService
	analyzer     *cache.CachePerformanceAnalyzer
	optimizer    *cache.CacheMemoryOptimizer
	warmupEngine *warmup.StrategyEngine
}

func New(
	store cache.KeyValueStore,
	cacheService *cache.PermissionCacheService,
	analyzer *cache.CachePerformanceAnalyzer,
	optimizer *cache.CacheMemoryOptimizer,
	warmupEngine *warmup.StrategyEngine,
) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		store:        store,
		cacheService: cacheService,
		analyzer:     analyzer,
		optimizer:    optimizer,
		warmupEngine: warmupEngine,
	}
}

// Start registers all periodic jobs from configuration and starts the cron
// runner.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"memory-check", config.GetString("scheduler.memoryCheckSpec"), s.memoryCheck},
		{"health-check", config.GetString("scheduler.healthCheckSpec"), s.healthCheck},
		{"smart-warmup", config.GetString("scheduler.warmupSpec"), s.smartWarmup},
		{"deep-optimization", config.GetString("scheduler.deepOptimizationSpec"), s.deepOptimization},
		{"weekly-report", config.GetString("scheduler.weeklyReportSpec"), s.weeklyReport},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.runJob(job.name, job.run)
		}); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", job.name, job.spec, err)
		}
	}

	s.cron.Start()
	logger.Info("Cache maintenance scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop shuts the runner down and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cache maintenance scheduler stopped")
}

// runJob isolates one job run: panics are recovered and logged so the cron
// worker survives.
func (s *Scheduler) runJob(name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled job panicked",
				zap.String("job", name),
				zap.Any("panic", r))
		}
	}()
	run(context.Background())
}

func (s *Scheduler) memoryCheck(ctx context.Context) {
	s.optimizer.ScheduledMemoryCheck(ctx)
}

func (s *Scheduler) healthCheck(ctx context.Context) {
	if err := s.store.Ping(ctx); err != nil {
		logger.Error("Cache store health check failed", zap.Error(err))
		return
	}
	stats, err := s.cacheService.CacheStats(ctx)
	if err != nil {
		logger.Error("Failed to collect cache stats for health check", zap.Error(err))
		return
	}
	logger.Info("Cache health check",
		zap.Int64("totalKeys", stats.TotalKeys),
		zap.Int64("hits", stats.TotalHits),
		zap.Int64("misses", stats.TotalMisses),
		zap.Int64("evictions", stats.TotalEvictions))
}

func (s *Scheduler) smartWarmup(ctx context.Context) {
	execution := <-s.warmupEngine.ExecuteSmartWarmup(ctx)
	logger.Info("Scheduled warmup finished",
		zap.String("strategy", execution.Strategy),
		zap.Bool("success", execution.Success),
		zap.String("reason", execution.Reason))
}

// deepOptimization fans out three independent subtasks and joins on all of
// them. A single subtask failure is logged but does not abort the others.
func (s *Scheduler) deepOptimization(ctx context.Context) {
	logger.Info("Starting deep cache optimization")

	subtasks := []struct {
		name string
		run  func()
	}{
		{"memory-cleanup", func() {
			result := <-s.optimizer.PerformCleanup(ctx)
			logger.Info("Deep optimization cleanup finished",
				zap.Int64("keysRemoved", result.KeysRemoved),
				zap.Int64("memoryFreed", result.MemoryFreed))
		}},
		{"statistics-reset", s.analyzer.ResetStatistics},
		{"access-pattern-reset", s.warmupEngine.ResetAccessPatterns},
	}

	var wg sync.WaitGroup
	for _, task := range subtasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Deep optimization subtask failed",
						zap.String("subtask", task.name),
						zap.Any("panic", r))
				}
			}()
			task.run()
		}()
	}
	wg.Wait()

	logger.Info("Deep cache optimization completed")
}

func (s *Scheduler) weeklyReport(ctx context.Context) {
	report := s.analyzer.PerformanceReport()
	recommendations, err := s.optimizer.OptimizationRecommendations(ctx)
	if err != nil {
		logger.Error("Failed to collect optimization recommendations for weekly report", zap.Error(err))
	}
	logger.Info("Weekly cache performance report",
		zap.Float64("hitRate", report.HitRate),
		zap.Float64("missRate", report.MissRate),
		zap.Int64("totalRequests", report.TotalRequests),
		zap.Float64("avgResponseTimeMillis", report.AvgResponseTimeMillis),
		zap.Int64("totalEvictions", report.TotalEvictions),
		zap.Strings("recommendations", report.Recommendations),
		zap.Int("optimizationRecommendations", len(recommendations)))
}
