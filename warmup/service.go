// api/warmup/service.go
package warmup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/docuvault/api/cache"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// CacheWarmupService performs bulk re-population reads. Every warmed entry
// goes through the PermissionCacheService read path, so population is
// instrumented like any other lookup. Partial failures are counted, not
// fatal.
type CacheWarmupService struct {
	source cache.AuthorizationSource
	cache  *cache.PermissionCacheService
}

func NewCacheWarmupService(source cache.AuthorizationSource, cacheService *cache.PermissionCacheService) *CacheWarmupService {
	return &CacheWarmupService{source: source, cache: cacheService}
}

// WarmupUserPermissions loads the permission sets of up to limit users.
func (s *CacheWarmupService) WarmupUserPermissions(ctx context.Context, limit int) (model.WarmupResult, error) {
	usernames, err := s.source.ListUsernames(ctx, limit)
	if err != nil {
		return model.WarmupResult{}, err
	}

	var result model.WarmupResult
	for _, username := range usernames {
		if _, err := s.cache.GetUserPermissions(ctx, username); err != nil {
			logger.Warn("Failed to warm user permissions", zap.String("username", username), zap.Error(err))
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	logger.Info("User permission warmup finished",
		zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return result, nil
}

// WarmupDocumentPublicStatus loads the public flags of up to limit documents.
func (s *CacheWarmupService) WarmupDocumentPublicStatus(ctx context.Context, limit int) (model.WarmupResult, error) {
	documentIDs, err := s.source.ListDocumentIDs(ctx, limit)
	if err != nil {
		return model.WarmupResult{}, err
	}

	var result model.WarmupResult
	for _, id := range documentIDs {
		if _, err := s.cache.IsDocumentPublic(ctx, id); err != nil {
			logger.Warn("Failed to warm document public status", zap.String("documentID", id), zap.Error(err))
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	logger.Info("Document public status warmup finished",
		zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return result, nil
}

// WarmupPopularDocumentAssignments loads assignment entries for the given
// "userID:documentID" keys. Malformed keys count as failures.
func (s *CacheWarmupService) WarmupPopularDocumentAssignments(ctx context.Context, keys []string) (model.WarmupResult, error) {
	var result model.WarmupResult
	for _, key := range keys {
		userID, documentID, ok := strings.Cut(key, ":")
		if !ok || userID == "" || documentID == "" {
			logger.Warn("Skipping malformed assignment key", zap.String("key", key))
			result.Failed++
			continue
		}
		if _, err := s.cache.GetUserDocumentAssignments(ctx, userID, documentID); err != nil {
			logger.Warn("Failed to warm document assignments", zap.String("key", key), zap.Error(err))
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// PerformCompleteWarmup runs the full multi-cache warmup: user permissions,
// document public flags and document assignment lists.
func (s *CacheWarmupService) PerformCompleteWarmup(ctx context.Context) (map[string]model.WarmupResult, error) {
	results := make(map[string]model.WarmupResult, 3)

	permResult, err := s.WarmupUserPermissions(ctx, 0)
	if err != nil {
		return results, err
	}
	results[cache.TypeUserPermissions] = permResult

	pubResult, err := s.WarmupDocumentPublicStatus(ctx, 0)
	if err != nil {
		return results, err
	}
	results[cache.TypeDocumentPublic] = pubResult

	documentIDs, err := s.source.ListDocumentIDs(ctx, 0)
	if err != nil {
		return results, err
	}
	var assignResult model.WarmupResult
	for _, id := range documentIDs {
		if _, err := s.cache.GetDocumentAssignments(ctx, id); err != nil {
			logger.Warn("Failed to warm assignment list", zap.String("documentID", id), zap.Error(err))
			assignResult.Failed++
			continue
		}
		assignResult.Succeeded++
	}
	results[cache.TypeDocumentAssignments] = assignResult

	logger.Info("Complete cache warmup finished")
	return results, nil
}
