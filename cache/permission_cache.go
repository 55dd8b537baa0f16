// api/cache/permission_cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuvault/api/config"
	dv_errors "github.com/docuvault/api/errors"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// PermissionCacheService is the cache-aside layer over AuthorizationSource.
// It owns the cache keys and TTLs for the four logical caches and all
// invalidation entry points. Store failures degrade to a miss: the source of
// truth is always consulted rather than the error propagated.
type PermissionCacheService struct {
	store    KeyValueStore
	source   AuthorizationSource
	recorder OperationRecorder
	stats    *Stats
}

func NewPermissionCacheService(store KeyValueStore, source AuthorizationSource, recorder OperationRecorder, stats *Stats) *PermissionCacheService {
	return &PermissionCacheService{
		store:    store,
		source:   source,
		recorder: recorder,
		stats:    stats,
	}
}

// Stats returns the counter aggregate owned by this service. The analyzer
// reads (and increments, via the recording path) the same aggregate.
func (s *PermissionCacheService) Stats() *Stats {
	return s.stats
}

// GetUserPermissions returns the flattened set of permission codes for a
// username. Unknown usernames yield an empty set, not an error, and are
// recorded as a miss.
func (s *PermissionCacheService) GetUserPermissions(ctx context.Context, username string) (model.PermissionSet, error) {
	start := time.Now()
	key := userPermissionsKey(username)

	var cached model.PermissionSet
	if s.readJSON(ctx, key, &cached) {
		s.recorder.RecordCacheOperation(TypeUserPermissions, time.Since(start), true)
		return cached, nil
	}

	perms, err := s.loadUserPermissions(ctx, username)
	if err != nil {
		return nil, err
	}

	s.writeJSON(ctx, key, perms, config.GetDuration("cache.userPermissionsTTL"))
	s.recorder.RecordCacheOperation(TypeUserPermissions, time.Since(start), false)
	return perms, nil
}

func (s *PermissionCacheService) loadUserPermissions(ctx context.Context, username string) (model.PermissionSet, error) {
	user, err := s.source.FindUserByUsername(ctx, username)
	if errors.Is(err, dv_errors.ErrUserNotFound) {
		logger.Debug("Unknown username, caching empty permission set", zap.String("username", username))
		return model.PermissionSet{}, nil
	} else if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			seen[perm.Code] = struct{}{}
		}
	}

	perms := make(model.PermissionSet, 0, len(seen))
	for code := range seen {
		perms = append(perms, code)
	}
	sort.Strings(perms)
	return perms, nil
}

// HasPermission reports whether the user holds the given permission code.
// It delegates to GetUserPermissions; there is no separate cache entry.
func (s *PermissionCacheService) HasPermission(ctx context.Context, username, code string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, username)
	if err != nil {
		return false, err
	}
	return perms.Contains(code), nil
}

// GetUserDocumentAssignments returns the assignments of one user on one
// document, filtered from the user's full assignment set on a miss.
func (s *PermissionCacheService) GetUserDocumentAssignments(ctx context.Context, userID, documentID string) ([]model.DocumentAssignment, error) {
	start := time.Now()
	key := userDocAssignmentsKey(userID, documentID)

	var cached []model.DocumentAssignment
	if s.readJSON(ctx, key, &cached) {
		s.recorder.RecordCacheOperation(TypeUserDocAssignments, time.Since(start), true)
		return cached, nil
	}

	all, err := s.source.FindDocumentAssignmentsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	assignments := make([]model.DocumentAssignment, 0)
	for _, a := range all {
		if a.DocumentID == documentID {
			assignments = append(assignments, a)
		}
	}

	s.writeJSON(ctx, key, assignments, config.GetDuration("cache.assignmentTTL"))
	s.recorder.RecordCacheOperation(TypeUserDocAssignments, time.Since(start), false)
	return assignments, nil
}

// IsDocumentPublic reports whether a document is publicly visible. Documents
// that do not exist are reported as not public.
func (s *PermissionCacheService) IsDocumentPublic(ctx context.Context, documentID string) (bool, error) {
	start := time.Now()
	key := documentPublicKey(documentID)

	var cached bool
	if s.readJSON(ctx, key, &cached) {
		s.recorder.RecordCacheOperation(TypeDocumentPublic, time.Since(start), true)
		return cached, nil
	}

	public := false
	doc, err := s.source.FindDocumentByID(ctx, documentID)
	if errors.Is(err, dv_errors.ErrDocumentNotFound) {
		logger.Debug("Unknown document, caching non-public status", zap.String("documentID", documentID))
	} else if err != nil {
		return false, err
	} else {
		public = doc.Public
	}

	s.writeJSON(ctx, key, public, config.GetDuration("cache.documentPublicTTL"))
	s.recorder.RecordCacheOperation(TypeDocumentPublic, time.Since(start), false)
	return public, nil
}

// GetDocumentAssignments returns all assignments on a document.
func (s *PermissionCacheService) GetDocumentAssignments(ctx context.Context, documentID string) ([]model.DocumentAssignment, error) {
	start := time.Now()
	key := documentAssignmentsKey(documentID)

	var cached []model.DocumentAssignment
	if s.readJSON(ctx, key, &cached) {
		s.recorder.RecordCacheOperation(TypeDocumentAssignments, time.Since(start), true)
		return cached, nil
	}

	assignments, err := s.source.FindDocumentAssignmentsByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []model.DocumentAssignment{}
	}

	s.writeJSON(ctx, key, assignments, config.GetDuration("cache.assignmentTTL"))
	s.recorder.RecordCacheOperation(TypeDocumentAssignments, time.Since(start), false)
	return assignments, nil
}

// IsUserAssignedToDocument reports whether the user has an assignment of the
// given type on the document. An empty assignmentType matches any assignment.
func (s *PermissionCacheService) IsUserAssignedToDocument(ctx context.Context, userID, documentID, assignmentType string) (bool, error) {
	assignments, err := s.GetUserDocumentAssignments(ctx, userID, documentID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if assignmentType == "" || a.AssignmentType == assignmentType {
			return true, nil
		}
	}
	return false, nil
}

// EvictUserPermissions removes the cached permission set for a username.
// After it returns, the next read for that username loads fresh data.
func (s *PermissionCacheService) EvictUserPermissions(ctx context.Context, username string) error {
	if _, err := s.store.Delete(ctx, userPermissionsKey(username)); err != nil {
		return fmt.Errorf("%w: evict user permissions: %v", dv_errors.ErrCacheOperation, err)
	}
	s.recorder.RecordCacheEviction(TypeUserPermissions)
	logger.Debug("Evicted user permissions", zap.String("username", username))
	return nil
}

// EvictUserPermissionsByID resolves the user through AuthorizationSource and
// evicts by username. If the user is already gone (deleted before eviction),
// the whole user-permission namespace is swept so no stale entry survives.
func (s *PermissionCacheService) EvictUserPermissionsByID(ctx context.Context, userID string) error {
	user, err := s.source.FindUserByID(ctx, userID)
	if errors.Is(err, dv_errors.ErrUserNotFound) {
		logger.Warn("Evicting permissions for deleted user, sweeping namespace", zap.String("userID", userID))
		return s.EvictAllUserPermissions(ctx)
	} else if err != nil {
		return err
	}
	return s.EvictUserPermissions(ctx, user.Username)
}

// EvictUserDocumentAssignments removes every cached assignment entry of one
// user, across all documents.
func (s *PermissionCacheService) EvictUserDocumentAssignments(ctx context.Context, userID string) error {
	return s.evictPattern(ctx, prefixUserDocAssignments+userID+":*", TypeUserDocAssignments)
}

// EvictDocumentPublicStatus removes the cached public flag of a document.
func (s *PermissionCacheService) EvictDocumentPublicStatus(ctx context.Context, documentID string) error {
	if _, err := s.store.Delete(ctx, documentPublicKey(documentID)); err != nil {
		return fmt.Errorf("%w: evict document public status: %v", dv_errors.ErrCacheOperation, err)
	}
	s.recorder.RecordCacheEviction(TypeDocumentPublic)
	return nil
}

/// EvictDocumentCache removes every cache entry touching a document: its
// public flag, its assignment list, and all per-user assignment entries.
func (s *PermissionCacheService) EvictDocumentCache(ctx context.Context, documentID string) error {
	if _, err := s.store.Delete(ctx, documentPublicKey(documentID), documentAssignmentsKey(documentID)); err != nil {
		return fmt.Errorf("%w: evict document cache: %v", dv_errors.ErrCacheOperation, err)
	}
	s.recorder.RecordCacheEviction(TypeDocumentPublic)
	s.recorder.RecordCacheEviction(TypeDocumentAssignments)
	return s.evictPattern(ctx, prefixUserDocAssignments+"*:"+documentID, TypeUserDocAssignments)
}

// EvictAllUserPermissions removes every cached permission set.
func (s *PermissionCacheService) EvictAllUserPermissions(ctx context.Context) error {
	return s.evictPattern(ctx, prefixUserPermissions+"*", TypeUserPermissions)
}

// EvictAllUserDocumentAssignments removes every cached per-user assignment
// entry.
func (s *PermissionCacheService) EvictAllUserDocumentAssignments(ctx context.Context) error {
	return s.evictPattern(ctx, prefixUserDocAssignments+"*", TypeUserDocAssignments)
}

// EvictAllDocumentPublicStatus removes every cached document public flag.
func (s *PermissionCacheService) EvictAllDocumentPublicStatus(ctx context.Context) error {
	return s.evictPattern(ctx, prefixDocumentPublic+"*", TypeDocumentPublic)
}

func (s *PermissionCacheService) evictPattern(ctx context.Context, pattern, cacheType string) error {
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("%w: scan %s: %v", dv_errors.ErrCacheOperation, pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	removed, err := s.store.Delete(ctx, keys...)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", dv_errors.ErrCacheOperation, pattern, err)
	}
	for i := int64(0); i < removed; i++ {
		s.recorder.RecordCacheEviction(cacheType)
	}
	logger.Debug("Evicted cache entries by pattern",
		zap.String("pattern", pattern),
		zap.Int64("removed", removed))
	return nil
}

// CacheStats returns the cumulative hit/miss counters plus the current key
// count of each logical cache.
func (s *PermissionCacheService) CacheStats(ctx context.Context) (model.CacheStats, error) {
	keyCounts := make(map[string]int64, len(typePrefixes))
	for cacheType, prefix := range typePrefixes {
		keys, err := s.store.Keys(ctx, prefix+"*")
		if err != nil {
			return model.CacheStats{}, fmt.Errorf("%w: count keys for %s: %v", dv_errors.ErrCacheOperation, cacheType, err)
		}
		keyCounts[cacheType] = int64(len(keys))
	}
	return s.stats.Snapshot(keyCounts), nil
}

// KeyCountsByType returns the number of live keys per logical cache type.
func (s *PermissionCacheService) KeyCountsByType(ctx context.Context) (map[string]int64, error) {
	stats, err := s.CacheStats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(stats.ByType))
	for t, st := range stats.ByType {
		counts[t] = st.KeyCount
	}
	return counts, nil
}

// readJSON reads and decodes a cache entry. Any store or decode failure is
// treated as a miss so the caller falls back to the source of truth.
func (s *PermissionCacheService) readJSON(ctx context.Context, key string, out interface{}) bool {
	val, found, err := s.store.Get(ctx, key)
	if err != nil {
		logger.Warn("Cache read failed, falling back to source", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		logger.Warn("Corrupt cache entry, falling back to source", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// writeJSON stores a computed value with TTL. Failures are logged, never
// propagated: a failed populate only costs the next read a miss.
func (s *PermissionCacheService) writeJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, key, string(payload), ttl); err != nil {
		logger.Warn("Failed to populate cache", zap.String("key", key), zap.Error(err))
	}
}

// cacheTypeForKey maps a raw store key back to its logical cache type.
func cacheTypeForKey(key string) string {
	for cacheType, prefix := range typePrefixes {
		if strings.HasPrefix(key, prefix) {
			return cacheType
		}
	}
	return ""
}
