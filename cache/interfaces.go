// api/cache/interfaces.go
package cache

import (
	"context"
	"time"

	"github.com/docuvault/api/model"
)

// KeyValueStore is the narrow surface the cache subsystem consumes from the
// backing store. db.RedisStore is the production implementation.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Keys returns all keys matching pattern. Pattern syntax uses "*" as
	// wildcard with ":"-separated namespaces.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// TTL returns the remaining time to live of a key; -1s means the key has
	// no expiry, -2s means the key does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// IdleTime returns the duration since the key was last accessed.
	IdleTime(ctx context.Context, key string) (time.Duration, error)
	// MemoryInfo returns used and maximum memory in bytes; max is 0 when the
	// store has no configured ceiling.
	MemoryInfo(ctx context.Context) (used int64, max int64, err error)
	KeyCount(ctx context.Context) (int64, error)
	// Compact triggers an asynchronous background rewrite on the store.
	Compact(ctx context.Context) error
	Ping(ctx context.Context) error
}

// AuthorizationSource is read access to the authorization data store:
// users with their roles and permissions, documents, and user-document
// assignments. dao.AuthorizationDAO is the production implementation.
type AuthorizationSource interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByID(ctx context.Context, userID string) (*model.User, error)
	FindDocumentByID(ctx context.Context, documentID string) (*model.Document, error)
	FindDocumentAssignmentsByUserID(ctx context.Context, userID string) ([]model.DocumentAssignment, error)
	FindDocumentAssignmentsByDocumentID(ctx context.Context, documentID string) ([]model.DocumentAssignment, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	DocumentExists(ctx context.Context, documentID string) (bool, error)
	ListUsernames(ctx context.Context, limit int) ([]string, error)
	ListDocumentIDs(ctx context.Context, limit int) ([]string, error)
}

// OperationRecorder receives hit/miss and eviction events from the cache
// service. CachePerformanceAnalyzer is the production implementation.
type OperationRecorder interface {
	RecordCacheOperation(operation string, executionTime time.Duration, hit bool)
	RecordCacheEviction(cacheName string)
}
