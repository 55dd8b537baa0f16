// api/cache/keys.go
package cache

import "fmt"

// Logical cache type names. These name the four caches in stats, events,
// access patterns and warmup accounting.
const (
	TypeUserPermissions     = "user_permissions"
	TypeUserDocAssignments  = "user_document_assignments"
	TypeDocumentPublic      = "document_public_status"
	TypeDocumentAssignments = "document_assignments"
)

// Key namespaces. All cache entries live under "perm:"; the performance
// namespace "perf:" holds short-lived analysis artifacts swept by the
// memory optimizer.
const (
	cacheNamespace       = "perm:*"
	performanceNamespace = "perf:*"

	prefixUserPermissions     = "perm:user:"
	prefixUserDocAssignments  = "perm:assign:"
	prefixDocumentPublic      = "perm:docpub:"
	prefixDocumentAssignments = "perm:docassign:"
)

func userPermissionsKey(username string) string {
	return prefixUserPermissions + username
}

func userDocAssignmentsKey(userID, documentID string) string {
	return fmt.Sprintf("%s%s:%s", prefixUserDocAssignments, userID, documentID)
}

func documentPublicKey(documentID string) string {
	return prefixDocumentPublic + documentID
}

func documentAssignmentsKey(documentID string) string {
	return prefixDocumentAssignments + documentID
}

// typePrefixes maps each logical cache type to its key prefix, used for
// per-type key counts and bulk eviction.
var typePrefixes = map[string]string{
	TypeUserPermissions:     prefixUserPermissions,
	TypeUserDocAssignments:  prefixUserDocAssignments,
	TypeDocumentPublic:      prefixDocumentPublic,
	TypeDocumentAssignments: prefixDocumentAssignments,
}
