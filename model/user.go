// api/model/user.go
package model

import "time"

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

type Permission struct {
	ID          string `json:"id"`
	Code        string `json:"code"` // e.g. "document:read", "document:publish"
	Description string `json:"description"`
}

// PermissionSet is the flattened set of permission codes a user holds,
// kept sorted so cached payloads are stable.
type PermissionSet []string

func (ps PermissionSet) Contains(code string) bool {
	for _, c := range ps {
		if c == code {
			return true
		}
	}
	return false
}
