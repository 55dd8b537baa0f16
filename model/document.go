// api/model/document.go
package model

import "time"

type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"` // "DRAFT", "PUBLISHED", "ARCHIVED"
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DocumentAssignment struct {
	DocumentID     string    `json:"document_id"`
	UserID         string    `json:"user_id"`
	AssignmentType string    `json:"assignment_type"` // "VIEWER", "EDITOR", "OWNER"
	AssignedAt     time.Time `json:"assigned_at"`
}
