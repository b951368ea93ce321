package models

import "time"

// Permission request review states. PENDING is the only mutable state.
const (
	RequestStatusPending  = "PENDING"
	RequestStatusApproved = "APPROVED"
	RequestStatusRejected = "REJECTED"
)

// PermissionRequest records a developer's ask for temporary task-assignment
// rights on a project. At most one PENDING request may exist per
// (requested_by, project_id); reviewing is the sole mutator and either
// outcome is terminal.
type PermissionRequest struct {
	BaseModel

	RequestedBy  string `gorm:"type:uuid;not null;index:idx_request_pair" json:"requested_by"`
	ProjectID    string `gorm:"type:uuid;not null;index:idx_request_pair" json:"project_id"`
	DurationDays int    `gorm:"not null" json:"duration_days"`
	Reason       string `gorm:"type:text" json:"reason"`
	Status       string `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`

	ReviewedBy  *string    `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ReviewNotes string     `gorm:"type:text" json:"review_notes"`
}
