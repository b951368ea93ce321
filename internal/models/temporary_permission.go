package models

import "time"

// TemporaryPermission elevates a developer to assign tasks within one
// project until expires_at. At most one row per (user_id, project_id) may be
// active and unexpired; re-granting updates the existing row instead of
// inserting a duplicate. Rows are deactivated, never deleted.
type TemporaryPermission struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;not null;index:idx_grant_pair" json:"user_id"`
	ProjectID string    `gorm:"type:uuid;not null;index:idx_grant_pair" json:"project_id"`
	GrantedBy string    `gorm:"type:uuid;not null" json:"granted_by"`
	Reason    string    `gorm:"type:text" json:"reason"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
}
