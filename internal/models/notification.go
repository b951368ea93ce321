package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents an in-app notification for a user. RelatedID
// points at the grant, request, or report the notification concerns and is
// part of the dedupe key for recurring warnings.
type Notification struct {
	BaseModel

	RecipientID string         `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    *string        `gorm:"type:uuid" json:"sender_id"`
	Type        string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Message     string         `gorm:"type:text" json:"message"`
	RelatedID   string         `gorm:"type:uuid;index" json:"related_id"`
	ProjectID   string         `gorm:"type:uuid" json:"project_id"`
	Metadata    datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
