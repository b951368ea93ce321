package models

import "time"

// Task statuses understood by the reporting layer.
const (
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusDone       = "DONE"
)

// Task is a unit of work inside a project. Task CRUD is owned externally;
// reports reference tasks and the accessibility checks read assignment and
// project membership.
type Task struct {
	BaseModel

	ProjectID  string `gorm:"type:uuid;not null;index" json:"project_id"`
	Title      string `gorm:"not null" json:"title"`
	Status     string `gorm:"type:varchar(32);not null;default:'TODO'" json:"status"`
	AssignedTo string `gorm:"type:uuid;index" json:"assigned_to"`

	StatusChangedAt *time.Time `json:"status_changed_at"`
}
