package models

import (
	"time"

	"gorm.io/datatypes"
)

// EOD report submission states. Finality is an orthogonal one-way flag.
const (
	ReportStatusDraft     = "DRAFT"
	ReportStatusSubmitted = "SUBMITTED"
)

// EODTask statuses.
const (
	EODTaskCompleted  = "COMPLETED"
	EODTaskInProgress = "IN_PROGRESS"
)

// EODReport is one user's once-daily status submission. ReportDate is
// date-only, normalised to local midnight; (user_id, report_date) is unique.
// Once IsFinal is set no field may change.
type EODReport struct {
	BaseModel

	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_report_day" json:"user_id"`
	ReportDate time.Time `gorm:"not null;uniqueIndex:idx_report_day" json:"report_date"`
	Status     string    `gorm:"type:varchar(16);not null;default:'DRAFT';index" json:"status"`
	IsFinal    bool      `gorm:"default:false;index" json:"is_final"`

	SubmittedAt       *time.Time `json:"submitted_at"`
	ScheduledSubmitAt *time.Time `gorm:"index" json:"scheduled_submit_at"`

	TasksCompleted  int `gorm:"default:0" json:"tasks_completed"`
	TasksInProgress int `gorm:"default:0" json:"tasks_in_progress"`
	Blockers        int `gorm:"default:0" json:"blockers"`

	BlockersText    string         `gorm:"type:text" json:"blockers_text"`
	BlockedTasks    datatypes.JSON `json:"blocked_tasks"`
	PlanForTomorrow string         `gorm:"type:text" json:"plan_for_tomorrow"`
	Notes           string         `gorm:"type:text" json:"notes"`

	Tasks []EODTask `gorm:"foreignKey:EODReportID" json:"tasks,omitempty"`
}

// EODTask links a report to a task the user worked on that day. Rows are
// fully replaced on every edit that includes task lists. Progress is
// meaningful for IN_PROGRESS entries; COMPLETED implies 100.
type EODTask struct {
	BaseModel

	EODReportID string `gorm:"type:uuid;not null;uniqueIndex:idx_eod_task" json:"eod_report_id"`
	TaskID      string `gorm:"type:uuid;not null;uniqueIndex:idx_eod_task" json:"task_id"`
	Status      string `gorm:"type:varchar(16);not null" json:"status"`
	Progress    int    `gorm:"default:0" json:"progress"`
}
