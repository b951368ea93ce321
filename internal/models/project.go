package models

// Project groups tasks and members. Project CRUD is owned externally; the
// rows are read here for membership and task accessibility checks.
type Project struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
}

// ProjectMember links a user to a project they participate in.
type ProjectMember struct {
	BaseModel

	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"project_id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"user_id"`
}
