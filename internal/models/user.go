package models

// Role identifies a user's position in the reporting hierarchy.
type Role string

// Roles in descending order of authority.
const (
	RoleManager   Role = "MANAGER"
	RoleGroupHead Role = "GROUP_HEAD"
	RoleTeamLead  Role = "TEAM_LEAD"
	RoleDeveloper Role = "DEVELOPER"
)

var roleLevels = map[Role]int{
	RoleManager:   4,
	RoleGroupHead: 3,
	RoleTeamLead:  2,
	RoleDeveloper: 1,
}

// Level returns the numeric rank of the role; unknown roles rank lowest.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role is one of the four known values.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// CanManageGrants reports whether the role may create or revoke temporary
// permission grants and review permission requests.
func (r Role) CanManageGrants() bool {
	return r == RoleManager || r == RoleGroupHead
}

// User describes platform users. Account management lives outside this
// service; only the identity and role are read here.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `gorm:"type:varchar(32);not null;default:'DEVELOPER';index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
