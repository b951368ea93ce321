package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/database/testutil"
	"github.com/aditya93941/project-management/internal/models"
)

// testClock is a mutable fixed clock shared by the service under test and
// the assertions.
type testClock struct {
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// baseTime is a midday anchor so day-boundary arithmetic stays inside one
// calendar day unless a test moves it deliberately.
var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.Role) models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createProject(t *testing.T, db *gorm.DB, name string) models.Project {
	t.Helper()

	project := models.Project{Name: name}
	require.NoError(t, db.Create(&project).Error)
	return project
}

func addProjectMember(t *testing.T, db *gorm.DB, projectID, userID string) {
	t.Helper()

	member := models.ProjectMember{ProjectID: projectID, UserID: userID}
	require.NoError(t, db.Create(&member).Error)
}

func createTask(t *testing.T, db *gorm.DB, projectID, assignedTo, title string) models.Task {
	t.Helper()

	task := models.Task{
		ProjectID:  projectID,
		Title:      title,
		Status:     models.TaskStatusTodo,
		AssignedTo: assignedTo,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func createGrant(t *testing.T, db *gorm.DB, userID, projectID, grantedBy string, expiresAt time.Time, active bool) models.TemporaryPermission {
	t.Helper()

	grant := models.TemporaryPermission{
		UserID:    userID,
		ProjectID: projectID,
		GrantedBy: grantedBy,
		Reason:    "fixture",
		ExpiresAt: expiresAt,
		IsActive:  active,
	}
	require.NoError(t, db.Create(&grant).Error)
	return grant
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID, notificationType string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", recipientID, notificationType).
		Count(&count).Error)
	return count
}

func mustNotificationService(t *testing.T, db *gorm.DB) *NotificationService {
	t.Helper()

	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	return svc
}
