package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aditya93941/project-management/internal/models"
)

func TestTaskAccessServiceAccessibleTaskIDs(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTaskAccessService(db)
	require.NoError(t, err)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	other := createUser(t, db, "other", models.RoleDeveloper)
	alpha := createProject(t, db, "alpha")
	beta := createProject(t, db, "beta")

	assigned := createTask(t, db, beta.ID, dev.ID, "assigned elsewhere")
	viaMembership := createTask(t, db, alpha.ID, "", "backlog item")
	foreign := createTask(t, db, beta.ID, other.ID, "someone else's")
	addProjectMember(t, db, alpha.ID, dev.ID)

	ctx := context.Background()
	ids, err := svc.AccessibleTaskIDs(ctx, dev.ID)
	require.NoError(t, err)
	require.Contains(t, ids, assigned.ID)
	require.Contains(t, ids, viaMembership.ID)
	require.NotContains(t, ids, foreign.ID)

	member, err := svc.IsProjectMember(ctx, dev.ID, alpha.ID)
	require.NoError(t, err)
	require.True(t, member)

	member, err = svc.IsProjectMember(ctx, dev.ID, beta.ID)
	require.NoError(t, err)
	require.False(t, member)
}

func TestTaskAccessServiceRecentlyChangedTasks(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTaskAccessService(db)
	require.NoError(t, err)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	fresh := createTask(t, db, project.ID, dev.ID, "fresh")
	stale := createTask(t, db, project.ID, dev.ID, "stale")

	today := startOfDay(baseTime)
	require.NoError(t, db.Model(&models.Task{}).
		Where("id = ?", fresh.ID).
		Update("status_changed_at", baseTime.Add(-time.Hour)).Error)
	require.NoError(t, db.Model(&models.Task{}).
		Where("id = ?", stale.ID).
		Update("status_changed_at", today.AddDate(0, 0, -2)).Error)

	tasks, err := svc.RecentlyChangedTasks(context.Background(), dev.ID, today, baseTime)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, fresh.ID, tasks[0].ID)
}
