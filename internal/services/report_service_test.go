package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
)

func newReportService(t *testing.T, db *gorm.DB, clock *testClock) *ReportService {
	t.Helper()

	taskAccess, err := NewTaskAccessService(db)
	require.NoError(t, err)

	svc, err := NewReportService(db, taskAccess, WithReportClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestReportServiceSaveDraftUpserts(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")
	done := createTask(t, db, project.ID, dev.ID, "ship feature")
	working := createTask(t, db, project.ID, dev.ID, "write docs")
	blocked := createTask(t, db, project.ID, dev.ID, "review PR")

	ctx := context.Background()
	report, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{done.ID},
		InProgressTasks:  []InProgressTaskInput{{TaskID: working.ID, Progress: 60}},
		BlockedTaskIDs:   []string{blocked.ID},
		BlockersText:     "waiting on review",
		PlanForTomorrow:  "finish docs",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusDraft, report.Status)
	require.Equal(t, 1, report.TasksCompleted)
	require.Equal(t, 1, report.TasksInProgress)
	require.Equal(t, 1, report.Blockers)
	require.Len(t, report.Tasks, 2)

	// A second save the same day updates the one report, replacing its
	// task rows wholesale.
	updated, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{done.ID, working.ID},
		Notes:            "all wrapped up",
	})
	require.NoError(t, err)
	require.Equal(t, report.ID, updated.ID)
	require.Equal(t, 2, updated.TasksCompleted)
	require.Zero(t, updated.TasksInProgress)
	require.Zero(t, updated.Blockers)
	require.Len(t, updated.Tasks, 2)
	for _, row := range updated.Tasks {
		require.Equal(t, models.EODTaskCompleted, row.Status)
		require.Equal(t, 100, row.Progress)
	}

	var reports int64
	require.NoError(t, db.Model(&models.EODReport{}).
		Where("user_id = ?", dev.ID).Count(&reports).Error)
	require.Equal(t, int64(1), reports)
}

func TestReportServiceSaveDraftTaskAccess(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	stranger := createUser(t, db, "stranger", models.RoleDeveloper)
	alpha := createProject(t, db, "alpha")
	beta := createProject(t, db, "beta")

	foreign := createTask(t, db, beta.ID, stranger.ID, "not yours")
	memberTask := createTask(t, db, alpha.ID, "", "team backlog")
	addProjectMember(t, db, alpha.ID, dev.ID)

	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{foreign.ID},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), foreign.ID)

	// Tasks in member projects are referencable even without assignment.
	report, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		InProgressTasks: []InProgressTaskInput{{TaskID: memberTask.ID, Progress: 25}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.TasksInProgress)
}

func TestReportServiceSaveDraftValidation(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")
	task := createTask(t, db, project.ID, dev.ID, "work")

	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		InProgressTasks: []InProgressTaskInput{{TaskID: task.ID, Progress: 120}},
	})
	require.Error(t, err)

	_, err = svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		InProgressTasks: []InProgressTaskInput{{TaskID: "", Progress: 10}},
	})
	require.Error(t, err)

	// A task reported completed wins over its in-progress duplicate.
	report, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{task.ID},
		InProgressTasks:  []InProgressTaskInput{{TaskID: task.ID, Progress: 50}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.TasksCompleted)
	require.Zero(t, report.TasksInProgress)
	require.Len(t, report.Tasks, 1)
	require.Equal(t, models.EODTaskCompleted, report.Tasks[0].Status)
}

func TestReportServiceSubmitNow(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")
	task := createTask(t, db, project.ID, dev.ID, "work")

	ctx := context.Background()

	// No prior draft exists; submit creates one implicitly.
	report, err := svc.Submit(ctx, dev.ID, SubmitReportInput{
		Draft: &ReportDraftInput{
			CompletedTaskIDs: []string{task.ID},
		},
		SubmitNow: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusSubmitted, report.Status)
	require.NotNil(t, report.SubmittedAt)
	require.Nil(t, report.ScheduledSubmitAt)
	require.Equal(t, 1, report.TasksCompleted)

	// Submitted reports stay editable for the rest of the day.
	updated, err := svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{task.ID},
		Notes:            "amended after submitting",
	})
	require.NoError(t, err)
	require.Equal(t, report.ID, updated.ID)
	require.Equal(t, models.ReportStatusSubmitted, updated.Status)
	require.Equal(t, "amended after submitting", updated.Notes)
}

func TestReportServiceScheduledSubmission(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)

	ctx := context.Background()

	_, err := svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: false})
	require.Error(t, err)

	past := baseTime.Add(-time.Hour)
	_, err = svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: false, ScheduledSubmitAt: &past})
	require.Error(t, err)

	tomorrow := baseTime.Add(24 * time.Hour)
	_, err = svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: false, ScheduledSubmitAt: &tomorrow})
	require.Error(t, err)

	evening := baseTime.Add(6 * time.Hour)
	report, err := svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: false, ScheduledSubmitAt: &evening})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusDraft, report.Status)
	require.NotNil(t, report.ScheduledSubmitAt)

	// Before the scheduled time the sweep leaves the draft alone.
	count, err := svc.SweepScheduled(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	clock.Advance(7 * time.Hour)
	count, err = svc.SweepScheduled(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var reloaded models.EODReport
	require.NoError(t, db.First(&reloaded, "id = ?", report.ID).Error)
	require.Equal(t, models.ReportStatusSubmitted, reloaded.Status)
	require.NotNil(t, reloaded.SubmittedAt)
	require.Nil(t, reloaded.ScheduledSubmitAt)

	// Promoted rows no longer match the predicate.
	count, err = svc.SweepScheduled(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// Scheduling is only available for drafts.
	later := clock.Now().Add(time.Hour)
	_, err = svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: false, ScheduledSubmitAt: &later})
	require.Error(t, err)
}

func TestReportServiceForceEndOfDay(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	drafter := createUser(t, db, "drafter", models.RoleDeveloper)
	submitter := createUser(t, db, "submitter", models.RoleDeveloper)

	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, drafter.ID, ReportDraftInput{Notes: "unfinished"})
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, submitter.ID, SubmitReportInput{SubmitNow: true})
	require.NoError(t, err)

	count, err := svc.ForceEndOfDay(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var reloaded models.EODReport
	require.NoError(t, db.Where("user_id = ?", drafter.ID).First(&reloaded).Error)
	require.Equal(t, models.ReportStatusSubmitted, reloaded.Status)
	require.NotNil(t, reloaded.SubmittedAt)

	// The already submitted report kept its original submission time.
	require.NoError(t, db.First(&reloaded, "id = ?", submitted.ID).Error)
	require.WithinDuration(t, baseTime, *reloaded.SubmittedAt, time.Second)

	count, err = svc.ForceEndOfDay(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestReportServiceFinalizeYesterday(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)

	yesterday := startOfDay(baseTime).AddDate(0, 0, -1)
	submittedAt := yesterday.Add(18 * time.Hour)
	old := models.EODReport{
		UserID:      dev.ID,
		ReportDate:  yesterday,
		Status:      models.ReportStatusSubmitted,
		SubmittedAt: &submittedAt,
	}
	require.NoError(t, db.Create(&old).Error)

	// A lingering draft from yesterday is not finalised; the end-of-day
	// sweep should have promoted it first.
	straggler := createUser(t, db, "straggler", models.RoleDeveloper)
	leftover := models.EODReport{
		UserID:     straggler.ID,
		ReportDate: yesterday,
		Status:     models.ReportStatusDraft,
	}
	require.NoError(t, db.Create(&leftover).Error)

	ctx := context.Background()
	count, err := svc.FinalizeYesterday(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var reloaded models.EODReport
	require.NoError(t, db.First(&reloaded, "id = ?", old.ID).Error)
	require.True(t, reloaded.IsFinal)

	require.NoError(t, db.First(&reloaded, "id = ?", leftover.ID).Error)
	require.False(t, reloaded.IsFinal)

	count, err = svc.FinalizeYesterday(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestReportServiceFinalReportRejectsEdits(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)

	ctx := context.Background()
	report, err := svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: true})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.EODReport{}).
		Where("id = ?", report.ID).
		Update("is_final", true).Error)

	_, err = svc.SaveDraft(ctx, dev.ID, ReportDraftInput{Notes: "too late"})
	require.ErrorIs(t, err, ErrReportFinal)

	_, err = svc.Submit(ctx, dev.ID, SubmitReportInput{SubmitNow: true})
	require.ErrorIs(t, err, ErrReportFinal)
}

func TestReportServiceTodayReport(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newReportService(t, db, clock)

	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")
	task := createTask(t, db, project.ID, dev.ID, "work")

	changedAt := baseTime.Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("status_changed_at", changedAt).Error)

	ctx := context.Background()

	view, err := svc.TodayReport(ctx, dev.ID)
	require.NoError(t, err)
	require.Nil(t, view.Report)
	require.Len(t, view.ChangedTasks, 1)
	require.Equal(t, task.ID, view.ChangedTasks[0].ID)

	_, err = svc.SaveDraft(ctx, dev.ID, ReportDraftInput{
		CompletedTaskIDs: []string{task.ID},
	})
	require.NoError(t, err)

	view, err = svc.TodayReport(ctx, dev.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Report)
	require.Equal(t, 1, view.Report.TasksCompleted)
	require.Len(t, view.Report.Tasks, 1)
}
