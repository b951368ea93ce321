package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
	apperrors "github.com/aditya93941/project-management/pkg/errors"
	"github.com/aditya93941/project-management/pkg/logger"
	"github.com/aditya93941/project-management/pkg/metrics"
)

// InProgressTaskInput references a task the user is still working on.
type InProgressTaskInput struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
}

// ReportDraftInput carries the editable content of a daily report.
type ReportDraftInput struct {
	CompletedTaskIDs []string              `json:"completed_tasks"`
	InProgressTasks  []InProgressTaskInput `json:"in_progress_tasks"`
	BlockedTaskIDs   []string              `json:"blocked_tasks"`
	BlockersText     string                `json:"blockers_text"`
	PlanForTomorrow  string                `json:"plan_for_tomorrow"`
	Notes            string                `json:"notes"`
}

// SubmitReportInput controls submission. A nil Draft leaves report content
// untouched; SubmitNow promotes immediately, otherwise ScheduledSubmitAt
// must fall later today and the submission scheduler performs the promotion.
type SubmitReportInput struct {
	Draft             *ReportDraftInput
	SubmitNow         bool
	ScheduledSubmitAt *time.Time
}

// TodayReportView bundles today's report (nil when none exists) with the
// caller's recently changed tasks as a convenience projection.
type TodayReportView struct {
	Report       *models.EODReport `json:"report"`
	ChangedTasks []models.Task     `json:"changed_tasks"`
}

// ReportOption customises the ReportService.
type ReportOption func(*ReportService)

// WithReportClock overrides the clock, primarily for testing.
func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// ReportService owns the daily report lifecycle: draft upserts, immediate
// and scheduled submission, and the three sweeps that promote and seal
// reports without user action.
type ReportService struct {
	db         *gorm.DB
	taskAccess TaskAccessSource
	now        func() time.Time
	log        *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB, taskAccess TaskAccessSource, opts ...ReportOption) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	if taskAccess == nil {
		return nil, errors.New("report service: task access source is required")
	}

	service := &ReportService{
		db:         db,
		taskAccess: taskAccess,
		now:        time.Now,
		log:        logger.WithModule("reports"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SaveDraft creates or updates today's report with upsert semantics keyed on
// (user, today). Task lists fully replace the previous associations.
func (s *ReportService) SaveDraft(ctx context.Context, userID string, input ReportDraftInput) (*models.EODReport, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	if err := validateDraftInput(input); err != nil {
		return nil, err
	}
	if err := s.checkTaskAccess(ctx, userID, input); err != nil {
		return nil, err
	}

	report, err := s.ensureDraft(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if err := s.applyDraft(ctx, report, input); err != nil {
		return nil, err
	}

	return s.loadReport(ctx, report.ID)
}

// Submit files today's report. A missing report is implicitly created as a
// draft first, so submit is safe to call without a prior draft; the draft
// and the promotion are two composed steps, not a special case.
func (s *ReportService) Submit(ctx context.Context, userID string, input SubmitReportInput) (*models.EODReport, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	if input.Draft != nil {
		if err := validateDraftInput(*input.Draft); err != nil {
			return nil, err
		}
		if err := s.checkTaskAccess(ctx, userID, *input.Draft); err != nil {
			return nil, err
		}
	}
	if !input.SubmitNow {
		if input.ScheduledSubmitAt == nil {
			return nil, apperrors.NewBadRequest("Scheduled submission requires a scheduled time")
		}
		if !input.ScheduledSubmitAt.After(now) {
			return nil, apperrors.NewBadRequest("Scheduled submission time must be in the future")
		}
		if input.ScheduledSubmitAt.After(endOfDay(now)) {
			return nil, apperrors.NewBadRequest("Scheduled submission time must fall before the end of today")
		}
	}

	report, err := s.ensureDraft(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if !input.SubmitNow && report.Status == models.ReportStatusSubmitted {
		return nil, apperrors.NewBadRequest("Report is already submitted; scheduling is only available for drafts")
	}

	if input.Draft != nil {
		if err := s.applyDraft(ctx, report, *input.Draft); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{}
	if input.SubmitNow {
		updates["status"] = models.ReportStatusSubmitted
		updates["submitted_at"] = now
		updates["scheduled_submit_at"] = nil
	} else {
		updates["scheduled_submit_at"] = *input.ScheduledSubmitAt
	}

	if err := s.db.WithContext(ctx).
		Model(&models.EODReport{}).
		Where("id = ?", report.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("report service: submit: %w", err)
	}

	return s.loadReport(ctx, report.ID)
}

// TodayReport returns today's report, or nil when none exists yet, together
// with the caller's accessible tasks whose status changed today.
func (s *ReportService) TodayReport(ctx context.Context, userID string) (*TodayReportView, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	today := startOfDay(now)

	view := &TodayReportView{}

	var report models.EODReport
	err := s.db.WithContext(ctx).
		Preload("Tasks").
		Where("user_id = ? AND report_date = ?", userID, today).
		First(&report).Error
	switch {
	case err == nil:
		view.Report = &report
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No draft yet today; the view still carries changed tasks.
	default:
		return nil, fmt.Errorf("report service: load today report: %w", err)
	}

	tasks, taskErr := s.taskAccess.RecentlyChangedTasks(ctx, userID, today, now)
	if taskErr != nil {
		s.log.Warn("changed task projection failed", zap.Error(taskErr))
	} else {
		view.ChangedTasks = tasks
	}

	return view, nil
}

// SweepScheduled promotes drafts whose scheduled submission time has
// arrived. The predicate excludes already-promoted rows, so re-running
// finds nothing to do.
func (s *ReportService) SweepScheduled(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	result := s.db.WithContext(ctx).
		Model(&models.EODReport{}).
		Where("status = ? AND is_final = ? AND scheduled_submit_at IS NOT NULL AND scheduled_submit_at <= ?",
			models.ReportStatusDraft, false, now).
		Updates(map[string]any{
			"status":              models.ReportStatusSubmitted,
			"submitted_at":        now,
			"scheduled_submit_at": nil,
		})
	if result.Error != nil {
		metrics.SweepRuns.WithLabelValues("scheduled_submissions", "error").Inc()
		return 0, fmt.Errorf("report service: sweep scheduled: %w", result.Error)
	}

	metrics.SweepRuns.WithLabelValues("scheduled_submissions", "success").Inc()
	metrics.SweepRowsProcessed.WithLabelValues("scheduled_submissions").Add(float64(result.RowsAffected))
	return int(result.RowsAffected), nil
}

// ForceEndOfDay promotes every remaining draft for today, scheduled or not,
// guaranteeing each user closes the day with a submitted report.
func (s *ReportService) ForceEndOfDay(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	today := startOfDay(now)

	result := s.db.WithContext(ctx).
		Model(&models.EODReport{}).
		Where("status = ? AND is_final = ? AND report_date = ?",
			models.ReportStatusDraft, false, today).
		Updates(map[string]any{
			"status":              models.ReportStatusSubmitted,
			"submitted_at":        now,
			"scheduled_submit_at": nil,
		})
	if result.Error != nil {
		metrics.SweepRuns.WithLabelValues("end_of_day", "error").Inc()
		return 0, fmt.Errorf("report service: force end of day: %w", result.Error)
	}

	metrics.SweepRuns.WithLabelValues("end_of_day", "success").Inc()
	metrics.SweepRowsProcessed.WithLabelValues("end_of_day").Add(float64(result.RowsAffected))
	return int(result.RowsAffected), nil
}

// FinalizeYesterday seals yesterday's submitted reports. Finalisation is
// one-way; sealed rows never match the predicate again.
func (s *ReportService) FinalizeYesterday(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	yesterday := startOfDay(s.now()).AddDate(0, 0, -1)

	result := s.db.WithContext(ctx).
		Model(&models.EODReport{}).
		Where("status = ? AND is_final = ? AND report_date = ?",
			models.ReportStatusSubmitted, false, yesterday).
		Update("is_final", true)
	if result.Error != nil {
		metrics.SweepRuns.WithLabelValues("finalize", "error").Inc()
		return 0, fmt.Errorf("report service: finalize yesterday: %w", result.Error)
	}

	metrics.SweepRuns.WithLabelValues("finalize", "success").Inc()
	metrics.SweepRowsProcessed.WithLabelValues("finalize").Add(float64(result.RowsAffected))
	return int(result.RowsAffected), nil
}

// ensureDraft loads today's report or creates an empty draft, enforcing the
// editability rule. Reports for other dates are read-only history, and a
// finalised report rejects every mutation.
func (s *ReportService) ensureDraft(ctx context.Context, userID string, now time.Time) (*models.EODReport, error) {
	today := startOfDay(now)

	var report models.EODReport
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND report_date = ?", userID, today).
		First(&report).Error

	switch {
	case err == nil:
		if report.IsFinal {
			return nil, ErrReportFinal
		}
		if report.Status == models.ReportStatusSubmitted && now.After(endOfDay(report.ReportDate)) {
			return nil, ErrWrongReportDate
		}
		return &report, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		report = models.EODReport{
			UserID:     userID,
			ReportDate: today,
			Status:     models.ReportStatusDraft,
		}
		if createErr := s.db.WithContext(ctx).Create(&report).Error; createErr != nil {
			if isUniqueConstraintError(createErr) {
				// Lost a create race; reload the winner.
				if loadErr := s.db.WithContext(ctx).
					Where("user_id = ? AND report_date = ?", userID, today).
					First(&report).Error; loadErr == nil {
					return &report, nil
				}
			}
			return nil, fmt.Errorf("report service: create draft: %w", createErr)
		}
		return &report, nil

	default:
		return nil, fmt.Errorf("report service: load report: %w", err)
	}
}

// applyDraft writes the report content and fully replaces the task
// associations, recomputing the denormalised counts.
func (s *ReportService) applyDraft(ctx context.Context, report *models.EODReport, input ReportDraftInput) error {
	completed := normaliseIDs(input.CompletedTaskIDs)
	blocked := normaliseIDs(input.BlockedTaskIDs)

	blockedJSON, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("report service: marshal blocked tasks: %w", err)
	}

	inProgress := dedupeInProgress(input.InProgressTasks, completed)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EODReport{}).
			Where("id = ?", report.ID).
			Updates(map[string]any{
				"tasks_completed":   len(completed),
				"tasks_in_progress": len(inProgress),
				"blockers":          len(blocked),
				"blockers_text":     input.BlockersText,
				"blocked_tasks":     datatypes.JSON(blockedJSON),
				"plan_for_tomorrow": input.PlanForTomorrow,
				"notes":             input.Notes,
			}).Error; err != nil {
			return err
		}

		// Task rows are replaced wholesale, never patched.
		if err := tx.Where("eod_report_id = ?", report.ID).
			Delete(&models.EODTask{}).Error; err != nil {
			return err
		}

		rows := make([]models.EODTask, 0, len(completed)+len(inProgress))
		for _, taskID := range completed {
			rows = append(rows, models.EODTask{
				EODReportID: report.ID,
				TaskID:      taskID,
				Status:      models.EODTaskCompleted,
				Progress:    100,
			})
		}
		for _, task := range inProgress {
			rows = append(rows, models.EODTask{
				EODReportID: report.ID,
				TaskID:      task.TaskID,
				Status:      models.EODTaskInProgress,
				Progress:    task.Progress,
			})
		}

		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// checkTaskAccess verifies every referenced task id against the caller's
// accessible task set and names the offenders on failure.
func (s *ReportService) checkTaskAccess(ctx context.Context, userID string, input ReportDraftInput) error {
	referenced := normaliseIDs(input.CompletedTaskIDs)
	for _, task := range input.InProgressTasks {
		referenced = append(referenced, task.TaskID)
	}
	referenced = append(referenced, input.BlockedTaskIDs...)
	referenced = normaliseIDs(referenced)
	if len(referenced) == 0 {
		return nil
	}

	accessible, err := s.taskAccess.AccessibleTaskIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("report service: accessible task lookup: %w", err)
	}

	var denied []string
	for _, id := range referenced {
		if _, ok := accessible[id]; !ok {
			denied = append(denied, id)
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		return NewTaskNotAccessibleError(denied)
	}
	return nil
}

func (s *ReportService) loadReport(ctx context.Context, id string) (*models.EODReport, error) {
	var report models.EODReport
	if err := s.db.WithContext(ctx).
		Preload("Tasks").
		First(&report, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("report service: reload report: %w", err)
	}
	return &report, nil
}

func validateDraftInput(input ReportDraftInput) error {
	for _, task := range input.InProgressTasks {
		if task.TaskID == "" {
			return apperrors.NewBadRequest("In-progress entries require a task id")
		}
		if task.Progress < 0 || task.Progress > 100 {
			return apperrors.NewBadRequest("Task progress must be between 0 and 100")
		}
	}
	return nil
}

// dedupeInProgress drops duplicate entries and any task already reported as
// completed, keeping the (eod_report_id, task_id) pair unique.
func dedupeInProgress(tasks []InProgressTaskInput, completed []string) []InProgressTaskInput {
	completedSet := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		completedSet[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(tasks))
	var out []InProgressTaskInput
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		if _, done := completedSet[task.TaskID]; done {
			continue
		}
		if _, dup := seen[task.TaskID]; dup {
			continue
		}
		seen[task.TaskID] = struct{}{}
		out = append(out, task)
	}
	return out
}
