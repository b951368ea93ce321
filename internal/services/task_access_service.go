package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
)

// TaskAccessSource answers which tasks a user may reference in their
// reports, whether they belong to a project, and which of their tasks
// changed recently. Satisfied by TaskAccessService; narrow so tests can
// substitute fixtures.
type TaskAccessSource interface {
	AccessibleTaskIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	IsProjectMember(ctx context.Context, userID, projectID string) (bool, error)
	RecentlyChangedTasks(ctx context.Context, userID string, since, until time.Time) ([]models.Task, error)
}

// TaskAccessService resolves task accessibility from task assignment and
// project membership rows.
type TaskAccessService struct {
	db *gorm.DB
}

// NewTaskAccessService constructs a TaskAccessService.
func NewTaskAccessService(db *gorm.DB) (*TaskAccessService, error) {
	if db == nil {
		return nil, errors.New("task access service: db is required")
	}
	return &TaskAccessService{db: db}, nil
}

// AccessibleTaskIDs returns the union of tasks assigned to the user and
// tasks in projects where the user is a member.
func (s *TaskAccessService) AccessibleTaskIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("assigned_to = ?", userID).
		Or("project_id IN (?)", s.db.Model(&models.ProjectMember{}).
			Select("project_id").
			Where("user_id = ?", userID)).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("task access service: accessible tasks: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// IsProjectMember reports whether the user belongs to the project.
func (s *TaskAccessService) IsProjectMember(ctx context.Context, userID, projectID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("task access service: membership lookup: %w", err)
	}
	return count > 0, nil
}

// RecentlyChangedTasks returns the caller's accessible tasks whose status
// changed at or after the cutoff. Used as a convenience projection alongside
// the daily report.
func (s *TaskAccessService) RecentlyChangedTasks(ctx context.Context, userID string, since, until time.Time) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("status_changed_at >= ? AND status_changed_at <= ?", since, until).
		Where(s.db.Where("assigned_to = ?", userID).
			Or("project_id IN (?)", s.db.Model(&models.ProjectMember{}).
				Select("project_id").
				Where("user_id = ?", userID))).
		Order("status_changed_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task access service: recently changed tasks: %w", err)
	}
	return tasks, nil
}
