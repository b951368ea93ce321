package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
	apperrors "github.com/aditya93941/project-management/pkg/errors"
	"github.com/aditya93941/project-management/pkg/logger"
)

// CreateRequestInput describes a developer's permission request.
type CreateRequestInput struct {
	RequesterID   string
	RequesterRole models.Role
	ProjectID     string
	DurationDays  int
	Reason        string
}

// ReviewRequestInput describes an admin decision on a pending request.
type ReviewRequestInput struct {
	RequestID    string
	ReviewerID   string
	ReviewerRole models.Role
	Approve      bool
	Notes        string
}

// RequestOption customises the RequestService.
type RequestOption func(*RequestService)

// WithRequestClock overrides the clock, primarily for testing.
func WithRequestClock(now func() time.Time) RequestOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// RequestService runs the permission request workflow: developers open
// requests, managers and group heads review them, and approval materialises
// a grant through the shared grant table.
type RequestService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
	log           *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(db *gorm.DB, notifications *NotificationService, opts ...RequestOption) (*RequestService, error) {
	if db == nil {
		return nil, errors.New("request service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("request service: notification service is required")
	}

	service := &RequestService{
		db:            db,
		notifications: notifications,
		now:           time.Now,
		log:           logger.WithModule("requests"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create opens a PENDING request for the requester/project pair and notifies
// every manager and group head. Fails if a pending request or an active
// grant already covers the pair.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*models.PermissionRequest, error) {
	ctx = ensureContext(ctx)

	if input.RequesterRole != models.RoleDeveloper {
		return nil, apperrors.NewBadRequest("Only developers request task assignment permissions")
	}
	if input.DurationDays < 1 || input.DurationDays > MaxGrantDays {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Requested duration must be between 1 and %d days", MaxGrantDays))
	}

	now := s.now()

	var pending int64
	if err := s.db.WithContext(ctx).
		Model(&models.PermissionRequest{}).
		Where("requested_by = ? AND project_id = ? AND status = ?",
			input.RequesterID, input.ProjectID, models.RequestStatusPending).
		Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("request service: pending lookup: %w", err)
	}
	if pending > 0 {
		return nil, ErrAlreadyPending
	}

	var activeGrants int64
	if err := s.db.WithContext(ctx).
		Model(&models.TemporaryPermission{}).
		Where("user_id = ? AND project_id = ? AND is_active = ? AND expires_at > ?",
			input.RequesterID, input.ProjectID, true, now).
		Count(&activeGrants).Error; err != nil {
		return nil, fmt.Errorf("request service: grant lookup: %w", err)
	}
	if activeGrants > 0 {
		return nil, ErrAlreadyGranted
	}

	request := models.PermissionRequest{
		RequestedBy:  input.RequesterID,
		ProjectID:    input.ProjectID,
		DurationDays: input.DurationDays,
		Reason:       input.Reason,
		Status:       models.RequestStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, fmt.Errorf("request service: create request: %w", err)
	}

	s.notifyReviewers(ctx, &request)

	return &request, nil
}

// ListPending returns open requests for reviewers, oldest first.
func (s *RequestService) ListPending(ctx context.Context, reviewerRole models.Role) ([]models.PermissionRequest, error) {
	ctx = ensureContext(ctx)

	if !reviewerRole.CanManageGrants() {
		return nil, ErrInsufficientRole
	}

	var requests []models.PermissionRequest
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.RequestStatusPending).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("request service: list pending: %w", err)
	}
	return requests, nil
}

// Review settles a pending request. Approval computes the expiry from the
// requested duration and materialises a grant in the same transaction as
// the review update; a grant created between request and review is left
// untouched. Either outcome is terminal and notifies the requester.
func (s *RequestService) Review(ctx context.Context, input ReviewRequestInput) (*models.PermissionRequest, error) {
	ctx = ensureContext(ctx)

	if !input.ReviewerRole.CanManageGrants() {
		return nil, ErrInsufficientRole
	}

	var request models.PermissionRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", input.RequestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("request service: load request: %w", err)
	}

	if request.Status != models.RequestStatusPending {
		return nil, ErrAlreadyReviewed
	}

	// The requester's role may have changed since the request was opened.
	// A request from someone who is no longer a developer is stale either
	// way, so the check applies to both decisions.
	var requester models.User
	if err := s.db.WithContext(ctx).First(&requester, "id = ?", request.RequestedBy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("request service: load requester: %w", err)
	}
	if requester.Role != models.RoleDeveloper {
		return nil, ErrRequesterRoleMismatch
	}

	now := s.now()
	status := models.RequestStatusRejected
	if input.Approve {
		status = models.RequestStatusApproved
	}

	var grant *models.TemporaryPermission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PermissionRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Updates(map[string]any{
				"status":       status,
				"reviewed_by":  input.ReviewerID,
				"reviewed_at":  now,
				"review_notes": input.Notes,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}

		if input.Approve {
			expiresAt := now.AddDate(0, 0, request.DurationDays)
			reason := fmt.Sprintf("Approved request: %s", request.Reason)
			var txErr error
			grant, _, txErr = createGrantIfAbsent(tx, now, request.RequestedBy, request.ProjectID, input.ReviewerID, reason, expiresAt)
			return txErr
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("request service: review: %w", err)
	}

	request.Status = status
	request.ReviewedBy = &input.ReviewerID
	request.ReviewedAt = &now
	request.ReviewNotes = input.Notes

	s.notifyRequester(ctx, &request, grant, input.ReviewerID)

	return &request, nil
}

// notifyReviewers fans the new request out to every manager and group head.
// Delivery is fire-and-forget; a failure never rolls back the request.
func (s *RequestService) notifyReviewers(ctx context.Context, request *models.PermissionRequest) {
	var reviewers []models.User
	if err := s.db.WithContext(ctx).
		Where("role IN ?", []models.Role{models.RoleManager, models.RoleGroupHead}).
		Find(&reviewers).Error; err != nil {
		s.log.Warn("reviewer lookup failed", zap.Error(err))
		return
	}

	for _, reviewer := range reviewers {
		if _, err := s.notifications.Notify(ctx, NotifyInput{
			RecipientID: reviewer.ID,
			SenderID:    request.RequestedBy,
			Type:        NotifyPermissionRequested,
			Message:     fmt.Sprintf("New permission request for %d days: %s", request.DurationDays, request.Reason),
			RelatedID:   request.ID,
			ProjectID:   request.ProjectID,
		}); err != nil {
			s.log.Warn("request notification failed",
				zap.String("reviewer", reviewer.ID),
				zap.Error(err))
		}
	}
}

func (s *RequestService) notifyRequester(ctx context.Context, request *models.PermissionRequest, grant *models.TemporaryPermission, reviewerID string) {
	input := NotifyInput{
		RecipientID: request.RequestedBy,
		SenderID:    reviewerID,
		RelatedID:   request.ID,
		ProjectID:   request.ProjectID,
	}

	if request.Status == models.RequestStatusApproved {
		input.Type = NotifyPermissionRequestApproved
		input.Message = "Your permission request was approved"
		if grant != nil {
			input.Message = fmt.Sprintf("Your permission request was approved; access expires %s",
				grant.ExpiresAt.Local().Format("Jan 2, 2006 15:04"))
		}
	} else {
		input.Type = NotifyPermissionRequestRejected
		input.Message = "Your permission request was rejected"
		if request.ReviewNotes != "" {
			input.Message = fmt.Sprintf("Your permission request was rejected: %s", request.ReviewNotes)
		}
	}

	if _, err := s.notifications.Notify(ctx, input); err != nil {
		s.log.Warn("review notification failed",
			zap.String("request_id", request.ID),
			zap.Error(err))
	}
}
