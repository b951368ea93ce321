package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
	apperrors "github.com/aditya93941/project-management/pkg/errors"
)

// Notification types emitted by the permission and report subsystems.
const (
	NotifyPermissionRequested       = "permission.requested"
	NotifyPermissionRequestApproved = "permission.request_approved"
	NotifyPermissionRequestRejected = "permission.request_rejected"
	NotifyPermissionGranted         = "permission.granted"
	NotifyPermissionRevoked         = "permission.revoked"
	NotifyPermissionExpired         = "permission.expired"
	NotifyPermissionExpiring        = "permission.expiring"
)

// NotifyInput defines attributes required to persist a notification.
type NotifyInput struct {
	RecipientID string
	SenderID    string
	Type        string
	Message     string
	RelatedID   string
	ProjectID   string
	Metadata    map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}

// NotificationService persists in-app notifications. Domain services treat
// delivery as fire-and-forget: a failed notification is logged by the caller
// and never aborts the primary operation.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// Notify registers a new notification for the recipient.
func (s *NotificationService) Notify(ctx context.Context, input NotifyInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)
	recipient := strings.TrimSpace(input.RecipientID)
	if recipient == "" {
		return nil, errors.New("notification service: recipient id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, errors.New("notification service: type is required")
	}

	notification := models.Notification{
		RecipientID: recipient,
		Type:        notificationType,
		Message:     strings.TrimSpace(input.Message),
		RelatedID:   strings.TrimSpace(input.RelatedID),
		ProjectID:   strings.TrimSpace(input.ProjectID),
	}

	if sender := strings.TrimSpace(input.SenderID); sender != "" {
		notification.SenderID = &sender
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	return &notification, nil
}

// HasRecent reports whether a notification matching recipient, type, and
// related id was created at or after the supplied cutoff. Used to
// de-duplicate recurring warnings.
func (s *NotificationService) HasRecent(ctx context.Context, recipientID, notificationType, relatedID string, since time.Time) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND related_id = ? AND created_at >= ?",
			recipientID, notificationType, relatedID, since).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("notification service: recent lookup: %w", err)
	}

	return count > 0, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	recipient := strings.TrimSpace(input.RecipientID)
	if recipient == "" {
		return nil, errors.New("notification service: recipient id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Where("recipient_id = ?", recipient)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return rows, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	notification.IsRead = true
	notification.ReadAt = &now
	return &notification, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
