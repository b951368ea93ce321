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
	"github.com/aditya93941/project-management/pkg/metrics"
)

const (
	// DefaultGrantDays applies when a grant is created without an explicit duration.
	DefaultGrantDays = 7
	// MaxGrantDays caps both grant durations and request durations.
	MaxGrantDays = 90

	// expiryWarningWindow is how far ahead the warner looks for expiring grants.
	expiryWarningWindow = 3 * 24 * time.Hour
	// warningDedupeWindow suppresses repeat warnings for the same grant.
	warningDedupeWindow = 24 * time.Hour
)

// Denial reason codes returned by EvaluateAssignAccess.
const (
	ReasonNoPermission  = "NoPermission"
	ReasonInvalidTarget = "InvalidTarget"
)

// AccessDecision is the outcome of an assignment access evaluation.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// EvaluateAccessInput identifies the actor and target of a task assignment.
type EvaluateAccessInput struct {
	ActorID         string
	ActorRole       models.Role
	TargetUserID    string
	TargetUserRole  models.Role
	TargetProjectID string
}

// GrantInput describes a grant creation or extension.
type GrantInput struct {
	UserID        string
	ProjectID     string
	GrantedBy     string
	GrantedByRole models.Role
	DurationDays  int
	CustomExpiry  *time.Time
	Reason        string
}

// AccessOption customises the AccessService.
type AccessOption func(*AccessService)

// WithAccessClock overrides the clock, primarily for testing.
func WithAccessClock(now func() time.Time) AccessOption {
	return func(s *AccessService) {
		if now != nil {
			s.now = now
		}
	}
}

// AccessService owns temporary permission grants: it evaluates assignment
// access, creates and revokes grants, and runs the expiry and warning
// sweeps.
type AccessService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
	log           *zap.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(db *gorm.DB, notifications *NotificationService, opts ...AccessOption) (*AccessService, error) {
	if db == nil {
		return nil, errors.New("access service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("access service: notification service is required")
	}

	service := &AccessService{
		db:            db,
		notifications: notifications,
		now:           time.Now,
		log:           logger.WithModule("access"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// EvaluateAssignAccess answers whether the actor may assign tasks to the
// target user within the target project. TEAM_LEAD and above always pass;
// developers pass only with an active, unexpired grant on the project.
// No side effects beyond metrics.
func (s *AccessService) EvaluateAssignAccess(ctx context.Context, input EvaluateAccessInput) (AccessDecision, error) {
	ctx = ensureContext(ctx)

	if input.TargetUserRole != models.RoleDeveloper {
		metrics.AccessChecks.WithLabelValues("deny").Inc()
		return AccessDecision{
			Allowed: false,
			Reason:  ReasonInvalidTarget,
			Message: "Tasks can only be assigned to developers",
		}, nil
	}

	if input.ActorRole.Level() >= models.RoleTeamLead.Level() {
		metrics.AccessChecks.WithLabelValues("allow").Inc()
		return AccessDecision{Allowed: true}, nil
	}

	grant, err := s.activeGrant(ctx, s.db, input.ActorID, input.TargetProjectID)
	if err != nil {
		return AccessDecision{}, err
	}
	if grant == nil {
		metrics.AccessChecks.WithLabelValues("deny").Inc()
		return AccessDecision{
			Allowed: false,
			Reason:  ReasonNoPermission,
			Message: "No active permission grant for this project",
		}, nil
	}

	metrics.AccessChecks.WithLabelValues("allow").Inc()
	return AccessDecision{Allowed: true}, nil
}

// Grant creates a temporary permission, or extends the existing active one
// for the same user/project pair. Re-granting is a merge, never a duplicate
// insert. The grantee is always notified with the computed expiry.
func (s *AccessService) Grant(ctx context.Context, input GrantInput) (*models.TemporaryPermission, error) {
	ctx = ensureContext(ctx)

	if !input.GrantedByRole.CanManageGrants() {
		return nil, ErrInsufficientRole
	}

	now := s.now()
	expiresAt, err := resolveExpiry(now, input.DurationDays, input.CustomExpiry)
	if err != nil {
		return nil, err
	}

	var grant *models.TemporaryPermission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		grant, _, txErr = upsertActiveGrant(tx, now, input.UserID, input.ProjectID, input.GrantedBy, input.Reason, expiresAt)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("access service: grant: %w", err)
	}

	s.notify(ctx, NotifyInput{
		RecipientID: input.UserID,
		SenderID:    input.GrantedBy,
		Type:        NotifyPermissionGranted,
		Message:     fmt.Sprintf("You can assign tasks in this project until %s", expiresAt.Local().Format("Jan 2, 2006 15:04")),
		RelatedID:   grant.ID,
		ProjectID:   input.ProjectID,
	})

	return grant, nil
}

// Revoke deactivates a grant. Revoking an already inactive grant is a no-op
// success; the end state is the same either way.
func (s *AccessService) Revoke(ctx context.Context, grantID, revokerID string, revokerRole models.Role) error {
	ctx = ensureContext(ctx)

	if !revokerRole.CanManageGrants() {
		return ErrInsufficientRole
	}

	var grant models.TemporaryPermission
	if err := s.db.WithContext(ctx).First(&grant, "id = ?", grantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("access service: load grant: %w", err)
	}

	if !grant.IsActive {
		return nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.TemporaryPermission{}).
		Where("id = ?", grant.ID).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("access service: revoke grant: %w", err)
	}

	s.notify(ctx, NotifyInput{
		RecipientID: grant.UserID,
		SenderID:    revokerID,
		Type:        NotifyPermissionRevoked,
		Message:     "Your task assignment permission for this project has been revoked",
		RelatedID:   grant.ID,
		ProjectID:   grant.ProjectID,
	})

	return nil
}

// ListActiveGrants returns the user's active, unexpired grants.
func (s *AccessService) ListActiveGrants(ctx context.Context, userID string) ([]models.TemporaryPermission, error) {
	ctx = ensureContext(ctx)

	var grants []models.TemporaryPermission
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, s.now()).
		Order("expires_at ASC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("access service: list grants: %w", err)
	}
	return grants, nil
}

// ExpireGrants deactivates every active grant whose expiry has passed,
// notifying each grantee. The notification is written before the flag flips
// so it always describes an action about to happen; the flip follows
// per row rather than in one final bulk pass, narrowing the duplicate
// notification window if the sweep overlaps itself. Row failures are logged
// and the sweep continues.
func (s *AccessService) ExpireGrants(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	var due []models.TemporaryPermission
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Find(&due).Error; err != nil {
		metrics.SweepRuns.WithLabelValues("expire_grants", "error").Inc()
		return 0, fmt.Errorf("access service: select expired grants: %w", err)
	}

	expired := 0
	for _, grant := range due {
		s.notify(ctx, NotifyInput{
			RecipientID: grant.UserID,
			Type:        NotifyPermissionExpired,
			Message:     "Your temporary task assignment permission has expired",
			RelatedID:   grant.ID,
			ProjectID:   grant.ProjectID,
		})

		if err := s.db.WithContext(ctx).
			Model(&models.TemporaryPermission{}).
			Where("id = ? AND is_active = ?", grant.ID, true).
			Update("is_active", false).Error; err != nil {
			s.log.Warn("grant expiry update failed",
				zap.String("grant_id", grant.ID),
				zap.Error(err))
			continue
		}
		expired++
	}

	metrics.SweepRuns.WithLabelValues("expire_grants", "success").Inc()
	metrics.SweepRowsProcessed.WithLabelValues("expire_grants").Add(float64(expired))
	return expired, nil
}

// WarnExpiringGrants notifies grantees whose grants expire within the next
// three days, at most once per 24 hours per grant.
func (s *AccessService) WarnExpiringGrants(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	var expiring []models.TemporaryPermission
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND expires_at > ? AND expires_at <= ?", true, now, now.Add(expiryWarningWindow)).
		Find(&expiring).Error; err != nil {
		metrics.SweepRuns.WithLabelValues("warn_expiring", "error").Inc()
		return 0, fmt.Errorf("access service: select expiring grants: %w", err)
	}

	notified := 0
	for _, grant := range expiring {
		recent, err := s.notifications.HasRecent(ctx, grant.UserID, NotifyPermissionExpiring, grant.ID, now.Add(-warningDedupeWindow))
		if err != nil {
			s.log.Warn("expiry warning dedupe lookup failed",
				zap.String("grant_id", grant.ID),
				zap.Error(err))
			continue
		}
		if recent {
			continue
		}

		days := calendarDaysUntil(now, grant.ExpiresAt)
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		if _, err := s.notifications.Notify(ctx, NotifyInput{
			RecipientID: grant.UserID,
			Type:        NotifyPermissionExpiring,
			Message:     fmt.Sprintf("Your task assignment permission expires in %d %s", days, unit),
			RelatedID:   grant.ID,
			ProjectID:   grant.ProjectID,
		}); err != nil {
			s.log.Warn("expiry warning notification failed",
				zap.String("grant_id", grant.ID),
				zap.Error(err))
			continue
		}
		notified++
	}

	metrics.SweepRuns.WithLabelValues("warn_expiring", "success").Inc()
	return notified, nil
}

// activeGrant returns the active, unexpired grant for the pair, or nil.
func (s *AccessService) activeGrant(ctx context.Context, db *gorm.DB, userID, projectID string) (*models.TemporaryPermission, error) {
	var grant models.TemporaryPermission
	err := db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND is_active = ? AND expires_at > ?",
			userID, projectID, true, s.now()).
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("access service: grant lookup: %w", err)
	}
	return &grant, nil
}

// notify dispatches fire-and-forget; failures are logged, never propagated.
func (s *AccessService) notify(ctx context.Context, input NotifyInput) {
	if _, err := s.notifications.Notify(ctx, input); err != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("type", input.Type),
			zap.String("recipient", input.RecipientID),
			zap.Error(err))
	}
}

// resolveExpiry computes the grant expiry from either an explicit date or a
// duration in days, validating both against the clock and the 90-day cap.
func resolveExpiry(now time.Time, durationDays int, custom *time.Time) (time.Time, error) {
	if custom != nil {
		if !custom.After(now) {
			return time.Time{}, ErrInvalidExpiry
		}
		return *custom, nil
	}

	days := durationDays
	if days == 0 {
		days = DefaultGrantDays
	}
	if days < 1 || days > MaxGrantDays {
		return time.Time{}, apperrors.NewBadRequest(fmt.Sprintf("Grant duration must be between 1 and %d days", MaxGrantDays))
	}
	return now.AddDate(0, 0, days), nil
}

// upsertActiveGrant extends the existing active grant for the pair or
// inserts a new row. Callers supply the transaction handle so request
// approval can run it atomically with the review update.
func upsertActiveGrant(tx *gorm.DB, now time.Time, userID, projectID, grantedBy, reason string, expiresAt time.Time) (*models.TemporaryPermission, bool, error) {
	existing, err := findActiveGrant(tx, now, userID, projectID)

	switch {
	case err == nil:
		existing.ExpiresAt = expiresAt
		existing.GrantedBy = grantedBy
		existing.Reason = reason
		if saveErr := tx.Model(&models.TemporaryPermission{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"expires_at": expiresAt,
				"granted_by": grantedBy,
				"reason":     reason,
			}).Error; saveErr != nil {
			return nil, false, saveErr
		}
		return existing, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		grant, createErr := insertGrant(tx, userID, projectID, grantedBy, reason, expiresAt)
		if createErr != nil {
			return nil, false, createErr
		}
		return grant, true, nil

	default:
		return nil, false, err
	}
}

// createGrantIfAbsent inserts a grant only when no active one covers the
// pair. A grant issued between request and review stays exactly as it was
// issued; approval never shortens or re-attributes it.
func createGrantIfAbsent(tx *gorm.DB, now time.Time, userID, projectID, grantedBy, reason string, expiresAt time.Time) (*models.TemporaryPermission, bool, error) {
	existing, err := findActiveGrant(tx, now, userID, projectID)

	switch {
	case err == nil:
		return existing, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		grant, createErr := insertGrant(tx, userID, projectID, grantedBy, reason, expiresAt)
		if createErr != nil {
			return nil, false, createErr
		}
		return grant, true, nil

	default:
		return nil, false, err
	}
}

func findActiveGrant(tx *gorm.DB, now time.Time, userID, projectID string) (*models.TemporaryPermission, error) {
	var existing models.TemporaryPermission
	err := tx.
		Where("user_id = ? AND project_id = ? AND is_active = ? AND expires_at > ?",
			userID, projectID, true, now).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func insertGrant(tx *gorm.DB, userID, projectID, grantedBy, reason string, expiresAt time.Time) (*models.TemporaryPermission, error) {
	grant := models.TemporaryPermission{
		UserID:    userID,
		ProjectID: projectID,
		GrantedBy: grantedBy,
		Reason:    reason,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	if err := tx.Create(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}
