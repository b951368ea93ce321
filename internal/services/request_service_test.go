package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/models"
	apperrors "github.com/aditya93941/project-management/pkg/errors"
)

func newRequestService(t *testing.T, db *gorm.DB, clock *testClock) *RequestService {
	t.Helper()

	svc, err := NewRequestService(db, mustNotificationService(t, db), WithRequestClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestRequestServiceCreateRejectsDuplicates(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	createUser(t, db, "head", models.RoleGroupHead)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()
	request, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  10,
		Reason:        "covering for lead",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)

	// Both reviewers are notified about the new request.
	require.Equal(t, int64(1), countNotifications(t, db, manager.ID, NotifyPermissionRequested))

	_, err = svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
		Reason:        "again",
	})
	require.ErrorIs(t, err, ErrAlreadyPending)
}

func TestRequestServiceCreateRejectsExistingGrant(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")
	createGrant(t, db, dev.ID, project.ID, manager.ID, baseTime.AddDate(0, 0, 5), true)

	_, err := svc.Create(context.Background(), CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
		Reason:        "redundant",
	})
	require.ErrorIs(t, err, ErrAlreadyGranted)
}

func TestRequestServiceCreateValidation(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	lead := createUser(t, db, "lead", models.RoleTeamLead)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   lead.ID,
		RequesterRole: lead.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
	})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  0,
	})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  MaxGrantDays + 1,
	})
	require.Error(t, err)
}

func TestRequestServiceReviewApproveMaterialisesGrant(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()
	request, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  10,
		Reason:        "release week",
	})
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      true,
		Notes:        "ok",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, manager.ID, *reviewed.ReviewedBy)

	var grant models.TemporaryPermission
	require.NoError(t, db.Where("user_id = ? AND project_id = ? AND is_active = ?",
		dev.ID, project.ID, true).First(&grant).Error)
	require.WithinDuration(t, baseTime.AddDate(0, 0, 10), grant.ExpiresAt, time.Second)
	require.Equal(t, manager.ID, grant.GrantedBy)
	require.Contains(t, grant.Reason, "release week")

	require.Equal(t, int64(1), countNotifications(t, db, dev.ID, NotifyPermissionRequestApproved))

	// The settled request cannot be reviewed again.
	_, err = svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      false,
	})
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestRequestServiceReviewApproveKeepsExistingGrant(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	head := createUser(t, db, "head", models.RoleGroupHead)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()
	request, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
		Reason:        "sprint",
	})
	require.NoError(t, err)

	// A longer grant was issued directly while the request sat in the
	// queue. Approval settles the request without touching that grant.
	issued := createGrant(t, db, dev.ID, project.ID, head.ID, baseTime.AddDate(0, 0, 30), true)

	reviewed, err := svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      true,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, reviewed.Status)

	var grants []models.TemporaryPermission
	require.NoError(t, db.Where("user_id = ? AND project_id = ?",
		dev.ID, project.ID).Find(&grants).Error)
	require.Len(t, grants, 1)
	require.Equal(t, issued.ID, grants[0].ID)
	require.WithinDuration(t, baseTime.AddDate(0, 0, 30), grants[0].ExpiresAt, time.Second)
	require.Equal(t, head.ID, grants[0].GrantedBy)
}

func TestRequestServiceReviewReject(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	head := createUser(t, db, "head", models.RoleGroupHead)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()
	request, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
		Reason:        "sprint",
	})
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   head.ID,
		ReviewerRole: head.Role,
		Approve:      false,
		Notes:        "not needed",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, reviewed.Status)

	var grants int64
	require.NoError(t, db.Model(&models.TemporaryPermission{}).
		Where("user_id = ?", dev.ID).Count(&grants).Error)
	require.Zero(t, grants)

	var notification models.Notification
	require.NoError(t, db.Where("recipient_id = ? AND type = ?",
		dev.ID, NotifyPermissionRequestRejected).First(&notification).Error)
	require.Contains(t, notification.Message, "not needed")
}

func TestRequestServiceReviewRoleChecks(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	lead := createUser(t, db, "lead", models.RoleTeamLead)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	project := createProject(t, db, "alpha")

	ctx := context.Background()
	request, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     project.ID,
		DurationDays:  5,
	})
	require.NoError(t, err)

	_, err = svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   lead.ID,
		ReviewerRole: lead.Role,
		Approve:      true,
	})
	require.ErrorIs(t, err, ErrInsufficientRole)

	// The requester was promoted since opening the request; the stale
	// request can no longer be settled in either direction.
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", dev.ID).
		Update("role", models.RoleTeamLead).Error)

	_, err = svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      true,
	})
	require.ErrorIs(t, err, ErrRequesterRoleMismatch)

	_, err = svc.Review(ctx, ReviewRequestInput{
		RequestID:    request.ID,
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      false,
	})
	require.ErrorIs(t, err, ErrRequesterRoleMismatch)

	var stale models.PermissionRequest
	require.NoError(t, db.First(&stale, "id = ?", request.ID).Error)
	require.Equal(t, models.RequestStatusPending, stale.Status)

	_, err = svc.Review(ctx, ReviewRequestInput{
		RequestID:    "missing-id",
		ReviewerID:   manager.ID,
		ReviewerRole: manager.Role,
		Approve:      true,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRequestServiceListPending(t *testing.T) {
	db := openServiceTestDB(t)
	clock := newTestClock(baseTime)
	svc := newRequestService(t, db, clock)

	manager := createUser(t, db, "manager", models.RoleManager)
	dev := createUser(t, db, "dev", models.RoleDeveloper)
	other := createUser(t, db, "other", models.RoleDeveloper)
	alpha := createProject(t, db, "alpha")
	beta := createProject(t, db, "beta")

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateRequestInput{
		RequesterID:   dev.ID,
		RequesterRole: dev.Role,
		ProjectID:     alpha.ID,
		DurationDays:  5,
	})
	require.NoError(t, err)

	// Ordering is by creation time, oldest first.
	require.NoError(t, db.Model(&models.PermissionRequest{}).
		Where("id = ?", first.ID).
		Update("created_at", baseTime.Add(-time.Hour)).Error)

	_, err = svc.Create(ctx, CreateRequestInput{
		RequesterID:   other.ID,
		RequesterRole: other.Role,
		ProjectID:     beta.ID,
		DurationDays:  5,
	})
	require.NoError(t, err)

	_, err = svc.ListPending(ctx, models.RoleDeveloper)
	require.ErrorIs(t, err, ErrInsufficientRole)

	pending, err := svc.ListPending(ctx, manager.Role)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
}
