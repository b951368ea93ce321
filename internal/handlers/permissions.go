package handlers

import (
	errs "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aditya93941/project-management/internal/models"
	"github.com/aditya93941/project-management/internal/services"
	"github.com/aditya93941/project-management/pkg/errors"
	"github.com/aditya93941/project-management/pkg/response"
)

// PermissionHandler exposes HTTP endpoints for access evaluation, grants,
// and the permission request workflow.
type PermissionHandler struct {
	access   *services.AccessService
	requests *services.RequestService
}

// NewPermissionHandler constructs a permission handler.
func NewPermissionHandler(access *services.AccessService, requests *services.RequestService) (*PermissionHandler, error) {
	if access == nil {
		return nil, errs.New("permission handler: access service is required")
	}
	if requests == nil {
		return nil, errs.New("permission handler: request service is required")
	}
	return &PermissionHandler{access: access, requests: requests}, nil
}

type evaluateAccessRequest struct {
	TargetUserID    string `json:"target_user_id" validate:"required"`
	TargetUserRole  string `json:"target_user_role" validate:"required,role"`
	TargetProjectID string `json:"target_project_id" validate:"required"`
}

// Evaluate answers whether the caller may assign tasks to the target.
func (h *PermissionHandler) Evaluate(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req evaluateAccessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	decision, err := h.access.EvaluateAssignAccess(requestContext(c), services.EvaluateAccessInput{
		ActorID:         userID,
		ActorRole:       role,
		TargetUserID:    req.TargetUserID,
		TargetUserRole:  models.Role(req.TargetUserRole),
		TargetProjectID: req.TargetProjectID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, decision)
}

type grantRequest struct {
	UserID       string     `json:"user_id" validate:"required"`
	ProjectID    string     `json:"project_id" validate:"required"`
	DurationDays int        `json:"duration_days" validate:"omitempty,min=1,max=90"`
	CustomExpiry *time.Time `json:"custom_expiry"`
	Reason       string     `json:"reason"`
}

// Grant creates or extends a temporary permission.
func (h *PermissionHandler) Grant(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req grantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.access.Grant(requestContext(c), services.GrantInput{
		UserID:        req.UserID,
		ProjectID:     req.ProjectID,
		GrantedBy:     userID,
		GrantedByRole: role,
		DurationDays:  req.DurationDays,
		CustomExpiry:  req.CustomExpiry,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, grant)
}

// Revoke deactivates a grant.
func (h *PermissionHandler) Revoke(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	grantID := strings.TrimSpace(c.Param("id"))
	if err := h.access.Revoke(requestContext(c), grantID, userID, role); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// ListGrants returns the target user's active grants. Callers below
// GROUP_HEAD can only list their own.
func (h *PermissionHandler) ListGrants(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	target := strings.TrimSpace(c.Query("user_id"))
	if target == "" {
		target = userID
	}
	if target != userID && !role.CanManageGrants() {
		response.Error(c, errors.ErrForbidden)
		return
	}

	grants, err := h.access.ListActiveGrants(requestContext(c), target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, grants)
}

type createRequestRequest struct {
	ProjectID    string `json:"project_id" validate:"required"`
	DurationDays int    `json:"duration_days" validate:"required,min=1,max=90"`
	Reason       string `json:"reason" validate:"required"`
}

// CreateRequest opens a permission request for the caller.
func (h *PermissionHandler) CreateRequest(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.requests.Create(requestContext(c), services.CreateRequestInput{
		RequesterID:   userID,
		RequesterRole: role,
		ProjectID:     req.ProjectID,
		DurationDays:  req.DurationDays,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, request)
}

type reviewRequestRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Notes    string `json:"notes"`
}

// ReviewRequest settles a pending permission request.
func (h *PermissionHandler) ReviewRequest(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req reviewRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.requests.Review(requestContext(c), services.ReviewRequestInput{
		RequestID:    strings.TrimSpace(c.Param("id")),
		ReviewerID:   userID,
		ReviewerRole: role,
		Approve:      req.Decision == models.RequestStatusApproved,
		Notes:        req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}

// ListPendingRequests returns open requests for reviewers.
func (h *PermissionHandler) ListPendingRequests(c *gin.Context) {
	userID, role := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	requests, err := h.requests.ListPending(requestContext(c), role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, requests)
}
