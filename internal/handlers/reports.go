package handlers

import (
	errs "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aditya93941/project-management/internal/services"
	"github.com/aditya93941/project-management/pkg/errors"
	"github.com/aditya93941/project-management/pkg/response"
)

// ReportHandler exposes HTTP endpoints for the daily report lifecycle.
type ReportHandler struct {
	reports *services.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(reports *services.ReportService) (*ReportHandler, error) {
	if reports == nil {
		return nil, errs.New("report handler: report service is required")
	}
	return &ReportHandler{reports: reports}, nil
}

type inProgressTaskRequest struct {
	TaskID   string `json:"task_id" validate:"required"`
	Progress int    `json:"progress" validate:"min=0,max=100"`
}

type draftRequest struct {
	CompletedTasks  []string                `json:"completed_tasks"`
	InProgressTasks []inProgressTaskRequest `json:"in_progress_tasks" validate:"omitempty,dive"`
	BlockedTasks    []string                `json:"blocked_tasks"`
	BlockersText    string                  `json:"blockers_text"`
	PlanForTomorrow string                  `json:"plan_for_tomorrow"`
	Notes           string                  `json:"notes"`
}

func (r draftRequest) toInput() services.ReportDraftInput {
	input := services.ReportDraftInput{
		CompletedTaskIDs: r.CompletedTasks,
		BlockedTaskIDs:   r.BlockedTasks,
		BlockersText:     r.BlockersText,
		PlanForTomorrow:  r.PlanForTomorrow,
		Notes:            r.Notes,
	}
	for _, task := range r.InProgressTasks {
		input.InProgressTasks = append(input.InProgressTasks, services.InProgressTaskInput{
			TaskID:   task.TaskID,
			Progress: task.Progress,
		})
	}
	return input
}

// SaveDraft creates or updates today's draft report.
func (h *ReportHandler) SaveDraft(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req draftRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.reports.SaveDraft(requestContext(c), userID, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

type submitRequest struct {
	draftRequest
	SubmitNow         *bool      `json:"submit_now"`
	ScheduledSubmitAt *time.Time `json:"scheduled_submit_at"`
}

// Submit files today's report, immediately or at a scheduled time.
func (h *ReportHandler) Submit(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req submitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	submitNow := true
	if req.SubmitNow != nil {
		submitNow = *req.SubmitNow
	}

	input := services.SubmitReportInput{
		SubmitNow:         submitNow,
		ScheduledSubmitAt: req.ScheduledSubmitAt,
	}
	if hasDraftContent(req.draftRequest) {
		draft := req.draftRequest.toInput()
		input.Draft = &draft
	}

	report, err := h.reports.Submit(requestContext(c), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// Today returns the caller's report for the current day, if any, plus
// recently changed tasks.
func (h *ReportHandler) Today(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	view, err := h.reports.TodayReport(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

func hasDraftContent(req draftRequest) bool {
	return len(req.CompletedTasks) > 0 ||
		len(req.InProgressTasks) > 0 ||
		len(req.BlockedTasks) > 0 ||
		req.BlockersText != "" ||
		req.PlanForTomorrow != "" ||
		req.Notes != ""
}
