package handlers

import (
	errs "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aditya93941/project-management/internal/services"
	"github.com/aditya93941/project-management/pkg/response"
)

// SweepHandler exposes the periodic sweeps as operations for external
// time-based triggers. The endpoints run one sweep pass and return the row
// count; every sweep is idempotent, so at-least-once invocation is safe.
type SweepHandler struct {
	access  *services.AccessService
	reports *services.ReportService
}

// NewSweepHandler constructs a sweep handler.
func NewSweepHandler(access *services.AccessService, reports *services.ReportService) (*SweepHandler, error) {
	if access == nil {
		return nil, errs.New("sweep handler: access service is required")
	}
	if reports == nil {
		return nil, errs.New("sweep handler: report service is required")
	}
	return &SweepHandler{access: access, reports: reports}, nil
}

// ExpireGrants deactivates grants past their expiry.
func (h *SweepHandler) ExpireGrants(c *gin.Context) {
	count, err := h.access.ExpireGrants(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expired_count": count})
}

// WarnExpiringGrants notifies grantees of upcoming expiries.
func (h *SweepHandler) WarnExpiringGrants(c *gin.Context) {
	count, err := h.access.WarnExpiringGrants(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notified_count": count})
}

// SweepScheduledSubmissions promotes due scheduled drafts.
func (h *SweepHandler) SweepScheduledSubmissions(c *gin.Context) {
	count, err := h.reports.SweepScheduled(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submitted_count": count})
}

// ForceEndOfDaySubmissions promotes every remaining draft for today.
func (h *SweepHandler) ForceEndOfDaySubmissions(c *gin.Context) {
	count, err := h.reports.ForceEndOfDay(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submitted_count": count})
}

// FinalizeYesterday seals yesterday's submitted reports.
func (h *SweepHandler) FinalizeYesterday(c *gin.Context) {
	count, err := h.reports.FinalizeYesterday(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"finalized_count": count})
}
