package handlers

import (
	errs "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aditya93941/project-management/internal/services"
	"github.com/aditya93941/project-management/pkg/errors"
	"github.com/aditya93941/project-management/pkg/response"
)

// PresenceHandler exposes task-viewer heartbeats and lookups.
type PresenceHandler struct {
	presence *services.PresenceService
}

// NewPresenceHandler constructs a presence handler.
func NewPresenceHandler(presence *services.PresenceService) (*PresenceHandler, error) {
	if presence == nil {
		return nil, errs.New("presence handler: presence service is required")
	}
	return &PresenceHandler{presence: presence}, nil
}

// Heartbeat records that the caller is viewing the task.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	taskID := strings.TrimSpace(c.Param("id"))
	if err := h.presence.Heartbeat(requestContext(c), taskID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"viewing": true})
}

// Viewers lists users currently viewing the task.
func (h *PresenceHandler) Viewers(c *gin.Context) {
	userID, _ := currentUser(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	viewers, err := h.presence.Viewers(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"viewers": viewers})
}
