package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/aditya93941/project-management/internal/middleware"
	"github.com/aditya93941/project-management/internal/models"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser extracts the authenticated identity from the gin context.
func currentUser(c *gin.Context) (string, models.Role) {
	return c.GetString(middleware.CtxUserIDKey), models.Role(c.GetString(middleware.CtxUserRoleKey))
}
