package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/middleware"
	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

type profileService interface {
	Profile(ctx context.Context, principal models.Principal) (*models.UserSummary, error)
}

// UserHandler serves account endpoints for authenticated callers.
type UserHandler struct {
	service profileService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc profileService) *UserHandler {
	return &UserHandler{service: svc}
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated account
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.UserSummary}
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Profile(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary)
}
