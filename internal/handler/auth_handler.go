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

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, req models.LogoutRequest) error
	Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
}

type registrationService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserSummary, error)
}

// AuthHandler wires HTTP endpoints to the auth and registration services.
// Login, logout and register are mounted once per role.
type AuthHandler struct {
	auth  authService
	users registrationService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth authService, users registrationService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

// Login godoc
// @Summary Authenticate under a role
// @Description Authenticate by email and password for one role. Any earlier session of the account is superseded.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param role path string true "Role" Enums(customer, owner, admin)
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/{role}/login [post]
func (h *AuthHandler) Login(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
			return
		}
		req.Role = role
		req.IP = c.ClientIP()
		req.UserAgent = c.GetHeader("User-Agent")

		res, err := h.auth.Login(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.JSON(c, http.StatusOK, res)
	}
}

// Logout godoc
// @Summary Logout current session
// @Description Invalidate the caller's refresh token. The bearer must hold the role in the path.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Param role path string true "Role" Enums(customer, owner, admin)
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/{role}/logout [post]
func (h *AuthHandler) Logout(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.CurrentPrincipal(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		err := h.auth.Logout(c.Request.Context(), models.LogoutRequest{
			Principal: principal,
			Role:      role,
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			response.Error(c, err)
			return
		}

		response.NoContent(c)
	}
}

// Register godoc
// @Summary Register an account
// @Description Create an account under one role. An email may hold one account per role. Owners may pass store_name to bootstrap their store.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param role path string true "Role" Enums(customer, owner, admin)
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope{data=models.UserSummary}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /auth/{role}/register [post]
func (h *AuthHandler) Register(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
			return
		}
		req.Role = role
		req.IP = c.ClientIP()
		req.UserAgent = c.GetHeader("User-Agent")

		summary, err := h.users.Register(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Created(c, summary)
	}
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange a refresh token for a new access token. The refresh token is not rotated.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh payload"
// @Success 200 {object} response.Envelope{data=models.RefreshTokenResponse}
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.auth.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}
