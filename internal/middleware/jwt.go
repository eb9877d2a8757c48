package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

// ContextUserKey is the gin context key storing the verified principal.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(raw string) (*models.Principal, error)
}

type rejectionRecorder interface {
	ObserveTokenRejection(err error)
}

// JWT protects routes by requiring a valid access token. recorder may be nil.
func JWT(validator tokenValidator, recorder rejectionRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal, err := validator.ValidateToken(raw)
		if err != nil {
			if recorder != nil {
				recorder.ObserveTokenRejection(err)
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by JWT.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(*models.Principal)
	if !ok || principal == nil {
		return models.Principal{}, false
	}
	return *principal, true
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
