package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/middleware"
	"github.com/noah-isme/session-auth-api/internal/models"
)

// RegisterAuthRoutes mounts the session endpoints under group. protect must
// verify the bearer token; limit throttles unauthenticated calls.
func RegisterAuthRoutes(group *gin.RouterGroup, h *AuthHandler, protect, limit gin.HandlerFunc) {
	auth := group.Group("/auth")
	auth.POST("/refresh", limit, h.Refresh)
	for _, role := range models.Roles {
		scoped := auth.Group("/" + role.Label())
		scoped.POST("/login", limit, h.Login(role))
		scoped.POST("/register", limit, h.Register(role))
		scoped.POST("/logout", protect, middleware.RequireRoles(role), h.Logout(role))
	}
}

// RegisterUserRoutes mounts account endpoints under group.
func RegisterUserRoutes(group *gin.RouterGroup, h *UserHandler, protect gin.HandlerFunc) {
	users := group.Group("/users", protect)
	users.GET("/me", h.Me)
}
