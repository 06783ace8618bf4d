package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-reservation/internal/handler"
    "github.com/iliyamo/seat-reservation/internal/middleware"
)

// RegisterOwner registers event management endpoints.  All routes require
// a valid JWT and the OWNER role.
func RegisterOwner(e *echo.Echo, h *handler.EventHandler, jwtSecret string) {
    g := e.Group("/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(middleware.RoleOwner),
    )
    g.POST("/events", h.Provision)
    g.DELETE("/events/:id", h.Remove)
}
