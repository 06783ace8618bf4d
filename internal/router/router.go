package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/seat-reservation/internal/handler"
)

// RegisterRoutes registers the operational endpoints that never require
// authentication: the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated browse endpoints.  cache wraps
// the read endpoints; pass nil to serve every request fresh.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler, cache echo.MiddlewareFunc) {
    var mw []echo.MiddlewareFunc
    if cache != nil {
        mw = append(mw, cache)
    }
    e.GET("/v1/events", h.ListEvents, mw...)
    e.GET("/v1/events/:id/seats", h.Seats, mw...)
}
