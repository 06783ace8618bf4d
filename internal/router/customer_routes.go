package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-reservation/internal/handler"
    "github.com/iliyamo/seat-reservation/internal/middleware"
)

// RegisterCustomer registers requester endpoints under /v1.  Every route
// requires a valid JWT; the subject claim is the requester id.  Reading,
// cancelling and refunding are also open to owners, while booking and
// the waitlist are customer-only.  limiter, when non-nil, guards the
// booking and waitlist endpoints.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
    shared := e.Group("/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(middleware.RoleCustomer, middleware.RoleOwner),
    )
    shared.GET("/reservations/:id", h.Get)
    shared.DELETE("/reservations/:id", h.Cancel)
    shared.POST("/reservations/:id/refund", h.Refund)

    mw := []echo.MiddlewareFunc{
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(middleware.RoleCustomer),
    }
    if limiter != nil {
        mw = append(mw, limiter)
    }
    g := e.Group("/v1", mw...)
    g.GET("/my-reservations", h.ListMine)
    g.POST("/events/:id/bookings", h.Book)
    g.POST("/events/:id/waitlist", h.JoinWaitlist)
    g.DELETE("/events/:id/waitlist", h.LeaveWaitlist)
}
