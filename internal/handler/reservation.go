package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-reservation/internal/middleware"
    "github.com/iliyamo/seat-reservation/internal/model"
    "github.com/iliyamo/seat-reservation/internal/reservation"
)

// ReservationHandler books, cancels and refunds on behalf of the
// authenticated requester.  All methods assume JWTAuth and RequireRole
// already ran; the JWT subject is the requester id.  Customers only see
// their own reservations, owners see all of them.
type ReservationHandler struct {
    Coord *reservation.Coordinator
    Log   *zap.Logger
}

// NewReservationHandler constructs a ReservationHandler and panics if coord is nil.
func NewReservationHandler(coord *reservation.Coordinator, log *zap.Logger) *ReservationHandler {
    if coord == nil {
        panic("nil coordinator passed to NewReservationHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ReservationHandler{Coord: coord, Log: log.Named("reservations")}
}

type bookRequest struct {
    Seats         []string `json:"seats"`
    PaymentMethod string   `json:"payment_method"`
}

// Book handles POST /v1/events/:id/bookings.  Either every requested
// seat is booked (201) or none is.  Seat labels look like "A-12".
func (h *ReservationHandler) Book(c echo.Context) error {
    userID := middleware.UserID(c)
    if userID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body bookRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    seats, err := parseSeats(body.Seats)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    if len(seats) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
    }
    res, err := h.Coord.Book(c.Request().Context(), reservation.BookingRequest{
        RequesterID:   userID,
        EventID:       c.Param("id"),
        Seats:         seats,
        PaymentMethod: strings.TrimSpace(body.PaymentMethod),
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    res, err := h.owned(c)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// ListMine handles GET /v1/my-reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
    userID := middleware.UserID(c)
    if userID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items := h.Coord.ListByRequester(userID)
    if items == nil {
        items = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Cancel handles DELETE /v1/reservations/:id.  The seats become free and
// waitlisted requesters for the event are promoted before the response.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    if _, err := h.owned(c); err != nil {
        return writeError(c, err)
    }
    res, err := h.Coord.Cancel(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Refund handles POST /v1/reservations/:id/refund with an optional
// {"reason": "..."} body.  Only cancelled reservations can be refunded.
func (h *ReservationHandler) Refund(c echo.Context) error {
    if _, err := h.owned(c); err != nil {
        return writeError(c, err)
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&body); err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
        }
    }
    res, err := h.Coord.Refund(c.Request().Context(), c.Param("id"), strings.TrimSpace(body.Reason))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

type waitlistRequest struct {
    Count         int      `json:"count"`
    Seats         []string `json:"seats"`
    PaymentMethod string   `json:"payment_method"`
}

// JoinWaitlist handles POST /v1/events/:id/waitlist.  The body asks for
// either a number of seats or specific seats.  A requester already queued
// keeps its place and gets 200 instead of 201.
func (h *ReservationHandler) JoinWaitlist(c echo.Context) error {
    userID := middleware.UserID(c)
    if userID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body waitlistRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    preferred, err := parseSeats(body.Seats)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    pos, added, err := h.Coord.JoinWaitlist(model.WaitlistEntry{
        RequesterID:   userID,
        EventID:       c.Param("id"),
        DesiredCount:  body.Count,
        Preferred:     preferred,
        PaymentMethod: strings.TrimSpace(body.PaymentMethod),
    })
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusOK
    if added {
        status = http.StatusCreated
    }
    return c.JSON(status, echo.Map{"event_id": c.Param("id"), "position": pos})
}

// LeaveWaitlist handles DELETE /v1/events/:id/waitlist.
func (h *ReservationHandler) LeaveWaitlist(c echo.Context) error {
    userID := middleware.UserID(c)
    if userID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if !h.Coord.LeaveWaitlist(c.Param("id"), userID) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not on waitlist"})
    }
    return c.NoContent(http.StatusNoContent)
}

// owned loads the reservation named by the :id path parameter and hides
// it from customers who do not own it.
func (h *ReservationHandler) owned(c echo.Context) (*model.Reservation, error) {
    id := c.Param("id")
    res, err := h.Coord.Get(id)
    if err != nil {
        return nil, err
    }
    if middleware.Role(c) != middleware.RoleOwner && res.RequesterID != middleware.UserID(c) {
        return nil, &reservation.BookingError{Kind: reservation.ErrNotFound, ReservationID: id}
    }
    return res, nil
}

func parseSeats(labels []string) ([]model.SeatKey, error) {
    out := make([]model.SeatKey, 0, len(labels))
    for _, l := range labels {
        k, err := model.ParseSeatKey(l)
        if err != nil {
            return nil, err
        }
        out = append(out, k)
    }
    return out, nil
}
