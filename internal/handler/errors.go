package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-reservation/internal/repository"
    "github.com/iliyamo/seat-reservation/internal/reservation"
)

// statusFor maps reservation and catalog errors to HTTP status codes.
func statusFor(err error) int {
    switch {
    case errors.Is(err, reservation.ErrUnknownSeat), errors.Is(err, reservation.ErrInvalidRequest):
        return http.StatusBadRequest
    case errors.Is(err, reservation.ErrNotFound), errors.Is(err, reservation.ErrEventNotFound),
        errors.Is(err, repository.ErrShowNotFound):
        return http.StatusNotFound
    case errors.Is(err, reservation.ErrSeatUnavailable), errors.Is(err, reservation.ErrConflict),
        errors.Is(err, reservation.ErrInvalidState), errors.Is(err, reservation.ErrEventExists),
        errors.Is(err, repository.ErrNoSeats):
        return http.StatusConflict
    case errors.Is(err, reservation.ErrPaymentDeclined):
        return http.StatusPaymentRequired
    default:
        return http.StatusInternalServerError
    }
}

// writeError renders err as {"error": ..., "seat": ..., "retryable": ...}.
// Internal errors are not echoed to the client.
func writeError(c echo.Context, err error) error {
    status := statusFor(err)
    if status == http.StatusInternalServerError {
        return c.JSON(status, echo.Map{"error": "internal error"})
    }
    body := echo.Map{"error": err.Error()}
    var be *reservation.BookingError
    if errors.As(err, &be) {
        body["error"] = be.Kind.Error()
        if be.Seat != nil {
            body["seat"] = be.Seat.String()
        }
    }
    if reservation.IsRetryable(err) {
        body["retryable"] = true
    }
    return c.JSON(status, body)
}
