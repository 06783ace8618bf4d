package reservation

import (
	"errors"
	"fmt"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// Error kinds crossing the coordinator boundary. Callers classify with
// errors.Is; the concrete value is always a *BookingError.
var (
	// ErrUnknownSeat: the request names a seat absent from the event layout. Not retried.
	ErrUnknownSeat = errors.New("unknown seat")
	// ErrSeatUnavailable: a seat could not be held within the timeout.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrConflict: a hold was lost between acquisition and commit.
	ErrConflict = errors.New("conflict")
	// ErrPaymentDeclined: the gateway declined or failed; all seats were released.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrNotFound: the reservation id is unknown.
	ErrNotFound = errors.New("reservation not found")
	// ErrInvalidState: the reservation is not in the state the operation requires.
	ErrInvalidState = errors.New("invalid reservation state")
	// ErrInvalidRequest: the request itself is malformed (no seats, no requester).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEventNotFound: the event has not been provisioned.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventExists is returned by Registry when provisioning an event twice.
	ErrEventExists = errors.New("event already provisioned")
)

// BookingError carries the classified kind plus the context needed to
// act on it: the first failing seat for contention errors, the
// reservation for state errors.
type BookingError struct {
	Kind          error
	EventID       string
	Seat          *model.SeatKey
	ReservationID string
	Err           error
}

func (e *BookingError) Error() string {
	msg := e.Kind.Error()
	if e.Seat != nil {
		msg += ": seat " + e.Seat.String()
	}
	if e.EventID != "" {
		msg += " (event " + e.EventID + ")"
	}
	if e.ReservationID != "" {
		msg += " (reservation " + e.ReservationID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *BookingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func seatError(kind error, eventID string, key model.SeatKey) *BookingError {
	k := key
	return &BookingError{Kind: kind, EventID: eventID, Seat: &k}
}

func reservationError(kind error, id string, format string, args ...any) *BookingError {
	return &BookingError{Kind: kind, ReservationID: id, Err: fmt.Errorf(format, args...)}
}

// IsRetryable reports contention failures the caller may retry or
// convert into a waitlist entry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) || errors.Is(err, ErrConflict)
}

// IsCallerError reports failures caused by the request itself.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrUnknownSeat) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEventNotFound)
}

// outcome maps an error to the metrics label used for booking attempts.
func outcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrUnknownSeat):
		return "unknown_seat"
	case errors.Is(err, ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPaymentDeclined):
		return "payment_declined"
	default:
		return "invalid"
	}
}
