package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
// CONFIRMED -> CANCELLED -> REFUNDED; REFUNDED is terminal.
type ReservationStatus string

const (
    ReservationConfirmed ReservationStatus = "CONFIRMED"
    ReservationCancelled ReservationStatus = "CANCELLED"
    ReservationRefunded  ReservationStatus = "REFUNDED"
)

// Reservation records a requester's booking for one event.  It
// aggregates one or more seats committed under a single booking
// attempt.  Seats are held by value so a Reservation outlives any
// in-memory seat representation.
//
// Fields:
//  ID               – reservation identifier minted at commit.
//  RequesterID      – requester on whose behalf the seats were booked.
//  EventID          – event the seats belong to.
//  Seats            – exact seat set committed, sorted.
//  Status           – CONFIRMED, CANCELLED or REFUNDED.
//  TotalAmountCents – sum of the seat prices charged.
//  PaymentRef       – attempt id used as the idempotency key for the charge.
//  RefundReason     – reason given when refunded, if any.
type Reservation struct {
    ID               string            `json:"id"`
    RequesterID      string            `json:"requester_id"`
    EventID          string            `json:"event_id"`
    Seats            []SeatKey         `json:"seats"`
    Status           ReservationStatus `json:"status"`
    TotalAmountCents uint32            `json:"total_amount_cents"`
    PaymentRef       string            `json:"payment_ref,omitempty"`
    RefundReason     string            `json:"refund_reason,omitempty"`
    CreatedAt        time.Time         `json:"created_at"`
    UpdatedAt        time.Time         `json:"updated_at"`
    CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
    RefundedAt       *time.Time        `json:"refunded_at,omitempty"`
}

// Clone returns a deep copy so callers never share the seat slice or
// timestamps with the reservation store.
func (r Reservation) Clone() Reservation {
    out := r
    out.Seats = append([]SeatKey(nil), r.Seats...)
    if r.CancelledAt != nil {
        t := *r.CancelledAt
        out.CancelledAt = &t
    }
    if r.RefundedAt != nil {
        t := *r.RefundedAt
        out.RefundedAt = &t
    }
    return out
}
