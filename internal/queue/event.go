// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "encoding/json"
    "time"
)

// EventsQueueName is the durable queue carrying every reservation event.
const EventsQueueName = "reservation.events"

// Envelope wraps one event published by the reservation core.  Kind is
// one of reservation.confirmed, reservation.cancelled,
// reservation.refunded, waitlist.promoted or payment.refund_required;
// Payload holds the kind-specific body as JSON.
type Envelope struct {
    Kind       string          `json:"kind"`
    OccurredAt string          `json:"occurred_at"`
    Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps the envelope with at in RFC3339 UTC.
func NewEnvelope(kind string, payload any, at time.Time) (Envelope, error) {
    body, err := json.Marshal(payload)
    if err != nil {
        return Envelope{}, err
    }
    return Envelope{Kind: kind, OccurredAt: at.UTC().Format(time.RFC3339), Payload: body}, nil
}

// ReservationPayload is the subset of a reservation consumers rely on.
// It matches the JSON encoding of model.Reservation.
type ReservationPayload struct {
    ID               string   `json:"id"`
    RequesterID      string   `json:"requester_id"`
    EventID          string   `json:"event_id"`
    Seats            []SeatID `json:"seats"`
    Status           string   `json:"status"`
    TotalAmountCents uint32   `json:"total_amount_cents"`
    RefundReason     string   `json:"refund_reason,omitempty"`
}

// SeatID is a seat label such as "A-12", the wire form of model.SeatKey.
type SeatID string

// PromotionPayload is published when a waitlisted requester got seats.
type PromotionPayload struct {
    Entry struct {
        RequesterID string `json:"requester_id"`
        Seq         uint64 `json:"seq"`
    } `json:"entry"`
    Reservation ReservationPayload `json:"reservation"`
}

// RefundRequiredPayload is published when a charged attempt was rolled back.
type RefundRequiredPayload struct {
    AttemptID   string   `json:"attempt_id"`
    RequesterID string   `json:"requester_id"`
    EventID     string   `json:"event_id"`
    Seats       []SeatID `json:"seats"`
    AmountCents uint32   `json:"amount_cents"`
    Method      string   `json:"method"`
}
