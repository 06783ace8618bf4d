package model

import "time"

// WaitlistEntry is a requester queued for an event after failing to get
// seats immediately.  Either DesiredCount or Preferred describes what
// the requester wants; when Preferred is set DesiredCount equals its
// length.
type WaitlistEntry struct {
    RequesterID   string    `json:"requester_id"`
    EventID       string    `json:"event_id"`
    DesiredCount  int       `json:"desired_count"`
    Preferred     []SeatKey `json:"preferred,omitempty"`
    PaymentMethod string    `json:"payment_method"`
    Seq           uint64    `json:"seq"`
    EnqueuedAt    time.Time `json:"enqueued_at"`
}
