package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// PaymentOutcome is the result of a charge.
type PaymentOutcome int

const (
	PaymentSuccess PaymentOutcome = iota
	PaymentDeclined
	PaymentError
)

func (o PaymentOutcome) String() string {
	switch o {
	case PaymentSuccess:
		return "success"
	case PaymentDeclined:
		return "declined"
	default:
		return "error"
	}
}

// ChargeRequest asks the gateway to charge a requester for one booking
// attempt. AttemptID is the idempotency key: charging the same attempt
// twice must not charge twice.
type ChargeRequest struct {
	AttemptID   string
	RequesterID string
	EventID     string
	AmountCents uint32
	Method      string
}

// PaymentGateway is the external payment service. The coordinator calls
// Charge at most once per attempt and treats PaymentError and a non-nil
// error exactly like PaymentDeclined.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (PaymentOutcome, error)
}

// EventKind names an observable output of the core.
type EventKind string

const (
	EventReservationConfirmed EventKind = "reservation.confirmed"
	EventReservationCancelled EventKind = "reservation.cancelled"
	EventReservationRefunded  EventKind = "reservation.refunded"
	EventWaitlistPromoted     EventKind = "waitlist.promoted"
	// EventRefundRequired is emitted when seats could not be committed
	// after the charge succeeded; the payment must be refunded externally.
	EventRefundRequired EventKind = "payment.refund_required"
)

// Notifier delivers events to the surrounding application. Emit is
// fire-and-forget: implementations must not block the caller for long
// and delivery failures never change a booking outcome.
type Notifier interface {
	Emit(ctx context.Context, kind EventKind, payload any)
}

// PromotionPayload is emitted with EventWaitlistPromoted.
type PromotionPayload struct {
	Entry       model.WaitlistEntry `json:"entry"`
	Reservation model.Reservation   `json:"reservation"`
}

// RefundRequiredPayload is emitted with EventRefundRequired.
type RefundRequiredPayload struct {
	AttemptID   string          `json:"attempt_id"`
	RequesterID string          `json:"requester_id"`
	EventID     string          `json:"event_id"`
	Seats       []model.SeatKey `json:"seats"`
	AmountCents uint32          `json:"amount_cents"`
	Method      string          `json:"method"`
	At          time.Time       `json:"at"`
}

type nopNotifier struct{}

func (nopNotifier) Emit(context.Context, EventKind, any) {}
