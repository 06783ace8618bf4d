// Package payment provides PaymentGateway implementations: a simulated
// processor for development and tests, and a Redis-backed wrapper that
// makes any gateway idempotent per booking attempt.
package payment

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// Simulated approves every charge except those whose method is listed
// as declined. Repeated charges for one attempt return the first
// outcome without charging again.
type Simulated struct {
	log      *zap.Logger
	declined map[string]bool

	mu       sync.Mutex
	outcomes map[string]reservation.PaymentOutcome
	charges  []reservation.ChargeRequest
}

// NewSimulated returns a simulated gateway. Methods are compared case-insensitively.
func NewSimulated(log *zap.Logger, declinedMethods ...string) *Simulated {
	if log == nil {
		log = zap.NewNop()
	}
	d := make(map[string]bool, len(declinedMethods))
	for _, m := range declinedMethods {
		d[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return &Simulated{
		log:      log.Named("payment"),
		declined: d,
		outcomes: make(map[string]reservation.PaymentOutcome),
	}
}

// Charge implements reservation.PaymentGateway.
func (s *Simulated) Charge(ctx context.Context, req reservation.ChargeRequest) (reservation.PaymentOutcome, error) {
	if err := ctx.Err(); err != nil {
		return reservation.PaymentError, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.outcomes[req.AttemptID]; ok {
		return o, nil
	}
	o := reservation.PaymentSuccess
	if s.declined[strings.ToLower(req.Method)] {
		o = reservation.PaymentDeclined
	}
	s.outcomes[req.AttemptID] = o
	s.charges = append(s.charges, req)
	s.log.Info("charge processed",
		zap.String("attempt_id", req.AttemptID),
		zap.String("requester_id", req.RequesterID),
		zap.Uint32("amount_cents", req.AmountCents),
		zap.String("method", req.Method),
		zap.Stringer("outcome", o),
	)
	return o, nil
}

// Charges returns every distinct charge processed so far.
func (s *Simulated) Charges() []reservation.ChargeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reservation.ChargeRequest(nil), s.charges...)
}
