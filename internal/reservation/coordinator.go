package reservation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/metrics"
	"github.com/iliyamo/seat-reservation/internal/model"
)

const (
	// DefaultSeatTimeout is how long one seat acquisition may wait.
	DefaultSeatTimeout = 3 * time.Second
	// DefaultBookTimeout caps the total acquisition time of one booking.
	DefaultBookTimeout = 10 * time.Second
)

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	SeatTimeout time.Duration
	BookTimeout time.Duration
	// PromotionSeatTimeout is the per-seat wait used when booking on
	// behalf of a waitlisted requester. Zero means SeatTimeout.
	PromotionSeatTimeout time.Duration
	Now                  func() time.Time
	NewID                func() string
	Logger               *zap.Logger
}

// BookingRequest asks for an all-or-nothing booking of Seats.
type BookingRequest struct {
	RequesterID   string
	EventID       string
	Seats         []model.SeatKey
	PaymentMethod string
	// SeatTimeout overrides Options.SeatTimeout for this request.
	SeatTimeout time.Duration
	CreatedAt   time.Time
}

// Coordinator books, cancels and refunds reservations. It never takes a
// pool-wide lock: seats are acquired one by one in SeatKey order, which
// rules out lock cycles between requests that share seats.
type Coordinator struct {
	registry *Registry
	store    *Store
	waitlist *Waitlist
	payments PaymentGateway
	notifier Notifier
	opts     Options
	log      *zap.Logger
}

// NewCoordinator wires a coordinator and its waitlist. A nil notifier
// discards events.
func NewCoordinator(registry *Registry, payments PaymentGateway, notifier Notifier, opts Options) *Coordinator {
	if registry == nil || payments == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.SeatTimeout <= 0 {
		opts.SeatTimeout = DefaultSeatTimeout
	}
	if opts.BookTimeout <= 0 {
		opts.BookTimeout = DefaultBookTimeout
	}
	if opts.PromotionSeatTimeout <= 0 {
		opts.PromotionSeatTimeout = opts.SeatTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Coordinator{
		registry: registry,
		store:    NewStore(),
		payments: payments,
		notifier: notifier,
		opts:     opts,
		log:      opts.Logger.Named("coordinator"),
	}
	c.waitlist = NewWaitlist(c, registry, notifier, WaitlistOptions{
		SeatTimeout: opts.PromotionSeatTimeout,
		Now:         opts.Now,
		Logger:      opts.Logger,
	})
	return c
}

// Registry returns the event registry the coordinator books against.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Waitlist returns the coordinator's waitlist.
func (c *Coordinator) Waitlist() *Waitlist { return c.waitlist }

// Book holds every requested seat, charges the requester and commits
// the seats under a new reservation id. On any failure no seat changes
// state and the returned error is a *BookingError.
func (c *Coordinator) Book(ctx context.Context, req BookingRequest) (res *model.Reservation, err error) {
	start := time.Now()
	defer func() {
		o := outcome(err)
		metrics.BookingsTotal.WithLabelValues(o).Inc()
		metrics.BookingDuration.WithLabelValues(o).Observe(time.Since(start).Seconds())
	}()

	keys, err := normalizeSeats(req)
	if err != nil {
		return nil, err
	}
	pool, err := c.registry.Pool(req.EventID)
	if err != nil {
		return nil, err
	}
	// Keys are sorted, so seats come back in global acquisition order.
	seats, err := pool.Get(keys)
	if err != nil {
		return nil, err
	}

	var sum uint64
	for _, s := range seats {
		sum += uint64(s.PriceCents())
	}
	if sum > math.MaxUint32 {
		return nil, &BookingError{Kind: ErrInvalidRequest, EventID: req.EventID,
			Err: fmt.Errorf("total %d cents exceeds the chargeable maximum", sum)}
	}
	total := uint32(sum)

	attemptID := c.opts.NewID()
	holder := req.RequesterID + "/" + attemptID
	log := c.log.With(
		zap.String("event_id", req.EventID),
		zap.String("requester_id", req.RequesterID),
		zap.String("attempt_id", attemptID),
	)

	held, err := c.acquire(ctx, pool.EventID(), seats, holder, req.SeatTimeout)
	if err != nil {
		log.Info("booking seats unavailable", zap.Error(err))
		return nil, err
	}

	for _, s := range held {
		if !s.HeldBy(holder) {
			c.releaseOwn(held, holder)
			log.Warn("hold lost before payment", zap.String("seat", s.Key().String()))
			return nil, seatError(ErrConflict, req.EventID, s.Key())
		}
	}

	charge := ChargeRequest{
		AttemptID:   attemptID,
		RequesterID: req.RequesterID,
		EventID:     req.EventID,
		AmountCents: total,
		Method:      req.PaymentMethod,
	}
	paid, payErr := c.payments.Charge(ctx, charge)
	if payErr != nil || paid != PaymentSuccess {
		c.releaseOwn(held, holder)
		log.Info("payment not successful", zap.Stringer("outcome", paid), zap.Error(payErr))
		return nil, &BookingError{Kind: ErrPaymentDeclined, EventID: req.EventID, Err: payErr}
	}

	reservationID := c.opts.NewID()
	committed := make([]*Seat, 0, len(held))
	for i, s := range held {
		if s.Commit(holder, reservationID) {
			committed = append(committed, s)
			continue
		}
		// Payment already went through: revert what was committed, drop
		// the remaining holds and ask for an external refund.
		for _, done := range committed {
			if done.Unbook(reservationID) {
				metrics.CompensationsTotal.Inc()
			}
		}
		c.releaseOwn(held[i+1:], holder)
		metrics.RefundRequiredTotal.Inc()
		log.Error("commit failed after payment, rolled back",
			zap.String("seat", s.Key().String()),
			zap.Int("reverted", len(committed)),
		)
		c.notifier.Emit(context.WithoutCancel(ctx), EventRefundRequired, RefundRequiredPayload{
			AttemptID:   attemptID,
			RequesterID: req.RequesterID,
			EventID:     req.EventID,
			Seats:       keys,
			AmountCents: total,
			Method:      req.PaymentMethod,
			At:          c.opts.Now().UTC(),
		})
		return nil, seatError(ErrConflict, req.EventID, s.Key())
	}

	now := c.opts.Now().UTC()
	created := req.CreatedAt
	if created.IsZero() {
		created = now
	}
	out := model.Reservation{
		ID:               reservationID,
		RequesterID:      req.RequesterID,
		EventID:          req.EventID,
		Seats:            keys,
		Status:           model.ReservationConfirmed,
		TotalAmountCents: total,
		PaymentRef:       attemptID,
		CreatedAt:        created,
		UpdatedAt:        now,
	}
	c.store.Put(out)
	metrics.ReservationTransitionsTotal.WithLabelValues(string(model.ReservationConfirmed)).Inc()
	log.Info("reservation confirmed",
		zap.String("reservation_id", reservationID),
		zap.Int("seats", len(keys)),
		zap.Uint32("total_cents", total),
	)
	c.notifier.Emit(context.WithoutCancel(ctx), EventReservationConfirmed, out.Clone())
	return &out, nil
}

// acquire holds seats in the given order. The whole loop shares one
// BookTimeout budget; each seat may wait at most the per-seat timeout.
// On the first failure every hold taken so far is released, last first.
func (c *Coordinator) acquire(ctx context.Context, eventID string, seats []*Seat, holder string, seatTimeout time.Duration) ([]*Seat, error) {
	if seatTimeout <= 0 {
		seatTimeout = c.opts.SeatTimeout
	}
	actx, cancel := context.WithTimeout(ctx, c.opts.BookTimeout)
	defer cancel()

	held := make([]*Seat, 0, len(seats))
	for _, s := range seats {
		if !s.TryAcquire(actx, holder, seatTimeout) {
			c.releaseOwn(held, holder)
			return nil, seatError(ErrSeatUnavailable, eventID, s.Key())
		}
		held = append(held, s)
	}
	return held, nil
}

// releaseOwn releases, in reverse order, the seats still held by holder.
// Holds already reclaimed by lease expiry are skipped.
func (c *Coordinator) releaseOwn(seats []*Seat, holder string) {
	for i := len(seats) - 1; i >= 0; i-- {
		if seats[i].HeldBy(holder) {
			seats[i].Release(holder)
		}
	}
}

// Cancel moves a CONFIRMED reservation to CANCELLED, frees its seats and
// promotes waitlisted requesters for the event.
func (c *Coordinator) Cancel(ctx context.Context, reservationID string) (*model.Reservation, error) {
	now := c.opts.Now().UTC()
	res, err := c.store.Transition(reservationID, model.ReservationConfirmed, model.ReservationCancelled, now,
		func(r *model.Reservation) {
			t := now
			r.CancelledAt = &t
		})
	if err != nil {
		return nil, err
	}
	metrics.ReservationTransitionsTotal.WithLabelValues(string(model.ReservationCancelled)).Inc()
	log := c.log.With(zap.String("reservation_id", res.ID), zap.String("event_id", res.EventID))

	var freed []model.SeatKey
	pool, err := c.registry.Pool(res.EventID)
	if err != nil {
		log.Warn("cancelled reservation for removed event")
	} else {
		seats, gerr := pool.Get(res.Seats)
		if gerr != nil {
			log.Error("reservation seats missing from layout", zap.Error(gerr))
		}
		for _, s := range seats {
			if s.Unbook(res.ID) {
				freed = append(freed, s.Key())
			} else {
				log.Error("seat not booked by cancelled reservation", zap.String("seat", s.Key().String()))
			}
		}
	}
	log.Info("reservation cancelled", zap.Int("freed", len(freed)))
	c.notifier.Emit(context.WithoutCancel(ctx), EventReservationCancelled, res.Clone())

	// The cancellation is already committed; promotion must not stop
	// because the caller went away.
	if len(freed) > 0 {
		c.waitlist.Promote(context.WithoutCancel(ctx), res.EventID, freed)
	}
	return &res, nil
}

// Refund moves a CANCELLED reservation to REFUNDED. Seat state is not
// touched; the seats were freed at cancellation.
func (c *Coordinator) Refund(ctx context.Context, reservationID, reason string) (*model.Reservation, error) {
	now := c.opts.Now().UTC()
	res, err := c.store.Transition(reservationID, model.ReservationCancelled, model.ReservationRefunded, now,
		func(r *model.Reservation) {
			t := now
			r.RefundedAt = &t
			r.RefundReason = reason
		})
	if err != nil {
		return nil, err
	}
	metrics.ReservationTransitionsTotal.WithLabelValues(string(model.ReservationRefunded)).Inc()
	c.log.Info("reservation refunded", zap.String("reservation_id", res.ID))
	c.notifier.Emit(context.WithoutCancel(ctx), EventReservationRefunded, res.Clone())
	return &res, nil
}

// Get returns the reservation with the given id.
func (c *Coordinator) Get(reservationID string) (*model.Reservation, error) {
	res, ok := c.store.Get(reservationID)
	if !ok {
		return nil, &BookingError{Kind: ErrNotFound, ReservationID: reservationID}
	}
	return &res, nil
}

// ListByRequester returns the requester's reservations, newest first.
func (c *Coordinator) ListByRequester(requesterID string) []model.Reservation {
	return c.store.ListByRequester(requesterID)
}

// JoinWaitlist validates entry against the event layout and enqueues it.
// It returns the 1-based queue position and whether a new entry was added.
func (c *Coordinator) JoinWaitlist(entry model.WaitlistEntry) (int, bool, error) {
	if entry.RequesterID == "" {
		return 0, false, &BookingError{Kind: ErrInvalidRequest, EventID: entry.EventID}
	}
	pool, err := c.registry.Pool(entry.EventID)
	if err != nil {
		return 0, false, err
	}
	if len(entry.Preferred) > 0 {
		keys, err := normalizeSeats(BookingRequest{RequesterID: entry.RequesterID, EventID: entry.EventID, Seats: entry.Preferred})
		if err != nil {
			return 0, false, err
		}
		if _, err := pool.Get(keys); err != nil {
			return 0, false, err
		}
		entry.Preferred = keys
		entry.DesiredCount = len(keys)
	}
	if entry.DesiredCount <= 0 || entry.DesiredCount > pool.Len() {
		return 0, false, &BookingError{Kind: ErrInvalidRequest, EventID: entry.EventID}
	}
	pos, added := c.waitlist.Enqueue(entry)
	// Lost a race with RemoveEvent.
	if _, err := c.registry.Pool(entry.EventID); err != nil {
		c.waitlist.Remove(entry.EventID, entry.RequesterID)
		return 0, false, err
	}
	return pos, added, nil
}

// RemoveEvent tears down the event's pool and drops its waitlist.
// Existing reservations stay readable and cancellable.
func (c *Coordinator) RemoveEvent(eventID string) bool {
	if !c.registry.Remove(eventID) {
		return false
	}
	if n := c.waitlist.Clear(eventID); n > 0 {
		c.log.Info("waitlist dropped with event", zap.String("event_id", eventID), zap.Int("entries", n))
	}
	return true
}

// LeaveWaitlist removes the requester's entry for the event.
func (c *Coordinator) LeaveWaitlist(eventID, requesterID string) bool {
	return c.waitlist.Remove(eventID, requesterID)
}

// normalizeSeats de-duplicates and sorts the requested seats.
func normalizeSeats(req BookingRequest) ([]model.SeatKey, error) {
	if req.RequesterID == "" || req.EventID == "" || len(req.Seats) == 0 {
		return nil, &BookingError{Kind: ErrInvalidRequest, EventID: req.EventID}
	}
	seen := make(map[model.SeatKey]struct{}, len(req.Seats))
	keys := make([]model.SeatKey, 0, len(req.Seats))
	for _, k := range req.Seats {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, nil
}
