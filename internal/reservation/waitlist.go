package reservation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/metrics"
	"github.com/iliyamo/seat-reservation/internal/model"
)

// Booker books seats on behalf of a requester. *Coordinator implements it.
type Booker interface {
	Book(ctx context.Context, req BookingRequest) (*model.Reservation, error)
}

// WaitlistOptions configures a Waitlist.
type WaitlistOptions struct {
	// SeatTimeout is the per-seat wait of promotion bookings.
	SeatTimeout time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
}

// Waitlist keeps one FIFO queue of requesters per event. Its lock only
// guards the queues; it is never held while booking.
type Waitlist struct {
	booker   Booker
	registry *Registry
	notifier Notifier
	opts     WaitlistOptions
	log      *zap.Logger

	mu       sync.Mutex
	seq      uint64
	queues   map[string][]model.WaitlistEntry
	inFlight map[string]map[string]bool // event -> requester -> promotion running
}

// NewWaitlist returns an empty waitlist promoting through booker.
func NewWaitlist(booker Booker, registry *Registry, notifier Notifier, opts WaitlistOptions) *Waitlist {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Waitlist{
		booker:   booker,
		registry: registry,
		notifier: notifier,
		opts:     opts,
		log:      opts.Logger.Named("waitlist"),
		queues:   make(map[string][]model.WaitlistEntry),
		inFlight: make(map[string]map[string]bool),
	}
}

// Enqueue appends entry to its event's queue and returns its 1-based
// position. A requester already queued for the event keeps its place:
// the call is a no-op and returns the existing position with added=false.
func (w *Waitlist) Enqueue(entry model.WaitlistEntry) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.queues[entry.EventID]
	for i, e := range q {
		if e.RequesterID == entry.RequesterID {
			return i + 1, false
		}
	}
	w.seq++
	entry.Seq = w.seq
	entry.EnqueuedAt = w.opts.Now().UTC()
	if len(entry.Preferred) > 0 {
		entry.Preferred = append([]model.SeatKey(nil), entry.Preferred...)
		entry.DesiredCount = len(entry.Preferred)
	}
	w.queues[entry.EventID] = append(q, entry)
	metrics.WaitlistDepth.Inc()
	return len(q) + 1, true
}

// Remove deletes the requester's entry for the event.
func (w *Waitlist) Remove(eventID, requesterID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(eventID, requesterID, 0)
}

// removeLocked drops the requester's entry; a non-zero seq only matches
// that exact enqueue.
func (w *Waitlist) removeLocked(eventID, requesterID string, seq uint64) bool {
	q := w.queues[eventID]
	for i, e := range q {
		if e.RequesterID != requesterID || (seq != 0 && e.Seq != seq) {
			continue
		}
		q = append(q[:i:i], q[i+1:]...)
		if len(q) == 0 {
			delete(w.queues, eventID)
		} else {
			w.queues[eventID] = q
		}
		metrics.WaitlistDepth.Dec()
		return true
	}
	return false
}

// Clear drops every entry queued for the event and returns how many
// were dropped.
func (w *Waitlist) Clear(eventID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.queues[eventID])
	delete(w.queues, eventID)
	metrics.WaitlistDepth.Sub(float64(n))
	return n
}

// Position returns the requester's 1-based position for the event.
func (w *Waitlist) Position(eventID, requesterID string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.queues[eventID] {
		if e.RequesterID == requesterID {
			return i + 1, true
		}
	}
	return 0, false
}

// Entries returns a copy of the event's queue in FIFO order.
func (w *Waitlist) Entries(eventID string) []model.WaitlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.WaitlistEntry(nil), w.queues[eventID]...)
}

// Promote walks the event's queue in FIFO order after seats were freed.
// Each entry that the currently free seats can satisfy gets a booking
// attempt; on success it leaves the queue and a promotion event is
// emitted, on failure it stays where it is and the walk continues.
func (w *Waitlist) Promote(ctx context.Context, eventID string, freed []model.SeatKey) []model.Reservation {
	pool, err := w.registry.Pool(eventID)
	if err != nil {
		return nil
	}
	var promoted []model.Reservation
	for _, entry := range w.Entries(eventID) {
		if ctx.Err() != nil {
			break
		}
		seats, ok := pickSeats(pool.Available(), freed, entry)
		if !ok {
			metrics.WaitlistPromotionsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		if !w.claim(entry) {
			continue
		}
		res, err := w.booker.Book(ctx, BookingRequest{
			RequesterID:   entry.RequesterID,
			EventID:       eventID,
			Seats:         seats,
			PaymentMethod: entry.PaymentMethod,
			SeatTimeout:   w.opts.SeatTimeout,
		})
		w.finish(entry, err == nil)
		if err != nil {
			metrics.WaitlistPromotionsTotal.WithLabelValues("failed").Inc()
			w.log.Info("promotion attempt failed",
				zap.String("event_id", eventID),
				zap.String("requester_id", entry.RequesterID),
				zap.Error(err),
			)
			continue
		}
		metrics.WaitlistPromotionsTotal.WithLabelValues("promoted").Inc()
		w.log.Info("waitlist entry promoted",
			zap.String("event_id", eventID),
			zap.String("requester_id", entry.RequesterID),
			zap.String("reservation_id", res.ID),
		)
		w.notifier.Emit(context.WithoutCancel(ctx), EventWaitlistPromoted, PromotionPayload{
			Entry:       entry,
			Reservation: res.Clone(),
		})
		promoted = append(promoted, *res)
	}
	return promoted
}

// claim marks entry as being promoted. It fails if the entry left the
// queue or another Promote is already booking for it.
func (w *Waitlist) claim(entry model.WaitlistEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	present := false
	for _, e := range w.queues[entry.EventID] {
		if e.RequesterID == entry.RequesterID && e.Seq == entry.Seq {
			present = true
			break
		}
	}
	running := w.inFlight[entry.EventID]
	if !present || running[entry.RequesterID] {
		return false
	}
	if running == nil {
		running = make(map[string]bool)
		w.inFlight[entry.EventID] = running
	}
	running[entry.RequesterID] = true
	return true
}

func (w *Waitlist) finish(entry model.WaitlistEntry, booked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if running := w.inFlight[entry.EventID]; running != nil {
		delete(running, entry.RequesterID)
		if len(running) == 0 {
			delete(w.inFlight, entry.EventID)
		}
	}
	if booked {
		w.removeLocked(entry.EventID, entry.RequesterID, entry.Seq)
	}
}

// pickSeats chooses seats for entry from the free ones. Preferred seats
// must all be free. Otherwise freed seats are used first, then the
// remaining free seats in seat order.
func pickSeats(available, freed []model.SeatKey, entry model.WaitlistEntry) ([]model.SeatKey, bool) {
	free := make(map[model.SeatKey]bool, len(available))
	for _, k := range available {
		free[k] = true
	}
	if len(entry.Preferred) > 0 {
		for _, k := range entry.Preferred {
			if !free[k] {
				return nil, false
			}
		}
		return append([]model.SeatKey(nil), entry.Preferred...), true
	}
	if entry.DesiredCount <= 0 || len(available) < entry.DesiredCount {
		return nil, false
	}
	out := make([]model.SeatKey, 0, entry.DesiredCount)
	taken := make(map[model.SeatKey]bool, entry.DesiredCount)
	for _, k := range freed {
		if len(out) == entry.DesiredCount {
			break
		}
		if free[k] && !taken[k] {
			out = append(out, k)
			taken[k] = true
		}
	}
	for _, k := range available {
		if len(out) == entry.DesiredCount {
			break
		}
		if !taken[k] {
			out = append(out, k)
			taken[k] = true
		}
	}
	return out, true
}
