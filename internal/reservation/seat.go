package reservation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/metrics"
	"github.com/iliyamo/seat-reservation/internal/model"
)

// Seat is the lockable unit of an event. Its state, holder, lease and
// guard live together; there is no lock handle that could outlive or be
// detached from the seat.
//
// A HELD seat whose lease has passed is treated as FREE by every
// operation that looks at it, whether or not anyone released it.
type Seat struct {
	spec  model.SeatSpec
	lease time.Duration
	now   func() time.Time
	log   *zap.Logger

	mu            sync.Mutex
	state         model.SeatState
	holder        string
	leaseUntil    time.Time
	reservationID string
	// freed is closed (and replaced) whenever the seat becomes FREE so
	// that blocked TryAcquire calls wake up.
	freed chan struct{}
}

func newSeat(spec model.SeatSpec, lease time.Duration, now func() time.Time, log *zap.Logger) *Seat {
	return &Seat{
		spec:  spec,
		lease: lease,
		now:   now,
		log:   log,
		state: model.SeatFree,
		freed: make(chan struct{}),
	}
}

// Key returns the seat's immutable identity within its event.
func (s *Seat) Key() model.SeatKey { return s.spec.Key }

// PriceCents returns the seat price fixed at provisioning.
func (s *Seat) PriceCents() uint32 { return s.spec.PriceCents }

// TryAcquire waits up to timeout for the seat to become FREE and then
// holds it for holder until now+lease. It returns false when the
// timeout elapses or ctx is done first. The full timeout is always
// waited out under contention; there is no early give-up.
//
// Leases follow the seat's clock, but the timeout is measured on the
// wall clock so that a frozen clock cannot stretch the wait.
func (s *Seat) TryAcquire(ctx context.Context, holder string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		now := s.now()
		s.expireLocked(now, "access")
		if s.state == model.SeatFree {
			s.state = model.SeatHeld
			s.holder = holder
			s.leaseUntil = now.Add(s.lease)
			s.mu.Unlock()
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.mu.Unlock()
			return false
		}
		wait := remaining
		// Wake at lease expiry so an abandoned hold is reclaimed without a release.
		if s.state == model.SeatHeld {
			if untilExpiry := s.leaseUntil.Sub(now); untilExpiry < wait {
				wait = untilExpiry
			}
		}
		freed := s.freed
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-freed:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
		timer.Stop()
	}
}

// Release frees a seat held by holder. Releasing a seat that is free,
// booked or held by someone else changes nothing; it is counted and
// logged because it means a caller lost track of its hold.
func (s *Seat) Release(holder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.SeatHeld && s.holder == holder {
		s.freeLocked()
		return true
	}
	metrics.ReleaseMismatchTotal.Inc()
	s.log.Warn("seat release by non-holder",
		zap.String("seat", s.spec.Key.String()),
		zap.String("state", string(s.state)),
		zap.String("caller", holder),
	)
	return false
}

// Commit turns holder's live hold into a booking for reservationID. It
// fails when the hold belongs to someone else or its lease has run out,
// which is how a stale hold is detected at commit time.
func (s *Seat) Commit(holder, reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now(), "access")
	if s.state != model.SeatHeld || s.holder != holder {
		return false
	}
	s.state = model.SeatBooked
	s.holder = ""
	s.leaseUntil = time.Time{}
	s.reservationID = reservationID
	return true
}

// Unbook returns a seat booked under reservationID to FREE. It backs
// both cancellation and the compensating rollback of a partial commit.
func (s *Seat) Unbook(reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SeatBooked || s.reservationID != reservationID {
		return false
	}
	s.freeLocked()
	return true
}

// HeldBy reports whether holder currently has a live hold on the seat.
func (s *Seat) HeldBy(holder string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now(), "access")
	return s.state == model.SeatHeld && s.holder == holder
}

// Sweep reclaims an expired hold. It returns true if the seat was freed.
func (s *Seat) Sweep(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(now, "sweep")
}

// Status returns a snapshot of the seat. Expired holds report FREE.
func (s *Seat) Status() model.SeatStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	st := model.SeatStatus{
		Key:        s.spec.Key,
		Type:       s.spec.Type,
		PriceCents: s.spec.PriceCents,
		State:      s.state,
	}
	switch {
	case s.state == model.SeatHeld && !now.Before(s.leaseUntil):
		st.State = model.SeatFree
	case s.state == model.SeatHeld:
		until := s.leaseUntil
		st.HolderID = s.holder
		st.LeaseUntil = &until
	case s.state == model.SeatBooked:
		st.ReservationID = s.reservationID
	}
	return st
}

// isFree is the advisory check used by availability queries.
func (s *Seat) isFree() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == model.SeatFree ||
		(s.state == model.SeatHeld && !s.now().Before(s.leaseUntil))
}

// expireLocked frees a hold whose lease has passed. Caller holds s.mu.
func (s *Seat) expireLocked(now time.Time, path string) bool {
	if s.state != model.SeatHeld || now.Before(s.leaseUntil) {
		return false
	}
	s.log.Debug("seat lease expired",
		zap.String("seat", s.spec.Key.String()),
		zap.String("holder", s.holder),
		zap.String("path", path),
	)
	metrics.LeaseExpiredTotal.WithLabelValues(path).Inc()
	s.freeLocked()
	return true
}

func (s *Seat) freeLocked() {
	s.state = model.SeatFree
	s.holder = ""
	s.leaseUntil = time.Time{}
	s.reservationID = ""
	close(s.freed)
	s.freed = make(chan struct{})
}
