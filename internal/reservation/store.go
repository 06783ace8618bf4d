package reservation

import (
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// record guards one reservation. Status changes go through
// transition, which compares and swaps under the record lock.
type record struct {
	mu  sync.Mutex
	res model.Reservation
}

// Store keeps committed reservations. It is synchronized separately
// from seat state and is written only after every seat commit of a
// booking succeeded.
type Store struct {
	mu          sync.RWMutex
	byID        map[string]*record
	byRequester map[string][]string
}

// NewStore returns an empty reservation store.
func NewStore() *Store {
	return &Store{
		byID:        make(map[string]*record),
		byRequester: make(map[string][]string),
	}
}

// Put records a newly confirmed reservation.
func (s *Store) Put(res model.Reservation) {
	rec := &record{res: res.Clone()}
	s.mu.Lock()
	s.byID[res.ID] = rec
	s.byRequester[res.RequesterID] = append(s.byRequester[res.RequesterID], res.ID)
	s.mu.Unlock()
}

// Get returns a copy of the reservation with the given id.
func (s *Store) Get(id string) (model.Reservation, bool) {
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return model.Reservation{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.res.Clone(), true
}

// ListByRequester returns the requester's reservations, newest first.
func (s *Store) ListByRequester(requesterID string) []model.Reservation {
	s.mu.RLock()
	ids := append([]string(nil), s.byRequester[requesterID]...)
	s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.Get(id); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Transition moves reservation id from one status to another. Exactly
// one of several concurrent callers with the same from/to wins; the
// others get ErrInvalidState. mutate runs under the record lock after
// the swap succeeds.
func (s *Store) Transition(id string, from, to model.ReservationStatus, now time.Time, mutate func(*model.Reservation)) (model.Reservation, error) {
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return model.Reservation{}, &BookingError{Kind: ErrNotFound, ReservationID: id}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.res.Status != from {
		return model.Reservation{}, reservationError(ErrInvalidState, id,
			"status is %s, want %s", rec.res.Status, from)
	}
	rec.res.Status = to
	rec.res.UpdatedAt = now
	if mutate != nil {
		mutate(&rec.res)
	}
	return rec.res.Clone(), nil
}
