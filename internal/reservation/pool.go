package reservation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// DefaultLease bounds how long a hold survives without commit or release.
const DefaultLease = 30 * time.Second

// PoolOptions tunes seat behaviour for one event.
type PoolOptions struct {
	// Lease is the lifetime of a hold. Zero means DefaultLease.
	Lease time.Duration
	// Now is the clock leases are measured on; nil means time.Now.
	// Acquisition timeouts always use the wall clock.
	Now func() time.Time
	// Logger receives seat diagnostics; nil means a no-op logger.
	Logger *zap.Logger
}

// Pool owns every seat of one event. The layout is fixed at
// construction: seats are never added, removed or resized afterwards,
// so lookups need no lock. Each seat guards its own state.
type Pool struct {
	eventID string
	name    string
	seats   map[model.SeatKey]*Seat
	ordered []*Seat
}

// NewPool builds the pool for eventID from its layout. It rejects an
// empty layout, duplicate keys and zero seat numbers.
func NewPool(eventID string, layout []model.SeatSpec, opts PoolOptions) (*Pool, error) {
	if eventID == "" {
		return nil, errors.New("pool: empty event id")
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("pool: event %s has no seats", eventID)
	}
	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.With(zap.String("event_id", eventID))
	p := &Pool{
		eventID: eventID,
		seats:   make(map[model.SeatKey]*Seat, len(layout)),
		ordered: make([]*Seat, 0, len(layout)),
	}
	for _, spec := range layout {
		if spec.Key.Row == "" || spec.Key.Number == 0 {
			return nil, fmt.Errorf("pool: event %s: invalid seat %q", eventID, spec.Key.String())
		}
		if _, dup := p.seats[spec.Key]; dup {
			return nil, fmt.Errorf("pool: event %s: duplicate seat %s", eventID, spec.Key)
		}
		if spec.Type == "" {
			spec.Type = model.SeatTypeStandard
		}
		s := newSeat(spec, opts.Lease, opts.Now, log)
		p.seats[spec.Key] = s
		p.ordered = append(p.ordered, s)
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].Key().Less(p.ordered[j].Key()) })
	return p, nil
}

// EventID returns the event this pool belongs to.
func (p *Pool) EventID() string { return p.eventID }

// Name returns the display name set at provisioning, if any.
func (p *Pool) Name() string { return p.name }

// Len returns the fixed number of seats.
func (p *Pool) Len() int { return len(p.ordered) }

// Get resolves keys to seats without acquiring anything. It fails on
// the first key that is not part of the layout.
func (p *Pool) Get(keys []model.SeatKey) ([]*Seat, error) {
	out := make([]*Seat, 0, len(keys))
	for _, k := range keys {
		s, ok := p.seats[k]
		if !ok {
			return nil, seatError(ErrUnknownSeat, p.eventID, k)
		}
		out = append(out, s)
	}
	return out, nil
}

// Available returns the keys of currently free seats in seat order.
// The answer is advisory and may be stale as soon as it is returned.
func (p *Pool) Available() []model.SeatKey {
	out := make([]model.SeatKey, 0, len(p.ordered))
	for _, s := range p.ordered {
		if s.isFree() {
			out = append(out, s.Key())
		}
	}
	return out
}

// AvailableInRow is Available restricted to one row.
func (p *Pool) AvailableInRow(row string) []model.SeatKey {
	out := make([]model.SeatKey, 0)
	for _, s := range p.ordered {
		if s.Key().Row == row && s.isFree() {
			out = append(out, s.Key())
		}
	}
	return out
}

// Statuses returns a snapshot of every seat in seat order.
func (p *Pool) Statuses() []model.SeatStatus {
	out := make([]model.SeatStatus, 0, len(p.ordered))
	for _, s := range p.ordered {
		out = append(out, s.Status())
	}
	return out
}

// Sweep reclaims expired holds and returns how many seats were freed.
func (p *Pool) Sweep(now time.Time) int {
	n := 0
	for _, s := range p.ordered {
		if s.Sweep(now) {
			n++
		}
	}
	return n
}
