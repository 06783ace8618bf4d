package reservation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// gateway is a scriptable PaymentGateway.
type gateway struct {
	mu      sync.Mutex
	calls   []ChargeRequest
	outcome PaymentOutcome
	err     error
	hook    func(ChargeRequest)
}

// Charge fails on a done context like a real gateway call would.
func (g *gateway) Charge(ctx context.Context, req ChargeRequest) (PaymentOutcome, error) {
	if err := ctx.Err(); err != nil {
		return PaymentError, err
	}
	g.mu.Lock()
	g.calls = append(g.calls, req)
	hook, outcome, err := g.hook, g.outcome, g.err
	g.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	return outcome, err
}

func (g *gateway) Calls() []ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ChargeRequest(nil), g.calls...)
}

type emitted struct {
	Kind    EventKind
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(_ context.Context, kind EventKind, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Kind: kind, Payload: payload})
}

func (r *recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) Of(kind EventKind) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Payload)
		}
	}
	return out
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func key(label string) model.SeatKey {
	k, err := model.ParseSeatKey(label)
	if err != nil {
		panic(err)
	}
	return k
}

func keys(labels ...string) []model.SeatKey {
	out := make([]model.SeatKey, 0, len(labels))
	for _, l := range labels {
		out = append(out, key(l))
	}
	return out
}

// layout builds rows A.. with perRow seats priced at 1000 cents.
func layout(rows, perRow int) []model.SeatSpec {
	var out []model.SeatSpec
	for r := 0; r < rows; r++ {
		for n := 1; n <= perRow; n++ {
			out = append(out, model.SeatSpec{
				Key:        model.SeatKey{Row: string(rune('A' + r)), Number: uint32(n)},
				Type:       model.SeatTypeStandard,
				PriceCents: 1000,
			})
		}
	}
	return out
}

type harness struct {
	clock    *fakeClock
	registry *Registry
	pool     *Pool
	gateway  *gateway
	events   *recorder
	coord    *Coordinator
}

type harnessOpts struct {
	lease       time.Duration
	seatTimeout time.Duration
	bookTimeout time.Duration
	realClock   bool
}

func newHarness(t *testing.T, rows, perRow int, o harnessOpts) *harness {
	t.Helper()
	if o.lease == 0 {
		o.lease = 30 * time.Second
	}
	if o.seatTimeout == 0 {
		o.seatTimeout = 20 * time.Millisecond
	}
	if o.bookTimeout == 0 {
		o.bookTimeout = time.Second
	}
	h := &harness{clock: newFakeClock(), gateway: &gateway{}, events: &recorder{}}
	now := h.clock.Now
	if o.realClock {
		now = time.Now
	}
	h.registry = NewRegistry(PoolOptions{Lease: o.lease, Now: now})
	pool, err := NewPool("42", layout(rows, perRow), PoolOptions{Lease: o.lease, Now: now})
	require.NoError(t, err)
	require.NoError(t, h.registry.Register(pool))
	t.Cleanup(func() { h.registry.Remove("42") })
	h.pool = pool
	h.coord = NewCoordinator(h.registry, h.gateway, h.events, Options{
		SeatTimeout: o.seatTimeout,
		BookTimeout: o.bookTimeout,
		Now:         now,
		NewID:       seqIDs(),
	})
	return h
}

func (h *harness) state(t *testing.T, label string) model.SeatState {
	t.Helper()
	seats, err := h.pool.Get(keys(label))
	require.NoError(t, err)
	return seats[0].Status().State
}

func (h *harness) book(requester string, labels ...string) (*model.Reservation, error) {
	return h.coord.Book(context.Background(), BookingRequest{
		RequesterID:   requester,
		EventID:       "42",
		Seats:         keys(labels...),
		PaymentMethod: "card",
	})
}
