package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation/internal/metrics"
	"github.com/iliyamo/seat-reservation/internal/model"
)

// CatalogProvider supplies an event's seat layout. It is consulted once
// when the event is provisioned and never during booking.
type CatalogProvider interface {
	Layout(ctx context.Context, eventID string) (model.Event, error)
}

// Registry holds the pools of all provisioned events. A pool lives from
// Provision until Remove; the registry lock only guards the event map,
// never seat state.
type Registry struct {
	opts PoolOptions

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewRegistry returns an empty registry whose pools use opts.
func NewRegistry(opts PoolOptions) *Registry {
	return &Registry{opts: opts, pools: make(map[string]*Pool)}
}

// Provision loads eventID's layout from catalog and registers a new pool.
func (r *Registry) Provision(ctx context.Context, eventID string, catalog CatalogProvider) (*Pool, error) {
	if _, err := r.Pool(eventID); err == nil {
		return nil, &BookingError{Kind: ErrEventExists, EventID: eventID}
	}
	ev, err := catalog.Layout(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load layout for event %s: %w", eventID, err)
	}
	p, err := NewPool(eventID, ev.Seats, r.opts)
	if err != nil {
		return nil, err
	}
	p.name = ev.Name
	if err := r.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Register adds an already built pool.
func (r *Registry) Register(p *Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.eventID]; ok {
		return &BookingError{Kind: ErrEventExists, EventID: p.eventID}
	}
	r.pools[p.eventID] = p
	metrics.ProvisionedEvents.Inc()
	return nil
}

// Pool returns the pool for eventID.
func (r *Registry) Pool(eventID string) (*Pool, error) {
	r.mu.RLock()
	p, ok := r.pools[eventID]
	r.mu.RUnlock()
	if !ok {
		return nil, &BookingError{Kind: ErrEventNotFound, EventID: eventID}
	}
	return p, nil
}

// Remove tears down an event's pool. Bookings already in flight keep
// their seat handles; new lookups fail with ErrEventNotFound. Use
// Coordinator.RemoveEvent to drop the event's waitlist as well.
func (r *Registry) Remove(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[eventID]; !ok {
		return false
	}
	delete(r.pools, eventID)
	metrics.ProvisionedEvents.Dec()
	return true
}

// Events lists provisioned event ids in sorted order.
func (r *Registry) Events() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep reclaims expired holds in every pool and returns the total freed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()
	n := 0
	for _, p := range pools {
		n += p.Sweep(now)
	}
	return n
}
