// Package worker runs background maintenance for the reservation core.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when LeaseSweeperConfig.Interval is zero.
const DefaultSweepInterval = 5 * time.Second

// ErrAlreadyRunning is returned by Start on a running sweeper.
var ErrAlreadyRunning = errors.New("lease sweeper already running")

// Sweeper frees expired seat holds. *reservation.Registry implements it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// LeaseSweeperConfig configures the lease sweeper.
type LeaseSweeperConfig struct {
	Interval time.Duration
	Now      func() time.Time
}

// LeaseSweeper periodically reclaims holds whose lease expired without a
// commit or release, such as those left by a crashed request. Seats also
// expire lazily when touched; the sweeper bounds how long an untouched
// seat looks HELD.
type LeaseSweeper struct {
	target Sweeper
	cfg    LeaseSweeperConfig
	log    *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	totalFreed atomic.Int64
	lastRun    atomic.Int64 // unix nanos
}

// NewLeaseSweeper returns a stopped sweeper over target.
func NewLeaseSweeper(target Sweeper, cfg LeaseSweeperConfig, log *zap.Logger) *LeaseSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaseSweeper{target: target, cfg: cfg, log: log.Named("lease-sweeper")}
}

// Start launches the sweep loop. It runs until ctx is done or Stop is called.
func (w *LeaseSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyRunning
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.loop(ctx, w.stopCh)
	w.log.Info("started", zap.Duration("interval", w.cfg.Interval))
	return nil
}

// Stop halts the loop and waits for it to exit. Stopping a stopped
// sweeper is a no-op.
func (w *LeaseSweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()
	w.wg.Wait()
	w.log.Info("stopped", zap.Int64("total_freed", w.totalFreed.Load()))
}

func (w *LeaseSweeper) loop(ctx context.Context, stop <-chan struct{}) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns how many holds it freed.
func (w *LeaseSweeper) RunOnce() int {
	now := w.cfg.Now()
	n := w.target.Sweep(now)
	w.totalFreed.Add(int64(n))
	w.lastRun.Store(now.UnixNano())
	if n > 0 {
		w.log.Info("expired holds freed", zap.Int("count", n))
	}
	return n
}

// Stats reports the holds freed since construction and the last sweep time.
func (w *LeaseSweeper) Stats() (totalFreed int64, lastRun time.Time) {
	if ns := w.lastRun.Load(); ns != 0 {
		lastRun = time.Unix(0, ns)
	}
	return w.totalFreed.Load(), lastRun
}
