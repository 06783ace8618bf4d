package reservation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-reservation/internal/model"
)

func TestBookConfirmsAllSeats(t *testing.T) {
	h := newHarness(t, 2, 4, harnessOpts{})

	res, err := h.book("alice", "B-1", "A-2", "A-2")
	require.NoError(t, err)

	assert.Equal(t, model.ReservationConfirmed, res.Status)
	assert.Equal(t, keys("A-2", "B-1"), res.Seats, "deduplicated and sorted")
	assert.EqualValues(t, 2000, res.TotalAmountCents)
	assert.Equal(t, "id-1", res.PaymentRef)
	assert.Equal(t, "id-2", res.ID)
	assert.Equal(t, model.SeatBooked, h.state(t, "A-2"))
	assert.Equal(t, model.SeatBooked, h.state(t, "B-1"))

	calls := h.gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ChargeRequest{AttemptID: "id-1", RequesterID: "alice", EventID: "42", AmountCents: 2000, Method: "card"}, calls[0])
	assert.Equal(t, []EventKind{EventReservationConfirmed}, h.events.Kinds())

	got, err := h.coord.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Seats, got.Seats)
}

func TestBookRejectsBadRequests(t *testing.T) {
	h := newHarness(t, 1, 2, harnessOpts{})
	ctx := context.Background()

	_, err := h.coord.Book(ctx, BookingRequest{EventID: "42", Seats: keys("A-1")})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.coord.Book(ctx, BookingRequest{RequesterID: "alice", EventID: "42"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.coord.Book(ctx, BookingRequest{RequesterID: "alice", EventID: "nope", Seats: keys("A-1")})
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = h.book("alice", "A-1", "C-7")
	assert.ErrorIs(t, err, ErrUnknownSeat)
	assert.True(t, IsCallerError(err))
	assert.Equal(t, model.SeatFree, h.state(t, "A-1"), "nothing acquired for an unknown seat")
	assert.Empty(t, h.gateway.Calls())
}

func TestBookIsAllOrNothing(t *testing.T) {
	h := newHarness(t, 1, 3, harnessOpts{})
	_, err := h.book("alice", "A-3")
	require.NoError(t, err)

	_, err = h.book("bob", "A-1", "A-2", "A-3")
	require.ErrorIs(t, err, ErrSeatUnavailable)
	assert.True(t, IsRetryable(err))
	var be *BookingError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, key("A-3"), *be.Seat)

	assert.Equal(t, model.SeatFree, h.state(t, "A-1"))
	assert.Equal(t, model.SeatFree, h.state(t, "A-2"))
	assert.Len(t, h.gateway.Calls(), 1, "bob was never charged")
}

func TestBookSeatTimeoutIgnoresFrozenClock(t *testing.T) {
	h := newHarness(t, 1, 1, harnessOpts{seatTimeout: 20 * time.Millisecond, bookTimeout: 5 * time.Second})
	_, err := h.book("alice", "A-1")
	require.NoError(t, err)

	start := time.Now()
	_, err = h.book("bob", "A-1")
	require.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Less(t, time.Since(start), time.Second, "gave up after the seat timeout, not the book timeout")
}

func TestBookRejectsTotalAboveChargeableMaximum(t *testing.T) {
	h := newHarness(t, 1, 1, harnessOpts{})
	price := uint32(math.MaxUint32/2 + 1)
	pool, err := NewPool("gala", []model.SeatSpec{
		{Key: key("A-1"), Type: model.SeatTypeVIP, PriceCents: price},
		{Key: key("A-2"), Type: model.SeatTypeVIP, PriceCents: price},
	}, PoolOptions{Now: h.clock.Now})
	require.NoError(t, err)
	require.NoError(t, h.registry.Register(pool))
	t.Cleanup(func() { h.registry.Remove("gala") })

	_, err = h.coord.Book(context.Background(), BookingRequest{
		RequesterID: "alice",
		EventID:     "gala",
		Seats:       keys("A-1", "A-2"),
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, h.gateway.Calls())
	assert.Len(t, pool.Available(), 2)

	res, err := h.coord.Book(context.Background(), BookingRequest{
		RequesterID: "alice",
		EventID:     "gala",
		Seats:       keys("A-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, price, res.TotalAmountCents)
}

func TestBookPaymentDeclinedReleasesSeats(t *testing.T) {
	for name, gw := range map[string]*gateway{
		"declined": {outcome: PaymentDeclined},
		"error":    {outcome: PaymentError},
		"failure":  {outcome: PaymentSuccess, err: errors.New("gateway down")},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 1, 2, harnessOpts{})
			h.coord.payments = gw

			_, err := h.book("alice", "A-1", "A-2")
			require.ErrorIs(t, err, ErrPaymentDeclined)
			assert.Equal(t, model.SeatFree, h.state(t, "A-1"))
			assert.Equal(t, model.SeatFree, h.state(t, "A-2"))
			assert.Empty(t, h.coord.ListByRequester("alice"))
			assert.Empty(t, h.events.Kinds())
		})
	}
}

func TestBookCommitFailureAfterPaymentCompensates(t *testing.T) {
	h := newHarness(t, 1, 3, harnessOpts{})
	// The charge is slow enough that the hold on A-2 is lost and the
	// seat taken by someone else before commit.
	h.gateway.hook = func(req ChargeRequest) {
		seats, err := h.pool.Get(keys("A-2"))
		require.NoError(t, err)
		require.True(t, seats[0].Release(req.RequesterID+"/"+req.AttemptID))
		require.True(t, seats[0].TryAcquire(context.Background(), "mallory/x", 0))
	}

	_, err := h.book("alice", "A-1", "A-2", "A-3")
	require.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, model.SeatFree, h.state(t, "A-1"), "committed seat reverted")
	assert.Equal(t, model.SeatHeld, h.state(t, "A-2"), "other holder untouched")
	assert.Equal(t, model.SeatFree, h.state(t, "A-3"), "remaining hold released")
	assert.Empty(t, h.coord.ListByRequester("alice"))

	refunds := h.events.Of(EventRefundRequired)
	require.Len(t, refunds, 1)
	p := refunds[0].(RefundRequiredPayload)
	assert.Equal(t, "id-1", p.AttemptID)
	assert.EqualValues(t, 3000, p.AmountCents)
	assert.Equal(t, keys("A-1", "A-2", "A-3"), p.Seats)
	assert.Empty(t, h.events.Of(EventReservationConfirmed))
}

func TestBookStaleHoldAfterLeaseExpiry(t *testing.T) {
	h := newHarness(t, 1, 2, harnessOpts{lease: time.Second})
	h.gateway.hook = func(ChargeRequest) { h.clock.Advance(2 * time.Second) }

	_, err := h.book("alice", "A-1", "A-2")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.SeatFree, h.state(t, "A-1"))
	assert.Equal(t, model.SeatFree, h.state(t, "A-2"))
	assert.Len(t, h.events.Of(EventRefundRequired), 1)
}

func TestBookRecoversAbandonedHold(t *testing.T) {
	h := newHarness(t, 1, 2, harnessOpts{lease: time.Second})
	seats, err := h.pool.Get(keys("A-1"))
	require.NoError(t, err)
	require.True(t, seats[0].TryAcquire(context.Background(), "crashed/0", 0))

	h.clock.Advance(time.Second)
	res, err := h.book("alice", "A-1")
	require.NoError(t, err)
	assert.Equal(t, keys("A-1"), res.Seats)
}

func TestBookMutualExclusionUnderContention(t *testing.T) {
	h := newHarness(t, 1, 6, harnessOpts{realClock: true, seatTimeout: 10 * time.Millisecond, bookTimeout: 200 * time.Millisecond})
	h.gateway.outcome = PaymentSuccess

	requests := [][]string{
		{"A-1", "A-2"}, {"A-2", "A-3"}, {"A-3", "A-4"}, {"A-4", "A-5"},
		{"A-5", "A-6"}, {"A-6", "A-1"}, {"A-1", "A-4"}, {"A-2", "A-5"},
	}
	var confirmed sync.Map
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < 40; i++ {
		labels := requests[i%len(requests)]
		requester := fmt.Sprintf("user-%d", i)
		g.Go(func() error {
			res, err := h.book(requester, labels...)
			switch {
			case err == nil:
				confirmed.Store(res.ID, res)
			case IsRetryable(err):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	owner := map[model.SeatKey]string{}
	confirmed.Range(func(_, v any) bool {
		res := v.(*model.Reservation)
		for _, k := range res.Seats {
			prev, dup := owner[k]
			assert.False(t, dup, "seat %s booked by %s and %s", k, prev, res.ID)
			owner[k] = res.ID
		}
		return true
	})
	assert.NotEmpty(t, owner)
	for _, st := range h.pool.Statuses() {
		if _, ok := owner[st.Key]; ok {
			assert.Equal(t, model.SeatBooked, st.State, st.Key.String())
			assert.Equal(t, owner[st.Key], st.ReservationID)
		} else {
			assert.Equal(t, model.SeatFree, st.State, st.Key.String())
		}
	}
}

func TestBookOppositeOrdersDoNotDeadlock(t *testing.T) {
	h := newHarness(t, 1, 2, harnessOpts{realClock: true, seatTimeout: time.Second, bookTimeout: 2 * time.Second})
	h.gateway.hook = func(ChargeRequest) { time.Sleep(time.Millisecond) }

	var booked atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			labels := []string{"A-1", "A-2"}
			if i == 1 {
				labels = []string{"A-2", "A-1"}
			}
			requester := fmt.Sprintf("user-%d", i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					res, err := h.book(requester, labels...)
					if err != nil {
						continue
					}
					booked.Add(1)
					_, _ = h.coord.Cancel(context.Background(), res.ID)
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("bookings in opposite seat order deadlocked")
	}
	assert.Positive(t, booked.Load())
	assert.Len(t, h.pool.Available(), 2)
}

func TestBookTimeoutBoundsAcquisition(t *testing.T) {
	h := newHarness(t, 1, 3, harnessOpts{realClock: true, seatTimeout: 10 * time.Second, bookTimeout: 50 * time.Millisecond})
	_, err := h.book("alice", "A-3")
	require.NoError(t, err)

	start := time.Now()
	_, err = h.book("bob", "A-1", "A-3")
	require.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, model.SeatFree, h.state(t, "A-1"))
}

func TestCancelFreesSeatsOnce(t *testing.T) {
	h := newHarness(t, 1, 2, harnessOpts{})
	res, err := h.book("alice", "A-1", "A-2")
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	cancelled, err := h.coord.Cancel(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, h.clock.Now().UTC(), *cancelled.CancelledAt)
	assert.Equal(t, model.SeatFree, h.state(t, "A-1"))
	assert.Equal(t, model.SeatFree, h.state(t, "A-2"))

	_, err = h.coord.Cancel(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.coord.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	again, err := h.book("bob", "A-1", "A-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", again.RequesterID)
	assert.Equal(t, []EventKind{EventReservationConfirmed, EventReservationCancelled, EventReservationConfirmed}, h.events.Kinds())
}

func TestConcurrentCancelHasOneWinner(t *testing.T) {
	h := newHarness(t, 1, 1, harnessOpts{})
	res, err := h.book("alice", "A-1")
	require.NoError(t, err)

	var wins, invalid atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.coord.Cancel(context.Background(), res.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidState):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 9, invalid.Load())
	assert.Len(t, h.events.Of(EventReservationCancelled), 1)
}

func TestRefundOnlyFromCancelled(t *testing.T) {
	h := newHarness(t, 1, 1, harnessOpts{})
	res, err := h.book("alice", "A-1")
	require.NoError(t, err)

	_, err = h.coord.Refund(context.Background(), res.ID, "early")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = h.coord.Cancel(context.Background(), res.ID)
	require.NoError(t, err)
	refunded, err := h.coord.Refund(context.Background(), res.ID, "show moved")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationRefunded, refunded.Status)
	assert.Equal(t, "show moved", refunded.RefundReason)
	require.NotNil(t, refunded.RefundedAt)

	_, err = h.coord.Refund(context.Background(), res.ID, "twice")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.SeatFree, h.state(t, "A-1"), "refund does not touch seats")
}

func TestListByRequester(t *testing.T) {
	h := newHarness(t, 1, 3, harnessOpts{})
	first, err := h.book("alice", "A-1")
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	second, err := h.book("alice", "A-2")
	require.NoError(t, err)
	_, err = h.book("bob", "A-3")
	require.NoError(t, err)

	list := h.coord.ListByRequester("alice")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
