package reservation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation/internal/model"
)

func TestStoreTransition(t *testing.T) {
	s := NewStore()
	now := time.Unix(1_700_000_000, 0).UTC()
	s.Put(model.Reservation{ID: "r1", RequesterID: "alice", Status: model.ReservationConfirmed, Seats: keys("A-1")})

	res, err := s.Transition("r1", model.ReservationConfirmed, model.ReservationCancelled, now, func(r *model.Reservation) {
		r.CancelledAt = &now
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)
	assert.Equal(t, now, res.UpdatedAt)
	require.NotNil(t, res.CancelledAt)

	_, err = s.Transition("r1", model.ReservationConfirmed, model.ReservationCancelled, now, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Transition("nope", model.ReservationConfirmed, model.ReservationCancelled, now, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Put(model.Reservation{ID: "r1", Seats: keys("A-1")})

	got, ok := s.Get("r1")
	require.True(t, ok)
	got.Seats[0] = key("Z-9")

	again, _ := s.Get("r1")
	assert.Equal(t, key("A-1"), again.Seats[0])
}

func TestStoreConcurrentTransitionHasOneWinner(t *testing.T) {
	s := NewStore()
	s.Put(model.Reservation{ID: "r1", Status: model.ReservationConfirmed})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transition("r1", model.ReservationConfirmed, model.ReservationCancelled, time.Now(), nil); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestStoreListByRequesterNewestFirst(t *testing.T) {
	s := NewStore()
	base := time.Unix(1_700_000_000, 0)
	s.Put(model.Reservation{ID: "old", RequesterID: "alice", CreatedAt: base})
	s.Put(model.Reservation{ID: "new", RequesterID: "alice", CreatedAt: base.Add(time.Hour)})
	s.Put(model.Reservation{ID: "other", RequesterID: "bob", CreatedAt: base})

	list := s.ListByRequester("alice")
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
	assert.Empty(t, s.ListByRequester("carol"))
}
