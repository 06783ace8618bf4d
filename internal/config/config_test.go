package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("DB_HOST", "")

    cfg, err := Load()
    require.NoError(t, err)

    assert.Equal(t, "8080", cfg.Port)
    assert.False(t, cfg.HasDB())
    assert.Equal(t, 3*time.Second, cfg.Reservation.SeatTimeout)
    assert.Equal(t, 10*time.Second, cfg.Reservation.BookTimeout)
    assert.Equal(t, 30*time.Second, cfg.Reservation.LeaseTTL)
    assert.Equal(t, []string{"declined"}, cfg.Reservation.DeclinedMethods)
    assert.EqualValues(t, 5000, cfg.Reservation.PriceCents)
}

func TestLoadReportsAllProblems(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    t.Setenv("SEAT_TIMEOUT", "soon")
    t.Setenv("GRID_ROWS", "-3")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "JWT_SECRET")
    assert.Contains(t, err.Error(), "SEAT_TIMEOUT")
    assert.Contains(t, err.Error(), "GRID_ROWS")
}

func TestLoadRequiresDBSettingsWhenHostSet(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("DB_HOST", "127.0.0.1")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_NAME", "")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "DB_USER")
    assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoadParsesLists(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("PROVISION_EVENTS", " 1, 2 ,,3")
    t.Setenv("GRID_VIP_ROWS", "A,B")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, []string{"1", "2", "3"}, cfg.Reservation.ProvisionEvents)
    assert.Equal(t, []string{"A", "B"}, cfg.Reservation.VIPRows)
}

func TestReservationValidate(t *testing.T) {
    ok := ReservationConfig{
        SeatTimeout: time.Second, BookTimeout: 2 * time.Second, LeaseTTL: 5 * time.Second,
        SweepInterval: time.Second, GridRows: 1, GridSeatsPerRow: 1,
    }
    require.NoError(t, ok.Validate())

    short := ok
    short.LeaseTTL = 2 * time.Second
    assert.ErrorContains(t, short.Validate(), "LEASE_TTL")

    book := ok
    book.BookTimeout = 500 * time.Millisecond
    assert.ErrorContains(t, book.Validate(), "BOOK_TIMEOUT")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoadRedisConfig(t *testing.T) {
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "1")

    cfg := LoadRedisConfig()
    assert.Equal(t, "cache:6380", cfg.Addr)
    assert.Equal(t, 2, cfg.DB)
    assert.True(t, cfg.TLS)
}
