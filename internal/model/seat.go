package model

import (
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// SeatKey identifies a seat within one event.  Seats are uniquely
// identified by their row label and seat number, mirroring the
// (row_label, seat_number) pair of the seats table.  SeatKey is
// comparable and therefore usable as a map key.
//
// Fields:
//  Row    – letter or string designating the row (A, B, AA).
//  Number – 1-based number of the seat within the row.
type SeatKey struct {
    Row    string `json:"row"`
    Number uint32 `json:"number"`
}

// ErrInvalidSeatKey is returned by ParseSeatKey for malformed input.
var ErrInvalidSeatKey = errors.New("invalid seat key")

// Less reports whether k sorts before o.  Rows compare by length first
// so that "Z" < "AA", then lexicographically; seat numbers compare
// numerically.  Every coordinator locks seats in this order.
func (k SeatKey) Less(o SeatKey) bool {
    if k.Row != o.Row {
        if len(k.Row) != len(o.Row) {
            return len(k.Row) < len(o.Row)
        }
        return k.Row < o.Row
    }
    return k.Number < o.Number
}

// String renders the key as "A-12".
func (k SeatKey) String() string {
    return k.Row + "-" + strconv.FormatUint(uint64(k.Number), 10)
}

// MarshalText encodes the key as "A-12" in JSON values and object keys.
func (k SeatKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses any label accepted by ParseSeatKey.
func (k *SeatKey) UnmarshalText(b []byte) error {
    v, err := ParseSeatKey(string(b))
    if err != nil {
        return err
    }
    *k = v
    return nil
}

// ParseSeatKey accepts "A-12", "A12" and "a 12" style labels.  The row
// part is upper-cased; the number must be a positive integer.
func ParseSeatKey(s string) (SeatKey, error) {
    s = strings.ToUpper(strings.TrimSpace(s))
    if s == "" {
        return SeatKey{}, ErrInvalidSeatKey
    }
    i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
    if i <= 0 {
        return SeatKey{}, fmt.Errorf("%w: %q", ErrInvalidSeatKey, s)
    }
    row := strings.TrimRight(s[:i], "- ")
    n, err := strconv.ParseUint(s[i:], 10, 32)
    if err != nil || n == 0 || row == "" {
        return SeatKey{}, fmt.Errorf("%w: %q", ErrInvalidSeatKey, s)
    }
    return SeatKey{Row: row, Number: uint32(n)}, nil
}

// SeatType classifies a seat for pricing (STANDARD, VIP, ACCESSIBLE).
type SeatType string

const (
    SeatTypeStandard   SeatType = "STANDARD"
    SeatTypeVIP        SeatType = "VIP"
    SeatTypeAccessible SeatType = "ACCESSIBLE"
)

// SeatSpec describes one seat of an event layout as supplied by the
// catalog at provisioning time.  The layout is fixed afterwards.
type SeatSpec struct {
    Key        SeatKey  `json:"key"`
    Type       SeatType `json:"type"`
    PriceCents uint32   `json:"price_cents"`
}

// SeatState is the availability state of a seat (FREE, HELD, BOOKED).
type SeatState string

const (
    SeatFree   SeatState = "FREE"
    SeatHeld   SeatState = "HELD"
    SeatBooked SeatState = "BOOKED"
)

// SeatStatus is a point-in-time snapshot of a seat.  HolderID and
// LeaseUntil are set only for HELD seats, ReservationID only for
// BOOKED seats.
type SeatStatus struct {
    Key           SeatKey    `json:"key"`
    Type          SeatType   `json:"type"`
    PriceCents    uint32     `json:"price_cents"`
    State         SeatState  `json:"state"`
    HolderID      string     `json:"-"`
    LeaseUntil    *time.Time `json:"lease_until,omitempty"`
    ReservationID string     `json:"-"`
}
