package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

func envelope(t *testing.T, kind string, payload any) Envelope {
    t.Helper()
    env, err := NewEnvelope(kind, payload, at)
    require.NoError(t, err)
    return env
}

func TestFormatLineReservation(t *testing.T) {
    env := envelope(t, "reservation.confirmed", ReservationPayload{
        ID: "r1", RequesterID: "alice", EventID: "42",
        Seats: []SeatID{"A-1", "A-2"}, Status: "CONFIRMED", TotalAmountCents: 2000,
    })
    line, err := FormatLine(env)
    require.NoError(t, err)
    assert.Equal(t, "[2026-03-01T18:30:00Z] reservation.confirmed | reservation_id=r1 | requester_id=alice | event_id=42 | status=CONFIRMED | total=2000 cents | seats=[A-1,A-2]\n", line)
}

func TestFormatLineDecodesCoreJSON(t *testing.T) {
    // The core publishes model values; seats are encoded as labels.
    raw := `{"id":"r9","requester_id":"bob","event_id":"7","seats":["B-3"],"status":"CANCELLED","total_amount_cents":500,"created_at":"2026-03-01T18:30:00Z"}`
    line, err := FormatLine(Envelope{Kind: "reservation.cancelled", OccurredAt: "t", Payload: json.RawMessage(raw)})
    require.NoError(t, err)
    assert.Contains(t, line, "reservation_id=r9")
    assert.Contains(t, line, "seats=[B-3]")
}

func TestFormatLinePromotionAndRefund(t *testing.T) {
    var promo PromotionPayload
    promo.Entry.RequesterID = "carol"
    promo.Reservation = ReservationPayload{ID: "r2", EventID: "42", Seats: []SeatID{"C-4"}}
    line, err := FormatLine(envelope(t, "waitlist.promoted", promo))
    require.NoError(t, err)
    assert.Contains(t, line, "waitlist.promoted | requester_id=carol | event_id=42 | reservation_id=r2 | seats=[C-4]")

    line, err = FormatLine(envelope(t, "payment.refund_required", RefundRequiredPayload{
        AttemptID: "a1", RequesterID: "dave", EventID: "42", Seats: []SeatID{"A-1"}, AmountCents: 700, Method: "card",
    }))
    require.NoError(t, err)
    assert.Contains(t, line, "attempt_id=a1")
    assert.Contains(t, line, "amount=700 cents")
}

func TestFormatLineRejectsUnknownKind(t *testing.T) {
    _, err := FormatLine(Envelope{Kind: "something.else", Payload: json.RawMessage(`{}`)})
    assert.Error(t, err)
}

func TestHandleMessageAppendsToLog(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    for _, id := range []string{"r1", "r2"} {
        body, err := json.Marshal(envelope(t, "reservation.refunded", ReservationPayload{ID: id, Status: "REFUNDED"}))
        require.NoError(t, err)
        require.NoError(t, handleMessage(dir, body))
    }
    data, err := os.ReadFile(filepath.Join(dir, "booking.log"))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "reservation_id=r1")
    assert.Contains(t, lines[1], "reservation_id=r2")

    assert.Error(t, handleMessage(dir, []byte("not json")))
}
