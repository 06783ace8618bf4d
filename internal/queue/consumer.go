package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// ConsumerConfig configures StartEventConsumer.
type ConsumerConfig struct {
    URL    string // broker URL
    LogDir string // directory holding booking.log
}

// StartEventConsumer connects to RabbitMQ, declares the events queue
// (durable) and appends one line per event to <LogDir>/booking.log.  It
// reconnects with exponential backoff until ctx is cancelled, then
// returns ctx.Err().  A message that cannot be handled is rejected
// without requeue so the loop keeps going.
func StartEventConsumer(ctx context.Context, cfg ConsumerConfig, log *zap.Logger) error {
    if cfg.LogDir == "" {
        cfg.LogDir = "logs"
    }
    log = log.Named("event-consumer")
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, cfg.LogDir, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("consume loop ended, reconnecting", zap.Error(err))
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(EventsQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, EventsQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(logDir, d.Body); err != nil {
            log.Warn("handle message failed", zap.Error(err))
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(logDir string, body []byte) error {
    var env Envelope
    if err := json.Unmarshal(body, &env); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    line, err := FormatLine(env)
    if err != nil {
        return err
    }
    if err := os.MkdirAll(logDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(logDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders env as a single human-friendly log line ending in "\n".
func FormatLine(env Envelope) (string, error) {
    switch env.Kind {
    case "reservation.confirmed", "reservation.cancelled", "reservation.refunded":
        var r ReservationPayload
        if err := json.Unmarshal(env.Payload, &r); err != nil {
            return "", fmt.Errorf("decode %s: %w", env.Kind, err)
        }
        return fmt.Sprintf("[%s] %s | reservation_id=%s | requester_id=%s | event_id=%s | status=%s | total=%d cents | seats=%s\n",
            env.OccurredAt, env.Kind, r.ID, r.RequesterID, r.EventID, r.Status, r.TotalAmountCents, joinSeats(r.Seats)), nil
    case "waitlist.promoted":
        var p PromotionPayload
        if err := json.Unmarshal(env.Payload, &p); err != nil {
            return "", fmt.Errorf("decode %s: %w", env.Kind, err)
        }
        return fmt.Sprintf("[%s] %s | requester_id=%s | event_id=%s | reservation_id=%s | seats=%s\n",
            env.OccurredAt, env.Kind, p.Entry.RequesterID, p.Reservation.EventID, p.Reservation.ID, joinSeats(p.Reservation.Seats)), nil
    case "payment.refund_required":
        var p RefundRequiredPayload
        if err := json.Unmarshal(env.Payload, &p); err != nil {
            return "", fmt.Errorf("decode %s: %w", env.Kind, err)
        }
        return fmt.Sprintf("[%s] %s | attempt_id=%s | requester_id=%s | event_id=%s | amount=%d cents | method=%s | seats=%s\n",
            env.OccurredAt, env.Kind, p.AttemptID, p.RequesterID, p.EventID, p.AmountCents, p.Method, joinSeats(p.Seats)), nil
    default:
        return "", fmt.Errorf("unknown event kind %q", env.Kind)
    }
}

func joinSeats(seats []SeatID) string {
    labels := make([]string, 0, len(seats))
    for _, s := range seats {
        labels = append(labels, string(s))
    }
    return "[" + strings.Join(labels, ",") + "]"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
