package payment

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation/internal/reservation"
)

const (
	// DefaultIdempotencyTTL keeps finished charge outcomes around for retries.
	DefaultIdempotencyTTL = 24 * time.Hour
	// DefaultProcessingTTL bounds how long an unfinished charge blocks its key.
	DefaultProcessingTTL = 60 * time.Second

	statusProcessing = "processing"
)

// ErrChargeInProgress is returned when another caller is charging the same attempt.
var ErrChargeInProgress = errors.New("charge in progress")

// RedisClient is the subset of go-redis used for idempotency records.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotentConfig configures Idempotent.
type IdempotentConfig struct {
	Prefix        string
	TTL           time.Duration
	ProcessingTTL time.Duration
}

// Idempotent wraps a gateway so that each AttemptID is charged at most
// once, even across coordinator retries or process restarts sharing the
// same Redis. The first caller marks the key as processing with SETNX
// and stores the final outcome; later callers replay it.
//
// If Redis is unreachable the charge passes straight through.
type Idempotent struct {
	next reservation.PaymentGateway
	rdb  RedisClient
	cfg  IdempotentConfig
	log  *zap.Logger
}

// NewIdempotent wraps next. A nil rdb returns next unchanged.
func NewIdempotent(next reservation.PaymentGateway, rdb RedisClient, cfg IdempotentConfig, log *zap.Logger) reservation.PaymentGateway {
	if rdb == nil {
		return next
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "payment:attempt"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = DefaultProcessingTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Idempotent{next: next, rdb: rdb, cfg: cfg, log: log.Named("payment.idempotency")}
}

// Charge implements reservation.PaymentGateway.
func (p *Idempotent) Charge(ctx context.Context, req reservation.ChargeRequest) (reservation.PaymentOutcome, error) {
	key := p.cfg.Prefix + ":" + req.AttemptID
	acquired, err := p.rdb.SetNX(ctx, key, statusProcessing, p.cfg.ProcessingTTL).Result()
	if err != nil {
		p.log.Warn("idempotency store unavailable, charging directly", zap.Error(err))
		return p.next.Charge(ctx, req)
	}
	if !acquired {
		return p.replay(ctx, key)
	}

	outcome, err := p.next.Charge(ctx, req)
	if err != nil {
		// Leave no record so a retry can charge again.
		_ = p.rdb.Del(context.WithoutCancel(ctx), key).Err()
		return outcome, err
	}
	if err := p.rdb.Set(context.WithoutCancel(ctx), key, outcome.String(), p.cfg.TTL).Err(); err != nil {
		p.log.Warn("failed to store charge outcome",
			zap.String("attempt_id", req.AttemptID),
			zap.Error(err),
		)
	}
	return outcome, nil
}

func (p *Idempotent) replay(ctx context.Context, key string) (reservation.PaymentOutcome, error) {
	v, err := p.rdb.Get(ctx, key).Result()
	if err != nil {
		return reservation.PaymentError, err
	}
	switch v {
	case reservation.PaymentSuccess.String():
		return reservation.PaymentSuccess, nil
	case reservation.PaymentDeclined.String():
		return reservation.PaymentDeclined, nil
	case statusProcessing:
		return reservation.PaymentError, ErrChargeInProgress
	default:
		return reservation.PaymentError, nil
	}
}
