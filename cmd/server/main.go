package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-reservation/internal/config"
	"github.com/iliyamo/seat-reservation/internal/database"
	"github.com/iliyamo/seat-reservation/internal/handler"
	"github.com/iliyamo/seat-reservation/internal/middleware"
	"github.com/iliyamo/seat-reservation/internal/payment"
	"github.com/iliyamo/seat-reservation/internal/queue"
	"github.com/iliyamo/seat-reservation/internal/repository"
	"github.com/iliyamo/seat-reservation/internal/reservation"
	"github.com/iliyamo/seat-reservation/internal/router"
	"github.com/iliyamo/seat-reservation/internal/service"
	"github.com/iliyamo/seat-reservation/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}

	rc := cfg.Reservation
	var catalog reservation.CatalogProvider = repository.GridCatalog{
		Rows:        rc.GridRows,
		SeatsPerRow: rc.GridSeatsPerRow,
		PriceCents:  rc.PriceCents,
		VIPRows:     rc.VIPRows,
	}
	if cfg.HasDB() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		catalog = repository.NewCatalogRepo(db)
		log.Info("using MySQL catalog", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	} else {
		log.Info("using generated seat grid", zap.Int("rows", rc.GridRows), zap.Int("seats_per_row", rc.GridSeatsPerRow))
	}

	notifiers := service.Multi{service.NewLogNotifier(log)}
	if cfg.RabbitURL != "" {
		amqpNotifier := service.NewAMQPNotifier(cfg.RabbitURL, 0, log)
		defer amqpNotifier.Close()
		notifiers = append(notifiers, amqpNotifier)
	}

	var payments reservation.PaymentGateway = payment.NewSimulated(log, rc.DeclinedMethods...)
	if rdb != nil {
		payments = payment.NewIdempotent(payments, rdb, payment.IdempotentConfig{}, log)
	}

	registry := reservation.NewRegistry(reservation.PoolOptions{Lease: rc.LeaseTTL, Logger: log})
	coord := reservation.NewCoordinator(registry, payments, notifiers, reservation.Options{
		SeatTimeout: rc.SeatTimeout,
		BookTimeout: rc.BookTimeout,
		Logger:      log,
	})
	for _, id := range rc.ProvisionEvents {
		if _, err := registry.Provision(ctx, id, catalog); err != nil {
			return fmt.Errorf("provision event %s: %w", id, err)
		}
		log.Info("event provisioned", zap.String("event_id", id))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log))

	var cache, limiter echo.MiddlewareFunc
	if rdb != nil {
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	}
	events := handler.NewEventHandler(coord, catalog, log)
	router.RegisterRoutes(e)
	router.RegisterPublic(e, events, cache)
	router.RegisterCustomer(e, handler.NewReservationHandler(coord, log), cfg.JWTSecret, limiter)
	router.RegisterOwner(e, events, cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)

	sweeper := worker.NewLeaseSweeper(registry, worker.LeaseSweeperConfig{Interval: rc.SweepInterval}, log)
	if err := sweeper.Start(gctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	if cfg.ConsumerEnabled && cfg.RabbitURL != "" {
		g.Go(func() error {
			err := queue.StartEventConsumer(gctx, queue.ConsumerConfig{URL: cfg.RabbitURL, LogDir: cfg.LogDir}, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	addr := ":" + cfg.Port
	g.Go(func() error {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.Env == "prod" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build(zap.Fields(zap.String("service", "seat-reservation")))
}
