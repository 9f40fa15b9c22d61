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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/reservation"
	"github.com/iliyamo/showtime-booking/internal/router"
)

func main() {
	store := pflag.String("store", "", "storage backend: mysql or memory (overrides STORE_BACKEND)")
	migrate := pflag.Bool("migrate", false, "apply the MySQL schema before serving")
	seed := pflag.Bool("seed", false, "schedule the demo catalog before serving")
	seedRows := pflag.Int("seed-rows", 8, "seat rows per seeded show")
	seedPerRow := pflag.Int("seed-per-row", 12, "seats per row in seeded shows")
	pflag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	if *store != "" {
		_ = os.Setenv("STORE_BACKEND", *store)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, options{migrate: *migrate, seed: *seed, rows: *seedRows, perRow: *seedPerRow}); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

type options struct {
	migrate bool
	seed    bool
	rows    int
	perRow  int
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProd() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger, opts options) error {
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting and response caching disabled, idempotency cache kept in memory")
	} else {
		defer rdb.Close()
	}

	b, err := openBackend(ctx, cfg, rdb, log, opts.migrate)
	if err != nil {
		return err
	}
	defer b.close()

	if opts.seed {
		n, err := inventory.Seed(ctx, b.scheduler, time.Now(), opts.rows, opts.perRow)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.WithField("shows", n).Info("demo catalog scheduled")
	}

	svcOpts := []reservation.Option{
		reservation.WithLockTTL(cfg.SeatLockTTL),
		reservation.WithIdempotencyTTL(cfg.IdempotencyTTL),
		reservation.WithIdempotencyStore(b.idempotency),
		reservation.WithLogger(log.WithField("component", "reservation")),
	}
	var publisher *queue.Publisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL, log.WithField("component", "publisher"))
		svcOpts = append(svcOpts, reservation.WithEventPublisher(publisher))
	} else {
		log.Info("AMQP_URL not set: booking events disabled")
	}
	svc := reservation.NewService(b.locks, b.ledger, svcOpts...)

	reaper := reservation.NewReaper(b.locks, cfg.ReaperInterval,
		reservation.ReaperLogger(log.WithField("component", "reaper")),
		reservation.ReaperPurgers(b.purgers...),
	)

	e := echo.New()
	e.HideBanner = true
	router.Use(e, log, cfg.HandlerTimeout)
	router.RegisterRoutes(e, handler.Health(b.checks...))
	router.RegisterPublic(e,
		handler.NewInventoryHandler(inventory.NewService(b.catalog, nil)),
		middleware.NewRedisCache(cfg.Cache, rdb),
	)
	router.RegisterReservation(e,
		handler.NewReservationHandler(svc),
		cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log.WithField("component", "ratelimit")),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreBackend}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reaper.Run(ctx)
	})
	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(ctx)
		})
	}
	if cfg.AMQPURL != "" {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogPath, log.WithField("component", "booking-consumer"))
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}

	return g.Wait()
}
