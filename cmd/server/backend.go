package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/memstore"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

// backend is the set of stores the service runs on.
type backend struct {
	locks       reservation.SeatLockStore
	ledger      reservation.BookingLedger
	idempotency reservation.IdempotencyStore
	catalog     inventory.Catalog
	scheduler   inventory.Scheduler
	purgers     []reservation.Purger
	checks      []handler.Check
	close       func()
}

func openBackend(ctx context.Context, cfg config.Config, rdb *redis.Client, log logrus.FieldLogger, migrate bool) (*backend, error) {
	var b *backend
	switch cfg.StoreBackend {
	case config.StoreMemory:
		st := memstore.New(clock.System{})
		b = &backend{
			locks:       st.Seats,
			ledger:      st.Ledger,
			idempotency: st.Idempotency,
			catalog:     st.Catalog,
			scheduler:   st.Catalog,
			purgers:     []reservation.Purger{st.Idempotency},
			close:       func() {},
		}
		log.Warn("memory store: bookings are lost on restart")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if migrate {
			if err := database.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated")
		}
		inv := repository.NewInventoryRepo(db)
		mem := memstore.NewIdempotencyCache(clock.System{})
		b = &backend{
			locks:       repository.NewSeatLockRepo(db),
			ledger:      repository.NewBookingRepo(db),
			idempotency: mem,
			catalog:     inv,
			scheduler:   inv,
			purgers:     []reservation.Purger{mem},
			checks:      []handler.Check{pingDB(db)},
			close:       func() { _ = db.Close() },
		}
	}

	if rdb != nil {
		b.idempotency = cache.NewIdempotencyStore(rdb, cache.DefaultPrefix)
		b.purgers = nil
		b.checks = append(b.checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return b, nil
}

func pingDB(db *sqlx.DB) handler.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
