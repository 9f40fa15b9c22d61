// Command seed schedules the demo catalog (movies, shows and their seats)
// into MySQL.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

func main() {
	rows := pflag.Int("rows", 8, "seat rows per show")
	perRow := pflag.Int("per-row", 12, "seats per row")
	migrate := pflag.Bool("migrate", true, "apply the schema first")
	pflag.Parse()

	_ = godotenv.Load()
	_ = os.Setenv("STORE_BACKEND", config.StoreMySQL)
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("open database")
	}
	defer db.Close()

	if *migrate {
		if err := database.Migrate(ctx, db); err != nil {
			logrus.WithError(err).Fatal("migrate")
		}
	}

	n, err := inventory.Seed(ctx, repository.NewInventoryRepo(db), time.Now(), *rows, *perRow)
	if err != nil {
		logrus.WithError(err).WithField("shows", n).Fatal("seed failed")
	}
	logrus.WithFields(logrus.Fields{
		"movies":         len(inventory.Demo),
		"shows":          n,
		"seats_per_show": *rows * *perRow,
	}).Info("seed complete")
}
