package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Statements are executed one at a time; the driver does not enable
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title         VARCHAR(255) NOT NULL,
		description   TEXT NOT NULL,
		duration_mins INT NOT NULL DEFAULT 0,
		rating        VARCHAR(16) NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS shows (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		movie_id   BIGINT UNSIGNED NOT NULL,
		theatre    VARCHAR(128) NOT NULL,
		starts_at  DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_shows_movie_starts (movie_id, starts_at),
		CONSTRAINT fk_shows_movie FOREIGN KEY (movie_id) REFERENCES movies (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS show_seats (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		show_id         BIGINT UNSIGNED NOT NULL,
		label           VARCHAR(16) NOT NULL,
		status          ENUM('AVAILABLE','LOCKED','SOLD') NOT NULL DEFAULT 'AVAILABLE',
		holder_id       VARCHAR(128) NULL,
		locked_at       DATETIME(6) NULL,
		lock_expires_at DATETIME(6) NULL,
		UNIQUE KEY uq_show_seats_show_label (show_id, label),
		KEY idx_show_seats_lock_expiry (status, lock_expires_at),
		CONSTRAINT fk_show_seats_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id              CHAR(36) PRIMARY KEY,
		show_id         BIGINT UNSIGNED NOT NULL,
		seat_id         BIGINT UNSIGNED NOT NULL,
		holder_id       VARCHAR(128) NOT NULL,
		idempotency_key VARCHAR(255) NOT NULL,
		status          ENUM('CONFIRMED') NOT NULL DEFAULT 'CONFIRMED',
		created_at      DATETIME(6) NOT NULL,
		UNIQUE KEY uq_bookings_show_seat (show_id, seat_id),
		UNIQUE KEY uq_bookings_idempotency_key (idempotency_key),
		KEY idx_bookings_holder (holder_id),
		CONSTRAINT fk_bookings_seat FOREIGN KEY (seat_id) REFERENCES show_seats (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
