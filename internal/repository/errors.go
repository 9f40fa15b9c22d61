// Package repository is the MySQL backend: seat locks live on the
// show_seats rows, bookings in the bookings ledger table, and the movie
// catalog in movies and shows.  Domain outcomes are returned as the
// reservation and inventory sentinels; anything else is wrapped with
// reservation.StorageError.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-booking/internal/reservation"
)

const mysqlErrDuplicateEntry = 1062

// Unique indexes on bookings.  Their names appear in duplicate-entry
// messages and tell a lost seat race apart from a reused key.
const (
	keyBookingsShowSeat       = "uq_bookings_show_seat"
	keyBookingsIdempotencyKey = "uq_bookings_idempotency_key"
)

// duplicateKey reports whether err is a MySQL duplicate-entry error and,
// if so, the message naming the violated index.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
		return me.Message, true
	}
	return "", false
}

// classifyBookingInsert maps an INSERT INTO bookings failure to its
// business meaning.  Violations of unrelated indexes stay storage errors.
func classifyBookingInsert(err error) error {
	msg, ok := duplicateKey(err)
	if !ok {
		return reservation.StorageError("insert booking", err)
	}
	switch {
	case strings.Contains(msg, keyBookingsShowSeat):
		return reservation.ErrSeatAlreadyBooked
	case strings.Contains(msg, keyBookingsIdempotencyKey):
		return reservation.ErrDuplicateIdempotencyKey
	}
	return reservation.StorageError("insert booking", err)
}

// inTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
