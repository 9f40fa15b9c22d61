package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

const bookingColumns = `id, show_id, seat_id, holder_id, idempotency_key, status, created_at`

// BookingRepo implements reservation.BookingLedger on the bookings
// table.  Bookings are never updated or deleted.
type BookingRepo struct {
	db *sqlx.DB
}

var _ reservation.BookingLedger = (*BookingRepo)(nil)

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

func (r *BookingRepo) LookupByIdempotencyKey(ctx context.Context, key string) (model.Booking, bool, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, reservation.StorageError("lookup idempotency key", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, true, nil
}

// CommitBooking locks the seat row, inserts the booking and marks the
// seat SOLD in one transaction.  The seat row lock serialises commits
// for the same seat; the unique indexes on bookings back it up.
func (r *BookingRepo) CommitBooking(ctx context.Context, req reservation.CommitRequest) (model.Booking, error) {
	b := model.Booking{
		ID:             req.BookingID,
		ShowID:         req.ShowID,
		SeatID:         req.SeatID,
		HolderID:       req.HolderID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         model.BookingConfirmed,
		CreatedAt:      req.Now.UTC().Truncate(time.Microsecond),
	}
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		seat, err := selectSeatForUpdate(ctx, tx, req.SeatID)
		if err != nil {
			return err
		}
		if seat.ShowID != req.ShowID {
			return reservation.ErrSeatNotFound
		}
		if seat.Status == model.SeatSold {
			return reservation.ErrSeatAlreadyBooked
		}
		if cur, ok := seat.ActiveLock(req.Now); ok && cur.HolderID != req.HolderID {
			return reservation.ErrLockExpiredOrMissing
		}

		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO bookings (`+bookingColumns+`)
			 VALUES (:id, :show_id, :seat_id, :holder_id, :idempotency_key, :status, :created_at)`,
			b,
		)
		if err != nil {
			return classifyBookingInsert(err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE show_seats SET status = 'SOLD', holder_id = NULL, locked_at = NULL, lock_expires_at = NULL WHERE id = ?`,
			req.SeatID,
		)
		return err
	})
	if err != nil {
		return model.Booking{}, reservation.StorageError("commit booking", err)
	}
	return b, nil
}

func (r *BookingRepo) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, reservation.ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, reservation.StorageError("get booking", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}
