package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

// seatRow mirrors a show_seats row.  The lock columns are NULL unless
// the seat is LOCKED.
type seatRow struct {
	ID            uint64         `db:"id"`
	ShowID        uint64         `db:"show_id"`
	Label         string         `db:"label"`
	Status        string         `db:"status"`
	HolderID      sql.NullString `db:"holder_id"`
	LockedAt      sql.NullTime   `db:"locked_at"`
	LockExpiresAt sql.NullTime   `db:"lock_expires_at"`
}

const seatColumns = `id, show_id, label, status, holder_id, locked_at, lock_expires_at`

// toModel rejects a status outside the AVAILABLE/LOCKED/SOLD enum.
func (r seatRow) toModel() (model.Seat, error) {
	s := model.Seat{ID: r.ID, ShowID: r.ShowID, Label: r.Label, Status: model.SeatStatus(r.Status)}
	if !s.Status.Valid() {
		return model.Seat{}, fmt.Errorf("seat %d: unknown status %q", r.ID, r.Status)
	}
	if s.Status == model.SeatLocked && r.HolderID.Valid && r.LockExpiresAt.Valid {
		s.Lock = &model.Lock{
			SeatID:    r.ID,
			HolderID:  r.HolderID.String,
			CreatedAt: r.LockedAt.Time.UTC(),
			ExpiresAt: r.LockExpiresAt.Time.UTC(),
		}
	}
	return s, nil
}

// selectSeatForUpdate reads a seat and holds its row lock until tx ends.
// Concurrent writers on the same seat serialise here; other seats are
// unaffected.
func selectSeatForUpdate(ctx context.Context, tx *sqlx.Tx, seatID uint64) (model.Seat, error) {
	var row seatRow
	err := tx.GetContext(ctx, &row, `SELECT `+seatColumns+` FROM show_seats WHERE id = ? FOR UPDATE`, seatID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, reservation.ErrSeatNotFound
	}
	if err != nil {
		return model.Seat{}, err
	}
	return row.toModel()
}

// SeatLockRepo implements reservation.SeatLockStore on show_seats.
type SeatLockRepo struct {
	db *sqlx.DB
}

var _ reservation.SeatLockStore = (*SeatLockRepo)(nil)

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sqlx.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// AcquireLock locks the seat row, checks its state and writes the new
// lock columns in one transaction.  Timestamps are stored in UTC with
// microsecond precision.
func (r *SeatLockRepo) AcquireLock(ctx context.Context, seatID uint64, holderID string, now time.Time, ttl time.Duration) (model.Lock, error) {
	var lock model.Lock
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		seat, err := selectSeatForUpdate(ctx, tx, seatID)
		if err != nil {
			return err
		}
		if seat.Status == model.SeatSold {
			return reservation.ErrSeatUnavailable
		}
		if cur, ok := seat.ActiveLock(now); ok && cur.HolderID != holderID {
			return reservation.ErrSeatLocked
		}
		lock = model.NewLock(seatID, holderID, now.Truncate(time.Microsecond), ttl)
		_, err = tx.ExecContext(ctx,
			`UPDATE show_seats SET status = 'LOCKED', holder_id = ?, locked_at = ?, lock_expires_at = ? WHERE id = ?`,
			lock.HolderID, lock.CreatedAt, lock.ExpiresAt, seatID,
		)
		return err
	})
	if err != nil {
		return model.Lock{}, reservation.StorageError("acquire lock", err)
	}
	return lock, nil
}

func (r *SeatLockRepo) ValidateLock(ctx context.Context, seatID uint64, holderID string, now time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM show_seats WHERE id = ? AND status = 'LOCKED' AND holder_id = ? AND lock_expires_at > ?`,
		seatID, holderID, now.UTC(),
	)
	if err != nil {
		return false, reservation.StorageError("validate lock", err)
	}
	return n > 0, nil
}

// ReleaseLock clears the lock columns only when holderID owns them.
func (r *SeatLockRepo) ReleaseLock(ctx context.Context, seatID uint64, holderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE show_seats SET status = 'AVAILABLE', holder_id = NULL, locked_at = NULL, lock_expires_at = NULL
		 WHERE id = ? AND status = 'LOCKED' AND holder_id = ?`,
		seatID, holderID,
	)
	return reservation.StorageError("release lock", err)
}

// ReclaimExpired resets every lapsed lock in a single statement.  Rows
// that were re-locked or sold since the reaper last looked no longer
// match the predicate.
func (r *SeatLockRepo) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE show_seats SET status = 'AVAILABLE', holder_id = NULL, locked_at = NULL, lock_expires_at = NULL
		 WHERE status = 'LOCKED' AND lock_expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, reservation.StorageError("reclaim expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, reservation.StorageError("reclaim expired", err)
	}
	return int(n), nil
}

func (r *SeatLockRepo) GetSeat(ctx context.Context, seatID uint64) (model.Seat, error) {
	var row seatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+seatColumns+` FROM show_seats WHERE id = ?`, seatID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, reservation.ErrSeatNotFound
	}
	if err != nil {
		return model.Seat{}, reservation.StorageError("get seat", err)
	}
	seat, err := row.toModel()
	return seat, reservation.StorageError("get seat", err)
}
