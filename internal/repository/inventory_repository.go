package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

const (
	movieColumns = `id, title, description, duration_mins, rating, created_at`
	showColumns  = `id, movie_id, theatre, starts_at, created_at`
)

// InventoryRepo reads and schedules movies, shows and their seats.
type InventoryRepo struct {
	db *sqlx.DB
}

var (
	_ inventory.Catalog   = (*InventoryRepo)(nil)
	_ inventory.Scheduler = (*InventoryRepo)(nil)
)

// NewInventoryRepo constructs an InventoryRepo given a DB handle.
func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

func (r *InventoryRepo) CreateMovie(ctx context.Context, m model.Movie) (model.Movie, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (title, description, duration_mins, rating) VALUES (?, ?, ?, ?)`,
		m.Title, m.Description, m.DurationMins, m.Rating,
	)
	if err != nil {
		return model.Movie{}, reservation.StorageError("create movie", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Movie{}, reservation.StorageError("create movie", err)
	}
	return r.GetMovie(ctx, uint64(id))
}

// CreateShowWithSeats inserts the show and its rows*perRow seats in one
// transaction.  The seats are inserted with a single multi-row INSERT.
func (r *InventoryRepo) CreateShowWithSeats(ctx context.Context, s model.Show, rows, perRow int) (model.Show, error) {
	var showID uint64
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM movies WHERE id = ?`, s.MovieID); err != nil {
			return err
		}
		if n == 0 {
			return inventory.ErrMovieNotFound
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO shows (movie_id, theatre, starts_at) VALUES (?, ?, ?)`,
			s.MovieID, s.Theatre, s.StartsAt.UTC(),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		showID = uint64(id)

		labels := model.SeatLabels(rows, perRow)
		if len(labels) == 0 {
			return nil
		}
		var sb strings.Builder
		sb.WriteString(`INSERT INTO show_seats (show_id, label, status) VALUES `)
		args := make([]interface{}, 0, len(labels)*2)
		for i, label := range labels {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, 'AVAILABLE')")
			args = append(args, showID, label)
		}
		_, err = tx.ExecContext(ctx, sb.String(), args...)
		return err
	})
	if err != nil {
		if errors.Is(err, inventory.ErrMovieNotFound) {
			return model.Show{}, inventory.ErrMovieNotFound
		}
		return model.Show{}, reservation.StorageError("create show", err)
	}
	return r.GetShow(ctx, showID)
}

func (r *InventoryRepo) ListMovies(ctx context.Context) ([]model.Movie, error) {
	movies := []model.Movie{}
	if err := r.db.SelectContext(ctx, &movies, `SELECT `+movieColumns+` FROM movies ORDER BY id`); err != nil {
		return nil, reservation.StorageError("list movies", err)
	}
	return movies, nil
}

func (r *InventoryRepo) GetMovie(ctx context.Context, id uint64) (model.Movie, error) {
	var m model.Movie
	err := r.db.GetContext(ctx, &m, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, inventory.ErrMovieNotFound
	}
	if err != nil {
		return model.Movie{}, reservation.StorageError("get movie", err)
	}
	return m, nil
}

// ListShowsByMovie returns the movie's shows ordered by start time.
func (r *InventoryRepo) ListShowsByMovie(ctx context.Context, movieID uint64) ([]model.Show, error) {
	shows := []model.Show{}
	err := r.db.SelectContext(ctx, &shows,
		`SELECT `+showColumns+` FROM shows WHERE movie_id = ? ORDER BY starts_at ASC, id ASC`, movieID)
	if err != nil {
		return nil, reservation.StorageError("list shows", err)
	}
	return shows, nil
}

func (r *InventoryRepo) GetShow(ctx context.Context, id uint64) (model.Show, error) {
	var s model.Show
	err := r.db.GetContext(ctx, &s, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Show{}, inventory.ErrShowNotFound
	}
	if err != nil {
		return model.Show{}, reservation.StorageError("get show", err)
	}
	return s, nil
}

// ListSeatsByShow returns the raw seat rows; lazy expiry is applied by
// the inventory service.
func (r *InventoryRepo) ListSeatsByShow(ctx context.Context, showID uint64) ([]model.Seat, error) {
	var rows []seatRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+seatColumns+` FROM show_seats WHERE show_id = ? ORDER BY id`, showID)
	if err != nil {
		return nil, reservation.StorageError("list seats", err)
	}
	seats := make([]model.Seat, 0, len(rows))
	for _, row := range rows {
		seat, err := row.toModel()
		if err != nil {
			return nil, reservation.StorageError("list seats", err)
		}
		seats = append(seats, seat)
	}
	return seats, nil
}
