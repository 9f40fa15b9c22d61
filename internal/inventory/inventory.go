// Package inventory serves the read side of the booking system: movies,
// their scheduled shows and the live seat map of a show.  It never
// mutates seat state; lock and booking writes go through reservation.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/model"
)

var (
	ErrMovieNotFound = errors.New("movie not found")
	ErrShowNotFound  = errors.New("show not found")
)

// Catalog is the storage contract behind the listing endpoints.
type Catalog interface {
	ListMovies(ctx context.Context) ([]model.Movie, error)
	GetMovie(ctx context.Context, id uint64) (model.Movie, error)
	ListShowsByMovie(ctx context.Context, movieID uint64) ([]model.Show, error)
	GetShow(ctx context.Context, id uint64) (model.Show, error)
	ListSeatsByShow(ctx context.Context, showID uint64) ([]model.Seat, error)
}

// Scheduler creates movies and shows.  Scheduling a show creates one
// AVAILABLE seat per (row, number) labelled A1, A2, ..., B1, ...
type Scheduler interface {
	CreateMovie(ctx context.Context, m model.Movie) (model.Movie, error)
	CreateShowWithSeats(ctx context.Context, s model.Show, rows, perRow int) (model.Show, error)
}

// Service wraps a Catalog with lazy lock expiry on the seat map.
type Service struct {
	catalog Catalog
	clock   clock.Clock
}

func NewService(c Catalog, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{catalog: c, clock: clk}
}

func (s *Service) Movies(ctx context.Context) ([]model.Movie, error) {
	return s.catalog.ListMovies(ctx)
}

// ShowsForMovie lists the shows of a movie, or ErrMovieNotFound.
func (s *Service) ShowsForMovie(ctx context.Context, movieID uint64) ([]model.Show, error) {
	if _, err := s.catalog.GetMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.catalog.ListShowsByMovie(ctx, movieID)
}

func (s *Service) Show(ctx context.Context, id uint64) (model.Show, error) {
	return s.catalog.GetShow(ctx, id)
}

// SeatMap returns every seat of the show as clients see it now.  A seat
// whose lock has lapsed is reported AVAILABLE whether or not the reaper
// has reclaimed it.
func (s *Service) SeatMap(ctx context.Context, showID uint64) ([]model.SeatView, error) {
	if _, err := s.catalog.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	seats, err := s.catalog.ListSeatsByShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]model.SeatView, 0, len(seats))
	for _, seat := range seats {
		out = append(out, seat.View(now))
	}
	return out, nil
}

// DemoMovie is one entry of the seed catalog.
type DemoMovie struct {
	Movie    model.Movie
	Theatres []string
}

// Demo is the catalog loaded by --seed and cmd/seed.
var Demo = []DemoMovie{
	{
		Movie:    model.Movie{Title: "The Long Night", Description: "A lighthouse keeper waits out a storm.", DurationMins: 118, Rating: "PG-13"},
		Theatres: []string{"Hall 1", "Hall 3"},
	},
	{
		Movie:    model.Movie{Title: "Paper Moons", Description: "Two cartographers map a city that keeps moving.", DurationMins: 104, Rating: "PG"},
		Theatres: []string{"Hall 2"},
	},
	{
		Movie:    model.Movie{Title: "Signal Lost", Description: "A satellite engineer races a failing orbit.", DurationMins: 131, Rating: "R"},
		Theatres: []string{"Hall 1", "Hall 2"},
	},
}

// Seed schedules the demo catalog starting the day after now.  Each
// theatre gets two shows, at 18:00 and 21:00 UTC, with rows x perRow
// seats.
func Seed(ctx context.Context, s Scheduler, now time.Time, rows, perRow int) (int, error) {
	day := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	shows := 0
	for _, d := range Demo {
		m, err := s.CreateMovie(ctx, d.Movie)
		if err != nil {
			return shows, err
		}
		for _, theatre := range d.Theatres {
			for _, hour := range []int{18, 21} {
				show := model.Show{MovieID: m.ID, Theatre: theatre, StartsAt: day.Add(time.Duration(hour) * time.Hour)}
				if _, err := s.CreateShowWithSeats(ctx, show, rows, perRow); err != nil {
					return shows, err
				}
				shows++
			}
		}
	}
	return shows, nil
}
