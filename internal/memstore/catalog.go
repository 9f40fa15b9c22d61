package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// Catalog holds movies and shows in memory and creates their seats in
// a SeatStore.
type Catalog struct {
	seats *SeatStore

	mu        sync.RWMutex
	movies    map[uint64]model.Movie
	shows     map[uint64]model.Show
	nextMovie uint64
	nextShow  uint64
}

var (
	_ inventory.Catalog   = (*Catalog)(nil)
	_ inventory.Scheduler = (*Catalog)(nil)
)

func NewCatalog(seats *SeatStore) *Catalog {
	return &Catalog{
		seats:  seats,
		movies: make(map[uint64]model.Movie),
		shows:  make(map[uint64]model.Show),
	}
}

func (c *Catalog) CreateMovie(_ context.Context, m model.Movie) (model.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextMovie++
	m.ID = c.nextMovie
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	c.movies[m.ID] = m
	return m, nil
}

func (c *Catalog) CreateShowWithSeats(_ context.Context, s model.Show, rows, perRow int) (model.Show, error) {
	c.mu.Lock()
	if _, ok := c.movies[s.MovieID]; !ok {
		c.mu.Unlock()
		return model.Show{}, inventory.ErrMovieNotFound
	}
	c.nextShow++
	s.ID = c.nextShow
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	c.shows[s.ID] = s
	c.mu.Unlock()

	c.seats.AddSeats(s.ID, model.SeatLabels(rows, perRow))
	return s, nil
}

func (c *Catalog) ListMovies(_ context.Context) ([]model.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Movie, 0, len(c.movies))
	for _, m := range c.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) GetMovie(_ context.Context, id uint64) (model.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.movies[id]
	if !ok {
		return model.Movie{}, inventory.ErrMovieNotFound
	}
	return m, nil
}

func (c *Catalog) ListShowsByMovie(_ context.Context, movieID uint64) ([]model.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []model.Show{}
	for _, s := range c.shows {
		if s.MovieID == movieID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Catalog) GetShow(_ context.Context, id uint64) (model.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shows[id]
	if !ok {
		return model.Show{}, inventory.ErrShowNotFound
	}
	return s, nil
}

func (c *Catalog) ListSeatsByShow(_ context.Context, showID uint64) ([]model.Seat, error) {
	return c.seats.ListByShow(showID), nil
}
