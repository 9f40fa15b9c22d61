package model

import (
	"strconv"
	"time"
)

// Movie is a film that can be scheduled into shows.
type Movie struct {
	ID           uint64    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	DurationMins int       `json:"duration_mins" db:"duration_mins"`
	Rating       string    `json:"rating" db:"rating"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Show is a scheduled screening of a movie at a theatre.
type Show struct {
	ID        uint64    `json:"id" db:"id"`
	MovieID   uint64    `json:"movie_id" db:"movie_id"`
	Theatre   string    `json:"theatre" db:"theatre"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RowLabel converts a zero-based row index to a spreadsheet style label
// (0 → A, 25 → Z, 26 → AA).  Negative indices yield "".
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// SeatLabel returns the human readable label for a seat, e.g. row 0,
// number 10 → "A10".  Seat numbers start at 1.
func SeatLabel(row, number int) string {
	return RowLabel(row) + strconv.Itoa(number)
}

// SeatLabels lays out rows*perRow labels in row-major order.
func SeatLabels(rows, perRow int) []string {
	if rows <= 0 || perRow <= 0 {
		return nil
	}
	out := make([]string, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		for n := 1; n <= perRow; n++ {
			out = append(out, SeatLabel(r, n))
		}
	}
	return out
}
