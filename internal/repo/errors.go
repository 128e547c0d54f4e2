package repo

import (
	"fmt"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

var (
	ErrProductNotFound     = fmt.Errorf("product %w", models.ErrNotFound)
	ErrMovementNotFound    = fmt.Errorf("movement %w", models.ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", models.ErrNotFound)
	ErrUsernameTaken       = fmt.Errorf("username already exists: %w", models.ErrConflict)
	ErrProductHasMovements = fmt.Errorf("product has stock movements: %w", models.ErrConflict)
)

func storageErr(op string, err error) error {
	return &models.StorageError{Op: op, Err: err}
}

// stamp normalises timestamps before they reach storage so that both
// dialects compare them consistently.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// dayBounds turns an inclusive [start, end] day range into a half-open
// [from, to) timestamp range in UTC.
func dayBounds(start, end time.Time) (time.Time, time.Time) {
	s := start.UTC()
	e := end.UTC()
	from := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return from, to
}
