package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

// productFilter reads name, status, min_qty, max_qty, offset and limit.
func productFilter(r *http.Request) (inventory.ProductFilter, error) {
	q := r.URL.Query()
	f := inventory.ProductFilter{
		Name:   q.Get("name"),
		Status: projection.Status(strings.ToLower(strings.TrimSpace(q.Get("status")))),
	}
	var errs []models.FieldError
	collect := func(err error) {
		if ve, ok := models.IsValidation(err); ok {
			errs = append(errs, ve.Errors...)
		}
	}

	bound := func(name string) *int64 {
		v, err := queryInt(r, name)
		if err != nil || v == nil {
			collect(err)
			return nil
		}
		n := int64(*v)
		return &n
	}
	f.MinQty = bound("min_qty")
	f.MaxQty = bound("max_qty")

	var err error
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		collect(err)
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		collect(err)
	}

	return f, models.NewValidationError(errs...)
}

// movementFilter reads product, type, since, until, offset and limit from
// the query string, collecting every malformed parameter.
func movementFilter(r *http.Request) (repo.MovementFilter, error) {
	var (
		f    repo.MovementFilter
		errs []models.FieldError
	)
	collect := func(err error) {
		if ve, ok := models.IsValidation(err); ok {
			errs = append(errs, ve.Errors...)
		}
	}

	if v, err := queryInt(r, "product_id"); err != nil {
		collect(err)
	} else if v != nil {
		id := int64(*v)
		f.ProductID = &id
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		d, err := models.ParseDirection(raw)
		if err != nil {
			collect(err)
		} else {
			f.Direction = &d
		}
	}

	var err error
	if f.Since, err = queryDate(r, "since"); err != nil {
		collect(err)
	}
	if f.Until, err = queryDate(r, "until"); err != nil {
		collect(err)
	} else if f.Until != nil && len(strings.TrimSpace(r.URL.Query().Get("until"))) == len(time.DateOnly) {
		// a bare day includes all of it
		endOfDay := f.Until.Add(24*time.Hour - time.Second)
		f.Until = &endOfDay
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		collect(err)
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		collect(err)
	}

	return f, models.NewValidationError(errs...)
}

// dateRange reads the required start and end query parameters.
func dateRange(r *http.Request) (start, end time.Time, err error) {
	var errs []models.FieldError
	for _, name := range []string{"start", "end"} {
		t, err := queryDate(r, name)
		switch {
		case err != nil:
			ve, _ := models.IsValidation(err)
			errs = append(errs, ve.Errors...)
		case t == nil:
			errs = append(errs, models.FieldError{Field: name, Description: name + " date is required"})
		case name == "start":
			start = *t
		default:
			end = *t
		}
	}
	return start, end, models.NewValidationError(errs...)
}
