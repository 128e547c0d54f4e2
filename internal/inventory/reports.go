package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
)

const dashboardKey = "dashboard"

// Dashboard is served from the projection cache when a fresh copy exists.
func (s *Service) Dashboard(ctx context.Context, session *auth.Session) (projection.Dashboard, error) {
	if err := requireReader(session); err != nil {
		return projection.Dashboard{}, err
	}

	var d projection.Dashboard
	hit, err := s.cache.Get(ctx, dashboardKey, &d)
	if err != nil {
		s.log.Warn().Err(err).Msg("projection cache read failed")
	}
	s.metrics.CacheLookup(hit)
	if hit {
		return d, nil
	}

	// The generation is read before the snapshot so a write that lands
	// while the dashboard is built keeps it out of the cache.
	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.log.Warn().Err(genErr).Msg("projection cache read failed")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return projection.Dashboard{}, err
	}
	d = projection.BuildDashboard(snap)
	if genErr == nil {
		if err := s.cache.Set(ctx, gen, dashboardKey, d); err != nil {
			s.log.Warn().Err(err).Msg("projection cache write failed")
		}
	}
	return d, nil
}

// LowStock lists products at or below MinStock*factor. A zero factor means
// the plain report (factor one).
func (s *Service) LowStock(ctx context.Context, session *auth.Session, factor decimal.Decimal) ([]projection.StockLevel, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return nil, err
	}
	if factor.IsZero() {
		factor = decimal.NewFromInt(1)
	}
	if factor.IsNegative() {
		return nil, models.NewValidationError(models.FieldError{Field: "factor", Description: "factor must be positive"})
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return projection.LowStockReport(snap, factor), nil
}

func validateRange(start, end time.Time) error {
	var errs []models.FieldError
	if start.IsZero() {
		errs = append(errs, models.FieldError{Field: "start", Description: "start date is required"})
	}
	if end.IsZero() {
		errs = append(errs, models.FieldError{Field: "end", Description: "end date is required"})
	}
	if len(errs) == 0 && end.Before(start) {
		errs = append(errs, models.FieldError{Field: "end", Description: "end date must not be before start date"})
	}
	return models.NewValidationError(errs...)
}

func (s *Service) Usage(ctx context.Context, session *auth.Session, start, end time.Time) ([]projection.UsageRow, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return projection.UsageReport(snap, start, end), nil
}

// MovementReport totals movements per product and direction in a range.
// Only the movements in range are loaded.
func (s *Service) MovementReport(ctx context.Context, session *auth.Session, start, end time.Time) ([]projection.MovementReportRow, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	movements, err := s.movements.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	products, err := s.products.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return projection.MovementReport(projection.Snapshot{Products: products, Movements: movements}, start, end), nil
}

func (s *Service) Forecast(ctx context.Context, session *auth.Session, topN int) ([]projection.Forecast, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return nil, err
	}
	if topN < 0 {
		return nil, models.NewValidationError(models.FieldError{Field: "top", Description: "top must be zero or positive"})
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return projection.DepletionForecast(snap, topN), nil
}
