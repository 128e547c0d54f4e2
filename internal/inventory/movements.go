package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/events"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

// MovementInput describes a movement to append. A nil Date records it now.
type MovementInput struct {
	ProductID int64
	Direction models.Direction
	Quantity  int64
	Notes     string
	Date      *time.Time
}

// AppendMovement records a movement for the caller. An OUT movement that
// leaves the product at or below its minimum stock raises a low stock alert.
func (s *Service) AppendMovement(ctx context.Context, session *auth.Session, in MovementInput) (models.Movement, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return models.Movement{}, err
	}

	m := models.Movement{
		ProductID: in.ProductID,
		Direction: in.Direction,
		Quantity:  in.Quantity,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedBy: session.UserID,
	}
	if in.Date != nil {
		m.Date = *in.Date
	}

	m, err := s.movements.Append(ctx, m)
	if err != nil {
		return models.Movement{}, err
	}
	m.CreatedByName = session.Username

	s.metrics.MovementRecorded(string(m.Direction))
	s.log.Info().
		Int64("movement_id", m.ID).
		Int64("product_id", m.ProductID).
		Str("type", string(m.Direction)).
		Int64("quantity", m.Quantity).
		Str("actor", actor(session)).
		Msg("movement recorded")
	s.changed(ctx, events.Event{
		Type:        events.TypeMovementAppended,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		MovementID:  m.ID,
		Direction:   string(m.Direction),
		Quantity:    m.Quantity,
		Actor:       actor(session),
	})

	if m.Direction == models.DirectionOut {
		s.checkLowStock(ctx, m.ProductID)
	}
	return m, nil
}

func (s *Service) checkLowStock(ctx context.Context, productID int64) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		s.log.Warn().Err(err).Int64("product_id", productID).Msg("could not load product for low stock check")
		return
	}
	history, _, err := s.movements.Filter(ctx, repo.MovementFilter{ProductID: &productID})
	if err != nil {
		s.log.Warn().Err(err).Int64("product_id", productID).Msg("could not load movements for low stock check")
		return
	}

	level := projection.Level(p, history)
	if level.Status == projection.StatusGood {
		return
	}

	s.metrics.LowStockAlert()
	s.log.Warn().
		Int64("product_id", p.ID).
		Str("name", p.Name).
		Int64("current_quantity", level.Quantity).
		Int64("min_stock", p.MinStock).
		Msg("product at or below minimum stock")
	s.publish(ctx, events.Event{
		Type:            events.TypeLowStock,
		ProductID:       p.ID,
		ProductName:     p.Name,
		CurrentQuantity: &level.Quantity,
		MinStock:        &p.MinStock,
	})
}

func (s *Service) RemoveMovement(ctx context.Context, session *auth.Session, id int64) error {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return err
	}

	m, err := s.movements.Remove(ctx, id)
	if err != nil {
		return err
	}

	s.metrics.MovementRemoved(string(m.Direction))
	s.log.Info().Int64("movement_id", id).Int64("product_id", m.ProductID).Str("actor", actor(session)).Msg("movement removed")
	s.changed(ctx, events.Event{
		Type:        events.TypeMovementRemoved,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		MovementID:  m.ID,
		Direction:   string(m.Direction),
		Quantity:    m.Quantity,
		Actor:       actor(session),
	})
	return nil
}

// ListMovements returns a page of the ledger, newest first, and the total
// number of movements matching the filter.
func (s *Service) ListMovements(ctx context.Context, session *auth.Session, f repo.MovementFilter) ([]models.Movement, int, error) {
	if err := requireReader(session); err != nil {
		return nil, 0, err
	}
	if err := validateFilter(f); err != nil {
		return nil, 0, err
	}
	return s.movements.Filter(ctx, f)
}

func validateFilter(f repo.MovementFilter) error {
	var errs []models.FieldError
	if f.Limit != nil && *f.Limit <= 0 {
		errs = append(errs, models.FieldError{Field: "limit", Description: "limit must be greater than zero"})
	}
	if f.Offset != nil && *f.Offset < 0 {
		errs = append(errs, models.FieldError{Field: "offset", Description: "offset must be zero or positive"})
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		errs = append(errs, models.FieldError{Field: "until", Description: "until must not be before since"})
	}
	return models.NewValidationError(errs...)
}

// ExportMovements returns every movement matching the filter, ignoring
// pagination.
func (s *Service) ExportMovements(ctx context.Context, session *auth.Session, f repo.MovementFilter) ([]models.Movement, error) {
	f.Offset, f.Limit = nil, nil
	movements, _, err := s.ListMovements(ctx, session, f)
	return movements, err
}
