package inventory

import (
	"context"
	"strings"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/events"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

// ProductInput holds the editable product fields.
type ProductInput struct {
	Name        string
	Description string
	Unit        string
	MinStock    int64
}

func (in ProductInput) product(id int64) models.Product {
	return models.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Unit:        strings.TrimSpace(in.Unit),
		MinStock:    in.MinStock,
	}
}

func (s *Service) CreateProduct(ctx context.Context, session *auth.Session, in ProductInput) (models.Product, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return models.Product{}, err
	}

	p, err := s.products.Create(ctx, in.product(0))
	if err != nil {
		return models.Product{}, err
	}

	s.log.Info().Int64("product_id", p.ID).Str("name", p.Name).Str("actor", actor(session)).Msg("product created")
	s.changed(ctx, events.Event{Type: events.TypeProductCreated, ProductID: p.ID, ProductName: p.Name, MinStock: &p.MinStock, Actor: actor(session)})
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, session *auth.Session, id int64, in ProductInput) (models.Product, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return models.Product{}, err
	}

	p, err := s.products.Update(ctx, in.product(id))
	if err != nil {
		return models.Product{}, err
	}

	s.log.Info().Int64("product_id", p.ID).Str("actor", actor(session)).Msg("product updated")
	s.changed(ctx, events.Event{Type: events.TypeProductUpdated, ProductID: p.ID, ProductName: p.Name, MinStock: &p.MinStock, Actor: actor(session)})
	return p, nil
}

// DeleteProduct removes a product that has no movements. Products with
// history fail with repo.ErrProductHasMovements.
func (s *Service) DeleteProduct(ctx context.Context, session *auth.Session, id int64) error {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("product_id", id).Str("actor", actor(session)).Msg("product deleted")
	s.changed(ctx, events.Event{Type: events.TypeProductDeleted, ProductID: id, Actor: actor(session)})
	return nil
}

// ProductDetail is a product with its stock state and ledger size.
type ProductDetail struct {
	projection.StockLevel
	MovementCount int64 `json:"movement_count"`
}

func (s *Service) GetProduct(ctx context.Context, session *auth.Session, id int64) (ProductDetail, error) {
	if err := requireReader(session); err != nil {
		return ProductDetail{}, err
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return ProductDetail{}, err
	}
	history, _, err := s.movements.Filter(ctx, repo.MovementFilter{ProductID: &id})
	if err != nil {
		return ProductDetail{}, err
	}
	return ProductDetail{StockLevel: projection.Level(p, history), MovementCount: int64(len(history))}, nil
}

// ListProducts returns the catalog by name with current quantities.
func (s *Service) ListProducts(ctx context.Context, session *auth.Session) ([]projection.StockLevel, error) {
	if err := requireReader(session); err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return projection.Levels(snap), nil
}

// ProductFilter narrows a catalog search. Nil bounds are open and an empty
// Status matches every state.
type ProductFilter struct {
	Name   string
	Status projection.Status
	MinQty *int64
	MaxQty *int64
	Offset *int
	Limit  *int
}

func validateProductFilter(f ProductFilter) error {
	var errs []models.FieldError
	switch f.Status {
	case "", projection.StatusOutOfStock, projection.StatusLow, projection.StatusGood:
	default:
		errs = append(errs, models.FieldError{Field: "status", Description: "status must be out_of_stock, low or good"})
	}
	if f.MinQty != nil && f.MaxQty != nil && *f.MaxQty < *f.MinQty {
		errs = append(errs, models.FieldError{Field: "max_qty", Description: "max_qty must not be below min_qty"})
	}
	if f.Limit != nil && *f.Limit <= 0 {
		errs = append(errs, models.FieldError{Field: "limit", Description: "limit must be greater than zero"})
	}
	if f.Offset != nil && *f.Offset < 0 {
		errs = append(errs, models.FieldError{Field: "offset", Description: "offset must be zero or positive"})
	}
	return models.NewValidationError(errs...)
}

func (f ProductFilter) matches(l projection.StockLevel) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(l.Product.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.MinQty != nil && l.Quantity < *f.MinQty {
		return false
	}
	if f.MaxQty != nil && l.Quantity > *f.MaxQty {
		return false
	}
	return true
}

// SearchProducts filters the catalog on name and current stock and returns
// one page of matches plus the total number of matches.
func (s *Service) SearchProducts(ctx context.Context, session *auth.Session, f ProductFilter) ([]projection.StockLevel, int, error) {
	if err := requireReader(session); err != nil {
		return nil, 0, err
	}
	f.Name = strings.TrimSpace(f.Name)
	if err := validateProductFilter(f); err != nil {
		return nil, 0, err
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, 0, err
	}
	matches := []projection.StockLevel{}
	for _, l := range projection.Levels(snap) {
		if f.matches(l) {
			matches = append(matches, l)
		}
	}

	total := len(matches)
	start := 0
	if f.Offset != nil {
		start = min(*f.Offset, total)
	}
	end := total
	if f.Limit != nil {
		end = min(start+*f.Limit, total)
	}
	return matches[start:end], total, nil
}
