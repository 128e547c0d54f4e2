package repo

import (
	"context"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// ProductRepository is the catalog store.
type ProductRepository interface {
	Create(ctx context.Context, p models.Product) (models.Product, error)
	Update(ctx context.Context, p models.Product) (models.Product, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (models.Product, error)
	GetByName(ctx context.Context, name string) (models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
}
