package repo

import (
	"context"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// MovementRepository is the ledger store. Movements are appended or
// removed, never edited.
type MovementRepository interface {
	Append(ctx context.Context, m models.Movement) (models.Movement, error)
	Remove(ctx context.Context, id int64) (models.Movement, error)
	GetByID(ctx context.Context, id int64) (models.Movement, error)
	GetAll(ctx context.Context) ([]models.Movement, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]models.Movement, error)
	Filter(ctx context.Context, f MovementFilter) ([]models.Movement, int, error)
}

// MovementFilter narrows a movement listing. Nil fields are ignored.
type MovementFilter struct {
	ProductID *int64
	Direction *models.Direction
	Since     *time.Time
	Until     *time.Time
	Offset    *int
	Limit     *int
}
