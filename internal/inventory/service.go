// Package inventory is the entry point for every catalog, ledger and report
// operation. Each method checks the caller's role before touching storage.
package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/cache"
	"github.com/rogerio-castellano/stock-ledger/internal/events"
	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

type Service struct {
	products  repo.ProductRepository
	movements repo.MovementRepository
	cache     cache.ProjectionCache
	events    events.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(
	products repo.ProductRepository,
	movements repo.MovementRepository,
	projections cache.ProjectionCache,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	if projections == nil {
		projections = cache.NopProjectionCache{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		products:  products,
		movements: movements,
		cache:     projections,
		events:    publisher,
		metrics:   m,
		log:       logger,
		now:       time.Now,
	}
}

// snapshot reads the whole catalog and ledger. The two reads are not
// isolated from concurrent writes; a report may miss a movement appended in
// between.
func (s *Service) snapshot(ctx context.Context) (projection.Snapshot, error) {
	products, err := s.products.GetAll(ctx)
	if err != nil {
		return projection.Snapshot{}, err
	}
	movements, err := s.movements.GetAll(ctx)
	if err != nil {
		return projection.Snapshot{}, err
	}
	return projection.Snapshot{Products: products, Movements: movements}, nil
}

// changed runs after every successful write.
func (s *Service) changed(ctx context.Context, ev events.Event) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("could not invalidate projection cache")
	}
	s.publish(ctx, ev)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Type).Msg("could not publish event")
	}
}

func actor(session *auth.Session) string {
	if session == nil {
		return ""
	}
	return session.Username
}

// requireReader admits any authenticated user.
func requireReader(session *auth.Session) error {
	return auth.Require(session, models.RoleGuest)
}
