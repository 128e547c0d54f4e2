package inventory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/cache"
	"github.com/rogerio-castellano/stock-ledger/internal/db"
	"github.com/rogerio-castellano/stock-ledger/internal/events"
	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	pub   *recordingPublisher
	admin *auth.Session
	guest *auth.Session
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	d := db.NewTestDB(t)
	users := repo.NewSQLUserRepository(d)
	ctx := context.Background()

	admin, err := users.CreateUser(ctx, models.User{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	guest, err := users.CreateUser(ctx, models.User{Username: "guest", PasswordHash: "x", Role: models.RoleGuest})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewService(
		repo.NewSQLProductRepository(d),
		repo.NewSQLMovementRepository(d),
		cache.NewMemoryProjectionCache(time.Minute),
		pub,
		metrics.New(),
		zerolog.Nop(),
	)
	return fixture{
		svc:   svc,
		pub:   pub,
		admin: &auth.Session{UserID: admin.ID, Username: admin.Username, Role: models.RoleAdmin},
		guest: &auth.Session{UserID: guest.ID, Username: guest.Username, Role: models.RoleGuest},
	}
}

func (f fixture) product(t *testing.T, name string, minStock int64) models.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), f.admin, ProductInput{Name: name, Unit: "pcs", MinStock: minStock})
	require.NoError(t, err)
	return p
}

func (f fixture) move(t *testing.T, productID int64, dir models.Direction, qty int64, date time.Time) models.Movement {
	t.Helper()
	m, err := f.svc.AppendMovement(context.Background(), f.admin, MovementInput{ProductID: productID, Direction: dir, Quantity: qty, Date: &date})
	require.NoError(t, err)
	return m
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t.Add(12 * time.Hour)
}

func TestRolesAreEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, f.guest, ProductInput{Name: "Pen", Unit: "pcs"})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.CreateProduct(ctx, nil, ProductInput{Name: "Pen", Unit: "pcs"})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	p := f.product(t, "Pen", 1)
	_, err = f.svc.AppendMovement(ctx, f.guest, MovementInput{ProductID: p.ID, Direction: models.DirectionIn, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.Usage(ctx, f.guest, day("2024-01-01"), day("2024-01-02"))
	assert.ErrorIs(t, err, models.ErrForbidden)

	// readers may list and view the dashboard
	_, err = f.svc.ListProducts(ctx, f.guest)
	assert.NoError(t, err)
	_, err = f.svc.Dashboard(ctx, f.guest)
	assert.NoError(t, err)
}

func TestProductLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "  Pen ", 5)
	assert.Equal(t, "Pen", p.Name)

	updated, err := f.svc.UpdateProduct(ctx, f.admin, p.ID, ProductInput{Name: "Blue pen", Unit: "box", MinStock: 2})
	require.NoError(t, err)
	assert.Equal(t, "Blue pen", updated.Name)

	_, err = f.svc.UpdateProduct(ctx, f.admin, p.ID, ProductInput{Name: "", Unit: "box"})
	ve, ok := models.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "name", ve.Errors[0].Field)

	f.move(t, p.ID, models.DirectionIn, 3, day("2024-01-01"))
	err = f.svc.DeleteProduct(ctx, f.admin, p.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	detail, err := f.svc.GetProduct(ctx, f.guest, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.Quantity)
	assert.Equal(t, int64(1), detail.MovementCount)
	assert.Equal(t, projection.StatusGood, detail.Status)

	other := f.product(t, "Eraser", 0)
	require.NoError(t, f.svc.DeleteProduct(ctx, f.admin, other.ID))
	_, err = f.svc.GetProduct(ctx, f.admin, other.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, []string{
		events.TypeProductCreated,
		events.TypeProductUpdated,
		events.TypeMovementAppended,
		events.TypeProductCreated,
		events.TypeProductDeleted,
	}, f.pub.types())
}

func TestAppendMovementRaisesLowStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Pen", 5)

	f.move(t, p.ID, models.DirectionIn, 10, day("2024-01-01"))
	f.move(t, p.ID, models.DirectionOut, 3, day("2024-01-02"))
	assert.NotContains(t, f.pub.types(), events.TypeLowStock)

	m := f.move(t, p.ID, models.DirectionOut, 4, day("2024-01-03"))
	assert.Equal(t, "admin", m.CreatedByName)
	assert.Equal(t, f.admin.UserID, m.CreatedBy)

	f.pub.mu.Lock()
	last := f.pub.events[len(f.pub.events)-1]
	f.pub.mu.Unlock()
	assert.Equal(t, events.TypeLowStock, last.Type)
	require.NotNil(t, last.CurrentQuantity)
	assert.Equal(t, int64(3), *last.CurrentQuantity)
}

func TestOverdrawIsAllowed(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Pen", 0)

	f.move(t, p.ID, models.DirectionOut, 4, day("2024-01-01"))

	detail, err := f.svc.GetProduct(context.Background(), f.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), detail.Quantity)
	assert.Equal(t, projection.StatusOutOfStock, detail.Status)
}

func TestAppendMovementRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", 0)

	_, err := f.svc.AppendMovement(ctx, f.admin, MovementInput{ProductID: p.ID, Direction: models.DirectionIn, Quantity: 0})
	_, ok := models.IsValidation(err)
	assert.True(t, ok)

	_, err = f.svc.AppendMovement(ctx, f.admin, MovementInput{ProductID: p.ID + 100, Direction: models.DirectionIn, Quantity: 1})
	_, ok = models.IsValidation(err)
	assert.True(t, ok)
}

func TestRemoveMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", 0)
	m := f.move(t, p.ID, models.DirectionIn, 7, day("2024-01-01"))

	require.NoError(t, f.svc.RemoveMovement(ctx, f.admin, m.ID))
	assert.ErrorIs(t, f.svc.RemoveMovement(ctx, f.admin, m.ID), models.ErrNotFound)

	detail, err := f.svc.GetProduct(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), detail.Quantity)
}

func TestListMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pen := f.product(t, "Pen", 0)
	ink := f.product(t, "Ink", 0)
	f.move(t, pen.ID, models.DirectionIn, 1, day("2024-01-01"))
	f.move(t, ink.ID, models.DirectionIn, 2, day("2024-01-02"))
	f.move(t, pen.ID, models.DirectionOut, 1, day("2024-01-03"))

	limit := 2
	page, total, err := f.svc.ListMovements(ctx, f.guest, repo.MovementFilter{Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.True(t, day("2024-01-03").Equal(page[0].Date))

	out := models.DirectionOut
	page, total, err = f.svc.ListMovements(ctx, f.guest, repo.MovementFilter{ProductID: &pen.ID, Direction: &out})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(1), page[0].Quantity)

	zero := 0
	_, _, err = f.svc.ListMovements(ctx, f.guest, repo.MovementFilter{Limit: &zero})
	_, ok := models.IsValidation(err)
	assert.True(t, ok)
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	widget := f.product(t, "Widget", 20)
	f.move(t, widget.ID, models.DirectionIn, 100, day("2024-01-01"))
	f.move(t, widget.ID, models.DirectionOut, 30, day("2024-01-02"))
	f.move(t, widget.ID, models.DirectionOut, 60, day("2024-01-02"))

	low, err := f.svc.LowStock(ctx, f.admin, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, int64(10), low[0].Quantity)
	assert.Equal(t, projection.StatusLow, low[0].Status)

	usage, err := f.svc.Usage(ctx, f.admin, day("2024-01-02"), day("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, int64(90), usage[0].TotalOut)
	assert.True(t, decimal.NewFromInt(2700).Equal(usage[0].MonthlyAverage), usage[0].MonthlyAverage.String())

	_, err = f.svc.Usage(ctx, f.admin, day("2024-01-03"), day("2024-01-02"))
	_, ok := models.IsValidation(err)
	assert.True(t, ok)

	forecast, err := f.svc.Forecast(ctx, f.admin, 0)
	require.NoError(t, err)
	require.Len(t, forecast, 1)
	// 10 on hand at 45 per movement
	assert.Equal(t, "0.2", forecast[0].DaysUntilDepletion.String())
	assert.Equal(t, projection.SeverityCritical, forecast[0].Severity)

	rows, err := f.svc.MovementReport(ctx, f.admin, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDashboardIsCachedUntilChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", 1)

	d, err := f.svc.Dashboard(ctx, f.guest)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalProducts)
	assert.Equal(t, 0, d.TotalMovements)

	d, err = f.svc.Dashboard(ctx, f.guest)
	require.NoError(t, err)
	assert.Equal(t, 0, d.TotalMovements)

	f.move(t, p.ID, models.DirectionIn, 5, day("2024-01-01"))

	d, err = f.svc.Dashboard(ctx, f.guest)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalMovements)
	assert.Equal(t, int64(5), d.TotalItems)
}

// interleavedMovements runs onRead once, right after the first ledger read,
// to simulate a write committing while a projection is being built.
type interleavedMovements struct {
	repo.MovementRepository
	once   sync.Once
	onRead func()
}

func (m *interleavedMovements) GetAll(ctx context.Context) ([]models.Movement, error) {
	all, err := m.MovementRepository.GetAll(ctx)
	m.once.Do(m.onRead)
	return all, err
}

func TestDashboardBuiltDuringWriteIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", 1)
	f.move(t, p.ID, models.DirectionIn, 10, day("2024-01-01"))

	f.svc.movements = &interleavedMovements{
		MovementRepository: f.svc.movements,
		onRead: func() {
			f.move(t, p.ID, models.DirectionIn, 5, day("2024-01-02"))
		},
	}

	d, err := f.svc.Dashboard(ctx, f.guest)
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.TotalItems)

	d, err = f.svc.Dashboard(ctx, f.guest)
	require.NoError(t, err)
	assert.Equal(t, int64(15), d.TotalItems)
	assert.Equal(t, 2, d.TotalMovements)
}

func TestSearchProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bolt := f.product(t, "Bolt", 10)
	nut := f.product(t, "Nut", 5)
	f.product(t, "Washer", 0)
	f.move(t, bolt.ID, models.DirectionIn, 4, day("2024-01-01"))
	f.move(t, nut.ID, models.DirectionIn, 50, day("2024-01-01"))

	levels, total, err := f.svc.SearchProducts(ctx, f.guest, ProductFilter{Status: projection.StatusLow})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, levels, 1)
	assert.Equal(t, "Bolt", levels[0].Product.Name)

	minQty := int64(1)
	levels, total, err = f.svc.SearchProducts(ctx, f.guest, ProductFilter{MinQty: &minQty})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, levels, 2)

	levels, total, err = f.svc.SearchProducts(ctx, f.guest, ProductFilter{Name: " u "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Nut", levels[0].Product.Name)

	offset, limit := 1, 1
	levels, total, err = f.svc.SearchProducts(ctx, f.guest, ProductFilter{Offset: &offset, Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, levels, 1)
	assert.Equal(t, "Nut", levels[0].Product.Name)

	offset = 10
	levels, total, err = f.svc.SearchProducts(ctx, f.guest, ProductFilter{Offset: &offset})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, levels)

	maxQty := int64(0)
	_, _, err = f.svc.SearchProducts(ctx, f.guest, ProductFilter{Status: "empty", MinQty: &minQty, MaxQty: &maxQty})
	ve, ok := models.IsValidation(err)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 2)

	_, _, err = f.svc.SearchProducts(ctx, nil, ProductFilter{})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestImportProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "Pen", 1)

	csv := "name,unit,min_stock,description\n" +
		"Pen,box,9,updated\n" +
		"Ink,bottle,2,\n" +
		",pcs,1,\n" +
		"Paper,ream,abc,\n"

	res, err := f.svc.ImportProducts(ctx, f.admin, strings.NewReader(csv), ImportSkip)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "row 2", res.Errors[0].Field)
	assert.Equal(t, "row 4", res.Errors[1].Field)
	assert.Equal(t, "row 5", res.Errors[2].Field)

	res, err = f.svc.ImportProducts(ctx, f.admin, strings.NewReader(csv), ParseImportMode("UPDATE"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 0, res.Created)

	levels, err := f.svc.ListProducts(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Ink", levels[0].Product.Name)
	assert.Equal(t, int64(9), levels[1].Product.MinStock)

	_, err = f.svc.ImportProducts(ctx, f.admin, strings.NewReader("name,price\nPen,1\n"), ImportSkip)
	_, ok := models.IsValidation(err)
	assert.True(t, ok)
}

func TestExportMovementsIgnoresPagination(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Pen", 0)
	for i := 1; i <= 3; i++ {
		f.move(t, p.ID, models.DirectionIn, int64(i), day("2024-01-01"))
	}

	limit := 1
	all, err := f.svc.ExportMovements(context.Background(), f.guest, repo.MovementFilter{Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
