// Package projection derives read-only stock views from a catalog and
// ledger snapshot. Nothing here touches storage; every function is a pure
// computation over its arguments.
package projection

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// Snapshot is the catalog and ledger state a projection is computed from.
type Snapshot struct {
	Products  []models.Product
	Movements []models.Movement
}

// one is the factor of the plain low-stock report.
var one = decimal.NewFromInt(1)

type Status string

const (
	StatusOutOfStock Status = "out_of_stock"
	StatusLow        Status = "low"
	StatusGood       Status = "good"
)

// CurrentQuantity is sum(IN) - sum(OUT) for the product. It is not clamped:
// a negative result means the ledger recorded more out than in.
func CurrentQuantity(movements []models.Movement, productID int64) int64 {
	var q int64
	for _, m := range movements {
		if m.ProductID == productID {
			q += m.Signed()
		}
	}
	return q
}

// Quantities computes the current quantity of every product that appears in
// the ledger. Products without movements are absent and read as zero.
func Quantities(movements []models.Movement) map[int64]int64 {
	q := make(map[int64]int64)
	for _, m := range movements {
		q[m.ProductID] += m.Signed()
	}
	return q
}

func StockStatus(current, minStock int64) Status {
	switch {
	case current <= 0:
		return StatusOutOfStock
	case current <= minStock:
		return StatusLow
	default:
		return StatusGood
	}
}

// StockLevel is a product together with its derived stock state.
type StockLevel struct {
	Product  models.Product `json:"product"`
	Quantity int64          `json:"current_quantity"`
	Status   Status         `json:"status"`
	// Deficit is MinStock - Quantity; negative when above the threshold.
	Deficit int64 `json:"deficit"`
}

func levelOf(p models.Product, qty int64) StockLevel {
	return StockLevel{
		Product:  p,
		Quantity: qty,
		Status:   StockStatus(qty, p.MinStock),
		Deficit:  p.MinStock - qty,
	}
}

// Levels returns one StockLevel per catalog product, in catalog order.
func Levels(s Snapshot) []StockLevel {
	q := Quantities(s.Movements)
	levels := make([]StockLevel, len(s.Products))
	for i, p := range s.Products {
		levels[i] = levelOf(p, q[p.ID])
	}
	return levels
}

// Level computes the stock state of a single product.
func Level(p models.Product, movements []models.Movement) StockLevel {
	return levelOf(p, CurrentQuantity(movements, p.ID))
}

// LowStockReport lists products whose quantity is at or below
// MinStock*factor, most critical first. A factor of one gives the plain
// low-stock report; larger factors widen it into a watch list.
func LowStockReport(s Snapshot, factor decimal.Decimal) []StockLevel {
	report := []StockLevel{}
	for _, l := range Levels(s) {
		limit := decimal.NewFromInt(l.Product.MinStock).Mul(factor)
		if decimal.NewFromInt(l.Quantity).LessThanOrEqual(limit) {
			report = append(report, l)
		}
	}

	sort.SliceStable(report, func(i, j int) bool {
		a, b := report[i], report[j]
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		return byName(a.Product, b.Product)
	})
	return report
}

// byName is the tie-break used by every ordered report.
func byName(a, b models.Product) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
