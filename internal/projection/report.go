package projection

import (
	"sort"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// MovementReportRow aggregates one product and direction within a range.
type MovementReportRow struct {
	ProductID     int64            `json:"product_id"`
	ProductName   string           `json:"product_name"`
	Direction     models.Direction `json:"type"`
	TotalQuantity int64            `json:"total_quantity"`
	MovementCount int64            `json:"movement_count"`
}

// MovementReport totals movements per product and direction for the days
// from start to end inclusive. Only combinations that occurred are listed,
// ordered by product name and then direction.
func MovementReport(s Snapshot, start, end time.Time) []MovementReportRow {
	names := make(map[int64]string, len(s.Products))
	for _, p := range s.Products {
		names[p.ID] = p.Name
	}

	type key struct {
		product   int64
		direction models.Direction
	}
	index := make(map[key]int)
	rows := []MovementReportRow{}
	for _, m := range s.Movements {
		if !InDayRange(m.Date, start, end) {
			continue
		}
		k := key{m.ProductID, m.Direction}
		i, ok := index[k]
		if !ok {
			name, known := names[m.ProductID]
			if !known {
				name = m.ProductName
			}
			rows = append(rows, MovementReportRow{ProductID: m.ProductID, ProductName: name, Direction: m.Direction})
			i = len(rows) - 1
			index[k] = i
		}
		rows[i].TotalQuantity += m.Quantity
		rows[i].MovementCount++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Direction < b.Direction
	})
	return rows
}
