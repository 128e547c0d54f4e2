package projection

import (
	"sort"
	"time"
)

const dashboardTop = 5

// Dashboard is the landing page summary.
type Dashboard struct {
	TotalProducts   int              `json:"total_products"`
	TotalItems      int64            `json:"total_items"`
	TotalMovements  int              `json:"total_movements"`
	LowStockCount   int              `json:"low_stock_count"`
	MostMoved       *MostMoved       `json:"most_moved,omitempty"`
	RecentMovements []RecentMovement `json:"recent_movements"`
	LowStock        []StockLevel     `json:"low_stock"`
	TopUsage        []AverageRow     `json:"top_usage"`
	Forecast        []Forecast       `json:"forecast"`
}

// MostMoved is the product with the most ledger entries.
type MostMoved struct {
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	MovementCount int64  `json:"movement_count"`
}

// RecentMovement is a ledger entry as shown on the dashboard.
type RecentMovement struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	Type        string `json:"type"`
	Quantity    int64  `json:"quantity"`
	Date        string `json:"date"`
	Notes       string `json:"notes,omitempty"`
	Username    string `json:"username"`
}

// BuildDashboard summarises a snapshot. Movements are expected newest first,
// as the ledger lists them.
func BuildDashboard(s Snapshot) Dashboard {
	d := Dashboard{
		TotalProducts:  len(s.Products),
		TotalMovements: len(s.Movements),
		LowStock:       LowStockReport(s, one),
		TopUsage:       AverageUsage(s, dashboardTop),
		Forecast:       DepletionForecast(s, dashboardTop),
	}
	d.LowStockCount = len(d.LowStock)

	for _, l := range Levels(s) {
		d.TotalItems += l.Quantity
	}

	recent := s.Movements
	if len(recent) > dashboardTop {
		recent = recent[:dashboardTop]
	}
	d.RecentMovements = make([]RecentMovement, len(recent))
	for i, m := range recent {
		d.RecentMovements[i] = RecentMovement{
			ID:          m.ID,
			ProductName: m.ProductName,
			Type:        string(m.Direction),
			Quantity:    m.Quantity,
			Date:        m.Date.Format(time.RFC3339),
			Notes:       m.Notes,
			Username:    m.CreatedByName,
		}
	}

	d.MostMoved = mostMoved(s)
	return d
}

func mostMoved(s Snapshot) *MostMoved {
	counts := make(map[int64]int64)
	for _, m := range s.Movements {
		counts[m.ProductID]++
	}
	if len(counts) == 0 {
		return nil
	}

	candidates := make([]MostMoved, 0, len(s.Products))
	for _, p := range s.Products {
		if n := counts[p.ID]; n > 0 {
			candidates = append(candidates, MostMoved{ProductID: p.ID, ProductName: p.Name, MovementCount: n})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.MovementCount != b.MovementCount {
			return a.MovementCount > b.MovementCount
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.ProductID < b.ProductID
	})
	return &candidates[0]
}
