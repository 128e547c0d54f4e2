package projection

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// FallbackRate is the usage rate assumed for a product that has never had
// an OUT movement. It yields a large but finite forecast.
var FallbackRate = decimal.NewFromFloat(0.1)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityHealthy  Severity = "healthy"
)

// SeverityOf bands a depletion forecast: up to 7 days is critical, up to
// 14 is a warning, anything longer is healthy.
func SeverityOf(days decimal.Decimal) Severity {
	switch {
	case days.LessThanOrEqual(decimal.NewFromInt(7)):
		return SeverityCritical
	case days.LessThanOrEqual(decimal.NewFromInt(14)):
		return SeverityWarning
	default:
		return SeverityHealthy
	}
}

type Forecast struct {
	Product            models.Product  `json:"product"`
	Quantity           int64           `json:"current_quantity"`
	Rate               decimal.Decimal `json:"rate"`
	DaysUntilDepletion decimal.Decimal `json:"days_until_depletion"`
	Severity           Severity        `json:"severity"`

	exact decimal.Decimal
}

// DepletionForecast estimates the days left for each product with stock on
// hand as quantity / rate, where rate is the mean OUT quantity per OUT
// movement over the whole ledger. Products at or below zero are left out.
// Results are soonest first, truncated to topN (all when topN <= 0).
func DepletionForecast(s Snapshot, topN int) []Forecast {
	q := Quantities(s.Movements)
	stats := outStats(s.Movements)

	out := []Forecast{}
	for _, p := range s.Products {
		qty := q[p.ID]
		if qty <= 0 {
			continue
		}
		rate := FallbackRate
		if st, ok := stats[p.ID]; ok {
			rate = st.mean()
		}
		// banded on the exact figure; the rounded one is only for display
		exact := decimal.NewFromInt(qty).Div(rate)
		out = append(out, Forecast{
			Product:            p,
			Quantity:           qty,
			Rate:               rate.Round(2),
			DaysUntilDepletion: exact.Round(1),
			Severity:           SeverityOf(exact),
			exact:              exact,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].exact.Cmp(out[j].exact); c != 0 {
			return c < 0
		}
		return byName(out[i].Product, out[j].Product)
	})
	return truncate(out, topN)
}
