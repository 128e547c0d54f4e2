package projection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

var thirtyDays = decimal.NewFromInt(30)

// UsageRow is the outbound usage of one product within a date range.
type UsageRow struct {
	Product        models.Product  `json:"product"`
	TotalOut       int64           `json:"total_out"`
	MovementCount  int64           `json:"movement_count"`
	MonthlyAverage decimal.Decimal `json:"monthly_average"`
}

// DaysBetween counts calendar days from start to end in UTC, never less
// than one so that a single-day range averages over one day.
func DaysBetween(start, end time.Time) int64 {
	s := truncateDay(start)
	e := truncateDay(end)
	days := int64(e.Sub(s).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InDayRange reports whether t falls on a day from start to end inclusive.
func InDayRange(t, start, end time.Time) bool {
	d := truncateDay(t)
	return !d.Before(truncateDay(start)) && !d.After(truncateDay(end))
}

// UsageReport sums OUT movements per product over [start, end] (inclusive,
// by day). Every catalog product gets a row; the monthly average is
// totalOut / DaysBetween * 30, rounded to one decimal. Rows are ordered by
// total usage, highest first.
func UsageReport(s Snapshot, start, end time.Time) []UsageRow {
	totals := make(map[int64]int64)
	counts := make(map[int64]int64)
	for _, m := range s.Movements {
		if m.Direction != models.DirectionOut || !InDayRange(m.Date, start, end) {
			continue
		}
		totals[m.ProductID] += m.Quantity
		counts[m.ProductID]++
	}

	span := decimal.NewFromInt(DaysBetween(start, end))
	rows := make([]UsageRow, 0, len(s.Products))
	for _, p := range s.Products {
		total := totals[p.ID]
		rows = append(rows, UsageRow{
			Product:        p,
			TotalOut:       total,
			MovementCount:  counts[p.ID],
			MonthlyAverage: decimal.NewFromInt(total).Div(span).Mul(thirtyDays).Round(1),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalOut != rows[j].TotalOut {
			return rows[i].TotalOut > rows[j].TotalOut
		}
		return byName(rows[i].Product, rows[j].Product)
	})
	return rows
}

// AverageRow is the mean OUT quantity per movement for one product.
type AverageRow struct {
	Product    models.Product  `json:"product"`
	AverageOut decimal.Decimal `json:"average_out"`
}

// AverageUsage ranks products by their mean OUT quantity per movement over
// the whole ledger, highest first, keeping at most topN rows (all when
// topN <= 0). Products without OUT movements average zero.
func AverageUsage(s Snapshot, topN int) []AverageRow {
	stats := outStats(s.Movements)
	rows := make([]AverageRow, 0, len(s.Products))
	for _, p := range s.Products {
		avg := decimal.Zero
		if st, ok := stats[p.ID]; ok {
			avg = st.mean()
		}
		rows = append(rows, AverageRow{Product: p, AverageOut: avg.Round(1)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].AverageOut.Cmp(rows[j].AverageOut); c != 0 {
			return c > 0
		}
		return byName(rows[i].Product, rows[j].Product)
	})
	return truncate(rows, topN)
}

type outStat struct {
	total int64
	count int64
}

func (s outStat) mean() decimal.Decimal {
	return decimal.NewFromInt(s.total).Div(decimal.NewFromInt(s.count))
}

func outStats(movements []models.Movement) map[int64]outStat {
	stats := make(map[int64]outStat)
	for _, m := range movements {
		if m.Direction != models.DirectionOut {
			continue
		}
		st := stats[m.ProductID]
		st.total += m.Quantity
		st.count++
		stats[m.ProductID] = st
	}
	return stats
}

func truncate[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
