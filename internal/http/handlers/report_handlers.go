package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
)

// GetDashboardHandler godoc
// @Summary Dashboard summary
// @Description Totals, low stock, recent movements, top usage and depletion forecast.
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} projection.Dashboard
// @Failure 401 {string} string "Unauthorized"
// @Router /dashboard [get]
func (s *Server) GetDashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.inventory.Dashboard(r.Context(), auth.SessionFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, d)
}

// LowStockReportHandler godoc
// @Summary Products at or below minimum stock
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param factor query number false "Threshold multiplier (default 1; 1.2 also lists products within 20% of their minimum)"
// @Success 200 {array} projection.StockLevel
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /reports/low-stock [get]
func (s *Server) LowStockReportHandler(w http.ResponseWriter, r *http.Request) {
	factor := decimal.NewFromInt(1)
	if raw := strings.TrimSpace(r.URL.Query().Get("factor")); raw != "" {
		f, err := decimal.NewFromString(raw)
		if err != nil {
			s.writeError(w, r, badRequest("factor", "invalid factor"))
			return
		}
		factor = f
	}

	rows, err := s.inventory.LowStock(r.Context(), auth.SessionFrom(r.Context()), factor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, rows)
}

// UsageReportHandler godoc
// @Summary Outbound usage per product within a date range
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {array} projection.UsageRow
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /reports/usage [get]
func (s *Server) UsageReportHandler(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, err := s.inventory.Usage(r.Context(), auth.SessionFrom(r.Context()), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, rows)
}

// ForecastReportHandler godoc
// @Summary Days until each product runs out
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param top query int false "Keep only the N soonest (all when omitted)"
// @Success 200 {array} projection.Forecast
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /reports/forecast [get]
func (s *Server) ForecastReportHandler(w http.ResponseWriter, r *http.Request) {
	top, err := queryInt(r, "top")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n := 0
	if top != nil {
		n = *top
	}

	rows, err := s.inventory.Forecast(r.Context(), auth.SessionFrom(r.Context()), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, rows)
}

// MovementReportHandler godoc
// @Summary Movement totals per product and type within a date range
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {array} projection.MovementReportRow
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /reports/movements [get]
func (s *Server) MovementReportHandler(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, err := s.inventory.MovementReport(r.Context(), auth.SessionFrom(r.Context()), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, rows)
}
