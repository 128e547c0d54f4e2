package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// AppendMovementHandler godoc
// @Summary Record a stock movement
// @Description Appends an IN or OUT entry to the ledger. OUT movements may take stock below zero.
// @Tags movements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param movement body MovementRequest true "Movement to record"
// @Success 201 {object} models.Movement
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /movements [post]
func (s *Server) AppendMovementHandler(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := inventory.MovementInput{
		ProductID: req.ProductID,
		Direction: models.Direction(strings.ToLower(strings.TrimSpace(req.Type))),
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	}
	if strings.TrimSpace(req.Date) != "" {
		date, err := parseDate(strings.TrimSpace(req.Date))
		if err != nil {
			s.writeError(w, r, badRequest("date", err.Error()))
			return
		}
		in.Date = &date
	}

	m, err := s.inventory.AppendMovement(r.Context(), auth.SessionFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, m)
}

// RemoveMovementHandler godoc
// @Summary Remove a stock movement
// @Tags movements
// @Security BearerAuth
// @Param id path int true "Movement ID"
// @Success 204 "Removed"
// @Failure 400 {object} ErrorsResponse
// @Failure 404 {string} string "Not found"
// @Router /movements/{id} [delete]
func (s *Server) RemoveMovementHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.inventory.RemoveMovement(r.Context(), auth.SessionFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMovementsHandler godoc
// @Summary List stock movements, newest first
// @Tags movements
// @Produce json
// @Security BearerAuth
// @Param product_id query int false "Filter by product"
// @Param type query string false "Filter by type (in|out)"
// @Param since query string false "Filter movements from this day (YYYY-MM-DD or RFC3339)"
// @Param until query string false "Filter movements until this day (YYYY-MM-DD or RFC3339)"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {object} MovementsSearchResult
// @Failure 400 {object} ErrorsResponse
// @Router /movements [get]
func (s *Server) GetMovementsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	movements, total, err := s.inventory.ListMovements(r.Context(), auth.SessionFrom(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	s.respond(w, http.StatusOK, MovementsSearchResult{Data: movements, Meta: Meta{TotalCount: total}})
}

// ExportMovementsHandler godoc
// @Summary Export stock movements
// @Tags movements
// @Produce text/csv, application/json
// @Security BearerAuth
// @Param format query string true "Export format (csv or json)"
// @Param product_id query int false "Filter by product"
// @Param type query string false "Filter by type (in|out)"
// @Param since query string false "Filter from day (YYYY-MM-DD or RFC3339)"
// @Param until query string false "Filter until day (YYYY-MM-DD or RFC3339)"
// @Success 200 {file} file
// @Failure 400 {object} ErrorsResponse
// @Router /movements/export [get]
func (s *Server) ExportMovementsHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "csv" && format != "json" {
		s.writeError(w, r, badRequest("format", "format must be 'csv' or 'json'"))
		return
	}

	filter, err := movementFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	movements, err := s.inventory.ExportMovements(r.Context(), auth.SessionFrom(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch format {
	case "json":
		if movements == nil {
			movements = []models.Movement{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="movements.json"`)
		if err := json.NewEncoder(w).Encode(movements); err != nil {
			s.log.Warn().Err(err).Msg("failed to write movements export")
		}

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="movements.csv"`)

		csvWriter := csv.NewWriter(w)
		_ = csvWriter.Write([]string{"id", "product_id", "product_name", "type", "quantity", "date", "notes", "created_by"})
		for _, m := range movements {
			_ = csvWriter.Write([]string{
				strconv.FormatInt(m.ID, 10),
				strconv.FormatInt(m.ProductID, 10),
				m.ProductName,
				string(m.Direction),
				strconv.FormatInt(m.Quantity, 10),
				m.Date.UTC().Format(time.RFC3339),
				m.Notes,
				m.CreatedByName,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			s.log.Warn().Err(err).Msg("failed to write movements export")
		}
	}
}
