package handlers

import (
	"net/http"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
)

const maxImportBytes = 10 << 20

// ImportProductsHandler godoc
// @Summary Import products via CSV
// @Description Columns: name, unit, min_stock and optionally description.
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param mode query string false "Import mode (skip|update)"
// @Success 200 {object} inventory.ImportResult
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /products/import [post]
// @Security BearerAuth
func (s *Server) ImportProductsHandler(w http.ResponseWriter, r *http.Request) {
	mode := inventory.ParseImportMode(r.URL.Query().Get("mode"))

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, badRequest("file", "missing file"))
		return
	}
	defer file.Close()

	result, err := s.inventory.ImportProducts(r.Context(), auth.SessionFrom(r.Context()), file, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}
