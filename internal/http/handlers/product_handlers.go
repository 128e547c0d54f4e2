package handlers

import (
	"net/http"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
)

func (req ProductRequest) input() inventory.ProductInput {
	return inventory.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		MinStock:    req.MinStock,
	}
}

// CreateProductHandler godoc
// @Summary Create a new product
// @Description Adds a product to the catalog. Stock starts at zero.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product body ProductRequest true "Product to add"
// @Success 201 {object} models.Product
// @Failure 400 {object} ErrorsResponse
// @Failure 403 {string} string "Forbidden"
// @Router /products [post]
func (s *Server) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.inventory.CreateProduct(r.Context(), auth.SessionFrom(r.Context()), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, created)
}

// GetProductsHandler godoc
// @Summary List all products with current stock
// @Tags products
// @Produce json
// @Security BearerAuth
// @Success 200 {array} projection.StockLevel
// @Failure 401 {string} string "Unauthorized"
// @Router /products [get]
func (s *Server) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	levels, err := s.inventory.ListProducts(r.Context(), auth.SessionFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, levels)
}

// FilterProductsHandler godoc
// @Summary Filter and paginate products
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param name query string false "Filter by name (case-insensitive substring)"
// @Param status query string false "Filter by stock status (out_of_stock|low|good)"
// @Param min_qty query int false "Minimum current quantity"
// @Param max_qty query int false "Maximum current quantity"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {object} ProductsSearchResult
// @Failure 400 {object} ErrorsResponse
// @Router /products/search [get]
func (s *Server) FilterProductsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	levels, total, err := s.inventory.SearchProducts(r.Context(), auth.SessionFrom(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, ProductsSearchResult{Data: levels, Meta: Meta{TotalCount: total}})
}

// GetProductByIDHandler godoc
// @Summary Get product by ID
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} inventory.ProductDetail
// @Failure 400 {object} ErrorsResponse
// @Failure 404 {string} string "Not found"
// @Router /products/{id} [get]
func (s *Server) GetProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.inventory.GetProduct(r.Context(), auth.SessionFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, detail)
}

// UpdateProductHandler godoc
// @Summary Update a product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Param product body ProductRequest true "Updated product"
// @Success 200 {object} models.Product
// @Failure 400 {object} ErrorsResponse
// @Failure 404 {string} string "Not found"
// @Router /products/{id} [put]
func (s *Server) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req ProductRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.inventory.UpdateProduct(r.Context(), auth.SessionFrom(r.Context()), id, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, updated)
}

// DeleteProductHandler godoc
// @Summary Delete a product
// @Description Only products without movements can be deleted.
// @Tags products
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 204 "Deleted successfully"
// @Failure 400 {object} ErrorsResponse
// @Failure 404 {string} string "Not found"
// @Failure 409 {string} string "Product has movements"
// @Router /products/{id} [delete]
func (s *Server) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.inventory.DeleteProduct(r.Context(), auth.SessionFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
