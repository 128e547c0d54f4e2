package handlers

import (
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
)

type ErrorsResponse struct {
	Errors []models.FieldError `json:"errors"`
}

type ProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	MinStock    int64  `json:"min_stock"`
}

type MovementRequest struct {
	ProductID int64  `json:"product_id"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	// Date is optional, YYYY-MM-DD or RFC3339. Defaults to now.
	Date  string `json:"date,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type Meta struct {
	TotalCount int `json:"total_count"`
}

type ProductsSearchResult struct {
	Data []projection.StockLevel `json:"data"`
	Meta Meta                    `json:"meta"`
}

type MovementsSearchResult struct {
	Data []models.Movement `json:"data"`
	Meta Meta              `json:"meta"`
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type CreateUserRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}
