package models

import (
	"strings"
	"time"
)

// Product represents a catalog entry. Stock on hand is never stored on the
// product; it is derived from the movement ledger.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Unit        string    `json:"unit"`
	MinStock    int64     `json:"min_stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the catalog fields and returns a *ValidationError listing
// every offending field, or nil.
func (p Product) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Description: "name is required"})
	}
	if strings.TrimSpace(p.Unit) == "" {
		errs = append(errs, FieldError{Field: "unit", Description: "unit is required"})
	}
	if p.MinStock < 0 {
		errs = append(errs, FieldError{Field: "min_stock", Description: "minimum stock cannot be negative"})
	}
	return NewValidationError(errs...)
}
