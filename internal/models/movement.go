package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction tells whether a movement adds stock or removes it.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ParseDirection accepts "in"/"out" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	}
	return "", NewValidationError(FieldError{Field: "type", Description: fmt.Sprintf("invalid direction %q, must be in or out", s)})
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Movement is a single ledger entry.
type Movement struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Direction Direction `json:"type"`
	Quantity  int64     `json:"quantity"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy int64     `json:"created_by"`

	// ProductName is filled by queries that join the catalog.
	ProductName string `json:"product_name,omitempty"`
	// CreatedByName is filled by queries that join users.
	CreatedByName string `json:"created_by_name,omitempty"`
}

// Signed returns the quantity with the sign of its direction.
func (m Movement) Signed() int64 {
	if m.Direction == DirectionOut {
		return -m.Quantity
	}
	return m.Quantity
}

// Validate checks the fields that can be verified without storage access.
// Product existence is checked by the ledger store.
func (m Movement) Validate() error {
	var errs []FieldError
	if m.ProductID <= 0 {
		errs = append(errs, FieldError{Field: "product_id", Description: "product is required"})
	}
	if !m.Direction.Valid() {
		errs = append(errs, FieldError{Field: "type", Description: "type must be in or out"})
	}
	if m.Quantity <= 0 {
		errs = append(errs, FieldError{Field: "quantity", Description: "quantity must be greater than zero"})
	}
	return NewValidationError(errs...)
}
