package events

import (
	"context"
	"time"
)

// Event types published after ledger and catalog changes.
const (
	TypeMovementAppended = "movement.appended"
	TypeMovementRemoved  = "movement.removed"
	TypeProductCreated   = "product.created"
	TypeProductUpdated   = "product.updated"
	TypeProductDeleted   = "product.deleted"
	TypeLowStock         = "stock.low"
)

// Event is the JSON payload sent to subscribers.
type Event struct {
	Type            string    `json:"type"`
	ProductID       int64     `json:"product_id"`
	ProductName     string    `json:"product_name,omitempty"`
	MovementID      int64     `json:"movement_id,omitempty"`
	Direction       string    `json:"direction,omitempty"`
	Quantity        int64     `json:"quantity,omitempty"`
	CurrentQuantity *int64    `json:"current_quantity,omitempty"`
	MinStock        *int64    `json:"min_stock,omitempty"`
	Actor           string    `json:"actor,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher delivers events. Delivery is best effort: callers log failures
// and never roll back the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
