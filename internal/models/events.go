package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeShopCreated       = "SHOP_CREATED"
	EventTypeShopDeleted       = "SHOP_DELETED"
	EventTypeProductCreated    = "PRODUCT_CREATED"
	EventTypeProductUpdated    = "PRODUCT_UPDATED"
	EventTypeProductDeleted    = "PRODUCT_DELETED"
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderDeleted      = "ORDER_DELETED"
	EventTypeOrderTotalChanged = "ORDER_TOTAL_CHANGED"
	EventTypeUserDeleted       = "USER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// ShopEvent is published for shop lifecycle changes.
type ShopEvent struct {
	BaseEvent
	ShopID  int64  `json:"shop_id"`
	OwnerID int64  `json:"owner_id"`
	Name    string `json:"name"`
}

// ProductEvent is published for catalog changes.
type ProductEvent struct {
	BaseEvent
	ShopID    int64           `json:"shop_id"`
	ProductID int64           `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

// OrderEvent is published when an order is created or deleted.
type OrderEvent struct {
	BaseEvent
	ShopID   int64  `json:"shop_id"`
	OrderID  int64  `json:"order_id"`
	ClientID *int64 `json:"client_id"`
}

// OrderTotalChangedEvent is published after a line item mutation committed.
type OrderTotalChangedEvent struct {
	BaseEvent
	ShopID     int64           `json:"shop_id"`
	OrderID    int64           `json:"order_id"`
	LineItemID int64           `json:"line_item_id"`
	Operation  string          `json:"operation"`
	Total      decimal.Decimal `json:"total"`
}

// UserDeletedEvent is published after a user was removed.
type UserDeletedEvent struct {
	BaseEvent
	UserID int64 `json:"user_id"`
}
