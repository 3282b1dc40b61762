package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedEvent struct {
	EventID       string           `json:"eventId"`
	OrderID       int64            `json:"orderId"`
	OrderNumber   string           `json:"orderNumber"`
	UserID        int64            `json:"userId"`
	CustomerEmail string           `json:"customerEmail,omitempty"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	Items         []OrderEventItem `json:"items"`
	Timestamp     time.Time        `json:"timestamp"`
}

type OrderCancelledEvent struct {
	EventID       string    `json:"eventId"`
	OrderID       int64     `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        int64     `json:"userId"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
