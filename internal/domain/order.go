package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// validNext encodes the fulfillment state machine. Cancellation is the only
// side transition and is restricted to non-shipped, non-terminal states.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusConfirmed: true, OrderStatusCancelled: true},
	OrderStatusConfirmed:  {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:    {OrderStatusDelivered: true},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// CanCancel reports whether an order in the given status may still be
// cancelled by its owner.
func CanCancel(status OrderStatus) bool {
	return CanTransition(status, OrderStatusCancelled)
}

type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	UserID            int64           `json:"userId"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            OrderStatus     `json:"status"`
	PaymentMethod     string          `json:"paymentMethod"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	DeliveryAddress   string          `json:"deliveryAddress"`
	DeliveryPhone     string          `json:"deliveryPhone"`
	DeliveryName      string          `json:"deliveryName"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	Notes             string          `json:"notes,omitempty"`
	Items             []OrderItem     `json:"orderItems,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OrderItem is immutable once its order is committed.
type OrderItem struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"orderId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Product    *ProductSummary `json:"product,omitempty"`
}

// OrderStatusView is the lightweight projection served to tracking links.
type OrderStatusView struct {
	ID                int64       `json:"id"`
	OrderNumber       string      `json:"orderNumber"`
	Status            OrderStatus `json:"status"`
	CreatedAt         time.Time   `json:"createdAt"`
	EstimatedDelivery time.Time   `json:"estimatedDelivery"`
}
