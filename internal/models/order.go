package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusNew            OrderStatus = "new"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ShortCodeLength is how many leading id characters form the human-facing code
const ShortCodeLength = 8

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPreparing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Forward moves go one step at a time; cancellation is allowed from any
// non-terminal status.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch next {
	case OrderStatusPreparing:
		return s == OrderStatusNew
	case OrderStatusOutForDelivery:
		return s == OrderStatusPreparing
	case OrderStatusDelivered:
		return s == OrderStatusOutForDelivery
	case OrderStatusCancelled:
		return s.Valid() && !s.Terminal()
	}
	return false
}

// Customer owns orders and receives order notifications
type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is a customer purchase moving through the delivery lifecycle.
// DeliveryCode is set only while Status is out_for_delivery; the unique
// index keeps two in-flight deliveries from sharing a code.
type Order struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	CustomerID    string          `json:"customer_id" gorm:"size:36;index"`
	Customer      Customer        `json:"customer" gorm:"foreignKey:CustomerID"`
	Status        OrderStatus     `json:"status" gorm:"size:32;index;not null"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	Total         decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
	PaymentMethod string          `json:"payment_method"`
	DeliveryCode  *string         `json:"delivery_code,omitempty" gorm:"size:4;uniqueIndex"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"index"`
}

// ShortCode returns the human-facing reference used in chat commands
func (o *Order) ShortCode() string {
	return ShortCode(o.ID)
}

// CustomerPhone returns the phone of the owning customer
func (o *Order) CustomerPhone() string {
	return o.Customer.Phone
}

// ShortCode returns the first eight characters of an order id
func ShortCode(id string) string {
	if len(id) <= ShortCodeLength {
		return id
	}
	return id[:ShortCodeLength]
}

// OrderItem is one line of an order
type OrderItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderID     string          `json:"order_id" gorm:"size:36;index"`
	ProductID   string          `json:"product_id" gorm:"size:36"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
}

// Subtotal returns quantity times unit price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
