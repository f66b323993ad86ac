package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/delivery-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches nothing
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguousShortCode is returned when a short code prefixes more than one order
	ErrAmbiguousShortCode = errors.New("short code matches more than one order")
	// ErrStatusConflict is returned when an order is no longer in the expected status
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrDuplicateDeliveryCode is returned when a delivery code is already held by another order
	ErrDuplicateDeliveryCode = errors.New("delivery code already in use")
)

// OrderTransition is a compare-and-swap status change. The update applies
// only while the order is still in From. DeliveryCode is written in the same
// statement: set when moving to out_for_delivery, cleared otherwise.
type OrderTransition struct {
	OrderID      string
	From         models.OrderStatus
	To           models.OrderStatus
	DeliveryCode *string
}

// Store defines the interface for storage operations
type Store interface {
	// Session operations
	GetSession(ctx context.Context, phone string) (*models.ConversationSession, error)
	SaveSession(ctx context.Context, session *models.ConversationSession) error
	DeleteSession(ctx context.Context, phone string) (bool, error)

	// Catalog operations
	ListCategories(ctx context.Context) ([]*models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	ListProductsByCategory(ctx context.Context, categoryID string) ([]*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)

	// Order operations
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrderByShortCode(ctx context.Context, shortCode string) (*models.Order, error)
	FindOutForDeliveryByCode(ctx context.Context, code string) (*models.Order, error)
	DeliveryCodeInUse(ctx context.Context, code string) (bool, error)
	ListStaleDeliveries(ctx context.Context, updatedBefore time.Time) ([]*models.Order, error)
	TransitionOrder(ctx context.Context, t OrderTransition) (*models.Order, error)
}
